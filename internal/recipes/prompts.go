// Copyright 2025 Recipe Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package recipes

const (
	// queryMaxTokens bounds the search-query extraction call.
	queryMaxTokens = 50
	// recipeMaxTokens bounds the recipe generation call.
	recipeMaxTokens = 800
	// titleMaxTokens bounds the title-cleanup call.
	titleMaxTokens = 50

	// fallbackQuery is searched when query extraction fails outright.
	fallbackQuery = "한식 요리"
	// fallbackBaseRecipe anchors generation when no documents are available.
	fallbackBaseRecipe = "한식 요리"
	// fallbackLastRequest stands in when the history has no user turn.
	fallbackLastRequest = "레시피 생성해주세요"

	// baseRecipeRunes bounds the base-recipe excerpt fed to generation.
	baseRecipeRunes = 600
)

// queryExtractionPrompt asks the model to distill a retrieval query from the
// conversation. %s: conversation, allergies, dislikes.
const queryExtractionPrompt = `다음 대화를 분석하여 레시피 검색 키워드를 추출하세요.

# 대화
%s

# 제약
- 알레르기: %s
- 제외: %s

# 출력
3-5개 핵심 키워드만 (예: "매운 찌개 김치")

키워드:`

// refinePrompt asks the model to adapt a base recipe to the user's latest
// request and constraints, emitting JSON only. %s/%d: base recipe, last
// request, servings, allergies, dislikes, tools, servings.
const refinePrompt = `전문 요리사입니다. 기본 레시피에 조건을 반영하여 JSON으로 출력하세요.

# 기본 레시피
%s

# 사용자 요구사항
%s

# 제약 (필수 적용)
- 인원: %d명
- 알레르기 (포함 금지): %s
- 제외 재료: %s
- 조리도구: %s

# 조건 반영 규칙
- "덜 맵게" → 고춧가루/고추 줄이기
- "더 달게" → 설탕/꿀 추가
- "간단하게" → 단계 5개 이하
- "빨리" → 조리시간 30분 이내
- 인원수에 맞게 재료 양 조절

# 출력 (JSON만!)
{
  "title": "요리명",
  "intro": "한 줄 소개",
  "cook_time": "조리시간",
  "level": "초급/중급/고급",
  "servings": "%d인분",
  "ingredients": [
    {"name": "재료명", "amount": "양", "note": "선택사항"}
  ],
  "steps": [
    {"no": 1, "desc": "구체적인 설명"}
  ],
  "tips": ["유용한 팁"]
}

JSON:`

// titleCleanPrompt extracts the bare dish name from a decorated corpus
// title. %s: title.
const titleCleanPrompt = `다음 레시피 제목에서 순수 요리명만 추출하세요.

제목: %s

규칙:
- 미사여구, 괄호, 느낌표, 설명 제거
- 요리명만 출력 (단어만, 설명 없이)

예시:
- "쫀득하고, 바삭하고, 고소한! [두쫀쿠!]" → 두쫀쿠
- "깔끔하고 깔끔한! (김치찌개)" → 김치찌개
- "간단하고 맛있는 된장탕" → 된장탕
- "두쫀쿠" → 두쫀쿠

요리명:`
