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

package pipeline

import (
	"fmt"
	"strings"
)

// CheckConstraints scans text for every allergy and dislike term in the
// profile and returns one sentence per match. Matching is case-insensitive
// substring; matches accumulate so multiple violations are all reported.
// An empty return means no violations.
//
// The checker runs twice per turn: on the rewritten question before
// generation, where a non-empty warning routes to the warning branch of the
// generator, and on the generated answer afterwards, where it only appends a
// caution.
func CheckConstraints(text string, profile ConstraintProfile) string {
	lower := strings.ToLower(text)

	var sentences []string
	for _, term := range profile.Allergies {
		if term != "" && strings.Contains(lower, strings.ToLower(term)) {
			sentences = append(sentences, fmt.Sprintf("%q은(는) 등록된 알레르기 재료입니다.", term))
		}
	}
	for _, term := range profile.Dislikes {
		if term != "" && strings.Contains(lower, strings.ToLower(term)) {
			sentences = append(sentences, fmt.Sprintf("%q은(는) 비선호 재료입니다.", term))
		}
	}

	return strings.Join(sentences, " ")
}

// FilterByConstraints drops documents whose content mentions any allergy or
// dislike term and truncates to keep. When filtering would leave fewer than
// min documents, the unfiltered head is returned instead so generation never
// starves for context.
func FilterByConstraints(docs []Document, profile ConstraintProfile, keep, min int) []Document {
	if profile.IsEmpty() {
		if len(docs) > keep {
			return docs[:keep]
		}
		return docs
	}

	filtered := make([]Document, 0, keep)
	for _, doc := range docs {
		if CheckConstraints(doc.Content, profile) != "" {
			continue
		}
		filtered = append(filtered, doc)
		if len(filtered) >= keep {
			break
		}
	}

	if len(filtered) < min {
		if len(docs) > min {
			return docs[:min]
		}
		return docs
	}
	return filtered
}
