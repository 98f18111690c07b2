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

// Package recipes turns a finished conversation into one structured recipe.
// It prefers the session's cached retrieval context and only falls back to a
// fresh search when the cache is empty.
package recipes

import "fmt"

// Ingredient is one line of a recipe's ingredient list.
type Ingredient struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
	Note   string `json:"note,omitempty"`
}

// Step is one numbered cooking instruction.
type Step struct {
	No   int    `json:"no"`
	Desc string `json:"desc"`
}

// Recipe is the structured output of a recipe build.
type Recipe struct {
	Title       string       `json:"title"`
	Intro       string       `json:"intro"`
	CookTime    string       `json:"cook_time"`
	Level       string       `json:"level"`
	Servings    string       `json:"servings"`
	Ingredients []Ingredient `json:"ingredients"`
	Steps       []Step       `json:"steps"`
	Tips        []string     `json:"tips"`
}

// DefaultRecipe is the placeholder returned when the model's recipe output
// cannot be parsed. The builder never returns an empty recipe.
func DefaultRecipe(servings int) Recipe {
	return Recipe{
		Title:       "추천 레시피",
		Intro:       "레시피 생성 중 오류가 발생했습니다.",
		CookTime:    "30분",
		Level:       "중급",
		Servings:    fmt.Sprintf("%d인분", servings),
		Ingredients: []Ingredient{},
		Steps:       []Step{},
		Tips:        []string{},
	}
}
