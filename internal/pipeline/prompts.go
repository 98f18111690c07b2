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

const (
	// historyWindow is the number of recent turns included in prompts.
	historyWindow = 5
	// graderDocuments is how many top documents the grader considers.
	graderDocuments = 3
	// graderContentRunes bounds per-document content sent to the grader.
	graderContentRunes = 300
	// contextDocuments bounds documents in the generation context block.
	contextDocuments = 5
	// contextContentRunes bounds per-document content in the context block.
	contextContentRunes = 800
	// affirmativeToken is the grader's sufficiency signal.
	affirmativeToken = "yes"
)

const rewritePrompt = `You rewrite conversational cooking questions into short retrieval queries.
Given the conversation so far and the latest question, produce one line that
names the dish or ingredients being asked about, with filler words removed.
Output only the rewritten query, nothing else.

Conversation:
%s

Question: %s

Rewritten query:`

const gradePrompt = `You judge whether retrieved recipes are sufficient to answer a cooking question.

Question: %s

Retrieved recipes:
%s

Answer "yes" if these recipes are enough to answer the question, otherwise "no".`

const answerSystemPrompt = `You are a Korean cooking expert and a friendly recipe assistant.

Rules:
1. Recommend exactly one dish. Never list multiple dishes.
2. Keep the cooking method to one or two lines.

Answer format:

Today's recommended dish is [dish name].

**Ingredients (servings, cook time):**
- five to seven main ingredients

**Method:**
one or two lines covering the essentials

**Why this dish:**
one line on what makes it good

If the conversation is not about food, cooking, or recipes, reply with
exactly the single token NOT_RECIPE_RELATED and nothing else.`

const warningAnswerPrompt = `The user asked about a dish that conflicts with their dietary constraints.

Constraint details: %s
Their request: %s

Write a short, warm acknowledgement of the conflict and suggest one
alternative dish that avoids the problem ingredients. Two or three sentences.`

// outOfDomainToken is the reserved marker the generator instructs the model
// to emit for non-cooking conversations. It never leaves this package; the
// generator maps it to StatusOutOfDomain.
const outOfDomainToken = "NOT_RECIPE_RELATED"

// buildAnswerPrompt assembles the grounded-generation prompt: system rules,
// an optional must-avoid block from the profile, the document context block,
// recent history, and the question.
func buildAnswerPrompt(question string, docs []Document, history []string, profile ConstraintProfile) string {
	var b strings.Builder
	b.WriteString(answerSystemPrompt)
	b.WriteString("\n\n")

	if !profile.IsEmpty() {
		b.WriteString("Hard constraints for this user:\n")
		if len(profile.Allergies) > 0 {
			fmt.Fprintf(&b, "- The dish must not contain: %s (allergies)\n", strings.Join(profile.Allergies, ", "))
		}
		if len(profile.Dislikes) > 0 {
			fmt.Fprintf(&b, "- Avoid these ingredients: %s (disliked)\n", strings.Join(profile.Dislikes, ", "))
		}
		fmt.Fprintf(&b, "- Portion for %d servings.\n\n", profile.Servings())
	}

	b.WriteString("Recipe context:\n")
	for i, doc := range docs {
		if i >= contextDocuments {
			break
		}
		fmt.Fprintf(&b, "[recipe %d] %s\n%s\n\n", i+1, doc.Title, truncate(doc.Content, contextContentRunes))
	}

	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		b.WriteString(formatHistory(history, historyWindow))
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Question: %s", question)
	return b.String()
}
