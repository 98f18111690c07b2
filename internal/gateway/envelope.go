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

// Package gateway is the websocket boundary of the chat service. It parses
// inbound envelopes, drives the session layer, and maps each tagged pipeline
// outcome to its outbound envelope type.
package gateway

import "github.com/your-org/recipe-assistant/internal/recipes"

// Inbound envelope types.
const (
	typeInitContext    = "init_context"
	typeUserMessage    = "user_message"
	typeGenerateRecipe = "generate_recipe"
)

// Outbound envelope types.
const (
	typeThinking         = "thinking"
	typeProgress         = "progress"
	typeAgentMessage     = "agent_message"
	typeNotRecipeRelated = "not_recipe_related"
	typeError            = "error"
	typeRecipe           = "recipe"
)

// inboundEnvelope is one parsed client message.
type inboundEnvelope struct {
	Type       string      `json:"type"`
	Content    string      `json:"content,omitempty"`
	MemberInfo *memberInfo `json:"member_info,omitempty"`
}

// memberInfo carries the client's household context on init_context.
// Serving count is derived from the number of names.
type memberInfo struct {
	Names     []string `json:"names"`
	Allergies []string `json:"allergies"`
	Dislikes  []string `json:"dislikes"`
	Tools     []string `json:"tools"`
	MemberID  string   `json:"member_id,omitempty"`
}

// outboundEnvelope is one server message. Exactly one of Message, Content,
// Recipe is set depending on Type.
type outboundEnvelope struct {
	Type    string          `json:"type"`
	Message string          `json:"message,omitempty"`
	Content string          `json:"content,omitempty"`
	Recipe  *recipes.Recipe `json:"recipe,omitempty"`
}
