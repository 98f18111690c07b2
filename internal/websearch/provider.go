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

// Package websearch provides the fallback web search used when internal
// retrieval is graded insufficient. The concrete search provider is a
// pluggable collaborator selected by configuration; results are wrapped as
// pseudo-documents so downstream generation never has to branch on an empty
// document list.
package websearch

import "context"

// Result is a single raw search hit from a provider.
type Result struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// Provider is the external search collaborator.
type Provider interface {
	// Name identifies the provider in logs and health output.
	Name() string
	// Search returns up to maxResults hits for the query.
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}
