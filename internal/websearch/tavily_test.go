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

package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestTavilyProviderRequiresAPIKey(t *testing.T) {
	if _, err := NewTavilyProvider("", "", zaptest.NewLogger(t)); err == nil {
		t.Fatal("expected an error for a missing API key")
	}
}

func TestTavilyProviderSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		if req["api_key"] != "test-key" {
			t.Errorf("expected api_key in the request body, got %v", req["api_key"])
		}
		if req["query"] != "수제비 레시피" {
			t.Errorf("unexpected query %v", req["query"])
		}
		if req["max_results"] != float64(3) {
			t.Errorf("unexpected max_results %v", req["max_results"])
		}

		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]string{
				{"title": "수제비 만드는 법", "content": "반죽을 얇게 뜯어 넣는다", "url": "https://example.com/sujebi"},
			},
		})
	}))
	defer server.Close()

	provider, err := NewTavilyProvider("test-key", server.URL, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewTavilyProvider failed: %v", err)
	}

	results, err := provider.Search(context.Background(), "수제비 레시피", 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Title != "수제비 만드는 법" || results[0].URL != "https://example.com/sujebi" {
		t.Errorf("unexpected result %+v", results[0])
	}
}

func TestTavilyProviderRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	provider, err := NewTavilyProvider("test-key", server.URL, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewTavilyProvider failed: %v", err)
	}

	if _, err := provider.Search(context.Background(), "수제비", 3); err == nil {
		t.Fatal("expected an error on HTTP 429")
	}
}

func TestTavilyProviderServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	provider, err := NewTavilyProvider("test-key", server.URL, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewTavilyProvider failed: %v", err)
	}

	if _, err := provider.Search(context.Background(), "수제비", 3); err == nil {
		t.Fatal("expected an error on HTTP 500")
	}
}
