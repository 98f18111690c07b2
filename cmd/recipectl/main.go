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

// Package main implements the recipectl CLI for manual operations against
// the chat server: asking one question over the websocket, checking server
// health, and seeding the recipe corpus.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the chat server
	serverURL string
	// allergies and dislikes seed the constraint profile for ask
	allergies string
	dislikes  string
	servings  int

	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "recipectl",
	Short: "CLI for the recipe assistant chat server",
	Long: `recipectl is a command-line interface for the recipe assistant chat
server. It can ask a single question over the websocket, check server
health, and seed recipe documents into the vector store.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "chat server URL")
	askCmd.Flags().StringVar(&allergies, "allergies", "", "comma-separated allergy list")
	askCmd.Flags().StringVar(&dislikes, "dislikes", "", "comma-separated disliked ingredients")
	askCmd.Flags().IntVar(&servings, "servings", 1, "serving count")
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(healthCmd)
}

// askCmd sends one question over the websocket and prints the exchange
var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the assistant one question",
	Long: `Ask the assistant one question over the websocket and print every
envelope until the terminal message arrives.

Examples:
  recipectl ask "된장찌개 레시피 알려줘"
  recipectl ask --allergies 땅콩 "볶음 요리 추천해줘"`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check chat server health",
	RunE:  runHealth,
}

// envelope mirrors the gateway's wire format for both directions.
type envelope struct {
	Type       string          `json:"type"`
	Message    string          `json:"message,omitempty"`
	Content    string          `json:"content,omitempty"`
	Recipe     json.RawMessage `json:"recipe,omitempty"`
	MemberInfo *memberInfo     `json:"member_info,omitempty"`
}

type memberInfo struct {
	Names     []string `json:"names"`
	Allergies []string `json:"allergies"`
	Dislikes  []string `json:"dislikes"`
	Tools     []string `json:"tools"`
}

// runAsk handles the ask command
func runAsk(cmd *cobra.Command, args []string) error {
	wsURL, err := websocketURL(serverURL)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", wsURL, err)
	}
	defer conn.Close()

	if allergies != "" || dislikes != "" || servings > 1 {
		names := make([]string, servings)
		for i := range names {
			names[i] = fmt.Sprintf("member%d", i+1)
		}
		init := envelope{
			Type: "init_context",
			MemberInfo: &memberInfo{
				Names:     names,
				Allergies: splitList(allergies),
				Dislikes:  splitList(dislikes),
			},
		}
		if err := conn.WriteJSON(init); err != nil {
			return fmt.Errorf("failed to send init_context: %w", err)
		}
	}

	if err := conn.WriteJSON(envelope{Type: "user_message", Content: args[0]}); err != nil {
		return fmt.Errorf("failed to send question: %w", err)
	}

	deadline := time.Now().Add(30 * time.Second)
	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return err
		}
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			return fmt.Errorf("connection closed before terminal message: %w", err)
		}

		switch env.Type {
		case "thinking", "progress":
			fmt.Printf("[%s] %s\n", env.Type, env.Message)
		case "agent_message", "not_recipe_related":
			fmt.Println(env.Content)
			return nil
		case "error":
			return fmt.Errorf("server error: %s", env.Message)
		default:
			fmt.Printf("[%s]\n", env.Type)
		}
	}
}

// runHealth handles the health command
func runHealth(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(strings.TrimRight(serverURL, "/") + "/health")
	if err != nil {
		return fmt.Errorf("health request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read health response: %w", err)
	}

	fmt.Println(string(body))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}

// websocketURL converts the server base URL to the websocket endpoint.
func websocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	u.Path = "/ws/chat"
	return u.String(), nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
