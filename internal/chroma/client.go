// Package chroma wraps the ChromaDB REST API for the recipe corpus and
// adapts it to the pipeline's similarity-search collaborator.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/your-org/recipe-assistant/internal/pipeline"
	"go.uber.org/zap"
)

// Client wraps the ChromaDB REST API.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new ChromaDB client for the given collection.
func NewClient(baseURL, collection string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		collection: collection,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// SearchResult represents a single search hit from ChromaDB.
type SearchResult struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
	Distance float64           `json:"distance"`
}

// searchRequest is the ChromaDB query payload.
type searchRequest struct {
	QueryEmbeddings [][]float32 `json:"query_embeddings"`
	NResults        int         `json:"n_results"`
}

// searchResponse is the ChromaDB query response.
type searchResponse struct {
	IDs       [][]string                 `json:"ids"`
	Documents [][]string                 `json:"documents"`
	Metadatas [][]map[string]interface{} `json:"metadatas"`
	Distances [][]float64                `json:"distances"`
}

// ChromaError represents an error response from ChromaDB.
type ChromaError struct {
	Detail string `json:"detail"`
	Type   string `json:"type"`
}

func (e ChromaError) Error() string {
	return fmt.Sprintf("ChromaDB error [%s]: %s", e.Type, e.Detail)
}

// Search performs a vector search against the recipe collection.
func (c *Client) Search(ctx context.Context, queryEmbedding []float32, nResults int) ([]SearchResult, error) {
	url := fmt.Sprintf("%s/api/v1/collections/%s/query", c.baseURL, c.collection)

	payload, err := json.Marshal(searchRequest{
		QueryEmbeddings: [][]float32{queryEmbedding},
		NResults:        nResults,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)

		var chromaErr ChromaError
		if json.Unmarshal(body, &chromaErr) == nil && chromaErr.Detail != "" {
			return nil, chromaErr
		}
		return nil, fmt.Errorf("ChromaDB search returned status %d", resp.StatusCode)
	}

	var searchResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	var results []SearchResult
	if len(searchResp.IDs) > 0 {
		for i, id := range searchResp.IDs[0] {
			result := SearchResult{
				ID:       id,
				Content:  searchResp.Documents[0][i],
				Distance: searchResp.Distances[0][i],
			}
			if len(searchResp.Metadatas) > 0 && len(searchResp.Metadatas[0]) > i {
				result.Metadata = make(map[string]string)
				for k, v := range searchResp.Metadatas[0][i] {
					if str, ok := v.(string); ok {
						result.Metadata[k] = str
					}
				}
			}
			results = append(results, result)
		}
	}

	return results, nil
}

// addRequest is the ChromaDB add payload.
type addRequest struct {
	IDs        []string                 `json:"ids"`
	Embeddings [][]float32              `json:"embeddings"`
	Documents  []string                 `json:"documents"`
	Metadatas  []map[string]interface{} `json:"metadatas,omitempty"`
}

// EnsureCollection creates the client's collection if it does not exist yet.
func (c *Client) EnsureCollection(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/v1/collections", c.baseURL)

	payload, err := json.Marshal(map[string]interface{}{
		"name":          c.collection,
		"get_or_create": true,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal collection request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create collection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)

		var chromaErr ChromaError
		if json.Unmarshal(body, &chromaErr) == nil && chromaErr.Detail != "" {
			return chromaErr
		}
		return fmt.Errorf("ChromaDB collection create returned status %d", resp.StatusCode)
	}

	c.logger.Info("Collection ready", zap.String("collection", c.collection))
	return nil
}

// AddDocuments inserts documents with precomputed embeddings into the
// collection. All slices must have the same length.
func (c *Client) AddDocuments(ctx context.Context, ids []string, embeddings [][]float32, documents []string, metadatas []map[string]interface{}) error {
	if len(ids) != len(embeddings) || len(ids) != len(documents) {
		return fmt.Errorf("mismatched lengths: %d ids, %d embeddings, %d documents",
			len(ids), len(embeddings), len(documents))
	}

	url := fmt.Sprintf("%s/api/v1/collections/%s/add", c.baseURL, c.collection)

	payload, err := json.Marshal(addRequest{
		IDs:        ids,
		Embeddings: embeddings,
		Documents:  documents,
		Metadatas:  metadatas,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal add request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create add request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)

		var chromaErr ChromaError
		if json.Unmarshal(body, &chromaErr) == nil && chromaErr.Detail != "" {
			return chromaErr
		}
		return fmt.Errorf("ChromaDB add returned status %d", resp.StatusCode)
	}

	c.logger.Info("Documents added",
		zap.String("collection", c.collection),
		zap.Int("count", len(ids)))
	return nil
}

// HealthCheck checks if ChromaDB answers its heartbeat endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/v1/heartbeat", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to check ChromaDB health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ChromaDB health check failed with status %d", resp.StatusCode)
	}
	return nil
}

// Embedder produces a query embedding for vector search.
type Embedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// Searcher adapts the ChromaDB client to pipeline.SimilaritySearcher:
// embed the query, search the collection, map distances to similarity
// scores.
type Searcher struct {
	client   *Client
	embedder Embedder
	logger   *zap.Logger
}

// NewSearcher creates a similarity searcher over the recipe collection.
func NewSearcher(client *Client, embedder Embedder, logger *zap.Logger) *Searcher {
	return &Searcher{client: client, embedder: embedder, logger: logger}
}

// Search returns the top-k recipe documents for a query, tagged internal.
func (s *Searcher) Search(ctx context.Context, query string, k int) ([]pipeline.Document, error) {
	embedding, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := s.client.Search(ctx, embedding, k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	docs := make([]pipeline.Document, 0, len(results))
	for _, result := range results {
		docs = append(docs, pipeline.Document{
			Title:       result.Metadata["title"],
			Content:     result.Content,
			Source:      pipeline.SourceInternal,
			VectorScore: 1.0 - result.Distance,
		})
	}

	s.logger.Debug("Similarity search completed",
		zap.String("query", query),
		zap.Int("requested", k),
		zap.Int("returned", len(docs)))

	return docs, nil
}
