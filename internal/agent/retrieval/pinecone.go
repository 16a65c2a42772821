package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/lorcraft-poc/server/internal/agent/model"
	logx "github.com/lorcraft-poc/server/pkg/logger"
)

// PineconeConfig configures the Pinecone-backed retriever. Provide either
// BaseURL (the data-plane host) or Index, in which case the host is resolved
// once via the controller API.
type PineconeConfig struct {
	APIKey  string `envconfig:"PINECONE_API_KEY"`
	Index   string `envconfig:"PINECONE_INDEX"`
	BaseURL string `envconfig:"PINECONE_BASE_URL"`

	ControllerBaseURL string `envconfig:"PINECONE_CONTROLLER_BASE_URL" default:"https://api.pinecone.io"`
	TopK              int    `envconfig:"PINECONE_TOP_K" default:"5"`
	TimeoutSeconds    int    `envconfig:"PINECONE_TIMEOUT" default:"30"`

	// TextField is the record field holding the chunk text.
	TextField string `envconfig:"PINECONE_TEXT_FIELD" default:"text"`
}

// PineconeRetriever queries a Pinecone index with integrated embedding over
// its REST API. Documents are ingested elsewhere under one namespace per
// conversation thread; this client only searches.
type PineconeRetriever struct {
	cfg    PineconeConfig
	client *http.Client

	mu      sync.RWMutex
	baseURL string
}

// NewPineconeRetriever validates credentials at construction; a missing API
// key or index is a fatal configuration error, never recovered later.
func NewPineconeRetriever(cfg PineconeConfig) (*PineconeRetriever, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("pinecone api key is not set")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" && strings.TrimSpace(cfg.Index) == "" {
		return nil, fmt.Errorf("either pinecone base url or index is required")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 30
	}
	if cfg.TextField == "" {
		cfg.TextField = "text"
	}

	return &PineconeRetriever{
		cfg:     cfg,
		client:  &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
	}, nil
}

// ensureBaseURL resolves the data-plane host via the controller API when only
// the index name was configured.
func (r *PineconeRetriever) ensureBaseURL(ctx context.Context) error {
	r.mu.RLock()
	if r.baseURL != "" {
		r.mu.RUnlock()
		return nil
	}
	r.mu.RUnlock()

	controller := strings.TrimRight(strings.TrimSpace(r.cfg.ControllerBaseURL), "/")
	endpoint := fmt.Sprintf("%s/indexes/%s", controller, url.PathEscape(r.cfg.Index))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Api-Key", r.cfg.APIKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pinecone describe index failed: status=%d body=%s", resp.StatusCode, string(raw))
	}

	var describe struct {
		Host string `json:"host"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&describe); err != nil {
		return err
	}
	host := strings.TrimSpace(describe.Host)
	if host == "" {
		return fmt.Errorf("pinecone controller returned empty host for index %q", r.cfg.Index)
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}

	r.mu.Lock()
	r.baseURL = strings.TrimRight(host, "/")
	r.mu.Unlock()

	return nil
}

type searchRequest struct {
	Query  searchQuery `json:"query"`
	Fields []string    `json:"fields,omitempty"`
}

type searchQuery struct {
	Inputs map[string]string `json:"inputs"`
	TopK   int               `json:"top_k"`
}

type searchResponse struct {
	Result struct {
		Hits []struct {
			ID     string         `json:"_id"`
			Score  float64        `json:"_score"`
			Fields map[string]any `json:"fields"`
		} `json:"hits"`
	} `json:"result"`
}

// Retrieve searches the thread's namespace for the query text. An empty hit
// list is returned as-is; the caller owns retry policy.
func (r *PineconeRetriever) Retrieve(ctx context.Context, query string, namespace string) ([]model.Snippet, error) {
	if err := r.ensureBaseURL(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	endpoint := fmt.Sprintf("%s/records/namespaces/%s/search", r.baseURL, url.PathEscape(namespace))
	r.mu.RUnlock()

	body, err := json.Marshal(searchRequest{
		Query: searchQuery{
			Inputs: map[string]string{"text": query},
			TopK:   r.cfg.TopK,
		},
		Fields: []string{r.cfg.TextField},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Api-Key", r.cfg.APIKey)
	req.Header.Set("X-Pinecone-API-Version", "2025-01")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("pinecone search failed: status=%d body=%s", resp.StatusCode, string(raw))
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	snippets := make([]model.Snippet, 0, len(out.Result.Hits))
	for _, hit := range out.Result.Hits {
		text, _ := hit.Fields[r.cfg.TextField].(string)
		if strings.TrimSpace(text) == "" {
			continue
		}
		snippets = append(snippets, model.Snippet{
			Text: text,
			Metadata: map[string]any{
				"id":    hit.ID,
				"score": hit.Score,
			},
		})
	}

	logx.Debug().
		Str("component", "pinecone_retriever").
		Str("namespace", namespace).
		Int("hits", len(snippets)).
		Msg("search completed")

	return snippets, nil
}

var _ model.Retriever = (*PineconeRetriever)(nil)
