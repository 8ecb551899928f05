package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// OllamaEmbeddingConfig configures the local embedding backend.
type OllamaEmbeddingConfig struct {
	APIURL    string
	APIKey    string
	Model     string
	Dimension int
}

// OllamaEmbedding is the local EmbeddingModel backend, talking to an Ollama
// server's /api/embeddings endpoint over plain HTTP. Grounded on the
// teacher's service_init.go construction (vector.NewOllamaEmbedding(cfg,
// logger)); the teacher's HTTP client body wasn't retrieved intact, so the
// request/response shape follows Ollama's documented embeddings API.
type OllamaEmbedding struct {
	cfg    OllamaEmbeddingConfig
	client *http.Client
	logger *zap.Logger
}

func NewOllamaEmbedding(cfg OllamaEmbeddingConfig, logger *zap.Logger) *OllamaEmbedding {
	return &OllamaEmbedding{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}
}

func (o *OllamaEmbedding) Backend() EmbeddingBackend { return BackendLocal }
func (o *OllamaEmbedding) Model() string             { return o.cfg.Model }
func (o *OllamaEmbedding) Dimensions() int            { return o.cfg.Dimension }

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (o *OllamaEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: o.cfg.Model, Input: truncateForLocal(text)})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ollama embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.APIURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama request failed: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return nil, ErrAccessDenied
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: ollama returned status %d", ErrTransient, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama embed request failed with status %d", resp.StatusCode)
	}

	var out ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode ollama embed response: %w", err)
	}
	return out.Embedding, nil
}

// EmbedBatch calls Embed sequentially with a jittered pause between
// requests, since Ollama is typically a single-worker local server and
// concurrent requests to it just queue anyway.
func (o *OllamaEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for i, t := range texts {
		v, err := o.Embed(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("failed to embed item %d of %d: %w", i, len(texts), err)
		}
		out = append(out, v)
		if i < len(texts)-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitteredLocalDelay()):
			}
		}
	}
	return out, nil
}

func jitteredLocalDelay() time.Duration {
	span := LocalRequestMaxDelay - LocalRequestMinDelay
	return LocalRequestMinDelay + time.Duration(rand.Int63n(int64(span)+1))
}
