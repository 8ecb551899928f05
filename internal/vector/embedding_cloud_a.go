package vector

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// CloudAEmbeddingConfig configures the Gemini-backed embedding client.
type CloudAEmbeddingConfig struct {
	APIKey    string
	Model     string
	Dimension int
}

// CloudAEmbedding is the cloudA EmbeddingModel backend. Grounded on
// josephgoksu-TaskWing's llm/client.go genai.NewClient construction,
// adapted from chat completion to embeddings.
type CloudAEmbedding struct {
	cfg    CloudAEmbeddingConfig
	client *genai.Client
	logger *zap.Logger
}

func NewCloudAEmbedding(ctx context.Context, cfg CloudAEmbeddingConfig, logger *zap.Logger) (*CloudAEmbedding, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to construct cloudA embedding client: %w", err)
	}
	return &CloudAEmbedding{cfg: cfg, client: client, logger: logger}, nil
}

func (c *CloudAEmbedding) Backend() EmbeddingBackend { return BackendCloudA }
func (c *CloudAEmbedding) Model() string             { return c.cfg.Model }
func (c *CloudAEmbedding) Dimensions() int            { return c.cfg.Dimension }

func (c *CloudAEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *CloudAEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += CloudABatchSize {
		end := start + CloudABatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		contents := make([]*genai.Content, 0, len(batch))
		for _, t := range batch {
			contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
		}

		resp, err := c.client.Models.EmbedContent(ctx, c.cfg.Model, contents, nil)
		if err != nil {
			if isAccessDenied(err) {
				return nil, ErrAccessDenied
			}
			if isTransient(err) {
				return nil, fmt.Errorf("%w: %v", ErrTransient, err)
			}
			return nil, fmt.Errorf("cloudA embed request failed: %w", err)
		}
		for _, e := range resp.Embeddings {
			out = append(out, e.Values)
		}
	}
	return out, nil
}
