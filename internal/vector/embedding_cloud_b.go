package vector

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// CloudBEmbeddingConfig configures the OpenAI-backed embedding client.
type CloudBEmbeddingConfig struct {
	APIKey    string
	Model     string
	Dimension int
}

// CloudBEmbedding is the cloudB EmbeddingModel backend. Grounded on
// josephgoksu-TaskWing's internal/knowledge/embed.go, which calls
// openai.NewClient(apiKey).CreateEmbeddings with openai.EmbeddingRequest.
type CloudBEmbedding struct {
	cfg    CloudBEmbeddingConfig
	client *openai.Client
	logger *zap.Logger
}

func NewCloudBEmbedding(cfg CloudBEmbeddingConfig, logger *zap.Logger) *CloudBEmbedding {
	return &CloudBEmbedding{cfg: cfg, client: openai.NewClient(cfg.APIKey), logger: logger}
}

func (c *CloudBEmbedding) Backend() EmbeddingBackend { return BackendCloudB }
func (c *CloudBEmbedding) Model() string             { return c.cfg.Model }
func (c *CloudBEmbedding) Dimensions() int            { return c.cfg.Dimension }

func (c *CloudBEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *CloudBEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += CloudBBatchSize {
		end := start + CloudBBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input: batch,
			Model: openai.EmbeddingModel(c.cfg.Model),
		})
		if err != nil {
			if isAccessDenied(err) {
				return nil, ErrAccessDenied
			}
			if isTransient(err) {
				return nil, fmt.Errorf("%w: %v", ErrTransient, err)
			}
			return nil, fmt.Errorf("cloudB embed request failed: %w", err)
		}
		for _, d := range resp.Data {
			out = append(out, d.Embedding)
		}
	}
	return out, nil
}
