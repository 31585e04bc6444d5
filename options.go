package prethrift

import "go.uber.org/zap"

// Option configures the Client.
type Option func(*clientConfig)

type clientConfig struct {
	redisAddrs    []string
	redisPassword string
	memoryStore   bool

	openAIKey      string
	openAIBaseURL  string
	embeddingModel string
	visionModel    string
	dimensions     int

	lexiconPath string

	hnswM           int
	hnswEFConstruct int

	logger *zap.Logger
}

// WithRedis connects the client to a Redis instance with search support.
func WithRedis(addr, password string) Option {
	return func(c *clientConfig) {
		c.redisAddrs = []string{addr}
		c.redisPassword = password
	}
}

// WithMemoryStore runs the whole pipeline in-process without a database.
// Combined with no OpenAI key this gives a fully offline client: vectors
// come from the deterministic hash projection on both the catalog and the
// query side, so they share one space and searches stay consistent.
func WithMemoryStore() Option {
	return func(c *clientConfig) {
		c.memoryStore = true
	}
}

// WithOpenAI enables model-backed embeddings and image captioning. Without
// it the client embeds everything via the local hash projection.
func WithOpenAI(apiKey string) Option {
	return func(c *clientConfig) {
		c.openAIKey = apiKey
	}
}

// WithOpenAIBaseURL points provider calls at an OpenAI-compatible endpoint.
func WithOpenAIBaseURL(baseURL string) Option {
	return func(c *clientConfig) {
		c.openAIBaseURL = baseURL
	}
}

// WithEmbeddingModel overrides the embedding model and vector width.
// Defaults: text-embedding-3-small at 1536 dimensions. Changing dimensions
// on an existing index requires a rebuild.
func WithEmbeddingModel(model string, dimensions int) Option {
	return func(c *clientConfig) {
		c.embeddingModel = model
		c.dimensions = dimensions
	}
}

// WithVisionModel overrides the captioning model (default gpt-4o-mini).
func WithVisionModel(model string) Option {
	return func(c *clientConfig) {
		c.visionModel = model
	}
}

// WithLexiconFile loads the fashion vocabulary from a YAML file instead of
// the compiled-in default.
func WithLexiconFile(path string) Option {
	return func(c *clientConfig) {
		c.lexiconPath = path
	}
}

// WithHNSW configures HNSW index parameters (M and EF construction).
// Defaults: M=32, EFConstruct=400.
func WithHNSW(m, efConstruct int) Option {
	return func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	}
}

// WithLogger enables structured logging. Default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}
