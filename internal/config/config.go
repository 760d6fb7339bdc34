package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

var ErrInvalidValue = errors.New("invalid configuration value")

const (
	BackendWeaviate = "weaviate"
	BackendMongo    = "mongo"
	BackendChromem  = "chromem"

	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"catalogai"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"catalogai"`

	// Vector store
	VectorBackend    string `envconfig:"VECTOR_BACKEND" default:"weaviate"`
	WeaviateHost     string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme   string `envconfig:"WEAVIATE_SCHEME" default:"http"`
	MongoURI         string `envconfig:"MONGODB_URI"`
	MongoDB          string `envconfig:"MONGODB_DB" default:"catalogai"`
	MongoCollection  string `envconfig:"MONGODB_COLLECTION" default:"chunks"`
	MongoIndex       string `envconfig:"MONGODB_INDEX" default:"vector_index"`
	ChromemPath      string `envconfig:"CHROMEM_PATH" default:"data/chromem"`
	ChromemCompress  bool   `envconfig:"CHROMEM_COMPRESS" default:"false"`
	ChromemNamespace string `envconfig:"CHROMEM_COLLECTION" default:"brochure_chunks"`

	// Embedding service
	EmbedProvider    string `envconfig:"EMBED_PROVIDER" default:"gemini"`
	EmbedModel       string `envconfig:"EMBED_MODEL" default:"gemini-embedding-001"`
	EmbedBatchSize   int    `envconfig:"EMBED_BATCH_SIZE" default:"8"`
	EmbedMaxAttempts int    `envconfig:"EMBED_MAX_ATTEMPTS" default:"5"`
	EmbedBackoffMS   int    `envconfig:"EMBED_BACKOFF_MS" default:"1000"`
	EmbedConcurrency int    `envconfig:"EMBED_CONCURRENCY" default:"1"`

	// Generative service
	GenProvider    string  `envconfig:"GEN_PROVIDER" default:"gemini"`
	GenModel       string  `envconfig:"GEN_MODEL" default:"gemini-1.5-flash"`
	GenTemperature float32 `envconfig:"GEN_TEMPERATURE" default:"0"`

	GeminiAPIKey  string `envconfig:"GEMINI_API_KEY"`
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`

	// Chunking
	ChunkSize       int    `envconfig:"CHUNK_SIZE" default:"500"`
	ChunkOverlap    int    `envconfig:"CHUNK_OVERLAP" default:"50"`
	ChunkStrategy   string `envconfig:"CHUNK_STRATEGY" default:"window"`
	ChunkPagePrefix bool   `envconfig:"CHUNK_PAGE_PREFIX" default:"false"`

	// Retrieval and answers
	RetrievalTopK          int    `envconfig:"RETRIEVAL_TOP_K" default:"5"`
	RetrievalNumCandidates int    `envconfig:"RETRIEVAL_NUM_CANDIDATES" default:"100"`
	VocabularyPath         string `envconfig:"VOCABULARY_PATH"`
	StaticBaseURL          string `envconfig:"STATIC_BASE_URL" default:"http://localhost:8501/static"`

	// Documents
	PDFDir    string `envconfig:"PDF_DIR" default:"data/pdfs"`
	ImageRoot string `envconfig:"IMAGE_ROOT" default:"storage/images"`

	NSQLookupd    string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost      string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP      string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`
	NSQMaxMsgSize int64  `envconfig:"NSQ_MAX_MSG_SIZE" default:"10485760"` // 10MB

	EnableAPI          bool   `envconfig:"ENABLE_API" default:"true"`
	EnableIngestWorker bool   `envconfig:"ENABLE_INGEST_WORKER" default:"true"`
	IngestConcurrency  int    `envconfig:"INGEST_CONCURRENCY" default:"4"`
	MigrationPath      string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Server
	ServerPort   int    `envconfig:"SERVER_PORT" default:"8081"`
	QueryLogPath string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Ignore errors, as env vars might be set in the shell
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	_ = godotenv.Load(filepath.Join(cwd, "../.env"))

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values needed at process start. Provider credentials are
// checked lazily by the adapters on first use.
func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}

	switch c.VectorBackend {
	case BackendWeaviate:
		if c.WeaviateHost == "" {
			return fmt.Errorf("%w: WEAVIATE_HOST", ErrMissingRequired)
		}
	case BackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("%w: MONGODB_URI", ErrMissingRequired)
		}
	case BackendChromem:
	default:
		return fmt.Errorf("%w: VECTOR_BACKEND=%q", ErrInvalidValue, c.VectorBackend)
	}

	for key, p := range map[string]string{"EMBED_PROVIDER": c.EmbedProvider, "GEN_PROVIDER": c.GenProvider} {
		if p != ProviderGemini && p != ProviderOpenAI {
			return fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, p)
		}
	}
	if c.EmbedModel == "" {
		return fmt.Errorf("%w: EMBED_MODEL", ErrMissingRequired)
	}
	if c.GenModel == "" {
		return fmt.Errorf("%w: GEN_MODEL", ErrMissingRequired)
	}

	if c.EmbedBatchSize <= 0 || c.EmbedMaxAttempts <= 0 || c.EmbedConcurrency <= 0 {
		return fmt.Errorf("%w: embedding batch size, attempts and concurrency must be positive", ErrInvalidValue)
	}
	if c.RetrievalTopK <= 0 || c.RetrievalNumCandidates < c.RetrievalTopK {
		return fmt.Errorf("%w: RETRIEVAL_NUM_CANDIDATES must be >= RETRIEVAL_TOP_K > 0", ErrInvalidValue)
	}
	return nil
}

// EmbedBackoff is the delay before the first embedding retry.
func (c *Config) EmbedBackoff() time.Duration {
	return time.Duration(c.EmbedBackoffMS) * time.Millisecond
}
