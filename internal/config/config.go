// Package config loads process configuration from the environment.
package config

import "time"

// Config is the fully resolved runtime configuration for the service.
type Config struct {
	HTTPAddr string
	LogLevel string
	LogPath  string

	S3         S3Config
	Qdrant     QdrantConfig
	Registry   RegistryConfig
	Encoder    EncoderConfig
	Parser     ParserConfig
	LLMClient  LLMConfig
	Sidecar    SidecarConfig
	Queue      QueueConfig
	WS         WSConfig
	Obs        ObsConfig
	Research   ResearchConfig
}

// S3Config configures the object-store client used for uploaded assets.
type S3Config struct {
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UsePathStyle  bool
	Prefix        string
	PresignExpiry time.Duration
	SSE           S3SSEConfig
}

// S3SSEConfig configures server-side encryption applied to objects written
// through S3Store.Put.
type S3SSEConfig struct {
	Mode     string // "", "sse-s3", or "sse-kms"
	KMSKeyID string // required when Mode is "sse-kms"
}

// QdrantConfig configures the dual visual/text vector collections.
type QdrantConfig struct {
	DSN              string
	VisualCollection string
	TextCollection   string
	VisualDim        int
	TextDim          int
}

// RegistryConfig configures the Document/Job registry backend.
type RegistryConfig struct {
	DSN string // empty selects the in-memory backend
}

// EncoderConfig configures the visual and text embedding backends.
type EncoderConfig struct {
	VisualEndpoint string
	TextEndpoint   string
	Device         string
	MaxBatch       int
	Timeout        time.Duration
}

// ParserConfig configures the external document parsing/conversion services.
type ParserConfig struct {
	ParserEndpoint    string
	ConverterEndpoint string
	Timeout           time.Duration
}

// LLMConfig selects and configures the foundation-model provider used by the
// research engine.
type LLMConfig struct {
	Provider string // "", "openai", "anthropic", "google", "local"

	OpenAI    OpenAIConfig
	Anthropic AnthropicConfig
	Google    GoogleConfig
}

// OpenAIConfig holds OpenAI/OpenAI-compatible ("local") provider settings.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	API     string // "completions" or "responses"; not read by the openai client
}

// AnthropicConfig holds Anthropic provider settings.
type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// GoogleConfig holds Google Gemini provider settings.
type GoogleConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// SidecarConfig configures the on-disk asset and markdown sidecar store.
type SidecarConfig struct {
	DataRoot      string
	InlineMaxSize int64 // MARKDOWN_INLINE_MAX_BYTES; sidecar.EncodeMarkdown uses its own fixed 1 KiB inline threshold
	HardCapSize   int64 // MARKDOWN_HARD_CAP_BYTES; sidecar.EncodeMarkdown uses its own fixed 10 MiB cap
	StructureLRU  int   // number of PageStructure blobs cached in memory
}

// QueueConfig configures the ingestion worker pool.
type QueueConfig struct {
	MaxParallelJobs int
	QueueCapacity   int
	JobTimeout      time.Duration
}

// WSConfig configures the progress-streaming broadcaster.
type WSConfig struct {
	MaxConnections int
}

// ResearchConfig configures the Research Engine's default invocation and
// optional local-model preprocessing.
type ResearchConfig struct {
	MaxTokens   int
	Temperature float64
	NumSources  int // default num_sources when a request omits it
	MaxSources  int // hard ceiling on num_sources regardless of request

	PreprocessEnabled    bool
	PreprocessStrategy   string // "compress" | "filter" | "synthesize"
	PreprocessThreshold  float64
	PreprocessMaxSources int
}

// ObsConfig configures OpenTelemetry export.
type ObsConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
}
