package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads configuration from environment variables, with an optional
// local .env overlay. Values in .env take precedence over pre-existing
// process environment variables so a checked-in .env deterministically
// controls local development.
func Load() (Config, error) {
	_ = godotenv.Overload()

	cfg := Config{}

	cfg.HTTPAddr = firstNonEmpty(os.Getenv("HTTP_ADDR"), ":8080")
	cfg.LogLevel = firstNonEmpty(os.Getenv("LOG_LEVEL"), "info")
	cfg.LogPath = strings.TrimSpace(os.Getenv("LOG_PATH"))

	cfg.S3 = S3Config{
		Bucket:       strings.TrimSpace(os.Getenv("S3_BUCKET")),
		Region:       firstNonEmpty(os.Getenv("S3_REGION"), "us-east-1"),
		Endpoint:     strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
		AccessKey:    strings.TrimSpace(os.Getenv("S3_ACCESS_KEY")),
		SecretKey:    strings.TrimSpace(os.Getenv("S3_SECRET_KEY")),
		UsePathStyle: parseBool(os.Getenv("S3_USE_PATH_STYLE"), false),
		Prefix:       strings.TrimSpace(os.Getenv("S3_PREFIX")),
	}
	cfg.S3.PresignExpiry = parseDuration(os.Getenv("S3_PRESIGN_EXPIRY_SECONDS"), 15*time.Minute)
	cfg.S3.SSE = S3SSEConfig{
		Mode:     strings.ToLower(strings.TrimSpace(os.Getenv("S3_SSE_MODE"))),
		KMSKeyID: strings.TrimSpace(os.Getenv("S3_SSE_KMS_KEY_ID")),
	}

	cfg.Qdrant = QdrantConfig{
		DSN:              firstNonEmpty(os.Getenv("QDRANT_DSN"), "http://localhost:6334"),
		VisualCollection: firstNonEmpty(os.Getenv("QDRANT_VISUAL_COLLECTION"), "doc_visual"),
		TextCollection:   firstNonEmpty(os.Getenv("QDRANT_TEXT_COLLECTION"), "doc_text"),
		VisualDim:        parseIntDefault(os.Getenv("QDRANT_VISUAL_DIM"), 128),
		TextDim:          parseIntDefault(os.Getenv("QDRANT_TEXT_DIM"), 128),
	}

	cfg.Registry = RegistryConfig{
		DSN: firstNonEmpty(os.Getenv("REGISTRY_DSN"), os.Getenv("DATABASE_URL")),
	}

	cfg.Encoder = EncoderConfig{
		VisualEndpoint: strings.TrimSpace(os.Getenv("ENCODER_VISUAL_ENDPOINT")),
		TextEndpoint:   strings.TrimSpace(os.Getenv("ENCODER_TEXT_ENDPOINT")),
		Device:         firstNonEmpty(os.Getenv("ENCODER_DEVICE"), "cpu"),
		MaxBatch:       parseIntDefault(os.Getenv("ENCODER_MAX_BATCH"), 8),
	}
	cfg.Encoder.Timeout = parseDuration(os.Getenv("ENCODER_TIMEOUT_SECONDS"), 60*time.Second)

	cfg.Parser = ParserConfig{
		ParserEndpoint:    strings.TrimSpace(os.Getenv("PARSER_ENDPOINT")),
		ConverterEndpoint: strings.TrimSpace(os.Getenv("CONVERTER_ENDPOINT")),
	}
	cfg.Parser.Timeout = parseDuration(os.Getenv("PARSER_TIMEOUT_SECONDS"), 120*time.Second)

	cfg.LLMClient.Provider = strings.TrimSpace(os.Getenv("LLM_PROVIDER"))
	cfg.LLMClient.OpenAI = OpenAIConfig{
		APIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		Model:   firstNonEmpty(os.Getenv("OPENAI_MODEL"), "gpt-4o-mini"),
		BaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		API:     firstNonEmpty(os.Getenv("OPENAI_API"), "responses"),
	}
	cfg.LLMClient.Anthropic = AnthropicConfig{
		APIKey:  strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
		Model:   firstNonEmpty(os.Getenv("ANTHROPIC_MODEL"), "claude-sonnet-4-5"),
		BaseURL: strings.TrimSpace(os.Getenv("ANTHROPIC_BASE_URL")),
	}
	cfg.LLMClient.Google = GoogleConfig{
		APIKey:  strings.TrimSpace(os.Getenv("GOOGLE_LLM_API_KEY")),
		Model:   firstNonEmpty(os.Getenv("GOOGLE_LLM_MODEL"), "gemini-2.5-flash"),
		BaseURL: strings.TrimSpace(os.Getenv("GOOGLE_LLM_BASE_URL")),
	}

	cfg.Sidecar = SidecarConfig{
		DataRoot:     firstNonEmpty(os.Getenv("DATA_ROOT"), "./data"),
		StructureLRU: parseIntDefault(os.Getenv("STRUCTURE_LRU_SIZE"), 256),
	}
	cfg.Sidecar.InlineMaxSize = parseInt64Default(os.Getenv("MARKDOWN_INLINE_MAX_BYTES"), 1024)
	cfg.Sidecar.HardCapSize = parseInt64Default(os.Getenv("MARKDOWN_HARD_CAP_BYTES"), 10*1024*1024)

	cfg.Queue = QueueConfig{
		MaxParallelJobs: parseIntDefault(os.Getenv("MAX_PARALLEL_JOBS"), 4),
		QueueCapacity:   parseIntDefault(os.Getenv("QUEUE_CAPACITY"), 256),
	}
	cfg.Queue.JobTimeout = parseDuration(os.Getenv("JOB_TIMEOUT_SECONDS"), 30*time.Minute)

	cfg.WS = WSConfig{
		MaxConnections: parseIntDefault(os.Getenv("WS_MAX_CONNECTIONS"), 0),
	}

	cfg.Research = ResearchConfig{
		MaxTokens:            parseIntDefault(os.Getenv("LLM_MAX_TOKENS"), 2048),
		Temperature:          parseFloatDefault(os.Getenv("LLM_TEMPERATURE"), 0.2),
		NumSources:           parseIntDefault(os.Getenv("RESEARCH_NUM_SOURCES"), 10),
		MaxSources:           parseIntDefault(os.Getenv("RESEARCH_MAX_SOURCES"), 20),
		PreprocessEnabled:    parseBool(os.Getenv("PREPROCESS_ENABLED"), false),
		PreprocessStrategy:   firstNonEmpty(os.Getenv("PREPROCESS_STRATEGY"), "compress"),
		PreprocessThreshold:  parseFloatDefault(os.Getenv("PREPROCESS_THRESHOLD"), 7),
		PreprocessMaxSources: parseIntDefault(os.Getenv("PREPROCESS_MAX_SOURCES"), 20),
	}

	cfg.Obs = ObsConfig{
		ServiceName:    firstNonEmpty(os.Getenv("OTEL_SERVICE_NAME"), "docintel"),
		ServiceVersion: strings.TrimSpace(os.Getenv("SERVICE_VERSION")),
		Environment:    firstNonEmpty(os.Getenv("ENVIRONMENT"), "development"),
		OTLPEndpoint:   strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
	}

	return cfg, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v != "" {
			return v
		}
	}
	return ""
}

func parseBool(s string, def bool) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return strings.EqualFold(s, "true") || s == "1" || strings.EqualFold(s, "yes")
}

func parseIntDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func parseFloatDefault(s string, def float64) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return n
}

func parseInt64Default(s string, def int64) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func parseDuration(s string, def time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return time.Duration(n) * time.Second
}
