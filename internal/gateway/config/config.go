package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	Env  string

	// TripStoreDSN selects the Postgres backend; empty means in-memory.
	TripStoreDSN string

	LLM     LLMConfig
	Search  SearchConfig
	Archive ArchiveConfig

	// AuthTokens is the static bearer-token allowlist of the local auth
	// boundary, formatted token=userID. Real auth lives upstream.
	AuthTokens map[string]string
}

type LLMConfig struct {
	// Provider is gemini, openrouter or fake.
	Provider string
	Model    string
	APIKey   string
	RPS      float64
	Burst    int
}

type SearchConfig struct {
	APIKey  string
	Timeout time.Duration
}

type ArchiveConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8081", "server port")
	flag.Parse()

	if envPort := os.Getenv("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	return &Config{
		Port:         *port,
		Env:          env,
		TripStoreDSN: strings.TrimSpace(os.Getenv("TRIP_STORE_PG_DSN")),
		LLM:          loadLLMConfig(),
		Search:       loadSearchConfig(),
		Archive:      loadArchiveConfig(env),
		AuthTokens:   parseAuthTokens(os.Getenv("AUTH_TOKENS")),
	}, nil
}

func loadLLMConfig() LLMConfig {
	provider := strings.ToLower(strings.TrimSpace(os.Getenv("LLM_PROVIDER")))
	if provider == "" {
		provider = "fake"
	}
	model := strings.TrimSpace(os.Getenv("LLM_MODEL"))
	if model == "" {
		switch provider {
		case "gemini":
			model = "gemini-2.0-flash"
		case "openrouter":
			model = "openai/gpt-4o-mini"
		}
	}
	apiKey := strings.TrimSpace(os.Getenv("LLM_API_KEY"))
	if apiKey == "" {
		switch provider {
		case "gemini":
			apiKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
		case "openrouter":
			apiKey = strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY"))
		}
	}
	rps, _ := strconv.ParseFloat(strings.TrimSpace(os.Getenv("LLM_RPS")), 64)
	burst, _ := strconv.Atoi(strings.TrimSpace(os.Getenv("LLM_BURST")))
	return LLMConfig{Provider: provider, Model: model, APIKey: apiKey, RPS: rps, Burst: burst}
}

func loadSearchConfig() SearchConfig {
	timeout := 10 * time.Second
	if raw := strings.TrimSpace(os.Getenv("SEARCH_TIMEOUT_SECONDS")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			timeout = time.Duration(n) * time.Second
		}
	}
	return SearchConfig{
		APIKey:  strings.TrimSpace(os.Getenv("BRAVE_SEARCH_API_KEY")),
		Timeout: timeout,
	}
}

func loadArchiveConfig(env string) ArchiveConfig {
	endpoint := resolveArchiveEndpoint(env)
	return ArchiveConfig{
		Enabled:   strings.EqualFold(strings.TrimSpace(env), "local") || endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_BUCKET")), "planfirst-snapshots"),
		UseSSL:    resolveArchiveUseSSL(env),
	}
}

func resolveArchiveEndpoint(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_MINIO_ENDPOINT")), "minio:9000")
	}
	return strings.TrimSpace(os.Getenv("ARCHIVE_S3_ENDPOINT"))
}

func resolveArchiveUseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	raw := strings.TrimSpace(os.Getenv("ARCHIVE_S3_USE_SSL"))
	if raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

// parseAuthTokens reads "token=user,token=user" pairs. A bare token maps to
// a user id equal to the token.
func parseAuthTokens(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		if tok, user, ok := strings.Cut(pair, "="); ok {
			out[strings.TrimSpace(tok)] = strings.TrimSpace(user)
		} else {
			out[pair] = pair
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
