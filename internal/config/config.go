package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every configuration group for the service.
type Config struct {
	Server   ServerConfig
	GigaChat GigaChatConfig
	Memory   MemoryConfig
}

// Load reads the full configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	gigachat, err := loadGigaChatConfig()
	if err != nil {
		return nil, err
	}

	memory, err := loadMemoryConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, GigaChat: gigachat, Memory: memory}, nil
}

// ServerConfig describes the HTTP listener and CORS policy.
type ServerConfig struct {
	Addr        string
	FrontendURL string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	addr := port
	if !strings.Contains(port, ":") {
		if strings.Contains(port, " ") {
			return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
		}
		addr = ":" + port
	}

	return ServerConfig{
		Addr:        addr,
		FrontendURL: getEnvOrDefault("FRONTEND_URL", "http://localhost:3000"),
	}, nil
}

// GigaChatConfig carries the identity-provider and completion-provider
// settings. Credentials are never hardcoded; they must arrive here.
type GigaChatConfig struct {
	ClientID     string
	ClientSecret string

	OAuthURL string
	ChatURL  string
	Scope    string

	Model          string
	Temperature    float64
	StreamResponse bool

	// TokenTTL is the fallback validity window when the provider does not
	// advertise an expiry; TokenMargin is subtracted from the expiry before
	// a cached token is considered usable.
	TokenTTL    time.Duration
	TokenMargin time.Duration

	TokenTimeout time.Duration
	ChatTimeout  time.Duration
}

// Enabled reports whether provider credentials were supplied.
func (c GigaChatConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

func loadGigaChatConfig() (GigaChatConfig, error) {
	temperature := 0.7
	if override, err := parseOptionalFloatEnv("GIGACHAT_TEMPERATURE"); err != nil {
		return GigaChatConfig{}, err
	} else if override != nil {
		temperature = *override
	}

	stream, err := parseBoolEnv("GIGACHAT_STREAM", true)
	if err != nil {
		return GigaChatConfig{}, err
	}

	tokenTTL, err := parseSecondsEnv("GIGACHAT_TOKEN_TTL", 1700*time.Second)
	if err != nil {
		return GigaChatConfig{}, err
	}

	tokenMargin, err := parseSecondsEnv("GIGACHAT_TOKEN_MARGIN", 60*time.Second)
	if err != nil {
		return GigaChatConfig{}, err
	}

	tokenTimeout, err := parseSecondsEnv("GIGACHAT_TOKEN_TIMEOUT", 30*time.Second)
	if err != nil {
		return GigaChatConfig{}, err
	}

	chatTimeout, err := parseSecondsEnv("GIGACHAT_TIMEOUT", 60*time.Second)
	if err != nil {
		return GigaChatConfig{}, err
	}

	return GigaChatConfig{
		ClientID:       strings.TrimSpace(os.Getenv("GIGACHAT_CLIENT_ID")),
		ClientSecret:   strings.TrimSpace(os.Getenv("GIGACHAT_CLIENT_SECRET")),
		OAuthURL:       getEnvOrDefault("GIGACHAT_OAUTH_URL", "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"),
		ChatURL:        getEnvOrDefault("GIGACHAT_CHAT_URL", "https://gigachat.devices.sberbank.ru/api/v1/chat/completions"),
		Scope:          getEnvOrDefault("GIGACHAT_SCOPE", "GIGACHAT_API_PERS"),
		Model:          getEnvOrDefault("GIGACHAT_MODEL", "GigaChat"),
		Temperature:    temperature,
		StreamResponse: stream,
		TokenTTL:       tokenTTL,
		TokenMargin:    tokenMargin,
		TokenTimeout:   tokenTimeout,
		ChatTimeout:    chatTimeout,
	}, nil
}

// MemoryConfig describes the conversation memory layer. Retention caps how
// many messages the store keeps; ContextWindow caps how many of those are
// included in the outbound context. The two knobs are independent.
type MemoryConfig struct {
	DataDir       string
	Retention     int
	ContextWindow int
}

func loadMemoryConfig() (MemoryConfig, error) {
	retention := 100
	if override, err := parseOptionalIntEnv("MEMORY_RETENTION"); err != nil {
		return MemoryConfig{}, err
	} else if override != nil {
		retention = *override
	}

	window := 30
	if override, err := parseOptionalIntEnv("CONTEXT_WINDOW"); err != nil {
		return MemoryConfig{}, err
	} else if override != nil {
		window = *override
	}

	return MemoryConfig{
		DataDir:       strings.TrimSpace(os.Getenv("MEMORY_DIR")),
		Retention:     retention,
		ContextWindow: window,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseSecondsEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return time.Duration(seconds) * time.Second, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
