package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	TransportWebSocket = "websocket"
	TransportRedis     = "redis"

	devAPIURL    = "http://localhost:3000/api"
	devSocketURL = "http://localhost:3000"
	prodAPIPath  = "/api"
	prodSocket   = "/"
)

// Config aggregates runtime configuration for the board client.
type Config struct {
	App      AppConfig
	API      APIConfig
	Realtime RealtimeConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Logger   LoggerConfig
}

// AppConfig controls process level behavior.
type AppConfig struct {
	Name     string
	Env      string
	Version  string
	Origin   string
	LoginURL string
}

// APIConfig points at the ticket backend.
type APIConfig struct {
	BaseURL               string
	RequestTimeoutSeconds int
}

// RealtimeConfig configures the sync channel.
type RealtimeConfig struct {
	Transport            string
	URL                  string
	Path                 string
	ReconnectAttempts    int
	ReconnectDelayMillis int
	ResyncOnReconnect    bool
	ReadTimeoutSeconds   int
}

// RedisConfig holds Redis connection values for the redis transport.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// StorageConfig locates the local credential storage.
type StorageConfig struct {
	Path string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string
	Output string
}

// Load reads configuration from environment variables, applying defaults where possible.
// Files listed in envFiles are loaded first; missing files are ignored.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	env := getEnv("APP_ENV", EnvDevelopment)
	origin := os.Getenv("APP_ORIGIN")

	apiDefault, socketDefault := devAPIURL, devSocketURL
	if env == EnvProduction {
		apiDefault, socketDefault = prodAPIPath, prodSocket
	}

	apiURL, err := resolveURL(origin, getEnv("API_URL", apiDefault))
	if err != nil {
		return nil, fmt.Errorf("invalid API_URL: %w", err)
	}
	socketURL, err := resolveURL(origin, getEnv("SOCKET_URL", socketDefault))
	if err != nil {
		return nil, fmt.Errorf("invalid SOCKET_URL: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:     getEnv("APP_NAME", "ticket-board"),
			Env:      env,
			Version:  getEnv("APP_VERSION", "dev"),
			Origin:   origin,
			LoginURL: getEnv("LOGIN_URL", "/login"),
		},
		API: APIConfig{
			BaseURL:               strings.TrimRight(apiURL, "/"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Realtime: RealtimeConfig{
			Transport:            strings.ToLower(getEnv("REALTIME_TRANSPORT", TransportWebSocket)),
			URL:                  socketURL,
			Path:                 getEnv("SOCKET_PATH", "/ws"),
			ReconnectAttempts:    getEnvAsInt("REALTIME_RECONNECT_ATTEMPTS", 5),
			ReconnectDelayMillis: getEnvAsInt("REALTIME_RECONNECT_DELAY_MS", 3000),
			ResyncOnReconnect:    getEnvAsBool("REALTIME_RESYNC_ON_RECONNECT", true),
			ReadTimeoutSeconds:   getEnvAsInt("REALTIME_READ_TIMEOUT_SECONDS", 60),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			Channel:  getEnv("REDIS_CHANNEL", "tickets"),
		},
		Storage: StorageConfig{
			Path: getEnv("LOCAL_STORAGE_PATH", defaultStoragePath()),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Output: getEnv("LOG_OUTPUT", "board.log"),
		},
	}

	switch cfg.Realtime.Transport {
	case TransportWebSocket, TransportRedis:
	default:
		return nil, fmt.Errorf("invalid REALTIME_TRANSPORT %q", cfg.Realtime.Transport)
	}

	return cfg, nil
}

// RequestTimeout returns the configured request timeout duration.
func (a APIConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// ReconnectDelay returns the fixed delay between reconnection attempts.
func (r RealtimeConfig) ReconnectDelay() time.Duration {
	if r.ReconnectDelayMillis < 0 {
		return 0
	}
	return time.Duration(r.ReconnectDelayMillis) * time.Millisecond
}

// ReadTimeout returns the websocket read deadline, zero when disabled.
func (r RealtimeConfig) ReadTimeout() time.Duration {
	if r.ReadTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(r.ReadTimeoutSeconds) * time.Second
}

// SocketEndpoint returns the websocket URL derived from the socket origin.
func (r RealtimeConfig) SocketEndpoint() (string, error) {
	u, err := url.Parse(r.URL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("socket url %q needs an absolute http(s) or ws(s) origin", r.URL)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(r.Path, "/")
	return u.String(), nil
}

// resolveURL resolves relative production paths against the configured origin.
func resolveURL(origin, ref string) (string, error) {
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	if refURL.IsAbs() {
		return refURL.String(), nil
	}
	if origin == "" {
		return "", fmt.Errorf("relative url %q requires APP_ORIGIN", ref)
	}
	base, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("invalid APP_ORIGIN: %w", err)
	}
	return base.ResolveReference(refURL).String(), nil
}

func defaultStoragePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "board.db"
	}
	return dir + string(os.PathSeparator) + "ticket-board" + string(os.PathSeparator) + "storage.db"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
