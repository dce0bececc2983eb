package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	REST      RESTConfig
	Logging   LoggingConfig
	Kafka     KafkaConfig
	Security  SecurityConfig
	Images    ImagesConfig
	Websocket WebsocketConfig
	Session   SessionConfig
}

type ServerConfig struct {
	Port string
}

// RESTConfig holds the upstream travel API settings. They are read once at start up.
type RESTConfig struct {
	BaseURL       string
	Timeout       time.Duration
	RetryAttempts uint
	RetryDelay    time.Duration
}

type LoggingConfig struct {
	Directory string
	Level     string
	Format    string
}

type KafkaConfig struct {
	Brokers []string
	GroupID string
	// Topics maps a canonical entity to the upstream topics announcing its changes.
	Topics map[string][]string
}

// AllTopics flattens Topics, dropping duplicates.
func (k KafkaConfig) AllTopics() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, entity := range sortedKeys(k.Topics) {
		for _, topic := range k.Topics[entity] {
			if _, ok := seen[topic]; ok {
				continue
			}
			seen[topic] = struct{}{}
			out = append(out, topic)
		}
	}
	return out
}

type SecurityConfig struct {
	JWTSecret    string
	JWTPublicKey string
}

type ImagesConfig struct {
	PlaceholderURL string
}

type WebsocketConfig struct {
	SendBuffer     int
	CommandTimeout time.Duration
	// EventActions are the broker actions forwarded to clients and triggering refreshes.
	EventActions []string
}

type SessionConfig struct {
	LoginPath string
}

const (
	defaultPort           = "8080"
	defaultBaseURL        = "http://localhost:3000/api"
	defaultTimeout        = 10 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryDelay     = 200 * time.Millisecond
	defaultLogDir         = "./logs"
	defaultLogLevel       = "info"
	defaultLogFormat      = "text"
	defaultGroupID        = "trip-desk-ws"
	defaultSendBuffer     = 32
	defaultCommandTimeout = 10 * time.Second
	defaultLoginPath      = "/login"
	defaultEventActions   = "created,updated,deleted"
)

// Load reads the configuration from the environment. Callers load .env files beforehand.
func Load() (*Config, error) {
	timeout, err := durationEnv("API_TIMEOUT", defaultTimeout)
	if err != nil {
		return nil, err
	}
	retryAttempts, err := intEnv("API_RETRY_ATTEMPTS", defaultRetryAttempts)
	if err != nil {
		return nil, err
	}
	if retryAttempts < 1 {
		return nil, fmt.Errorf("API_RETRY_ATTEMPTS must be at least 1, got %d", retryAttempts)
	}
	retryDelay, err := durationEnv("API_RETRY_DELAY", defaultRetryDelay)
	if err != nil {
		return nil, err
	}
	sendBuffer, err := intEnv("WS_SEND_BUFFER", defaultSendBuffer)
	if err != nil {
		return nil, err
	}
	if sendBuffer < 1 {
		return nil, fmt.Errorf("WS_SEND_BUFFER must be positive, got %d", sendBuffer)
	}
	commandTimeout, err := durationEnv("WS_COMMAND_TIMEOUT", defaultCommandTimeout)
	if err != nil {
		return nil, err
	}
	topics, err := parseTopics(os.Getenv("KAFKA_TOPICS"))
	if err != nil {
		return nil, err
	}

	brokersRaw := strings.TrimSpace(os.Getenv("KAFKA_BROKERS"))
	if brokersRaw == "" {
		brokersRaw = os.Getenv("KAFKA_BROKER")
	}

	return &Config{
		Server: ServerConfig{Port: stringEnv("PORT", defaultPort)},
		REST: RESTConfig{
			BaseURL:       strings.TrimRight(stringEnv("API_BASE_URL", defaultBaseURL), "/"),
			Timeout:       timeout,
			RetryAttempts: uint(retryAttempts),
			RetryDelay:    retryDelay,
		},
		Logging: LoggingConfig{
			Directory: stringEnv("LOG_DIR", defaultLogDir),
			Level:     stringEnv("LOG_LEVEL", defaultLogLevel),
			Format:    stringEnv("LOG_FORMAT", defaultLogFormat),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(brokersRaw, ","),
			GroupID: stringEnv("KAFKA_GROUP_ID", defaultGroupID),
			Topics:  topics,
		},
		Security: SecurityConfig{
			JWTSecret:    strings.TrimSpace(os.Getenv("JWT_SECRET")),
			JWTPublicKey: strings.ReplaceAll(strings.TrimSpace(os.Getenv("JWT_PUBLIC_KEY")), `\n`, "\n"),
		},
		Images:    ImagesConfig{PlaceholderURL: strings.TrimSpace(os.Getenv("IMAGE_PLACEHOLDER_URL"))},
		Websocket: WebsocketConfig{
			SendBuffer:     sendBuffer,
			CommandTimeout: commandTimeout,
			EventActions:   splitList(strings.ToLower(stringEnv("WS_EVENT_ACTIONS", defaultEventActions)), ","),
		},
		Session: SessionConfig{LoginPath: stringEnv("LOGIN_PATH", defaultLoginPath)},
	}, nil
}

// parseTopics reads "entity=topic1,topic2;entity2=topic3".
func parseTopics(raw string) (map[string][]string, error) {
	topics := make(map[string][]string)
	for _, group := range splitList(raw, ";") {
		entity, list, ok := strings.Cut(group, "=")
		entity = strings.ToLower(strings.TrimSpace(entity))
		if !ok || entity == "" {
			return nil, fmt.Errorf("KAFKA_TOPICS: malformed group %q", group)
		}
		names := splitList(list, ",")
		if len(names) == 0 {
			return nil, fmt.Errorf("KAFKA_TOPICS: entity %q has no topics", entity)
		}
		topics[entity] = append(topics[entity], names...)
	}
	return topics, nil
}

func stringEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

// durationEnv accepts Go durations ("5s") or a bare number of milliseconds.
func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	if ms, err := strconv.Atoi(raw); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("%s: negative duration %d", key, ms)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %s", key, d)
	}
	return d, nil
}

func splitList(raw, sep string) []string {
	parts := strings.Split(raw, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
