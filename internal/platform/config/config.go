package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures process-level configuration so main stays lean. Values come
// from the environment; defaults suit local development only.
type Config struct {
	Addr          string
	JWTSigningKey string

	DatabaseURL string
	Redis       RedisConfig
	Kafka       KafkaConfig

	Telegram TelegramConfig
	Relay    RelayConfig
	Reveal   RevealConfig
}

// RedisConfig tunes the go-redis client used for reply associations.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig points the audit outbox worker at the broker.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// TelegramConfig configures the chat transport.
type TelegramConfig struct {
	Token       string
	CallTimeout time.Duration
}

// RelayConfig holds publication loop and submission settings.
type RelayConfig struct {
	ChannelName    string
	PublishPeriod  time.Duration
	PublishStagger time.Duration
	DailyQuota     int
}

// RevealConfig holds the paid reveal settings. The fee is a display amount;
// confirmation is a human decision, not a verified transaction.
type RevealConfig struct {
	FeeAmount  string
	PixKey     string
	ApproverID string
	RequestTTL time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:          envOr("CORREIO_ADDR", ":8080"),
		JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envIntOr("REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDurationOr("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDurationOr("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDurationOr("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
			Topic:   envOr("KAFKA_AUDIT_TOPIC", "correio.audit"),
		},
		Telegram: TelegramConfig{
			Token:       os.Getenv("TELEGRAM_BOT_TOKEN"),
			CallTimeout: envDurationOr("TELEGRAM_CALL_TIMEOUT", 10*time.Second),
		},
		Relay: RelayConfig{
			ChannelName:    envOr("RELAY_CHANNEL", "correio-elegante"),
			PublishPeriod:  envDurationOr("RELAY_PUBLISH_PERIOD", time.Hour),
			PublishStagger: envDurationOr("RELAY_PUBLISH_STAGGER", 2*time.Second),
			DailyQuota:     envIntOr("RELAY_DAILY_QUOTA", 2),
		},
		Reveal: RevealConfig{
			FeeAmount:  envOr("REVEAL_FEE_AMOUNT", "2.00"),
			PixKey:     os.Getenv("REVEAL_PIX_KEY"),
			ApproverID: os.Getenv("REVEAL_APPROVER_ID"),
			RequestTTL: envDurationOr("REVEAL_REQUEST_TTL", 30*time.Minute),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
