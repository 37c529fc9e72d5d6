package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	Environment string

	DatabaseURL string

	RedisURL string

	BusDriver           string
	KafkaBrokers        []string
	KafkaGroupPrefix    string
	BusPublishTimeout   time.Duration
	BusHandlerTimeout   time.Duration
	BusReconnectMaxWait time.Duration

	DispatchChannel       string
	CommentCreatedChannel string

	SessionTTL        time.Duration
	SessionCookieName string
	CookieSecure      bool

	WSHandshakeTimeout time.Duration
	WSWriteTimeout     time.Duration
	WSPingInterval     time.Duration
	WSMaxMessageSize   int64

	UserServiceURL          string
	PostsServiceURL         string
	NotificationsServiceURL string
	ProxyTimeout            time.Duration

	JWTSecret        string
	JWTAccessExpiry  time.Duration
	JWTRefreshExpiry time.Duration

	CORSOrigins string

	ResendAPIKey string
	FromEmail    string
	Domain       string
}

// Load reads configuration from the environment. defaultPort is used when
// PORT is unset so each binary keeps its own conventional port.
func Load(defaultPort string) *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", defaultPort)
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "redis://localhost:6379")

	v.SetDefault("BUS_DRIVER", "redis")
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_GROUP_PREFIX", "socialnet")
	v.SetDefault("BUS_PUBLISH_TIMEOUT", 3*time.Second)
	v.SetDefault("BUS_HANDLER_TIMEOUT", 5*time.Second)
	v.SetDefault("BUS_RECONNECT_MAX_WAIT", 30*time.Second)

	v.SetDefault("NOTIFICATIONS_READY_TO_DISPATCH", "notifications_created_to_dispatch")
	v.SetDefault("COMMENT_CREATED_EVENT", "comments_created")

	v.SetDefault("SESSION_TTL", time.Hour)
	v.SetDefault("SESSION_COOKIE_NAME", "sid")
	v.SetDefault("COOKIE_SECURE", false)

	v.SetDefault("WS_HANDSHAKE_TIMEOUT", 10*time.Second)
	v.SetDefault("WS_WRITE_TIMEOUT", 5*time.Second)
	v.SetDefault("WS_PING_INTERVAL", 25*time.Second)
	v.SetDefault("WS_MAX_MESSAGE_SIZE", 4096)

	v.SetDefault("USER_SERVICE_URL", "http://localhost:4000")
	v.SetDefault("POSTS_SERVICE_URL", "http://localhost:4001")
	v.SetDefault("NOTIFICATIONS_SERVICE_URL", "http://localhost:4002")
	v.SetDefault("PROXY_TIMEOUT", 30*time.Second)

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ACCESS_EXPIRY", 15*time.Minute)
	v.SetDefault("JWT_REFRESH_EXPIRY", 7*24*time.Hour)

	v.SetDefault("CORS_ORIGINS", "http://localhost:4200")

	v.SetDefault("RESEND_API_KEY", "")
	v.SetDefault("FROM_EMAIL", "noreply@example.com")
	v.SetDefault("DOMAIN", "localhost:4200")

	return &Config{
		Port:        v.GetString("PORT"),
		Environment: v.GetString("ENVIRONMENT"),

		DatabaseURL: v.GetString("DATABASE_URL"),

		RedisURL: v.GetString("REDIS_URL"),

		BusDriver:           strings.ToLower(v.GetString("BUS_DRIVER")),
		KafkaBrokers:        splitList(v.GetString("KAFKA_BROKERS")),
		KafkaGroupPrefix:    v.GetString("KAFKA_GROUP_PREFIX"),
		BusPublishTimeout:   v.GetDuration("BUS_PUBLISH_TIMEOUT"),
		BusHandlerTimeout:   v.GetDuration("BUS_HANDLER_TIMEOUT"),
		BusReconnectMaxWait: v.GetDuration("BUS_RECONNECT_MAX_WAIT"),

		DispatchChannel:       v.GetString("NOTIFICATIONS_READY_TO_DISPATCH"),
		CommentCreatedChannel: v.GetString("COMMENT_CREATED_EVENT"),

		SessionTTL:        v.GetDuration("SESSION_TTL"),
		SessionCookieName: v.GetString("SESSION_COOKIE_NAME"),
		CookieSecure:      v.GetBool("COOKIE_SECURE"),

		WSHandshakeTimeout: v.GetDuration("WS_HANDSHAKE_TIMEOUT"),
		WSWriteTimeout:     v.GetDuration("WS_WRITE_TIMEOUT"),
		WSPingInterval:     v.GetDuration("WS_PING_INTERVAL"),
		WSMaxMessageSize:   v.GetInt64("WS_MAX_MESSAGE_SIZE"),

		UserServiceURL:          strings.TrimRight(v.GetString("USER_SERVICE_URL"), "/"),
		PostsServiceURL:         strings.TrimRight(v.GetString("POSTS_SERVICE_URL"), "/"),
		NotificationsServiceURL: strings.TrimRight(v.GetString("NOTIFICATIONS_SERVICE_URL"), "/"),
		ProxyTimeout:            v.GetDuration("PROXY_TIMEOUT"),

		JWTSecret:        v.GetString("JWT_SECRET"),
		JWTAccessExpiry:  v.GetDuration("JWT_ACCESS_EXPIRY"),
		JWTRefreshExpiry: v.GetDuration("JWT_REFRESH_EXPIRY"),

		CORSOrigins: v.GetString("CORS_ORIGINS"),

		ResendAPIKey: v.GetString("RESEND_API_KEY"),
		FromEmail:    v.GetString("FROM_EMAIL"),
		Domain:       v.GetString("DOMAIN"),
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
