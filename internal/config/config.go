package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 限流策略名称，对应 Config.RateLimits 的 key
const (
	PolicyVote       = "vote"
	PolicyCreatePost = "create_post"
	PolicyModerate   = "moderate"
	PolicyLogin      = "login"
)

type ServerConfig struct {
	Port          string
	Debug         bool
	SiteURL       string
	SessionSecret string
	CORSOrigins   []string
	// 进程内 IP 防刷
	ThrottleRPS   float64
	ThrottleBurst int
}

type DatabaseConfig struct {
	URL   string
	Debug bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret   string
	TokenTTL    time.Duration
	AdminEmails []string
}

// RateLimit is one endpoint's budget: at most Limit allowed requests per Window.
type RateLimit struct {
	Limit  int
	Window time.Duration
}

type FeedConfig struct {
	CacheTTL  time.Duration
	CacheSize int
}

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	RateLimits map[string]RateLimit
	Feed       FeedConfig
}

// 默认限流策略
var defaultRateLimits = map[string]RateLimit{
	PolicyVote:       {Limit: 30, Window: 60 * time.Second},
	PolicyCreatePost: {Limit: 5, Window: 300 * time.Second},
	PolicyModerate:   {Limit: 30, Window: 60 * time.Second},
	PolicyLogin:      {Limit: 10, Window: 300 * time.Second},
}

// Load reads .env (if present) and the process environment.
// Nested keys map to env vars with "." replaced by "_", e.g. RATELIMIT_VOTE_LIMIT.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment only")
	}
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	vp := viper.New()
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	vp.SetDefault("server.port", "8080")
	vp.SetDefault("server.debug", false)
	vp.SetDefault("server.site_url", "http://localhost:8080")
	vp.SetDefault("server.session_secret", "reviewhub-dev-secret")
	vp.SetDefault("server.cors_origins", "http://localhost:5173")
	vp.SetDefault("server.throttle_rps", 20.0)
	vp.SetDefault("server.throttle_burst", 40)
	vp.SetDefault("database.url", "sqlite://reviewhub.db")
	vp.SetDefault("database.debug", false)
	vp.SetDefault("redis.addr", "")
	vp.SetDefault("redis.db", 0)
	vp.SetDefault("auth.jwt_secret", "reviewhub-dev-jwt-secret")
	vp.SetDefault("auth.token_ttl", "168h")
	vp.SetDefault("auth.admin_emails", "")
	vp.SetDefault("feed.cache_ttl", "30s")
	vp.SetDefault("feed.cache_size", 500)
	for name, rl := range defaultRateLimits {
		vp.SetDefault("ratelimit."+name+".limit", rl.Limit)
		vp.SetDefault("ratelimit."+name+".window", rl.Window.String())
	}

	// 兼容常见的短变量名
	_ = vp.BindEnv("server.port", "SERVER_PORT", "PORT")
	_ = vp.BindEnv("server.debug", "SERVER_DEBUG", "DEBUG")
	_ = vp.BindEnv("server.site_url", "SERVER_SITE_URL", "SITE_URL")
	_ = vp.BindEnv("server.session_secret", "SERVER_SESSION_SECRET", "SESSION_SECRET")
	_ = vp.BindEnv("server.cors_origins", "SERVER_CORS_ORIGINS", "CORS_ORIGINS")
	_ = vp.BindEnv("database.url", "DATABASE_URL")
	_ = vp.BindEnv("redis.addr", "REDIS_ADDR")
	_ = vp.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = vp.BindEnv("auth.jwt_secret", "AUTH_JWT_SECRET", "JWT_SECRET")
	_ = vp.BindEnv("auth.admin_emails", "AUTH_ADMIN_EMAILS", "ADMIN_EMAILS")

	return vp
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(vp *viper.Viper) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:          vp.GetString("server.port"),
			Debug:         vp.GetBool("server.debug"),
			SiteURL:       strings.TrimRight(vp.GetString("server.site_url"), "/"),
			SessionSecret: vp.GetString("server.session_secret"),
			CORSOrigins:   splitList(vp.GetString("server.cors_origins")),
			ThrottleRPS:   vp.GetFloat64("server.throttle_rps"),
			ThrottleBurst: vp.GetInt("server.throttle_burst"),
		},
		Database: DatabaseConfig{
			URL:   vp.GetString("database.url"),
			Debug: vp.GetBool("database.debug"),
		},
		Redis: RedisConfig{
			Addr:     vp.GetString("redis.addr"),
			Password: vp.GetString("redis.password"),
			DB:       vp.GetInt("redis.db"),
		},
		Auth: AuthConfig{
			JWTSecret:   vp.GetString("auth.jwt_secret"),
			TokenTTL:    vp.GetDuration("auth.token_ttl"),
			AdminEmails: splitList(strings.ToLower(vp.GetString("auth.admin_emails"))),
		},
		Feed: FeedConfig{
			CacheTTL:  vp.GetDuration("feed.cache_ttl"),
			CacheSize: vp.GetInt("feed.cache_size"),
		},
		RateLimits: make(map[string]RateLimit, len(defaultRateLimits)),
	}

	for name, def := range defaultRateLimits {
		rl := RateLimit{
			Limit:  vp.GetInt("ratelimit." + name + ".limit"),
			Window: vp.GetDuration("ratelimit." + name + ".window"),
		}
		if rl.Limit <= 0 || rl.Window <= 0 {
			slog.Warn("invalid rate limit config, using default", "policy", name)
			rl = def
		}
		cfg.RateLimits[name] = rl
	}

	return cfg
}

// RateLimit returns the configured budget for a policy, falling back to the built-in default.
func (c *Config) RateLimit(name string) RateLimit {
	if rl, ok := c.RateLimits[name]; ok {
		return rl
	}
	return defaultRateLimits[name]
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
