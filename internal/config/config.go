package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// 対応しているデータベースドライバ
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DBDriver       string
	DatabaseURL    string
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string
	ConnectTimeout time.Duration
	QueryTimeout   time.Duration

	// Token
	JWTSecret   string
	TokenTTL    time.Duration
	TokenIssuer string

	// Rate Limit
	RateLimitGeneral int
	RateLimitAuth    int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合は、未設定の変数名を全て列挙したエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DBDriver = strings.ToLower(getEnvString("DB_DRIVER", DriverPostgres))
	if cfg.DBDriver != DriverPostgres && cfg.DBDriver != DriverSQLite {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q: must be %q or %q", cfg.DBDriver, DriverPostgres, DriverSQLite)
	}

	// Required fields
	var missing []string

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	// DATABASE_URL が無い場合は個別の接続パラメータを必須とする
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		if cfg.DBDriver == DriverSQLite {
			missing = append(missing, "DATABASE_URL")
		} else {
			for _, kv := range []struct {
				key string
				dst *string
			}{
				{"DB_HOST", &cfg.DBHost},
				{"DB_USER", &cfg.DBUser},
				{"DB_PASSWORD", &cfg.DBPassword},
				{"DB_NAME", &cfg.DBName},
			} {
				*kv.dst = os.Getenv(kv.key)
				if *kv.dst == "" {
					missing = append(missing, kv.key)
				}
			}
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.DBPort = getEnvString("DB_PORT", "5432")
	cfg.DBSSLMode = getEnvString("DB_SSLMODE", "require")
	cfg.ConnectTimeout = getEnvDuration("DB_CONNECT_TIMEOUT", 30*time.Second)
	cfg.QueryTimeout = getEnvDuration("DB_QUERY_TIMEOUT", 30*time.Second)
	cfg.TokenTTL = getEnvDuration("TOKEN_TTL", 24*time.Hour)
	cfg.TokenIssuer = getEnvString("TOKEN_ISSUER", "done-backend")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "3000")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "*")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

// DSN はドライバへ渡す接続文字列を返す。
// sqlite の場合は外部キー制約の有効化と、辞書順で比較できる時刻書式を付与する。
func (c *Config) DSN() string {
	if c.DBDriver == DriverSQLite {
		return SQLiteDSN(c.DatabaseURL)
	}
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.DBUser, c.DBPassword),
		Host:   net.JoinHostPort(c.DBHost, c.DBPort),
		Path:   "/" + c.DBName,
	}
	q := url.Values{}
	q.Set("sslmode", c.DBSSLMode)
	q.Set("connect_timeout", strconv.Itoa(int(c.ConnectTimeout.Seconds())))
	u.RawQuery = q.Encode()
	return u.String()
}

// MigrationURL はgolang-migrateへ渡すデータベースURLを返す。
func (c *Config) MigrationURL() string {
	if c.DBDriver == DriverSQLite {
		p, _, _ := strings.Cut(strings.TrimPrefix(c.DatabaseURL, "file:"), "?")
		return "sqlite://" + p
	}
	return c.DSN()
}

// SQLiteDSN はファイルパスにsqliteの接続オプションを付与する。
// 既存のクエリ文字列は残し、不足しているオプションだけを末尾に追加する。
func SQLiteDSN(path string) string {
	base, rawQuery, _ := strings.Cut(path, "?")

	var opts []string
	if rawQuery != "" {
		opts = append(opts, rawQuery)
	}
	// pragmaは記述順に適用されるため、外部キー有効化は常に最後に置く
	if !strings.HasSuffix(rawQuery, "_pragma=foreign_keys(1)") {
		opts = append(opts, "_pragma=foreign_keys(1)")
	}
	if !strings.Contains(rawQuery, "_time_format=") {
		opts = append(opts, "_time_format=sqlite")
	}
	return base + "?" + strings.Join(opts, "&")
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
