// Package config loads runtime settings. Sources are layered, later ones
// winning: built-in defaults, an optional YAML file, then the environment.
//
// Environment keys use NEXTPAGE_<SECTION>__<KEY>, for example
// NEXTPAGE_CATALOG__API_KEY. A few older names (APP_ADDR, DB_DSN, LOG_LEVEL,
// LOG_FORMAT, ENABLE_HSTS) are still honoured.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	EnvPrefix     = "NEXTPAGE_"
	ConfigPathEnv = "NEXTPAGE_CONFIG"
)

var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Storage    StorageConfig    `koanf:"storage"`
	Catalog    CatalogConfig    `koanf:"catalog"`
	Recommend  RecommendConfig  `koanf:"recommend"`
	Search     SearchConfig     `koanf:"search"`
	Storefront StorefrontConfig `koanf:"storefront"`
	Log        LogConfig        `koanf:"log"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes" validate:"gt=0"`
	RateRPS         float64       `koanf:"rate_rps" validate:"gt=0"`
	RateBurst       int           `koanf:"rate_burst" validate:"gte=1"`
	EnableHSTS      bool          `koanf:"enable_hsts"`
}

// StorageConfig selects where the library collections are persisted.
type StorageConfig struct {
	Driver      string        `koanf:"driver" validate:"oneof=badger postgres memory"`
	BadgerPath  string        `koanf:"badger_path" validate:"required_if=Driver badger"`
	PostgresDSN string        `koanf:"postgres_dsn" validate:"required_if=Driver postgres"`
	Timeout     time.Duration `koanf:"timeout" validate:"gt=0"`
}

type CatalogConfig struct {
	Provider        string        `koanf:"provider" validate:"oneof=googlebooks openlibrary"`
	BaseURL         string        `koanf:"base_url" validate:"omitempty,url"`
	APIKey          string        `koanf:"api_key"`
	UserAgent       string        `koanf:"user_agent"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	RPS             float64       `koanf:"rps" validate:"gte=0"`
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"gte=1"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

type RecommendConfig struct {
	BatchSize     int           `koanf:"batch_size" validate:"gte=1,lte=40"`
	TopN          int           `koanf:"top_n" validate:"gte=1"`
	FallbackGenre string        `koanf:"fallback_genre" validate:"required"`
	Debounce      time.Duration `koanf:"debounce" validate:"gt=0"`
	Timeout       time.Duration `koanf:"timeout" validate:"gt=0"`
}

type SearchConfig struct {
	Debounce    time.Duration `koanf:"debounce" validate:"gt=0"`
	MinQueryLen int           `koanf:"min_query_len" validate:"gte=1"`
	Limit       int           `koanf:"limit" validate:"gte=1,lte=40"`
}

type StorefrontConfig struct {
	BaseURL      string `koanf:"base_url" validate:"required,url"`
	AffiliateTag string `koanf:"affiliate_tag"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"http://localhost:3000"},
			MaxBodyBytes:    1 << 20,
			RateRPS:         20,
			RateBurst:       40,
		},
		Storage: StorageConfig{
			Driver:     "badger",
			BadgerPath: "data/library",
			Timeout:    3 * time.Second,
		},
		Catalog: CatalogConfig{
			Provider:        "googlebooks",
			UserAgent:       "nextpage/1.0",
			Timeout:         10 * time.Second,
			RPS:             5,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Recommend: RecommendConfig{
			BatchSize:     10,
			TopN:          5,
			FallbackGenre: "fiction",
			Debounce:      250 * time.Millisecond,
			Timeout:       15 * time.Second,
		},
		Search: SearchConfig{
			Debounce:    500 * time.Millisecond,
			MinQueryLen: 3,
			Limit:       20,
		},
		Storefront: StorefrontConfig{
			BaseURL: "https://www.amazon.com",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadEnvFiles reads .env and .env.local into the process environment. It
// never overrides variables that are already set.
func LoadEnvFiles() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
}

// Load builds the configuration. path may be empty, in which case
// NEXTPAGE_CONFIG and then the default paths are tried; no file at all is
// fine.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := splitLists(k, "server.cors_origins"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnv); p != "" {
		return p
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var legacyEnv = map[string]string{
	"APP_ADDR":             "server.addr",
	"DB_DSN":               "storage.postgres_dsn",
	"LOG_LEVEL":            "log.level",
	"LOG_FORMAT":           "log.format",
	"ENABLE_HSTS":          "server.enable_hsts",
	"GOOGLE_BOOKS_API_KEY": "catalog.api_key",
}

// envTransform maps an environment variable to a config path, or "" to skip
// it.
func envTransform(key string) string {
	if p, ok := legacyEnv[key]; ok {
		return p
	}
	rest, ok := strings.CutPrefix(key, EnvPrefix)
	if !ok || rest == "CONFIG" {
		return ""
	}
	section, field, ok := strings.Cut(strings.ToLower(rest), "__")
	if !ok || section == "" || field == "" {
		return ""
	}
	return section + "." + field
}

// splitLists turns comma-separated strings from the environment into slices.
func splitLists(k *koanf.Koanf, paths ...string) error {
	for _, p := range paths {
		s, ok := k.Get(p).(string)
		if !ok {
			continue
		}
		parts := []string{}
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				parts = append(parts, part)
			}
		}
		if err := k.Set(p, parts); err != nil {
			return fmt.Errorf("set %s: %w", p, err)
		}
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field constraint and reports them all at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// RedactedDSN hides the password in a connection string for logging.
func RedactedDSN(dsn string) string {
	const marker = "://"
	start := strings.Index(dsn, marker)
	if start < 0 {
		return dsn
	}
	start += len(marker)
	end := strings.Index(dsn[start:], "@")
	if end < 0 {
		return dsn
	}
	return dsn[:start] + "***" + dsn[start+end:]
}
