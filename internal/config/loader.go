package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/BurntSushi/toml"
)

// EnvConfigFile names the variable that points at an optional TOML file.
const EnvConfigFile = "TIMEREC_CONFIG"

// Config captures the settings of the time recording service.
type Config struct {
	HTTPPort      int
	SQLiteDSN     string
	JWTSecret     string
	JWTTTL        time.Duration
	JWTIssuer     string
	Timezone      string
	LogFormat     string
	LogLevel      string
	AdminEmail    string
	AdminPassword string
	DenylistSize  int
}

// Location resolves the configured IANA time zone.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.HTTPPort)
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() Config {
	return Config{
		HTTPPort:     8080,
		SQLiteDSN:    "timerecording.db",
		JWTTTL:       8 * time.Hour,
		JWTIssuer:    "timerecording",
		Timezone:     "Europe/Berlin",
		LogFormat:    "json",
		LogLevel:     "info",
		DenylistSize: 1024,
	}
}

// fileConfig mirrors the TOML layout. Durations are written as Go duration
// strings ("8h", "30m").
type fileConfig struct {
	HTTP struct {
		Port int `toml:"port"`
	} `toml:"http"`
	Database struct {
		DSN string `toml:"dsn"`
	} `toml:"database"`
	Auth struct {
		Secret       string `toml:"jwt_secret"`
		TTL          string `toml:"jwt_ttl"`
		Issuer       string `toml:"jwt_issuer"`
		DenylistSize int    `toml:"denylist_size"`
	} `toml:"auth"`
	Timezone string `toml:"timezone"`
	Log      struct {
		Format string `toml:"format"`
		Level  string `toml:"level"`
	} `toml:"log"`
	Admin struct {
		Email    string `toml:"email"`
		Password string `toml:"password"`
	} `toml:"admin"`
}

// Load builds the configuration from defaults, the file named by
// TIMEREC_CONFIG (if any) and the process environment.
func Load() (Config, error) {
	return LoadFile(strings.TrimSpace(os.Getenv(EnvConfigFile)))
}

// LoadFile is Load with an explicit configuration file. An empty path skips
// the file layer. Environment variables always win over the file.
func LoadFile(path string) (Config, error) {
	cfg := Defaults()
	var problems loadProblems

	if path != "" {
		if err := applyFile(&cfg, path, &problems); err != nil {
			return Config{}, err
		}
	}
	applyEnvironment(&cfg, &problems)

	if strings.TrimSpace(cfg.JWTSecret) == "" {
		problems.missing = append(problems.missing, "TIMEREC_JWT_SECRET")
	}
	if _, err := cfg.Location(); err != nil {
		problems.invalid = append(problems.invalid, "TIMEREC_TIMEZONE")
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "json", "text":
	default:
		problems.invalid = append(problems.invalid, "TIMEREC_LOG_FORMAT")
	}
	if (cfg.AdminEmail == "") != (cfg.AdminPassword == "") {
		problems.missing = append(problems.missing, "TIMEREC_ADMIN_EMAIL/TIMEREC_ADMIN_PASSWORD")
	}

	if err := problems.err(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type loadProblems struct {
	missing []string
	invalid []string
}

func (p loadProblems) err() error {
	var errs []error
	if len(p.missing) > 0 {
		errs = append(errs, fmt.Errorf("config: missing required values: %s", strings.Join(p.missing, ", ")))
	}
	if len(p.invalid) > 0 {
		errs = append(errs, fmt.Errorf("config: invalid values: %s", strings.Join(p.invalid, ", ")))
	}
	return errors.Join(errs...)
}

func applyFile(cfg *Config, path string, problems *loadProblems) error {
	var file fileConfig
	meta, err := toml.DecodeFile(path, &file)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}

	if meta.IsDefined("http", "port") {
		if file.HTTP.Port <= 0 {
			problems.invalid = append(problems.invalid, "http.port")
		} else {
			cfg.HTTPPort = file.HTTP.Port
		}
	}
	setString(&cfg.SQLiteDSN, file.Database.DSN)
	setString(&cfg.JWTSecret, file.Auth.Secret)
	setString(&cfg.JWTIssuer, file.Auth.Issuer)
	if file.Auth.TTL != "" {
		if ttl, err := time.ParseDuration(file.Auth.TTL); err != nil || ttl <= 0 {
			problems.invalid = append(problems.invalid, "auth.jwt_ttl")
		} else {
			cfg.JWTTTL = ttl
		}
	}
	if meta.IsDefined("auth", "denylist_size") {
		if file.Auth.DenylistSize <= 0 {
			problems.invalid = append(problems.invalid, "auth.denylist_size")
		} else {
			cfg.DenylistSize = file.Auth.DenylistSize
		}
	}
	setString(&cfg.Timezone, file.Timezone)
	setString(&cfg.LogFormat, file.Log.Format)
	setString(&cfg.LogLevel, file.Log.Level)
	setString(&cfg.AdminEmail, file.Admin.Email)
	setString(&cfg.AdminPassword, file.Admin.Password)
	return nil
}

func applyEnvironment(cfg *Config, problems *loadProblems) {
	if value := env("TIMEREC_HTTP_PORT"); value != "" {
		port, err := strconv.Atoi(value)
		if err != nil || port <= 0 {
			problems.invalid = append(problems.invalid, "TIMEREC_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}
	setString(&cfg.SQLiteDSN, env("TIMEREC_SQLITE_DSN"))
	setString(&cfg.JWTSecret, env("TIMEREC_JWT_SECRET"))
	if value := env("TIMEREC_JWT_TTL"); value != "" {
		ttl, err := time.ParseDuration(value)
		if err != nil || ttl <= 0 {
			problems.invalid = append(problems.invalid, "TIMEREC_JWT_TTL")
		} else {
			cfg.JWTTTL = ttl
		}
	}
	setString(&cfg.JWTIssuer, env("TIMEREC_JWT_ISSUER"))
	setString(&cfg.Timezone, env("TIMEREC_TIMEZONE"))
	setString(&cfg.LogFormat, env("TIMEREC_LOG_FORMAT"))
	setString(&cfg.LogLevel, env("TIMEREC_LOG_LEVEL"))
	setString(&cfg.AdminEmail, env("TIMEREC_ADMIN_EMAIL"))
	setString(&cfg.AdminPassword, env("TIMEREC_ADMIN_PASSWORD"))
	if value := env("TIMEREC_DENYLIST_SIZE"); value != "" {
		size, err := strconv.Atoi(value)
		if err != nil || size <= 0 {
			problems.invalid = append(problems.invalid, "TIMEREC_DENYLIST_SIZE")
		} else {
			cfg.DenylistSize = size
		}
	}
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func setString(dst *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*dst = value
	}
}
