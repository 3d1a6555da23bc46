package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var allVariables = []string{
	EnvConfigFile,
	"TIMEREC_HTTP_PORT",
	"TIMEREC_SQLITE_DSN",
	"TIMEREC_JWT_SECRET",
	"TIMEREC_JWT_TTL",
	"TIMEREC_JWT_ISSUER",
	"TIMEREC_TIMEZONE",
	"TIMEREC_LOG_FORMAT",
	"TIMEREC_LOG_LEVEL",
	"TIMEREC_ADMIN_EMAIL",
	"TIMEREC_ADMIN_PASSWORD",
	"TIMEREC_DENYLIST_SIZE",
}

// clearEnvironment empties every variable for the duration of the test.
// t.Setenv restores the previous values afterwards.
func clearEnvironment(t *testing.T) {
	t.Helper()
	for _, key := range allVariables {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "timerecording.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoader_ParseEnvironment(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnvironment(t)
		t.Setenv("TIMEREC_JWT_SECRET", "super-secret")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		want := Defaults()
		want.JWTSecret = "super-secret"
		if cfg != want {
			t.Fatalf("expected %+v, got %+v", want, cfg)
		}
		if cfg.Addr() != ":8080" {
			t.Fatalf("unexpected listen address %q", cfg.Addr())
		}
		if loc, err := cfg.Location(); err != nil || loc.String() != "Europe/Berlin" {
			t.Fatalf("unexpected location %v (err %v)", loc, err)
		}
	})

	t.Run("errors when required values are missing", func(t *testing.T) {
		clearEnvironment(t)

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		expected := "config: missing required values: TIMEREC_JWT_SECRET"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("parses duration and numeric fields", func(t *testing.T) {
		clearEnvironment(t)
		t.Setenv("TIMEREC_JWT_SECRET", "secret-value")
		t.Setenv("TIMEREC_HTTP_PORT", "9090")
		t.Setenv("TIMEREC_SQLITE_DSN", "/tmp/timerecording.db")
		t.Setenv("TIMEREC_JWT_TTL", "30m")
		t.Setenv("TIMEREC_DENYLIST_SIZE", "50")
		t.Setenv("TIMEREC_TIMEZONE", "UTC")
		t.Setenv("TIMEREC_LOG_FORMAT", "text")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 9090 || cfg.SQLiteDSN != "/tmp/timerecording.db" {
			t.Fatalf("unexpected port or dsn: %+v", cfg)
		}
		if cfg.JWTTTL != 30*time.Minute {
			t.Fatalf("expected token TTL 30m, got %s", cfg.JWTTTL)
		}
		if cfg.DenylistSize != 50 || cfg.Timezone != "UTC" || cfg.LogFormat != "text" {
			t.Fatalf("unexpected values: %+v", cfg)
		}
	})

	t.Run("reports every invalid value together", func(t *testing.T) {
		clearEnvironment(t)
		t.Setenv("TIMEREC_JWT_SECRET", "secret-value")
		t.Setenv("TIMEREC_HTTP_PORT", "not-a-port")
		t.Setenv("TIMEREC_JWT_TTL", "-1h")
		t.Setenv("TIMEREC_TIMEZONE", "Mars/Olympus")
		t.Setenv("TIMEREC_LOG_FORMAT", "xml")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		for _, key := range []string{"TIMEREC_HTTP_PORT", "TIMEREC_JWT_TTL", "TIMEREC_TIMEZONE", "TIMEREC_LOG_FORMAT"} {
			if !strings.Contains(err.Error(), key) {
				t.Fatalf("expected %s in error %q", key, err.Error())
			}
		}
	})

	t.Run("requires admin email and password together", func(t *testing.T) {
		clearEnvironment(t)
		t.Setenv("TIMEREC_JWT_SECRET", "secret-value")
		t.Setenv("TIMEREC_ADMIN_EMAIL", "admin@example.com")

		if _, err := Load(); err == nil || !strings.Contains(err.Error(), "TIMEREC_ADMIN_PASSWORD") {
			t.Fatalf("expected admin credential error, got %v", err)
		}
	})
}

func TestLoader_File(t *testing.T) {
	t.Run("reads values from TOML", func(t *testing.T) {
		clearEnvironment(t)
		path := writeFile(t, `
timezone = "UTC"

[http]
port = 9000

[database]
dsn = "/var/lib/timerecording/data.db"

[auth]
jwt_secret = "from-file"
jwt_ttl = "2h"
denylist_size = 16

[log]
format = "text"
level = "debug"

[admin]
email = "admin@example.com"
password = "initial-secret"
`)

		cfg, err := LoadFile(path)
		if err != nil {
			t.Fatalf("LoadFile returned error: %v", err)
		}
		if cfg.HTTPPort != 9000 || cfg.SQLiteDSN != "/var/lib/timerecording/data.db" || cfg.JWTSecret != "from-file" {
			t.Fatalf("unexpected values: %+v", cfg)
		}
		if cfg.JWTTTL != 2*time.Hour || cfg.DenylistSize != 16 || cfg.LogLevel != "debug" {
			t.Fatalf("unexpected values: %+v", cfg)
		}
		if cfg.AdminEmail != "admin@example.com" || cfg.AdminPassword != "initial-secret" {
			t.Fatalf("unexpected admin credentials: %+v", cfg)
		}
		if cfg.JWTIssuer != "timerecording" {
			t.Fatalf("unset keys keep their defaults, got issuer %q", cfg.JWTIssuer)
		}
	})

	t.Run("environment overrides the file", func(t *testing.T) {
		clearEnvironment(t)
		path := writeFile(t, "[auth]\njwt_secret = \"from-file\"\n\n[http]\nport = 9000\n")
		t.Setenv(EnvConfigFile, path)
		t.Setenv("TIMEREC_HTTP_PORT", "7000")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 7000 || cfg.JWTSecret != "from-file" {
			t.Fatalf("unexpected values: %+v", cfg)
		}
	})

	t.Run("rejects unknown keys", func(t *testing.T) {
		clearEnvironment(t)
		path := writeFile(t, "[auth]\njwt_secret = \"x\"\nsession_secret = \"y\"\n")

		_, err := LoadFile(path)
		if err == nil || !strings.Contains(err.Error(), "auth.session_secret") {
			t.Fatalf("expected unknown key error, got %v", err)
		}
	})

	t.Run("fails for a missing file", func(t *testing.T) {
		clearEnvironment(t)
		if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
			t.Fatalf("expected error for missing file")
		}
	})
}
