package config_test

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/postboard/apiserver/config"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "postboard")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "postboard")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("JWT_ALGORITHM", "HS256")
}

func TestLoadConfigDefaults(t *testing.T) {
	c := qt.New(t)
	setRequiredEnv(t)

	cfg, err := config.LoadConfig("")
	c.Assert(err, qt.IsNil)

	c.Assert(cfg.ServerPort, qt.Equals, 8080)
	c.Assert(cfg.Database.Driver, qt.Equals, "postgres")
	c.Assert(cfg.Database.Port, qt.Equals, 5432)
	c.Assert(cfg.Auth.TokenTTLMinutes, qt.Equals, 30)
	c.Assert(cfg.Auth.JWTAlgorithm, qt.Equals, "HS256")
	c.Assert(cfg.Log.Level, qt.Equals, "info")
	c.Assert(cfg.MQ.Backend, qt.Equals, "")
	c.Assert(cfg.MQ.Channel, qt.Equals, "postboard.activity")
	c.Assert(cfg.Redis.Addr, qt.Equals, "")
}

func TestLoadConfigExplicitZeroTTLIsKept(t *testing.T) {
	c := qt.New(t)
	setRequiredEnv(t)
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "0")

	cfg, err := config.LoadConfig("")
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Auth.TokenTTLMinutes, qt.Equals, 0)
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret string
	}{
		{name: "blank secret", secret: "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			setRequiredEnv(t)
			t.Setenv("JWT_SECRET", tt.secret)

			_, err := config.LoadConfig("")
			c.Assert(err, qt.ErrorMatches, ".*JWT_SECRET.*")
		})
	}
}

func TestLoadConfigMissingRequired(t *testing.T) {
	c := qt.New(t)
	setRequiredEnv(t)
	os.Unsetenv("DB_HOST")

	_, err := config.LoadConfig("")
	c.Assert(err, qt.ErrorMatches, ".*DB_HOST.*")
}

func TestLoadConfigRejectsUnknownDriver(t *testing.T) {
	c := qt.New(t)
	setRequiredEnv(t)
	t.Setenv("DB_DRIVER", "mysql")

	_, err := config.LoadConfig("")
	c.Assert(err, qt.ErrorMatches, `unsupported DB_DRIVER "mysql"`)
}

func TestLoadConfigFromEnvFile(t *testing.T) {
	c := qt.New(t)
	setRequiredEnv(t)
	os.Unsetenv("JWT_ALGORITHM")

	path := filepath.Join(t.TempDir(), "test.env")
	err := os.WriteFile(path, []byte("JWT_ALGORITHM=HS512\nMQ_BACKEND=RabbitMQ\n"), 0o600)
	c.Assert(err, qt.IsNil)
	t.Cleanup(func() {
		os.Unsetenv("JWT_ALGORITHM")
		os.Unsetenv("MQ_BACKEND")
	})

	cfg, err := config.LoadConfig(path)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Auth.JWTAlgorithm, qt.Equals, "HS512")
	c.Assert(cfg.MQ.Backend, qt.Equals, "rabbitmq")
}

func TestLoadConfigMissingEnvFileIsIgnored(t *testing.T) {
	c := qt.New(t)
	setRequiredEnv(t)

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.env"))
	c.Assert(err, qt.IsNil)
}
