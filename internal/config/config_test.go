package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	req := require.New(t)
	path := writeConfig(t, "app:\n  jwt_secret: s\n")

	cfg, err := Load(path)
	req.NoError(err)

	req.Equal(8080, cfg.App.Port)
	req.Equal(20, cfg.Rabbit.Prefetch)
	req.Equal(2*time.Second, cfg.Rabbit.ReconnectInitial())
	req.Equal(10*time.Second, cfg.Rabbit.ReconnectMax())
	req.Equal("chat.messages", cfg.Rabbit.Exchange)
	req.Equal("chat.messages.created", cfg.Rabbit.Queue)
	req.Equal("message.created", cfg.Rabbit.RoutingKey)
	req.Equal(60*time.Second, cfg.ReadDeadline)
}

func TestLoad_Overrides(t *testing.T) {
	req := require.New(t)
	path := writeConfig(t, `
app:
  port: 9999
rabbit:
  host: mq.internal
  port: 5673
  user: svc
  password: pw
  prefetch: 5
`)

	cfg, err := Load(path)
	req.NoError(err)
	req.Equal(9999, cfg.App.Port)
	req.Equal(5, cfg.Rabbit.Prefetch)
	req.Equal("amqp://svc:pw@mq.internal:5673/", cfg.Rabbit.URL())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
