package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("database:\n  host: db\n"))
	require.NoError(t, err)

	assert.Equal(t, "db", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.InDelta(t, 1.07, cfg.Recognition.Threshold, 1e-9)
	assert.Equal(t, 3*time.Second, cfg.Recognition.AttemptTimeout)
	assert.Equal(t, 30*time.Second, cfg.Recognition.Cooldown)
	assert.Equal(t, 30*time.Millisecond, cfg.Recognition.FrameInterval)
	assert.Equal(t, ModeAttempt, cfg.Recognition.Mode)
	assert.Equal(t, 3, cfg.Access.AdminLevel)
	assert.Equal(t, GalleryFromDir, cfg.Gallery.Source)
	assert.Equal(t, 512, cfg.Vision.EmbeddingDim)
}

func TestParse_YAMLValues(t *testing.T) {
	data := []byte(`
recognition:
  threshold: 0.9
  attempt_timeout: 5s
  cooldown: 10s
  mode: continuous
access:
  admin_level: 5
  timezone: Europe/Warsaw
terminal:
  room: lab-1
`)
	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.InDelta(t, 0.9, cfg.Recognition.Threshold, 1e-9)
	assert.Equal(t, 5*time.Second, cfg.Recognition.AttemptTimeout)
	assert.Equal(t, 10*time.Second, cfg.Recognition.Cooldown)
	assert.Equal(t, ModeContinuous, cfg.Recognition.Mode)
	assert.Equal(t, 5, cfg.Access.AdminLevel)
	assert.Equal(t, "lab-1", cfg.Terminal.Room)
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("RG_DB_PORT", "6543")
	t.Setenv("RG_RECOGNITION_THRESHOLD", "0.5")
	t.Setenv("RG_TERMINAL_ROOM", "server-room")
	t.Setenv("RG_ADMIN_SECRET", "s3cret")

	cfg, err := Parse([]byte("database:\n  port: 5432\n"))
	require.NoError(t, err)

	assert.Equal(t, 6543, cfg.Database.Port)
	assert.InDelta(t, 0.5, cfg.Recognition.Threshold, 1e-9)
	assert.Equal(t, "server-room", cfg.Terminal.Room)
	assert.Equal(t, "s3cret", cfg.Server.AdminSecret)
}

func TestParse_InvalidMode(t *testing.T) {
	_, err := Parse([]byte("recognition:\n  mode: sometimes\n"))
	assert.Error(t, err)
}

func TestParse_InvalidGallerySource(t *testing.T) {
	_, err := Parse([]byte("gallery:\n  source: s3\n"))
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: 1, Name: "n", User: "u", Password: "p"}
	assert.Equal(t, "postgres://u:p@h:1/n?sslmode=disable", d.DSN())
}

func TestAccessConfig_Location(t *testing.T) {
	loc, err := AccessConfig{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = AccessConfig{Timezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	_, err = AccessConfig{Timezone: "Nowhere/Invalid"}.Location()
	assert.Error(t, err)
}
