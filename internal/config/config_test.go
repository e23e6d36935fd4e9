package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"HUB_HOST", "PORT", "HEALTH_CHECK_INTERVAL", "WRITE_TIMEOUT", "CORS_ORIGINS", "EVENT_BUFFER"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, time.Duration(0), cfg.Server.WriteTimeout)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, DefaultHealthCheckInterval, cfg.Liveness.Interval)
	assert.Equal(t, 30*time.Second, cfg.ParticipantTimeout())
	assert.Equal(t, DefaultEventBuffer, cfg.Events.BufferSize)
	assert.Equal(t, "0.0.0.0:3000", cfg.Addr())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("HUB_HOST", "127.0.0.1")
	t.Setenv("PORT", "8080")
	t.Setenv("HEALTH_CHECK_INTERVAL", "2s")
	t.Setenv("CORS_ORIGINS", "http://a.local, http://b.local ,")
	t.Setenv("LOG_FORMAT", "json")

	cfg := Load()
	assert.Equal(t, "127.0.0.1:8080", cfg.Addr())
	assert.Equal(t, 2*time.Second, cfg.Liveness.Interval)
	assert.Equal(t, 6*time.Second, cfg.ParticipantTimeout())
	assert.Equal(t, []string{"http://a.local", "http://b.local"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())

	cfg.Liveness.Interval = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Liveness.Interval = -time.Second
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Server.Port = 70000
	assert.Error(t, cfg.Validate())
}
