package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "read_committed", cfg.Database.Isolation)
	assert.Equal(t, 2, cfg.Provisioning.Workers)
	assert.Equal(t, 5*time.Second, cfg.Provisioning.RetryDelay)
	assert.Equal(t, "UTC", cfg.Admissions.Timezone)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("DB_TX_ISOLATION", "SERIALIZABLE")
	v.Set("PROVISIONING_WORKERS", 0)
	v.Set("PROVISIONING_RETRY_DELAY", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := fromViper(v)
	assert.Equal(t, "serializable", cfg.Database.Isolation)
	assert.Equal(t, 1, cfg.Provisioning.Workers)
	assert.Equal(t, 5*time.Second, cfg.Provisioning.RetryDelay)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}
