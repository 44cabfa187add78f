package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	assert.NoError(t, err)
	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 4, cfg.Worker.Workers)
	assert.Equal(t, 10000, cfg.Validation.DailyLimit)
	assert.True(t, cfg.SMS.EnableFailover)
}

func TestLoad_OverridesFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("WORKER_CONCURRENCY", "8")
	t.Setenv("SMS_FAILOVER_ENABLED", "false")
	t.Setenv("API_KEYS", "key-one, key-two ,, key-three")

	cfg, err := Load()
	assert.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 8, cfg.Worker.Workers)
	assert.False(t, cfg.SMS.EnableFailover)
	assert.Equal(t, map[string]bool{"key-one": true, "key-two": true, "key-three": true}, cfg.Server.APIKeys)
}

func TestLoad_InvalidIntFallsBackToDefault(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")
	cfg, err := Load()
	assert.NoError(t, err)
	assert.Equal(t, 8090, cfg.Server.Port)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "h", Port: 5432, User: "u", Password: "p", DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=d sslmode=disable", c.DSN())
}

func TestRedisConfig_Addr(t *testing.T) {
	assert.Equal(t, "", (&RedisConfig{}).Addr())
	assert.Equal(t, "redis.internal:6380", (&RedisConfig{Host: "redis.internal", Port: 6380}).Addr())
}

func TestParseAPIKeys(t *testing.T) {
	assert.Empty(t, parseAPIKeys(""))
	assert.Equal(t, map[string]bool{"a": true}, parseAPIKeys("a"))
	assert.Equal(t, map[string]bool{"a": true, "b": true}, parseAPIKeys(" a , b ,"))
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("UE_TEST_STR", "hello")
	assert.Equal(t, "hello", getEnv("UE_TEST_STR", "fallback"))
	assert.Equal(t, "fallback", getEnv("UE_TEST_STR_MISSING", "fallback"))

	t.Setenv("UE_TEST_INT", "42")
	assert.Equal(t, 42, getEnvInt("UE_TEST_INT", 7))
	assert.Equal(t, 7, getEnvInt("UE_TEST_INT_MISSING", 7))

	t.Setenv("UE_TEST_BOOL", "true")
	assert.True(t, getEnvBool("UE_TEST_BOOL", false))
	assert.False(t, getEnvBool("UE_TEST_BOOL_MISSING", false))
}

func TestWorkerConfig_SleepIntervalIsDuration(t *testing.T) {
	t.Setenv("QUEUE_SLEEP_SECONDS", "3")
	cfg, err := Load()
	assert.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Worker.SleepInterval)
}
