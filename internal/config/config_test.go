package config

import (
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

var envMu sync.Mutex

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("POSTGRES_URL", "postgres://u:p@localhost:5432/db?sslmode=disable")
	t.Setenv("TELEGRAM_API_URL", "https://api.telegram.org/botTOKEN")
	t.Setenv("RESULT_CHAT_ID", "-1001234567890")
}

func TestLoadAll_HappyPath_NoRedis(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	clearTestEnv(t)
	setRequiredEnv(t)

	cfg, err := LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error: %v", err)
	}

	if cfg.Database.PostgresURL != "postgres://u:p@localhost:5432/db?sslmode=disable" {
		t.Fatalf("unexpected PostgresURL: %q", cfg.Database.PostgresURL)
	}
	if cfg.Telegram.APIURL != "https://api.telegram.org/botTOKEN" {
		t.Fatalf("unexpected Telegram.APIURL: %q", cfg.Telegram.APIURL)
	}
	if cfg.Telegram.ResultChatID != -1001234567890 {
		t.Fatalf("unexpected ResultChatID: %d", cfg.Telegram.ResultChatID)
	}
	if cfg.Server.Address != ":8080" {
		t.Fatalf("unexpected Server.Address default: %q", cfg.Server.Address)
	}
	if cfg.Collector.Timeout != 30*time.Second {
		t.Fatalf("unexpected Collector.Timeout default: %v", cfg.Collector.Timeout)
	}
	if cfg.Collector.RetryDelay != 2*time.Second {
		t.Fatalf("unexpected Collector.RetryDelay default: %v", cfg.Collector.RetryDelay)
	}
	if cfg.Collector.MaxRetries != 3 {
		t.Fatalf("unexpected Collector.MaxRetries default: %d", cfg.Collector.MaxRetries)
	}
	if cfg.Delivery.NetworkTimeout != 60*time.Second {
		t.Fatalf("unexpected Delivery.NetworkTimeout default: %v", cfg.Delivery.NetworkTimeout)
	}
	if !cfg.Delivery.RetryOnFailure {
		t.Fatalf("expected Delivery.RetryOnFailure default true")
	}
	if cfg.Delivery.BackoffBase != 2*time.Second || cfg.Delivery.BackoffCap != 30*time.Second {
		t.Fatalf("unexpected backoff defaults: %v / %v", cfg.Delivery.BackoffBase, cfg.Delivery.BackoffCap)
	}
	if cfg.Validator.StalenessWindow != 24*time.Hour {
		t.Fatalf("unexpected StalenessWindow default: %v", cfg.Validator.StalenessWindow)
	}
	if cfg.Validator.MinReplyLength != 3 {
		t.Fatalf("unexpected MinReplyLength default: %d", cfg.Validator.MinReplyLength)
	}
	if cfg.Sweep.Interval != 120*time.Second {
		t.Fatalf("unexpected Sweep.Interval default: %v", cfg.Sweep.Interval)
	}
	if cfg.Sweep.BatchSize != 2 {
		t.Fatalf("unexpected Sweep.BatchSize default: %d", cfg.Sweep.BatchSize)
	}

	if cfg.Redis.Enabled {
		t.Fatalf("expected Redis disabled when REDIS_ADDR not set")
	}
}

func TestLoadAll_HappyPath_WithRedis(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	clearTestEnv(t)
	setRequiredEnv(t)

	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_PASSWORD", "secret")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("REDIS_TTL_SECONDS", "42")

	cfg, err := LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error: %v", err)
	}

	if !cfg.Redis.Enabled {
		t.Fatalf("expected Redis enabled")
	}
	if cfg.Redis.Address != "localhost:6379" {
		t.Fatalf("unexpected Redis.Address: %q", cfg.Redis.Address)
	}
	if cfg.Redis.Password != "secret" {
		t.Fatalf("unexpected Redis.Password: %q", cfg.Redis.Password)
	}
	if cfg.Redis.DB != 3 {
		t.Fatalf("unexpected Redis.DB: %d", cfg.Redis.DB)
	}
	if cfg.Redis.TTL != 42*time.Second {
		t.Fatalf("unexpected Redis.TTL: %v", cfg.Redis.TTL)
	}
}

func TestLoadAll_RequiredEnvMissing(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	clearTestEnv(t)

	t.Run("missing POSTGRES_URL", func(t *testing.T) {
		t.Setenv("TELEGRAM_API_URL", "https://api.telegram.org/botTOKEN")
		t.Setenv("RESULT_CHAT_ID", "42")

		_, err := LoadAll()
		if err == nil {
			t.Fatalf("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "POSTGRES_URL") {
			t.Fatalf("expected error mentioning POSTGRES_URL, got: %v", err)
		}
	})

	t.Run("missing TELEGRAM_API_URL", func(t *testing.T) {
		clearTestEnv(t)

		t.Setenv("POSTGRES_URL", "postgres://u:p@localhost:5432/db?sslmode=disable")
		t.Setenv("RESULT_CHAT_ID", "42")

		_, err := LoadAll()
		if err == nil {
			t.Fatalf("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "TELEGRAM_API_URL") {
			t.Fatalf("expected error mentioning TELEGRAM_API_URL, got: %v", err)
		}
	})

	t.Run("missing RESULT_CHAT_ID", func(t *testing.T) {
		clearTestEnv(t)

		t.Setenv("POSTGRES_URL", "postgres://u:p@localhost:5432/db?sslmode=disable")
		t.Setenv("TELEGRAM_API_URL", "https://api.telegram.org/botTOKEN")

		_, err := LoadAll()
		if err == nil {
			t.Fatalf("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "RESULT_CHAT_ID") {
			t.Fatalf("expected error mentioning RESULT_CHAT_ID, got: %v", err)
		}
	})
}

func TestLoadAll_InvalidValues(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	clearTestEnv(t)

	cases := []struct {
		name string
		key  string
		val  string
	}{
		{"invalid RESULT_CHAT_ID", "RESULT_CHAT_ID", "abc"},
		{"invalid COLLECT_TIMEOUT_SECONDS", "COLLECT_TIMEOUT_SECONDS", "nope"},
		{"invalid COLLECT_MAX_RETRIES", "COLLECT_MAX_RETRIES", "x"},
		{"invalid DELIVERY_TIMEOUT_SECONDS", "DELIVERY_TIMEOUT_SECONDS", "bad"},
		{"invalid DELIVERY_RETRY_ON_FAILURE", "DELIVERY_RETRY_ON_FAILURE", "maybe"},
		{"invalid REPLY_MAX_AGE_HOURS", "REPLY_MAX_AGE_HOURS", "soon"},
		{"invalid SWEEP_BATCH_SIZE", "SWEEP_BATCH_SIZE", "x"},
		{"invalid REDIS_DB", "REDIS_DB", "bad"},
		{"invalid REDIS_TTL_SECONDS", "REDIS_TTL_SECONDS", "bad"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			clearTestEnv(t)
			setRequiredEnv(t)

			// Enable redis only for redis-related invalid ints.
			if strings.HasPrefix(tc.key, "REDIS_") {
				t.Setenv("REDIS_ADDR", "localhost:6379")
			}

			t.Setenv(tc.key, tc.val)

			_, err := LoadAll()
			if err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.key) {
				t.Fatalf("expected error mentioning %s, got: %v", tc.key, err)
			}
		})
	}
}

func TestLoadAll_ValidationFailures(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	clearTestEnv(t)

	cases := []struct {
		name string
		key  string
		val  string
	}{
		{"collect timeout <= 0", "COLLECT_TIMEOUT_SECONDS", "0"},
		{"collect retry delay <= 0", "COLLECT_RETRY_DELAY_SECONDS", "0"},
		{"collect retries <= 0", "COLLECT_MAX_RETRIES", "0"},
		{"delivery timeout <= 0", "DELIVERY_TIMEOUT_SECONDS", "-1"},
		{"delivery retries <= 0", "DELIVERY_MAX_RETRIES", "0"},
		{"staleness window <= 0", "REPLY_MAX_AGE_HOURS", "0"},
		{"min reply length <= 0", "REPLY_MIN_LENGTH", "0"},
		{"sweep interval <= 0", "SWEEP_INTERVAL_SECONDS", "0"},
		{"sweep batch <= 0", "SWEEP_BATCH_SIZE", "0"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			clearTestEnv(t)
			setRequiredEnv(t)
			t.Setenv(tc.key, tc.val)

			_, err := LoadAll()
			if err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.key) {
				t.Fatalf("expected error mentioning %s, got: %v", tc.key, err)
			}
		})
	}
}

func TestRequireEnv(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	clearTestEnv(t)

	_, err := requireEnv("MISSING_KEY")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}

	t.Setenv("FOO", "bar")
	v, err := requireEnv("FOO")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "bar" {
		t.Fatalf("expected %q, got %q", "bar", v)
	}
}

func TestGetEnv(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	clearTestEnv(t)

	if got := getEnv("NOPE", "default"); got != "default" {
		t.Fatalf("expected default, got %q", got)
	}

	t.Setenv("A", "x")
	if got := getEnv("A", "default"); got != "x" {
		t.Fatalf("expected x, got %q", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	clearTestEnv(t)

	got, err := getEnvInt("MISSING", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 7 {
		t.Fatalf("expected default 7, got %d", got)
	}

	t.Setenv("N", "123")
	got, err = getEnvInt("N", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 123 {
		t.Fatalf("expected 123, got %d", got)
	}

	t.Setenv("BAD", "abc")
	_, err = getEnvInt("BAD", 7)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "BAD") {
		t.Fatalf("expected error mentioning BAD, got: %v", err)
	}
}

func TestGetEnvInt64(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	clearTestEnv(t)

	got, err := getEnvInt64("MISSING", -5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != -5 {
		t.Fatalf("expected default -5, got %d", got)
	}

	t.Setenv("N", "-1001234567890")
	got, err = getEnvInt64("N", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != -1001234567890 {
		t.Fatalf("expected -1001234567890, got %d", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	clearTestEnv(t)

	got, err := getEnvBool("MISSING", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Fatalf("expected default true")
	}

	t.Setenv("B", "false")
	got, err = getEnvBool("B", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got {
		t.Fatalf("expected false")
	}

	t.Setenv("BAD", "maybe")
	if _, err = getEnvBool("BAD", false); err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestJoinErrors(t *testing.T) {
	if err := joinErrors(nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	e1 := errors.New("one")
	e2 := errors.New("two")
	err := joinErrors([]error{e1, e2})
	if err == nil {
		t.Fatalf("expected error, got nil")
	}

	if !errors.Is(err, e1) {
		t.Fatalf("expected errors.Is(err, e1) to be true")
	}
	if !errors.Is(err, e2) {
		t.Fatalf("expected errors.Is(err, e2) to be true")
	}
}

func clearTestEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"POSTGRES_URL",
		"TELEGRAM_API_URL",
		"RESULT_CHAT_ID",
		"SERVER_ADDRESS",
		"COLLECT_TIMEOUT_SECONDS",
		"COLLECT_RETRY_DELAY_SECONDS",
		"COLLECT_MAX_RETRIES",
		"DELIVERY_TIMEOUT_SECONDS",
		"DELIVERY_MAX_RETRIES",
		"DELIVERY_RETRY_ON_FAILURE",
		"DELIVERY_BACKOFF_BASE_SECONDS",
		"DELIVERY_BACKOFF_CAP_SECONDS",
		"REPLY_MAX_AGE_HOURS",
		"REPLY_MIN_LENGTH",
		"SWEEP_INTERVAL_SECONDS",
		"SWEEP_BATCH_SIZE",
		"REDIS_ADDR",
		"REDIS_PASSWORD",
		"REDIS_DB",
		"REDIS_TTL_SECONDS",
		"FOO",
		"A",
		"N",
		"B",
		"BAD",
	}
	for _, k := range keys {
		_ = os.Unsetenv(k)
	}
}
