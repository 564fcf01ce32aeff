package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Telegram  TelegramConfig
	Collector CollectorConfig
	Delivery  DeliveryConfig
	Validator ValidatorConfig
	Sweep     SweepConfig
}

type ServerConfig struct {
	Address string
}

type DatabaseConfig struct {
	PostgresURL string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type TelegramConfig struct {
	APIURL       string
	ResultChatID int64
}

type CollectorConfig struct {
	Timeout    time.Duration
	RetryDelay time.Duration
	MaxRetries int
}

type DeliveryConfig struct {
	NetworkTimeout time.Duration
	RetryOnFailure bool
	MaxRetries     int
	BackoffBase    time.Duration
	BackoffCap     time.Duration
}

type ValidatorConfig struct {
	StalenessWindow time.Duration
	MinReplyLength  int
}

type SweepConfig struct {
	Interval  time.Duration
	BatchSize int
}

func LoadAll() (*Config, error) {
	var errs []error

	postgresURL, err := requireEnv("POSTGRES_URL")
	if err != nil {
		errs = append(errs, err)
	}
	apiURL, err := requireEnv("TELEGRAM_API_URL")
	if err != nil {
		errs = append(errs, err)
	}
	resultChat, err := getEnvInt64("RESULT_CHAT_ID", 0)
	if err != nil {
		errs = append(errs, err)
	}

	collectTimeout, err := getEnvInt("COLLECT_TIMEOUT_SECONDS", 30)
	if err != nil {
		errs = append(errs, err)
	}
	collectDelay, err := getEnvInt("COLLECT_RETRY_DELAY_SECONDS", 2)
	if err != nil {
		errs = append(errs, err)
	}
	collectRetries, err := getEnvInt("COLLECT_MAX_RETRIES", 3)
	if err != nil {
		errs = append(errs, err)
	}

	deliveryTimeout, err := getEnvInt("DELIVERY_TIMEOUT_SECONDS", 60)
	if err != nil {
		errs = append(errs, err)
	}
	deliveryRetries, err := getEnvInt("DELIVERY_MAX_RETRIES", 3)
	if err != nil {
		errs = append(errs, err)
	}
	deliveryRetry, err := getEnvBool("DELIVERY_RETRY_ON_FAILURE", true)
	if err != nil {
		errs = append(errs, err)
	}
	backoffBase, err := getEnvInt("DELIVERY_BACKOFF_BASE_SECONDS", 2)
	if err != nil {
		errs = append(errs, err)
	}
	backoffCap, err := getEnvInt("DELIVERY_BACKOFF_CAP_SECONDS", 30)
	if err != nil {
		errs = append(errs, err)
	}

	staleHours, err := getEnvInt("REPLY_MAX_AGE_HOURS", 24)
	if err != nil {
		errs = append(errs, err)
	}
	minLength, err := getEnvInt("REPLY_MIN_LENGTH", 3)
	if err != nil {
		errs = append(errs, err)
	}

	sweepInterval, err := getEnvInt("SWEEP_INTERVAL_SECONDS", 120)
	if err != nil {
		errs = append(errs, err)
	}
	sweepBatch, err := getEnvInt("SWEEP_BATCH_SIZE", 2)
	if err != nil {
		errs = append(errs, err)
	}

	redisCfg, err := loadRedisConfig()
	if err != nil {
		errs = append(errs, err)
	}

	if err := joinErrors(errs); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Database: DatabaseConfig{
			PostgresURL: postgresURL,
		},
		Redis: redisCfg,
		Telegram: TelegramConfig{
			APIURL:       apiURL,
			ResultChatID: resultChat,
		},
		Collector: CollectorConfig{
			Timeout:    time.Duration(collectTimeout) * time.Second,
			RetryDelay: time.Duration(collectDelay) * time.Second,
			MaxRetries: collectRetries,
		},
		Delivery: DeliveryConfig{
			NetworkTimeout: time.Duration(deliveryTimeout) * time.Second,
			RetryOnFailure: deliveryRetry,
			MaxRetries:     deliveryRetries,
			BackoffBase:    time.Duration(backoffBase) * time.Second,
			BackoffCap:     time.Duration(backoffCap) * time.Second,
		},
		Validator: ValidatorConfig{
			StalenessWindow: time.Duration(staleHours) * time.Hour,
			MinReplyLength:  minLength,
		},
		Sweep: SweepConfig{
			Interval:  time.Duration(sweepInterval) * time.Second,
			BatchSize: sweepBatch,
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadRedisConfig() (RedisConfig, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}, nil
	}

	var errs []error
	db, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		errs = append(errs, err)
	}
	ttl, err := getEnvInt("REDIS_TTL_SECONDS", 86400)
	if err != nil {
		errs = append(errs, err)
	}
	if err := joinErrors(errs); err != nil {
		return RedisConfig{}, err
	}

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
		TTL:      time.Duration(ttl) * time.Second,
	}, nil
}

func validate(cfg *Config) error {
	var errs []error

	if cfg.Telegram.ResultChatID == 0 {
		errs = append(errs, errors.New("RESULT_CHAT_ID must be set"))
	}
	if cfg.Collector.Timeout <= 0 {
		errs = append(errs, errors.New("COLLECT_TIMEOUT_SECONDS must be > 0"))
	}
	if cfg.Collector.RetryDelay <= 0 {
		errs = append(errs, errors.New("COLLECT_RETRY_DELAY_SECONDS must be > 0"))
	}
	if cfg.Collector.MaxRetries <= 0 {
		errs = append(errs, errors.New("COLLECT_MAX_RETRIES must be > 0"))
	}
	if cfg.Delivery.NetworkTimeout <= 0 {
		errs = append(errs, errors.New("DELIVERY_TIMEOUT_SECONDS must be > 0"))
	}
	if cfg.Delivery.MaxRetries <= 0 {
		errs = append(errs, errors.New("DELIVERY_MAX_RETRIES must be > 0"))
	}
	if cfg.Validator.StalenessWindow <= 0 {
		errs = append(errs, errors.New("REPLY_MAX_AGE_HOURS must be > 0"))
	}
	if cfg.Validator.MinReplyLength <= 0 {
		errs = append(errs, errors.New("REPLY_MIN_LENGTH must be > 0"))
	}
	if cfg.Sweep.Interval <= 0 {
		errs = append(errs, errors.New("SWEEP_INTERVAL_SECONDS must be > 0"))
	}
	if cfg.Sweep.BatchSize <= 0 {
		errs = append(errs, errors.New("SWEEP_BATCH_SIZE must be > 0"))
	}

	return joinErrors(errs)
}

func requireEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return val, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for env %s: %s", key, v)
	}
	return i, nil
}

func getEnvInt64(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid int for env %s: %s", key, v)
	}
	return i, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid bool for env %s: %s", key, v)
	}
	return b, nil
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
