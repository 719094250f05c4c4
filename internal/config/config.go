package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration for matchbook.
type Config struct {
	Port            int
	LogLevel        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Engine
	QueueSize    int
	PriceScale   int32
	MaxDepth     int
	VWAPWindow   time.Duration
	TradeHistory int

	// Event relay
	RelayBuffer       int
	WebhookTimeout    time.Duration
	KafkaBrokers      []string
	KafkaTopic        string
	NATSURL           string
	NATSSubjectPrefix string
	WSBuffer          int
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. It returns an error for any invalid value.
func Load() (*Config, error) {
	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("invalid PORT: %d, must be between 1 and 65535", port)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	readTimeout, err := getDuration("READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := getDuration("WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := getDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	queueSize, err := getPositiveInt("QUEUE_SIZE", 1024)
	if err != nil {
		return nil, err
	}

	priceScale, err := getInt("PRICE_SCALE", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid PRICE_SCALE: %w", err)
	}
	if priceScale < 0 || priceScale > 8 {
		return nil, fmt.Errorf("invalid PRICE_SCALE: %d, must be between 0 and 8", priceScale)
	}

	maxDepth, err := getPositiveInt("MAX_DEPTH", 50)
	if err != nil {
		return nil, err
	}

	vwapWindow, err := getDuration("VWAP_WINDOW", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid VWAP_WINDOW: %w", err)
	}

	tradeHistory, err := getPositiveInt("TRADE_HISTORY", 10000)
	if err != nil {
		return nil, err
	}

	relayBuffer, err := getPositiveInt("RELAY_BUFFER", 4096)
	if err != nil {
		return nil, err
	}

	webhookTimeout, err := getDuration("WEBHOOK_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WEBHOOK_TIMEOUT: %w", err)
	}

	wsBuffer, err := getPositiveInt("WS_BUFFER", 256)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:              port,
		LogLevel:          logLevel,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ShutdownTimeout:   shutdownTimeout,
		QueueSize:         queueSize,
		PriceScale:        int32(priceScale),
		MaxDepth:          maxDepth,
		VWAPWindow:        vwapWindow,
		TradeHistory:      tradeHistory,
		RelayBuffer:       relayBuffer,
		WebhookTimeout:    webhookTimeout,
		KafkaBrokers:      getList("KAFKA_BROKERS"),
		KafkaTopic:        getStr("KAFKA_TOPIC", "matchbook.events"),
		NATSURL:           getStr("NATS_URL", ""),
		NATSSubjectPrefix: getStr("NATS_SUBJECT_PREFIX", "matchbook"),
		WSBuffer:          wsBuffer,
	}, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getPositiveInt(key string, defaultVal int) (int, error) {
	n, err := getInt(key, defaultVal)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("invalid %s: %d, must be positive", key, n)
	}
	return n, nil
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

// getList splits a comma-separated value, dropping empty entries.
func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
