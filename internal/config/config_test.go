package config

import (
	"os"
	"reflect"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allEnvKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.WebhookTimeout != 5*time.Second {
		t.Errorf("WebhookTimeout = %v, want 5s", cfg.WebhookTimeout)
	}
	if cfg.VWAPWindow != 5*time.Minute {
		t.Errorf("VWAPWindow = %v, want 5m", cfg.VWAPWindow)
	}
	if cfg.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v, want 5s", cfg.ReadTimeout)
	}
	if cfg.WriteTimeout != 10*time.Second {
		t.Errorf("WriteTimeout = %v, want 10s", cfg.WriteTimeout)
	}
	if cfg.IdleTimeout != 60*time.Second {
		t.Errorf("IdleTimeout = %v, want 60s", cfg.IdleTimeout)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 10s", cfg.ShutdownTimeout)
	}
	if cfg.QueueSize != 1024 {
		t.Errorf("QueueSize = %d, want 1024", cfg.QueueSize)
	}
	if cfg.PriceScale != 2 {
		t.Errorf("PriceScale = %d, want 2", cfg.PriceScale)
	}
	if cfg.MaxDepth != 50 {
		t.Errorf("MaxDepth = %d, want 50", cfg.MaxDepth)
	}
	if cfg.TradeHistory != 10000 {
		t.Errorf("TradeHistory = %d, want 10000", cfg.TradeHistory)
	}
	if cfg.RelayBuffer != 4096 {
		t.Errorf("RelayBuffer = %d, want 4096", cfg.RelayBuffer)
	}
	if cfg.WSBuffer != 256 {
		t.Errorf("WSBuffer = %d, want 256", cfg.WSBuffer)
	}
	if cfg.KafkaBrokers != nil {
		t.Errorf("KafkaBrokers = %v, want none", cfg.KafkaBrokers)
	}
	if cfg.KafkaTopic != "matchbook.events" {
		t.Errorf("KafkaTopic = %q, want matchbook.events", cfg.KafkaTopic)
	}
	if cfg.NATSURL != "" {
		t.Errorf("NATSURL = %q, want empty", cfg.NATSURL)
	}
	if cfg.NATSSubjectPrefix != "matchbook" {
		t.Errorf("NATSSubjectPrefix = %q, want matchbook", cfg.NATSSubjectPrefix)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("WEBHOOK_TIMEOUT", "3s")
	t.Setenv("VWAP_WINDOW", "10m")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("WRITE_TIMEOUT", "5s")
	t.Setenv("IDLE_TIMEOUT", "30s")
	t.Setenv("SHUTDOWN_TIMEOUT", "15s")
	t.Setenv("QUEUE_SIZE", "16")
	t.Setenv("PRICE_SCALE", "4")
	t.Setenv("MAX_DEPTH", "20")
	t.Setenv("TRADE_HISTORY", "500")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("KAFKA_TOPIC", "fills")
	t.Setenv("NATS_URL", "nats://localhost:4222")
	t.Setenv("NATS_SUBJECT_PREFIX", "mb")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.WebhookTimeout != 3*time.Second {
		t.Errorf("WebhookTimeout = %v, want 3s", cfg.WebhookTimeout)
	}
	if cfg.VWAPWindow != 10*time.Minute {
		t.Errorf("VWAPWindow = %v, want 10m", cfg.VWAPWindow)
	}
	if cfg.QueueSize != 16 || cfg.PriceScale != 4 || cfg.MaxDepth != 20 || cfg.TradeHistory != 500 {
		t.Errorf("unexpected engine settings: %+v", cfg)
	}
	if want := []string{"kafka-1:9092", "kafka-2:9092"}; !reflect.DeepEqual(cfg.KafkaBrokers, want) {
		t.Errorf("KafkaBrokers = %v, want %v", cfg.KafkaBrokers, want)
	}
	if cfg.KafkaTopic != "fills" || cfg.NATSURL != "nats://localhost:4222" || cfg.NATSSubjectPrefix != "mb" {
		t.Errorf("unexpected relay settings: %+v", cfg)
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	for _, v := range []string{"not-a-number", "0", "70000"} {
		t.Run(v, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("PORT", v)

			if _, err := Load(); err == nil {
				t.Fatalf("expected error for PORT=%q", v)
			}
		})
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "verbose")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for invalid LOG_LEVEL")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	for _, key := range durationEnvKeys {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, "not-a-duration")

			_, err := Load()
			if err == nil {
				t.Fatalf("expected error for invalid %s", key)
			}
		})
	}
}

func TestLoad_InvalidCounts(t *testing.T) {
	for _, key := range countEnvKeys {
		for _, v := range []string{"zero", "0", "-3"} {
			t.Run(key+"="+v, func(t *testing.T) {
				clearEnv(t)
				t.Setenv(key, v)

				if _, err := Load(); err == nil {
					t.Fatalf("expected error for %s=%q", key, v)
				}
			})
		}
	}
}

func TestLoad_PriceScaleRange(t *testing.T) {
	tests := []struct {
		value   string
		wantErr bool
	}{
		{"0", false},
		{"8", false},
		{"9", true},
		{"-1", true},
		{"two", true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("PRICE_SCALE", tt.value)

			_, err := Load()
			if (err != nil) != tt.wantErr {
				t.Fatalf("PRICE_SCALE=%q: err = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
		})
	}
}
