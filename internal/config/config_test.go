package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("FIREBASE_PROJECT_ID", "adstudio-test")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.StoreDriver != StoreFirestore {
		t.Fatalf("expected firestore driver, got %q", cfg.StoreDriver)
	}
	if cfg.SignupBonusCredits != 1 {
		t.Fatalf("expected signup bonus 1, got %d", cfg.SignupBonusCredits)
	}
	if cfg.BalanceCacheTTL != 30*time.Second {
		t.Fatalf("expected 30s cache ttl, got %s", cfg.BalanceCacheTTL)
	}
	if cfg.EventsDriver != EventsNone {
		t.Fatalf("expected events driver none, got %q", cfg.EventsDriver)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{"missing project", map[string]string{"FIREBASE_PROJECT_ID": ""}, true},
		{"missing webhook secret", map[string]string{"STRIPE_WEBHOOK_SECRET": ""}, true},
		{"postgres without url", map[string]string{"STORE_DRIVER": "postgres"}, true},
		{"postgres with url", map[string]string{"STORE_DRIVER": "postgres", "DATABASE_URL": "postgres://localhost/ledger"}, false},
		{"unknown store", map[string]string{"STORE_DRIVER": "mongo"}, true},
		{"rabbitmq without url", map[string]string{"EVENTS_DRIVER": "rabbitmq"}, true},
		{"kafka with brokers", map[string]string{"EVENTS_DRIVER": "kafka", "KAFKA_BROKERS": "k1:9092, k2:9092"}, false},
		{"negative bonus", map[string]string{"SIGNUP_BONUS_CREDITS": "-1"}, true},
		{"memory store upper case", map[string]string{"STORE_DRIVER": "MEMORY"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestKafkaBrokerList(t *testing.T) {
	cfg := &Config{KafkaBrokers: " k1:9092,,k2:9092 "}
	got := cfg.KafkaBrokerList()
	if len(got) != 2 || got[0] != "k1:9092" || got[1] != "k2:9092" {
		t.Fatalf("unexpected brokers: %v", got)
	}
}
