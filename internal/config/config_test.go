package config

import (
	"testing"
	"time"

	"github.com/foodloop/assistant/internal/storage"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ASSISTANT_AGENT", "")
	t.Setenv("DIALOGFLOW_TIMEOUT", "")
	t.Setenv("STORE_DRIVER", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Agent != AgentDialogflow {
		t.Errorf("Agent = %q, want %q", cfg.Agent, AgentDialogflow)
	}
	if cfg.Dialogflow.LanguageCode != "en" {
		t.Errorf("LanguageCode = %q, want en", cfg.Dialogflow.LanguageCode)
	}
	if cfg.Dialogflow.Timeout != 0 {
		t.Errorf("Timeout = %v, want 0", cfg.Dialogflow.Timeout)
	}
	if cfg.Store.Driver != storage.DriverMemory {
		t.Errorf("Store.Driver = %q, want memory", cfg.Store.Driver)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9090")
	t.Setenv("ASSISTANT_AGENT", "ARK")
	t.Setenv("DIALOGFLOW_PROJECT_ID", "foodloop-agent")
	t.Setenv("DIALOGFLOW_STATIC_TOKEN", "tok")
	t.Setenv("DIALOGFLOW_TIMEOUT", "15s")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("STORE_SQLITE_PATH", "/tmp/x.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9090" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
	if cfg.Agent != AgentArk {
		t.Errorf("Agent = %q, want ark", cfg.Agent)
	}
	if !cfg.Dialogflow.Enabled() {
		t.Error("dialogflow should be enabled")
	}
	if cfg.Dialogflow.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v", cfg.Dialogflow.Timeout)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.SQLitePath != "/tmp/x.db" {
		t.Errorf("Store = %+v", cfg.Store)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"port with space":  {"PORT", "80 80"},
		"unknown agent":    {"ASSISTANT_AGENT", "watson"},
		"bad timeout":      {"DIALOGFLOW_TIMEOUT", "soon"},
		"negative timeout": {"DIALOGFLOW_TIMEOUT", "-1s"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", kv[0], kv[1])
			}
		})
	}
}

func TestAIConfigEnabled(t *testing.T) {
	if (AIConfig{Model: "m"}).Enabled() {
		t.Error("model without keys should be disabled")
	}
	if !(AIConfig{Model: "m", APIKey: "k"}).Enabled() {
		t.Error("model with api key should be enabled")
	}
	if !(AIConfig{Model: "m", AccessKey: "a", SecretKey: "s"}).Enabled() {
		t.Error("model with ak/sk should be enabled")
	}
}
