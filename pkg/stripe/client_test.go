package stripe

import (
	"context"
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

func TestNewClientValidatesKeyAgainstEnv(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.StripeConfig
		wantErr bool
	}{
		{name: "test key in test env", cfg: config.StripeConfig{APIKey: "sk_test_123", Env: "test"}},
		{name: "restricted live key", cfg: config.StripeConfig{APIKey: "rk_live_123", Env: "live"}},
		{name: "live key in test env", cfg: config.StripeConfig{APIKey: "sk_live_123", Env: "test"}, wantErr: true},
		{name: "missing key", cfg: config.StripeConfig{Env: "test"}, wantErr: true},
		{name: "unknown env", cfg: config.StripeConfig{APIKey: "sk_test_123", Env: "staging"}, wantErr: true},
		{name: "webhook secret", cfg: config.StripeConfig{APIKey: "sk_test_123", Env: "test", WebhookSecret: "whsec_abc"}},
		{name: "malformed webhook secret", cfg: config.StripeConfig{APIKey: "sk_test_123", Env: "test", WebhookSecret: "abc"}, wantErr: true},
	}
	for _, tt := range tests {
		client, err := NewClient(context.Background(), tt.cfg, nil)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error", tt.name)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tt.name, err)
		}
		if client.Environment() != tt.cfg.Env {
			t.Fatalf("%s: unexpected environment %q", tt.name, client.Environment())
		}
		if client.SigningSecret() != tt.cfg.WebhookSecret {
			t.Fatalf("%s: unexpected signing secret %q", tt.name, client.SigningSecret())
		}
	}
}
