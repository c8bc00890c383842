package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Validator.ApprovalThreshold != 70 {
		t.Errorf("approval threshold = %v, want 70", cfg.Validator.ApprovalThreshold)
	}
	if cfg.Validator.MinTradesForValidation != 100 {
		t.Errorf("min trades = %v, want 100", cfg.Validator.MinTradesForValidation)
	}
	if cfg.Server.Port != 8090 {
		t.Errorf("port = %v, want 8090", cfg.Server.Port)
	}
	if err := cfg.Validator.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("validator:\n  approval_threshold: 80\nserver:\n  port: 9000\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Validator.ApprovalThreshold != 80 {
		t.Errorf("approval threshold = %v, want 80", cfg.Validator.ApprovalThreshold)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %v, want 9000", cfg.Server.Port)
	}
	// Untouched fields keep their defaults.
	if cfg.Validator.MaxDrawdown != 0.20 {
		t.Errorf("max drawdown = %v, want default 0.20", cfg.Validator.MaxDrawdown)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("VALIDATOR_VALIDATOR_MONTE_CARLO_SIMULATIONS", "250")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Validator.MonteCarloSimulations != 250 {
		t.Errorf("simulations = %v, want 250", cfg.Validator.MonteCarloSimulations)
	}
}
