package main

import (
	"os"
	"path/filepath"
	"testing"

	jsoniter "github.com/json-iterator/go"
)

func TestLoadAppConfigRootOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"channels": {"web": {"port": 9000}}}`), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := loadAppConfig(path, ""); err == nil {
		t.Fatal("expected error without sandbox_root or --root")
	}

	cfg, err := loadAppConfig(path, "/srv/data")
	if err != nil {
		t.Fatalf("loadAppConfig: %v", err)
	}
	if cfg.SandboxRoot != "/srv/data" {
		t.Errorf("SandboxRoot = %q", cfg.SandboxRoot)
	}
	if _, ok := cfg.Channels["web"]; !ok {
		t.Errorf("channels from file lost: %v", cfg.Channels)
	}
}

func TestLoadAppConfigMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "config.json")

	if _, err := loadAppConfig(missing, ""); err == nil {
		t.Error("expected error for missing config without --root")
	}
	cfg, err := loadAppConfig(missing, "/srv/data")
	if err != nil || cfg.SandboxRoot != "/srv/data" {
		t.Errorf("loadAppConfig = %+v, %v", cfg, err)
	}
}

func TestChannelConfigs(t *testing.T) {
	out, err := channelConfigs(nil, 0)
	if err != nil || string(out["web"]) != `{}` {
		t.Errorf("default web channel = %s, %v", out["web"], err)
	}

	out, err = channelConfigs(map[string]jsoniter.RawMessage{}, 9100)
	if err != nil {
		t.Fatal(err)
	}
	var web struct{ Port int }
	if err := json.Unmarshal(out["web"], &web); err != nil || web.Port != 9100 {
		t.Errorf("web = %s, %v", out["web"], err)
	}
}
