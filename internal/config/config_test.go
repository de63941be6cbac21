package config

import (
	"os"
	"testing"
)

func TestLoadDefaultsWithNoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.IPCMaxQueueSize != 0 {
		t.Errorf("IPCMaxQueueSize = %d, want 0 (unlimited default)", cfg.IPCMaxQueueSize)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	os.Setenv("SOMEIPC_IPC_MAX_QUEUE_SIZE", "256")
	defer os.Unsetenv("SOMEIPC_IPC_MAX_QUEUE_SIZE")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.IPCMaxQueueSize != 256 {
		t.Errorf("IPCMaxQueueSize = %d, want 256", cfg.IPCMaxQueueSize)
	}
}

func TestLoadFromYAMLFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "someipc-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString("someipd_ipc_domain: vehicle-bus\nsomeipd_ipc_port: 30509\nipc_max_queue_size: 64\n"); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(f.Name())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SomeipdIPCDomain != "vehicle-bus" {
		t.Errorf("SomeipdIPCDomain = %q, want vehicle-bus", cfg.SomeipdIPCDomain)
	}
	if cfg.SomeipdIPCPort != 30509 {
		t.Errorf("SomeipdIPCPort = %d, want 30509", cfg.SomeipdIPCPort)
	}
	if cfg.IPCMaxQueueSize != 64 {
		t.Errorf("IPCMaxQueueSize = %d, want 64", cfg.IPCMaxQueueSize)
	}
}
