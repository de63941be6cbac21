// Package config loads the IPC connection record spec.md §6 names
// (someipd_ipc_domain, someipd_ipc_port, ipc_max_queue_size) from a YAML
// file overlaid with SOMEIPC_-prefixed environment variables, following
// the koanf-based loader pattern used by the llmrouter example repo in the
// retrieval pack — the teacher itself takes all configuration as Go struct
// literals and has no file/env loading analogue.
package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the environment variable prefix consulted for overrides,
// e.g. SOMEIPC_IPC_MAX_QUEUE_SIZE.
const EnvPrefix = "SOMEIPC_"

// Config is the connection record spec.md §6 requires.
type Config struct {
	// SomeipdIPCDomain is the daemon's IPC domain name, used together with
	// SomeipdIPCPort to compose the Unix-domain-socket handshake path.
	SomeipdIPCDomain string `koanf:"someipd_ipc_domain"`

	// SomeipdIPCPort is the daemon's IPC port number within that domain.
	SomeipdIPCPort int `koanf:"someipd_ipc_port"`

	// IPCMaxQueueSize bounds the Send Queue's data admission class; 0
	// means unlimited, per spec.md §6.
	IPCMaxQueueSize int `koanf:"ipc_max_queue_size"`
}

// Default returns the zero-configuration default: unlimited queue size,
// empty domain/port (the caller must supply those before connecting).
func Default() Config {
	return Config{IPCMaxQueueSize: 0}
}

// Load reads path (a YAML file) and overlays any SOMEIPC_-prefixed
// environment variables on top, e.g. SOMEIPC_IPC_MAX_QUEUE_SIZE=128
// overrides ipc_max_queue_size. path may be empty, in which case only the
// environment overlay (and the zero-value defaults) apply.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, err
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
