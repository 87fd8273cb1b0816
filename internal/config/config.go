// Package config loads the daemon's YAML configuration file, applying the
// same defaults-then-unmarshal pattern as the teacher's own config loaders.
package config

import (
	"crypto/md5"
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arrcus-clone/lsoe/internal/codec"
)

// dmiProductUUIDPath is where Linux exposes a host-unique identifier, used
// to derive a default local-id when none is configured.
const dmiProductUUIDPath = "/sys/class/dmi/id/product_uuid"

// Config is the full set of tunables a running lsoed reads from its config
// file, one field per row of the local-id/timers table.
type Config struct {
	RetransmitInitialInterval    time.Duration `yaml:"retransmit-initial-interval"`
	RetransmitExponentialBackoff bool          `yaml:"retransmit-exponential-backoff"`
	RetransmitMaxDrop            int           `yaml:"retransmit-max-drop"`
	KeepaliveSendInterval        time.Duration `yaml:"keepalive-send-interval"`
	KeepaliveReceiveTimeout      time.Duration `yaml:"keepalive-receive-timeout"`
	HelloInterval                time.Duration `yaml:"hello-interval"`
	ReassemblyTimeout            time.Duration `yaml:"reassembly-timeout"`
	MACAddressCacheTimeout       time.Duration `yaml:"mac-address-cache-timeout"`

	// LocalID is 10 octets of hex (20 characters). Left empty, it's derived
	// at load time from a host-unique identifier.
	LocalID string `yaml:"local-id"`

	// Interfaces lists the interfaces whose promiscuous-mode membership is
	// requested on the LSOE socket. Receiving and HELLO beaconing are not
	// restricted by it: both cover every interface the kernel reports.
	Interfaces []string `yaml:"interfaces"`

	MetricsEnable bool   `yaml:"metrics-enable"`
	MetricsAddr   string `yaml:"metrics-addr"`
}

// defaults mirrors the §6 timer table: every value here is what an absent
// YAML key resolves to. A key present in the file, even with a zero value,
// overrides its default.
func defaults() Config {
	return Config{
		RetransmitInitialInterval:    time.Second,
		RetransmitExponentialBackoff: true,
		RetransmitMaxDrop:            3,
		KeepaliveSendInterval:        time.Second,
		KeepaliveReceiveTimeout:      60 * time.Second,
		HelloInterval:                60 * time.Second,
		ReassemblyTimeout:            time.Second,
		MACAddressCacheTimeout:       300 * time.Second,
		MetricsAddr:                  ":9090",
	}
}

// Load reads and parses the YAML file at path, starting from defaults and
// letting present keys override them, then fills in a derived local-id if
// none was configured. An empty path returns the bare defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if cfg.LocalID == "" {
		id, err := deriveLocalID()
		if err != nil {
			return nil, fmt.Errorf("config: derive local-id: %w", err)
		}
		cfg.LocalID = id
	}
	return &cfg, nil
}

// LocalIDBytes decodes the configured hex local-id into the fixed-size
// array OPEN PDUs carry.
func (c *Config) LocalIDBytes() ([codec.LocalIDSize]byte, error) {
	var out [codec.LocalIDSize]byte
	if len(c.LocalID) != codec.LocalIDSize*2 {
		return out, fmt.Errorf("config: local-id must be %d hex octets, got %q", codec.LocalIDSize, c.LocalID)
	}
	for i := range out {
		var b byte
		if _, err := fmt.Sscanf(c.LocalID[i*2:i*2+2], "%02x", &b); err != nil {
			return out, fmt.Errorf("config: invalid local-id %q: %w", c.LocalID, err)
		}
		out[i] = b
	}
	return out, nil
}

// deriveLocalID reproduces the original implementation's configure_id: an
// MD5 digest of the host's DMI product UUID, truncated to LocalIDSize
// bytes. When the DMI file isn't readable (non-Linux, or a container
// without /sys/class/dmi mounted), it falls back to the first non-loopback
// interface's MAC address, zero-padded, so the daemon still gets a stable
// identity instead of refusing to start.
func deriveLocalID() (string, error) {
	if data, err := os.ReadFile(dmiProductUUIDPath); err == nil {
		sum := md5.Sum(data)
		return fmt.Sprintf("%x", sum[:codec.LocalIDSize]), nil
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("no DMI product UUID and no interfaces available: %w", err)
	}
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagLoopback != 0 || len(ifc.HardwareAddr) == 0 {
			continue
		}
		var id [codec.LocalIDSize]byte
		copy(id[:], ifc.HardwareAddr)
		return fmt.Sprintf("%x", id[:]), nil
	}
	return "", fmt.Errorf("no DMI product UUID and no interface with a hardware address")
}
