package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Output string `toml:"output"` // "stdout", "stderr", "syslog", or a file path
	Format string `toml:"format"` // "json" or "console"
	Level  string `toml:"level"`  // "debug", "info", "warn", "error"
}

// MetricsConfig holds the metrics HTTP endpoint configuration
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"` // HTTP listen address for /metrics and /healthz
}

// ListenerConfig holds settings shared by all protocol listeners
type ListenerConfig struct {
	Start          bool   `toml:"start"`
	Addr           string `toml:"addr"`
	MaxConnections int    `toml:"max_connections"` // 0 = unlimited
	MaxLineLength  int    `toml:"max_line_length"` // Maximum command line length in bytes (0 = default 16 KiB)
	ListenBacklog  int    `toml:"listen_backlog"`  // TCP listen backlog (0 = default 250)
	IdleTimeout    string `toml:"idle_timeout"`    // Idle timeout before the connection is dropped (e.g. "5m")
	TLS            bool   `toml:"tls"`             // Implicit TLS on accept
	TLSCertFile    string `toml:"tls_cert_file"`
	TLSKeyFile     string `toml:"tls_key_file"`
	TLSVerify      bool   `toml:"tls_verify"`
}

// GetIdleTimeout parses the idle timeout duration
func (l *ListenerConfig) GetIdleTimeout() (time.Duration, error) {
	if l.IdleTimeout == "" {
		return 5 * time.Minute, nil
	}
	return time.ParseDuration(l.IdleTimeout)
}

// GetMaxLineLength returns the configured command line limit
func (l *ListenerConfig) GetMaxLineLength() int {
	if l.MaxLineLength == 0 {
		return 16 * 1024
	}
	return l.MaxLineLength
}

// GetListenBacklog returns the configured listen backlog
func (l *ListenerConfig) GetListenBacklog() int {
	if l.ListenBacklog == 0 {
		return 250
	}
	return l.ListenBacklog
}

// SMTPConfig holds SMTP (and LMTP) policy configuration
type SMTPConfig struct {
	ListenerConfig
	HelloName            string   `toml:"hello_name"`       // Name used in HELO/EHLO responses (default: os.Hostname)
	Greeting             string   `toml:"greeting"`         // Service greeting banner text
	MaxMessageSize       int64    `toml:"max_message_size"` // Maximum accepted message size in bytes (0 = unlimited)
	RelayNetworks        []string `toml:"relay_networks"`   // CIDRs allowed to relay without authentication
	AuthExemptNetworks   []string `toml:"auth_exempt_networks"`
	RequireAuth          bool     `toml:"require_auth"`     // Require AUTH before MAIL, except for exempt networks
	RequireBrackets      bool     `toml:"require_brackets"` // Enforce <angle brackets> around addresses
	RequireHelo          bool     `toml:"require_helo"`     // Reject MAIL before HELO/EHLO
	VerifySenderDomain   bool     `toml:"verify_sender_domain"`
	relayNetworks        []*net.IPNet
	authExemptNetworks   []*net.IPNet
}

// POP3Config holds POP3 configuration
type POP3Config struct {
	ListenerConfig
	Greeting string `toml:"greeting"`
}

// ServersConfig groups the protocol listener sections
type ServersConfig struct {
	SMTP SMTPConfig `toml:"smtp"`
	LMTP SMTPConfig `toml:"lmtp"`
	POP3 POP3Config `toml:"pop3"`
}

// Config is the top-level daemon configuration
type Config struct {
	Logging LoggingConfig `toml:"logging"`
	Metrics MetricsConfig `toml:"metrics"`
	Servers ServersConfig `toml:"servers"`
}

// NewDefaultConfig returns a config with application defaults
func NewDefaultConfig() Config {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "localhost"
	}
	return Config{
		Logging: LoggingConfig{
			Output: "stderr",
			Format: "console",
			Level:  "info",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "localhost:9090",
		},
		Servers: ServersConfig{
			SMTP: SMTPConfig{
				ListenerConfig: ListenerConfig{Addr: ":2525"},
				HelloName:      hostname,
				RequireBrackets: true,
				RequireHelo:     true,
			},
			LMTP: SMTPConfig{
				ListenerConfig: ListenerConfig{Addr: ":2424"},
				HelloName:      hostname,
			},
			POP3: POP3Config{
				ListenerConfig: ListenerConfig{Addr: ":1110"},
			},
		},
	}
}

// Load reads a TOML config file over the defaults and validates the result
func Load(path string) (Config, error) {
	cfg := NewDefaultConfig()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors and precompiles network lists
func (c *Config) Validate() error {
	for name, s := range map[string]*SMTPConfig{"smtp": &c.Servers.SMTP, "lmtp": &c.Servers.LMTP} {
		if s.Start && s.Addr == "" {
			return fmt.Errorf("servers.%s: addr is required when start is enabled", name)
		}
		if _, err := s.GetIdleTimeout(); err != nil {
			return fmt.Errorf("servers.%s: invalid idle_timeout: %w", name, err)
		}
		var err error
		if s.relayNetworks, err = parseNetworks(s.RelayNetworks); err != nil {
			return fmt.Errorf("servers.%s: invalid relay_networks: %w", name, err)
		}
		if s.authExemptNetworks, err = parseNetworks(s.AuthExemptNetworks); err != nil {
			return fmt.Errorf("servers.%s: invalid auth_exempt_networks: %w", name, err)
		}
		if s.TLS && (s.TLSCertFile == "" || s.TLSKeyFile == "") {
			return fmt.Errorf("servers.%s: tls enabled but tls_cert_file/tls_key_file not set", name)
		}
	}
	p := &c.Servers.POP3
	if p.Start && p.Addr == "" {
		return fmt.Errorf("servers.pop3: addr is required when start is enabled")
	}
	if _, err := p.GetIdleTimeout(); err != nil {
		return fmt.Errorf("servers.pop3: invalid idle_timeout: %w", err)
	}
	return nil
}

// parseNetworks parses CIDR strings. Bare IPs are treated as /32 (or /128).
func parseNetworks(specs []string) ([]*net.IPNet, error) {
	var nets []*net.IPNet
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		if !strings.Contains(spec, "/") {
			if ip := net.ParseIP(spec); ip != nil {
				bits := 32
				if ip.To4() == nil {
					bits = 128
				}
				spec = fmt.Sprintf("%s/%d", spec, bits)
			}
		}
		_, ipNet, err := net.ParseCIDR(spec)
		if err != nil {
			return nil, fmt.Errorf("invalid network %q: %w", spec, err)
		}
		nets = append(nets, ipNet)
	}
	return nets, nil
}

func ipInNetworks(remoteIP string, nets []*net.IPNet) bool {
	ip := net.ParseIP(remoteIP)
	if ip == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// HelloNameOrDefault returns the configured hello name, falling back to the hostname
func (s *SMTPConfig) HelloNameOrDefault() string {
	if s.HelloName != "" {
		return s.HelloName
	}
	hostname, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return hostname
}

// IsRelayingAllowed reports whether the remote IP may relay without authentication
func (s *SMTPConfig) IsRelayingAllowed(remoteIP string) bool {
	return ipInNetworks(remoteIP, s.relayNetworks)
}

// IsAuthRequired reports whether the remote IP must authenticate before MAIL
func (s *SMTPConfig) IsAuthRequired(remoteIP string) bool {
	if !s.RequireAuth {
		return false
	}
	return !ipInNetworks(remoteIP, s.authExemptNetworks)
}
