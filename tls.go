package main

import (
	"crypto/tls"
	"fmt"

	"github.com/jjYBdx4IL/james-protocols/config"
)

// loadTLSConfig builds the listener TLS configuration from a certificate
// pair on disk.
func loadTLSConfig(cfg *config.ListenerConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}
	return &tls.Config{
		Certificates:             []tls.Certificate{cert},
		MinVersion:               tls.VersionTLS12,
		ClientAuth:               tls.NoClientCert,
		PreferServerCipherSuites: true,
		Renegotiation:            tls.RenegotiateNever,
	}, nil
}
