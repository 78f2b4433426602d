package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// BackendTLS builds a *tls.Config for talking to a backend served with a
// private CA. Returns nil, nil if no CA is configured (system roots).
func (c *Config) BackendTLS() (*tls.Config, error) {
	if c.TLSCACert == "" {
		return nil, nil
	}

	caPEM, err := os.ReadFile(c.TLSCACert)
	if err != nil {
		return nil, fmt.Errorf("read backend CA cert: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("failed to parse backend CA cert")
	}

	tlsConfig := &tls.Config{
		RootCAs:    pool,
		MinVersion: tls.VersionTLS12,
	}
	if c.TLSServerName != "" {
		tlsConfig.ServerName = c.TLSServerName
	}

	return tlsConfig, nil
}
