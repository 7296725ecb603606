// Package tls builds crypto/tls configurations for the board's HTTP and gRPC
// endpoints and for the CLI client.
//
// All configurations require TLS 1.3. A CA file is optional: when set, the
// server requires and verifies client certificates (mutual TLS) and the
// client verifies the server against it instead of the system roots.
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// Config holds certificate file paths for a server or client.
type Config struct {
	Enabled  bool
	CertFile string
	KeyFile  string
	CAFile   string
}

// Validate returns an error if TLS is enabled but the certificate or key is
// missing or any configured file is unreadable.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.CertFile == "" || c.KeyFile == "" {
		return errors.New("tls enabled but cert/key files not specified")
	}
	return statFiles(c.CertFile, c.KeyFile, c.CAFile)
}

// Mutual reports whether client certificates are verified.
func (c Config) Mutual() bool {
	return c.Enabled && c.CAFile != ""
}

// ServerConfig returns the server-side TLS configuration, or nil when TLS is
// disabled.
func ServerConfig(c Config) (*tls.Config, error) {
	if !c.Enabled {
		return nil, nil
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load server certificate: %w", err)
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
	}

	if c.CAFile != "" {
		pool, err := loadCAPool(c.CAFile)
		if err != nil {
			return nil, err
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}

	return cfg, nil
}

// ClientConfig returns the client-side TLS configuration for connecting to
// serverName, or nil when TLS is disabled. Cert and key are only presented
// when both are set.
func ClientConfig(c Config, serverName string) (*tls.Config, error) {
	if !c.Enabled {
		return nil, nil
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return nil, errors.New("client cert and key must be set together")
	}
	if err := statFiles(c.CertFile, c.KeyFile, c.CAFile); err != nil {
		return nil, err
	}

	cfg := &tls.Config{
		ServerName: serverName,
		MinVersion: tls.VersionTLS13,
	}

	if c.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	if c.CAFile != "" {
		pool, err := loadCAPool(c.CAFile)
		if err != nil {
			return nil, err
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}

func loadCAPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CA certificate: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", path)
	}
	return pool, nil
}

func statFiles(paths ...string) error {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("tls file %q: %w", path, err)
		}
	}
	return nil
}
