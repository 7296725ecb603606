package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	cryptotls "crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeSelfSigned writes a self-signed CA certificate and key to dir and
// returns their paths. The certificate doubles as a leaf for localhost.
func writeSelfSigned(t *testing.T, dir string) (certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "localhost"},
		DNSNames:              []string{"localhost"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		IsCA:                  true,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}

	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")
	if err := os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
		t.Fatal(err)
	}
	return certFile, keyFile
}

func TestConfig_Validate(t *testing.T) {
	dir := t.TempDir()
	cert, key := writeSelfSigned(t, dir)

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled", Config{}, false},
		{"server only", Config{Enabled: true, CertFile: cert, KeyFile: key}, false},
		{"mutual", Config{Enabled: true, CertFile: cert, KeyFile: key, CAFile: cert}, false},
		{"missing key", Config{Enabled: true, CertFile: cert}, true},
		{"missing file", Config{Enabled: true, CertFile: cert, KeyFile: filepath.Join(dir, "nope.pem")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestServerConfig(t *testing.T) {
	cert, key := writeSelfSigned(t, t.TempDir())

	got, err := ServerConfig(Config{})
	if err != nil || got != nil {
		t.Fatalf("disabled ServerConfig() = %v, %v; want nil, nil", got, err)
	}

	got, err = ServerConfig(Config{Enabled: true, CertFile: cert, KeyFile: key})
	if err != nil {
		t.Fatalf("ServerConfig() error = %v", err)
	}
	if got.MinVersion != cryptotls.VersionTLS13 {
		t.Errorf("MinVersion = %x, want TLS 1.3", got.MinVersion)
	}
	if got.ClientAuth != cryptotls.NoClientCert {
		t.Errorf("ClientAuth = %v without CA, want NoClientCert", got.ClientAuth)
	}

	got, err = ServerConfig(Config{Enabled: true, CertFile: cert, KeyFile: key, CAFile: cert})
	if err != nil {
		t.Fatalf("ServerConfig() mutual error = %v", err)
	}
	if got.ClientAuth != cryptotls.RequireAndVerifyClientCert {
		t.Errorf("ClientAuth = %v with CA, want RequireAndVerifyClientCert", got.ClientAuth)
	}
}

func TestClientConfig(t *testing.T) {
	dir := t.TempDir()
	cert, key := writeSelfSigned(t, dir)

	got, err := ClientConfig(Config{Enabled: true, CAFile: cert}, "localhost")
	if err != nil {
		t.Fatalf("ClientConfig() error = %v", err)
	}
	if got.ServerName != "localhost" || got.RootCAs == nil || len(got.Certificates) != 0 {
		t.Errorf("unexpected client config: %+v", got)
	}

	got, err = ClientConfig(Config{Enabled: true, CertFile: cert, KeyFile: key, CAFile: cert}, "localhost")
	if err != nil {
		t.Fatalf("ClientConfig() mutual error = %v", err)
	}
	if len(got.Certificates) != 1 {
		t.Errorf("Certificates = %d, want 1", len(got.Certificates))
	}

	if _, err := ClientConfig(Config{Enabled: true, CertFile: cert}, "localhost"); err == nil {
		t.Error("expected error for cert without key")
	}

	bad := filepath.Join(dir, "bad.pem")
	if err := os.WriteFile(bad, []byte("not a cert"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := ClientConfig(Config{Enabled: true, CAFile: bad}, "localhost"); err == nil {
		t.Error("expected error for CA file without certificates")
	}
}
