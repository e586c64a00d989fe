package rpcdial

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeTestCA generates a self-signed CA certificate and writes it to dir.
func writeTestCA(t *testing.T, dir string) string {
	t.Helper()

	priv, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}

	certPath := filepath.Join(dir, "ca.pem")
	if err := os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: derBytes}), 0o600); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	return certPath
}

func TestDialOptionsPlaintext(t *testing.T) {
	opts, err := DialOptions(context.Background(), Endpoint{Host: "localhost", Port: 50443}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(opts) != 1 {
		t.Fatalf("expected 1 option (insecure creds), got %d", len(opts))
	}
}

func TestDialOptionsTLSWithCA(t *testing.T) {
	ca := writeTestCA(t, t.TempDir())

	ep := Endpoint{Host: "hs.example.com", Port: 443, TLS: true, CACertPath: ca}
	opts, err := DialOptions(context.Background(), ep, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(opts) != 1 {
		t.Fatalf("expected 1 option (TLS creds), got %d", len(opts))
	}

	cfg, err := ep.BuildTLSConfig()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if cfg.ServerName != "hs.example.com" {
		t.Fatalf("expected SNI to default to host, got %q", cfg.ServerName)
	}
	if cfg.RootCAs == nil {
		t.Fatal("expected custom root pool")
	}
}

func TestBuildTLSConfigInvalidCA(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.pem")
	if err := os.WriteFile(bad, []byte("not a cert"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := (Endpoint{Host: "h", Port: 1, TLS: true, CACertPath: bad}).BuildTLSConfig(); err == nil {
		t.Fatal("expected error for invalid CA cert")
	}
	if _, err := (Endpoint{Host: "h", Port: 1, TLS: true, CACertPath: "/nonexistent/ca.pem"}).BuildTLSConfig(); err == nil {
		t.Fatal("expected error for missing CA file")
	}
}

func TestBuildTLSConfigPlaintextIsNil(t *testing.T) {
	cfg, err := (Endpoint{Host: "h", Port: 1, CACertPath: "/ignored"}).BuildTLSConfig()
	if err != nil || cfg != nil {
		t.Fatalf("expected nil config, got %v, %v", cfg, err)
	}
}

func TestBuildTLSConfigInsecure(t *testing.T) {
	cfg, err := (Endpoint{Host: "h", Port: 1, TLS: true, Insecure: true, ServerName: "sni"}).BuildTLSConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.InsecureSkipVerify || cfg.ServerName != "sni" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestDialOptionsQoS(t *testing.T) {
	opts, err := DialOptions(context.Background(), Endpoint{Host: "h", Port: 1}, DefaultQoS())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(opts) != 4 {
		t.Fatalf("expected 4 options (creds + keepalive + connect + msg size), got %d", len(opts))
	}
}

func TestDialOptionsContextDialer(t *testing.T) {
	customDialer := func(ctx context.Context, addr string) (net.Conn, error) {
		return nil, nil
	}
	ctx := ContextWithDialer(context.Background(), customDialer)
	opts, err := DialOptions(ctx, Endpoint{Host: "h", Port: 1}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(opts) != 2 {
		t.Fatalf("expected 2 options (insecure + dialer), got %d", len(opts))
	}
}

func TestNewClientValidatesEndpoint(t *testing.T) {
	if _, err := NewClient(context.Background(), Endpoint{Host: " ", Port: 50443}, nil); err == nil {
		t.Fatal("expected error for blank host")
	}
	if _, err := NewClient(context.Background(), Endpoint{Host: "localhost", Port: 0}, nil); err == nil {
		t.Fatal("expected error for port 0")
	}

	conn, err := NewClient(context.Background(), Endpoint{Host: "localhost", Port: 50443}, DefaultQoS())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer conn.Close()
	if conn.Target() != "passthrough:///localhost:50443" {
		t.Fatalf("unexpected target %q", conn.Target())
	}
}
