package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func generateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}
	return key
}

func writePEM(t *testing.T, blockType string, der []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "key.pem")
	if err := os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der}), 0600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestCredentials_Sign(t *testing.T) {
	creds := &Credentials{KeyID: "provider-key", PrivateKey: generateKey(t)}

	h, err := creds.Sign("GET", "/v1/provider")
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	if h.Get(HeaderKey) != "provider-key" {
		t.Errorf("%s = %q, want %q", HeaderKey, h.Get(HeaderKey), "provider-key")
	}
	if h.Get(HeaderTimestamp) == "" {
		t.Errorf("%s is empty", HeaderTimestamp)
	}
	if _, err := base64.StdEncoding.DecodeString(h.Get(HeaderSignature)); err != nil {
		t.Errorf("%s is not valid base64: %v", HeaderSignature, err)
	}
}

func TestVerify(t *testing.T) {
	key := generateKey(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	creds := &Credentials{KeyID: "k1", PrivateKey: key, now: func() time.Time { return now }}

	h, err := creds.Sign("GET", "/v1/provider")
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	tests := []struct {
		name    string
		pub     *rsa.PublicKey
		method  string
		path    string
		at      time.Time
		wantErr error
	}{
		{name: "valid", pub: &key.PublicKey, method: "GET", path: "/v1/provider", at: now},
		{name: "within skew", pub: &key.PublicKey, method: "GET", path: "/v1/provider", at: now.Add(10 * time.Second)},
		{name: "stale", pub: &key.PublicKey, method: "GET", path: "/v1/provider", at: now.Add(time.Minute), wantErr: ErrStaleTimestamp},
		{name: "wrong path", pub: &key.PublicKey, method: "GET", path: "/other", at: now, wantErr: ErrBadSignature},
		{name: "wrong key", pub: &generateKey(t).PublicKey, method: "GET", path: "/v1/provider", at: now, wantErr: ErrBadSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keyID, err := Verify(tt.pub, h, tt.method, tt.path, DefaultMaxSkew, tt.at)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Verify() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify() unexpected error: %v", err)
			}
			if keyID != "k1" {
				t.Errorf("Verify() keyID = %q, want %q", keyID, "k1")
			}
		})
	}
}

func TestVerify_MissingHeaders(t *testing.T) {
	key := generateKey(t)
	creds := &Credentials{KeyID: "k1", PrivateKey: key}
	h, _ := creds.Sign("GET", "/")
	h.Del(HeaderSignature)

	if _, err := Verify(&key.PublicKey, h, "GET", "/", 0, time.Now()); !errors.Is(err, ErrMissingHeaders) {
		t.Errorf("Verify() error = %v, want ErrMissingHeaders", err)
	}
}

func TestLoadPrivateKey_PKCS8(t *testing.T) {
	key := generateKey(t)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("failed to marshal PKCS#8: %v", err)
	}

	loaded, err := LoadPrivateKey(writePEM(t, "PRIVATE KEY", der))
	if err != nil {
		t.Fatalf("LoadPrivateKey failed: %v", err)
	}
	if loaded.N.Cmp(key.N) != 0 {
		t.Error("loaded key does not match original")
	}
}

func TestLoadPrivateKey_PKCS1(t *testing.T) {
	key := generateKey(t)

	loaded, err := LoadPrivateKey(writePEM(t, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(key)))
	if err != nil {
		t.Fatalf("LoadPrivateKey failed: %v", err)
	}
	if loaded.N.Cmp(key.N) != 0 {
		t.Error("loaded key does not match original")
	}
}

func TestLoadPublicKey(t *testing.T) {
	key := generateKey(t)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("failed to marshal PKIX: %v", err)
	}

	pkix, err := LoadPublicKey(writePEM(t, "PUBLIC KEY", der))
	if err != nil {
		t.Fatalf("LoadPublicKey(PKIX) failed: %v", err)
	}
	if pkix.N.Cmp(key.N) != 0 {
		t.Error("PKIX key does not match original")
	}

	pkcs1, err := LoadPublicKey(writePEM(t, "RSA PUBLIC KEY", x509.MarshalPKCS1PublicKey(&key.PublicKey)))
	if err != nil {
		t.Fatalf("LoadPublicKey(PKCS1) failed: %v", err)
	}
	if pkcs1.N.Cmp(key.N) != 0 {
		t.Error("PKCS#1 key does not match original")
	}
}

func TestLoadPrivateKey_Errors(t *testing.T) {
	if _, err := LoadPrivateKey("/nonexistent/path/to/key.pem"); err == nil {
		t.Error("expected error for nonexistent file")
	}

	path := filepath.Join(t.TempDir(), "invalid.pem")
	if err := os.WriteFile(path, []byte("not a pem file"), 0600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	if _, err := LoadPrivateKey(path); err == nil {
		t.Error("expected error for invalid PEM")
	}
}

func TestLoadCredentials(t *testing.T) {
	key := generateKey(t)
	der, _ := x509.MarshalPKCS8PrivateKey(key)

	creds, err := LoadCredentials("my-key-id", writePEM(t, "PRIVATE KEY", der))
	if err != nil {
		t.Fatalf("LoadCredentials failed: %v", err)
	}
	if creds.KeyID != "my-key-id" {
		t.Errorf("KeyID = %q, want %q", creds.KeyID, "my-key-id")
	}
	if creds.PrivateKey == nil {
		t.Error("PrivateKey is nil")
	}

	if _, err := LoadCredentials("", "/some/path"); err == nil {
		t.Error("expected error for missing key ID")
	}
}
