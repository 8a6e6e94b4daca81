// Package auth signs and verifies Media Router link handshakes with
// RSA-PSS signatures.
package auth

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"
)

// Handshake headers.
const (
	HeaderKey       = "MR-ACCESS-KEY"
	HeaderTimestamp = "MR-ACCESS-TIMESTAMP"
	HeaderSignature = "MR-ACCESS-SIGNATURE"
)

// DefaultMaxSkew bounds how old a signed timestamp may be.
const DefaultMaxSkew = 30 * time.Second

var (
	ErrMissingHeaders = errors.New("missing authentication headers")
	ErrStaleTimestamp = errors.New("signature timestamp outside allowed skew")
	ErrBadSignature   = errors.New("signature verification failed")
)

// Credentials holds the provider key ID and private key for signing.
type Credentials struct {
	KeyID      string
	PrivateKey *rsa.PrivateKey

	now func() time.Time
}

// LoadCredentials loads credentials from key ID and private key file path.
func LoadCredentials(keyID, privateKeyPath string) (*Credentials, error) {
	if keyID == "" {
		return nil, fmt.Errorf("key ID is required")
	}
	if privateKeyPath == "" {
		return nil, fmt.Errorf("private key path is required")
	}

	privateKey, err := LoadPrivateKey(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load private key: %w", err)
	}

	return &Credentials{
		KeyID:      keyID,
		PrivateKey: privateKey,
	}, nil
}

// LoadPrivateKey loads an RSA private key from a PEM file.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	block, err := readPEM(path)
	if err != nil {
		return nil, err
	}

	// PKCS#8 first, then PKCS#1
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("key is not an RSA private key")
		}
		return rsaKey, nil
	}

	rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return rsaKey, nil
}

// LoadPublicKey loads an RSA public key (PKIX or PKCS#1) from a PEM file.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	block, err := readPEM(path)
	if err != nil {
		return nil, err
	}

	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("key is not an RSA public key")
		}
		return rsaKey, nil
	}

	rsaKey, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return rsaKey, nil
}

func readPEM(path string) (*pem.Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}
	return block, nil
}

// Sign returns the handshake headers for a request.
func (c *Credentials) Sign(method, path string) (http.Header, error) {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	ts := now().UnixMilli()

	signature, err := sign(c.PrivateKey, ts, method, path)
	if err != nil {
		return nil, err
	}

	h := http.Header{}
	h.Set(HeaderKey, c.KeyID)
	h.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	h.Set(HeaderSignature, signature)
	return h, nil
}

// message is timestamp_ms + method + path.
func message(ts int64, method, path string) [32]byte {
	return sha256.Sum256([]byte(fmt.Sprintf("%d%s%s", ts, method, path)))
}

func sign(key *rsa.PrivateKey, ts int64, method, path string) (string, error) {
	hashed := message(ts, method, path)
	signature, err := rsa.SignPSS(
		rand.Reader,
		key,
		crypto.SHA256,
		hashed[:],
		&rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash},
	)
	if err != nil {
		return "", fmt.Errorf("sign message: %w", err)
	}
	return base64.StdEncoding.EncodeToString(signature), nil
}

// Verify checks the handshake headers on an incoming request against pub
// and returns the presented key ID.
func Verify(pub *rsa.PublicKey, h http.Header, method, path string, maxSkew time.Duration, now time.Time) (string, error) {
	keyID := h.Get(HeaderKey)
	tsStr := h.Get(HeaderTimestamp)
	sigStr := h.Get(HeaderSignature)
	if keyID == "" || tsStr == "" || sigStr == "" {
		return "", ErrMissingHeaders
	}

	ts, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return "", fmt.Errorf("parse timestamp: %w", err)
	}
	if maxSkew > 0 {
		age := now.Sub(time.UnixMilli(ts))
		if age > maxSkew || age < -maxSkew {
			return "", fmt.Errorf("%w: %v", ErrStaleTimestamp, age)
		}
	}

	sig, err := base64.StdEncoding.DecodeString(sigStr)
	if err != nil {
		return "", fmt.Errorf("decode signature: %w", err)
	}

	hashed := message(ts, method, path)
	if err := rsa.VerifyPSS(pub, crypto.SHA256, hashed[:], sig,
		&rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash}); err != nil {
		return "", ErrBadSignature
	}
	return keyID, nil
}
