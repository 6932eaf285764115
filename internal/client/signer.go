package client

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/robocup-autoref/autoref/pkg/protocol"
)

// Signer signs outbound records with the autoref's RSA key.
type Signer struct {
	key *rsa.PrivateKey
}

// NewSigner wraps a private key.
func NewSigner(key *rsa.PrivateKey) *Signer {
	return &Signer{key: key}
}

// LoadSigner reads a PEM encoded PKCS#1 or PKCS#8 RSA private key.
func LoadSigner(path string) (*Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	key, err := ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return NewSigner(key), nil
}

// ParsePrivateKey decodes the first PEM block of data.
func ParsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("unsupported private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is %T, want RSA", parsed)
	}
	return key, nil
}

// Sign returns the PKCS#1 v1.5 signature over the SHA-256 digest of payload.
func (s *Signer) Sign(payload []byte) ([]byte, error) {
	digest := sha256.Sum256(payload)
	return rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
}

// signature builds the signature for a record marshalled by marshal. The
// record is serialized with the token set and the signature bytes empty.
// A nil signer only attaches the token.
func (s *Signer) signature(token string, attach func(*protocol.Signature), marshal func() []byte) error {
	sig := &protocol.Signature{Token: token}
	attach(sig)
	if s == nil {
		return nil
	}
	b, err := s.Sign(marshal())
	if err != nil {
		return fmt.Errorf("signing record: %w", err)
	}
	sig.PKCS1v15 = b
	return nil
}

// SignRegistration attaches token and signature to reg.
func (s *Signer) SignRegistration(reg *protocol.Registration, token string) error {
	return s.signature(token, func(sig *protocol.Signature) { reg.Signature = sig }, reg.Marshal)
}

// SignMessage attaches token and signature to msg.
func (s *Signer) SignMessage(msg *protocol.AutoRefToController, token string) error {
	return s.signature(token, func(sig *protocol.Signature) { msg.Signature = sig }, msg.Marshal)
}
