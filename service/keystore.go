package service

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"log/slog"
)

const (
	privateKeyFile = "ecdsa_private.pem"
	publicKeyFile  = "ecdsa_public.pem"
)

// KeyStore owns the ECDSA P-256 signing keypair. The keypair is
// generated once and persisted as PEM (SEC1 private key, PKIX public
// key); the private key never leaves this package. Losing the private
// key only prevents new signatures, previously issued ones stay
// verifiable through the public key.
type KeyStore struct {
	dir string

	mu   sync.Mutex
	priv *ecdsa.PrivateKey
}

func NewKeyStore(dir string) *KeyStore {
	return &KeyStore{dir: dir}
}

// Load generates the keypair on first use and reuses it afterwards.
func (k *KeyStore) Load() error {
	_, err := k.private()
	return err
}

func (k *KeyStore) private() (*ecdsa.PrivateKey, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.priv != nil {
		return k.priv, nil
	}

	if err := os.MkdirAll(k.dir, 0o700); err != nil {
		return nil, fmt.Errorf("create keys dir: %w", err)
	}

	privPath := filepath.Join(k.dir, privateKeyFile)
	data, err := os.ReadFile(privPath)
	if err == nil {
		block, _ := pem.Decode(data)
		if block == nil {
			return nil, fmt.Errorf("malformed private key PEM at %s", privPath)
		}
		priv, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		k.priv = priv
		return priv, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}

	privDER, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privDER})
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		return nil, fmt.Errorf("write private key: %w", err)
	}
	if err := os.WriteFile(filepath.Join(k.dir, publicKeyFile), pubPEM, 0o644); err != nil {
		return nil, fmt.Errorf("write public key: %w", err)
	}

	slog.Info("generated ECDSA key pair", "dir", k.dir)
	k.priv = priv
	return priv, nil
}

// SignDetached produces the detached signature over a content digest.
// The ECDSA hash input is SHA-256 over the raw digest bytes, never over
// the digest's hex encoding.
func (k *KeyStore) SignDetached(digest []byte) ([]byte, error) {
	priv, err := k.private()
	if err != nil {
		return nil, err
	}
	hashed := sha256.Sum256(digest)
	sig, err := ecdsa.SignASN1(rand.Reader, priv, hashed[:])
	if err != nil {
		return nil, fmt.Errorf("sign digest: %w", err)
	}
	return sig, nil
}

// VerifyDetached checks a detached signature against a content digest.
// It needs only the public key.
func (k *KeyStore) VerifyDetached(digest []byte, sig []byte) bool {
	priv, err := k.private()
	if err != nil {
		return false
	}
	hashed := sha256.Sum256(digest)
	return ecdsa.VerifyASN1(&priv.PublicKey, hashed[:], sig)
}

// PublicKeyPEM returns the PEM-encoded public key so external parties
// can verify signature records on their own.
func (k *KeyStore) PublicKeyPEM() (string, error) {
	priv, err := k.private()
	if err != nil {
		return "", err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return "", fmt.Errorf("marshal public key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})), nil
}
