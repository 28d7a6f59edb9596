package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// StaticKeyVerifier validates tokens with a single configured key. It is meant
// for local development against a self-hosted identity provider.
type StaticKeyVerifier struct {
	cfg     Config
	key     any
	methods []string
}

// NewStaticKeyVerifier picks the algorithm family from the key material: PEM
// keys are RSA or ECDSA, anything else is an HMAC secret.
func NewStaticKeyVerifier(cfg Config) (*StaticKeyVerifier, error) {
	material := strings.TrimSpace(cfg.StaticKey)
	if !strings.HasPrefix(material, "-----BEGIN") {
		return &StaticKeyVerifier{cfg: cfg, key: []byte(cfg.StaticKey), methods: []string{"HS256", "HS384", "HS512"}}, nil
	}

	pub, err := parsePublicKey(material)
	if err != nil {
		return nil, err
	}
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return &StaticKeyVerifier{cfg: cfg, key: k, methods: []string{"RS256", "RS384", "RS512"}}, nil
	case *ecdsa.PublicKey:
		return &StaticKeyVerifier{cfg: cfg, key: k, methods: []string{"ES256", "ES384", "ES512"}}, nil
	default:
		return nil, fmt.Errorf("unsupported public key type %T", pub)
	}
}

func parsePublicKey(pemKey string) (any, error) {
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil {
		return nil, errors.New("failed to decode PEM block containing public key")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return pub, nil
}

func (v *StaticKeyVerifier) Verify(_ context.Context, token string) (Identity, error) {
	claims := &Claims{}
	keyFunc := func(*jwt.Token) (any, error) { return v.key, nil }
	if _, err := jwt.ParseWithClaims(token, claims, keyFunc, parserOptions(v.cfg, v.methods)...); err != nil {
		return Identity{}, fmt.Errorf("token verification failed: %w", err)
	}
	return identityFromClaims(claims)
}
