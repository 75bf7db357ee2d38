package approval

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ResumeClaims binds a resume token to one pending decision on one
// run.
type ResumeClaims struct {
	jwt.RegisteredClaims
	RunID      uuid.UUID `json:"run_id"`
	DecisionID uuid.UUID `json:"decision_id"`
}

// TokenManager issues and validates signed resume tokens using
// Ed25519. A token proves the holder is resuming the exact decision
// the pipeline paused on, so stale or forged resume requests are
// rejected before any state is touched.
type TokenManager struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	expiration time.Duration
}

// NewTokenManager creates a TokenManager from PEM key files. If paths
// are empty, generates an ephemeral key pair; tokens then die with the
// process, which is fine for single-session runs but not for pauses
// meant to outlive it.
func NewTokenManager(privateKeyPath, publicKeyPath string, expiration time.Duration) (*TokenManager, error) {
	if privateKeyPath == "" || publicKeyPath == "" {
		slog.Warn("approval: no token key files configured, generating ephemeral key pair (resume tokens will not survive a restart)")
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("approval: generate key pair: %w", err)
		}
		return &TokenManager{privateKey: priv, publicKey: pub, expiration: expiration}, nil
	}

	privPEM, err := os.ReadFile(privateKeyPath) //nolint:gosec // paths come from validated config, not user input
	if err != nil {
		return nil, fmt.Errorf("approval: read private key: %w", err)
	}
	block, _ := pem.Decode(privPEM)
	if block == nil {
		return nil, fmt.Errorf("approval: decode private key PEM")
	}
	privKey, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("approval: parse private key: %w", err)
	}
	edPriv, ok := privKey.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("approval: private key is not Ed25519")
	}

	pubPEM, err := os.ReadFile(publicKeyPath) //nolint:gosec // paths come from validated config, not user input
	if err != nil {
		return nil, fmt.Errorf("approval: read public key: %w", err)
	}
	pubBlock, _ := pem.Decode(pubPEM)
	if pubBlock == nil {
		return nil, fmt.Errorf("approval: decode public key PEM")
	}
	pubKey, err := x509.ParsePKIXPublicKey(pubBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("approval: parse public key: %w", err)
	}
	edPub, ok := pubKey.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("approval: public key is not Ed25519")
	}

	// Catch mismatched key files before any token is issued.
	derivedPub := edPriv.Public().(ed25519.PublicKey)
	if !bytes.Equal(derivedPub, edPub) {
		return nil, fmt.Errorf("approval: public key does not match private key")
	}

	return &TokenManager{privateKey: edPriv, publicKey: edPub, expiration: expiration}, nil
}

// Issue creates a signed resume token for one pending decision.
func (m *TokenManager) Issue(runID, decisionID uuid.UUID) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(m.expiration)

	claims := ResumeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   decisionID.String(),
			Issuer:    "rentl",
			Audience:  jwt.ClaimStrings{"rentl"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.New().String(),
		},
		RunID:      runID,
		DecisionID: decisionID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(m.privateKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("approval: sign token: %w", err)
	}
	return signed, exp, nil
}

// Validate parses and validates a resume token, returning its claims.
func (m *TokenManager) Validate(tokenStr string) (*ResumeClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&ResumeClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodEd25519); !ok {
				return nil, fmt.Errorf("approval: unexpected signing method: %v", token.Header["alg"])
			}
			return m.publicKey, nil
		},
		jwt.WithAudience("rentl"),
	)
	if err != nil {
		return nil, fmt.Errorf("approval: validate token: %w", err)
	}

	claims, ok := token.Claims.(*ResumeClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("approval: invalid token claims")
	}
	if claims.Issuer != "rentl" {
		return nil, fmt.Errorf("approval: invalid issuer: %s", claims.Issuer)
	}
	if claims.DecisionID == uuid.Nil {
		return nil, fmt.Errorf("approval: token carries no decision id")
	}
	return claims, nil
}
