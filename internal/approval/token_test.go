package approval_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trevorWieland/rentl-sub001/internal/approval"
)

func TestResumeTokenIssueAndValidate(t *testing.T) {
	mgr, err := approval.NewTokenManager("", "", time.Hour)
	require.NoError(t, err)

	runID, decisionID := uuid.New(), uuid.New()
	token, expiresAt, err := mgr.Issue(runID, decisionID)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := mgr.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, runID, claims.RunID)
	assert.Equal(t, decisionID, claims.DecisionID)
	assert.Equal(t, decisionID.String(), claims.Subject)
}

// writeKeyPair writes a fresh Ed25519 key pair as PEM files and
// returns their paths with the raw private key for forging tokens.
func writeKeyPair(t *testing.T) (privPath, pubPath string, priv ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	dir := t.TempDir()

	privBytes, err := x509.MarshalPKCS8PrivateKey(priv)
	require.NoError(t, err)
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privBytes})
	privPath = filepath.Join(dir, "priv.pem")
	require.NoError(t, os.WriteFile(privPath, privPEM, 0600))

	pubBytes, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	pubPath = filepath.Join(dir, "pub.pem")
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0600))

	return privPath, pubPath, priv
}

func forgeToken(t *testing.T, privKey ed25519.PrivateKey, claims jwt.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(privKey)
	require.NoError(t, err)
	return signed
}

func TestTokenManagerFromKeyFiles(t *testing.T) {
	privPath, pubPath, _ := writeKeyPair(t)
	mgr, err := approval.NewTokenManager(privPath, pubPath, time.Hour)
	require.NoError(t, err)

	token, _, err := mgr.Issue(uuid.New(), uuid.New())
	require.NoError(t, err)
	_, err = mgr.Validate(token)
	require.NoError(t, err)
}

func TestTokenManagerKeyMismatch(t *testing.T) {
	privPath, _, _ := writeKeyPair(t)
	_, pubPath, _ := writeKeyPair(t)

	_, err := approval.NewTokenManager(privPath, pubPath, time.Hour)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}

func TestValidateResumeToken_WrongIssuer(t *testing.T) {
	privPath, pubPath, privKey := writeKeyPair(t)
	mgr, err := approval.NewTokenManager(privPath, pubPath, time.Hour)
	require.NoError(t, err)

	now := time.Now().UTC()
	token := forgeToken(t, privKey, &approval.ResumeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.New().String(),
			Issuer:    "not-rentl",
			Audience:  jwt.ClaimStrings{"rentl"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			ID:        uuid.New().String(),
		},
		RunID:      uuid.New(),
		DecisionID: uuid.New(),
	})

	_, err = mgr.Validate(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid issuer")
}

func TestValidateResumeToken_MissingDecision(t *testing.T) {
	privPath, pubPath, privKey := writeKeyPair(t)
	mgr, err := approval.NewTokenManager(privPath, pubPath, time.Hour)
	require.NoError(t, err)

	now := time.Now().UTC()
	token := forgeToken(t, privKey, &approval.ResumeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.New().String(),
			Issuer:    "rentl",
			Audience:  jwt.ClaimStrings{"rentl"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			ID:        uuid.New().String(),
		},
		RunID: uuid.New(),
	})

	_, err = mgr.Validate(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no decision id")
}

func TestValidateResumeToken_Expired(t *testing.T) {
	privPath, pubPath, privKey := writeKeyPair(t)
	mgr, err := approval.NewTokenManager(privPath, pubPath, time.Hour)
	require.NoError(t, err)

	now := time.Now().UTC()
	token := forgeToken(t, privKey, &approval.ResumeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.New().String(),
			Issuer:    "rentl",
			Audience:  jwt.ClaimStrings{"rentl"},
			IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
			ID:        uuid.New().String(),
		},
		RunID:      uuid.New(),
		DecisionID: uuid.New(),
	})

	_, err = mgr.Validate(token)
	require.Error(t, err)
}

func TestValidateResumeToken_WrongKey(t *testing.T) {
	mgrA, err := approval.NewTokenManager("", "", time.Hour)
	require.NoError(t, err)
	mgrB, err := approval.NewTokenManager("", "", time.Hour)
	require.NoError(t, err)

	token, _, err := mgrA.Issue(uuid.New(), uuid.New())
	require.NoError(t, err)

	_, err = mgrB.Validate(token)
	require.Error(t, err, "a token signed by another key must not validate")
}
