package jwtkeys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"
)

func generateTestKeyPair(t *testing.T) (*RunnerKeys, *RunnerKeys) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	privBytes, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		t.Fatalf("marshal private key: %v", err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privBytes})

	pubBytes, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})

	signer, err := LoadRunnerPrivateKey(privPEM)
	if err != nil {
		t.Fatalf("load private key: %v", err)
	}
	verifier, err := LoadRunnerPublicKey(pubPEM)
	if err != nil {
		t.Fatalf("load public key: %v", err)
	}
	return signer, verifier
}

func TestRunnerTokenRoundTrip(t *testing.T) {
	signer, verifier := generateTestKeyPair(t)

	token, err := signer.Generate("eu-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Site != "eu-1" {
		t.Fatalf("expected site eu-1, got %q", claims.Site)
	}
	if claims.ExpireAt-claims.IssuedAt != 30 {
		t.Fatalf("expected exp = iat + 30, got iat=%d exp=%d", claims.IssuedAt, claims.ExpireAt)
	}
}

func TestRunnerTokenRejectsInvalidSite(t *testing.T) {
	signer, verifier := generateTestKeyPair(t)

	token, err := signer.Generate("bad site")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := verifier.Verify(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for a site containing a space, got %v", err)
	}
}

func TestRunnerTokenRejectsTamperedSignature(t *testing.T) {
	signer, verifier := generateTestKeyPair(t)
	token, err := signer.Generate("eu-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	tampered := token[:len(token)-4] + "abcd"
	if _, err := verifier.Verify(tampered); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for a tampered signature, got %v", err)
	}
}

func TestUserTokenAudienceEnforced(t *testing.T) {
	keys := NewUserKeys("test-secret")
	access, refresh, err := keys.IssuePair("user-uuid")
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}

	if _, err := keys.Verify(access, AudienceAccess); err != nil {
		t.Fatalf("verify access token: %v", err)
	}
	if _, err := keys.Verify(access, AudienceRefresh); err != ErrInvalidToken {
		t.Fatalf("access token must not validate against the refresh audience")
	}
	if _, err := keys.Verify(refresh, AudienceRefresh); err != nil {
		t.Fatalf("verify refresh token: %v", err)
	}
}

func TestUserTokenRejectsWrongSecret(t *testing.T) {
	keys := NewUserKeys("secret-a")
	access, _, err := keys.IssuePair("user-uuid")
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}

	other := NewUserKeys("secret-b")
	if _, err := other.Verify(access, AudienceAccess); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken when verifying with the wrong secret")
	}
}

func TestUserTokenExpiry(t *testing.T) {
	keys := NewUserKeys("test-secret")
	claims := UserClaims{IssuedAt: time.Now().Add(-time.Hour).Unix(), ExpireAt: time.Now().Add(-time.Minute).Unix(), Subject: "u1", Audience: AudienceAccess}
	token, err := keys.sign(claims)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := keys.Verify(token, AudienceAccess); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for an expired token")
	}
}
