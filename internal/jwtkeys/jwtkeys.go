// Package jwtkeys issues and verifies the two bearer-token families the
// HTTP surface relies on (§6): ES256 (ECDSA P-256) tokens for the runner
// protocol, signed with the controller's own key pair, and HMAC-SHA256
// tokens for the user-facing access/refresh pair, signed with a shared
// secret. Both are hand-rolled compact JWT (header.payload.signature,
// base64url, no padding) because no JWT library appears anywhere in the
// retrieval pack (see DESIGN.md) — the format itself is fully specified by
// RFC 7519 and not worth guessing an ecosystem dependency for.
package jwtkeys

import (
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"
)

var siteRE = regexp.MustCompile(`^[a-z0-9-]+$`)

// ErrInvalidToken covers every verification failure: bad signature,
// expired token, malformed claims. The API layer maps it to 401.
var ErrInvalidToken = errors.New("invalid token")

// RunnerClaims is the runner-protocol JWT payload: {iat, exp, site},
// exp = iat + 30s, site validated against ^[a-z0-9-]+$.
type RunnerClaims struct {
	IssuedAt int64  `json:"iat"`
	ExpireAt int64  `json:"exp"`
	Site     string `json:"site"`
}

// RunnerKeys signs/verifies runner-protocol tokens with an ECDSA P-256 key
// pair loaded from PEM files (PUBLIC_KEY, PRIVATE_KEY).
type RunnerKeys struct {
	private *ecdsa.PrivateKey
	public  *ecdsa.PublicKey
}

// LoadRunnerPrivateKey parses an EC PRIVATE KEY PEM block for signing.
func LoadRunnerPrivateKey(pemBytes []byte) (*RunnerKeys, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("invalid private key format: no PEM block found")
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("invalid private key format: %w", err)
	}
	return &RunnerKeys{private: key}, nil
}

// LoadRunnerPublicKey parses a PUBLIC KEY PEM block for verification.
func LoadRunnerPublicKey(pemBytes []byte) (*RunnerKeys, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("invalid public key format: no PEM block found")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("invalid public key format: %w", err)
	}
	ecPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("invalid public key format: not an ECDSA key")
	}
	return &RunnerKeys{public: ecPub}, nil
}

// Generate signs a fresh RunnerClaims token for site, stamping iat/exp
// itself (exp = iat + 30s) regardless of whatever the caller passed in.
func (k *RunnerKeys) Generate(site string) (string, error) {
	if k.private == nil {
		return "", fmt.Errorf("no private key configured for runner token signing")
	}
	now := time.Now().Unix()
	claims := RunnerClaims{IssuedAt: now, ExpireAt: now + 30, Site: site}
	return signES256(k.private, claims)
}

// Verify checks signature, expiry and the site regex, returning the
// validated claims.
func (k *RunnerKeys) Verify(token string) (RunnerClaims, error) {
	var claims RunnerClaims
	if k.public == nil {
		return claims, fmt.Errorf("no public key configured for runner token verification")
	}
	if err := verifyES256(k.public, token, &claims); err != nil {
		return claims, ErrInvalidToken
	}
	if time.Now().Unix() > claims.ExpireAt {
		return claims, ErrInvalidToken
	}
	if !siteRE.MatchString(claims.Site) {
		return claims, ErrInvalidToken
	}
	return claims, nil
}

// UserClaims backs the user-facing access/refresh token pair.
type UserClaims struct {
	IssuedAt int64  `json:"iat"`
	ExpireAt int64  `json:"exp"`
	Subject  string `json:"sub"` // user uuid
	Audience string `json:"aud"`
}

const (
	AudienceAccess  = "urn:defcon:access"
	AudienceRefresh = "urn:defcon:refresh"

	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 30 * 24 * time.Hour
)

// UserKeys signs/verifies user-facing tokens with an HMAC-SHA256 secret
// (JWT_SIGNING_KEY).
type UserKeys struct {
	secret []byte
}

func NewUserKeys(secret string) *UserKeys {
	return &UserKeys{secret: []byte(secret)}
}

// IssuePair returns a fresh {access_token, refresh_token} for userUUID.
func (k *UserKeys) IssuePair(userUUID string) (access, refresh string, err error) {
	now := time.Now()
	access, err = k.sign(UserClaims{IssuedAt: now.Unix(), ExpireAt: now.Add(accessTokenTTL).Unix(), Subject: userUUID, Audience: AudienceAccess})
	if err != nil {
		return "", "", err
	}
	refresh, err = k.sign(UserClaims{IssuedAt: now.Unix(), ExpireAt: now.Add(refreshTokenTTL).Unix(), Subject: userUUID, Audience: AudienceRefresh})
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (k *UserKeys) sign(claims UserClaims) (string, error) {
	return signHS256(k.secret, claims)
}

// Verify checks signature, expiry and the expected audience.
func (k *UserKeys) Verify(token, expectedAudience string) (UserClaims, error) {
	var claims UserClaims
	if err := verifyHS256(k.secret, token, &claims); err != nil {
		return claims, ErrInvalidToken
	}
	if time.Now().Unix() > claims.ExpireAt {
		return claims, ErrInvalidToken
	}
	if claims.Audience != expectedAudience {
		return claims, ErrInvalidToken
	}
	return claims, nil
}

// --- compact JWT plumbing shared by both token families ---

type jwtHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

func b64encode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func b64decode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

func signingInput(alg string, claims interface{}) (string, []byte, error) {
	header, err := json.Marshal(jwtHeader{Alg: alg, Typ: "JWT"})
	if err != nil {
		return "", nil, err
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", nil, err
	}
	input := b64encode(header) + "." + b64encode(payload)
	return input, payload, nil
}

func signHS256(secret []byte, claims interface{}) (string, error) {
	input, _, err := signingInput("HS256", claims)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(input))
	sig := mac.Sum(nil)
	return input + "." + b64encode(sig), nil
}

func verifyHS256(secret []byte, token string, claims interface{}) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return fmt.Errorf("malformed token")
	}
	input := parts[0] + "." + parts[1]
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(input))
	expected := mac.Sum(nil)
	sig, err := b64decode(parts[2])
	if err != nil {
		return fmt.Errorf("malformed signature: %w", err)
	}
	if !hmac.Equal(sig, expected) {
		return fmt.Errorf("signature mismatch")
	}
	payload, err := b64decode(parts[1])
	if err != nil {
		return fmt.Errorf("malformed payload: %w", err)
	}
	return json.Unmarshal(payload, claims)
}

// signES256 encodes the signature in the ASN.1-free, fixed-width r||s form
// JWS uses for ES256 (32 bytes each for P-256), not the ASN.1 DER
// crypto/ecdsa.SignASN1 would hand back.
func signES256(key *ecdsa.PrivateKey, claims interface{}) (string, error) {
	input, _, err := signingInput("ES256", claims)
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256([]byte(input))
	r, s, err := ecdsa.Sign(rand.Reader, key, digest[:])
	if err != nil {
		return "", fmt.Errorf("sign ES256: %w", err)
	}

	size := (key.Curve.Params().BitSize + 7) / 8
	sig := make([]byte, 2*size)
	r.FillBytes(sig[:size])
	s.FillBytes(sig[size:])

	return input + "." + b64encode(sig), nil
}

func verifyES256(key *ecdsa.PublicKey, token string, claims interface{}) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return fmt.Errorf("malformed token")
	}
	input := parts[0] + "." + parts[1]
	sig, err := b64decode(parts[2])
	if err != nil {
		return fmt.Errorf("malformed signature: %w", err)
	}

	size := (key.Curve.Params().BitSize + 7) / 8
	if len(sig) != 2*size {
		return fmt.Errorf("malformed signature length")
	}
	r := new(big.Int).SetBytes(sig[:size])
	s := new(big.Int).SetBytes(sig[size:])

	digest := sha256.Sum256([]byte(input))
	if !ecdsa.Verify(key, digest[:], r, s) {
		return fmt.Errorf("signature mismatch")
	}

	payload, err := b64decode(parts[1])
	if err != nil {
		return fmt.Errorf("malformed payload: %w", err)
	}
	return json.Unmarshal(payload, claims)
}
