package utils // package utils provides helpers for access tokens and password hashing

import (
    "errors" // sentinel for malformed tokens
    "time"   // time utilities for generating expirations

    "github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
    "github.com/google/uuid"       // random token ids used for logout revocation
)

// Roles carried in the "role" claim.
const (
    RoleUser  = "USER"
    RoleAdmin = "ADMIN"
)

// ErrInvalidToken is returned by ParseAccessToken for any token that is
// malformed, expired or signed with another secret.
var ErrInvalidToken = errors.New("invalid token")

// AccessToken represents a signed JWT access token along with its expiry.
// ID is the jti claim; a revoked token is remembered by it until Exp.
type AccessToken struct {
    Token string    // the serialized JWT string
    ID    string    // jti claim
    Exp   time.Time // the UTC expiration time
}

// Claims is the verified content of an access token.
type Claims struct {
    Subject uint64
    Role    string
    ID      string
    Exp     time.Time
}

// NewAccessToken builds and signs an HS256 JWT for a user or an
// administrator, valid for ttlMin minutes.
func NewAccessToken(secret string, subject uint64, role string, ttlMin int) (AccessToken, error) {
    now := time.Now().UTC()
    exp := now.Add(time.Duration(ttlMin) * time.Minute)
    jti := uuid.NewString()
    claims := jwt.MapClaims{
        "sub":  subject,
        "role": role,
        "jti":  jti,
        "exp":  exp.Unix(),
        "iat":  now.Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, ID: jti, Exp: exp}, nil
}

// ParseAccessToken verifies signature and expiry and extracts the claims.
func ParseAccessToken(secret, raw string) (Claims, error) {
    tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
        return []byte(secret), nil
    }, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
    if err != nil || !tok.Valid {
        return Claims{}, ErrInvalidToken
    }
    mc, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return Claims{}, ErrInvalidToken
    }
    // numbers decode as float64
    sub, ok := mc["sub"].(float64)
    if !ok || sub < 1 {
        return Claims{}, ErrInvalidToken
    }
    role, _ := mc["role"].(string)
    jti, _ := mc["jti"].(string)
    exp, err := mc.GetExpirationTime()
    if err != nil || exp == nil {
        return Claims{}, ErrInvalidToken
    }
    return Claims{Subject: uint64(sub), Role: role, ID: jti, Exp: exp.Time.UTC()}, nil
}
