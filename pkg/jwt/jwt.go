package jwt

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken     = errors.New("token is required")
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrSigningDisabled  = errors.New("token signing is not configured")
	ErrUnsupportedAlgo  = errors.New("unsupported signing algorithm")
	ErrMissingKeyConfig = errors.New("jwt key material is not configured")
)

const (
	AlgHS256 = "HS256"
	AlgRS256 = "RS256"
)

// Config selects the verification scheme. HS256 needs Secret; RS256 needs
// PublicKeyPEM and, only if this process signs tokens, PrivateKeyPEM.
type Config struct {
	Algorithm     string        `mapstructure:"algorithm"`
	Secret        string        `mapstructure:"secret"`
	PublicKeyPEM  string        `mapstructure:"public_key"`
	PrivateKeyPEM string        `mapstructure:"private_key"`
	Issuer        string        `mapstructure:"issuer"`
	TTL           time.Duration `mapstructure:"ttl"`
	Leeway        time.Duration `mapstructure:"leeway"`
}

// Claims carries the identity embedded in party tokens.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"userId"`
	UserName string `json:"userName,omitempty"`
}

// Manager verifies (and optionally signs) tokens. Safe for concurrent use.
type Manager struct {
	method     jwt.SigningMethod
	verifyKey  interface{}
	signKey    interface{}
	issuer     string
	ttl        time.Duration
	parserOpts []jwt.ParserOption
}

// NewManager creates a Manager from cfg.
func NewManager(cfg Config) (*Manager, error) {
	m := &Manager{
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
	}
	if m.ttl <= 0 {
		m.ttl = 24 * time.Hour
	}

	switch cfg.Algorithm {
	case AlgHS256, "":
		if cfg.Secret == "" {
			return nil, ErrMissingKeyConfig
		}
		m.method = jwt.SigningMethodHS256
		m.verifyKey = []byte(cfg.Secret)
		m.signKey = []byte(cfg.Secret)

	case AlgRS256:
		if cfg.PublicKeyPEM == "" {
			return nil, ErrMissingKeyConfig
		}
		pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key: %w", err)
		}
		m.method = jwt.SigningMethodRS256
		m.verifyKey = pub

		if cfg.PrivateKeyPEM != "" {
			priv, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cfg.PrivateKeyPEM))
			if err != nil {
				return nil, fmt.Errorf("failed to parse private key: %w", err)
			}
			m.signKey = priv
		}

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgo, cfg.Algorithm)
	}

	m.parserOpts = []jwt.ParserOption{jwt.WithValidMethods([]string{m.method.Alg()})}
	if cfg.Leeway > 0 {
		m.parserOpts = append(m.parserOpts, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		m.parserOpts = append(m.parserOpts, jwt.WithIssuer(cfg.Issuer))
	}

	return m, nil
}

// NewRSAManager builds an RS256 manager straight from a key pair.
func NewRSAManager(key *rsa.PrivateKey, issuer string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	m := &Manager{
		method:    jwt.SigningMethodRS256,
		verifyKey: &key.PublicKey,
		signKey:   key,
		issuer:    issuer,
		ttl:       ttl,
	}
	m.parserOpts = []jwt.ParserOption{jwt.WithValidMethods([]string{AlgRS256})}
	if issuer != "" {
		m.parserOpts = append(m.parserOpts, jwt.WithIssuer(issuer))
	}
	return m
}

// ValidateToken validates a token and returns its claims.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.verifyKey, nil
	}, m.parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	// Tokens from the account service carry only userId;
	// fall back to the registered subject for third-party issuers.
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GenerateToken signs a token for userID. Used by tooling and tests; end-user
// token issuance lives in the account service.
func (m *Manager) GenerateToken(userID, userName string) (string, error) {
	if m.signKey == nil {
		return "", ErrSigningDisabled
	}

	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		UserID:   userID,
		UserName: userName,
	}

	return jwt.NewWithClaims(m.method, claims).SignedString(m.signKey)
}
