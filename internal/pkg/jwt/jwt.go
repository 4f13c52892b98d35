package jwt

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

type Role string

const (
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
)

var (
	ErrMissingClaims = errors.New("token is missing staff_id or role")
	ErrInvalidRole   = errors.New("token role is not recognised")
)

// Claims identifies the caller. Tokens are issued by the identity service; this
// service only verifies them.
type Claims struct {
	StaffID  string
	Role     Role
	BranchID *string
}

func (c Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

type Service interface {
	// GenerateAccessToken signs claims. Used by tooling and tests.
	GenerateAccessToken(c Claims) (token string, expiresAt int64, err error)
	JWTAuth() *jwtauth.JWTAuth
}

type JWTService struct {
	clock     clock.Clock
	accessTTL time.Duration
	tokenAuth *jwtauth.JWTAuth
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

func NewJWTService(clk clock.Clock, secretKey string, accessTTL time.Duration) Service {
	return &JWTService{
		clock:     clk,
		accessTTL: accessTTL,
		tokenAuth: jwtauth.New("HS256", []byte(secretKey), nil,
			jwt.WithAcceptableSkew(30*time.Second),
			jwt.WithClock(jwt.ClockFunc(clk.Now)),
		),
	}
}

func (j *JWTService) GenerateAccessToken(c Claims) (token string, expiresAt int64, err error) {
	expiresAt = j.clock.Now().Add(j.accessTTL).Unix()

	claims := map[string]interface{}{
		"staff_id": c.StaffID,
		"role":     string(c.Role),
		"type":     "access",
		"exp":      expiresAt,
	}
	if c.BranchID != nil {
		claims["branch_id"] = *c.BranchID
	}

	_, tokenString, err := j.tokenAuth.Encode(claims)
	return tokenString, expiresAt, err
}

// ClaimsFromContext reads the caller's claims verified by jwtauth.Verifier.
func ClaimsFromContext(ctx context.Context) (Claims, error) {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return Claims{}, err
	}
	return ParseClaims(claims)
}

// ParseClaims validates the private claims of an access token.
func ParseClaims(claims map[string]interface{}) (Claims, error) {
	staffID, _ := claims["staff_id"].(string)
	role, _ := claims["role"].(string)
	if staffID == "" || role == "" {
		return Claims{}, ErrMissingClaims
	}

	c := Claims{StaffID: staffID, Role: Role(role)}
	if c.Role != RoleStaff && c.Role != RoleAdmin {
		return Claims{}, ErrInvalidRole
	}
	if branchID, ok := claims["branch_id"].(string); ok && branchID != "" {
		c.BranchID = &branchID
	}
	return c, nil
}
