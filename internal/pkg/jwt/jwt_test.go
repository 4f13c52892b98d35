package jwt

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_RoundTrip(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	svc := NewJWTService(clk, "secret", time.Hour)
	branch := "branch-1"

	token, expiresAt, err := svc.GenerateAccessToken(Claims{StaffID: "staff-1", Role: RoleAdmin, BranchID: &branch})
	require.NoError(t, err)
	assert.Equal(t, clk.Now().Add(time.Hour).Unix(), expiresAt)

	decoded, err := svc.JWTAuth().Decode(token)
	require.NoError(t, err)
	raw, err := decoded.AsMap(t.Context())
	require.NoError(t, err)

	claims, err := ParseClaims(raw)
	require.NoError(t, err)
	assert.Equal(t, "staff-1", claims.StaffID)
	assert.True(t, claims.IsAdmin())
	require.NotNil(t, claims.BranchID)
	assert.Equal(t, "branch-1", *claims.BranchID)
}

func TestJWTService_ExpiredTokenRejected(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	svc := NewJWTService(clk, "secret", time.Minute)

	token, _, err := svc.GenerateAccessToken(Claims{StaffID: "staff-1", Role: RoleStaff})
	require.NoError(t, err)

	_, err = jwtauth.VerifyToken(svc.JWTAuth(), token)
	require.NoError(t, err)

	clk.Add(2 * time.Minute)
	_, err = jwtauth.VerifyToken(svc.JWTAuth(), token)
	assert.Error(t, err)
}

func TestParseClaims_Invalid(t *testing.T) {
	_, err := ParseClaims(map[string]interface{}{"role": "staff"})
	assert.ErrorIs(t, err, ErrMissingClaims)

	_, err = ParseClaims(map[string]interface{}{"staff_id": "staff-1", "role": "owner"})
	assert.ErrorIs(t, err, ErrInvalidRole)
}
