package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/vendorpay-backend/pkg/config"
)

func operatorConfig() config.OperatorConfig {
	return config.OperatorConfig{
		JWTSecret: "test-secret",
		JWTIssuer: "vendorpay",
	}
}

func TestMintAndParseOperatorToken(t *testing.T) {
	cfg := operatorConfig()
	token, err := MintOperatorToken(cfg, time.Now(), "ops@example.com", time.Hour)
	require.NoError(t, err)

	claims, err := ParseOperatorToken(cfg, token)
	require.NoError(t, err)
	require.Equal(t, RoleOperator, claims.Role)
	require.Equal(t, "ops@example.com", claims.Subject)
	require.Equal(t, "vendorpay", claims.Issuer)
}

func TestParseOperatorTokenRejectsWrongSecret(t *testing.T) {
	token, err := MintOperatorToken(operatorConfig(), time.Now(), "ops", time.Hour)
	require.NoError(t, err)

	_, err = ParseOperatorToken(config.OperatorConfig{JWTSecret: "other", JWTIssuer: "vendorpay"}, token)
	require.Error(t, err)
}

func TestParseOperatorTokenRejectsWrongIssuer(t *testing.T) {
	token, err := MintOperatorToken(operatorConfig(), time.Now(), "ops", time.Hour)
	require.NoError(t, err)

	_, err = ParseOperatorToken(config.OperatorConfig{JWTSecret: "test-secret", JWTIssuer: "someone-else"}, token)
	require.Error(t, err)
}

func TestParseOperatorTokenRejectsExpired(t *testing.T) {
	token, err := MintOperatorToken(operatorConfig(), time.Now().Add(-2*time.Hour), "ops", time.Hour)
	require.NoError(t, err)

	_, err = ParseOperatorToken(operatorConfig(), token)
	require.Error(t, err)
}

func TestMintOperatorTokenRequiresSecret(t *testing.T) {
	_, err := MintOperatorToken(config.OperatorConfig{JWTIssuer: "vendorpay"}, time.Now(), "ops", time.Hour)
	require.Error(t, err)
}
