package jwt

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"courier-track/internal/domain/user"
)

func TestIssueAndParse(t *testing.T) {
	mgr := NewManager("unit-test-secret", time.Hour)

	token, claims, err := mgr.IssueUserToken("cust-123", user.RoleCustomer)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, "cust-123", claims.Subject)
	require.Equal(t, user.RoleCustomer, claims.Role)

	_, parsed, err := mgr.ParseAndValidate(token)
	require.NoError(t, err)
	require.Equal(t, "cust-123", parsed.Subject)
	require.Equal(t, user.RoleCustomer, parsed.Role)
}

func TestIssueRejectsInvalidRole(t *testing.T) {
	mgr := NewManager("unit-test-secret", time.Hour)

	_, _, err := mgr.IssueUserToken("cust-123", user.Role("SUPERUSER"))
	require.Error(t, err)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	issuer := NewManager("secret-a", time.Hour)
	verifier := NewManager("secret-b", time.Hour)

	token, _, err := issuer.IssueUserToken("cust-123", user.RoleCustomer)
	require.NoError(t, err)

	_, _, err = verifier.ParseAndValidate(token)
	require.Error(t, err)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	mgr := NewManager("unit-test-secret", -time.Minute)

	token, _, err := mgr.IssueUserToken("cust-123", user.RoleCustomer)
	require.NoError(t, err)

	_, _, err = mgr.ParseAndValidate(token)
	require.Error(t, err)
}

func TestRoleAllowed(t *testing.T) {
	claims := NewUserClaims("cust-123", user.RoleCustomer, time.Hour)

	require.NoError(t, RoleAllowed(claims, user.RoleCustomer))
	require.NoError(t, RoleAllowed(claims, user.RoleAdmin, user.RoleCustomer))
	require.ErrorIs(t, RoleAllowed(claims, user.RoleCourier), ErrRoleForbidden)
}

func TestValidateWSAuth(t *testing.T) {
	mgr := NewManager("unit-test-secret", time.Hour)
	token, _, err := mgr.IssueUserToken("cust-123", user.RoleCustomer)
	require.NoError(t, err)

	t.Run("valid frame", func(t *testing.T) {
		frame := fmt.Sprintf(`{"type":"auth","token":"Bearer %s"}`, token)
		res, err := ValidateWSAuth([]byte(frame), mgr, user.RoleCustomer)
		require.NoError(t, err)
		require.Equal(t, "cust-123", res.Claims.Subject)
	})

	t.Run("wrong role", func(t *testing.T) {
		frame := fmt.Sprintf(`{"type":"auth","token":"Bearer %s"}`, token)
		_, err := ValidateWSAuth([]byte(frame), mgr, user.RoleCourier)
		require.ErrorIs(t, err, ErrRoleForbidden)
	})

	t.Run("missing bearer wrap", func(t *testing.T) {
		frame := fmt.Sprintf(`{"type":"auth","token":%q}`, token)
		_, err := ValidateWSAuth([]byte(frame), mgr, user.RoleCustomer)
		require.ErrorIs(t, err, ErrBadTokenWrap)
	})

	t.Run("wrong type", func(t *testing.T) {
		frame := fmt.Sprintf(`{"type":"hello","token":"Bearer %s"}`, token)
		_, err := ValidateWSAuth([]byte(frame), mgr, user.RoleCustomer)
		require.ErrorIs(t, err, ErrBadAuthMsg)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := ValidateWSAuth([]byte("auth please"), mgr, user.RoleCustomer)
		require.ErrorIs(t, err, ErrBadAuthMsg)
	})
}
