package domain

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "runadata/pkg/domain-errors"
)

func TestNewPseudonymID_Format(t *testing.T) {
	pattern := regexp.MustCompile(`^P-[0-9A-F]{8}$`)
	seen := make(map[PseudonymID]bool)
	for i := 0; i < 100; i++ {
		p := NewPseudonymID()
		assert.Regexp(t, pattern, p.String())
		assert.False(t, seen[p], "pseudonym collided: %s", p)
		seen[p] = true
	}
}

func TestParsePseudonymID(t *testing.T) {
	t.Run("accepts canonical form", func(t *testing.T) {
		p, err := ParsePseudonymID("P-AB12CD34")
		require.NoError(t, err)
		assert.Equal(t, PseudonymID("P-AB12CD34"), p)
	})

	t.Run("round-trips generated pseudonyms", func(t *testing.T) {
		generated := NewPseudonymID()
		parsed, err := ParsePseudonymID(generated.String())
		require.NoError(t, err)
		assert.Equal(t, generated, parsed)
	})

	for _, input := range []string{
		"",
		"P-ab12cd34",
		"P-AB12CD3",
		"P-AB12CD345",
		"Q-AB12CD34",
		"P-GHIJKLMN",
		"AB12CD34",
	} {
		t.Run("rejects "+input, func(t *testing.T) {
			_, err := ParsePseudonymID(input)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func TestParseTenantID(t *testing.T) {
	t.Run("rejects empty", func(t *testing.T) {
		_, err := ParseTenantID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects whitespace", func(t *testing.T) {
		_, err := ParseTenantID("   ")
		require.Error(t, err)
	})

	t.Run("accepts opaque external IDs", func(t *testing.T) {
		tenant, err := ParseTenantID("acme")
		require.NoError(t, err)
		assert.Equal(t, TenantID("acme"), tenant)
	})
}

func TestParseRequestID(t *testing.T) {
	t.Run("accepts generated IDs", func(t *testing.T) {
		generated := NewRequestID()
		parsed, err := ParseRequestID(generated.String())
		require.NoError(t, err)
		assert.Equal(t, generated, parsed)
	})

	t.Run("rejects non-uuid input", func(t *testing.T) {
		_, err := ParseRequestID("req-123")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestParseRole(t *testing.T) {
	t.Run("accepts known roles", func(t *testing.T) {
		for _, s := range []string{"admin", "security_officer", "facilitator", "analyst", "participant", "sponsor", "data_steward"} {
			role, err := ParseRole(s)
			require.NoError(t, err)
			assert.True(t, role.IsValid())
		}
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		_, err := ParseRole("superuser")
		require.Error(t, err)
	})
}

func TestCanViewSuppressed(t *testing.T) {
	assert.True(t, RoleAdmin.CanViewSuppressed())
	assert.True(t, RoleSecurityOfficer.CanViewSuppressed())

	for _, role := range []Role{RoleFacilitator, RoleAnalyst, RoleParticipant, RoleSponsor, RoleDataSteward} {
		assert.False(t, role.CanViewSuppressed(), "role %s must not see suppressed insights", role)
	}
}

func TestParseReasonCode(t *testing.T) {
	t.Run("accepts enumerated codes", func(t *testing.T) {
		for _, s := range []string{"safety_concern", "legal_compliance", "explicit_consent", "data_correction"} {
			code, err := ParseReasonCode(s)
			require.NoError(t, err)
			assert.True(t, code.IsValid())
		}
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, err := ParseReasonCode("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects unknown code", func(t *testing.T) {
		_, err := ParseReasonCode("curiosity")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
