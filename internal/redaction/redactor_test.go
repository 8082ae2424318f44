package redaction

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSalt = "session-42"

func TestPseudonymizeText_CleanTextUnchanged(t *testing.T) {
	input := "me pareció una sesión muy útil, gracias"
	out, records, err := PseudonymizeText(input, testSalt)
	require.NoError(t, err)
	assert.Equal(t, input, out)
	assert.Empty(t, records)
}

func TestPseudonymizeText_Email(t *testing.T) {
	out, records, err := PseudonymizeText("escríbeme a juan.perez@example.com cuando puedas", testSalt)
	require.NoError(t, err)

	assert.NotContains(t, out, "juan.perez@example.com")
	assert.Contains(t, out, "[EMAIL-")
	require.Len(t, records, 1)
	assert.Equal(t, DetectorEmail, records[0].Detector)
	assert.Len(t, records[0].OriginalHash, 8)
	assert.Equal(t, ReplacementToken("EMAIL", "juan.perez@example.com", testSalt), records[0].Replacement)
}

func TestPseudonymizeText_Phone(t *testing.T) {
	out, records, err := PseudonymizeText("mi número es 555-123-4567", testSalt)
	require.NoError(t, err)

	assert.NotContains(t, out, "555-123-4567")
	assert.Contains(t, out, "[PHONE-")
	require.Len(t, records, 1)
	assert.Equal(t, DetectorPhone, records[0].Detector)
}

func TestPseudonymizeText_Names(t *testing.T) {
	t.Run("honorific", func(t *testing.T) {
		out, records, err := PseudonymizeText("hablé con la Dra. Martínez ayer", testSalt)
		require.NoError(t, err)
		assert.NotContains(t, out, "Martínez")
		assert.Contains(t, out, "[PERSON-")
		require.Len(t, records, 1)
		assert.Equal(t, DetectorHonorificName, records[0].Detector)
	})

	t.Run("full name", func(t *testing.T) {
		out, records, err := PseudonymizeText("me lo contó Juan Pérez García", testSalt)
		require.NoError(t, err)
		assert.NotContains(t, out, "Juan")
		assert.Contains(t, out, "[PERSON-")
		require.Len(t, records, 1)
		assert.Equal(t, DetectorName, records[0].Detector)
	})
}

func TestPseudonymizeText_NationalID(t *testing.T) {
	out, records, err := PseudonymizeText("mi cédula es 12345678", testSalt)
	require.NoError(t, err)
	assert.NotContains(t, out, "12345678")
	assert.Contains(t, out, "[ID-")
	require.Len(t, records, 1)
	assert.Equal(t, DetectorNationalID, records[0].Detector)
}

func TestPseudonymizeText_DateOfBirth(t *testing.T) {
	out, records, err := PseudonymizeText("nací el 12/05/1990 en el sur", testSalt)
	require.NoError(t, err)
	assert.NotContains(t, out, "12/05/1990")
	assert.Contains(t, out, "[DOB-")
	require.Len(t, records, 1)
	assert.Equal(t, DetectorDateOfBirth, records[0].Detector)
}

func TestPseudonymizeText_Address(t *testing.T) {
	out, records, err := PseudonymizeText("vivo en Av. 9 de julio 123", testSalt)
	require.NoError(t, err)
	assert.NotContains(t, out, "9 de julio")
	assert.Contains(t, out, "[ADDRESS-")
	require.Len(t, records, 1)
	assert.Equal(t, DetectorAddress, records[0].Detector)
}

func TestPseudonymizeText_Deterministic(t *testing.T) {
	input := "escríbeme a ana@example.com o a ana@example.com"

	out, records, err := PseudonymizeText(input, testSalt)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Repeat mentions of the same span stay linkable under one salt.
	assert.Equal(t, records[0].Replacement, records[1].Replacement)
	assert.Equal(t, 1, strings.Count(out, " o a "), "both occurrences replaced in place")

	again, _, err := PseudonymizeText(input, testSalt)
	require.NoError(t, err)
	assert.Equal(t, out, again)

	otherSalt, _, err := PseudonymizeText(input, "session-43")
	require.NoError(t, err)
	assert.NotEqual(t, out, otherSalt, "tokens must not correlate across sessions")
}

func TestPseudonymizeText_OrderingEmailBeforePhone(t *testing.T) {
	// The numeric local part would look like a phone if phones ran first.
	_, records, err := PseudonymizeText("contacto: 555-1234@example.com", testSalt)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, DetectorEmail, records[0].Detector)
}

func TestPseudonymizeText_MixedCategories(t *testing.T) {
	input := "soy Juan Pérez, cédula 12345678, correo juan@example.com"
	out, records, err := PseudonymizeText(input, testSalt)
	require.NoError(t, err)

	assert.NotContains(t, out, "Juan")
	assert.NotContains(t, out, "12345678")
	assert.NotContains(t, out, "juan@example.com")
	assert.Len(t, records, 3)
}

func TestPseudonymizeText_RejectsInvalidUTF8(t *testing.T) {
	_, _, err := PseudonymizeText(string([]byte{0xff, 0xfe}), testSalt)
	require.Error(t, err)
}

func TestPseudonymizeText_TokensNotRedetected(t *testing.T) {
	out, records, err := PseudonymizeText("llámame al 555-123-4567", testSalt)
	require.NoError(t, err)
	require.Len(t, records, 1)

	// Feeding redacted output back through must be a no-op.
	again, moreRecords, err := PseudonymizeText(out, testSalt)
	require.NoError(t, err)
	assert.Equal(t, out, again)
	assert.Empty(t, moreRecords)
}

func TestReplacementToken_Shape(t *testing.T) {
	token := ReplacementToken("EMAIL", "a@b.com", testSalt)
	assert.Regexp(t, `^\[EMAIL-[0-9A-F]{6}\]$`, token)
}
