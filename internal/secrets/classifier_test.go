package secrets

import (
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  Kind
	}{
		{name: "empty is none", value: "", want: KindNone},
		{name: "short pin is static", value: "123456", want: KindStatic},
		{name: "exactly eight chars is static", value: "ABCD1234", want: KindStatic},
		{name: "long base32 seed is time-based", value: "JBSWY3DPEHPK3PXP", want: KindTimeBased},
		{name: "long all-digit value is static", value: "123456789012", want: KindStatic},
		{name: "long value with symbols is static", value: "pass-word-123", want: KindStatic},
		{name: "long value with space is static", value: "JBSWY3DP EHPK3PXP", want: KindStatic},
		{name: "nine alphanumeric mixed is time-based", value: "A12345678", want: KindTimeBased},
		{name: "lowercase seed is time-based", value: "jbswy3dpehpk3pxp", want: KindTimeBased},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.value))
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "none", KindNone.String())
	assert.Equal(t, "static", KindStatic.String())
	assert.Equal(t, "time-based", KindTimeBased.String())
}

func TestCode_Static(t *testing.T) {
	code, err := Code("1234", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "1234", code)
}

func TestCode_TimeBased(t *testing.T) {
	const seed = "JBSWY3DPEHPK3PXP"
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	want, err := totp.GenerateCode(seed, at)
	require.NoError(t, err)

	got, err := Code(seed, at)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Len(t, got, 6)
}

func TestCode_MalformedSeed(t *testing.T) {
	// Classified as time-based but not valid base32.
	_, err := Code("18AB90CD12", time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

func TestCode_Empty(t *testing.T) {
	_, err := Code("", time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerationFailed)
}
