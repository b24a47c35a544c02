package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCredentialUpdate_Success(t *testing.T) {
	assert.NoError(t, ValidateCredentialUpdate("abc", "abcdef", "abcdef"))
	assert.NoError(t, ValidateCredentialUpdate("", "a-much-longer-secret", "a-much-longer-secret"))
}

func TestValidateCredentialUpdate_TooShort(t *testing.T) {
	err := ValidateCredentialUpdate("abc", "abc12", "abc12")

	assert.True(t, errors.Is(err, ErrTooShort))
	assert.Equal(t, "new password must be at least 6 characters", err.Error())
}

func TestValidateCredentialUpdate_MatchingSucceedsIffLongEnough(t *testing.T) {
	for n := 0; n <= 10; n++ {
		secret := strings.Repeat("x", n)
		err := ValidateCredentialUpdate("current", secret, secret)
		if n >= MinSecretLength {
			assert.NoError(t, err, "length %d", n)
		} else {
			assert.True(t, errors.Is(err, ErrTooShort), "length %d", n)
		}
	}
}

func TestValidateCredentialUpdate_MismatchWinsRegardlessOfLength(t *testing.T) {
	pairs := [][2]string{
		{"abcdef", "abcdeg"},
		{"abc", "abcdef"},
		{"abc", "ab"},
		{"", "abcdefgh"},
		{"abcdefgh", ""},
	}

	for _, p := range pairs {
		err := ValidateCredentialUpdate("current", p[0], p[1])
		assert.True(t, errors.Is(err, ErrMismatch), "new=%q confirm=%q", p[0], p[1])
	}
}

func TestValidateCredentialUpdate_CountsRunes(t *testing.T) {
	assert.NoError(t, ValidateCredentialUpdate("x", "çãõéíú", "çãõéíú"))
}

func TestValidateSearchQuery_NationalID(t *testing.T) {
	q, err := ValidateSearchQuery("11122233344", ByNationalID)

	require.NoError(t, err)
	assert.Equal(t, ByNationalID, q.Kind)
	assert.Equal(t, "111.222.333-44", q.Key)
}

func TestValidateSearchQuery_NationalIDAlreadyMasked(t *testing.T) {
	q, err := ValidateSearchQuery("111.222.333-44", ByNationalID)

	require.NoError(t, err)
	assert.Equal(t, "111.222.333-44", q.Key)
}

func TestValidateSearchQuery_IncompleteNationalID(t *testing.T) {
	inputs := []string{"", "1", "111.222.333-4", "1112223334", "abc", "111 222 333"}

	for _, in := range inputs {
		_, err := ValidateSearchQuery(in, ByNationalID)
		assert.True(t, errors.Is(err, ErrIncompleteID), "input %q", in)
	}
}

func TestValidateSearchQuery_TooManyDigits(t *testing.T) {
	_, err := ValidateSearchQuery("111222333445", ByNationalID)
	assert.True(t, errors.Is(err, ErrIncompleteID))
}

func TestValidateSearchQuery_ID(t *testing.T) {
	q, err := ValidateSearchQuery(" 11 ", ByID)

	require.NoError(t, err)
	assert.Equal(t, ByID, q.Kind)
	assert.Equal(t, int64(11), q.ID)
	assert.Equal(t, "11", q.Key)
}

func TestValidateSearchQuery_EmptyID(t *testing.T) {
	for _, in := range []string{"", "   "} {
		_, err := ValidateSearchQuery(in, ByID)
		assert.True(t, errors.Is(err, ErrEmptyQuery), "input %q", in)
	}
}

func TestValidateSearchQuery_InvalidID(t *testing.T) {
	for _, in := range []string{"abc", "-5", "0", "1.5", "99999999999999999999"} {
		_, err := ValidateSearchQuery(in, ByID)
		assert.True(t, errors.Is(err, ErrInvalidID), "input %q", in)
	}
}

func TestIsValidationError(t *testing.T) {
	assert.True(t, IsValidationError(ErrMismatch))
	assert.False(t, IsValidationError(errors.New("boom")))
}
