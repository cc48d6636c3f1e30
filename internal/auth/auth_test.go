package auth_test

import (
	"testing"
	"time"

	"github.com/practice-sem-2/chat-service/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Verifier_RoundTrip(t *testing.T) {
	verifier := auth.NewVerifier("secret")

	token, err := verifier.Sign("253becbb-76b1-4471-9ff3-529462925899", []string{"user"}, time.Hour)
	require.NoError(t, err)

	claims, err := verifier.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "253becbb-76b1-4471-9ff3-529462925899", claims.UserID)
	assert.Equal(t, []string{"user"}, claims.Roles)
}

func Test_Verifier_RejectsBadTokens(t *testing.T) {
	verifier := auth.NewVerifier("secret")

	_, err := verifier.Verify("garbage")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	// Signed with another secret.
	foreign, err := auth.NewVerifier("other").Sign("253becbb-76b1-4471-9ff3-529462925899", nil, time.Hour)
	require.NoError(t, err)
	_, err = verifier.Verify(foreign)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	// Expired.
	expired, err := verifier.Sign("253becbb-76b1-4471-9ff3-529462925899", nil, -time.Minute)
	require.NoError(t, err)
	_, err = verifier.Verify(expired)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	// Valid signature but no principal.
	empty, err := verifier.Sign("", nil, time.Hour)
	require.NoError(t, err)
	_, err = verifier.Verify(empty)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
