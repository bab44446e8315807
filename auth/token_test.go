package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/exit-engine/auth"
	"github.com/warp/exit-engine/exitreq"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestIssueAndVerify(t *testing.T) {
	issuer := auth.NewIssuer(secret, "hostel-auth", time.Hour)
	verifier := auth.NewVerifier(secret, "hostel-auth")

	token, err := issuer.Issue(auth.Identity{RequesterID: "student-1", Role: "student"})
	require.NoError(t, err)

	id, err := verifier.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "student-1", id.RequesterID)
	assert.False(t, id.IsAdmin())

	token, err = issuer.Issue(auth.Identity{RequesterID: "warden-1", Role: exitreq.RoleAdmin})
	require.NoError(t, err)
	id, err = verifier.Verify(token)
	require.NoError(t, err)
	assert.True(t, id.IsAdmin())
}

func TestVerify_Rejections(t *testing.T) {
	verifier := auth.NewVerifier(secret, "hostel-auth")

	t.Run("WrongSecret", func(t *testing.T) {
		token, err := auth.NewIssuer("ffffffffffffffffffffffffffffffff", "hostel-auth", time.Hour).
			Issue(auth.Identity{RequesterID: "x"})
		require.NoError(t, err)
		_, err = verifier.Verify(token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("Expired", func(t *testing.T) {
		token, err := auth.NewIssuer(secret, "hostel-auth", -time.Minute).Issue(auth.Identity{RequesterID: "x"})
		require.NoError(t, err)
		_, err = verifier.Verify(token)
		assert.ErrorIs(t, err, auth.ErrExpiredToken)
	})

	t.Run("WrongIssuer", func(t *testing.T) {
		token, err := auth.NewIssuer(secret, "someone-else", time.Hour).Issue(auth.Identity{RequesterID: "x"})
		require.NoError(t, err)
		_, err = verifier.Verify(token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("MissingSubject", func(t *testing.T) {
		token, err := auth.NewIssuer(secret, "hostel-auth", time.Hour).Issue(auth.Identity{Role: "admin"})
		require.NoError(t, err)
		_, err = verifier.Verify(token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("NoneAlgorithm", func(t *testing.T) {
		claims := auth.Claims{Role: "admin", RegisteredClaims: jwt.RegisteredClaims{Subject: "x", Issuer: "hostel-auth"}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = verifier.Verify(token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := verifier.Verify("not.a.jwt")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})
}

func TestBearerToken(t *testing.T) {
	tok, err := auth.BearerToken("Bearer abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", tok)

	tok, err = auth.BearerToken("bearer   xyz ")
	require.NoError(t, err)
	assert.Equal(t, "xyz", tok)

	for _, h := range []string{"", "Bearer", "Bearer ", "Basic abc", "abc"} {
		_, err := auth.BearerToken(h)
		assert.ErrorIs(t, err, auth.ErrMissingToken, h)
	}
}

func TestContext(t *testing.T) {
	_, ok := auth.FromContext(context.Background())
	assert.False(t, ok)

	ctx := auth.WithIdentity(context.Background(), auth.Identity{RequesterID: "s1", Role: "student"})
	id, ok := auth.FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "s1", id.RequesterID)
}
