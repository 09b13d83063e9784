package worker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubstringTokensThreeGrams(t *testing.T) {
	require.Equal(t, []string{"bob"}, substringTokens("Bob"))
	require.Equal(t, []string{"ali", "lic", "ice"}, substringTokens("alice"))
}

func TestSubstringTokensShortValue(t *testing.T) {
	require.Equal(t, []string{"ab"}, substringTokens("ab"), "value shorter than n-gram size")
}

func TestKeyEncodingsAreDistinctByKind(t *testing.T) {
	p := presenceKey("cn")
	eq := equalityKey("cn", "Bob")
	sub := substringKey("cn", "bob")
	require.NotEqual(t, string(p), string(eq))
	require.NotEqual(t, string(eq), string(sub))
	require.NotEqual(t, string(p), string(sub))
}

func TestEqualityKeyLowercases(t *testing.T) {
	a := equalityKey("cn", "Bob")
	b := equalityKey("cn", "BOB")
	require.Equal(t, string(a), string(b), "equalityKey should be case-insensitive")
}
