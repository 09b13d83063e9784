package ldif

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScannerReadsMultipleEntries(t *testing.T) {
	input := "version: 1\n" +
		"dn: uid=bob,dc=x\n" +
		"cn: Bob\n" +
		"mail: bob@x\n" +
		"\n" +
		"dn: uid=alice,dc=x\n" +
		"cn: Alice\n" +
		"\n"

	s := NewScanner(strings.NewReader(input), "test.ldif")

	rec1, ok, err := s.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "uid=bob,dc=x", rec1.DN)
	require.Equal(t, []string{"Bob"}, rec1.Attrs["cn"])

	rec2, ok, err := s.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "uid=alice,dc=x", rec2.DN)

	_, ok, err = s.Next()
	require.NoError(t, err)
	require.False(t, ok, "expected ok=false at end of stream")
}

func TestScannerFoldsContinuationLines(t *testing.T) {
	input := "dn: uid=bob,dc=x\n" +
		"description: this is a long\n" +
		" description that wraps\n" +
		"\n"
	s := NewScanner(strings.NewReader(input), "test.ldif")
	rec, ok, err := s.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "this is a longdescription that wraps", rec.Attrs["description"][0])
}

func TestScannerBase64DN(t *testing.T) {
	// "uid=bob,dc=x" base64-encoded.
	input := "dn:: dWlkPWJvYixkYz14\ncn: Bob\n\n"
	s := NewScanner(strings.NewReader(input), "test.ldif")
	rec, ok, err := s.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "uid=bob,dc=x", rec.DN, "want decoded value")
}

func TestScannerMissingDNIsError(t *testing.T) {
	input := "cn: Bob\n\n"
	s := NewScanner(strings.NewReader(input), "test.ldif")
	_, ok, err := s.Next()
	require.ErrorIs(t, err, ErrMissingDN)
	require.True(t, ok, "a record (sans DN) was parsed before the error was detected")
}

func TestScannerNoTrailingBlankLine(t *testing.T) {
	// Entries at EOF without a final blank line must still be returned.
	input := "dn: uid=bob,dc=x\ncn: Bob\n"
	s := NewScanner(strings.NewReader(input), "test.ldif")
	rec, ok, err := s.Next()
	if err != nil {
		require.ErrorIs(t, err, io.EOF)
	}
	require.True(t, ok)
	require.Equal(t, "uid=bob,dc=x", rec.DN)
}
