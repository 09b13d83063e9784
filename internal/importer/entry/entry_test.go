package entry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	e := &Entry{
		ID: 7,
		DN: "uid=bob,dc=x",
		Attrs: []RawAttribute{
			{Name: "cn", Values: []string{"Bob"}},
			{Name: "mail", Values: []string{"bob@x", "robert@x"}},
			{Name: "description", Values: nil},
		},
	}

	blob := Encode(e)
	got, err := Decode(e.ID, blob)
	require.NoError(t, err)
	require.Equal(t, e.ID, got.ID)
	require.Equal(t, e.DN, got.DN)
	require.Len(t, got.Attrs, 2, "want 2 non-empty records")
	require.Equal(t, "Bob", got.GetAttr("cn")[0])
	require.Equal(t, []string{"bob@x", "robert@x"}, got.GetAttr("mail"))
}

func TestDecodeMissingTerminatorFails(t *testing.T) {
	_, err := Decode(1, []byte("no-nul-here"))
	require.Error(t, err, "expected error for blob with no DN terminator")
}

func TestRefcountLifecycle(t *testing.T) {
	e := &Entry{ID: 1}
	e.SetRefcount(3)
	require.Equal(t, int32(2), e.Release(), "after one release")
	e.Release()
	require.Equal(t, int32(0), e.Release(), "after three releases")
	require.Equal(t, int32(0), e.Refcount())
}

func TestSetAttrReplacesExisting(t *testing.T) {
	e := &Entry{}
	e.SetAttr("cn", "a")
	e.SetAttr("cn", "b", "c")
	require.Len(t, e.Attrs, 1, "expected a single cn record")
	require.Equal(t, []string{"b", "c"}, e.GetAttr("cn"))
}

func TestHasFlag(t *testing.T) {
	e := &Entry{Flags: FlagTombstone | FlagBad}
	require.True(t, e.HasFlag(FlagTombstone))
	require.True(t, e.HasFlag(FlagBad))
	require.False(t, e.HasFlag(FlagCompatDN))
}
