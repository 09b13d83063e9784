package backup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oba-ldap/obacore/internal/importer/entry"
)

func TestHasObjectClassCaseInsensitive(t *testing.T) {
	e := &entry.Entry{Attrs: []entry.RawAttribute{
		{Name: "objectclass", Values: []string{"top", "nsBackendInstance"}},
	}}
	require.True(t, hasObjectClass(e, "nsbackendinstance"))
	require.False(t, hasObjectClass(e, "nsIndex"))
}

func TestWriteRecordExcludesNumsubordinatesAndSortsAttrs(t *testing.T) {
	e := &entry.Entry{
		DN: "cn=userRoot,cn=ldbm database,cn=plugins,cn=config",
		Attrs: []entry.RawAttribute{
			{Name: "numsubordinates", Values: []string{"42"}},
			{Name: "objectclass", Values: []string{"nsBackendInstance"}},
			{Name: "cn", Values: []string{"userRoot"}},
		},
	}

	var sb strings.Builder
	require.NoError(t, writeRecord(&sb, e))
	out := sb.String()

	require.True(t, strings.HasPrefix(out, "dn: cn=userRoot,cn=ldbm database,cn=plugins,cn=config\n"))
	require.NotContains(t, out, "numsubordinates")
	require.Contains(t, out, "cn: userRoot\n")
	require.Contains(t, out, "objectclass: nsBackendInstance\n")
	require.True(t, strings.HasSuffix(out, "\n\n"), "expected a blank-line record separator")
	// "cn" sorts before "objectclass".
	require.Less(t, strings.Index(out, "cn: userRoot"), strings.Index(out, "objectclass:"))
}
