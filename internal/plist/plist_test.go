package plist

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetGetFixedAndExtra(t *testing.T) {
	p := New()
	p.Set("dn", "uid=bob,dc=x")
	p.Set("custom-attr", "value1")

	got, ok := p.Get("dn")
	require.True(t, ok)
	require.Equal(t, "uid=bob,dc=x", got)

	got, ok = p.Get("custom-attr")
	require.True(t, ok)
	require.Equal(t, "value1", got)

	_, ok = p.Get("missing")
	require.False(t, ok, "Get(missing) should report absent")
}

func TestGetSlotSetSlotHotPath(t *testing.T) {
	p := New()
	p.SetSlot(SlotIP, "10.0.0.1")
	got, ok := p.GetSlot(SlotIP)
	require.True(t, ok)
	require.Equal(t, "10.0.0.1", got)

	// Set via the string path on the same well-known name must hit the
	// same fixed slot.
	p.Set("ip", "10.0.0.2")
	got, ok = p.GetSlot(SlotIP)
	require.True(t, ok)
	require.Equal(t, "10.0.0.2", got)
}

func TestNamesPreservesInsertionOrder(t *testing.T) {
	p := New()
	p.Set("user", "alice")
	p.Set("zzz-custom", "1")
	p.Set("dn", "uid=alice,dc=x")
	p.Set("user", "bob") // overwrite, should not duplicate in Names()

	require.Equal(t, []string{"user", "zzz-custom", "dn"}, p.Names())
}

func TestDupIsIndependent(t *testing.T) {
	p := New()
	p.Set("dn", "uid=bob,dc=x")
	p.Set("extra", "v1")

	cp := p.Dup()
	cp.Set("dn", "uid=alice,dc=x")
	cp.Set("extra", "v2")

	got, _ := p.Get("dn")
	require.Equal(t, "uid=bob,dc=x", got, "original dn mutated by Dup")
	got, _ = p.Get("extra")
	require.Equal(t, "v1", got, "original extra mutated by Dup")
	got, _ = cp.Get("dn")
	require.Equal(t, "uid=alice,dc=x", got)
}

func TestDupNilReceiver(t *testing.T) {
	var p *Plist
	require.Nil(t, p.Dup())
}
