package wallet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONStoreLoadNoFile(t *testing.T) {
	s := NewJSONStore(filepath.Join(t.TempDir(), "missing.json"))
	wallets, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, wallets)
}

func TestJSONStoreSaveRestrictivePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallets.json")
	require.NoError(t, NewJSONStore(path).Save([]*Wallet{{Name: "a"}}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestJSONStoreRoundTripAllFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallets.json")
	in := &Wallet{
		Name:      "operator",
		Address:   common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
		Type:      TypeSigning,
		KeyRef:    "w3sale.operator",
		IsDefault: true,
		CreatedAt: "2026-01-02T03:04:05Z",
	}
	s := NewJSONStore(path)
	require.NoError(t, s.Save([]*Wallet{in}))

	out, err := s.Load()
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, in, out[0])
}

func TestJSONStoreLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallets.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewJSONStore(path).Load()
	assert.Error(t, err)

	mgr := NewManager(WithStore(NewJSONStore(path)))
	_, err = mgr.Get("anything")
	assert.Error(t, err, "a corrupt store surfaces on first use")
}

// ---------------------------------------------------------------------------
// Keystore
// ---------------------------------------------------------------------------

func TestKeystoreNilRing(t *testing.T) {
	k := &Keystore{}
	_, err := k.Store("a", "00")
	assert.ErrorContains(t, err, "not available")
	_, err = k.Retrieve("w3sale.a")
	assert.ErrorContains(t, err, "not available")
	assert.NoError(t, k.Delete("w3sale.a"))
}

func TestInMemoryKeystore(t *testing.T) {
	ks := NewInMemoryKeystore()
	ref, err := ks.Store("op", "abc")
	require.NoError(t, err)
	assert.Equal(t, "w3sale.op", ref)

	got, err := ks.Retrieve(ref)
	require.NoError(t, err)
	assert.Equal(t, "abc", got)

	_, err = ks.Store("op", "def")
	require.NoError(t, err)
	got, _ = ks.Retrieve(ref)
	assert.Equal(t, "def", got, "storing again overwrites")

	require.NoError(t, ks.Delete(ref))
	_, err = ks.Retrieve(ref)
	assert.ErrorContains(t, err, "key not found")
	assert.NoError(t, ks.Delete(ref))
}

func TestStripHexPrefix(t *testing.T) {
	assert.Equal(t, "abcd", stripHexPrefix("0xabcd"))
	assert.Equal(t, "abcd", stripHexPrefix("abcd"))
	assert.Equal(t, "", stripHexPrefix("0x"))
}
