package wallet

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func signingWallet(t *testing.T) (*Wallet, KeystoreBackend) {
	t.Helper()
	mgr := NewManager(WithInMemoryStore())
	w, err := mgr.Generate("signer")
	require.NoError(t, err)
	return w, mgr.Keystore()
}

// ---------------------------------------------------------------------------
// EIP-191
// ---------------------------------------------------------------------------

func TestSignMessageRoundTrip(t *testing.T) {
	w, ks := signingWallet(t)
	msg := []byte("w3sale:buy:1")

	sig, err := SignMessage(w, ks, msg)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.Contains(t, []byte{27, 28}, sig[64])

	got, err := VerifyMessage(msg, sig)
	require.NoError(t, err)
	assert.Equal(t, w.Address, got)
	assert.NoError(t, Verify(msg, sig, w.Address))
}

func TestVerifyAcceptsZeroOneRecoveryID(t *testing.T) {
	w, ks := signingWallet(t)
	msg := []byte("claim")
	sig, err := SignMessage(w, ks, msg)
	require.NoError(t, err)

	sig[64] -= 27
	got, err := VerifyMessage(msg, sig)
	require.NoError(t, err)
	assert.Equal(t, w.Address, got)
}

func TestVerifyWrongMessageOrAccount(t *testing.T) {
	w, ks := signingWallet(t)
	sig, err := SignMessage(w, ks, []byte("finalize"))
	require.NoError(t, err)

	assert.ErrorIs(t, Verify([]byte("sweep"), sig, w.Address), ErrSignatureMismatch)
	assert.ErrorIs(t, Verify([]byte("finalize"), sig, common.HexToAddress("0x01")), ErrSignatureMismatch)
	assert.ErrorIs(t, Verify([]byte("finalize"), sig[:10], w.Address), ErrSignatureMismatch)
}

func TestVerifyMessageInvalidSigLength(t *testing.T) {
	_, err := VerifyMessage([]byte("x"), make([]byte, 64))
	assert.ErrorContains(t, err, "expected 65 bytes")
}

func TestSignMessageWatchOnlyError(t *testing.T) {
	_, err := SignMessage(&Wallet{Name: "w", Type: TypeWatchOnly}, NewInMemoryKeystore(), []byte("x"))
	assert.ErrorContains(t, err, "watch-only")
}

func TestSignMessageMissingKeystore(t *testing.T) {
	_, err := SignMessage(&Wallet{Name: "w", Type: TypeSigning}, nil, []byte("x"))
	assert.ErrorContains(t, err, "no keystore")

	_, err = SignMessage(&Wallet{Name: "w", Type: TypeSigning, KeyRef: "w3sale.w"}, NewInMemoryKeystore(), []byte("x"))
	assert.ErrorContains(t, err, "retrieving key")
}

func TestEIP191HashMatchesGeth(t *testing.T) {
	msg := []byte("hello")
	want := crypto.Keccak256([]byte("\x19Ethereum Signed Message:\n5hello"))
	assert.Equal(t, want, eip191Hash(msg))
	assert.NotEqual(t, eip191Hash([]byte("a")), eip191Hash([]byte("b")))
}

// ---------------------------------------------------------------------------
// Signer
// ---------------------------------------------------------------------------

func TestSignerSignTxRecoversSender(t *testing.T) {
	w, ks := signingWallet(t)
	s := NewSigner(w, ks)
	chainID := big.NewInt(31337)

	to := common.HexToAddress("0x2000000000000000000000000000000000000002")
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     3,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(2),
		Gas:       60_000,
		To:        &to,
		Value:     new(big.Int),
		Data:      []byte{0xa9, 0x05, 0x9c, 0xbb},
	})
	raw, err := s.SignTx(tx, chainID)
	require.NoError(t, err)

	var decoded types.Transaction
	require.NoError(t, decoded.UnmarshalBinary(raw))
	from, err := types.Sender(types.NewLondonSigner(chainID), &decoded)
	require.NoError(t, err)
	assert.Equal(t, w.Address, from)
	assert.Equal(t, w.Address, s.Address())
}

func TestSignerSignMessage(t *testing.T) {
	w, ks := signingWallet(t)
	sig, err := NewSigner(w, ks).SignMessage([]byte("m"))
	require.NoError(t, err)
	assert.NoError(t, Verify([]byte("m"), sig, w.Address))
}

func TestSignerWatchOnlyError(t *testing.T) {
	s := NewSigner(&Wallet{Name: "w", Type: TypeWatchOnly}, NewInMemoryKeystore())
	_, err := s.SignTx(types.NewTx(&types.LegacyTx{}), big.NewInt(1))
	assert.ErrorContains(t, err, "watch-only")
}
