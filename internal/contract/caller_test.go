package contract

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tokenAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	ownerAddr = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

// rpcMock serves one fixed result per JSON-RPC method and records the
// params of every call.
type rpcMock struct {
	mu      sync.Mutex
	results map[string]interface{}
	params  map[string][]json.RawMessage
}

func newRPCMock(t *testing.T, results map[string]interface{}) (*rpcMock, *chain.EVMClient) {
	t.Helper()
	m := &rpcMock{results: results, params: map[string][]json.RawMessage{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
			ID     int               `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		m.mu.Lock()
		m.params[req.Method] = req.Params
		m.mu.Unlock()
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if result, ok := m.results[req.Method]; ok {
			resp["result"] = result
		} else {
			resp["error"] = map[string]interface{}{"code": -32601, "message": "method not found"}
		}
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)
	return m, chain.NewEVMClient(srv.URL)
}

func (m *rpcMock) paramsOf(method string) []json.RawMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.params[method]
}

func word(n int64) string {
	return hex.EncodeToString(common.LeftPadBytes(big.NewInt(n).Bytes(), 32))
}

// ---------------------------------------------------------------------------
// selectors and encoding
// ---------------------------------------------------------------------------

func TestFunctionSelectorsMatchERC20(t *testing.T) {
	want := map[string]string{
		"name":         "06fdde03",
		"symbol":       "95d89b41",
		"decimals":     "313ce567",
		"totalSupply":  "18160ddd",
		"balanceOf":    "70a08231",
		"allowance":    "dd62ed3e",
		"transfer":     "a9059cbb",
		"approve":      "095ea7b3",
		"transferFrom": "23b872dd",
	}
	for name, sel := range want {
		fn := findFunction(ERC20ABI(), name)
		require.NotNil(t, fn, name)
		assert.Equal(t, sel, hex.EncodeToString(functionSelector(fn)), name)
	}
}

func TestFindFunctionSkipsEvents(t *testing.T) {
	assert.Nil(t, findFunction(ERC20ABI(), "Transfer"))
	assert.NotNil(t, findFunction(ERC20ABI(), "transfer"))
}

func TestEncodeParam(t *testing.T) {
	w, err := encodeParam("address", ownerAddr.Hex())
	require.NoError(t, err)
	assert.Equal(t, common.LeftPadBytes(ownerAddr.Bytes(), 32), w)

	w, err = encodeParam("uint256", "0x10")
	require.NoError(t, err)
	assert.Equal(t, byte(16), w[31])

	w, err = encodeParam("bool", "true")
	require.NoError(t, err)
	assert.Equal(t, byte(1), w[31])

	w, err = encodeParam("bytes32", "0xabcd")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xab, 0xcd}, w[:2])
	assert.Len(t, w, 32)
}

func TestEncodeParamRejections(t *testing.T) {
	tests := []struct{ typ, val string }{
		{"address", "0x1234"},
		{"uint256", "abc"},
		{"uint256", "-1"},
		{"uint256", "0x1" + strings.Repeat("0", 64)},
		{"bytes32", "0x" + strings.Repeat("ab", 33)},
		{"string", "hello"},
	}
	for _, tt := range tests {
		_, err := encodeParam(tt.typ, tt.val)
		assert.Error(t, err, "%s %s", tt.typ, tt.val)
	}
}

func TestDecodeResultString(t *testing.T) {
	fn := findFunction(ERC20ABI(), "symbol")
	data, _ := hex.DecodeString(word(32) + word(3) + hex.EncodeToString(common.RightPadBytes([]byte("GOV"), 32)))
	out, err := decodeResult(fn, data)
	require.NoError(t, err)
	assert.Equal(t, []string{"GOV"}, out)
}

func TestDecodeResultShortData(t *testing.T) {
	out, err := decodeResult(findFunction(ERC20ABI(), "decimals"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{""}, out)
}

func TestDecodeWordTypes(t *testing.T) {
	w := common.LeftPadBytes(ownerAddr.Bytes(), 32)
	assert.Equal(t, ownerAddr.Hex(), decodeWord("address", w, w))
	assert.Equal(t, "true", decodeWord("bool", common.LeftPadBytes([]byte{1}, 32), nil))
	assert.Equal(t, "false", decodeWord("bool", make([]byte, 32), nil))
	assert.Equal(t, "0x"+strings.Repeat("00", 32), decodeWord("bytes32", make([]byte, 32), nil))
}

// ---------------------------------------------------------------------------
// Caller
// ---------------------------------------------------------------------------

func TestCallerCallBig(t *testing.T) {
	m, client := newRPCMock(t, map[string]interface{}{"eth_call": "0x" + word(1234)})
	c := NewCaller(client, ERC20ABI())

	n, err := c.CallBig(context.Background(), tokenAddr, "balanceOf", ownerAddr.Hex())
	require.NoError(t, err)
	assert.Equal(t, int64(1234), n.Int64())

	var call struct {
		To   string `json:"to"`
		Data string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(m.paramsOf("eth_call")[0], &call))
	assert.Equal(t, tokenAddr.Hex(), call.To)
	assert.True(t, strings.HasPrefix(call.Data, "0x70a08231"))
	assert.Len(t, call.Data, 2+8+64)
}

func TestCallerRejections(t *testing.T) {
	_, client := newRPCMock(t, map[string]interface{}{"eth_call": "0x"})
	c := NewCaller(client, ERC20ABI())
	ctx := context.Background()

	_, err := c.Call(ctx, tokenAddr, "mint")
	assert.ErrorContains(t, err, "not found in ABI")

	_, err = c.Call(ctx, tokenAddr, "transfer", ownerAddr.Hex(), "1")
	assert.ErrorContains(t, err, "not a read function")

	_, err = c.Call(ctx, tokenAddr, "balanceOf", "nope")
	assert.ErrorContains(t, err, "encoding call")

	_, err = c.CallBig(ctx, tokenAddr, "totalSupply")
	assert.ErrorContains(t, err, "empty result")
}

func TestCallerRPCError(t *testing.T) {
	_, client := newRPCMock(t, map[string]interface{}{})
	_, err := NewCaller(client, ERC20ABI()).Call(context.Background(), tokenAddr, "decimals")
	assert.ErrorContains(t, err, "contract call failed")
}

func TestABIEntryKinds(t *testing.T) {
	assert.True(t, findFunction(ERC20ABI(), "allowance").IsReadFunction())
	assert.False(t, findFunction(ERC20ABI(), "allowance").IsWriteFunction())
	assert.True(t, findFunction(ERC20ABI(), "approve").IsWriteFunction())
}
