package contract

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Caller calls read-only (view/pure) contract functions.
type Caller struct {
	client *chain.EVMClient
	abi    []ABIEntry
}

// NewCaller creates a Caller from already-parsed ABI entries.
func NewCaller(client *chain.EVMClient, abi []ABIEntry) *Caller {
	return &Caller{client: client, abi: abi}
}

// Call calls a read function on a contract and returns decoded results as strings.
func (c *Caller) Call(ctx context.Context, contractAddr common.Address, funcName string, args ...string) ([]string, error) {
	fn := findFunction(c.abi, funcName)
	if fn == nil {
		return nil, fmt.Errorf("function %q not found in ABI", funcName)
	}

	if !fn.IsReadFunction() {
		return nil, fmt.Errorf("function %q is not a read function (stateMutability: %s)", funcName, fn.StateMutability)
	}

	calldata, err := encodeCall(fn, args)
	if err != nil {
		return nil, fmt.Errorf("encoding call: %w", err)
	}

	result, err := c.client.CallContract(ctx, contractAddr, calldata)
	if err != nil {
		return nil, fmt.Errorf("contract call failed: %w", err)
	}

	decoded, err := decodeResult(fn, result)
	if err != nil {
		return nil, fmt.Errorf("decoding result: %w", err)
	}

	return decoded, nil
}

// CallBig calls a read function with a single integer output.
func (c *Caller) CallBig(ctx context.Context, contractAddr common.Address, funcName string, args ...string) (*big.Int, error) {
	out, err := c.Call(ctx, contractAddr, funcName, args...)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 || out[0] == "" {
		return nil, fmt.Errorf("%s: empty result", funcName)
	}
	n, ok := new(big.Int).SetString(out[0], 10)
	if !ok {
		return nil, fmt.Errorf("%s: not an integer: %s", funcName, out[0])
	}
	return n, nil
}

// findFunction finds an ABI function entry by name.
func findFunction(abi []ABIEntry, name string) *ABIEntry {
	for i := range abi {
		if abi[i].Type == "function" && abi[i].Name == name {
			return &abi[i]
		}
	}
	return nil
}

// --- ABI encoding (simplified, for common types) ---

// encodeCall builds calldata: 4-byte selector + encoded args.
func encodeCall(fn *ABIEntry, args []string) ([]byte, error) {
	out := functionSelector(fn)

	for i, param := range fn.Inputs {
		var argStr string
		if i < len(args) {
			argStr = args[i]
		}
		word, err := encodeParam(param.Type, argStr)
		if err != nil {
			return nil, fmt.Errorf("encoding param %s: %w", param.Name, err)
		}
		out = append(out, word...)
	}

	return out, nil
}

// functionSelector computes the 4-byte selector for a function.
func functionSelector(fn *ABIEntry) []byte {
	types := make([]string, len(fn.Inputs))
	for i, p := range fn.Inputs {
		types[i] = p.Type
	}
	sig := fn.Name + "(" + strings.Join(types, ",") + ")"

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(sig))
	return h.Sum(nil)[:4]
}

// encodeParam encodes a single static ABI parameter as a 32-byte word.
func encodeParam(typ, val string) ([]byte, error) {
	switch {
	case typ == "address":
		if !common.IsHexAddress(val) {
			return nil, fmt.Errorf("invalid address: %s", val)
		}
		return common.LeftPadBytes(common.HexToAddress(val).Bytes(), 32), nil

	case strings.HasPrefix(typ, "uint") || strings.HasPrefix(typ, "int"):
		n := new(big.Int)
		if _, ok := n.SetString(val, 0); !ok {
			return nil, fmt.Errorf("invalid integer: %s", val)
		}
		if n.Sign() < 0 {
			return nil, fmt.Errorf("negative integers are not supported: %s", val)
		}
		if n.BitLen() > 256 {
			return nil, fmt.Errorf("integer overflows 256 bits: %s", val)
		}
		return common.LeftPadBytes(n.Bytes(), 32), nil

	case typ == "bool":
		word := make([]byte, 32)
		if val == "true" || val == "1" {
			word[31] = 1
		}
		return word, nil

	case typ == "bytes32":
		b, err := hex.DecodeString(strings.TrimPrefix(val, "0x"))
		if err != nil || len(b) > 32 {
			return nil, fmt.Errorf("invalid bytes32: %s", val)
		}
		return common.RightPadBytes(b, 32), nil

	default:
		return nil, fmt.Errorf("unsupported parameter type %s", typ)
	}
}

// decodeResult decodes the raw return data into string values.
func decodeResult(fn *ABIEntry, data []byte) ([]string, error) {
	if len(fn.Outputs) == 0 {
		return nil, nil
	}

	var results []string
	offset := 0

	for _, out := range fn.Outputs {
		if offset+32 > len(data) {
			results = append(results, "")
			continue
		}

		word := data[offset : offset+32]
		offset += 32

		results = append(results, decodeWord(out.Type, word, data))
	}

	return results, nil
}

func decodeWord(typ string, word []byte, fullData []byte) string {
	switch {
	case typ == "address":
		return common.BytesToAddress(word[12:]).Hex()

	case strings.HasPrefix(typ, "uint") || strings.HasPrefix(typ, "int"):
		return new(big.Int).SetBytes(word).String()

	case typ == "bool":
		if word[31] == 1 {
			return "true"
		}
		return "false"

	case typ == "string":
		// String uses an offset + length encoding.
		offsetVal := new(big.Int).SetBytes(word).Uint64()
		if offsetVal+32 > uint64(len(fullData)) {
			return ""
		}
		length := new(big.Int).SetBytes(fullData[offsetVal : offsetVal+32]).Uint64()
		start := offsetVal + 32
		if start+length > uint64(len(fullData)) {
			return ""
		}
		return string(fullData[start : start+length])

	default:
		return "0x" + hex.EncodeToString(word)
	}
}
