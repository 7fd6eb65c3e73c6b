package cmd

import (
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/Mohsinsiddi/w3sale/internal/sale"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tests := []struct {
		in   string
		want int64
	}{
		{"", 1_700_000_000},
		{"now", 1_700_000_000},
		{"+1h", 1_700_003_600},
		{"+90s", 1_700_000_090},
		{"1800000000", 1_800_000_000},
		{"2023-11-14T22:13:20Z", 1_700_000_000},
	}
	for _, tt := range tests {
		got, err := parseTime(tt.in, now)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := parseTime("tomorrow", now)
	assert.ErrorContains(t, err, "invalid time")
	_, err = parseTime("+soon", now)
	assert.Error(t, err)
}

func TestParseDuration(t *testing.T) {
	got, err := parseDuration("3600")
	require.NoError(t, err)
	assert.Equal(t, int64(3600), got)

	got, err = parseDuration("72h")
	require.NoError(t, err)
	assert.Equal(t, int64(259200), got)

	_, err = parseDuration("a week")
	assert.ErrorContains(t, err, "invalid duration")
}

func TestParseProof(t *testing.T) {
	a := common.HexToHash("0x01")
	b := common.HexToHash("0x02")
	c := common.HexToHash("0x03")

	got, err := parseProof([]string{a.Hex() + ", " + b.Hex(), c.Hex(), ""})
	require.NoError(t, err)
	assert.Equal(t, []common.Hash{a, b, c}, got)

	got, err = parseProof(nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = parseProof([]string{"0x1234"})
	assert.ErrorContains(t, err, "invalid proof element")
}

func TestParseAllowance(t *testing.T) {
	all, err := parseAllowance("max", 6)
	require.NoError(t, err)
	assert.Equal(t, 256, all.BitLen())

	v, err := parseAllowance("1.5", 6)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1_500_000), v)
}

func TestTruncateAndFirstLine(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "first", firstLine("first\nsecond"))
	assert.Equal(t, "only", firstLine("only"))
}

func TestCompactJSON(t *testing.T) {
	assert.Equal(t, `{"a":1,"b":[1,2]}`, compactJSON(json.RawMessage("{\n  \"a\": 1,\n  \"b\": [1, 2]\n}")))
	assert.Equal(t, "not json", compactJSON(json.RawMessage("not json")))
}

func TestExplain(t *testing.T) {
	err := explain("buy", sale.ErrPaused)
	assert.EqualError(t, err, "buy rejected (admission_denied): paused")

	err = explain("claim", errors.New("disk full"))
	assert.EqualError(t, err, "claim: disk full")
	assert.True(t, strings.HasPrefix(explain("x", sale.ErrNotOwner).Error(), "x rejected (authorization_error)"))
}

func TestClockHonorsNowFlag(t *testing.T) {
	defer func(v int64) { nowFlag = v }(nowFlag)
	nowFlag = 1234
	assert.Equal(t, int64(1234), clock().Now().Unix())
	nowFlag = 0
	assert.WithinDuration(t, time.Now(), clock().Now(), time.Minute)
}
