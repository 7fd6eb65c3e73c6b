package api

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/Mohsinsiddi/w3sale/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Request authentication errors.
var (
	ErrBadSigner       = errors.New("from is not a hex address")
	ErrBadSignature    = errors.New("signature is not valid hex")
	ErrRequestExpired  = errors.New("request deadline has passed")
	ErrDeadlineTooFar  = errors.New("request deadline is too far in the future")
	ErrRequestReplayed = errors.New("request was already submitted")
)

// Signed carries the authentication fields of a state-changing request.
type Signed struct {
	From      string `json:"from" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	Deadline  int64  `json:"deadline" binding:"required"`
}

// Message is the text an account signs to authorize op against the sale at
// saleAddr: "w3sale:<op>:<sale>:<fields...>:<deadline>".
func Message(op string, saleAddr common.Address, deadline int64, fields ...string) []byte {
	parts := make([]string, 0, len(fields)+4)
	parts = append(parts, "w3sale", op, saleAddr.Hex())
	parts = append(parts, fields...)
	parts = append(parts, strconv.FormatInt(deadline, 10))
	return []byte(strings.Join(parts, ":"))
}

// grant is an authenticated request: the signer and the replay key under
// which it is recorded once its operation commits.
type grant struct {
	from     common.Address
	key      string
	deadline int64
}

// authenticate checks the deadline and the signature and returns the
// signing account. The replay key is the signer plus the message hash, so
// re-encodings of the same signature map to the same key.
func (s *Server) authenticate(req Signed, msg []byte) (grant, error) {
	if !common.IsHexAddress(req.From) {
		return grant{}, ErrBadSigner
	}
	from := common.HexToAddress(req.From)

	now := s.clock.Now().Unix()
	if req.Deadline < now {
		return grant{}, ErrRequestExpired
	}
	if req.Deadline > now+int64(s.ttl.Seconds()) {
		return grant{}, ErrDeadlineTooFar
	}

	sig, err := hexutil.Decode(req.Signature)
	if err != nil {
		return grant{}, ErrBadSignature
	}
	if err := wallet.Verify(msg, sig, from); err != nil {
		return grant{}, err
	}
	return grant{
		from:     from,
		key:      from.Hex() + ":" + crypto.Keccak256Hash(msg).Hex(),
		deadline: req.Deadline,
	}, nil
}

// replayCache remembers committed requests until their deadline passes.
type replayCache struct {
	mu   sync.Mutex
	seen map[string]int64
}

func newReplayCache() *replayCache {
	return &replayCache{seen: make(map[string]int64)}
}

// used drops expired keys and reports whether key is still recorded.
func (r *replayCache) used(key string, now int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, d := range r.seen {
		if d < now {
			delete(r.seen, k)
		}
	}
	_, ok := r.seen[key]
	return ok
}

// remember records key until deadline.
func (r *replayCache) remember(key string, deadline int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen[key] = deadline
}

func parseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, s)
	}
	return common.HexToAddress(s), nil
}
