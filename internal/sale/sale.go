// Package sale implements a fixed-price token sale: deposits of token-in are
// accepted during a time window, converted into token-out entitlements at the
// configured price, and claimed once the operator has finalized the sale.
package sale

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"go.uber.org/zap"
)

// Sale is the sale engine. All methods are safe for concurrent use; every
// operation runs under a single lock and either commits fully or not at all.
type Sale struct {
	mu sync.Mutex

	address   common.Address
	tokenIn   Asset
	tokenOut  Asset
	guestlist Guestlist
	clock     Clock
	sink      Sink
	logger    *zap.Logger

	initialized bool
	owner       common.Address
	paused      bool
	finalized   bool
	cfg         Config
	totals      Totals
	depositors  map[common.Address]*Depositor
	commitments map[BeneficiaryID]*big.Int
}

// Option configures a Sale.
type Option func(*Sale)

// WithClock overrides the wall clock.
func WithClock(c Clock) Option {
	return func(s *Sale) { s.clock = c }
}

// WithSink registers where committed events are delivered.
func WithSink(sink Sink) Option {
	return func(s *Sale) { s.sink = sink }
}

// WithLogger sets the logger used for rejected operations.
func WithLogger(l *zap.Logger) Option {
	return func(s *Sale) { s.logger = l }
}

// New returns an uninitialized sale living at address and trading tokenIn for tokenOut.
func New(address common.Address, tokenIn, tokenOut Asset, opts ...Option) (*Sale, error) {
	if tokenIn == nil || tokenOut == nil {
		return nil, ErrMissingAsset
	}
	if tokenIn.Address() == tokenOut.Address() {
		return nil, ErrSameAsset
	}
	s := &Sale{
		address:     address,
		tokenIn:     tokenIn,
		tokenOut:    tokenOut,
		clock:       SystemClock,
		logger:      zap.NewNop(),
		totals:      zeroTotals(),
		depositors:  make(map[common.Address]*Depositor),
		commitments: make(map[BeneficiaryID]*big.Int),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Address returns the sale's own account.
func (s *Sale) Address() common.Address { return s.address }

// TokenIn returns the deposit asset.
func (s *Sale) TokenIn() Asset { return s.tokenIn }

// TokenOut returns the asset being sold.
func (s *Sale) TokenOut() Asset { return s.tokenOut }

// Initialize sets the configuration once and makes caller the owner.
func (s *Sale) Initialize(ctx context.Context, caller common.Address, p Params) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return s.reject("initialize", caller, ErrAlreadyInitialized)
	}
	if err := validatePrice(p.TokenOutPrice); err != nil {
		return s.reject("initialize", caller, err)
	}
	if p.SaleDuration <= 0 {
		return s.reject("initialize", caller, ErrZeroDuration)
	}
	if p.SaleRecipient == (common.Address{}) {
		return s.reject("initialize", caller, ErrZeroRecipient)
	}
	limit := p.TokenInLimit
	if limit == nil {
		limit = math.MaxBig256
	}
	if limit.Sign() < 0 {
		return s.reject("initialize", caller, ErrNegativeLimit)
	}

	decimals, err := s.tokenOut.Decimals(ctx)
	if err != nil {
		return fmt.Errorf("reading token out decimals: %w", err)
	}

	cfg := Config{
		TokenIn:          s.tokenIn.Address(),
		TokenOut:         s.tokenOut.Address(),
		TokenOutDecimals: decimals,
		SaleStart:        p.SaleStart,
		SaleDuration:     p.SaleDuration,
		TokenOutPrice:    new(big.Int).Set(p.TokenOutPrice),
		SaleRecipient:    p.SaleRecipient,
		Guestlist:        guestlistAddress(p.Guestlist),
		TokenInLimit:     new(big.Int).Set(limit),
	}

	s.initialized = true
	s.owner = caller
	s.cfg = cfg
	s.guestlist = p.Guestlist

	s.emit(OwnershipTransferred{NewOwner: caller})
	s.emit(Initialized{Owner: caller, Config: cfg.clone()})
	return nil
}

// ---------------------------------------------------------------------------
// Read surface
// ---------------------------------------------------------------------------

// Initialized reports whether Initialize has succeeded.
func (s *Sale) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

func (s *Sale) Owner() common.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

func (s *Sale) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *Sale) Finalized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalized
}

// Config returns a copy of the current configuration.
func (s *Sale) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.clone()
}

// Totals returns a copy of the aggregate counters.
func (s *Sale) Totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals.clone()
}

// Depositor returns the record for addr. Unknown addresses get a zero record.
func (s *Sale) Depositor(addr common.Address) Depositor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.depositors[addr]; ok {
		return *d.clone()
	}
	return Depositor{Bought: new(big.Int)}
}

// Commitment returns the token-out committed to a beneficiary.
func (s *Sale) Commitment(id BeneficiaryID) *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneInt(s.commitments[id])
}

// Commitments returns every non-empty beneficiary commitment.
func (s *Sale) Commitments() map[BeneficiaryID]*big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[BeneficiaryID]*big.Int, len(s.commitments))
	for id, v := range s.commitments {
		out[id] = cloneInt(v)
	}
	return out
}

// Depositors returns the addresses that have deposited, in no particular order.
func (s *Sale) Depositors() []common.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]common.Address, 0, len(s.depositors))
	for addr := range s.depositors {
		out = append(out, addr)
	}
	return out
}

// Guestlist returns the active guestlist, or nil when the sale is open.
func (s *Sale) Guestlist() Guestlist {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guestlist
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func (s *Sale) now() int64 { return s.clock.Now().Unix() }

func (s *Sale) emit(ev Event) {
	if s.sink == nil {
		return
	}
	s.sink.Emit(newRecord(s.address, s.clock.Now(), ev))
}

// reject logs a refused operation and hands the error back unchanged.
func (s *Sale) reject(op string, caller common.Address, err error) error {
	s.logger.Warn("sale operation rejected",
		zap.String("op", op),
		zap.Stringer("caller", caller),
		zap.String("kind", string(KindOf(err))),
		zap.Error(err),
	)
	return err
}

func (s *Sale) requireInitialized() error {
	if !s.initialized {
		return ErrNotInitialized
	}
	return nil
}

func (s *Sale) requireOwner(caller common.Address) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	if caller != s.owner {
		return ErrNotOwner
	}
	return nil
}

func guestlistAddress(g Guestlist) common.Address {
	if g == nil {
		return common.Address{}
	}
	return g.Address()
}

func validatePrice(p *big.Int) error {
	if p == nil || p.Sign() <= 0 {
		return ErrZeroPrice
	}
	return nil
}
