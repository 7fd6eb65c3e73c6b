package sale

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event names as they appear in the journal.
const (
	EventInitialized          = "Initialized"
	EventSale                 = "Sale"
	EventClaim                = "Claim"
	EventFinalized            = "Finalized"
	EventSwept                = "Swept"
	EventSaleStartUpdated     = "SaleStartUpdated"
	EventSaleDurationUpdated  = "SaleDurationUpdated"
	EventTokenOutPriceUpdated = "TokenOutPriceUpdated"
	EventSaleRecipientUpdated = "SaleRecipientUpdated"
	EventGuestlistUpdated     = "GuestlistUpdated"
	EventTokenInLimitUpdated  = "TokenInLimitUpdated"
	EventPaused               = "Paused"
	EventUnpaused             = "Unpaused"
	EventOwnershipTransferred = "OwnershipTransferred"
)

// Event is the payload of a committed state change.
type Event interface {
	EventName() string
}

type Initialized struct {
	Owner  common.Address `json:"owner"`
	Config Config         `json:"config"`
}

// Purchase is emitted for every accepted deposit.
type Purchase struct {
	Buyer       common.Address `json:"buyer"`
	Beneficiary BeneficiaryID  `json:"beneficiary"`
	AmountIn    *big.Int       `json:"amount_in"`
	AmountOut   *big.Int       `json:"amount_out"`
}

type Claimed struct {
	Claimer common.Address `json:"claimer"`
	Amount  *big.Int       `json:"amount"`
}

type Finalized struct {
	TotalTokenOutBought *big.Int `json:"total_token_out_bought"`
}

type Swept struct {
	Token  common.Address `json:"token"`
	Amount *big.Int       `json:"amount"`
}

type SaleStartUpdated struct {
	SaleStart int64 `json:"sale_start"`
}

type SaleDurationUpdated struct {
	SaleDuration int64 `json:"sale_duration"`
}

type TokenOutPriceUpdated struct {
	TokenOutPrice *big.Int `json:"token_out_price"`
}

type SaleRecipientUpdated struct {
	SaleRecipient common.Address `json:"sale_recipient"`
}

type GuestlistUpdated struct {
	Guestlist common.Address `json:"guestlist"`
}

type TokenInLimitUpdated struct {
	TokenInLimit *big.Int `json:"token_in_limit"`
}

type Paused struct {
	Account common.Address `json:"account"`
}

type Unpaused struct {
	Account common.Address `json:"account"`
}

type OwnershipTransferred struct {
	PreviousOwner common.Address `json:"previous_owner"`
	NewOwner      common.Address `json:"new_owner"`
}

func (Initialized) EventName() string          { return EventInitialized }
func (Purchase) EventName() string             { return EventSale }
func (Claimed) EventName() string              { return EventClaim }
func (Finalized) EventName() string            { return EventFinalized }
func (Swept) EventName() string                { return EventSwept }
func (SaleStartUpdated) EventName() string     { return EventSaleStartUpdated }
func (SaleDurationUpdated) EventName() string  { return EventSaleDurationUpdated }
func (TokenOutPriceUpdated) EventName() string { return EventTokenOutPriceUpdated }
func (SaleRecipientUpdated) EventName() string { return EventSaleRecipientUpdated }
func (GuestlistUpdated) EventName() string     { return EventGuestlistUpdated }
func (TokenInLimitUpdated) EventName() string  { return EventTokenInLimitUpdated }
func (Paused) EventName() string               { return EventPaused }
func (Unpaused) EventName() string             { return EventUnpaused }
func (OwnershipTransferred) EventName() string { return EventOwnershipTransferred }

// Record wraps an event with its identity and the time it was committed.
type Record struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Sale    common.Address `json:"sale"`
	At      time.Time      `json:"at"`
	Payload Event          `json:"payload"`
}

func newRecord(saleAddr common.Address, at time.Time, ev Event) Record {
	return Record{
		ID:      uuid.NewString(),
		Name:    ev.EventName(),
		Sale:    saleAddr,
		At:      at.UTC(),
		Payload: ev,
	}
}

// Sink receives events after their state change has been committed.
type Sink interface {
	Emit(rec Record)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Record)

func (f SinkFunc) Emit(rec Record) { f(rec) }

// MultiSink fans each record out to every sink in order.
func MultiSink(sinks ...Sink) Sink {
	return SinkFunc(func(rec Record) {
		for _, s := range sinks {
			if s != nil {
				s.Emit(rec)
			}
		}
	})
}

// LogSink writes every record to a zap logger.
type LogSink struct {
	Logger *zap.Logger
}

func (l LogSink) Emit(rec Record) {
	if l.Logger == nil {
		return
	}
	l.Logger.Info("sale event",
		zap.String("event", rec.Name),
		zap.String("id", rec.ID),
		zap.Stringer("sale", rec.Sale),
		zap.Any("payload", rec.Payload),
	)
}

// Recorder buffers records in memory until they are drained.
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

func (r *Recorder) Emit(rec Record) {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
}

// Records returns a copy of the buffered records.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Drain returns the buffered records and empties the buffer.
func (r *Recorder) Drain() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.records
	r.records = nil
	return out
}

// Names lists the buffered event names, oldest first.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.Name
	}
	return out
}
