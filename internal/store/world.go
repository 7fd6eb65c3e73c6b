// Package store persists everything a local sale needs between CLI runs:
// token ledgers, linked chain tokens, guestlists and the sale itself.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Mohsinsiddi/w3sale/internal/guestlist"
	"github.com/Mohsinsiddi/w3sale/internal/sale"
	"github.com/Mohsinsiddi/w3sale/internal/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// SnapshotVersion is bumped when Snapshot gains fields.
const SnapshotVersion = 1

// Errors.
var (
	ErrNoSale          = errors.New("no sale has been created")
	ErrSaleExists      = errors.New("a sale already exists in this state file")
	ErrUnknownToken    = errors.New("unknown token")
	ErrUnknownList     = errors.New("unknown guestlist")
	ErrNoLinkResolver  = errors.New("linked tokens need a chain resolver")
	ErrTokenRegistered = errors.New("token already registered")
)

// Snapshot is the on-disk form of a World.
type Snapshot struct {
	Version    int                  `json:"version"`
	Nonces     map[string]uint64    `json:"nonces"`
	Tokens     []*token.LedgerState `json:"tokens"`
	Links      []*token.Link        `json:"links,omitempty"`
	Guestlists []*guestlist.State   `json:"guestlists,omitempty"`
	Sale       *sale.State          `json:"sale,omitempty"`
}

// LinkResolver turns a linked chain token into an asset acting as holder.
type LinkResolver func(link *token.Link, holder common.Address) (sale.Asset, error)

// World holds the live objects behind a state file.
type World struct {
	mu sync.Mutex

	path       string
	nonces     map[common.Address]uint64
	ledgers    map[common.Address]*token.Ledger
	links      map[common.Address]*token.Link
	guestlists map[common.Address]*guestlist.VIP
	sale       *sale.Sale

	resolver LinkResolver
	saleOpts []sale.Option
	logger   *zap.Logger
}

// Option configures a World.
type Option func(*World)

// WithLinkResolver enables chain-backed tokens.
func WithLinkResolver(r LinkResolver) Option {
	return func(w *World) { w.resolver = r }
}

// WithSaleOptions are passed to the sale engine when it is built or restored.
func WithSaleOptions(opts ...sale.Option) Option {
	return func(w *World) { w.saleOpts = append(w.saleOpts, opts...) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *World) { w.logger = l }
}

// New returns an empty world that saves to path.
func New(path string, opts ...Option) *World {
	w := &World{
		path:       path,
		nonces:     make(map[common.Address]uint64),
		ledgers:    make(map[common.Address]*token.Ledger),
		links:      make(map[common.Address]*token.Link),
		guestlists: make(map[common.Address]*guestlist.VIP),
		logger:     zap.NewNop(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Open loads the world at path, or returns an empty one when the file does
// not exist yet.
func Open(path string, opts ...Option) (*World, error) {
	w := New(path, opts...)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return w, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing state: %w", err)
	}
	if err := w.restore(&snap); err != nil {
		return nil, err
	}
	w.logger.Debug("state loaded",
		zap.String("path", path),
		zap.Int("tokens", len(w.ledgers)),
		zap.Int("links", len(w.links)),
		zap.Bool("sale", w.sale != nil),
	)
	return w, nil
}

// Reset replaces every live object with the ones described by snap. The
// sale and ledgers are rebuilt, so objects obtained before Reset are stale.
func (w *World) Reset(snap *Snapshot) error {
	fresh := New(w.path, WithLinkResolver(w.resolver), WithSaleOptions(w.saleOpts...), WithLogger(w.logger))
	if err := fresh.restore(snap); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nonces = fresh.nonces
	w.ledgers = fresh.ledgers
	w.links = fresh.links
	w.guestlists = fresh.guestlists
	w.sale = fresh.sale
	return nil
}

// Path returns the state file location.
func (w *World) Path() string { return w.path }

// Save writes the world atomically: a temp file in the same directory is
// renamed over the old state.
func (w *World) Save() error {
	data, err := json.MarshalIndent(w.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("creating temp state: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing state: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("writing state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing state: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return fmt.Errorf("replacing state: %w", err)
	}
	return nil
}

// Snapshot captures the world. Slices are sorted by address.
func (w *World) Snapshot() *Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := &Snapshot{Version: SnapshotVersion, Nonces: make(map[string]uint64, len(w.nonces))}
	for a, n := range w.nonces {
		snap.Nonces[a.Hex()] = n
	}
	for _, a := range sortedKeys(w.ledgers) {
		snap.Tokens = append(snap.Tokens, w.ledgers[a].State())
	}
	for _, a := range sortedKeys(w.links) {
		l := *w.links[a]
		snap.Links = append(snap.Links, &l)
	}
	for _, a := range sortedKeys(w.guestlists) {
		snap.Guestlists = append(snap.Guestlists, w.guestlists[a].State())
	}
	if w.sale != nil {
		snap.Sale = w.sale.Snapshot()
	}
	return snap
}

func (w *World) restore(snap *Snapshot) error {
	if snap.Version > SnapshotVersion {
		return fmt.Errorf("state version %d is newer than %d", snap.Version, SnapshotVersion)
	}
	for hex, n := range snap.Nonces {
		if !common.IsHexAddress(hex) {
			return fmt.Errorf("invalid nonce account %q", hex)
		}
		w.nonces[common.HexToAddress(hex)] = n
	}
	for _, st := range snap.Tokens {
		l, err := token.LoadLedger(st)
		if err != nil {
			return fmt.Errorf("loading token %s: %w", st.Symbol, err)
		}
		w.ledgers[l.Address()] = l
	}
	for _, l := range snap.Links {
		link := *l
		w.links[link.Address] = &link
	}
	for _, st := range snap.Guestlists {
		g, err := guestlist.Load(st)
		if err != nil {
			return err
		}
		w.guestlists[g.Address()] = g
	}
	if snap.Sale == nil {
		return nil
	}

	st := snap.Sale
	s, err := w.buildSale(st.Address, st.Config.TokenIn, st.Config.TokenOut)
	if err != nil {
		return fmt.Errorf("restoring sale: %w", err)
	}
	var g sale.Guestlist
	if st.Config.Guestlist != (common.Address{}) {
		vip, ok := w.guestlists[st.Config.Guestlist]
		if !ok {
			return fmt.Errorf("restoring sale: %w %s", ErrUnknownList, st.Config.Guestlist.Hex())
		}
		g = vip
	}
	if err := s.Restore(st, g); err != nil {
		return fmt.Errorf("restoring sale: %w", err)
	}
	w.sale = s
	return nil
}

// derive returns the next contract-style address for creator.
func (w *World) derive(creator common.Address) common.Address {
	n := w.nonces[creator]
	w.nonces[creator] = n + 1
	return crypto.CreateAddress(creator, n)
}

// ---------------------------------------------------------------------------
// Tokens
// ---------------------------------------------------------------------------

// CreateToken deploys a new in-memory ERC-20 owned by creator.
func (w *World) CreateToken(creator common.Address, name, symbol string, decimals uint8) *token.Ledger {
	w.mu.Lock()
	defer w.mu.Unlock()
	l := token.NewLedger(w.derive(creator), name, symbol, decimals, creator)
	w.ledgers[l.Address()] = l
	w.logger.Info("token created", zap.String("symbol", symbol), zap.Stringer("address", l.Address()))
	return l
}

// Ledger returns a local token by address.
func (w *World) Ledger(addr common.Address) (*token.Ledger, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	l, ok := w.ledgers[addr]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrUnknownToken, addr.Hex())
	}
	return l, nil
}

// LedgerBySymbol finds a local token by symbol, case-sensitive.
func (w *World) LedgerBySymbol(symbol string) (*token.Ledger, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, a := range sortedKeys(w.ledgers) {
		if w.ledgers[a].Symbol() == symbol {
			return w.ledgers[a], nil
		}
	}
	return nil, fmt.Errorf("%w %s", ErrUnknownToken, symbol)
}

// Ledgers lists the local tokens by address.
func (w *World) Ledgers() []*token.Ledger {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*token.Ledger, 0, len(w.ledgers))
	for _, a := range sortedKeys(w.ledgers) {
		out = append(out, w.ledgers[a])
	}
	return out
}

// LinkToken registers a chain-backed ERC-20.
func (w *World) LinkToken(link *token.Link) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.ledgers[link.Address]; ok {
		return fmt.Errorf("%w: %s", ErrTokenRegistered, link.Address.Hex())
	}
	l := *link
	w.links[l.Address] = &l
	return nil
}

// Links lists chain-backed tokens by address.
func (w *World) Links() []*token.Link {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*token.Link, 0, len(w.links))
	for _, a := range sortedKeys(w.links) {
		l := *w.links[a]
		out = append(out, &l)
	}
	return out
}

// Asset returns token addr acting as holder.
func (w *World) Asset(addr, holder common.Address) (sale.Asset, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.asset(addr, holder)
}

func (w *World) asset(addr, holder common.Address) (sale.Asset, error) {
	if l, ok := w.ledgers[addr]; ok {
		return l.As(holder), nil
	}
	if link, ok := w.links[addr]; ok {
		if w.resolver == nil {
			return nil, ErrNoLinkResolver
		}
		return w.resolver(link, holder)
	}
	return nil, fmt.Errorf("%w %s", ErrUnknownToken, addr.Hex())
}

// Decimals reports the decimals of a local or linked token.
func (w *World) Decimals(addr common.Address) (uint8, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if l, ok := w.ledgers[addr]; ok {
		return l.Decimals(), nil
	}
	if link, ok := w.links[addr]; ok {
		return link.Decimals, nil
	}
	return 0, fmt.Errorf("%w %s", ErrUnknownToken, addr.Hex())
}

// Symbol reports the symbol of a local or linked token, or the short hex.
func (w *World) Symbol(addr common.Address) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if l, ok := w.ledgers[addr]; ok {
		return l.Symbol()
	}
	if link, ok := w.links[addr]; ok && link.Symbol != "" {
		return link.Symbol
	}
	return addr.Hex()
}

// ---------------------------------------------------------------------------
// Guestlists
// ---------------------------------------------------------------------------

// CreateGuestlist deploys an empty VIP list owned by owner.
func (w *World) CreateGuestlist(owner common.Address) *guestlist.VIP {
	w.mu.Lock()
	defer w.mu.Unlock()
	g := guestlist.New(w.derive(owner), owner)
	w.guestlists[g.Address()] = g
	return g
}

// Guestlist returns a list by address.
func (w *World) Guestlist(addr common.Address) (*guestlist.VIP, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	g, ok := w.guestlists[addr]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrUnknownList, addr.Hex())
	}
	return g, nil
}

// Guestlists lists every VIP list by address.
func (w *World) Guestlists() []*guestlist.VIP {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*guestlist.VIP, 0, len(w.guestlists))
	for _, a := range sortedKeys(w.guestlists) {
		out = append(out, w.guestlists[a])
	}
	return out
}

// ---------------------------------------------------------------------------
// Sale
// ---------------------------------------------------------------------------

// CreateSale deploys and initializes the sale with creator as owner. A state
// file holds at most one sale.
func (w *World) CreateSale(ctx context.Context, creator, tokenIn, tokenOut common.Address, p sale.Params) (*sale.Sale, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sale != nil {
		return nil, ErrSaleExists
	}

	n := w.nonces[creator]
	addr := crypto.CreateAddress(creator, n)
	s, err := w.buildSale(addr, tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	if err := s.Initialize(ctx, creator, p); err != nil {
		return nil, err
	}
	w.nonces[creator] = n + 1
	w.sale = s
	w.logger.Info("sale created", zap.Stringer("address", addr), zap.Stringer("owner", creator))
	return s, nil
}

// Sale returns the sale, or ErrNoSale.
func (w *World) Sale() (*sale.Sale, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sale == nil {
		return nil, ErrNoSale
	}
	return w.sale, nil
}

// SaleAsset returns token addr acting as the sale, for sweeps.
func (w *World) SaleAsset(addr common.Address) (sale.Asset, error) {
	s, err := w.Sale()
	if err != nil {
		return nil, err
	}
	return w.Asset(addr, s.Address())
}

func (w *World) buildSale(addr, tokenIn, tokenOut common.Address) (*sale.Sale, error) {
	in, err := w.asset(tokenIn, addr)
	if err != nil {
		return nil, fmt.Errorf("token in: %w", err)
	}
	out, err := w.asset(tokenOut, addr)
	if err != nil {
		return nil, fmt.Errorf("token out: %w", err)
	}
	opts := append([]sale.Option{sale.WithLogger(w.logger)}, w.saleOpts...)
	return sale.New(addr, in, out, opts...)
}

func sortedKeys[V any](m map[common.Address]V) []common.Address {
	out := make([]common.Address, 0, len(m))
	for a := range m {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hex() < out[j].Hex() })
	return out
}
