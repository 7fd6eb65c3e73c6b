package cmd

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
	"github.com/Mohsinsiddi/w3sale/internal/config"
	"github.com/Mohsinsiddi/w3sale/internal/ens"
	"github.com/Mohsinsiddi/w3sale/internal/journal"
	"github.com/Mohsinsiddi/w3sale/internal/rpc"
	"github.com/Mohsinsiddi/w3sale/internal/sale"
	"github.com/Mohsinsiddi/w3sale/internal/store"
	"github.com/Mohsinsiddi/w3sale/internal/token"
	"github.com/Mohsinsiddi/w3sale/internal/ui"
	"github.com/Mohsinsiddi/w3sale/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const (
	ensNetwork = "ethereum"
	ensTimeout = 15 * time.Second
)

// session is one CLI invocation over the state file: load, run one
// operation, then commit the state and its events together.
type session struct {
	wallets *wallet.Manager
	world   *store.World
	events  *sale.Recorder
	journal *journal.Journal
}

func openSession(ctx context.Context) (*session, error) {
	s := &session{
		wallets: newWalletManager(),
		events:  &sale.Recorder{},
	}
	world, err := store.Open(cfg.StatePath(),
		store.WithLogger(logger),
		store.WithLinkResolver(s.resolveLink),
		store.WithSaleOptions(
			sale.WithClock(clock()),
			sale.WithSink(sale.MultiSink(s.events, sale.LogSink{Logger: logger})),
		),
	)
	if err != nil {
		return nil, err
	}
	s.world = world

	j, err := journal.Open(ctx, cfg.JournalPath())
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	s.journal = j
	return s, nil
}

func (s *session) close() {
	if s.journal != nil {
		s.journal.Close() //nolint:errcheck
	}
}

// commit saves the state file and journals the events emitted since open.
func (s *session) commit(ctx context.Context) error {
	if err := s.world.Save(); err != nil {
		return err
	}
	records := s.events.Drain()
	if err := s.journal.Append(ctx, records); err != nil {
		return fmt.Errorf("journaling %d event(s): %w", len(records), err)
	}
	logger.Debug("committed", zap.String("state", s.world.Path()), zap.Int("events", len(records)))
	return nil
}

// caller resolves --from, falling back to the default wallet.
func (s *session) caller() (common.Address, error) {
	name := fromFlag
	if name == "" {
		name = cfg.DefaultWallet
	}
	return s.account(name)
}

// account resolves a wallet name or hex address.
func (s *session) account(nameOrAddr string) (common.Address, error) {
	addr, err := s.wallets.Resolve(nameOrAddr)
	if err != nil && ens.IsName(nameOrAddr) {
		return resolveENS(nameOrAddr)
	}
	if err != nil {
		if nameOrAddr == "" {
			return common.Address{}, fmt.Errorf("%w\n  Pass --from <wallet|0x…> or set one with: w3sale wallet use <name>", err)
		}
		return common.Address{}, err
	}
	return addr, nil
}

// resolveENS looks a name up on mainnet through the configured RPCs.
func resolveENS(name string) (common.Address, error) {
	net, err := chain.NewRegistry(cfg.CustomRPCs).GetByName(ensNetwork)
	if err != nil {
		return common.Address{}, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), ensTimeout)
	defer cancel()
	url, err := pickRPC(ctx, net)
	if err != nil {
		return common.Address{}, err
	}
	addr, err := ens.Resolve(ctx, chain.NewEVMClient(url), name)
	if err != nil {
		return common.Address{}, err
	}
	logger.Debug("ens resolved", zap.String("name", name), zap.Stringer("address", addr))
	return addr, nil
}

// label renders an address with its wallet name when it has one.
func (s *session) label(addr common.Address) string {
	if name := s.wallets.NameOf(addr); name != "" {
		return ui.Addr(addr.Hex()) + " " + ui.Meta("("+name+")")
	}
	return ui.Addr(addr.Hex())
}

// tokenAddress accepts a hex address or the symbol of a local token.
func (s *session) tokenAddress(ref string) (common.Address, error) {
	if common.IsHexAddress(ref) {
		return common.HexToAddress(ref), nil
	}
	l, err := s.world.LedgerBySymbol(ref)
	if err != nil {
		for _, link := range s.world.Links() {
			if strings.EqualFold(link.Symbol, ref) {
				return link.Address, nil
			}
		}
		return common.Address{}, err
	}
	return l.Address(), nil
}

func (s *session) tokenInfo(addr common.Address) ui.TokenInfo {
	dec, _ := s.world.Decimals(addr)
	return ui.TokenInfo{Address: addr, Symbol: s.world.Symbol(addr), Decimals: dec}
}

// amount parses a human amount such as "1.5" in the units of token addr.
func (s *session) amount(addr common.Address, v string) (*big.Int, error) {
	dec, err := s.world.Decimals(addr)
	if err != nil {
		return nil, err
	}
	return token.ParseUnits(v, dec)
}

func (s *session) sale() (*sale.Sale, error) {
	sl, err := s.world.Sale()
	if errors.Is(err, store.ErrNoSale) {
		return nil, fmt.Errorf("%w\n  Create one with: w3sale sale init", err)
	}
	return sl, err
}

// resolveLink binds a chain-backed token to the custodian wallet's key. The
// custodian stands in for whichever local account acts on the token.
func (s *session) resolveLink(link *token.Link, _ common.Address) (sale.Asset, error) {
	url := link.RPC
	if url == "" {
		net, err := chain.NewRegistry(cfg.CustomRPCs).GetByName(link.Network)
		if err != nil {
			return nil, err
		}
		if url, err = pickRPC(context.Background(), net); err != nil {
			return nil, err
		}
	}
	signer, err := s.wallets.Signer(link.Custodian)
	if err != nil {
		return nil, fmt.Errorf("custodian of %s: %w", link.Symbol, err)
	}
	client := chain.NewEVMClient(url)
	return token.NewERC20(client, link.Address, signer, big.NewInt(link.ChainID)).
		WithConfirmTimeout(config.TxConfirmTimeout), nil
}

// pickRPC chooses one of the network's endpoints with the configured strategy.
func pickRPC(ctx context.Context, net *chain.Network) (string, error) {
	strategy, err := rpc.ParseStrategy(cfg.RPCStrategy)
	if err != nil {
		return "", err
	}
	url, err := rpc.Select(ctx, net.RPCs, strategy, rpc.DefaultProbeTimeout)
	if err != nil {
		return "", fmt.Errorf("%s: %w", net.Name, err)
	}
	logger.Debug("rpc selected", zap.String("network", net.Name), zap.String("url", url), zap.String("strategy", string(strategy)))
	return url, nil
}

func clock() sale.Clock {
	if nowFlag > 0 {
		return sale.FixedClock(nowFlag)
	}
	return sale.SystemClock
}

// newWalletManager creates a Manager backed by the config-dir JSON store.
// The keychain is opened on first use so read-only commands never prompt.
func newWalletManager() *wallet.Manager {
	return wallet.NewManager(
		wallet.WithStore(wallet.NewJSONStore(cfg.WalletsPath())),
		wallet.WithKeystore(&lazyKeystore{dir: cfg.Dir()}),
	)
}

type lazyKeystore struct {
	dir  string
	once sync.Once
	ks   *wallet.Keystore
}

func (l *lazyKeystore) get() *wallet.Keystore {
	l.once.Do(func() { l.ks = wallet.DefaultKeystore(l.dir) })
	return l.ks
}

func (l *lazyKeystore) Store(name, hexKey string) (string, error) { return l.get().Store(name, hexKey) }
func (l *lazyKeystore) Retrieve(ref string) (string, error)        { return l.get().Retrieve(ref) }
func (l *lazyKeystore) Delete(ref string) error                    { return l.get().Delete(ref) }

// confirm asks before an irreversible step unless --yes was given.
func confirm(prompt string) bool {
	if assumeYes {
		return true
	}
	return ui.ConfirmDanger(rootCmd.InOrStdin(), rootCmd.OutOrStdout(), prompt)
}

// explain turns sale rejections into one readable line.
func explain(op string, err error) error {
	var se *sale.Error
	if errors.As(err, &se) {
		return fmt.Errorf("%s rejected (%s): %s", op, se.Kind, se.Reason)
	}
	return fmt.Errorf("%s: %w", op, err)
}
