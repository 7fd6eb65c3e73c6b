package chain

import (
	"errors"
	"sort"
	"strings"
)

// ErrNetworkNotFound is returned when a network is not in the registry.
var ErrNetworkNotFound = errors.New("network not found")

// Network holds what a sale needs to reach an ERC-20 on an EVM chain.
type Network struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	ChainID     int64    `json:"chain_id"`
	RPCs        []string `json:"rpcs"`
	Explorer    string   `json:"explorer,omitempty"`
}

// Registry is the network registry.
type Registry struct {
	networks []Network
	byName   map[string]*Network
	byID     map[int64]*Network
}

// NewRegistry returns the built-in networks. custom adds RPC URLs per
// network name; unknown names become new entries without a chain ID.
func NewRegistry(custom map[string][]string) *Registry {
	networks := builtinNetworks()
	r := &Registry{
		byName: make(map[string]*Network, len(networks)),
		byID:   make(map[int64]*Network, len(networks)),
	}
	r.networks = networks
	r.index()

	names := make([]string, 0, len(custom))
	for name := range custom {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		key := strings.ToLower(name)
		if n, ok := r.byName[key]; ok {
			n.RPCs = append(append([]string{}, custom[name]...), n.RPCs...)
			continue
		}
		r.networks = append(r.networks, Network{Name: key, DisplayName: name, RPCs: custom[name]})
		r.index()
	}
	return r
}

func (r *Registry) index() {
	for i := range r.networks {
		n := &r.networks[i]
		r.byName[n.Name] = n
		if n.ChainID != 0 {
			r.byID[n.ChainID] = n
		}
	}
}

// All returns every network in the registry.
func (r *Registry) All() []Network {
	return r.networks
}

// GetByName finds a network by its slug name (e.g. "base", "sepolia").
func (r *Registry) GetByName(name string) (*Network, error) {
	n, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return nil, ErrNetworkNotFound
	}
	return n, nil
}

// GetByChainID finds a network by its numeric chain ID.
func (r *Registry) GetByChainID(id int64) (*Network, error) {
	n, ok := r.byID[id]
	if !ok {
		return nil, ErrNetworkNotFound
	}
	return n, nil
}

// RPC returns the preferred RPC URL.
func (n *Network) RPC() (string, error) {
	if len(n.RPCs) == 0 {
		return "", errors.New("no RPC configured for " + n.Name)
	}
	return n.RPCs[0], nil
}

// --- network data ---

func builtinNetworks() []Network {
	return []Network{
		{
			Name: "ethereum", DisplayName: "Ethereum", ChainID: 1,
			RPCs:     []string{"https://eth.llamarpc.com", "https://ethereum-rpc.publicnode.com"},
			Explorer: "https://etherscan.io",
		},
		{
			Name: "sepolia", DisplayName: "Sepolia", ChainID: 11155111,
			RPCs:     []string{"https://rpc.sepolia.org", "https://sepolia.gateway.tenderly.co"},
			Explorer: "https://sepolia.etherscan.io",
		},
		{
			Name: "base", DisplayName: "Base", ChainID: 8453,
			RPCs:     []string{"https://mainnet.base.org", "https://base.llamarpc.com"},
			Explorer: "https://basescan.org",
		},
		{
			Name: "polygon", DisplayName: "Polygon", ChainID: 137,
			RPCs:     []string{"https://polygon-bor-rpc.publicnode.com", "https://polygon-pokt.nodies.app"},
			Explorer: "https://polygonscan.com",
		},
		{
			Name: "arbitrum", DisplayName: "Arbitrum", ChainID: 42161,
			RPCs:     []string{"https://arb1.arbitrum.io/rpc", "https://arbitrum.llamarpc.com"},
			Explorer: "https://arbiscan.io",
		},
		{
			Name: "optimism", DisplayName: "Optimism", ChainID: 10,
			RPCs:     []string{"https://mainnet.optimism.io", "https://optimism.llamarpc.com"},
			Explorer: "https://optimistic.etherscan.io",
		},
		{
			Name: "bnb", DisplayName: "BNB Chain", ChainID: 56,
			RPCs:     []string{"https://bsc-dataseed.binance.org", "https://bsc-rpc.publicnode.com"},
			Explorer: "https://bscscan.com",
		},
		{
			Name: "localhost", DisplayName: "Local node", ChainID: 31337,
			RPCs: []string{"http://127.0.0.1:8545"},
		},
	}
}
