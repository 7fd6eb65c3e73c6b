package cmd

import (
	"context"
	"fmt"
	"math/big"

	"github.com/Mohsinsiddi/w3sale/internal/chain"
	"github.com/Mohsinsiddi/w3sale/internal/token"
	"github.com/Mohsinsiddi/w3sale/internal/ui"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var (
	tokenDecimalsFlag uint8
	tokenNameFlag     string
	linkNetworkFlag   string
	linkRPCFlag       string
	linkCustodianFlag string
	linkDecimalsFlag  int
	linkSymbolFlag    string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Create and move local ERC-20 tokens",
	Long: `Local tokens are in-memory ERC-20 ledgers kept in the state file. Tokens
are referred to by symbol or address; accounts by wallet name, hex address,
or the word "sale" for the sale's own account.`,
}

var tokenCreateCmd = &cobra.Command{
	Use:   "create <symbol>",
	Short: "Deploy a local ERC-20 owned by --from",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()

		creator, err := s.caller()
		if err != nil {
			return err
		}
		symbol := args[0]
		if _, err := s.world.LedgerBySymbol(symbol); err == nil {
			return fmt.Errorf("a token with symbol %q already exists", symbol)
		}
		name := tokenNameFlag
		if name == "" {
			name = symbol
		}
		l := s.world.CreateToken(creator, name, symbol, tokenDecimalsFlag)
		if err := s.commit(ctx); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Token %s created at %s", ui.Symbol(symbol), ui.Addr(l.Address().Hex()))))
		fmt.Println(ui.Hint(fmt.Sprintf("Mint with: w3sale token mint %s <to> <amount>", symbol)))
		return nil
	},
}

var tokenMintCmd = &cobra.Command{
	Use:   "mint <token> <to> <amount>",
	Short: "Mint tokens (token owner only)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(cmd.Context(), args[0], func(s *session, l *token.Ledger, caller common.Address) (string, error) {
			to, err := s.target(args[1])
			if err != nil {
				return "", err
			}
			amt, err := token.ParseUnits(args[2], l.Decimals())
			if err != nil {
				return "", err
			}
			if err := l.Mint(caller, to, amt); err != nil {
				return "", err
			}
			return fmt.Sprintf("Minted %s %s to %s", args[2], l.Symbol(), s.label(to)), nil
		})
	},
}

var tokenApproveCmd = &cobra.Command{
	Use:   "approve <token> <spender> <amount>",
	Short: "Allow spender to move --from's tokens",
	Example: `  # let the sale pull 100 USDC from alice
  w3sale token approve USDC sale 100 --from alice`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(cmd.Context(), args[0], func(s *session, l *token.Ledger, caller common.Address) (string, error) {
			spender, err := s.target(args[1])
			if err != nil {
				return "", err
			}
			amt, err := parseAllowance(args[2], l.Decimals())
			if err != nil {
				return "", err
			}
			if err := l.Approve(caller, spender, amt); err != nil {
				return "", err
			}
			return fmt.Sprintf("Approved %s for %s %s", s.label(spender), args[2], l.Symbol()), nil
		})
	},
}

var tokenTransferCmd = &cobra.Command{
	Use:   "transfer <token> <to> <amount>",
	Short: "Transfer tokens from --from",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(cmd.Context(), args[0], func(s *session, l *token.Ledger, caller common.Address) (string, error) {
			to, err := s.target(args[1])
			if err != nil {
				return "", err
			}
			amt, err := token.ParseUnits(args[2], l.Decimals())
			if err != nil {
				return "", err
			}
			if err := l.Transfer(caller, to, amt); err != nil {
				return "", err
			}
			return fmt.Sprintf("Sent %s %s to %s", args[2], l.Symbol(), s.label(to)), nil
		})
	},
}

var tokenBalanceCmd = &cobra.Command{
	Use:   "balance <token> [account]",
	Short: "Show a balance (default: --from)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()

		tokenAddr, err := s.tokenAddress(args[0])
		if err != nil {
			return err
		}
		var who common.Address
		if len(args) == 2 {
			who, err = s.target(args[1])
		} else {
			who, err = s.caller()
		}
		if err != nil {
			return err
		}
		asset, err := s.world.Asset(tokenAddr, who)
		if err != nil {
			return err
		}
		bal, err := asset.BalanceOf(ctx, who)
		if err != nil {
			return err
		}
		info := s.tokenInfo(tokenAddr)
		fmt.Printf("%s  %s\n", s.label(who), ui.Val(info.Amount(bal)))
		return nil
	},
}

var tokenListCmd = &cobra.Command{
	Use:   "list",
	Short: "List local and linked tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()

		t := ui.NewTable([]ui.Column{
			{Title: "Symbol", Width: 10},
			{Title: "Address", Width: 44},
			{Title: "Dec", Width: 4},
			{Title: "Supply / Network", Width: 28},
		})
		ledgers := s.world.Ledgers()
		links := s.world.Links()
		for _, l := range ledgers {
			t.AddRow(ui.Row{l.Symbol(), l.Address().Hex(), fmt.Sprint(l.Decimals()), token.FormatUnits(l.TotalSupply(), l.Decimals())})
		}
		for _, l := range links {
			t.AddRow(ui.Row{l.Symbol, l.Address.Hex(), fmt.Sprint(l.Decimals), l.Network + " (linked)"})
		}
		if len(ledgers)+len(links) == 0 {
			fmt.Println(ui.Info("No tokens yet."))
			fmt.Println(ui.Hint("Create one with: w3sale token create USDC --decimals 6 --from alice"))
			return nil
		}
		fmt.Println(t.Render())
		return nil
	},
}

var tokenLinkCmd = &cobra.Command{
	Use:   "link <address>",
	Short: "Register an ERC-20 contract on an EVM network",
	Long: `Link an on-chain ERC-20 so a sale can use it. The custodian wallet's key
signs every transfer the sale makes on that token, so it must hold the
sale's balance and the buyers' allowances.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if !common.IsHexAddress(args[0]) {
			return fmt.Errorf("invalid token address %q", args[0])
		}
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()

		if _, err := s.wallets.Signer(linkCustodianFlag); err != nil {
			return fmt.Errorf("custodian: %w", err)
		}
		net, err := chain.NewRegistry(cfg.CustomRPCs).GetByName(linkNetworkFlag)
		if err != nil {
			return err
		}
		url := linkRPCFlag
		if url == "" {
			if url, err = pickRPC(ctx, net); err != nil {
				return err
			}
		}

		link := &token.Link{
			Address:   common.HexToAddress(args[0]),
			Network:   net.Name,
			RPC:       linkRPCFlag,
			ChainID:   net.ChainID,
			Symbol:    linkSymbolFlag,
			Custodian: linkCustodianFlag,
		}
		erc20 := token.NewERC20(chain.NewEVMClient(url), link.Address, nil, big.NewInt(net.ChainID))
		if linkDecimalsFlag >= 0 {
			link.Decimals = uint8(linkDecimalsFlag)
		} else if link.Decimals, err = erc20.Decimals(ctx); err != nil {
			return fmt.Errorf("reading decimals: %w", err)
		}
		if link.Symbol == "" {
			if link.Symbol, err = erc20.Symbol(ctx); err != nil {
				return fmt.Errorf("reading symbol: %w", err)
			}
		}

		if err := s.world.LinkToken(link); err != nil {
			return err
		}
		if err := s.commit(ctx); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Linked %s on %s: %s", ui.Symbol(link.Symbol), net.DisplayName, ui.Addr(link.Address.Hex()))))
		return nil
	},
}

// withLedger runs a write against a local token as --from and commits.
func withLedger(ctx context.Context, ref string, fn func(*session, *token.Ledger, common.Address) (string, error)) error {
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	addr, err := s.tokenAddress(ref)
	if err != nil {
		return err
	}
	l, err := s.world.Ledger(addr)
	if err != nil {
		return fmt.Errorf("%w (linked tokens are moved on chain)", err)
	}
	caller, err := s.caller()
	if err != nil {
		return err
	}
	msg, err := fn(s, l, caller)
	if err != nil {
		return err
	}
	if err := s.commit(ctx); err != nil {
		return err
	}
	fmt.Println(ui.Success(msg))
	return nil
}

// target is account() plus the "sale" keyword.
func (s *session) target(ref string) (common.Address, error) {
	if ref == "sale" {
		sl, err := s.sale()
		if err != nil {
			return common.Address{}, err
		}
		return sl.Address(), nil
	}
	return s.account(ref)
}

// parseAllowance accepts "max" for an unlimited approval.
func parseAllowance(v string, decimals uint8) (*big.Int, error) {
	if v == "max" {
		return new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1)), nil
	}
	return token.ParseUnits(v, decimals)
}

func init() {
	tokenCreateCmd.Flags().Uint8Var(&tokenDecimalsFlag, "decimals", 18, "token decimals")
	tokenCreateCmd.Flags().StringVar(&tokenNameFlag, "name", "", "token name (default: the symbol)")

	tokenLinkCmd.Flags().StringVar(&linkNetworkFlag, "network", "localhost", "network name (see: w3sale network list)")
	tokenLinkCmd.Flags().StringVar(&linkRPCFlag, "rpc", "", "RPC URL (default: the network's first RPC)")
	tokenLinkCmd.Flags().StringVar(&linkCustodianFlag, "custodian", "", "signing wallet that acts for the sale")
	tokenLinkCmd.Flags().IntVar(&linkDecimalsFlag, "decimals", -1, "token decimals (default: read from chain)")
	tokenLinkCmd.Flags().StringVar(&linkSymbolFlag, "symbol", "", "token symbol (default: read from chain)")
	tokenLinkCmd.MarkFlagRequired("custodian") //nolint:errcheck

	tokenCmd.AddCommand(tokenCreateCmd, tokenMintCmd, tokenApproveCmd, tokenTransferCmd, tokenBalanceCmd, tokenListCmd, tokenLinkCmd)
}
