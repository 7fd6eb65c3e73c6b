package cmd

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/Mohsinsiddi/w3sale/internal/price"
	"github.com/Mohsinsiddi/w3sale/internal/sale"
	"github.com/Mohsinsiddi/w3sale/internal/token"
	"github.com/Mohsinsiddi/w3sale/internal/ui"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	initTokenIn   string
	initTokenOut  string
	initStart     string
	initDuration  string
	initPrice     string
	initUSDIn     string
	initUSDOut    string
	initCoinGecko string
	initRecipient string
	initGuestlist string
	initLimit     string
	statusJSON    bool
)

var saleCmd = &cobra.Command{
	Use:   "sale",
	Short: "Create, inspect and operate the sale",
}

var saleInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Deploy and initialize the sale, owned by --from",
	Long: `Create the sale. The price is how much token-in one whole token-out
costs, either directly (--price 0.5) or from USD quotes of both tokens
(--price-usd-out 50 --price-usd-in 100 means one token-out is worth half a
token-in).

--price-coingecko usd-coin:my-token does the same with live CoinGecko quotes.

Times accept a unix timestamp, RFC 3339, or an offset from now such as +1h.
Durations accept seconds or Go durations such as 72h.`,
	Example: `  w3sale sale init --from ops --token-in USDC --token-out GOV \
    --start +1h --duration 72h --price 0.25 --recipient treasury --limit 1000000`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()

		owner, err := s.caller()
		if err != nil {
			return err
		}
		tokenIn, err := s.tokenAddress(initTokenIn)
		if err != nil {
			return fmt.Errorf("--token-in: %w", err)
		}
		tokenOut, err := s.tokenAddress(initTokenOut)
		if err != nil {
			return fmt.Errorf("--token-out: %w", err)
		}
		decIn, err := s.world.Decimals(tokenIn)
		if err != nil {
			return err
		}

		p := sale.Params{}
		if p.SaleStart, err = parseTime(initStart, clock().Now()); err != nil {
			return fmt.Errorf("--start: %w", err)
		}
		if p.SaleDuration, err = parseDuration(initDuration); err != nil {
			return fmt.Errorf("--duration: %w", err)
		}
		if p.TokenOutPrice, err = initialPrice(ctx, decIn); err != nil {
			return err
		}
		if p.SaleRecipient, err = s.account(initRecipient); err != nil {
			return fmt.Errorf("--recipient: %w", err)
		}
		if initLimit != "" && initLimit != "unlimited" {
			if p.TokenInLimit, err = token.ParseUnits(initLimit, decIn); err != nil {
				return fmt.Errorf("--limit: %w", err)
			}
		}
		if initGuestlist != "" {
			g, err := s.guestlist(initGuestlist)
			if err != nil {
				return err
			}
			p.Guestlist = g
		}

		sl, err := s.world.CreateSale(ctx, owner, tokenIn, tokenOut, p)
		if err != nil {
			return explain("initialize", err)
		}
		if err := s.commit(ctx); err != nil {
			return err
		}
		fmt.Println(ui.Success("Sale created at " + ui.Addr(sl.Address().Hex())))
		fmt.Println(ui.Hint(fmt.Sprintf("Fund it with: w3sale token transfer %s sale <amount>", s.world.Symbol(tokenOut))))
		return nil
	},
}

var saleStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the sale's configuration, phase and totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()
		sl, err := s.sale()
		if err != nil {
			return err
		}
		st := sl.Status()
		if statusJSON {
			return printJSON(st)
		}
		fmt.Println(ui.SaleStatusBlock(st, s.tokenInfo(st.Config.TokenIn), s.tokenInfo(st.Config.TokenOut)))
		return nil
	},
}

var saleAmountOutCmd = &cobra.Command{
	Use:   "amount-out <amount-in>",
	Short: "Quote the token-out bought for an amount of token-in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()
		sl, err := s.sale()
		if err != nil {
			return err
		}
		cfg := sl.Config()
		in, err := s.amount(cfg.TokenIn, args[0])
		if err != nil {
			return err
		}
		out := sl.AmountOut(in)
		fmt.Printf("%s → %s\n", ui.Val(s.tokenInfo(cfg.TokenIn).Amount(in)), ui.Val(s.tokenInfo(cfg.TokenOut).Amount(out)))
		return nil
	},
}

var saleDepositorCmd = &cobra.Command{
	Use:   "depositor [account]",
	Short: "Show an account's purchase, vote and claim status (default: --from)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()
		sl, err := s.sale()
		if err != nil {
			return err
		}
		var who common.Address
		if len(args) == 1 {
			who, err = s.account(args[0])
		} else {
			who, err = s.caller()
		}
		if err != nil {
			return err
		}
		d := sl.Depositor(who)
		vote := "none"
		if d.VotedFor != nil {
			vote = strconv.Itoa(int(*d.VotedFor))
		}
		claimed := "no"
		if d.HasClaimed {
			claimed = "yes"
		}
		out := s.tokenInfo(sl.Config().TokenOut)
		fmt.Println(ui.KeyValueBlock("Depositor", [][2]string{
			{"Account", s.label(who)},
			{"Bought", out.Amount(d.Bought)},
			{"Beneficiary", vote},
			{"Claimed", claimed},
		}))
		return nil
	},
}

var saleCommitmentsCmd = &cobra.Command{
	Use:   "commitments",
	Short: "List token-out committed per beneficiary",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()
		sl, err := s.sale()
		if err != nil {
			return err
		}
		c := sl.Commitments()
		if len(c) == 0 {
			fmt.Println(ui.Info("No commitments yet."))
			return nil
		}
		fmt.Println(ui.CommitmentsTable(c, s.tokenInfo(sl.Config().TokenOut)))
		return nil
	},
}

// ---------------------------------------------------------------------------
// Operator commands
// ---------------------------------------------------------------------------

var saleSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change the sale configuration (owner only)",
}

var saleSetStartCmd = &cobra.Command{
	Use:   "start <time>",
	Short: "Move the start of the sale window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSaleOp(cmd.Context(), "set start", func(s *session, sl *sale.Sale, caller common.Address) (string, error) {
			start, err := parseTime(args[0], clock().Now())
			if err != nil {
				return "", err
			}
			return "Sale start set", sl.SetSaleStart(caller, start)
		})
	},
}

var saleSetDurationCmd = &cobra.Command{
	Use:   "duration <duration>",
	Short: "Change the length of the sale window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSaleOp(cmd.Context(), "set duration", func(s *session, sl *sale.Sale, caller common.Address) (string, error) {
			d, err := parseDuration(args[0])
			if err != nil {
				return "", err
			}
			return "Sale duration set to " + ui.FormatSeconds(d), sl.SetSaleDuration(caller, d)
		})
	},
}

var saleSetPriceCmd = &cobra.Command{
	Use:   "price <token-in per token-out>",
	Short: "Change the price of future deposits",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSaleOp(cmd.Context(), "set price", func(s *session, sl *sale.Sale, caller common.Address) (string, error) {
			price, err := s.amount(sl.Config().TokenIn, args[0])
			if err != nil {
				return "", err
			}
			return "Price set to " + args[0], sl.SetTokenOutPrice(caller, price)
		})
	},
}

var saleSetRecipientCmd = &cobra.Command{
	Use:   "recipient <account>",
	Short: "Change where deposits are sent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSaleOp(cmd.Context(), "set recipient", func(s *session, sl *sale.Sale, caller common.Address) (string, error) {
			to, err := s.account(args[0])
			if err != nil {
				return "", err
			}
			return "Recipient set to " + s.label(to), sl.SetSaleRecipient(caller, to)
		})
	},
}

var saleSetLimitCmd = &cobra.Command{
	Use:   "limit <amount|unlimited>",
	Short: "Change the token-in cap",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSaleOp(cmd.Context(), "set limit", func(s *session, sl *sale.Sale, caller common.Address) (string, error) {
			limit := math.MaxBig256
			if args[0] != "unlimited" {
				var err error
				if limit, err = s.amount(sl.Config().TokenIn, args[0]); err != nil {
					return "", err
				}
			}
			return "Limit set to " + args[0], sl.SetTokenInLimit(caller, limit)
		})
	},
}

var saleSetGuestlistCmd = &cobra.Command{
	Use:   "guestlist <address|none>",
	Short: "Attach a guestlist, or open the sale to everyone",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSaleOp(cmd.Context(), "set guestlist", func(s *session, sl *sale.Sale, caller common.Address) (string, error) {
			if args[0] == "none" {
				return "Guestlist removed", sl.SetGuestlist(caller, nil)
			}
			g, err := s.guestlist(args[0])
			if err != nil {
				return "", err
			}
			return "Guestlist set to " + ui.Addr(g.Address().Hex()), sl.SetGuestlist(caller, g)
		})
	},
}

var salePauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Stop deposits and claims",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSaleOp(cmd.Context(), "pause", func(s *session, sl *sale.Sale, caller common.Address) (string, error) {
			return "Sale paused", sl.Pause(caller)
		})
	},
}

var saleUnpauseCmd = &cobra.Command{
	Use:   "unpause",
	Short: "Resume deposits and claims",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSaleOp(cmd.Context(), "unpause", func(s *session, sl *sale.Sale, caller common.Address) (string, error) {
			return "Sale unpaused", sl.Unpause(caller)
		})
	},
}

var saleTransferOwnershipCmd = &cobra.Command{
	Use:   "transfer-ownership <account>",
	Short: "Hand the sale to a new owner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSaleOp(cmd.Context(), "transfer ownership", func(s *session, sl *sale.Sale, caller common.Address) (string, error) {
			to, err := s.account(args[0])
			if err != nil {
				return "", err
			}
			if !confirm("Transfer ownership to " + to.Hex() + "?") {
				return "", errCancelled
			}
			return "Ownership transferred to " + s.label(to), sl.TransferOwnership(caller, to)
		})
	},
}

var saleFinalizeCmd = &cobra.Command{
	Use:   "finalize",
	Short: "Close the sale and enable claims",
	Long: `Finalize an ended sale. The sale must hold enough token-out to cover every
purchase; after this, buyers can claim and the configuration is frozen for
buyers.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSaleOp(cmd.Context(), "finalize", func(s *session, sl *sale.Sale, caller common.Address) (string, error) {
			if !confirm("Finalize the sale? This cannot be undone.") {
				return "", errCancelled
			}
			return "Sale finalized; buyers can now claim", sl.Finalize(cmd.Context(), caller)
		})
	},
}

var saleSweepCmd = &cobra.Command{
	Use:   "sweep <token>",
	Short: "Send the sale's whole balance of a token to the owner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSaleOp(cmd.Context(), "sweep", func(s *session, sl *sale.Sale, caller common.Address) (string, error) {
			addr, err := s.tokenAddress(args[0])
			if err != nil {
				return "", err
			}
			asset, err := s.world.SaleAsset(addr)
			if err != nil {
				return "", err
			}
			amount, err := sl.Sweep(cmd.Context(), caller, asset)
			if err != nil {
				return "", err
			}
			return "Swept " + s.tokenInfo(addr).Amount(amount) + " to the owner", nil
		})
	},
}

// runSaleOp runs fn on the sale as --from and commits on success.
func runSaleOp(ctx context.Context, op string, fn func(*session, *sale.Sale, common.Address) (string, error)) error {
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	sl, err := s.sale()
	if err != nil {
		return err
	}
	caller, err := s.caller()
	if err != nil {
		return err
	}
	msg, err := fn(s, sl, caller)
	if err == errCancelled {
		fmt.Println(ui.Meta("Cancelled."))
		return nil
	}
	if err != nil {
		return explain(op, err)
	}
	if err := s.commit(ctx); err != nil {
		return err
	}
	fmt.Println(ui.Success(msg))
	return nil
}

var errCancelled = fmt.Errorf("cancelled")

func initialPrice(ctx context.Context, decIn uint8) (*big.Int, error) {
	switch {
	case initPrice != "":
		p, err := token.ParseUnits(initPrice, decIn)
		if err != nil {
			return nil, fmt.Errorf("--price: %w", err)
		}
		return p, nil
	case initCoinGecko != "":
		in, out, ok := strings.Cut(initCoinGecko, ":")
		if !ok || in == "" || out == "" {
			return nil, fmt.Errorf("--price-coingecko wants <token-in id>:<token-out id>")
		}
		f := price.NewFetcher("usd")
		usdIn, err := f.Quote(ctx, in)
		if err != nil {
			return nil, err
		}
		usdOut, err := f.Quote(ctx, out)
		if err != nil {
			return nil, err
		}
		logger.Info("priced from coingecko", zap.String("token_in", in), zap.Stringer("usd_in", usdIn), zap.String("token_out", out), zap.Stringer("usd_out", usdOut))
		return sale.PriceFromUSD(usdOut, usdIn, decIn)
	case initUSDIn != "" && initUSDOut != "":
		usdOut, ok1 := new(big.Int).SetString(initUSDOut, 10)
		usdIn, ok2 := new(big.Int).SetString(initUSDIn, 10)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("--price-usd-in and --price-usd-out must be integers")
		}
		return sale.PriceFromUSD(usdOut, usdIn, decIn)
	default:
		return nil, fmt.Errorf("set --price, --price-coingecko, or both --price-usd-in and --price-usd-out")
	}
}

// parseTime reads a unix timestamp, an RFC 3339 time, or "+<duration>" from now.
func parseTime(v string, now time.Time) (int64, error) {
	v = strings.TrimSpace(v)
	if v == "" || v == "now" {
		return now.Unix(), nil
	}
	if strings.HasPrefix(v, "+") {
		d, err := time.ParseDuration(v[1:])
		if err != nil {
			return 0, err
		}
		return now.Add(d).Unix(), nil
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", v)
	}
	return t.Unix(), nil
}

// parseDuration reads whole seconds or a Go duration.
func parseDuration(v string) (int64, error) {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return int64(d / time.Second), nil
}

func init() {
	f := saleInitCmd.Flags()
	f.StringVar(&initTokenIn, "token-in", "", "deposit token (symbol or address)")
	f.StringVar(&initTokenOut, "token-out", "", "token being sold (symbol or address)")
	f.StringVar(&initStart, "start", "now", "sale start")
	f.StringVar(&initDuration, "duration", "", "sale length")
	f.StringVar(&initPrice, "price", "", "token-in per whole token-out")
	f.StringVar(&initUSDIn, "price-usd-in", "", "USD quote of token-in")
	f.StringVar(&initUSDOut, "price-usd-out", "", "USD quote of token-out")
	f.StringVar(&initCoinGecko, "price-coingecko", "", "derive the price from CoinGecko USD quotes: <token-in id>:<token-out id>")
	f.StringVar(&initRecipient, "recipient", "", "account receiving deposits")
	f.StringVar(&initGuestlist, "guestlist", "", "guestlist address (default: open sale)")
	f.StringVar(&initLimit, "limit", "unlimited", "token-in cap")
	for _, name := range []string{"token-in", "token-out", "duration", "recipient"} {
		saleInitCmd.MarkFlagRequired(name) //nolint:errcheck
	}
	saleInitCmd.MarkFlagsMutuallyExclusive("price", "price-usd-in", "price-coingecko")
	saleInitCmd.MarkFlagsRequiredTogether("price-usd-in", "price-usd-out")

	saleStatusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the status as JSON")

	saleSetCmd.AddCommand(saleSetStartCmd, saleSetDurationCmd, saleSetPriceCmd, saleSetRecipientCmd, saleSetLimitCmd, saleSetGuestlistCmd)
	saleCmd.AddCommand(
		saleInitCmd,
		saleStatusCmd,
		saleAmountOutCmd,
		saleDepositorCmd,
		saleCommitmentsCmd,
		saleSetCmd,
		salePauseCmd,
		saleUnpauseCmd,
		saleTransferOwnershipCmd,
		saleFinalizeCmd,
		saleSweepCmd,
	)
}
