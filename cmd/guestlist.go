package cmd

import (
	"fmt"
	"strings"

	"github.com/Mohsinsiddi/w3sale/internal/guestlist"
	"github.com/Mohsinsiddi/w3sale/internal/ui"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var (
	rootClearFlag bool
	proofForFlag  string
	checkProof    []string
)

var guestlistCmd = &cobra.Command{
	Use:     "guestlist",
	Aliases: []string{"gl"},
	Short:   "Manage VIP guestlists",
	Long: `A guestlist admits invited guests unconditionally. Everyone else is
admitted freely while the merkle root is empty, or with a merkle proof of
their address once a root is set.

Lists are referred to by address, or as "sale" for the sale's current list.`,
}

var guestlistCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Deploy an empty guestlist owned by --from",
	Args:  cobra.NoArgs,
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
		g := s.world.CreateGuestlist(owner)
		if err := s.commit(ctx); err != nil {
			return err
		}
		fmt.Println(ui.Success("Guestlist created at " + ui.Addr(g.Address().Hex())))
		fmt.Println(ui.Hint("Attach it with: w3sale sale set guestlist " + g.Address().Hex()))
		return nil
	},
}

func guestSetter(invite bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()

		g, err := s.guestlist(args[0])
		if err != nil {
			return err
		}
		caller, err := s.caller()
		if err != nil {
			return err
		}
		guests := make([]common.Address, 0, len(args)-1)
		flags := make([]bool, 0, len(args)-1)
		for _, ref := range args[1:] {
			addr, err := s.account(ref)
			if err != nil {
				return err
			}
			guests = append(guests, addr)
			flags = append(flags, invite)
		}
		if err := g.SetGuests(caller, guests, flags); err != nil {
			return err
		}
		if err := s.commit(ctx); err != nil {
			return err
		}
		verb := "Invited"
		if !invite {
			verb = "Uninvited"
		}
		fmt.Println(ui.Success(fmt.Sprintf("%s %d guest(s)", verb, len(guests))))
		return nil
	}
}

var guestlistAddCmd = &cobra.Command{
	Use:   "add <list> <account>...",
	Short: "Invite accounts",
	Args:  cobra.MinimumNArgs(2),
	RunE:  guestSetter(true),
}

var guestlistRemoveCmd = &cobra.Command{
	Use:   "remove <list> <account>...",
	Short: "Uninvite accounts",
	Args:  cobra.MinimumNArgs(2),
	RunE:  guestSetter(false),
}

var guestlistRootCmd = &cobra.Command{
	Use:   "root <list> [account]...",
	Short: "Set the merkle root from a set of accounts",
	Long: `Build a merkle tree over the given accounts and make its root the list's
root. Those accounts can then buy with a proof from 'guestlist proof'. With
--clear the root is removed and the list admits everybody again.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()

		g, err := s.guestlist(args[0])
		if err != nil {
			return err
		}
		caller, err := s.caller()
		if err != nil {
			return err
		}
		var root common.Hash
		if !rootClearFlag {
			if len(args) < 2 {
				return fmt.Errorf("give the accounts to build the tree from, or --clear")
			}
			members, err := s.accounts(args[1:])
			if err != nil {
				return err
			}
			root = guestlist.NewTree(members).Root()
		}
		if err := g.SetGuestRoot(caller, root); err != nil {
			return err
		}
		if err := s.commit(ctx); err != nil {
			return err
		}
		fmt.Println(ui.Success("Guest root set to " + ui.Addr(root.Hex())))
		return nil
	},
}

var guestlistProofCmd = &cobra.Command{
	Use:   "proof <account>... --for <account>",
	Short: "Print the merkle proof for one member of a set",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()

		members, err := s.accounts(args)
		if err != nil {
			return err
		}
		who, err := s.account(proofForFlag)
		if err != nil {
			return err
		}
		tree := guestlist.NewTree(members)
		proof, err := tree.Proof(who)
		if err != nil {
			return err
		}
		hashes := make([]string, len(proof))
		for i, h := range proof {
			hashes[i] = h.Hex()
		}
		fmt.Println(ui.Meta("root:  ") + tree.Root().Hex())
		fmt.Println(ui.Meta("proof: ") + strings.Join(hashes, ","))
		return nil
	},
}

var guestlistCheckCmd = &cobra.Command{
	Use:   "check <list> <account>",
	Short: "Check whether an account would be admitted",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()

		g, err := s.guestlist(args[0])
		if err != nil {
			return err
		}
		who, err := s.account(args[1])
		if err != nil {
			return err
		}
		proof, err := parseProof(checkProof)
		if err != nil {
			return err
		}
		ok, err := g.Authorized(ctx, who, proof)
		if err != nil {
			return err
		}
		switch {
		case g.IsGuest(who):
			fmt.Println(ui.Success(s.label(who) + " is an invited guest"))
		case ok:
			fmt.Println(ui.Success(s.label(who) + " is admitted"))
		default:
			fmt.Println(ui.Warn(s.label(who) + " is not admitted"))
		}
		return nil
	},
}

// guestlist resolves a list address or "sale".
func (s *session) guestlist(ref string) (*guestlist.VIP, error) {
	if ref == "sale" {
		sl, err := s.sale()
		if err != nil {
			return nil, err
		}
		addr := sl.Config().Guestlist
		if addr == (common.Address{}) {
			return nil, fmt.Errorf("the sale has no guestlist")
		}
		return s.world.Guestlist(addr)
	}
	if !common.IsHexAddress(ref) {
		return nil, fmt.Errorf("invalid guestlist address %q", ref)
	}
	return s.world.Guestlist(common.HexToAddress(ref))
}

func (s *session) accounts(refs []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(refs))
	for _, ref := range refs {
		addr, err := s.account(ref)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

// parseProof accepts hashes given as repeated flags or comma-separated.
func parseProof(vals []string) ([]common.Hash, error) {
	var out []common.Hash
	for _, v := range vals {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			b := common.FromHex(part)
			if len(b) != common.HashLength {
				return nil, fmt.Errorf("invalid proof element %q", part)
			}
			out = append(out, common.BytesToHash(b))
		}
	}
	return out, nil
}

func init() {
	guestlistRootCmd.Flags().BoolVar(&rootClearFlag, "clear", false, "remove the root")
	guestlistProofCmd.Flags().StringVar(&proofForFlag, "for", "", "account to prove")
	guestlistProofCmd.MarkFlagRequired("for") //nolint:errcheck
	guestlistCheckCmd.Flags().StringSliceVar(&checkProof, "proof", nil, "merkle proof hashes")

	guestlistCmd.AddCommand(guestlistCreateCmd, guestlistAddCmd, guestlistRemoveCmd, guestlistRootCmd, guestlistProofCmd, guestlistCheckCmd)
}
