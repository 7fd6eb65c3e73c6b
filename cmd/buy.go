package cmd

import (
	"fmt"

	"github.com/Mohsinsiddi/w3sale/internal/sale"
	"github.com/Mohsinsiddi/w3sale/internal/ui"
	"github.com/spf13/cobra"
)

var (
	buyBeneficiary uint8
	buyProof       []string
)

var buyCmd = &cobra.Command{
	Use:   "buy <amount-in>",
	Short: "Deposit token-in and commit the purchase to a beneficiary",
	Long: `Buy token-out with token-in at the current price. The sale pulls the
deposit straight to the recipient, so --from must first approve the sale:

  w3sale token approve USDC sale 100 --from alice

Every purchase by the same account must name the same beneficiary.`,
	Example: `  w3sale buy 100 --from alice --beneficiary 1
  w3sale buy 50 --from bob --proof 0xabc…,0xdef…`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()

		sl, err := s.sale()
		if err != nil {
			return err
		}
		buyer, err := s.caller()
		if err != nil {
			return err
		}
		cfg := sl.Config()
		amountIn, err := s.amount(cfg.TokenIn, args[0])
		if err != nil {
			return err
		}
		proof, err := parseProof(buyProof)
		if err != nil {
			return err
		}

		out, err := sl.Buy(ctx, buyer, amountIn, sale.BeneficiaryID(buyBeneficiary), proof)
		if err != nil {
			return explain("buy", err)
		}
		if err := s.commit(ctx); err != nil {
			return err
		}
		in, tokOut := s.tokenInfo(cfg.TokenIn), s.tokenInfo(cfg.TokenOut)
		fmt.Println(ui.Success(fmt.Sprintf("Bought %s for %s", ui.Val(tokOut.Amount(out)), ui.Val(in.Amount(amountIn)))))
		fmt.Println(ui.Meta(fmt.Sprintf("  committed to beneficiary %d; claim after the sale is finalized", buyBeneficiary)))
		return nil
	},
}

var claimCmd = &cobra.Command{
	Use:   "claim",
	Short: "Claim everything --from bought once the sale is finalized",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()

		sl, err := s.sale()
		if err != nil {
			return err
		}
		claimer, err := s.caller()
		if err != nil {
			return err
		}
		amount, err := sl.Claim(ctx, claimer)
		if err != nil {
			return explain("claim", err)
		}
		if err := s.commit(ctx); err != nil {
			return err
		}
		fmt.Println(ui.Success("Claimed " + ui.Val(s.tokenInfo(sl.Config().TokenOut).Amount(amount))))
		return nil
	},
}

func init() {
	buyCmd.Flags().Uint8VarP(&buyBeneficiary, "beneficiary", "b", 0, "beneficiary DAO id (0-255)")
	buyCmd.Flags().StringSliceVar(&buyProof, "proof", nil, "merkle proof hashes (see: w3sale guestlist proof)")
}
