package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/depot/internal/output"
	depoterr "github.com/mrz1836/depot/pkg/errors"
)

// balanceCmd reads the contract balance of the connected account.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the contract balance of the connected account",
	Long: `Read the Assessment contract balance of the account the wallet has
already authorized. The balance is shown with four decimals, truncated.

Example:
  depot balance
  depot balance -o json`,
	RunE: runBalance,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(balanceCmd)
}

// balanceResult is the balance of one account.
type balanceResult struct {
	Account  string `json:"account"`
	Contract string `json:"contract"`
	Balance  string `json:"balance"`
}

func (r balanceResult) RenderText(w io.Writer) error {
	_, err := io.WriteString(w, r.Balance+"\n")
	return err
}

func runBalance(cmd *cobra.Command, _ []string) error {
	cc, err := newCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cc.Close()

	ctx := commandContext(cmd)
	if err := cc.App.Start(ctx); err != nil {
		return err
	}

	v := cc.App.View()
	if !v.Connected {
		return depoterr.ErrNotConnected
	}
	// The connect-time read failed softly; surface it here.
	if !v.BalanceKnown {
		if err := cc.App.Refresh(ctx); err != nil {
			return err
		}
		v = cc.App.View()
	}

	return output.NewFormatter(cc.Formatter.Format(), cmd.OutOrStdout()).Print(balanceResult{
		Account:  v.Account,
		Contract: cfg.Contract.Address,
		Balance:  v.Balance,
	})
}
