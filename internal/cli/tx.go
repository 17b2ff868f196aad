package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mrz1836/depot/internal/chain"
	"github.com/mrz1836/depot/internal/gateway"
	"github.com/mrz1836/depot/internal/output"
	depoterr "github.com/mrz1836/depot/pkg/errors"
)

// depositCmd deposits into the contract.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var depositCmd = &cobra.Command{
	Use:   "deposit <amount>",
	Short: "Deposit an amount into the contract",
	Long: `Deposit <amount> (in ether, up to 18 decimals) into the Assessment contract
and wait for the transaction to be confirmed. The amount is sent as the
transaction value.

Example:
  depot deposit 1
  depot deposit 0.25 -o json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTx(cmd, gateway.OpDeposit, args[0])
	},
}

// withdrawCmd withdraws from the contract.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var withdrawCmd = &cobra.Command{
	Use:   "withdraw <amount>",
	Short: "Withdraw an amount from the contract",
	Long: `Withdraw <amount> (in ether, up to 18 decimals) from the Assessment
contract and wait for the transaction to be confirmed. The contract reverts
with InsufficientBalance when the amount exceeds the balance.

Example:
  depot withdraw 0.5`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTx(cmd, gateway.OpWithdraw, args[0])
	},
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(depositCmd)
	rootCmd.AddCommand(withdrawCmd)
}

// txResult describes a confirmed transaction.
type txResult struct {
	Operation string `json:"operation"`
	Amount    string `json:"amount"`
	AmountWei string `json:"amount_wei"`
	TxHash    string `json:"tx_hash"`
	Account   string `json:"account"`
	Balance   string `json:"balance"`
}

func (r txResult) RenderText(w io.Writer) error {
	t := output.NewTable()
	t.AddField("Transaction", r.TxHash)
	t.AddField("Balance", r.Balance)
	return t.Render(w)
}

// runTx connects if needed, then submits and waits for one transaction.
func runTx(cmd *cobra.Command, op gateway.Operation, amount string) error {
	msg := &output.Messenger{Out: cmd.ErrOrStderr(), Err: cmd.ErrOrStderr()}
	progress := newProgressObserver(msg)

	var last gateway.TxEvent
	cc, err := newCommandContextWith(msg, func(ev gateway.TxEvent) {
		last = ev
		progress(ev)
	})
	if err != nil {
		return err
	}
	defer cc.Close()

	ctx := commandContext(cmd)
	if err := cc.App.Start(ctx); err != nil {
		return err
	}
	if !cc.App.View().Connected {
		if err := cc.App.Connect(ctx); err != nil {
			return err
		}
	}

	switch op {
	case gateway.OpDeposit:
		err = cc.App.DepositAmount(ctx, amount)
	case gateway.OpWithdraw:
		err = cc.App.WithdrawAmount(ctx, amount)
	default:
		err = fmt.Errorf("unknown operation %q", op)
	}
	if err != nil {
		return err
	}

	// Already validated by the gateway.
	wei, _ := chain.ParseNativeAmount(amount, depoterr.ErrInvalidAmount)

	v := cc.App.View()
	cc.Logger.DebugAttrs("transaction confirmed",
		slog.String("operation", string(op)),
		slog.String("amount", amount),
		slog.String("tx_hash", last.TxHash.Hex()),
		slog.String("balance", v.Balance),
	)
	return output.NewFormatter(cc.Formatter.Format(), cmd.OutOrStdout()).Print(txResult{
		Operation: string(op),
		Amount:    chain.FormatDecimalAmount(wei, chain.NativeDecimals),
		AmountWei: wei.String(),
		TxHash:    last.TxHash.Hex(),
		Account:   v.Account,
		Balance:   v.Balance,
	})
}
