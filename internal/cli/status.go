package cli

import (
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/mrz1836/depot/internal/app"
	"github.com/mrz1836/depot/internal/metrics"
	"github.com/mrz1836/depot/internal/output"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	statusMetrics bool
	statusQR      bool
)

// statusCmd shows the session without prompting the wallet.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show wallet, account, and balance",
	Long: `Detect the wallet provider and show the connected account and its
contract balance. An account the wallet has already authorized is adopted
silently; nothing is requested from the wallet.

Example:
  depot status
  depot status --metrics -o json
  depot status --qr`,
	RunE: runStatus,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusMetrics, "metrics", false, "include RPC and transaction counters")
	statusCmd.Flags().BoolVar(&statusQR, "qr", false, "show a QR code for funding the connected account")
}

// statusResult is the status view plus where it points.
type statusResult struct {
	app.View

	Network  string         `json:"network"`
	ChainID  int64          `json:"chain_id,omitempty"`
	Contract string         `json:"contract"`
	Metrics  *metricsResult `json:"metrics,omitempty"`

	showInputs bool
}

func (r statusResult) RenderText(w io.Writer) error {
	t := output.NewTable()
	t.AddField("State", r.State)
	if r.Provider != "" {
		t.AddField("Wallet", r.Provider)
	}
	if r.Account != "" {
		t.AddField("Account", r.Account)
	}
	t.AddField("Network", r.Network)
	t.AddField("Contract", r.Contract)
	if r.Connected {
		t.AddField("Balance", r.Balance)
	}
	if r.showInputs {
		t.AddField("Deposit input", fmt.Sprintf("%q", r.DepositInput))
		t.AddField("Withdraw input", fmt.Sprintf("%q", r.WithdrawInput))
	}
	if err := t.Render(w); err != nil {
		return err
	}
	if r.Metrics != nil {
		outln(w)
		return r.Metrics.RenderText(w)
	}
	return nil
}

func newStatusResult(v app.View) statusResult {
	return statusResult{
		View:     v,
		Network:  cfg.Network.RPC,
		ChainID:  cfg.Network.ChainID,
		Contract: cfg.Contract.Address,
	}
}

// metricsResult is a metrics snapshot with derived rates.
type metricsResult struct {
	metrics.Snapshot

	RPCLatencyAvgMs float64 `json:"rpc_latency_avg_ms"`
	TxSuccessRate   float64 `json:"tx_success_rate"`
}

func currentMetrics() *metricsResult {
	return &metricsResult{
		Snapshot:        metrics.Global.Snapshot(),
		RPCLatencyAvgMs: metrics.Global.RPCLatencyAvgMs(),
		TxSuccessRate:   metrics.Global.TxSuccessRate(),
	}
}

func (m *metricsResult) RenderText(w io.Writer) error {
	t := output.NewTable("METRIC", "VALUE")
	t.AddRow("rpc calls", fmt.Sprintf("%d (%d errors)", m.RPCCallsTotal, m.RPCErrorsTotal))
	t.AddRow("rpc latency avg", fmt.Sprintf("%.1fms", m.RPCLatencyAvgMs))
	t.AddRow("wallet requests", fmt.Sprintf("%d (%d errors)", m.WalletOpsTotal, m.WalletOpsErrors))
	t.AddRow("balance reads", fmt.Sprintf("%d (%d errors)", m.BalanceFetches, m.BalanceFetchErrors))
	t.AddRow("tx submitted", fmt.Sprintf("%d", m.TxSubmitted))
	t.AddRow("tx confirmed", fmt.Sprintf("%d", m.TxConfirmed))
	t.AddRow("tx failed", fmt.Sprintf("%d", m.TxFailed))
	t.AddRow("tx success rate", fmt.Sprintf("%.0f%%", m.TxSuccessRate))
	return t.Render(w)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cc, err := newCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cc.Close()

	if err := cc.App.Start(commandContext(cmd)); err != nil {
		return err
	}

	result := newStatusResult(cc.App.View())
	if statusMetrics {
		result.Metrics = currentMetrics()
	}

	w := cmd.OutOrStdout()
	if err := output.NewFormatter(cc.Formatter.Format(), w).Print(result); err != nil {
		return err
	}

	if statusQR && result.Connected && !cc.Formatter.IsJSON() {
		var chainID *big.Int
		if cfg.Network.ChainID > 0 {
			chainID = big.NewInt(cfg.Network.ChainID)
		}
		return output.FundingQR{Account: common.HexToAddress(result.Account), ChainID: chainID}.Render(w)
	}
	return nil
}
