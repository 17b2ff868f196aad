package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrz1836/depot/internal/output"
)

// connectCmd asks the wallet for account access.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Request account access from the wallet",
	Long: `Ask the wallet provider for account access. An RPC wallet shows its own
approval prompt; a keystore wallet asks for the keystore passphrase.

The first account returned is used.

Example:
  depot connect
  DEPOT_KEYSTORE=~/.ethereum/keystore depot connect`,
	RunE: runConnect,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(connectCmd)
}

func runConnect(cmd *cobra.Command, _ []string) error {
	cc, err := newCommandContext(cmd)
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

	v := cc.App.View()
	if !v.Connected {
		cc.Messenger.Warn("the wallet returned no accounts")
	}
	return output.NewFormatter(cc.Formatter.Format(), cmd.OutOrStdout()).Print(newStatusResult(v))
}
