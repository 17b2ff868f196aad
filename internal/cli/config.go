package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/depot/internal/config"
	"github.com/mrz1836/depot/internal/output"
	depoterr "github.com/mrz1836/depot/pkg/errors"
)

// configCmd is the parent command for configuration operations.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and modify depot configuration settings.`,
}

// configInitCmd initializes the configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long: `Create a default configuration file at ~/.depot/config.yaml.

If a configuration file already exists, this command will not overwrite it
unless --force is specified.

Example:
  depot config init
  depot config init --force`,
	RunE: runConfigInit,
}

// configShowCmd shows the current configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the effective configuration: the file, then environment
overrides, then command-line flags.

Example:
  depot config show
  depot config show -o json`,
	RunE: runConfigShow,
}

// configGetCmd gets a specific configuration value.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configGetCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Get a configuration value",
	Long: `Get a specific configuration value by its path.

The path uses dot notation to navigate the configuration tree.

Examples:
  depot config get network.rpc
  depot config get contract.address
  depot config get logging.level`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

// configSetCmd sets a configuration value.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configSetCmd = &cobra.Command{
	Use:   "set <path> <value>",
	Short: "Set a configuration value",
	Long: `Set a specific configuration value by its path and save the file.
The resulting configuration must validate.

Examples:
  depot config set network.rpc https://sepolia.example.org
  depot config set wallet.keystore ~/.ethereum/keystore
  depot config set tx.confirm_timeout 2m`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var configForce bool

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite existing configuration")

	enrichParentLong(configCmd)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	configPath := config.Path(cfg.Home)

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil && !configForce {
		return depoterr.WithSuggestion(
			depoterr.ErrGeneral,
			fmt.Sprintf("configuration already exists at %s. Use --force to overwrite.", configPath),
		)
	}

	defaultCfg := config.Defaults()
	defaultCfg.Home = cfg.Home
	if err := config.Save(defaultCfg, configPath); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	w := cmd.OutOrStdout()
	out(w, "Configuration initialized at %s\n", configPath)
	outln(w)
	outln(w, "Edit this file to configure:")
	outln(w, "  - network.rpc: Ledger JSON-RPC endpoint")
	outln(w, "  - contract.address: Assessment contract address")
	outln(w, "  - wallet.rpc or wallet.keystore: Wallet provider")
	outln(w, "  - logging.level: Log level (off/error/info/debug)")

	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	if formatter.IsJSON() {
		return output.NewFormatter(output.FormatJSON, w).Print(cfg)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	out(w, "# %s\n%s", config.Path(cfg.Home), data)
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	value, err := getConfigValue(cfg, args[0])
	if err != nil {
		return err
	}
	outln(cmd.OutOrStdout(), value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	path, value := args[0], args[1]

	configPath := config.Path(cfg.Home)
	current, err := config.Load(configPath)
	if err != nil {
		if !depoterr.Is(err, depoterr.ErrConfigNotFound) {
			return err
		}
		current = config.Defaults()
		current.Home = cfg.Home
	}

	updated, err := setConfigValue(current, path, value)
	if err != nil {
		return err
	}
	if err := updated.Validate(); err != nil {
		return err
	}
	if err := config.Save(updated, configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	return output.FormatSuccess(cmd.OutOrStdout(), fmt.Sprintf("Set %s = %s", path, value), formatter.Format())
}

// configNode returns the YAML node at a dot path of c.
func configNode(root *yaml.Node, path string) (*yaml.Node, error) {
	node := root
	if node.Kind == yaml.DocumentNode {
		node = node.Content[0]
	}
	for _, key := range strings.Split(path, ".") {
		if node.Kind != yaml.MappingNode {
			return nil, unknownKey(path)
		}
		var next *yaml.Node
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == key {
				next = node.Content[i+1]
				break
			}
		}
		if next == nil {
			return nil, unknownKey(path)
		}
		node = next
	}
	return node, nil
}

func unknownKey(path string) error {
	return depoterr.WithSuggestion(
		depoterr.WithDetails(depoterr.ErrNotFound, map[string]string{"path": path}),
		"run 'depot config show' to list configuration paths",
	)
}

// getConfigValue retrieves a scalar value from the config using dot notation.
func getConfigValue(c *config.Config, path string) (string, error) {
	var root yaml.Node
	if err := root.Encode(c); err != nil {
		return "", err
	}
	node, err := configNode(&root, path)
	if err != nil {
		return "", err
	}
	if node.Kind != yaml.ScalarNode {
		data, err := yaml.Marshal(node)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(data), "\n"), nil
	}
	return node.Value, nil
}

// setConfigValue returns a copy of c with the scalar at path replaced.
// The value is decoded with the field's own type.
func setConfigValue(c *config.Config, path, value string) (*config.Config, error) {
	var root yaml.Node
	if err := root.Encode(c); err != nil {
		return nil, err
	}
	node, err := configNode(&root, path)
	if err != nil {
		return nil, err
	}
	if node.Kind != yaml.ScalarNode {
		return nil, depoterr.WithDetails(depoterr.ErrInvalidInput, map[string]string{
			"path":   path,
			"reason": "not a single value",
		})
	}

	node.Tag = ""
	node.Style = 0
	node.Value = value

	updated := config.Defaults()
	if err := root.Decode(updated); err != nil {
		return nil, depoterr.WithDetails(depoterr.WithCause(depoterr.ErrInvalidInput, err), map[string]string{
			"path":  path,
			"value": value,
		})
	}
	return updated, nil
}
