package cli

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	depoterr "github.com/mrz1836/depot/pkg/errors"
)

// promptPassphraseFn asks for a keystore passphrase. Tests replace it.
//
//nolint:gochecknoglobals // Replaced in tests
var promptPassphraseFn = promptPassphrase

// promptPassphrase prompts for a passphrase with hidden input.
// Without a terminal there is nobody to ask, which counts as a rejection.
func promptPassphrase(prompt string) (string, error) {
	if !stdinIsTerminal() {
		return "", depoterr.WithSuggestion(
			depoterr.ErrUserRejected,
			"no terminal to prompt on; set DEPOT_KEYSTORE_PASSWORD",
		)
	}

	out(os.Stderr, "%s", prompt)
	passphrase, err := term.ReadPassword(syscall.Stdin)
	outln(os.Stderr) // Add newline after hidden input
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}

	return string(passphrase), nil
}
