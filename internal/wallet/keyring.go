package wallet

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/zalando/go-keyring"
)

// KeyringService is the OS keyring service name for remembered keystore passphrases.
const KeyringService = "depot-keystore"

// Keyring stores secrets by service and user. OSKeyring is the real one.
type Keyring interface {
	Set(service, user, password string) error
	Get(service, user string) (string, error)
	Delete(service, user string) error
}

// OSKeyring is the platform keychain (Secret Service, macOS Keychain,
// Windows Credential Manager).
type OSKeyring struct{}

// Set implements Keyring.
func (OSKeyring) Set(service, user, password string) error {
	return keyring.Set(service, user, password)
}

// Get implements Keyring.
func (OSKeyring) Get(service, user string) (string, error) {
	return keyring.Get(service, user)
}

// Delete implements Keyring.
func (OSKeyring) Delete(service, user string) error {
	return keyring.Delete(service, user)
}

// ProbeKeyring reports whether kr can store, return, and remove an entry.
// Headless Linux sessions often have no Secret Service running.
func ProbeKeyring(kr Keyring) bool {
	const service, user, value = KeyringService + "-probe", "probe", "ok"

	if err := kr.Set(service, user, value); err != nil {
		return false
	}
	got, err := kr.Get(service, user)
	if delErr := kr.Delete(service, user); delErr != nil {
		return false
	}
	return err == nil && got == value
}

// One entry per account, keyed by the lowercase hex address.
func keyringUser(account common.Address) string {
	return strings.ToLower(account.Hex())
}

func rememberPassphrase(kr Keyring, account common.Address, passphrase string) {
	_ = kr.Set(KeyringService, keyringUser(account), passphrase)
}

func recallPassphrase(kr Keyring, account common.Address) (string, bool) {
	passphrase, err := kr.Get(KeyringService, keyringUser(account))
	if err != nil || passphrase == "" {
		return "", false
	}
	return passphrase, true
}

func forgetPassphrase(kr Keyring, account common.Address) {
	_ = kr.Delete(KeyringService, keyringUser(account))
}
