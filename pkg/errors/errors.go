// Package errors provides structured error handling for depot.
// It defines sentinel errors, exit codes, and helpers for adding
// context, details, and suggestions to errors.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Exit codes returned by the depot CLI.
const (
	ExitSuccess  = 0 // Successful execution
	ExitGeneral  = 1 // General/unknown error
	ExitInput    = 2 // Invalid input
	ExitRejected = 3 // Declined by the wallet or its user
	ExitNotFound = 4 // Resource not found
	ExitChain    = 5 // Transaction failed on chain
)

// DepotError is the structured error type for depot.
type DepotError struct {
	Code       string            // Machine-readable error code
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for user
	Cause      error             // Underlying error
	ExitCode   int               // Exit code for CLI
}

func (e *DepotError) Error() string {
	msg := e.Message

	// Include details in error message (sorted for deterministic output)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *DepotError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for DepotError.
func (e *DepotError) Is(target error) bool {
	var t *DepotError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors.
var (
	ErrGeneral = &DepotError{
		Code:     "GENERAL_ERROR",
		Message:  "an error occurred",
		ExitCode: ExitGeneral,
	}

	ErrInvalidInput = &DepotError{
		Code:     "INVALID_INPUT",
		Message:  "invalid input",
		ExitCode: ExitInput,
	}

	ErrNotFound = &DepotError{
		Code:     "NOT_FOUND",
		Message:  "resource not found",
		ExitCode: ExitNotFound,
	}

	// Session errors.
	ErrWalletRequired = &DepotError{
		Code:       "WALLET_REQUIRED",
		Message:    "a wallet provider is required to connect",
		Suggestion: "configure wallet.rpc or wallet.keystore, or set DEPOT_WALLET_RPC / DEPOT_KEYSTORE",
		ExitCode:   ExitInput,
	}

	ErrUserRejected = &DepotError{
		Code:     "USER_REJECTED",
		Message:  "request rejected by the wallet",
		ExitCode: ExitRejected,
	}

	ErrNotConnected = &DepotError{
		Code:       "NOT_CONNECTED",
		Message:    "no wallet account connected",
		Suggestion: "run 'depot connect' first",
		ExitCode:   ExitInput,
	}

	ErrAccountUnknown = &DepotError{
		Code:     "ACCOUNT_UNKNOWN",
		Message:  "account is not managed by the wallet",
		ExitCode: ExitNotFound,
	}

	// Contract errors.
	ErrContractNotBound = &DepotError{
		Code:     "CONTRACT_NOT_BOUND",
		Message:  "contract handle is not bound",
		ExitCode: ExitGeneral,
	}

	ErrInvalidArtifact = &DepotError{
		Code:     "INVALID_ARTIFACT",
		Message:  "contract artifact is invalid",
		ExitCode: ExitInput,
	}

	ErrInvalidAmount = &DepotError{
		Code:     "INVALID_AMOUNT",
		Message:  "invalid amount format",
		ExitCode: ExitInput,
	}

	ErrBalanceRead = &DepotError{
		Code:     "BALANCE_READ_FAILED",
		Message:  "reading contract balance failed",
		ExitCode: ExitGeneral,
	}

	// Transaction errors.
	ErrTxSubmit = &DepotError{
		Code:     "TX_SUBMIT_FAILED",
		Message:  "submitting transaction failed",
		ExitCode: ExitChain,
	}

	ErrTxReverted = &DepotError{
		Code:     "TX_REVERTED",
		Message:  "transaction reverted",
		ExitCode: ExitChain,
	}

	ErrConfirmation = &DepotError{
		Code:     "TX_CONFIRMATION_FAILED",
		Message:  "waiting for transaction confirmation failed",
		ExitCode: ExitChain,
	}

	// Network errors.
	ErrNetworkError = &DepotError{
		Code:     "NETWORK_ERROR",
		Message:  "network communication failed",
		ExitCode: ExitGeneral,
	}

	ErrInvalidAddress = &DepotError{
		Code:     "INVALID_ADDRESS",
		Message:  "invalid address format",
		ExitCode: ExitInput,
	}

	// Config-specific errors.
	ErrConfigNotFound = &DepotError{
		Code:     "CONFIG_NOT_FOUND",
		Message:  "configuration file not found",
		ExitCode: ExitNotFound,
	}

	ErrConfigInvalid = &DepotError{
		Code:     "CONFIG_INVALID",
		Message:  "configuration file is invalid",
		ExitCode: ExitInput,
	}
)

// New creates a new DepotError with the given code and message.
func New(code, message string) *DepotError {
	return &DepotError{
		Code:     code,
		Message:  message,
		ExitCode: ExitGeneral,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var de *DepotError
	if errors.As(err, &de) {
		return &DepotError{
			Code:       de.Code,
			Message:    fmt.Sprintf("%s: %s", msg, de.Message),
			Details:    de.Details,
			Suggestion: de.Suggestion,
			Cause:      err,
			ExitCode:   de.ExitCode,
		}
	}

	return &DepotError{
		Code:     "GENERAL_ERROR",
		Message:  msg,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithCause returns a copy of a sentinel carrying cause as its underlying error.
// The result still matches the sentinel with errors.Is.
func WithCause(sentinel *DepotError, cause error) error {
	return &DepotError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		Details:    sentinel.Details,
		Suggestion: sentinel.Suggestion,
		Cause:      cause,
		ExitCode:   sentinel.ExitCode,
	}
}

// WithDetails adds details to an error.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var de *DepotError
	if errors.As(err, &de) {
		return &DepotError{
			Code:       de.Code,
			Message:    de.Message,
			Details:    details,
			Suggestion: de.Suggestion,
			Cause:      de.Cause,
			ExitCode:   de.ExitCode,
		}
	}

	return &DepotError{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		Details:  details,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var de *DepotError
	if errors.As(err, &de) {
		return &DepotError{
			Code:       de.Code,
			Message:    de.Message,
			Details:    de.Details,
			Suggestion: suggestion,
			Cause:      de.Cause,
			ExitCode:   de.ExitCode,
		}
	}

	return &DepotError{
		Code:       "GENERAL_ERROR",
		Message:    err.Error(),
		Suggestion: suggestion,
		Cause:      err,
		ExitCode:   ExitGeneral,
	}
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var de *DepotError
	if errors.As(err, &de) {
		return de.ExitCode
	}

	return ExitGeneral
}

// Code returns the error code for an error.
func Code(err error) string {
	var de *DepotError
	if errors.As(err, &de) {
		return de.Code
	}
	return "GENERAL_ERROR"
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
