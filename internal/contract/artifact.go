package contract

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	depoterr "github.com/mrz1836/depot/pkg/errors"
)

//go:embed artifacts/Assessment.json
var embeddedArtifact []byte

var errNoABI = errors.New("artifact has no abi")

// Method names every artifact must provide.
const (
	MethodGetBalance = "getBalance"
	MethodDeposit    = "deposit"
	MethodWithdraw   = "withdraw"
)

// Artifact is the subset of a Hardhat compilation artifact depot needs.
type Artifact struct {
	ContractName string          `json:"contractName"`
	SourceName   string          `json:"sourceName"`
	RawABI       json.RawMessage `json:"abi"`

	abi abi.ABI
}

// ABI returns the parsed contract ABI.
func (a *Artifact) ABI() abi.ABI {
	return a.abi
}

// LoadArtifact reads an artifact from path, or the embedded Assessment artifact when path is empty.
func LoadArtifact(path string) (*Artifact, error) {
	if path == "" {
		return ParseArtifact(embeddedArtifact)
	}

	data, err := os.ReadFile(path) //nolint:gosec // Path comes from user configuration
	if err != nil {
		return nil, depoterr.WithDetails(
			depoterr.WithCause(depoterr.ErrInvalidArtifact, err),
			map[string]string{"path": path},
		)
	}
	return ParseArtifact(data)
}

// ParseArtifact decodes artifact JSON and checks the ABI exposes the
// balance, deposit and withdraw methods with the expected mutability.
func ParseArtifact(data []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, depoterr.WithCause(depoterr.ErrInvalidArtifact, fmt.Errorf("decoding artifact: %w", err))
	}
	if len(a.RawABI) == 0 {
		return nil, depoterr.WithCause(depoterr.ErrInvalidArtifact, errNoABI)
	}

	parsed, err := abi.JSON(strings.NewReader(string(a.RawABI)))
	if err != nil {
		return nil, depoterr.WithCause(depoterr.ErrInvalidArtifact, fmt.Errorf("parsing abi: %w", err))
	}
	a.abi = parsed

	if err := checkMethod(parsed, MethodGetBalance, 0, 1, false); err != nil {
		return nil, err
	}
	if err := checkMethod(parsed, MethodDeposit, 1, 0, true); err != nil {
		return nil, err
	}
	if err := checkMethod(parsed, MethodWithdraw, 1, 0, false); err != nil {
		return nil, err
	}

	return &a, nil
}

func checkMethod(parsed abi.ABI, name string, inputs, outputs int, payable bool) error {
	method, ok := parsed.Methods[name]
	if !ok {
		return depoterr.WithDetails(depoterr.ErrInvalidArtifact, map[string]string{"missing": name})
	}
	if len(method.Inputs) != inputs || len(method.Outputs) != outputs {
		return depoterr.WithDetails(depoterr.ErrInvalidArtifact, map[string]string{"method": method.Sig})
	}
	if payable && !method.IsPayable() {
		return depoterr.WithDetails(depoterr.ErrInvalidArtifact, map[string]string{"not_payable": name})
	}
	return nil
}
