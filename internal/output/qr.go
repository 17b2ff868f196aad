package output

import (
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mdp/qrterminal/v3"
	"rsc.io/qr"
)

// FundingQR is a scannable request to send funds to Account.
type FundingQR struct {
	Account common.Address
	// ChainID is appended to the URI when set.
	ChainID *big.Int
}

// URI returns the ERC-681 form, e.g. "ethereum:0xabc...@31337".
func (q FundingQR) URI() string {
	if q.ChainID == nil || q.ChainID.Sign() == 0 {
		return "ethereum:" + q.Account.Hex()
	}
	return fmt.Sprintf("ethereum:%s@%s", q.Account.Hex(), q.ChainID)
}

// Render writes the URI, then the code itself when w is a terminal.
func (q FundingQR) Render(w io.Writer) error {
	uri := q.URI()
	if _, err := fmt.Fprintf(w, "\n%s\n", uri); err != nil {
		return err
	}
	if !IsTerminal(w) {
		return nil
	}

	// An address URI fits comfortably at the lowest correction level.
	qrterminal.GenerateWithConfig(uri, qrterminal.Config{
		Level:          qr.L,
		Writer:         w,
		QuietZone:      1,
		HalfBlocks:     true,
		BlackChar:      qrterminal.BLACK_BLACK,
		WhiteChar:      qrterminal.WHITE_WHITE,
		WhiteBlackChar: qrterminal.WHITE_BLACK,
		BlackWhiteChar: qrterminal.BLACK_WHITE,
	})
	return nil
}
