package domain

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var ErrInvalidWalletAddress = errors.New("invalid wallet address")

// NormalizeWalletAddress accepts an EVM address in 0x or XDC ("xdc") form and
// returns its EIP-55 checksummed 0x form.
func NormalizeWalletAddress(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if len(s) > 3 && strings.EqualFold(s[:3], "xdc") {
		s = "0x" + s[3:]
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return "", ErrInvalidWalletAddress
	}
	if !common.IsHexAddress(s) {
		return "", ErrInvalidWalletAddress
	}
	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return "", ErrInvalidWalletAddress
	}
	return addr.Hex(), nil
}

// XDCForm renders a 0x address with the XDC network prefix.
func XDCForm(addr string) string {
	if strings.HasPrefix(addr, "0x") {
		return "xdc" + addr[2:]
	}
	return addr
}
