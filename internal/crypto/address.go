package crypto

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/priceduel/internal/domain"
)

// NormalizeWallet validates an EVM address and returns its EIP-55 checksum
// form, so the same wallet typed in different case maps to one identity.
func NormalizeWallet(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", domain.ErrWalletRequired
	}
	if !common.IsHexAddress(raw) {
		return "", domain.ErrInvalidWallet
	}
	addr := common.HexToAddress(raw)
	if addr == (common.Address{}) {
		return "", domain.ErrInvalidWallet
	}
	return addr.Hex(), nil
}
