package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/priceduel/internal/domain"
)

func TestNormalizeWallet(t *testing.T) {
	const checksummed = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{"checksummed", checksummed, checksummed, nil},
		{"lower case", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", checksummed, nil},
		{"no prefix padded", "  5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED ", checksummed, nil},
		{"empty", "   ", "", domain.ErrWalletRequired},
		{"too short", "0x1234", "", domain.ErrInvalidWallet},
		{"not hex", "0xZZaeb6053f3e94c9b9a09f33669435e7ef1beaed", "", domain.ErrInvalidWallet},
		{"zero address", "0x0000000000000000000000000000000000000000", "", domain.ErrInvalidWallet},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeWallet(tc.in)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
