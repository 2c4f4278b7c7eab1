package duel

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/priceduel/internal/domain"
)

// distancePlaces is the number of decimal places distances are rounded to
// before comparison.
const distancePlaces = 8

// decideWinner returns the wallet whose prediction is strictly closer to the
// final price, or DrawWinner on a tie.
func decideWinner(p domain.Pool, final float64) string {
	price := decimal.NewFromFloat(final)
	d1 := decimal.NewFromFloat(*p.Player1Prediction).Sub(price).Abs().Round(distancePlaces)
	d2 := decimal.NewFromFloat(*p.Player2Prediction).Sub(price).Abs().Round(distancePlaces)
	switch d1.Cmp(d2) {
	case -1:
		return p.Player1
	case 1:
		return p.Player2
	}
	return domain.DrawWinner
}
