package domain

import "time"

// Result is the per-participant outcome of a settled round.
type Result string

const (
	ResultWin  Result = "win"
	ResultLose Result = "lose"
	ResultDraw Result = "draw"
)

// HistoryRecord is the immutable result of one settled round for one wallet.
// Two records are written per settlement, one for each participant.
type HistoryRecord struct {
	ID                 string    `json:"id"`
	Wallet             string    `json:"wallet"`
	PoolID             string    `json:"poolId"`
	Round              uint64    `json:"round"`
	Asset              Asset     `json:"asset"`
	Tier               Tier      `json:"tier"`
	Prediction         float64   `json:"prediction"`
	OpponentPrediction float64   `json:"opponentPrediction"`
	FinalPrice         float64   `json:"finalPrice"`
	Result             Result    `json:"result"`
	Amount             float64   `json:"amount"`
	Date               time.Time `json:"date"`
}
