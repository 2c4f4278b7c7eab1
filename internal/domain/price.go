package domain

import "time"

// PriceSample is the latest successfully polled price of an asset.
type PriceSample struct {
	Asset     Asset     `json:"asset"`
	Price     float64   `json:"price"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Age returns how long ago the sample was taken.
func (s PriceSample) Age(now time.Time) time.Duration {
	return now.Sub(s.UpdatedAt)
}
