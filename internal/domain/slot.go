package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Asset is a tradable symbol a duel can be played on.
type Asset string

const (
	AssetBTC Asset = "BTC"
	AssetETH Asset = "ETH"
	AssetSOL Asset = "SOL"
)

// Assets lists every supported asset in display order.
var Assets = []Asset{AssetBTC, AssetETH, AssetSOL}

// Valid reports whether a is one of the supported assets.
func (a Asset) Valid() bool {
	switch a {
	case AssetBTC, AssetETH, AssetSOL:
		return true
	}
	return false
}

// ParseAsset converts a case-insensitive symbol into an Asset.
func ParseAsset(s string) (Asset, error) {
	a := Asset(strings.ToUpper(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("unknown asset %q", s)
	}
	return a, nil
}

// Tier is a stake denomination. Both players of a pool stake the same tier.
type Tier int

const (
	Tier100  Tier = 100
	Tier500  Tier = 500
	Tier1000 Tier = 1000
)

// Tiers lists every supported stake tier in ascending order.
var Tiers = []Tier{Tier100, Tier500, Tier1000}

// Valid reports whether t is one of the supported tiers.
func (t Tier) Valid() bool {
	switch t {
	case Tier100, Tier500, Tier1000:
		return true
	}
	return false
}

// Slot is the fixed (asset, tier) pair that identifies a pool.
type Slot struct {
	Asset Asset
	Tier  Tier
}

// PoolID returns the deterministic pool id for the slot, e.g. "BTC_100".
func (s Slot) PoolID() string {
	return string(s.Asset) + "_" + strconv.Itoa(int(s.Tier))
}

// Index returns the slot's position in AllSlots, or -1 if the slot is unknown.
func (s Slot) Index() int {
	ai, ti := -1, -1
	for i, a := range Assets {
		if a == s.Asset {
			ai = i
		}
	}
	for i, t := range Tiers {
		if t == s.Tier {
			ti = i
		}
	}
	if ai < 0 || ti < 0 {
		return -1
	}
	return ai*len(Tiers) + ti
}

// AllSlots returns the full slot universe, asset-major.
func AllSlots() []Slot {
	slots := make([]Slot, 0, len(Assets)*len(Tiers))
	for _, a := range Assets {
		for _, t := range Tiers {
			slots = append(slots, Slot{Asset: a, Tier: t})
		}
	}
	return slots
}

// ParsePoolID resolves a pool id back into its slot. Ids that do not name one of
// the fixed slots return ErrPoolNotFound.
func ParsePoolID(id string) (Slot, error) {
	asset, tier, ok := strings.Cut(id, "_")
	if !ok {
		return Slot{}, ErrPoolNotFound
	}
	n, err := strconv.Atoi(tier)
	if err != nil {
		return Slot{}, ErrPoolNotFound
	}
	s := Slot{Asset: Asset(asset), Tier: Tier(n)}
	if !s.Asset.Valid() || !s.Tier.Valid() {
		return Slot{}, ErrPoolNotFound
	}
	// Only the canonical spelling names a pool: "BTC_0100" and "BTC_+100" do not.
	if s.PoolID() != id {
		return Slot{}, ErrPoolNotFound
	}
	return s, nil
}
