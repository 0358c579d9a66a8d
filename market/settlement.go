package market

import (
	"math"

	"github.com/holiman/uint256"
)

/* =========================
   SETTLEMENT
   All comparisons are done by cross-multiplication in 256-bit integers:
   |cur - ref| * 100 * 10^decimals  vs  threshold * ref
========================= */

var hundred = uint256.NewInt(100)

// Move is the change between a game's reference price and the current price.
type Move struct {
	Reference uint64
	Current   uint64
}

// Zero reports whether the price has not changed at all.
func (m Move) Zero() bool {
	return m.Current == m.Reference
}

// Up reports whether the price rose. A zero move is not up.
func (m Move) Up() bool {
	return m.Current > m.Reference
}

func (m Move) diff() uint64 {
	if m.Current > m.Reference {
		return m.Current - m.Reference
	}
	return m.Reference - m.Current
}

func scale(decimals uint8) (*uint256.Int, error) {
	if decimals > MaxThresholdDecimals {
		return nil, ErrArithmeticOverflow
	}
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals))), nil
}

// Reaches reports whether the absolute percentage move is at least
// threshold / 10^decimals percent.
func (m Move) Reaches(threshold uint16, decimals uint8) (bool, error) {
	if m.Reference == 0 {
		return false, ErrInvalidPrice
	}
	s, err := scale(decimals)
	if err != nil {
		return false, err
	}

	lhs := new(uint256.Int).Mul(uint256.NewInt(m.diff()), hundred)
	lhs.Mul(lhs, s)
	rhs := new(uint256.Int).Mul(uint256.NewInt(uint64(threshold)), uint256.NewInt(m.Reference))

	return !lhs.Lt(rhs), nil
}

// Percent returns the absolute move in percent scaled by 10^decimals,
// rounded down and saturated at MaxUint64.
func (m Move) Percent(decimals uint8) (uint64, error) {
	if m.Reference == 0 {
		return 0, ErrInvalidPrice
	}
	s, err := scale(decimals)
	if err != nil {
		return 0, err
	}

	v := new(uint256.Int).Mul(uint256.NewInt(m.diff()), hundred)
	v.Mul(v, s)
	v.Div(v, uint256.NewInt(m.Reference))
	if !v.IsUint64() {
		return math.MaxUint64, nil
	}
	return v.Uint64(), nil
}

// CanJoin reports whether an opponent may still join: the price must not have
// moved by the join threshold or more. An unchanged price is always joinable.
func CanJoin(m Move, t Thresholds) (bool, error) {
	if m.Zero() {
		return true, nil
	}
	reached, err := m.Reaches(t.JoinPercent, t.Decimals)
	if err != nil {
		return false, err
	}
	return !reached, nil
}

// Resolve reports whether a joined game can be settled and, when it can,
// whether the price went up. A zero move never settles.
func Resolve(m Move, t Thresholds) (finished bool, priceWentUp bool, err error) {
	if m.Zero() {
		return false, false, nil
	}
	reached, err := m.Reaches(t.WinPercent, t.Decimals)
	if err != nil || !reached {
		return false, false, err
	}
	return true, m.Up(), nil
}

// HostWon reports whether the host's prediction matched the outcome.
func HostWon(hostPrediction, priceWentUp bool) bool {
	return hostPrediction == priceWentUp
}
