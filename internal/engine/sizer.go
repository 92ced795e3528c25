package engine

import (
	"github.com/joelsfoster/gizmo/internal/cfg"

	"github.com/shopspring/decimal"
)

// Sizer converts balances into contract quantities. Balances are in base
// units; a contract is worth one quote unit, so base*price*leverage is the
// notional in contracts.
type Sizer struct {
	haircut   decimal.Decimal
	exitOver  decimal.Decimal
	reverseK  decimal.Decimal
	step      decimal.Decimal
	decimals  int32
	fillRatio float64
}

func NewSizer(s cfg.Sizing) Sizer {
	step := decimal.NewFromFloat(s.QtyStep)
	if !step.IsPositive() {
		step = decimal.NewFromInt(1)
	}
	return Sizer{
		haircut:   decimal.NewFromFloat(s.EntryHaircut),
		exitOver:  decimal.NewFromFloat(s.ExitOvershoot),
		reverseK:  decimal.NewFromFloat(s.ReversalOvershoot),
		step:      step,
		decimals:  int32(s.PriceDecimals),
		fillRatio: s.FillRatio,
	}
}

func notional(base, price, leverage float64) decimal.Decimal {
	return decimal.NewFromFloat(base).
		Mul(decimal.NewFromFloat(price)).
		Mul(decimal.NewFromFloat(leverage))
}

func (z Sizer) floor(v decimal.Decimal) decimal.Decimal {
	q := v.Div(z.step).Floor().Mul(z.step)
	if q.IsNegative() {
		return decimal.Zero
	}
	return q
}

func (z Sizer) ceil(v decimal.Decimal) decimal.Decimal {
	q := v.Div(z.step).Ceil().Mul(z.step)
	if q.IsNegative() {
		return decimal.Zero
	}
	return q
}

// SizeEntry is floor(free*price*leverage*haircut).
func (z Sizer) SizeEntry(free, price, leverage float64) decimal.Decimal {
	return z.floor(notional(free, price, leverage).Mul(z.haircut))
}

// SizeFullExit is ceil(used*price*leverage*overshoot); reduce-only orders
// absorb the overshoot.
func (z Sizer) SizeFullExit(used, price, leverage float64) decimal.Decimal {
	return z.ceil(notional(used, price, leverage).Mul(z.exitOver))
}

// SizeReversal is floor((used+free)*price*leverage*k), closing the current
// position and opening the opposite one in a single order.
func (z Sizer) SizeReversal(used, free, price, leverage float64) decimal.Decimal {
	total := decimal.NewFromFloat(used).Add(decimal.NewFromFloat(free))
	n := total.Mul(decimal.NewFromFloat(price)).Mul(decimal.NewFromFloat(leverage))
	return z.floor(n.Mul(z.reverseK))
}

// PositionContracts is floor(used*price*leverage).
func (z Sizer) PositionContracts(used, price, leverage float64) decimal.Decimal {
	return z.floor(notional(used, price, leverage))
}

// SplitLadder splits total into n rungs of equal size; the rounding
// remainder goes to the last rung.
func (z Sizer) SplitLadder(total decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	per := z.floor(total.Div(decimal.NewFromInt(int64(n))))
	rungs := make([]decimal.Decimal, n)
	for i := 0; i < n-1; i++ {
		rungs[i] = per
	}
	rungs[n-1] = total.Sub(per.Mul(decimal.NewFromInt(int64(n - 1))))
	return rungs
}

// Filled reports whether used margin dominates the account.
func (z Sizer) Filled(s Snapshot) bool {
	total := s.FreeQty + s.UsedQty
	if total <= 0 {
		return false
	}
	return s.UsedQty/total > z.fillRatio
}

// Price formats price*factor at the configured precision.
func (z Sizer) Price(price float64, factor decimal.Decimal) string {
	return decimal.NewFromFloat(price).Mul(factor).StringFixed(z.decimals)
}

// above returns 1+pct, below returns 1-pct.
func above(pct float64) decimal.Decimal {
	return decimal.NewFromInt(1).Add(decimal.NewFromFloat(pct))
}

func below(pct float64) decimal.Decimal {
	return decimal.NewFromInt(1).Sub(decimal.NewFromFloat(pct))
}
