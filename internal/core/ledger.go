package core

import "github.com/shopspring/decimal"

var minutesPerHour = decimal.NewFromInt(60)

// AmountUSD converts a logged quantity into a signed dollar amount for the
// given category. Quantity is minutes for time units, a count for count
// units and a dollar value for money units. Invalid (negative) quantities
// clamp to zero.
//
// Quit-habit categories flip positive raw amounts negative: their logs spend
// from the ledger.
func AmountUSD(cat *Category, quantity decimal.Decimal, usdPerHour decimal.Decimal) decimal.Decimal {
	if quantity.Sign() <= 0 {
		return decimal.Zero
	}

	var raw decimal.Decimal
	switch cat.Unit {
	case UnitTime:
		hours := quantity.Div(minutesPerHour)
		if cat.TimeMode == TimeModeHourlyRate && cat.HourlyRateUSD.Sign() > 0 {
			raw = hours.Mul(cat.HourlyRateUSD)
		} else {
			mult := cat.Multiplier
			if mult.Sign() <= 0 {
				mult = decimal.NewFromInt(1)
			}
			raw = hours.Mul(usdPerHour).Mul(mult)
		}
	case UnitCount:
		perCount := cat.USDPerCount
		if perCount.Sign() <= 0 {
			perCount = decimal.NewFromInt(1)
		}
		raw = quantity.Mul(perCount)
	case UnitMoney:
		raw = quantity
	default:
		return decimal.Zero
	}

	if cat.Type == QuitHabit && raw.Sign() > 0 {
		raw = raw.Neg()
	}
	return Round2(raw)
}

// Balance sums entry amounts into the ledger balance. The running total is
// re-rounded after every accumulation step to match reference totals across
// long entry lists.
func Balance(entries []Entry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = Round2(total.Add(e.AmountUSD))
	}
	return total
}
