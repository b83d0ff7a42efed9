package pipeline

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"time"
)

// FormatNumber abbreviates large counts: 999 -> "999", 1500 -> "1.5K",
// 2300000 -> "2.3M".
func FormatNumber(n int64) string {
	switch {
	case n >= 1_000_000:
		return FormatDecimal(float64(n)/1_000_000) + "M"
	case n >= 1_000:
		return FormatDecimal(float64(n)/1_000) + "K"
	}
	return strconv.FormatInt(n, 10)
}

// FormatDecimal renders a score with exactly one decimal place. Halves round
// away from zero, judged on the exact binary value: 0.25 -> "0.3" but
// 4.35 (stored as 4.34999...) -> "4.3".
func FormatDecimal(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}

	// |f|*10 needs at most 57 bits, so the product is exact
	x := new(big.Float).SetPrec(128).SetFloat64(math.Abs(f))
	x.Mul(x, big.NewFloat(10))
	n, _ := x.Int(nil)
	frac := new(big.Float).SetPrec(128).Sub(x, new(big.Float).SetInt(n))
	if frac.Cmp(big.NewFloat(0.5)) >= 0 {
		n.Add(n, big.NewInt(1))
	}

	digits := n.String()
	if len(digits) < 2 {
		digits = "0" + digits
	}
	out := digits[:len(digits)-1] + "." + digits[len(digits)-1:]
	if f < 0 {
		out = "-" + out
	}
	return out
}

// AgeUnit is the tier chosen for a relative time.
type AgeUnit int

const (
	AgeJustNow AgeUnit = iota
	AgeMinutes
	AgeHours
	AgeDays
)

func (u AgeUnit) String() string {
	switch u {
	case AgeMinutes:
		return "minutes"
	case AgeHours:
		return "hours"
	case AgeDays:
		return "days"
	}
	return "just_now"
}

func (u AgeUnit) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

// Age is a relative time reduced to a single whole-number tier. Wording is
// left to the caller's locale; String gives the English short form.
type Age struct {
	Unit  AgeUnit `json:"unit"`
	Count int     `json:"count"`
}

func (a Age) String() string {
	switch a.Unit {
	case AgeDays:
		return fmt.Sprintf("%dd ago", a.Count)
	case AgeHours:
		return fmt.Sprintf("%dh ago", a.Count)
	case AgeMinutes:
		return fmt.Sprintf("%dm ago", a.Count)
	}
	return "just now"
}

// RelativeAge picks the largest whole tier of |now - ts|: days, hours,
// minutes (secondary variant only), otherwise just now. A zero timestamp
// (absent or unparsable) is reported as just now.
func RelativeAge(ts, now time.Time, v Variant) Age {
	if ts.IsZero() {
		return Age{Unit: AgeJustNow}
	}

	elapsed := now.Sub(ts)
	if elapsed < 0 {
		elapsed = -elapsed
	}

	switch {
	case elapsed >= 24*time.Hour:
		return Age{Unit: AgeDays, Count: int(elapsed / (24 * time.Hour))}
	case elapsed >= time.Hour:
		return Age{Unit: AgeHours, Count: int(elapsed / time.Hour)}
	case v.HasMinutesTier() && elapsed >= time.Minute:
		return Age{Unit: AgeMinutes, Count: int(elapsed / time.Minute)}
	}
	return Age{Unit: AgeJustNow}
}

// FormatRelative is RelativeAge rendered in English.
func FormatRelative(ts, now time.Time, v Variant) string {
	return RelativeAge(ts, now, v).String()
}
