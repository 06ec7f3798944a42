/*
Package valuation puts a value on a paid leave day.

PURPOSE:
  Hourly employees have no rate for a day off, so a leave day is valued from
  what they actually earned recently. Salaried and per-session employees are
  handled by the payment calculator directly; EntryValuer routes every entry
  to the right place.

METHODS (PayPolicy.DefaultMethod):
  fixed    FixedRateDefault, verbatim
  legal    average daily pay over the trailing LookbackMonths; with
           Legal12MIfBetter the 12-month average is also computed and the
           larger wins
  average  the trailing-window average without the 12-month comparison

  Average daily pay = Σ value of active, payable hours/session entries in
  the window / working days in the window. The window ends the day before
  the leave date and never starts before the employee's start date.

FALLBACK:
  No qualifying history → current resolved rate × StandardDayHours with
  UsedFallbackRate = true. Missing history is never an error.

SEE ALSO:
  - payment/calculator.go: values each history entry
  - pipeline/: asks for confirmation when a fallback is not allowed silently
*/
package valuation

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PAY POLICY
// =============================================================================

type Method string

const (
	MethodLegal   Method = "legal"
	MethodFixed   Method = "fixed"
	MethodAverage Method = "average"
)

func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MethodLegal, MethodFixed, MethodAverage:
		return m, nil
	default:
		return "", fmt.Errorf("unknown leave pay method %q (use legal, fixed or average)", s)
	}
}

// PayPolicy configures leave valuation. See DefaultPayPolicy for defaults.
type PayPolicy struct {
	// DefaultMethod selects the algorithm. Default legal.
	DefaultMethod Method `json:"default_method"`
	// LookbackMonths is the trailing window length. Default 6.
	LookbackMonths int `json:"lookback_months"`
	// Legal12MIfBetter also tries a 12-month window under legal. Default false.
	Legal12MIfBetter bool `json:"legal_allow_12m_if_better"`
	// FixedRateDefault is the day value for the fixed method. Default 0.
	FixedRateDefault decimal.Decimal `json:"fixed_rate_default"`
	// AllowSilentFallback lets fallback values commit without confirmation. Default true.
	AllowSilentFallback bool `json:"allow_silent_fallback"`
	// StandardDayHours converts an hourly rate into a fallback day value. Default 8.
	StandardDayHours decimal.Decimal `json:"standard_day_hours"`
}

func DefaultPayPolicy() PayPolicy {
	return PayPolicy{
		DefaultMethod:       MethodLegal,
		LookbackMonths:      6,
		Legal12MIfBetter:    false,
		FixedRateDefault:    decimal.Zero,
		AllowSilentFallback: true,
		StandardDayHours:    decimal.NewFromInt(8),
	}
}
