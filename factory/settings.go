/*
Package factory provides JSON to Go settings conversion.

PURPOSE:
  Converts a JSON settings document into leave.Policy, valuation.PayPolicy
  and generic.Calendar values. Payroll admins edit the document; the factory
  fills every absent field with its documented default and rejects unknown
  enum values instead of guessing.

JSON SCHEMA:
  {
    "leave_policy": {
      "allow_half_day": true,
      "allow_negative_balance": false,
      "negative_floor_days": 0,
      "carryover_enabled": true,
      "carryover_max_days": 5,
      "initial_allowance_days": 0,
      "holidays": [{"date": "2024-12-25", "name": "Christmas", "recurring": true}]
    },
    "leave_pay_policy": {
      "default_method": "legal",
      "lookback_months": 6,
      "legal_allow_12m_if_better": false,
      "fixed_rate_default": 0,
      "allow_silent_fallback": true,
      "standard_day_hours": 8
    },
    "calendar": {"weekend": ["saturday", "sunday"]}
  }

USAGE:
  f := NewSettingsFactory()
  settings, err := f.ParseSettings(jsonString)

  svc := pipeline.NewService(store, settings.LeavePolicy, settings.PayPolicy, settings.Calendar)

SEE ALSO:
  - leave/policy.go: leave defaults
  - valuation/policy.go: leave pay defaults
  - generic/calendar.go: working days
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/staff-pay-engine/generic"
	"github.com/warp/staff-pay-engine/leave"
	"github.com/warp/staff-pay-engine/valuation"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// SettingsJSON is the JSON representation of the engine settings.
// Pointer fields distinguish "absent" from an explicit zero.
type SettingsJSON struct {
	LeavePolicy    *LeavePolicyJSON `json:"leave_policy,omitempty"`
	LeavePayPolicy *PayPolicyJSON   `json:"leave_pay_policy,omitempty"`
	Calendar       *CalendarJSON    `json:"calendar,omitempty"`
}

type LeavePolicyJSON struct {
	AllowHalfDay         *bool            `json:"allow_half_day,omitempty"`
	AllowNegativeBalance *bool            `json:"allow_negative_balance,omitempty"`
	NegativeFloorDays    *decimal.Decimal `json:"negative_floor_days,omitempty"`
	CarryoverEnabled     *bool            `json:"carryover_enabled,omitempty"`
	CarryoverMaxDays     *decimal.Decimal `json:"carryover_max_days,omitempty"`
	InitialAllowanceDays *decimal.Decimal `json:"initial_allowance_days,omitempty"`
	Holidays             []HolidayJSON    `json:"holidays,omitempty"`
}

type HolidayJSON struct {
	Date      string `json:"date"`
	Name      string `json:"name,omitempty"`
	Recurring bool   `json:"recurring,omitempty"`
}

type PayPolicyJSON struct {
	DefaultMethod       *string          `json:"default_method,omitempty"`
	LookbackMonths      *int             `json:"lookback_months,omitempty"`
	Legal12MIfBetter    *bool            `json:"legal_allow_12m_if_better,omitempty"`
	FixedRateDefault    *decimal.Decimal `json:"fixed_rate_default,omitempty"`
	AllowSilentFallback *bool            `json:"allow_silent_fallback,omitempty"`
	StandardDayHours    *decimal.Decimal `json:"standard_day_hours,omitempty"`
}

type CalendarJSON struct {
	Weekend []string `json:"weekend,omitempty"`
}

// Settings is the typed result.
type Settings struct {
	LeavePolicy leave.Policy        `json:"leave_policy"`
	PayPolicy   valuation.PayPolicy `json:"leave_pay_policy"`
	Calendar    generic.Calendar    `json:"-"`
}

// DefaultSettings is what an empty document parses to.
func DefaultSettings() Settings {
	lp := leave.DefaultPolicy()
	return Settings{
		LeavePolicy: lp,
		PayPolicy:   valuation.DefaultPayPolicy(),
		Calendar:    generic.Calendar{Weekend: generic.DefaultWeekend, Holidays: lp.Holidays()},
	}
}

// =============================================================================
// SETTINGS FACTORY
// =============================================================================

// SettingsFactory converts JSON settings to Go structs.
type SettingsFactory struct{}

func NewSettingsFactory() *SettingsFactory {
	return &SettingsFactory{}
}

// ParseSettings parses a JSON string. An empty string yields DefaultSettings.
func (f *SettingsFactory) ParseSettings(jsonStr string) (Settings, error) {
	if strings.TrimSpace(jsonStr) == "" {
		return DefaultSettings(), nil
	}
	var sj SettingsJSON
	if err := json.Unmarshal([]byte(jsonStr), &sj); err != nil {
		return Settings{}, fmt.Errorf("failed to parse settings JSON: %w", err)
	}
	return f.FromJSON(sj)
}

// LoadFile reads settings from path. An empty path yields DefaultSettings.
func (f *SettingsFactory) LoadFile(path string) (Settings, error) {
	if path == "" {
		return DefaultSettings(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings %s: %w", path, err)
	}
	return f.ParseSettings(string(raw))
}

// FromJSON applies sj over the defaults.
func (f *SettingsFactory) FromJSON(sj SettingsJSON) (Settings, error) {
	s := DefaultSettings()

	if lj := sj.LeavePolicy; lj != nil {
		lp, err := parseLeavePolicy(*lj)
		if err != nil {
			return Settings{}, err
		}
		s.LeavePolicy = lp
	}
	if pj := sj.LeavePayPolicy; pj != nil {
		pp, err := parsePayPolicy(*pj)
		if err != nil {
			return Settings{}, err
		}
		s.PayPolicy = pp
	}
	if cj := sj.Calendar; cj != nil && len(cj.Weekend) > 0 {
		weekend, err := parseWeekend(cj.Weekend)
		if err != nil {
			return Settings{}, err
		}
		s.Calendar.Weekend = weekend
	}
	s.Calendar.Holidays = s.LeavePolicy.Holidays()
	return s, nil
}

// ToJSON converts settings back to their JSON form with every field explicit.
func (f *SettingsFactory) ToJSON(s Settings) SettingsJSON {
	lp, pp := s.LeavePolicy, s.PayPolicy
	method := string(pp.DefaultMethod)

	lj := &LeavePolicyJSON{
		AllowHalfDay:         &lp.AllowHalfDay,
		AllowNegativeBalance: &lp.AllowNegativeBalance,
		NegativeFloorDays:    &lp.NegativeFloorDays,
		CarryoverEnabled:     &lp.CarryoverEnabled,
		CarryoverMaxDays:     &lp.CarryoverMaxDays,
		InitialAllowanceDays: &lp.InitialAllowanceDays,
	}
	for _, h := range lp.HolidayRules {
		lj.Holidays = append(lj.Holidays, HolidayJSON{Date: h.Date.String(), Name: h.Name, Recurring: h.Recurring})
	}

	weekend := s.Calendar.Weekend
	if len(weekend) == 0 {
		weekend = generic.DefaultWeekend
	}
	cj := &CalendarJSON{}
	for _, d := range weekend {
		cj.Weekend = append(cj.Weekend, strings.ToLower(d.String()))
	}

	return SettingsJSON{
		LeavePolicy: lj,
		LeavePayPolicy: &PayPolicyJSON{
			DefaultMethod:       &method,
			LookbackMonths:      &pp.LookbackMonths,
			Legal12MIfBetter:    &pp.Legal12MIfBetter,
			FixedRateDefault:    &pp.FixedRateDefault,
			AllowSilentFallback: &pp.AllowSilentFallback,
			StandardDayHours:    &pp.StandardDayHours,
		},
		Calendar: cj,
	}
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseLeavePolicy(lj LeavePolicyJSON) (leave.Policy, error) {
	p := leave.DefaultPolicy()
	if lj.AllowHalfDay != nil {
		p.AllowHalfDay = *lj.AllowHalfDay
	}
	if lj.AllowNegativeBalance != nil {
		p.AllowNegativeBalance = *lj.AllowNegativeBalance
	}
	if lj.NegativeFloorDays != nil {
		if lj.NegativeFloorDays.IsNegative() {
			return leave.Policy{}, fmt.Errorf("negative_floor_days must be >= 0, got %s", lj.NegativeFloorDays)
		}
		p.NegativeFloorDays = *lj.NegativeFloorDays
	}
	if lj.CarryoverEnabled != nil {
		p.CarryoverEnabled = *lj.CarryoverEnabled
	}
	if lj.CarryoverMaxDays != nil {
		if lj.CarryoverMaxDays.IsNegative() {
			return leave.Policy{}, fmt.Errorf("carryover_max_days must be >= 0, got %s", lj.CarryoverMaxDays)
		}
		p.CarryoverMaxDays = *lj.CarryoverMaxDays
	}
	if lj.InitialAllowanceDays != nil {
		p.InitialAllowanceDays = *lj.InitialAllowanceDays
	}
	for _, hj := range lj.Holidays {
		d, err := generic.ParseDate(hj.Date)
		if err != nil {
			return leave.Policy{}, fmt.Errorf("invalid holiday date %q: %w", hj.Date, err)
		}
		p.HolidayRules = append(p.HolidayRules, generic.Holiday{Date: d, Name: hj.Name, Recurring: hj.Recurring})
	}
	return p, nil
}

func parsePayPolicy(pj PayPolicyJSON) (valuation.PayPolicy, error) {
	p := valuation.DefaultPayPolicy()
	if pj.DefaultMethod != nil {
		m, err := valuation.ParseMethod(*pj.DefaultMethod)
		if err != nil {
			return valuation.PayPolicy{}, err
		}
		p.DefaultMethod = m
	}
	if pj.LookbackMonths != nil {
		if *pj.LookbackMonths <= 0 {
			return valuation.PayPolicy{}, fmt.Errorf("lookback_months must be positive, got %d", *pj.LookbackMonths)
		}
		p.LookbackMonths = *pj.LookbackMonths
	}
	if pj.Legal12MIfBetter != nil {
		p.Legal12MIfBetter = *pj.Legal12MIfBetter
	}
	if pj.FixedRateDefault != nil {
		if pj.FixedRateDefault.IsNegative() {
			return valuation.PayPolicy{}, fmt.Errorf("fixed_rate_default must be >= 0, got %s", pj.FixedRateDefault)
		}
		p.FixedRateDefault = *pj.FixedRateDefault
	}
	if pj.AllowSilentFallback != nil {
		p.AllowSilentFallback = *pj.AllowSilentFallback
	}
	if pj.StandardDayHours != nil {
		if !pj.StandardDayHours.IsPositive() {
			return valuation.PayPolicy{}, fmt.Errorf("standard_day_hours must be positive, got %s", pj.StandardDayHours)
		}
		p.StandardDayHours = *pj.StandardDayHours
	}
	return p, nil
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseWeekend(days []string) ([]time.Weekday, error) {
	out := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		wd, ok := weekdays[strings.ToLower(strings.TrimSpace(d))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", d)
		}
		out = append(out, wd)
	}
	return out, nil
}
