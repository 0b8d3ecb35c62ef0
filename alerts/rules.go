// Package alerts evaluates user price alerts against synced card prices.
package alerts

import (
	"fmt"
	"math"
	"time"

	"tcg-companion/models"
)

// Observation is what a rule is checked against. Previous is only set for rules with a
// lookback window and is nil when no price was logged that far back.
type Observation struct {
	Current  float64
	Previous *float64
}

// Outcome is the result of checking a rule. PercentChange is set for percent rules that had
// a previous price.
type Outcome struct {
	Triggered     bool
	PercentChange *float64
}

// Rule is one of AboveValueRule, BelowValueRule or PercentChangeRule.
type Rule interface {
	Type() models.ThresholdType
	Check(obs Observation) Outcome
	sealed()
}

type AboveValueRule struct {
	Threshold float64
}

func (AboveValueRule) Type() models.ThresholdType { return models.ThresholdAboveValue }
func (AboveValueRule) sealed()                    {}

func (r AboveValueRule) Check(obs Observation) Outcome {
	return Outcome{Triggered: obs.Current > r.Threshold}
}

type BelowValueRule struct {
	Threshold float64
}

func (BelowValueRule) Type() models.ThresholdType { return models.ThresholdBelowValue }
func (BelowValueRule) sealed()                    {}

func (r BelowValueRule) Check(obs Observation) Outcome {
	return Outcome{Triggered: obs.Current < r.Threshold}
}

// PercentChangeRule triggers when the price moved by at least Threshold percent, in either
// direction, compared with the last price logged at or before now-Window.
type PercentChangeRule struct {
	Threshold float64
	Window    time.Duration
}

func (PercentChangeRule) Type() models.ThresholdType { return models.ThresholdPercentChange }
func (PercentChangeRule) sealed()                    {}

func (r PercentChangeRule) Check(obs Observation) Outcome {
	if obs.Previous == nil {
		return Outcome{}
	}
	pct := PercentChange(*obs.Previous, obs.Current)
	return Outcome{Triggered: math.Abs(pct) >= r.Threshold, PercentChange: &pct}
}

// PercentChange returns (cur-prev)/prev*100. From zero it is 0 when nothing moved and
// 100 otherwise.
func PercentChange(prev, cur float64) float64 {
	if prev == 0 {
		if cur == 0 {
			return 0
		}
		return 100
	}
	return (cur - prev) / prev * 100
}

// RuleFor builds the rule for a stored alert.
func RuleFor(a models.CardPriceAlert) (Rule, error) {
	switch a.ThresholdType {
	case models.ThresholdAboveValue:
		return AboveValueRule{Threshold: a.ThresholdValue}, nil
	case models.ThresholdBelowValue:
		return BelowValueRule{Threshold: a.ThresholdValue}, nil
	case models.ThresholdPercentChange:
		if a.PercentWindowHours == nil || *a.PercentWindowHours <= 0 {
			return nil, fmt.Errorf("alert %d: PERCENT_CHANGE requires percent_window_hours", a.ID)
		}
		return PercentChangeRule{
			Threshold: a.ThresholdValue,
			Window:    time.Duration(*a.PercentWindowHours) * time.Hour,
		}, nil
	default:
		return nil, fmt.Errorf("alert %d: unknown threshold type %q", a.ID, a.ThresholdType)
	}
}
