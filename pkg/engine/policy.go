package engine

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/HatiCode/viewcast/pkg/features"
)

// Decision labels.
const (
	DecisionRecord = "RECORD"
	DecisionSkip   = "DO NOT RECORD"
)

// Reference policy constants.
const (
	DefaultCPMYouTube = 2.0
	DefaultCPMTikTok  = 0.5
	DefaultThreshold  = 5.0

	// RevenueDecimals is the number of decimal places revenue is rounded to.
	RevenueDecimals = 2
)

// Policy is the fixed monetization and decision rule applied to a predicted
// view count. Nothing in it is learned.
type Policy struct {
	// CPMYouTube and CPMTikTok are revenue per 1000 views per platform.
	CPMYouTube float64
	CPMTikTok  float64

	// Threshold is the minimum unrounded revenue that yields DecisionRecord.
	Threshold float64

	// ClampNegative floors negative view predictions at zero before the
	// integer view count and revenue are derived.
	ClampNegative bool
}

// DefaultPolicy returns the reference policy: YouTube CPM 2.0, TikTok CPM 0.5,
// threshold 5.00, negative predictions clamped to zero.
func DefaultPolicy() Policy {
	return Policy{
		CPMYouTube:    DefaultCPMYouTube,
		CPMTikTok:     DefaultCPMTikTok,
		Threshold:     DefaultThreshold,
		ClampNegative: true,
	}
}

// Validate rejects negative CPMs and thresholds.
func (p Policy) Validate() error {
	if p.CPMYouTube < 0 || p.CPMTikTok < 0 {
		return errors.New("cpm values must be >= 0")
	}
	if p.Threshold < 0 {
		return fmt.Errorf("threshold %v must be >= 0", p.Threshold)
	}
	return nil
}

// CPM returns the CPM for an encoded platform code.
func (p Policy) CPM(platform int) float64 {
	if platform == features.PlatformTikTok {
		return p.CPMTikTok
	}
	return p.CPMYouTube
}

// Revenue converts a raw view estimate into revenue rounded to two decimals.
//
// Rounding is half away from zero applied to the shortest decimal
// representation of the computed float, so a computed 5.005 becomes 5.01
// and 2.505 becomes 2.51 regardless of how those values are stored in
// binary.
func (p Policy) Revenue(views float64, platform int) decimal.Decimal {
	return p.RawRevenue(views, platform).Round(RevenueDecimals)
}

// RawRevenue is the unrounded revenue for a view estimate.
func (p Policy) RawRevenue(views float64, platform int) decimal.Decimal {
	return decimal.NewFromFloat(views / 1000 * p.CPM(platform))
}

// RoundRevenue applies the revenue rounding rule to an arbitrary amount.
func RoundRevenue(amount float64) decimal.Decimal {
	return decimal.NewFromFloat(amount).Round(RevenueDecimals)
}

// Decide returns DecisionRecord when revenue reaches the threshold.
// Callers pass the unrounded amount: 4.996 displays as 5.00 but does not record.
func (p Policy) Decide(revenue decimal.Decimal) string {
	if revenue.GreaterThanOrEqual(decimal.NewFromFloat(p.Threshold)) {
		return DecisionRecord
	}
	return DecisionSkip
}
