// Package subscription prices and manages paid listing plans. Tier
// resolution, plan pricing, and the consume-once payment verification
// flow all live here; Telegram wiring stays in the app layer.
package subscription

import (
	"errors"
	"regexp"
	"time"

	"github.com/dailyinfluencing/listingbot/bot/catalog"
)

// Tier is the pricing bracket a user falls into. Designers have a single
// tier; influencers are bracketed by community size.
type Tier string

const (
	TierDesigner Tier = "designer"
	TierMicro    Tier = "micro_influencer"
	TierStandard Tier = "standard_influencer"
	TierMega     Tier = "mega_influencer"
)

// Plan is a subscription duration key. The values double as the plan
// identifier carried in Paystack metadata and stored on the user record.
type Plan string

const (
	Plan1Month   Plan = "1month"
	Plan3Months  Plan = "3months"
	Plan12Months Plan = "12months"
)

var (
	// ErrIneligible means the influencer's community size is below the
	// smallest bracket.
	ErrIneligible = errors.New("subscription: community size below minimum")

	// ErrUnknownPlan means the tier/plan pair has no price.
	ErrUnknownPlan = errors.New("subscription: unknown plan")

	// ErrInvalidEmail means the stored email cannot be charged against.
	ErrInvalidEmail = errors.New("subscription: invalid email address")
)

// Community size thresholds for influencer tiers.
const (
	megaThreshold     = 100000
	standardThreshold = 50000
	microThreshold    = 10000
)

// planSeconds maps each plan to its lifetime. 30-day months.
var planSeconds = map[Plan]int64{
	Plan1Month:   2592000,
	Plan3Months:  7776000,
	Plan12Months: 31104000,
}

// priceMinor is the price table in kobo (NGN minor units).
var priceMinor = map[Tier]map[Plan]int64{
	TierDesigner: {Plan1Month: 3750000, Plan3Months: 9150000, Plan12Months: 36600000},
	TierMicro:    {Plan1Month: 3400000, Plan3Months: 8800000, Plan12Months: 31300000},
	TierStandard: {Plan1Month: 4900000, Plan3Months: 18800000, Plan12Months: 40300000},
	TierMega:     {Plan1Month: 6500000, Plan3Months: 16000000, Plan12Months: 55100000},
}

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether the address is chargeable.
func ValidEmail(email string) bool { return emailRe.MatchString(email) }

// ResolveTier maps a user's role and community size onto a pricing tier.
func ResolveTier(role string, communitySize int64) (Tier, error) {
	if role == catalog.RoleDesigner {
		return TierDesigner, nil
	}
	switch {
	case communitySize >= megaThreshold:
		return TierMega, nil
	case communitySize >= standardThreshold:
		return TierStandard, nil
	case communitySize >= microThreshold:
		return TierMicro, nil
	default:
		return "", ErrIneligible
	}
}

// PriceMinor returns the charge amount in kobo for a tier/plan pair.
func PriceMinor(tier Tier, plan Plan) (int64, error) {
	plans, ok := priceMinor[tier]
	if !ok {
		return 0, ErrUnknownPlan
	}
	price, ok := plans[plan]
	if !ok {
		return 0, ErrUnknownPlan
	}
	return price, nil
}

// Duration returns how long the plan runs. Zero for unknown plans.
func (p Plan) Duration() time.Duration {
	return time.Duration(planSeconds[p]) * time.Second
}

// Valid reports whether p names a purchasable plan.
func (p Plan) Valid() bool {
	_, ok := planSeconds[p]
	return ok
}

// Option is one selectable plan shown on the pricing menu.
type Option struct {
	Plan  Plan
	Label string
}

// planOrder fixes menu ordering.
var planOrder = []Plan{Plan1Month, Plan3Months, Plan12Months}

var planLabels = map[Plan]string{
	Plan1Month:   "1 Month",
	Plan3Months:  "3 Months",
	Plan12Months: "12 Months",
}

// Options lists the purchasable plans for a tier with price-tagged labels,
// cheapest first.
func Options(tier Tier) ([]Option, error) {
	plans, ok := priceMinor[tier]
	if !ok {
		return nil, ErrUnknownPlan
	}
	out := make([]Option, 0, len(planOrder))
	for _, p := range planOrder {
		price, ok := plans[p]
		if !ok {
			continue
		}
		out = append(out, Option{
			Plan:  p,
			Label: "Subscribe to " + planLabels[p] + " (₦" + formatNaira(price) + ")",
		})
	}
	return out, nil
}

// formatNaira renders a kobo amount as grouped whole naira, e.g. 3750000
// becomes "37,500".
func formatNaira(minor int64) string {
	naira := minor / 100
	digits := []byte{}
	if naira == 0 {
		return "0"
	}
	for i := 0; naira > 0; i++ {
		if i > 0 && i%3 == 0 {
			digits = append([]byte{','}, digits...)
		}
		digits = append([]byte{'0' + byte(naira%10)}, digits...)
		naira /= 10
	}
	return string(digits)
}
