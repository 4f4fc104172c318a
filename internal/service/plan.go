package service

import (
	"time"

	"github.com/pretty1020/lept-reviewer/internal/model"
)

// EffectivePlan is the plan a user actually holds right now. It differs
// from the stored plan in exactly one case: a stored PREMIUM whose expiry
// has passed is effectively expired until the record is downgraded.
type EffectivePlan int

const (
	EffectiveFree EffectivePlan = iota
	EffectivePro
	EffectivePremiumActive
	EffectivePremiumExpired
)

func (p EffectivePlan) String() string {
	switch p {
	case EffectivePro:
		return "PRO"
	case EffectivePremiumActive:
		return "PREMIUM"
	case EffectivePremiumExpired:
		return "PREMIUM_EXPIRED"
	default:
		return "FREE"
	}
}

// Unlimited reports whether consumption under this plan skips the quota
// decrement.
func (p EffectivePlan) Unlimited() bool {
	return p == EffectivePremiumActive
}

// DeriveEffectivePlan computes the effective plan from the stored record.
// It is called before every entitlement decision; when the result is
// EffectivePremiumExpired the caller must also apply the stored downgrade.
func DeriveEffectivePlan(storedPlan string, premiumExpiry *time.Time, now time.Time) EffectivePlan {
	switch storedPlan {
	case model.PlanPremium:
		if premiumExpiry != nil && premiumExpiry.After(now) {
			return EffectivePremiumActive
		}
		return EffectivePremiumExpired
	case model.PlanPro:
		return EffectivePro
	default:
		return EffectiveFree
	}
}
