package service

import (
	"testing"
	"time"

	"github.com/pretty1020/lept-reviewer/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestDeriveEffectivePlan(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	tests := []struct {
		name   string
		plan   string
		expiry *time.Time
		want   EffectivePlan
	}{
		{"free", model.PlanFree, nil, EffectiveFree},
		{"pro", model.PlanPro, nil, EffectivePro},
		{"premium active", model.PlanPremium, &future, EffectivePremiumActive},
		{"premium expired", model.PlanPremium, &past, EffectivePremiumExpired},
		{"premium exactly at expiry", model.PlanPremium, &now, EffectivePremiumExpired},
		{"premium without expiry treated as expired", model.PlanPremium, nil, EffectivePremiumExpired},
		{"unknown plan falls back to free", "TRIAL", nil, EffectiveFree},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveEffectivePlan(tt.plan, tt.expiry, now)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEffectivePlanString(t *testing.T) {
	assert.Equal(t, "FREE", EffectiveFree.String())
	assert.Equal(t, "PRO", EffectivePro.String())
	assert.Equal(t, "PREMIUM", EffectivePremiumActive.String())
	assert.Equal(t, "PREMIUM_EXPIRED", EffectivePremiumExpired.String())
}

func TestEffectivePlanUnlimited(t *testing.T) {
	assert.True(t, EffectivePremiumActive.Unlimited())
	assert.False(t, EffectivePro.Unlimited())
	assert.False(t, EffectiveFree.Unlimited())
	assert.False(t, EffectivePremiumExpired.Unlimited())
}
