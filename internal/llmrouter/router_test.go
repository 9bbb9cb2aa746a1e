package llmrouter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouteForDisabledPolicyAlwaysFast(t *testing.T) {
	policy := DefaultEscalationPolicy
	policy.Enabled = false
	got := RouteFor(RouteHint{TargetKind: TargetSymbol, PromptTokensApprox: 100000, Severity: SeverityHigh, Confidence: 0}, policy)
	assert.Equal(t, ProfileFast, got)
}

func TestRouteForEscalationBudgetExhausted(t *testing.T) {
	policy := DefaultEscalationPolicy
	hint := RouteHint{TargetKind: TargetSymbol, PromptTokensApprox: 100000, Severity: SeverityHigh, Confidence: 0, UsedEscalations: policy.MaxEscalations}
	assert.Equal(t, ProfileFast, RouteFor(hint, policy))
}

func TestRouteForBelowSeverityFloor(t *testing.T) {
	policy := DefaultEscalationPolicy
	hint := RouteHint{TargetKind: TargetSymbol, PromptTokensApprox: 100000, Severity: SeverityLow, Confidence: 0}
	assert.Equal(t, ProfileFast, RouteFor(hint, policy))
}

func TestRouteForSymbolLongPromptEscalates(t *testing.T) {
	policy := DefaultEscalationPolicy
	hint := RouteHint{TargetKind: TargetSymbol, PromptTokensApprox: policy.LongPromptTokens + 1, Severity: SeverityHigh, Confidence: 0.9}
	assert.Equal(t, ProfileSlow, RouteFor(hint, policy))
}

func TestRouteForWideRangeLowConfidenceEscalates(t *testing.T) {
	policy := DefaultEscalationPolicy
	hint := RouteHint{TargetKind: TargetRange, RangeSpanLines: 40, PromptTokensApprox: 10, Severity: SeverityHigh, Confidence: 0.1}
	assert.Equal(t, ProfileSlow, RouteFor(hint, policy))
}

func TestRouteForNarrowRangeStaysFast(t *testing.T) {
	policy := DefaultEscalationPolicy
	hint := RouteHint{TargetKind: TargetRange, RangeSpanLines: 5, PromptTokensApprox: policy.LongPromptTokens + 1, Severity: SeverityHigh, Confidence: 0.1}
	assert.Equal(t, ProfileFast, RouteFor(hint, policy))
}

func TestRouteForNearThresholdGuard(t *testing.T) {
	policy := DefaultEscalationPolicy
	tokens := int(float64(policy.LongPromptTokens)*0.9) + 1
	hint := RouteHint{TargetKind: TargetSymbol, PromptTokensApprox: tokens, Severity: SeverityHigh, Confidence: policy.MinConfidence + 0.04}
	assert.Equal(t, ProfileSlow, RouteFor(hint, policy))
}

func TestShouldEscalateUsesPostRunConfidence(t *testing.T) {
	policy := DefaultEscalationPolicy
	hint := RouteHint{TargetKind: TargetSymbol, PromptTokensApprox: 10, Severity: SeverityHigh}
	assert.True(t, ShouldEscalate(hint, 0.1, policy))
	assert.False(t, ShouldEscalate(hint, 0.99, policy))
}
