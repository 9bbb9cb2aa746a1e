package llmrouter

// RouteFor decides Fast vs Slow for a draft generation call, checking in
// order: disabled policy, escalation budget, severity floor, the main
// symbol/wide-range trigger, then a near-threshold guard before falling
// through to Fast.
func RouteFor(hint RouteHint, policy EscalationPolicy) Profile {
	if !policy.Enabled {
		return ProfileFast
	}
	if hint.UsedEscalations >= policy.MaxEscalations {
		return ProfileFast
	}
	if hint.Severity.rank() < policy.MinSeverity.rank() {
		return ProfileFast
	}

	wideRange := hint.TargetKind == TargetRange && hint.RangeSpanLines >= 40
	mainTrigger := hint.TargetKind == TargetSymbol || wideRange
	if mainTrigger && (hint.PromptTokensApprox > policy.LongPromptTokens || hint.Confidence < policy.MinConfidence) {
		return ProfileSlow
	}

	nearThresholdTokens := float64(policy.LongPromptTokens) * 0.9
	if mainTrigger && float64(hint.PromptTokensApprox) > nearThresholdTokens && hint.Confidence < policy.MinConfidence+0.05 {
		return ProfileSlow
	}

	return ProfileFast
}

// ShouldEscalate applies the same gating to a post-run confidence score,
// used by the caller to decide whether to re-run a Fast draft on Slow
// before incrementing UsedEscalations.
func ShouldEscalate(hint RouteHint, postRunConfidence float64, policy EscalationPolicy) bool {
	hint.Confidence = postRunConfidence
	return RouteFor(hint, policy) == ProfileSlow
}
