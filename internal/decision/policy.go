package decision

// IsGoodLogin reports whether the login may proceed. Only allow and review
// pass; reject and any decision the client does not recognise are refused.
func IsGoodLogin(resp *ScoringResponse) bool {
	if resp == nil {
		return false
	}
	switch resp.Decision {
	case DecisionAllow, DecisionReview:
		return true
	default:
		return false
	}
}
