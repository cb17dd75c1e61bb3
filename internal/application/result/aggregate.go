package result

import (
	"fmt"

	"github.com/go-employment-verify/internal/domain"
)

// Aggregate folds channel outcomes into a final result. Precedence is YES,
// then NO, then REFUSE_TO_DISCLOSE, then INCONCLUSIVE. A refusal followed by
// an email channel that timed out is INCONCLUSIVE.
func Aggregate(outcomes []domain.ChannelOutcome) (domain.Result, string) {
	if len(outcomes) == 0 {
		return domain.ResultInconclusive, "no HR contact found"
	}
	if o, ok := first(outcomes, domain.ResultYes); ok {
		return domain.ResultYes, fmt.Sprintf("employment confirmed by %s", o.Channel)
	}
	if o, ok := first(outcomes, domain.ResultNo); ok {
		return domain.ResultNo, fmt.Sprintf("employment denied by %s", o.Channel)
	}
	if o, ok := first(outcomes, domain.ResultRefused); ok {
		for _, later := range outcomes {
			if later.Channel == domain.ChannelEmail && later.Expired {
				return domain.ResultInconclusive, fmt.Sprintf("employer refused to disclose by %s; email response timed out", o.Channel)
			}
		}
		return domain.ResultRefused, fmt.Sprintf("employer refused to disclose by %s", o.Channel)
	}
	last := outcomes[len(outcomes)-1]
	if last.Expired {
		return domain.ResultInconclusive, "email response timed out"
	}
	return domain.ResultInconclusive, fmt.Sprintf("no definitive answer by %s", last.Channel)
}

// Method names the channel that decided the result for the attestation
// payload.
func Method(outcomes []domain.ChannelOutcome, r domain.Result) string {
	if o, ok := first(outcomes, r); ok {
		return string(o.Channel)
	}
	if len(outcomes) > 0 {
		return string(outcomes[len(outcomes)-1].Channel)
	}
	return "none"
}

func first(outcomes []domain.ChannelOutcome, r domain.Result) (domain.ChannelOutcome, bool) {
	for _, o := range outcomes {
		if o.Result == r {
			return o, true
		}
	}
	return domain.ChannelOutcome{}, false
}
