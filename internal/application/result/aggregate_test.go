package result

import (
	"testing"

	"github.com/go-employment-verify/internal/domain"
	"github.com/stretchr/testify/assert"
)

func phone(r domain.Result) domain.ChannelOutcome {
	return domain.ChannelOutcome{Channel: domain.ChannelPhone, Result: r}
}

func email(r domain.Result) domain.ChannelOutcome {
	return domain.ChannelOutcome{Channel: domain.ChannelEmail, Result: r}
}

func expiredEmail() domain.ChannelOutcome {
	return domain.ChannelOutcome{Channel: domain.ChannelEmail, Result: domain.ResultInconclusive, Expired: true}
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []domain.ChannelOutcome
		want     domain.Result
		reason   string
	}{
		{"no contacts", nil, domain.ResultInconclusive, "no HR contact found"},
		{"phone yes", []domain.ChannelOutcome{phone(domain.ResultYes)}, domain.ResultYes, "employment confirmed by phone"},
		{"phone no without fallback", []domain.ChannelOutcome{phone(domain.ResultNo)}, domain.ResultNo, "employment denied by phone"},
		{"email yes beats phone no", []domain.ChannelOutcome{phone(domain.ResultNo), email(domain.ResultYes)}, domain.ResultYes, "employment confirmed by email"},
		{"no beats refusal", []domain.ChannelOutcome{phone(domain.ResultRefused), email(domain.ResultNo)}, domain.ResultNo, "employment denied by email"},
		{"refusal alone", []domain.ChannelOutcome{phone(domain.ResultRefused)}, domain.ResultRefused, "employer refused to disclose by phone"},
		{"refusal then email timeout", []domain.ChannelOutcome{phone(domain.ResultRefused), expiredEmail()}, domain.ResultInconclusive, "employer refused to disclose by phone; email response timed out"},
		{"email timeout alone", []domain.ChannelOutcome{expiredEmail()}, domain.ResultInconclusive, "email response timed out"},
		{"inconclusive call", []domain.ChannelOutcome{phone(domain.ResultInconclusive)}, domain.ResultInconclusive, "no definitive answer by phone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := Aggregate(tt.outcomes)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestMethod(t *testing.T) {
	assert.Equal(t, "email", Method([]domain.ChannelOutcome{phone(domain.ResultNo), email(domain.ResultYes)}, domain.ResultYes))
	assert.Equal(t, "phone", Method([]domain.ChannelOutcome{phone(domain.ResultInconclusive)}, domain.ResultInconclusive))
	assert.Equal(t, "none", Method(nil, domain.ResultInconclusive))
}
