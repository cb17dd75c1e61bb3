package outreach

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-employment-verify/internal/domain"
	"github.com/go-employment-verify/internal/obs"
)

// Contact sources, in the order they are consulted.
const (
	SourceDiscovery = "discovery"
	SourceWebScan   = "web_scan"
	SourceUser      = "user"
)

type contacts struct {
	Phone       string
	PhoneSource string
	Email       string
	EmailSource string
}

func (c *contacts) complete() bool { return c.Phone != "" && c.Email != "" }

// merge fills the fields still empty.
func (c *contacts) merge(phone, email, source string) {
	if c.Phone == "" && phone != "" {
		c.Phone, c.PhoneSource = phone, source
	}
	if c.Email == "" && email != "" {
		c.Email, c.EmailSource = email, source
	}
}

func (c *contacts) source() string {
	switch {
	case c.PhoneSource != "" && c.EmailSource != "" && c.PhoneSource != c.EmailSource:
		return c.PhoneSource + "," + c.EmailSource
	case c.PhoneSource != "":
		return c.PhoneSource
	}
	return c.EmailSource
}

// discover resolves HR contacts from the discovery function, then a scan of
// the company site, then what the requester supplied. Lookup failures are
// recorded on the timeline and never abort outreach.
func (s *service) discover(ctx context.Context, v *domain.Verification) contacts {
	var c contacts

	if s.discoverer != nil {
		info, err := s.discoverer.DiscoverHRContact(ctx, v.CompanyName, v.CompanyDomain)
		if err != nil {
			slog.Warn("discover hr contact", "verification_id", v.VerificationID, "err", err)
		} else if !info.Empty() {
			c.merge(info.Phone, info.Email, SourceDiscovery)
		}
	}

	scanStatus, scanMsg := domain.StepSkipped, "Company website not scanned"
	switch {
	case c.complete():
		scanMsg = "Contacts already discovered"
	case v.CompanyDomain == "":
		scanMsg = "No company domain"
	case s.scanner == nil:
	default:
		info, err := s.scanner.Scan(ctx, v.CompanyDomain)
		switch {
		case err != nil:
			slog.Warn("scan company site", "verification_id", v.VerificationID, "domain", v.CompanyDomain, "err", err)
			scanStatus, scanMsg = domain.StepFailed, "Could not scan "+v.CompanyDomain
		case info.Empty():
			scanStatus, scanMsg = domain.StepCompleted, "No contacts found on "+v.CompanyDomain
		default:
			c.merge(info.Phone, info.Email, SourceWebScan)
			scanStatus, scanMsg = domain.StepCompleted, "Found "+describe(info.Phone, info.Email)+" on "+v.CompanyDomain
		}
	}

	c.merge(v.CompanyPhone, v.EmployerEmail, SourceUser)

	discStatus, discMsg := domain.StepCompleted, "HR contact: "+describe(c.Phone, c.Email)
	if c.Phone == "" && c.Email == "" {
		discStatus, discMsg = domain.StepFailed, "No HR contact found"
	}
	s.progress(ctx, v.VerificationID, func(v *domain.Verification) {
		v.ContactPhone = c.Phone
		v.ContactEmail = c.Email
		v.ContactSource = c.source()
		v.SetProgress(domain.StepWebScan, scanStatus, scanMsg, v.UpdatedAt)
		v.SetProgress(domain.StepContactDiscovery, discStatus, discMsg, v.UpdatedAt)
	})
	v.ContactPhone, v.ContactEmail, v.ContactSource = c.Phone, c.Email, c.source()
	return c
}

func describe(phone, email string) string {
	parts := make([]string, 0, 2)
	if phone != "" {
		parts = append(parts, "phone "+phone)
	}
	if email != "" {
		parts = append(parts, "email "+email)
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

func observeChannel(ch domain.Channel, result string) {
	obs.ObserveChannelOutcome(string(ch), result)
}
