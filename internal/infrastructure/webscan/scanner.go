package webscan

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/go-employment-verify/internal/domain"
)

// Pages checked on the company site, in order.
var contactPaths = []string{"/", "/contact", "/contact-us", "/careers", "/about"}

var hrPrefixes = []string{"hr", "humanresources", "people", "careers", "jobs", "talent", "recruiting", "verification"}

var nonDigits = regexp.MustCompile(`[^\d+]`)

// Scanner looks for HR phone numbers and mailboxes on a company website.
type Scanner struct {
	client *http.Client
}

// NewScanner wires an HTTP client; timeout defaults to 10s.
func NewScanner(client *http.Client) *Scanner {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Scanner{client: client}
}

// Scan walks the contact pages of companyDomain and returns the best phone
// and email found, or nil if the site yielded nothing.
func (s *Scanner) Scan(ctx context.Context, companyDomain string) (*domain.ContactInfo, error) {
	base, err := baseURL(companyDomain)
	if err != nil {
		return nil, err
	}

	var phones, emails []string
	var lastErr error
	fetched := 0
	for _, p := range contactPaths {
		doc, err := s.fetchDocument(ctx, base+p)
		if err != nil {
			lastErr = err
			continue
		}
		fetched++
		ph, em := extractContacts(doc)
		phones = append(phones, ph...)
		emails = append(emails, em...)
	}
	if fetched == 0 {
		return nil, fmt.Errorf("scan %s: %w", companyDomain, lastErr)
	}

	info := &domain.ContactInfo{Source: "web_scan"}
	if len(phones) > 0 {
		info.Phone = phones[0]
		info.Confidence += 0.3
	}
	if e, hr := pickEmail(emails, hostOf(base)); e != "" {
		info.Email = e
		info.Confidence += 0.2
		if hr {
			info.Confidence += 0.2
		}
	}
	if info.Empty() {
		return nil, nil
	}
	return info, nil
}

func (s *Scanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "EmploymentVerify/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %s", pageURL, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func extractContacts(doc *goquery.Document) (phones, emails []string) {
	doc.Find(`a[href^="tel:"]`).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if p := normalizePhone(strings.TrimPrefix(href, "tel:")); p != "" {
			phones = append(phones, p)
		}
	})
	doc.Find(`a[href^="mailto:"]`).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		addr := strings.TrimPrefix(href, "mailto:")
		if i := strings.Index(addr, "?"); i >= 0 {
			addr = addr[:i]
		}
		addr = strings.ToLower(strings.TrimSpace(addr))
		if strings.Contains(addr, "@") {
			emails = append(emails, addr)
		}
	})
	return phones, emails
}

// pickEmail prefers an HR-looking mailbox on the company's own domain.
func pickEmail(emails []string, host string) (string, bool) {
	var onDomain, any string
	for _, e := range emails {
		local, dom, _ := strings.Cut(e, "@")
		own := host != "" && (dom == host || strings.HasSuffix(host, "."+dom) || strings.HasSuffix(dom, "."+host))
		if own {
			for _, p := range hrPrefixes {
				if strings.HasPrefix(local, p) {
					return e, true
				}
			}
			if onDomain == "" {
				onDomain = e
			}
		}
		if any == "" {
			any = e
		}
	}
	if onDomain != "" {
		return onDomain, false
	}
	return any, false
}

// normalizePhone strips formatting and returns an E.164-looking number.
// Numbers without a country code are assumed to be North American.
func normalizePhone(raw string) string {
	p := nonDigits.ReplaceAllString(raw, "")
	hasPlus := strings.HasPrefix(p, "+")
	p = strings.ReplaceAll(p, "+", "")
	switch {
	case hasPlus && len(p) >= 8 && len(p) <= 15:
		return "+" + p
	case len(p) == 10:
		return "+1" + p
	case len(p) == 11 && strings.HasPrefix(p, "1"):
		return "+" + p
	}
	return ""
}

func baseURL(companyDomain string) (string, error) {
	d := strings.TrimSpace(companyDomain)
	if d == "" {
		return "", fmt.Errorf("empty company domain: %w", domain.ErrBadRequest)
	}
	if !strings.Contains(d, "://") {
		d = "https://" + d
	}
	u, err := url.Parse(d)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid company domain %q: %w", companyDomain, domain.ErrBadRequest)
	}
	return u.Scheme + "://" + u.Host, nil
}

func hostOf(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
