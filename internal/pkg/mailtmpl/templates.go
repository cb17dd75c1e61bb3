package mailtmpl

import (
	"fmt"
	"strings"
	"sync"
	"text/template"
)

// Template names.
const (
	ConsentRequest  = "consent_request"
	EmployerRequest = "employer_request"
	WorkEmail       = "work_email_confirm"
)

// ConsentData fills the consent_request template.
type ConsentData struct {
	CandidateName string
	CompanyName   string
	ApproveURL    string
	DenyURL       string
}

// EmployerData fills the employer_request template.
type EmployerData struct {
	CandidateName   string
	CompanyName     string
	JobTitle        string
	EmploymentDates string
	ConfirmURL      string
	DenyURL         string
	RefuseURL       string
}

// WorkEmailData fills the work_email_confirm template.
type WorkEmailData struct {
	CandidateName string
	CompanyName   string
	ConfirmURL    string
}

const consentBody = `Hi {{.CandidateName}},

An employer screening your application asked us to verify your employment at {{.CompanyName}}.
We will only contact {{.CompanyName}} if you agree.

Approve: {{.ApproveURL}}
Deny:    {{.DenyURL}}
`

const employerBody = `Hello,

{{.CandidateName}} listed {{.CompanyName}} as a past employer{{if .JobTitle}} with the title "{{.JobTitle}}"{{end}}{{if .EmploymentDates}} ({{.EmploymentDates}}){{end}}.
The candidate consented to this verification. Please choose one option:

Yes, this is accurate:     {{.ConfirmURL}}
No, this is not accurate:  {{.DenyURL}}
We do not disclose this:   {{.RefuseURL}}
`

const workEmailBody = `Hi {{.CandidateName}},

Open the link below from your {{.CompanyName}} mailbox to confirm you work there:

{{.ConfirmURL}}
`

// Store compiles and renders the named email templates.
type Store struct {
	mu        sync.RWMutex
	templates map[string]*template.Template
	subjects  map[string]string
}

// NewStore seeds the store with the built-in templates.
func NewStore() *Store {
	s := &Store{
		templates: make(map[string]*template.Template),
		subjects:  make(map[string]string),
	}
	_ = s.Register(ConsentRequest, "Consent requested: employment verification for {{.CompanyName}}", consentBody)
	_ = s.Register(EmployerRequest, "Employment verification request: {{.CandidateName}}", employerBody)
	_ = s.Register(WorkEmail, "Confirm your work email at {{.CompanyName}}", workEmailBody)
	return s
}

// Register adds or replaces a template and its subject line.
func (s *Store) Register(name, subject, body string) error {
	tmpl, err := template.New(name).Parse(body)
	if err != nil {
		return fmt.Errorf("parse template %s: %w", name, err)
	}
	if _, err := tmpl.New("subject").Parse(subject); err != nil {
		return fmt.Errorf("parse subject %s: %w", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[name] = tmpl
	s.subjects[name] = subject
	return nil
}

// Render executes the template and returns subject and body.
func (s *Store) Render(name string, data any) (string, string, error) {
	s.mu.RLock()
	tmpl, ok := s.templates[name]
	s.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %s not found", name)
	}
	var subject, body strings.Builder
	if err := tmpl.ExecuteTemplate(&subject, "subject", data); err != nil {
		return "", "", fmt.Errorf("render subject %s: %w", name, err)
	}
	if err := tmpl.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("render template %s: %w", name, err)
	}
	return subject.String(), body.String(), nil
}
