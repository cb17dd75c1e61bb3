package http

import (
	"github.com/go-employment-verify/internal/application/consent"
	"github.com/go-employment-verify/internal/application/outreach"
	"github.com/go-employment-verify/internal/application/verification"
	jwtinfra "github.com/go-employment-verify/internal/infrastructure/jwt"
)

// Deps holds the application services behind the router.
type Deps struct {
	Verifications verification.Service
	Consent       consent.Service
	Outreach      outreach.Service
	JWTProvider   *jwtinfra.Provider
}
