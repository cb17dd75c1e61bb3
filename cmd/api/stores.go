package main

import (
	"context"
	"log"
	"time"

	"github.com/go-employment-verify/internal/config"
	"github.com/go-employment-verify/internal/domain"
	"github.com/go-employment-verify/internal/infrastructure/dynamo"
	"github.com/go-employment-verify/internal/infrastructure/memory"
)

type verificationRepo interface {
	Create(ctx context.Context, v *domain.Verification) error
	Get(ctx context.Context, verificationID string) (*domain.Verification, error)
	Update(ctx context.Context, v *domain.Verification) error
	ClaimOutreach(ctx context.Context, verificationID string, now, staleBefore time.Time) error
	List(ctx context.Context, f domain.ListFilter) ([]domain.Verification, error)
	ListByStatus(ctx context.Context, status domain.Status) ([]domain.Verification, error)
	CountByRequesterSince(ctx context.Context, userID string, since time.Time) (int, error)
}

type consentRepo interface {
	Create(ctx context.Context, c *domain.Consent) error
	Get(ctx context.Context, verificationID string) (*domain.Consent, error)
	GetByTokenHash(ctx context.Context, hash string) (*domain.Consent, error)
	Decide(ctx context.Context, verificationID string, status domain.ConsentStatus, at time.Time) error
}

type callRepo interface {
	Create(ctx context.Context, c *domain.Call) error
	ListByVerification(ctx context.Context, verificationID string) ([]domain.Call, error)
	ListInProgress(ctx context.Context) ([]domain.Call, error)
	GetByExternalID(ctx context.Context, externalID string) (*domain.Call, error)
	Complete(ctx context.Context, c *domain.Call) error
}

type emailRepo interface {
	Create(ctx context.Context, e *domain.EmployerEmailVerification) error
	ListByVerification(ctx context.Context, verificationID string) ([]domain.EmployerEmailVerification, error)
	ListPending(ctx context.Context) ([]domain.EmployerEmailVerification, error)
	GetByTokenHash(ctx context.Context, hash string) (*domain.EmployerEmailVerification, error)
	Resolve(ctx context.Context, verificationID, emailVerificationID string, status domain.EmailStatus, at time.Time) error
	Reissue(ctx context.Context, verificationID, emailVerificationID, tokenHash string, expiresAt time.Time) error
	MarkSent(ctx context.Context, verificationID, emailVerificationID string, at time.Time) error
}

type evidenceRepo interface {
	Put(ctx context.Context, e *domain.Evidence) error
	ListByVerification(ctx context.Context, verificationID string) ([]domain.Evidence, error)
	GetByTokenHash(ctx context.Context, hash string) (*domain.Evidence, error)
	MarkVerified(ctx context.Context, verificationID, evidenceID string, at time.Time) error
}

type stores struct {
	verifications verificationRepo
	consents      consentRepo
	calls         callRepo
	emails        emailRepo
	evidence      evidenceRepo
}

// openStores returns the record stores for STORE_BACKEND. The memory backend
// keeps everything in process and is meant for local runs only.
func openStores(ctx context.Context, cfg *config.Config) stores {
	if cfg.StoreBackend == "memory" {
		log.Println("WARN: using in-memory store, records are lost on restart")
		return stores{
			verifications: memory.NewVerificationRepo(),
			consents:      memory.NewConsentRepo(),
			calls:         memory.NewCallRepo(),
			emails:        memory.NewEmailVerificationRepo(),
			evidence:      memory.NewEvidenceRepo(),
		}
	}

	client := dynamo.NewClient(cfg)
	dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
	return stores{
		verifications: dynamo.NewVerificationRepo(client, cfg.DynamoTables.Verifications),
		consents:      dynamo.NewConsentRepo(client, cfg.DynamoTables.Consents),
		calls:         dynamo.NewCallRepo(client, cfg.DynamoTables.Calls),
		emails:        dynamo.NewEmailVerificationRepo(client, cfg.DynamoTables.EmailVerifications),
		evidence:      dynamo.NewEvidenceRepo(client, cfg.DynamoTables.Evidence),
	}
}
