package result

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-employment-verify/internal/application/records"
	"github.com/go-employment-verify/internal/domain"
	"github.com/go-employment-verify/internal/obs"
)

type tracker interface {
	Get(ctx context.Context, verificationID string) (*domain.Verification, error)
	Advance(ctx context.Context, verificationID string, ev domain.Event, mutate records.Mutator) (*domain.Verification, error)
	RecordAttestation(ctx context.Context, verificationID, uid, failure string) (*domain.Verification, error)
}

type attestor interface {
	CreateAttestation(ctx context.Context, req domain.AttestationRequest) (string, error)
}

// Finalizer completes verifications and triggers attestation.
type Finalizer struct {
	tracker        tracker
	attestor       attestor
	attestNegative bool
}

type FinalizerDeps struct {
	Tracker tracker
	// Attestor is optional; without it no attestation is attempted.
	Attestor               attestor
	AttestNegativeOutcomes bool
}

func NewFinalizer(deps FinalizerDeps) *Finalizer {
	return &Finalizer{
		tracker:        deps.Tracker,
		attestor:       deps.Attestor,
		attestNegative: deps.AttestNegativeOutcomes,
	}
}

// Finalize aggregates outcomes and moves the verification to COMPLETED.
// Finalizing an already completed record returns it unchanged.
func (f *Finalizer) Finalize(ctx context.Context, verificationID string, outcomes []domain.ChannelOutcome) (*domain.Verification, error) {
	res, reason := Aggregate(outcomes)
	attest := f.shouldAttest(res)
	priorUID := ""
	if attest {
		priorUID = attestedByChannel(outcomes, res)
	}

	v, err := f.tracker.Advance(ctx, verificationID, domain.EventFinalized, func(v *domain.Verification) error {
		v.FinalResult = res
		v.FinalReason = reason
		v.AttestationRequested = attest
		if priorUID != "" {
			at := v.UpdatedAt
			v.AttestationUID = priorUID
			v.AttestationDate = &at
		}
		for _, step := range []domain.Step{domain.StepWebScan, domain.StepContactDiscovery, domain.StepPhoneCall, domain.StepEmailOutreach} {
			if e, ok := v.Progress[string(step)]; !ok || e.Status == domain.StepPending {
				v.SetProgress(step, domain.StepSkipped, "not needed", v.UpdatedAt)
			}
		}
		v.SetProgress(domain.StepFinalOutcome, domain.StepCompleted, reason, v.UpdatedAt)
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			if cur, getErr := f.tracker.Get(ctx, verificationID); getErr == nil && cur.Status == domain.StatusCompleted {
				return cur, nil
			}
		}
		return nil, err
	}

	slog.Info("verification completed", "verification_id", verificationID, "result", res, "reason", reason)

	switch {
	case !attest:
		obs.ObserveAttestation(string(res), "skipped")
	case priorUID != "":
		obs.ObserveAttestation(string(res), "created")
	default:
		if updated := f.attest(ctx, v, outcomes); updated != nil {
			v = updated
		}
	}
	return v, nil
}

func (f *Finalizer) shouldAttest(r domain.Result) bool {
	switch r {
	case domain.ResultYes:
		return true
	case domain.ResultNo, domain.ResultRefused:
		return f.attestNegative
	}
	return false
}

// attest never reverts the terminal status; failures are recorded on the
// record.
func (f *Finalizer) attest(ctx context.Context, v *domain.Verification, outcomes []domain.ChannelOutcome) *domain.Verification {
	if f.attestor == nil {
		obs.ObserveAttestation(string(v.FinalResult), "skipped")
		return nil
	}
	uid, err := f.attestor.CreateAttestation(ctx, domain.AttestationRequest{
		CandidateName:      v.CandidateName,
		EmployerName:       v.CompanyName,
		JobTitle:           v.JobTitle,
		Dates:              v.EmploymentDates,
		VerificationMethod: Method(outcomes, v.FinalResult),
		VerificationDate:   v.UpdatedAt,
		Result:             v.FinalResult,
		VerificationID:     v.VerificationID,
	})
	failure := ""
	if err != nil {
		slog.Warn("create attestation", "verification_id", v.VerificationID, "err", err)
		obs.ObserveAttestation(string(v.FinalResult), "failed")
		failure = err.Error()
	} else {
		obs.ObserveAttestation(string(v.FinalResult), "created")
	}

	updated, err := f.tracker.RecordAttestation(ctx, v.VerificationID, uid, failure)
	if err != nil {
		slog.Error("record attestation", "verification_id", v.VerificationID, "uid", uid, "err", err)
		return nil
	}
	return updated
}

// attestedByChannel returns the attestation a channel already created for
// the final result. Attestations of a different answer are never reused.
func attestedByChannel(outcomes []domain.ChannelOutcome, res domain.Result) string {
	for _, o := range outcomes {
		if o.AttestationUID != "" && o.Result == res {
			return o.AttestationUID
		}
	}
	return ""
}
