package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-employment-verify/internal/application/consent"
	"github.com/go-employment-verify/internal/application/outreach"
	"github.com/go-employment-verify/internal/application/records"
	"github.com/go-employment-verify/internal/application/result"
	"github.com/go-employment-verify/internal/application/verification"
	"github.com/go-employment-verify/internal/config"
	"github.com/go-employment-verify/internal/domain"
	"github.com/go-employment-verify/internal/infrastructure/functions"
	jwtinfra "github.com/go-employment-verify/internal/infrastructure/jwt"
	s3infra "github.com/go-employment-verify/internal/infrastructure/s3"
	"github.com/go-employment-verify/internal/infrastructure/ses"
	"github.com/go-employment-verify/internal/infrastructure/smtp"
	"github.com/go-employment-verify/internal/infrastructure/sns"
	"github.com/go-employment-verify/internal/infrastructure/webscan"
	"github.com/go-employment-verify/internal/obs"
	"github.com/go-employment-verify/internal/pkg/mailtmpl"
	"github.com/go-employment-verify/internal/scheduler"
	transporthttp "github.com/go-employment-verify/internal/transport/http"
	"github.com/joho/godotenv"
)

type mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type lifecyclePublisher interface {
	Publish(ctx context.Context, ev domain.LifecycleEvent) error
}

type siteScanner interface {
	Scan(ctx context.Context, companyDomain string) (*domain.ContactInfo, error)
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()
	slog.SetDefault(obs.NewLogger(cfg.LogLevel, cfg.AppEnv))
	obs.Init()

	ctx := context.Background()
	st := openStores(ctx, cfg)

	// JWT provider (optional, protected routes reject everything without it).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		log.Printf("WARN: JWT provider not available: %v", err)
	}

	objects := s3infra.NewStore(s3infra.NewClient(cfg), cfg.S3BucketName)

	var mail mailer
	switch cfg.MailBackend {
	case "ses":
		m, err := ses.NewMailer(cfg)
		if err != nil {
			log.Fatalf("ses mailer: %v", err)
		}
		mail = m
	default:
		mail = smtp.NewMailer(cfg)
	}

	var publisher lifecyclePublisher
	if cfg.SNSTopicARN != "" {
		if p, err := sns.NewPublisher(cfg); err == nil {
			publisher = p
		} else {
			log.Printf("WARN: SNS publisher not available: %v", err)
		}
	}

	if cfg.FunctionsBaseURL == "" {
		log.Println("WARN: FUNCTIONS_BASE_URL not set, calls and resume analysis will fail")
	}
	fns := functions.NewClient(cfg.FunctionsBaseURL, cfg.FunctionsAPIKey, cfg.FunctionsTimeout)

	var scanner siteScanner
	if cfg.WebScanEnabled {
		scanner = webscan.NewScanner(&http.Client{Timeout: cfg.WebScanTimeout})
	}

	templates := mailtmpl.NewStore()

	tracker := records.NewTracker(records.TrackerDeps{
		VerificationRepo: st.verifications,
		Publisher:        publisher,
	})
	finalizer := result.NewFinalizer(result.FinalizerDeps{
		Tracker:                tracker,
		Attestor:               fns,
		AttestNegativeOutcomes: cfg.AttestNegativeOutcomes,
	})
	outreachSvc := outreach.NewService(outreach.ServiceDeps{
		VerificationRepo:     st.verifications,
		Tracker:              tracker,
		CallRepo:             st.calls,
		EmailRepo:            st.emails,
		Caller:               fns,
		Discoverer:           fns,
		Scanner:              scanner,
		Mailer:               mail,
		Templates:            templates,
		Finalizer:            finalizer,
		PublicBaseURL:        cfg.PublicBaseURL,
		EmailResponseTimeout: cfg.Outreach.EmailResponseTimeout,
		Lease:                cfg.Outreach.Lease,
	})
	queue := outreach.NewQueue(outreachSvc, cfg.Outreach.Workers, cfg.Outreach.QueueSize, cfg.Outreach.Lease)
	consentSvc := consent.NewService(consent.ServiceDeps{
		ConsentRepo:      st.consents,
		VerificationRepo: st.verifications,
		Tracker:          tracker,
		Mailer:           mail,
		Templates:        templates,
		Queue:            queue,
		PublicBaseURL:    cfg.PublicBaseURL,
		TokenTTL:         cfg.Outreach.ConsentTokenTTL,
	})
	verificationSvc := verification.NewService(verification.ServiceDeps{
		VerificationRepo: st.verifications,
		CallRepo:         st.calls,
		EmailRepo:        st.emails,
		EvidenceRepo:     st.evidence,
		Consent:          consentSvc,
		Queue:            queue,
		Objects:          objects,
		Analyzer:         fns,
		Mailer:           mail,
		Templates:        templates,
		TierLimits:       cfg.TierLimits,
		PublicBaseURL:    cfg.PublicBaseURL,
		WorkEmailTTL:     cfg.Outreach.WorkEmailTokenTTL,
	})

	queue.Start()
	sched := scheduler.New(scheduler.Deps{
		Outreach: outreachSvc,
		Consent:  consentSvc,
		Queue:    queue,
		Config: scheduler.Config{
			CallPollInterval: cfg.Outreach.CallPollInterval,
			SweepInterval:    cfg.Outreach.SweepInterval,
		},
	})
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("scheduler: %v", err)
	}

	router := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		Verifications: verificationSvc,
		Consent:       consentSvc,
		Outreach:      outreachSvc,
		JWTProvider:   jwtProvider,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s, store=%s)", cfg.AppPort, cfg.AppEnv, cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
	sched.Stop()
	queue.Stop(shutdownCtx)
	log.Println("Server stopped")
}
