package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticketdesk.org/internal/access"
	"ticketdesk.org/internal/auth"
	"ticketdesk.org/internal/captcha"
	"ticketdesk.org/internal/httpapi"
	"ticketdesk.org/internal/obs"
	"ticketdesk.org/internal/quota"
	"ticketdesk.org/internal/store/pg"
	"ticketdesk.org/internal/ticket"
)

var (
	version = "1.2.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	dsn := os.Getenv("TICKETDESK_PG_DSN")
	if dsn == "" {
		log.Fatal("missing TICKETDESK_PG_DSN")
	}
	store, err := pg.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	secret := os.Getenv("TICKETDESK_AUTH_SECRET")
	if secret == "" {
		log.Fatal("missing TICKETDESK_AUTH_SECRET")
	}
	issuer, err := auth.NewIssuer([]byte(secret))
	if err != nil {
		log.Fatalf("issuer: %v", err)
	}

	// The anti-forgery secret may differ from the signing secret; it falls
	// back to it for single-secret deployments.
	csrfSecret := os.Getenv("TICKETDESK_CSRF_SECRET")
	if csrfSecret == "" {
		csrfSecret = secret
	}

	var challenge auth.ChallengeVerifier
	if verifyURL, captchaSecret := os.Getenv("TICKETDESK_CAPTCHA_VERIFY_URL"), os.Getenv("TICKETDESK_CAPTCHA_SECRET"); verifyURL != "" && captchaSecret != "" {
		challenge, err = captcha.New(verifyURL, captchaSecret)
		if err != nil {
			log.Fatalf("captcha: %v", err)
		}
	} else {
		log.Print("captcha not configured, accepting all challenge tokens")
		challenge = captcha.Static(true)
	}

	gate, err := auth.NewGate(quota.NewLedger(), store, challenge, issuer)
	if err != nil {
		log.Fatalf("gate: %v", err)
	}
	guard, err := ticket.NewService(store)
	if err != nil {
		log.Fatalf("guard: %v", err)
	}
	directory, err := auth.NewDirectory(store)
	if err != nil {
		log.Fatalf("directory: %v", err)
	}

	if err := bootstrapAdmin(directory); err != nil {
		log.Fatalf("bootstrap admin: %v", err)
	}

	api, err := httpapi.New(httpapi.Config{
		ReadyProbe: httpapi.ReadyProbe{DB: store.DB()},
		Version:    version,
		Gate:       gate,
		Issuer:     issuer,
		Guard:      guard,
		Directory:  directory,
		CSRFSecret: []byte(csrfSecret),
	})
	if err != nil {
		log.Fatalf("api: %v", err)
	}

	addr := os.Getenv("TICKETDESK_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	limiter := httpapi.NewRateLimiter(20, 10)
	defer limiter.Close()
	srv := &http.Server{
		Addr:              addr,
		Handler:           limiter.Wrap(api.Handler()),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting ticketdesk-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}

// bootstrapAdmin provisions the first administrator from the environment.
// An existing account with the same email is left untouched, so the
// variables can stay set across restarts.
func bootstrapAdmin(directory *auth.Directory) error {
	email := os.Getenv("TICKETDESK_ADMIN_EMAIL")
	password := os.Getenv("TICKETDESK_ADMIN_PASSWORD")
	if email == "" || password == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := directory.CreateUser(ctx, email, password, string(access.RoleAdmin))
	if errors.Is(err, auth.ErrAlreadyExists) {
		return nil
	}
	return err
}
