package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/finwise/auth-service/internal/config"
	"github.com/finwise/auth-service/internal/database"
	"github.com/finwise/auth-service/internal/handler"
	"github.com/finwise/auth-service/internal/middleware"
	"github.com/finwise/auth-service/internal/queue"
	"github.com/finwise/auth-service/internal/repository"
	"github.com/finwise/auth-service/internal/router"
	"github.com/finwise/auth-service/internal/service"
	"github.com/finwise/auth-service/internal/transport"
	"github.com/finwise/auth-service/internal/utils"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	users := repository.NewUserRepo(db)
	sessions := repository.NewSessionRepo(db)

	codec := utils.NewTokenCodec(cfg.AccessSecret, cfg.RefreshSecret, cfg.AccessTTL(), cfg.RefreshTTL())
	codes := service.NewSecurityCodes(users, sessions, cfg.BcryptCost)
	mailer := service.NewMailPublisherFromEnv()
	creds := &transport.CookieCarrier{Secure: cfg.CookieSecure()}

	h := handler.NewAuthHandler(cfg, users, sessions, codec, codes, mailer, creds)

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Print("redis unavailable, rate limiting disabled")
	}
	guess := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	authn := middleware.Authenticate(codec, users, creds)

	e := echo.New()
	router.Register(e, h, authn, guess)

	// Mail delivery worker; reconnects on its own.
	go func() {
		if err := queue.StartMailConsumer(); err != nil {
			log.Printf("mail consumer stopped: %v", err)
		}
	}()

	// Expired sessions are reclaimed in the background. Reads never
	// depend on this: IsUsable re-checks expiry itself.
	go sweepSessions(sessions)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

func sweepSessions(sessions *repository.SessionRepo) {
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for range t.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		n, err := sessions.DeleteExpired(ctx)
		cancel()
		if err != nil {
			log.Printf("session sweep: %v", err)
			continue
		}
		if n > 0 {
			log.Printf("session sweep: reclaimed %d expired sessions", n)
		}
	}
}
