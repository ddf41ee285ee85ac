package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soaringjerry/stsportal/internal/api"
	"github.com/soaringjerry/stsportal/internal/archive"
	"github.com/soaringjerry/stsportal/internal/config"
	"github.com/soaringjerry/stsportal/internal/events"
	"github.com/soaringjerry/stsportal/internal/middleware"
	"github.com/soaringjerry/stsportal/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var publisher services.EventPublisher = services.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() {
			if err := kp.Close(); err != nil {
				logger.Warn("close kafka writer", "err", err)
			}
		}()
		publisher = kp
		logger.Info("publishing session events", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	var sink services.ArchiveSink
	if cfg.S3.Bucket != "" {
		s3sink, err := archive.NewS3Sink(ctx, cfg.S3.Bucket, cfg.S3.Region, cfg.S3.Endpoint)
		if err != nil {
			return err
		}
		sink = s3sink
		logger.Info("export archive enabled", "bucket", cfg.S3.Bucket)
	}

	jwt := middleware.NewJWT(cfg.JWT.Secret, nil)
	svc := api.NewServices(store, publisher, sink, jwt.Sign, cfg.JWT.TTL)
	jwt.SetRevocationChecker(svc.Auth)

	if err := bootstrapAdmin(ctx, svc.Auth, cfg.Admin); err != nil {
		return err
	}

	jobs, err := startJobs(cfg.Reaper.Schedule, cfg.SessionTTL, svc.Sessions, svc.Auth)
	if err != nil {
		return err
	}
	defer func() { <-jobs.Stop().Done() }()

	mux := http.NewServeMux()
	api.NewRouter(store, svc, api.BuildInfo{Commit: cfg.Commit, BuildTime: cfg.BuildTime}).Register(mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(mux, cfg, jwt, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("STS portal listening", "addr", cfg.Addr, "env", cfg.Env, "db", cfg.DB.Driver)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newHandler mounts the frontend next to the API routes and wraps the mux
// in the middleware chain.
func newHandler(mux *http.ServeMux, cfg *config.Config, jwt *middleware.JWT, logger *slog.Logger) http.Handler {
	mountFrontend(mux, cfg, logger)
	return middleware.Recover(
		middleware.WithLogging(
			middleware.SecureHeaders(
				middleware.NoStore(
					middleware.CORS(cfg.CORSOrigins)(
						jwt.WithAuth(mux))))))
}

// mountFrontend serves the built SPA from StaticDir, or proxies to a dev
// server when DevFrontendURL is set.
func mountFrontend(mux *http.ServeMux, cfg *config.Config, logger *slog.Logger) {
	if cfg.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))
		return
	}
	if cfg.DevFrontendURL == "" {
		return
	}
	u, err := url.Parse(cfg.DevFrontendURL)
	if err != nil {
		logger.Warn("invalid dev frontend url", "url", cfg.DevFrontendURL, "err", err)
		return
	}
	rp := httputil.NewSingleHostReverseProxy(u)
	rp.ModifyResponse = func(res *http.Response) error {
		res.Header.Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
		res.Header.Set("Pragma", "no-cache")
		res.Header.Set("Expires", "0")
		return nil
	}
	mux.Handle("/", rp)
}
