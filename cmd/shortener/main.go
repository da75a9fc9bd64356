package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/atinyakov/suborg-shortener/internal/app/server"
	"github.com/atinyakov/suborg-shortener/internal/app/service"
	"github.com/atinyakov/suborg-shortener/internal/config"
	"github.com/atinyakov/suborg-shortener/internal/logger"
	"github.com/atinyakov/suborg-shortener/internal/repository"
	"github.com/atinyakov/suborg-shortener/internal/storage"
	"github.com/atinyakov/suborg-shortener/internal/worker"

	_ "net/http/pprof"
)

var buildVersion string
var buildDate string
var buildCommit string

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func main() {
	fmt.Printf("Build version: %s\n", orNA(buildVersion))
	fmt.Printf("Build date: %s\n", orNA(buildDate))
	fmt.Printf("Build commit: %s\n", orNA(buildCommit))

	options, err := config.Parse()
	if err != nil {
		panic(err)
	}

	log := logger.New()
	if err := log.Init(options.LogLevel); err != nil {
		panic(err)
	}
	defer func() {
		_ = log.Log.Sync()
	}()

	if err := run(options, log); err != nil {
		log.Log.Fatal("shortener stopped", zap.Error(err))
	}
}

func run(options *config.Options, log *logger.Logger) error {
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if options.EnablePprof {
		go func() {
			zapLogger.Info("Starting pprof server", zap.String("addr", "localhost:6060"))
			if err := http.ListenAndServe("localhost:6060", nil); err != nil {
				zapLogger.Error("pprof server error", zap.Error(err))
			}
		}()
	}

	s, closeStorage, err := newStorage(ctx, options, zapLogger)
	if err != nil {
		return err
	}
	defer closeStorage()

	var journal worker.Journal
	if options.DriftLogPath != "" {
		driftLog, err := storage.NewDriftLog(options.DriftLogPath, log.Component("driftlog"))
		if err != nil {
			return fmt.Errorf("open drift log: %w", err)
		}
		defer driftLog.Close()
		journal = driftLog
	}

	driftWorker := worker.NewCounterDriftWorker(log.Component("drift"), s, journal, options.ReconcileInterval)

	// not tied to ctx: the worker stops after the server has drained
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		driftWorker.FlushRecords(workerCtx)
	}()

	urlService, err := newService(options, s, driftWorker, log)
	if err != nil {
		return err
	}

	r, err := server.Init(options.ResultHostname, log.Component("http"), urlService, options.RateLimit)
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	srv := &http.Server{
		Addr:    options.Port,
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		if options.EnableHTTPS {
			manager := &autocert.Manager{
				Cache:      autocert.DirCache("cache-dir"),
				Prompt:     autocert.AcceptTOS,
				HostPolicy: autocert.HostWhitelist(hostOf(options.ResultHostname)),
			}
			srv.Addr = ":443"
			srv.TLSConfig = manager.TLSConfig()
			zapLogger.Info("Server is running with TLS", zap.String("host", hostOf(options.ResultHostname)))
			errCh <- srv.ListenAndServeTLS("", "")
			return
		}

		zapLogger.Info("Server is running", zap.String("hostname", options.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		zapLogger.Info("Shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			stopWorker()
			wg.Wait()
			return err
		}
	}

	shutdown(srv, stopWorker, &wg, zapLogger)
	return nil
}

// shutdown stops accepting requests and waits for in-flight ones before it
// stops the drift worker, so drift reported while draining still reaches it.
func shutdown(srv *http.Server, stopWorker context.CancelFunc, wg *sync.WaitGroup, zapLogger *zap.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("graceful shutdown failed", zap.Error(err))
	}

	stopWorker()
	wg.Wait()
}

// newStorage opens Postgres when a DSN is configured and the in-memory
// store otherwise.
func newStorage(ctx context.Context, options *config.Options, zapLogger *zap.Logger) (service.Storage, func(), error) {
	if options.DatabaseDSN == "" {
		zapLogger.Info("using in memory storage")
		s, err := storage.CreateMemoryStorage()
		return s, func() {}, err
	}

	zapLogger.Info("using db")
	db, err := repository.InitDB(ctx, options.DatabaseDSN, zapLogger)
	if err != nil {
		return nil, nil, fmt.Errorf("init db: %w", err)
	}
	zapLogger.Info("Database connected and migrated.")

	return repository.CreateURLRepository(db, zapLogger), func() { _ = db.Close() }, nil
}

func newService(options *config.Options, s service.Storage, reporter service.DriftReporter, log *logger.Logger) (*service.URLService, error) {
	generator, err := service.NewEndpointGenerator(options.EndpointLength, options.AllocationAttempts, s)
	if err != nil {
		return nil, err
	}

	var checker service.LivenessChecker = service.NewDNSChecker(options.DNSTimeout, options.DNSCacheTTL, log.Component("dns"))
	if options.SkipDNSCheck {
		checker = service.StaticChecker(true)
	}

	return service.NewURL(
		s,
		generator,
		service.NewAliasValidator(s, options.ReservedWords),
		service.NewDestinationNormalizer(checker),
		service.NewCounterService(s, reporter, log.Component("counters")),
		log.Component("service"),
	), nil
}

func hostOf(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Hostname() == "" {
		return baseURL
	}
	return u.Hostname()
}
