package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joelsfoster/gizmo/internal/cfg"
	"github.com/joelsfoster/gizmo/internal/engine"
	"github.com/joelsfoster/gizmo/internal/exchange"
	"github.com/joelsfoster/gizmo/internal/exchange/bybit"
	"github.com/joelsfoster/gizmo/internal/exchange/paper"
	"github.com/joelsfoster/gizmo/internal/history"
	"github.com/joelsfoster/gizmo/internal/metrics"
	"github.com/joelsfoster/gizmo/internal/notify"
	tsignal "github.com/joelsfoster/gizmo/internal/signal"
	"github.com/joelsfoster/gizmo/internal/storage"
	"github.com/joelsfoster/gizmo/internal/webhook"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	orderHistoryLimit = 50
	historyBuffer     = 256
	shutdownTimeout   = 10 * time.Second
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment variables")
	}
	logFile := setupLogging()
	defer logFile.Close()

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	log.Info().
		Str("symbol", c.Symbol()).
		Str("exchange", c.Exchange).
		Bool("paper", c.Paper()).
		Bool("test_mode", c.TestMode).
		Str("category", c.Category).
		Str("margin", c.MarginCoin()).
		Msg("gizmo starting")

	// Initialize components
	m := metrics.New()
	mw := metrics.NewWrapper(m)

	feedCtx, stopFeed := context.WithCancel(context.Background())
	defer stopFeed()

	tracker := exchange.NewTracker(initializeExchange(feedCtx, c), orderHistoryLimit)
	tracker.SetMetrics(mw)

	e := engine.New(tracker, engine.ConfigFrom(c))
	e.SetMetrics(mw)
	mw.GateStateSet(string(e.State().Gate.Phase()))

	recorder, closers := initializeHistory(c)
	recorder.SetMetrics(mw)
	defer func() {
		for _, cl := range closers {
			if err := cl.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close history sink")
			}
		}
	}()

	symbol := c.Symbol()
	worker := engine.NewWorker(e, c.QueueSize, c.TrailGrace)
	worker.OnResult(func(t tsignal.Trade, res engine.Result) {
		recorder.Record(history.NewEntry(symbol, t, res))
	})

	// Contexts for graceful shutdown: the worker stops first so the
	// recorder can flush what it produced.
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	historyCtx, stopHistory := context.WithCancel(context.Background())
	defer stopHistory()

	go recorder.Run(historyCtx)
	go worker.Run(workerCtx)

	srv := webhook.NewServer(webhook.Config{AuthID: c.AuthID, Port: c.Port, Symbol: symbol}, worker, e)
	srv.SetOrders(tracker)
	srv.SetMetrics(mw)

	fatal := make(chan error, 2)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			fatal <- fmt.Errorf("webhook server: %w", err)
		}
	}()
	metricsSrv := startMetricsServer(c, fatal)

	waitForShutdown(fatal)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown webhook server")
	}
	if err := metricsSrv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown metrics server")
	}

	stopWorker()
	waitFor(ctx, worker.Done(), "worker")
	stopFeed()
	stopHistory()
	waitFor(ctx, recorder.Done(), "history recorder")
	log.Info().Msg("gizmo stopped")
}

// initializeExchange returns the paper exchange for dry runs and the Bybit
// client otherwise. A paper exchange with a price feed follows the public
// ticker of the configured Bybit endpoint until ctx is cancelled.
func initializeExchange(ctx context.Context, c cfg.Settings) exchange.Client {
	if c.Paper() {
		log.Warn().
			Float64("free", c.PaperFreeBalance).
			Float64("price", c.PaperPrice).
			Float64("leverage", c.PaperLeverage).
			Dur("price_feed", c.PaperFeed).
			Msg("paper trading, no orders reach the exchange")
		px := paper.New(paper.Config{
			Free:     c.PaperFreeBalance,
			Price:    c.PaperPrice,
			Leverage: c.PaperLeverage,
		})
		if c.PaperFeed > 0 {
			// Market data is public; the ticker needs no credentials.
			feed := bybit.NewREST(bybit.Config{
				BaseURL:  c.BaseURL,
				Category: c.Category,
				Timeout:  c.RESTTimeout,
			})
			go px.Follow(ctx, feed, c.Symbol(), c.PaperFeed)
		} else {
			log.Warn().Msg("paper price is fixed, resting limit orders fill only when marketable")
		}
		return px
	}
	return bybit.NewREST(bybit.Config{
		Key:         c.Key,
		Secret:      c.Secret,
		BaseURL:     c.BaseURL,
		Category:    c.Category,
		AccountType: c.AccountType,
		RecvWindow:  c.RecvWindow,
		Timeout:     c.RESTTimeout,
	})
}

// initializeHistory builds the recorder with every configured sink. Sinks
// that fail to open are skipped with a warning.
func initializeHistory(c cfg.Settings) (*history.Recorder, []io.Closer) {
	sinks := []history.Sink{history.LogSink{Level: zerolog.InfoLevel}}
	var closers []io.Closer

	if c.DataPath != "" {
		store, err := storage.New(c.DataPath)
		if err != nil {
			log.Warn().Err(err).Msg("journal initialization failed, continuing without it")
		} else {
			sinks = append(sinks, store)
			closers = append(closers, store)
		}
	}

	if c.HistoryDSN != "" {
		db, err := history.NewDatabase(c.HistoryDSN)
		if err != nil {
			log.Warn().Err(err).Msg("history database initialization failed, continuing without it")
		} else {
			sinks = append(sinks, db)
			closers = append(closers, db)
		}
	}

	if c.TelegramToken != "" {
		tg, err := notify.NewTelegram(c.TelegramToken, c.TelegramChatID)
		if err != nil {
			log.Warn().Err(err).Msg("telegram initialization failed, continuing without it")
		} else {
			sinks = append(sinks, tg)
		}
	}

	r := history.NewRecorder(historyBuffer, sinks...)
	log.Info().Strs("sinks", r.Sinks()).Msg("history recorder ready")
	return r, closers
}

// startMetricsServer starts the Prometheus metrics HTTP server
func startMetricsServer(c cfg.Settings, fatal chan<- error) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", c.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("starting metrics server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal <- fmt.Errorf("metrics server: %w", err)
		}
	}()
	return server
}

// waitForShutdown blocks until a shutdown signal or a server failure.
func waitForShutdown(fatal <-chan error) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case err := <-fatal:
		log.Error().Err(err).Msg("server failed")
	}
	log.Info().Msg("shutting down gracefully...")
}

func waitFor(ctx context.Context, done <-chan struct{}, name string) {
	select {
	case <-done:
		log.Info().Str("component", name).Msg("stopped")
	case <-ctx.Done():
		log.Warn().Str("component", name).Msg("shutdown timeout, forcing exit")
	}
}
