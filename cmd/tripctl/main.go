package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/TravelAgent/client/internal/infrastructure/config"
	"github.com/GriffinCanCode/TravelAgent/client/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TravelAgent/client/internal/infrastructure/monitoring"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "YAML or TOML config file")
	apiURL := flag.String("api", "", "Backend HTTP URL (overrides API_URL)")
	wsURL := flag.String("ws", "", "Backend WebSocket URL (overrides WS_URL)")
	sessionFile := flag.String("session", "", "Session id file (overrides SESSION_FILE)")
	dev := flag.Bool("dev", false, "Development logging")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *apiURL != "" {
		cfg.Backend.APIURL = *apiURL
	}
	if *wsURL != "" {
		cfg.Stream.WSURL = *wsURL
	}
	if *sessionFile != "" {
		cfg.Session.File = *sessionFile
	}
	if *dev {
		cfg.Logging.Development = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	metrics := monitoring.NewMetrics()
	metricsSrv := serveMetrics(cfg.Metrics.Addr, metrics, logger)

	a, err := newApp(cfg, logger, metrics, os.Stdout)
	if err != nil {
		logger.Fatal("Failed to start", zap.Error(err))
	}

	// Handle graceful shutdown; the signal also aborts an in-flight turn
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Read stdin in a goroutine so signals are not blocked by the prompt
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	a.greet()
	repl(ctx, a, lines, os.Stdout)
	if ctx.Err() != nil {
		fmt.Println("\nShutting down...")
	}

	a.close()
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics server shutdown", zap.Error(err))
		}
	}
}

// repl runs commands until /quit or end of input. Cancelling ctx aborts
// the running command and returns.
func repl(ctx context.Context, a *app, lines <-chan string, out io.Writer) {
	fmt.Fprint(out, "> ")
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			quit, err := a.handle(ctx, line)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				fmt.Fprintf(out, "! %v\n", err)
			}
			if quit {
				return
			}
			fmt.Fprint(out, "> ")
		}
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// serveMetrics exposes /metrics when addr is set
func serveMetrics(addr string, metrics *monitoring.Metrics, logger *logging.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("Serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	return srv
}
