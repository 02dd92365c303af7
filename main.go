// mailprotod is an example embedder of the protocol framework: it wires
// the SMTP, LMTP and POP3 handler chains to in-memory backends, binds the
// listeners from a TOML configuration and serves Prometheus metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jjYBdx4IL/james-protocols/config"
	"github.com/jjYBdx4IL/james-protocols/logger"
	"github.com/jjYBdx4IL/james-protocols/mem"
	"github.com/jjYBdx4IL/james-protocols/server"
	"github.com/jjYBdx4IL/james-protocols/server/lmtp"
	"github.com/jjYBdx4IL/james-protocols/server/pop3"
	"github.com/jjYBdx4IL/james-protocols/server/smtp"
)

func main() {
	configPath := flag.String("config", "config.toml", "Path to TOML configuration file")
	fLogOutput := flag.String("logoutput", "", "Log output destination: 'stdout', 'stderr', 'syslog' or a file path (overrides config)")
	fLogLevel := flag.String("loglevel", "", "Log level: debug, info, warn, error (overrides config)")
	fStartSmtp := flag.Bool("smtp", false, "Start the SMTP server even if disabled in config")
	fStartLmtp := flag.Bool("lmtp", false, "Start the LMTP server even if disabled in config")
	fStartPop3 := flag.Bool("pop3", false, "Start the POP3 server even if disabled in config")
	fUsers := flag.String("users", "", "Comma-separated user:password pairs for the in-memory backend")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
			os.Exit(1)
		}
		cfg = config.NewDefaultConfig()
	}
	if *fLogOutput != "" {
		cfg.Logging.Output = *fLogOutput
	}
	if *fLogLevel != "" {
		cfg.Logging.Level = *fLogLevel
	}
	if *fStartSmtp {
		cfg.Servers.SMTP.Start = true
	}
	if *fStartLmtp {
		cfg.Servers.LMTP.Start = true
	}
	if *fStartPop3 {
		cfg.Servers.POP3.Start = true
	}

	logFile, err := logger.Initialize(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	store := mem.NewStore()
	for _, pair := range strings.Split(*fUsers, ",") {
		if pair == "" {
			continue
		}
		username, password, ok := strings.Cut(pair, ":")
		if !ok {
			logger.Fatal("invalid -users entry, want user:password", "entry", pair)
		}
		if err := store.AddUser(username, password); err != nil {
			logger.Fatal("failed to add user", "user", username, "error", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var servers []*server.Server

	if cfg.Servers.SMTP.Start {
		s, err := buildSMTPServer(&cfg.Servers.SMTP, store)
		if err != nil {
			logger.Fatal("failed to build SMTP server", "error", err)
		}
		servers = append(servers, s)
	}
	if cfg.Servers.LMTP.Start {
		s, err := buildLMTPServer(&cfg.Servers.LMTP, store)
		if err != nil {
			logger.Fatal("failed to build LMTP server", "error", err)
		}
		servers = append(servers, s)
	}
	if cfg.Servers.POP3.Start {
		s, err := buildPOP3Server(&cfg.Servers.POP3, cfg.Servers.SMTP.HelloNameOrDefault(), store)
		if err != nil {
			logger.Fatal("failed to build POP3 server", "error", err)
		}
		servers = append(servers, s)
	}
	if len(servers) == 0 {
		logger.Fatal("no servers enabled; set servers.*.start or pass -smtp/-lmtp/-pop3")
	}

	for _, s := range servers {
		if err := s.Bind(ctx); err != nil {
			logger.Fatal("bind failed", "error", err)
		}
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		router := mux.NewRouter()
		router.Handle("/metrics", promhttp.Handler()).Methods("GET")
		router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, "ok")
		}).Methods("GET")

		metricsServer = &http.Server{Addr: cfg.Metrics.Addr, Handler: router}
		go func() {
			logger.Info("metrics endpoint listening", "addr", cfg.Metrics.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	for _, s := range servers {
		s.Unbind()
	}
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
}

func buildSMTPServer(cfg *config.SMTPConfig, store *mem.Store) (*server.Server, error) {
	options := smtp.ChainOptions{
		Auth:               store,
		StartTLS:           cfg.TLSCertFile != "" && cfg.TLSKeyFile != "",
		RequireAuthToRelay: cfg.RequireAuth || len(cfg.RelayNetworks) > 0,
	}
	chain, err := smtp.NewProtocolHandlerChain(options, mem.NewDeliveryHook(store))
	if err != nil {
		return nil, err
	}
	s := smtp.NewServer("smtp", cfg.Addr, chain, &smtpPolicy{cfg: cfg})
	return s, applyListenerConfig(s, &cfg.ListenerConfig)
}

func buildLMTPServer(cfg *config.SMTPConfig, store *mem.Store) (*server.Server, error) {
	chain, err := lmtp.NewProtocolHandlerChain(lmtp.ChainOptions{}, mem.NewLMTPDeliveryHook(store))
	if err != nil {
		return nil, err
	}
	s := lmtp.NewServer("lmtp", cfg.Addr, chain, &smtpPolicy{cfg: cfg})
	return s, applyListenerConfig(s, &cfg.ListenerConfig)
}

func buildPOP3Server(cfg *config.POP3Config, hostname string, store *mem.Store) (*server.Server, error) {
	options := pop3.ChainOptions{
		STLS:             cfg.TLSCertFile != "" && cfg.TLSKeyFile != "",
		AuthFailureDelay: time.Second,
	}
	chain, err := pop3.NewProtocolHandlerChain(store, store, options)
	if err != nil {
		return nil, err
	}
	s := pop3.NewServer("pop3", cfg.Addr, chain, &pop3Policy{cfg: cfg, hostname: hostname})
	return s, applyListenerConfig(s, &cfg.ListenerConfig)
}

func applyListenerConfig(s *server.Server, cfg *config.ListenerConfig) error {
	idle, err := cfg.GetIdleTimeout()
	if err != nil {
		return err
	}
	if err := s.SetIdleTimeout(idle); err != nil {
		return err
	}
	if err := s.SetMaxLineLength(cfg.GetMaxLineLength()); err != nil {
		return err
	}
	if err := s.SetBacklog(cfg.GetListenBacklog()); err != nil {
		return err
	}
	if cfg.MaxConnections > 0 {
		if err := s.SetMaxConnections(cfg.MaxConnections); err != nil {
			return err
		}
	}
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		tlsConfig, err := loadTLSConfig(cfg)
		if err != nil {
			return err
		}
		if err := s.SetTLSConfig(tlsConfig, cfg.TLS); err != nil {
			return err
		}
	}
	return nil
}
