// Copyright (C) 2026 ForYouPage Org
//
// This file is part of saturn-federation.
//
// saturn-federation is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// saturn-federation is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with saturn-federation.  If not, see <https://www.gnu.org/licenses/>.

// saturn-federation is the federation daemon: it verifies inbound
// activities, runs the follow handshake, and delivers outbound
// activities with retries.
package main

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/time/rate"

	saturnfed "github.com/ForYouPage-Org/saturn-federation"
	"github.com/ForYouPage-Org/saturn-federation/pkg/client"
	"github.com/ForYouPage-Org/saturn-federation/pkg/delivery"
	"github.com/ForYouPage-Org/saturn-federation/pkg/handshake"
	"github.com/ForYouPage-Org/saturn-federation/pkg/httpsig"
	"github.com/ForYouPage-Org/saturn-federation/pkg/keyring"
	"github.com/ForYouPage-Org/saturn-federation/pkg/server"
	"github.com/ForYouPage-Org/saturn-federation/pkg/store"
	"github.com/ForYouPage-Org/saturn-federation/pkg/verifier"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "saturn-federation: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = pflag.String("config", "saturn.yaml", "path to the YAML configuration file")
		listenAddr = pflag.String("listen", "", "override listen_addr from the config")
		dbPath     = pflag.String("database", "", "override database_path from the config")
		logLevel   = pflag.String("log-level", "", "override log_level from the config")
		version    = pflag.Bool("version", false, "print version and exit")
	)
	pflag.Parse()

	if *version {
		info := saturnfed.GetVersionInfo()
		fmt.Printf("saturn-federation %s (signature draft %s)\n",
			info.SaturnFederationVersion, info.SignatureDraftVersion)
		return nil
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.Info("starting saturn-federation",
		"version", saturnfed.Version,
		"listen", cfg.ListenAddr,
		"actor", cfg.ActorURI(),
	)

	privateKey, err := loadPrivateKey(cfg.Actor.PrivateKeyPath)
	if err != nil {
		return err
	}
	signer, err := httpsig.NewRSASigner(cfg.KeyID(), privateKey)
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	httpClient, err := client.New(client.Config{
		Signer: signer,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	resolver, err := keyring.NewCachingResolver(keyring.Config{
		Fetcher: httpClient,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	reqVerifier, err := verifier.NewDefaultVerifier(verifier.Config{
		Resolver:     resolver,
		MaxClockSkew: cfg.MaxClockSkew,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	dispatcher, err := delivery.NewDispatcher(delivery.Config{
		Signers:     singleActorSigners{signer: signer},
		DeadLetters: st,
		Workers:     cfg.Delivery.Workers,
		MaxAttempts: cfg.Delivery.MaxAttempts,
		BackoffBase: cfg.Delivery.BackoffBase,
		BackoffMax:  cfg.Delivery.BackoffMax,
		PerHostRate: rate.Limit(cfg.Delivery.PerHostRate),
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	policy := &followPolicy{
		autoAccept: cfg.AutoAcceptFollows,
		baseURL:    cfg.BaseURL,
		actorURI:   cfg.ActorURI(),
		client:     httpClient,
		dispatcher: dispatcher,
		outbox:     st,
		logger:     logger,
	}

	machine, err := handshake.NewMachine(handshake.Config{
		Dedup:         st,
		Relationships: st,
		Hooks:         policy,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	policy.machine = machine

	auth := server.NewAuthMiddleware(reqVerifier, logger)
	inbox := server.NewInboxHandler(machine, nil, logger)
	outbox := server.NewOutboxHandler(st, func(username string) string {
		return fmt.Sprintf("%s/users/%s", cfg.BaseURL, username)
	})
	router := server.Routes(auth, inbox, outbox)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go dispatcher.Run(ctx)
	go machine.Run(ctx)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// singleActorSigners serves the daemon's one signing identity for
// every delivery.
type singleActorSigners struct {
	signer httpsig.Signer
}

func (s singleActorSigners) SignerFor(signingActor string) (httpsig.Signer, error) {
	return s.signer, nil
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "", "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}

func openStore(cfg *Config, logger *slog.Logger) (store.Store, func(), error) {
	if cfg.DatabasePath == "" {
		logger.Warn("no database_path configured, state is in-memory only")
		return store.NewMemoryStore(), func() {}, nil
	}
	st, err := store.OpenSQLite(store.SQLiteConfig{
		Path:   cfg.DatabasePath,
		Logger: logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return st, func() {
		if err := st.Close(); err != nil {
			logger.Error("closing database", "error", err)
		}
	}, nil
}

// loadPrivateKey reads an RSA private key in PKCS#1 or PKCS#8 PEM form.
func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", path)
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing private key %s: %w", path, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return key, nil
}
