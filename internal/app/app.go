// Package app wires duppy-go's configuration into running front-ends and
// runs them concurrently, the role the teacher's app.RunApplication/
// app_setup.go played for its own webserver + periodic updater pair, here
// generalized to an arbitrary set of independently-enabled front-ends
// coordinated with golang.org/x/sync/errgroup.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pagekite/duppy-go/internal/adminapi"
	"github.com/pagekite/duppy-go/internal/adminstore"
	"github.com/pagekite/duppy-go/internal/auth"
	"github.com/pagekite/duppy-go/internal/backend"
	"github.com/pagekite/duppy-go/internal/config"
	"github.com/pagekite/duppy-go/internal/dnsfrontend"
	"github.com/pagekite/duppy-go/internal/engine"
	"github.com/pagekite/duppy-go/internal/httpfrontend"
	"github.com/pagekite/duppy-go/internal/memstore"
	"github.com/pagekite/duppy-go/internal/powerdnsstore"
	"github.com/pagekite/duppy-go/internal/sqlstore"
)

// BuildBackend constructs the configured backend.Backend, the equivalent
// of the teacher's storage.NewStorage/zones.NewPowerDnsClient dispatch in
// app_setup.go's RunApplication.
func BuildBackend(cfg config.BackendConfig, log *zap.SugaredLogger) (backend.Backend, error) {
	switch cfg.Type {
	case "memory", "":
		return memstore.New(), nil
	case "sql":
		return sqlstore.Open(cfg.DbType, cfg.DbConnectionString)
	case "powerdns":
		return powerdnsstore.New(cfg.PdnsURL, cfg.PdnsVhost, cfg.PdnsAPIKey, cfg.PdnsDefaultTTL, log), nil
	default:
		return nil, fmt.Errorf("app.BuildBackend: unsupported backend type %q", cfg.Type)
	}
}

// Run constructs every front-end the configuration enables and runs them
// concurrently until ctx is cancelled, mirroring the teacher's pattern of
// a main web server plus a background goroutine, generalized here to
// however many front-ends (dns, http, admin api) are actually turned on.
func Run(ctx context.Context, cfg config.AppConfig, log *zap.SugaredLogger, be backend.Backend) error {
	eng := engine.New(be, cfg.MinimumTTL, log)

	group, gctx := errgroup.WithContext(ctx)

	if cfg.DNS.Enabled() {
		dnsFront := dnsfrontend.New(eng, be, log)
		group.Go(func() error {
			addr := fmt.Sprintf("%s:%d", cfg.DNS.ListenAddress, cfg.DNS.Port)
			log.Infof("app.Run: starting DNS front-end on %s (udp=%t tcp=%t)", addr, cfg.DNS.UDP, cfg.DNS.TCP)
			return dnsFront.ListenAndServe(gctx, addr, cfg.DNS.UDP, cfg.DNS.TCP)
		})
	} else {
		log.Infof("app.Run: DNS front-end disabled (port 0)")
	}

	if cfg.HTTP.Enabled {
		httpFront := httpfrontend.New(eng, be, log, httpfrontend.Config{
			UpdatesPath: cfg.HTTP.UpdatesPath,
			SimplePath:  cfg.HTTP.SimplePath,
			WelcomePage: cfg.HTTP.WelcomePage,
			CORSOrigins: cfg.HTTP.CORSOrigins,
			DefaultTTL:  cfg.DefaultTTL,
		})
		group.Go(func() error {
			addr := fmt.Sprintf("%s:%d", cfg.HTTP.ListenAddress, cfg.HTTP.Port)
			log.Infof("app.Run: starting HTTP front-end on %s", addr)
			return httpFront.ListenAndServe(gctx, addr)
		})
	}

	if cfg.AdminAPI.Enabled {
		adminFront, err := buildAdminAPI(cfg, be, log)
		if err != nil {
			return fmt.Errorf("app.Run: admin API: %w", err)
		}
		group.Go(func() error {
			addr := fmt.Sprintf("%s:%d", cfg.AdminAPI.ListenAddress, cfg.AdminAPI.Port)
			log.Infof("app.Run: starting admin API on %s", addr)
			return adminFront.ListenAndServe(gctx, addr)
		})
	}

	return group.Wait()
}

// buildAdminAPI wires the admin API's own dependencies: a sqlstore
// provisioner (opened separately from the main DNS backend if that
// backend is not itself a *sqlstore.Store), a token store, and an OIDC
// verifier unless fake auth is requested.
func buildAdminAPI(cfg config.AppConfig, be backend.Backend, log *zap.SugaredLogger) (*adminapi.Frontend, error) {
	provisioner, ok := be.(*sqlstore.Store)
	if !ok {
		var err error
		provisioner, err = sqlstore.Open("sqlite", cfg.AdminAPI.TokenDbPath+"-zones.db")
		if err != nil {
			return nil, fmt.Errorf("app.buildAdminAPI: open provisioning store: %w", err)
		}
	}

	tokenDbPath := cfg.AdminAPI.TokenDbPath
	if tokenDbPath == "" {
		tokenDbPath = "duppy-admin-tokens.db"
	}
	tokens, err := adminstore.Open(tokenDbPath)
	if err != nil {
		return nil, fmt.Errorf("app.buildAdminAPI: open token store: %w", err)
	}

	var oidcVerifier *auth.OIDCAuthVerifier
	allowFake := cfg.AdminAPI.AuthProvider == "fake" || cfg.AdminAPI.AuthProvider == ""
	if !allowFake {
		oidcVerifier, err = auth.NewOIDCAuthVerifier(auth.OIDCVerifierConfig{
			IssuerURL: cfg.AdminAPI.OIDCIssuerURL,
			ClientID:  cfg.AdminAPI.OIDCClientID,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("app.buildAdminAPI: OIDC verifier: %w", err)
		}
	}

	ttl := cfg.AdminAPI.TokenTTLHours
	if ttl <= 0 {
		ttl = 24
	}

	return adminapi.New(be, provisioner, tokens, oidcVerifier, log, adminapi.Config{
		TokenTTL:      time.Duration(ttl) * time.Hour,
		AllowFakeAuth: allowFake,
	}), nil
}
