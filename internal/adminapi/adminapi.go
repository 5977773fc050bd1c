// Package adminapi is the operator-facing HTTP API: zone and TSIG key
// provisioning, plus admin API token management, mounted under one prefix
// and protected by auth.CombinedAuthMiddleware the way the teacher's
// app_setup.go wired its own /v1 group behind OIDC/API-token auth.
package adminapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pagekite/duppy-go/internal/adminstore"
	"github.com/pagekite/duppy-go/internal/auth"
	"github.com/pagekite/duppy-go/internal/backend"
	"github.com/pagekite/duppy-go/internal/sqlstore"
)

// Config controls route mounting and token issuance.
type Config struct {
	Prefix        string
	TokenTTL      time.Duration
	AllowFakeAuth bool // dev-mode only: bypass OIDC with a fixed identity
}

// Frontend is the admin HTTP API. Zone/key provisioning requires a
// sqlstore.Store specifically (not the generic backend.Backend interface)
// because provisioning a zone or key is an operator action outside what
// the DNS update engine itself ever needs to do; read-only zone listing
// goes through Backend so it reflects whatever store is actually serving
// DNS traffic.
type Frontend struct {
	Backend     backend.Backend
	Provisioner *sqlstore.Store
	Tokens      *adminstore.Store
	OIDC        *auth.OIDCAuthVerifier
	Log         *zap.SugaredLogger
	Cfg         Config

	srv *http.Server
}

func New(be backend.Backend, provisioner *sqlstore.Store, tokens *adminstore.Store, oidc *auth.OIDCAuthVerifier, log *zap.SugaredLogger, cfg Config) *Frontend {
	if cfg.Prefix == "" {
		cfg.Prefix = "/v1"
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &Frontend{Backend: be, Provisioner: provisioner, Tokens: tokens, OIDC: oidc, Log: log, Cfg: cfg}
}

func (f *Frontend) router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	group := router.Group(f.Cfg.Prefix)
	group.Use(cors.New(cors.Config{
		AllowOriginFunc: func(string) bool { return true },
		AllowCredentials: true,
		AllowMethods:    []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:          time.Hour,
	}))

	if f.Cfg.AllowFakeAuth {
		f.Log.Warn("adminapi: fake auth enabled, every request is treated as the operator account")
		group.Use(auth.InjectFakeAuthMiddleware())
	} else {
		group.Use(auth.CombinedAuthMiddleware(f.OIDC, f.Tokens, f.Log))
	}

	f.registerZoneRoutes(group)
	f.registerKeyRoutes(group)
	f.registerTokenRoutes(group)

	return router
}

// ListenAndServe starts the admin API listener and blocks until ctx is
// cancelled, then shuts the server down, matching the lifecycle of
// dnsfrontend.Frontend and httpfrontend.Frontend.
func (f *Frontend) ListenAndServe(ctx context.Context, addr string) error {
	f.srv = &http.Server{Addr: addr, Handler: f.router()}

	errCh := make(chan error, 1)
	go func() { errCh <- f.srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return f.Shutdown(context.Background())
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

// Shutdown gracefully stops the admin API listener.
func (f *Frontend) Shutdown(ctx context.Context) error {
	if f.srv == nil {
		return nil
	}
	return f.srv.Shutdown(ctx)
}
