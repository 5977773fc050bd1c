// Package httpfrontend serves the HTTP JSON update API and the legacy
// DynDNS-compatible "simple" API, on top of github.com/gin-gonic/gin with
// gin-contrib/zap request logging/recovery and gin-contrib/cors, exactly
// the ambient stack the teacher's own app_setup.go wired for its API
// routes.
package httpfrontend

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pagekite/duppy-go/internal/backend"
	"github.com/pagekite/duppy-go/internal/duppyerr"
	"github.com/pagekite/duppy-go/internal/engine"
)

// RequestTimeout bounds how long one HTTP update is allowed to block on
// the engine/backend, matching dnsfrontend.RequestTimeout.
const RequestTimeout = 30 * time.Second

// Config controls which routes are mounted and where.
type Config struct {
	Prefix      string
	UpdatesPath string
	SimplePath  string
	WelcomePage bool
	CORSOrigins []string
	DefaultTTL  uint32
}

// Frontend is the HTTP JSON + simple DynDNS API.
type Frontend struct {
	Engine  *engine.Engine
	Backend backend.Backend
	Log     *zap.SugaredLogger
	Cfg     Config

	srv *http.Server
}

// New builds a Frontend and its gin.Engine.
func New(eng *engine.Engine, be backend.Backend, log *zap.SugaredLogger, cfg Config) *Frontend {
	if cfg.UpdatesPath == "" {
		cfg.UpdatesPath = "/v1/update"
	}
	if cfg.SimplePath == "" {
		cfg.SimplePath = "/v1/simple"
	}
	if cfg.DefaultTTL == 0 {
		cfg.DefaultTTL = 300
	}
	return &Frontend{Engine: eng, Backend: be, Log: log, Cfg: cfg}
}

func (f *Frontend) router() *gin.Engine {
	zapLogger := f.Log.Desugar()

	router := gin.New()
	router.Use(ginzap.Ginzap(zapLogger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(zapLogger, true))

	group := router.Group(f.Cfg.Prefix)
	group.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			if len(f.Cfg.CORSOrigins) == 0 {
				return true
			}
			for _, o := range f.Cfg.CORSOrigins {
				if o == "*" || o == origin {
					return true
				}
			}
			return false
		},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       time.Hour,
	}))

	if f.Cfg.WelcomePage {
		group.GET("/", f.welcome)
	}
	group.POST(f.Cfg.UpdatesPath, f.handleJSONUpdate)
	group.GET(f.Cfg.SimplePath, f.handleSimpleUpdate)

	return router
}

// ListenAndServe starts the HTTP listener and blocks until ctx is
// cancelled, then shuts the server down.
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

// Shutdown gracefully stops the HTTP listener.
func (f *Frontend) Shutdown(ctx context.Context) error {
	if f.srv == nil {
		return nil
	}
	return f.srv.Shutdown(ctx)
}

func (f *Frontend) welcome(c *gin.Context) {
	c.String(http.StatusOK, "duppy-go dynamic DNS update service\n")
}

// httpStatusForKind maps a duppyerr.Kind to the HTTP status spec.md §7's
// table assigns it.
func httpStatusForKind(k duppyerr.Kind) int {
	switch k {
	case duppyerr.KindMalformed:
		return http.StatusBadRequest
	case duppyerr.KindUnauthenticated, duppyerr.KindUnauthorized:
		return http.StatusForbidden
	case duppyerr.KindPolicyRejected:
		return http.StatusBadRequest
	case duppyerr.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// clientMessageForError renders err the way spec.md §7 requires a client
// response to: the validation/auth message verbatim for kinds a client
// request caused, and a fixed generic message for kinds that would
// otherwise leak backend internals (driver/SQL text, wrapped Go error
// chains) into an HTTP response body.
func clientMessageForError(err error) string {
	switch duppyerr.KindOf(err) {
	case duppyerr.KindMalformed, duppyerr.KindPolicyRejected, duppyerr.KindUnauthenticated, duppyerr.KindUnauthorized, duppyerr.KindNotFound:
		if msg := duppyerr.Message(err); msg != "" {
			return msg
		}
		return err.Error()
	default:
		return "internal error"
	}
}

// resolveKeySecret returns every key bound to zone, keyed by key name,
// the shared auth primitive both routes match a candidate secret/token
// against.
func resolveKeySecret(ctx context.Context, be backend.Backend, zone string) (map[string]backend.Key, error) {
	return be.GetKeys(ctx, zone)
}

// matchesAnyKey reports whether token equals the secret of any key bound
// to the zone — the JSON API's auth model has no key name on the wire,
// only a shared secret, so every bound key is a candidate (spec.md §4.5).
func matchesAnyKey(keys map[string]backend.Key, token string) (string, bool) {
	for name, k := range keys {
		if k.Secret == token {
			return name, true
		}
	}
	return "", false
}

// normalizeHeaderSecret undoes the space->'+' mangling HTTP intermediaries
// apply to '+' characters in query strings and header values, and strips
// a leading "Bearer " prefix if present — the precedence rule from
// spec.md §4.5 ("raw token, whitespace normalized to '+'").
func normalizeHeaderSecret(raw string) string {
	const bearerPrefix = "Bearer "
	if rest, ok := strings.CutPrefix(raw, bearerPrefix); ok {
		raw = rest
	}
	return strings.ReplaceAll(raw, " ", "+")
}
