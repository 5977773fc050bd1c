package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc"
	"github.com/gin-gonic/gin"
	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
)

// tokenClaimsCacheTTL bounds how long a verified token's claims are
// reused without re-running signature verification, the same
// fixed-TTL/fixed-capacity cache shape the teacher used for its zone
// provider webhook responses.
const tokenClaimsCacheTTL = 1 * time.Minute

// OIDCVerifierConfig holds the minimal configuration for OIDC token verification.
type OIDCVerifierConfig struct {
	IssuerURL string
	ClientID  string
}

// OIDCAuthVerifier manages the OIDC token verification process.
type OIDCAuthVerifier struct {
	Config   OIDCVerifierConfig
	Verifier *oidc.IDTokenVerifier
	Logger   *zap.SugaredLogger

	claimsCache *ttlcache.Cache[string, UserClaims]
}

// NewOIDCAuthVerifier initializes a new OIDCAuthVerifier.
// It sets up the ID token verifier using the issuer URL and client ID.
func NewOIDCAuthVerifier(cfg OIDCVerifierConfig, log *zap.SugaredLogger) (*OIDCAuthVerifier, error) {
	ctx := context.Background()
	// Discover the OIDC provider's configuration from the issuer URL
	// This fetches the JWKS endpoint and other metadata needed for verification.
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider for issuer '%s': %w", cfg.IssuerURL, err)
	}

	// Configure the ID token verifier.
	// The ClientID here acts as the expected audience (aud claim) for the token.
	oidcConfig := &oidc.Config{
		ClientID: cfg.ClientID,
		// If you have multiple audiences, you can specify them here:
		// ExpectedAudience: []string{"your-api-audience", "another-audience"},
	}
	verifier := provider.Verifier(oidcConfig)

	cache := ttlcache.New(
		ttlcache.WithTTL[string, UserClaims](tokenClaimsCacheTTL),
		ttlcache.WithCapacity[string, UserClaims](1000),
	)
	go cache.Start()

	return &OIDCAuthVerifier{
		Config:      cfg,
		Verifier:    verifier,
		Logger:      log,
		claimsCache: cache,
	}, nil
}

// Close stops the claims cache's background eviction worker.
func (m *OIDCAuthVerifier) Close() {
	m.claimsCache.Stop()
}

// BearerTokenAuthMiddleware is a Gin middleware to verify OIDC bearer tokens.
// It expects the token in the "Authorization: Bearer <token>" header.
func (m *OIDCAuthVerifier) BearerTokenAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			m.Logger.Debug("Authorization header missing. Denying access.")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		// Check if the header starts with "Bearer "
		if !strings.HasPrefix(authHeader, "Bearer ") {
			m.Logger.Debug("Authorization header does not start with 'Bearer '. Denying access.")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unsupported authorization type. Use Bearer token."})
			return
		}

		// Extract the raw ID token string
		rawIDToken := strings.TrimPrefix(authHeader, "Bearer ")
		if rawIDToken == "" {
			m.Logger.Debug("Bearer token is empty. Denying access.")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Bearer token missing"})
			return
		}

		if cached := m.claimsCache.Get(rawIDToken); cached != nil {
			claims := cached.Value()
			c.Set(UserDataKey, &claims)
			c.Next()
			return
		}

		ctx := context.Background()
		// Verify the ID token's signature, issuer, audience, and expiry
		idToken, err := m.Verifier.Verify(ctx, rawIDToken)
		if err != nil {
			m.Logger.Warnf("Failed to verify ID token from Authorization header: %v. Denying access.", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": fmt.Sprintf("Invalid or expired token: %v", err)})
			return
		}

		// Optional: Explicitly check for token expiry, though oidc.Verifier usually handles this.
		if idToken.Expiry.Before(time.Now()) {
			m.Logger.Warnf("ID token expired for user '%s'. Denying access.", idToken.Subject)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token expired"})
			return
		}

		// Extract claims from the verified ID token
		var claims UserClaims
		if err := idToken.Claims(&claims); err != nil {
			m.Logger.Errorf("Failed to parse ID token claims: %v. Denying access.", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to parse user claims from token."})
			return
		}

		// Cache claims under the raw token, capped at the token's own expiry.
		ttl := tokenClaimsCacheTTL
		if untilExpiry := time.Until(idToken.Expiry); untilExpiry < ttl {
			ttl = untilExpiry
		}
		m.claimsCache.Set(rawIDToken, claims, ttl)

		// Store user claims in Gin context for access in subsequent handlers
		c.Set(UserDataKey, &claims)

		c.Next() // Continue to the next handler in the chain
	}
}
