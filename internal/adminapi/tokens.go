package adminapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pagekite/duppy-go/internal/auth"
)

func (f *Frontend) registerTokenRoutes(group *gin.RouterGroup) {
	group.GET("/tokens/", f.listTokens)
	group.POST("/tokens/", f.createToken)
	group.DELETE("/tokens/:id", f.deleteToken)
}

type tokensResponse struct {
	Tokens []adminstoreToken `json:"tokens"`
}

// adminstoreToken mirrors adminstore.Token's JSON shape; kept local so the
// wire format doesn't change if the storage model grows fields the API
// shouldn't expose (the gorm-internal ID, currently, is the one it does).
type adminstoreToken struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	TokenString string `json:"token"`
	ExpiresAt   string `json:"expires_at"`
	ReadOnly    bool   `json:"read_only"`
}

type createTokenRequest struct {
	ReadOnly bool `json:"read_only"`
}

func (f *Frontend) listTokens(c *gin.Context) {
	user := c.MustGet(auth.UserDataKey).(*auth.UserClaims)

	tokens, err := f.Tokens.ListTokens(c.Request.Context(), user.PreferredUsername)
	if err != nil {
		f.Log.Errorf("adminapi.listTokens: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tokens"})
		return
	}

	resp := tokensResponse{Tokens: make([]adminstoreToken, 0, len(tokens))}
	for _, t := range tokens {
		resp.Tokens = append(resp.Tokens, adminstoreToken{
			ID: t.ID, Username: t.Username, TokenString: t.TokenString,
			ExpiresAt: t.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"), ReadOnly: t.ReadOnly,
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (f *Frontend) createToken(c *gin.Context) {
	user := c.MustGet(auth.UserDataKey).(*auth.UserClaims)

	var req createTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	token, err := f.Tokens.CreateToken(c.Request.Context(), user.PreferredUsername, f.Cfg.TokenTTL, req.ReadOnly)
	if err != nil {
		f.Log.Errorf("adminapi.createToken: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create token"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success", "token": adminstoreToken{
		ID: token.ID, Username: token.Username, TokenString: token.TokenString,
		ExpiresAt: token.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"), ReadOnly: token.ReadOnly,
	}})
}

func (f *Frontend) deleteToken(c *gin.Context) {
	user := c.MustGet(auth.UserDataKey).(*auth.UserClaims)

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid token id"})
		return
	}

	deleted, err := f.Tokens.DeleteToken(c.Request.Context(), user.PreferredUsername, uint(id))
	if err != nil {
		f.Log.Errorf("adminapi.deleteToken: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete token"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "token not found"})
		return
	}

	c.Status(http.StatusNoContent)
}
