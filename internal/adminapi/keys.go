package adminapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pagekite/duppy-go/internal/auth"
	"github.com/pagekite/duppy-go/internal/backend"
	"github.com/pagekite/duppy-go/internal/helper"
	"github.com/pagekite/duppy-go/internal/records"
)

func (f *Frontend) registerKeyRoutes(group *gin.RouterGroup) {
	group.GET("/zones/:zone/keys/", f.listKeys)
	group.POST("/zones/:zone/keys/:name", f.createKey)
	group.DELETE("/zones/:zone/keys/:name", f.deleteKey)
}

type keysResponse struct {
	Keys []backend.Key `json:"keys"`
}

type createKeyResponse struct {
	Key backend.Key `json:"key"`
}

// listKeys returns every TSIG key bound to a zone. Secrets are included:
// this route is reached only behind CombinedAuthMiddleware, and an
// operator provisioning nsupdate clients needs the secret to hand out.
func (f *Frontend) listKeys(c *gin.Context) {
	zone := records.Normalize(c.Param("zone"))
	keys, err := f.Backend.GetKeys(c.Request.Context(), zone)
	if err != nil {
		f.Log.Errorf("adminapi.listKeys: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list keys"})
		return
	}

	resp := keysResponse{Keys: make([]backend.Key, 0, len(keys))}
	for _, k := range keys {
		resp.Keys = append(resp.Keys, k)
	}
	c.JSON(http.StatusOK, resp)
}

// createKey generates a fresh HMAC-SHA256 TSIG secret and binds it to a
// zone under the given key name, grounded on the teacher's
// helper.GenerateTSIGKeyHMACSHA512 random-key convention (sized down to
// SHA256's 32-byte recommendation since that's the engine's default
// algorithm).
func (f *Frontend) createKey(c *gin.Context) {
	zone := records.Normalize(c.Param("zone"))
	name := c.Param("name")
	user := c.MustGet(auth.UserDataKey).(*auth.UserClaims)
	f.Log.Debugf("adminapi.createKey: %s/%s called by %s", zone, name, user.PreferredUsername)

	secret, err := helper.GenerateTSIGKeyHMACSHA256()
	if err != nil {
		f.Log.Errorf("adminapi.createKey: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate key"})
		return
	}

	key := backend.Key{Name: name, Algorithm: "hmac-sha256", Secret: secret}
	if err := f.Provisioner.AddKey(c.Request.Context(), zone, key); err != nil {
		f.Log.Errorf("adminapi.createKey: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to bind key"})
		return
	}

	c.JSON(http.StatusCreated, createKeyResponse{Key: key})
}

func (f *Frontend) deleteKey(c *gin.Context) {
	zone := records.Normalize(c.Param("zone"))
	name := c.Param("name")

	if err := f.Provisioner.DeleteKey(c.Request.Context(), zone, name); err != nil {
		f.Log.Errorf("adminapi.deleteKey: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete key"})
		return
	}

	c.Status(http.StatusNoContent)
}
