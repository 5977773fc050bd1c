package adminapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pagekite/duppy-go/internal/auth"
	"github.com/pagekite/duppy-go/internal/backend"
	"github.com/pagekite/duppy-go/internal/records"
)

func (f *Frontend) registerZoneRoutes(group *gin.RouterGroup) {
	group.GET("/zones/", f.listZones)
	group.POST("/zones/:zone", f.createZone)
	group.DELETE("/zones/:zone", f.deleteZone)
}

type zonesResponse struct {
	Zones []backend.ZoneInfo `json:"zones"`
}

type createZoneRequest struct {
	Hostname   string `json:"hostname"`
	DefaultTTL uint32 `json:"default_ttl"`
}

// listZones returns every zone the active backend knows about.
func (f *Frontend) listZones(c *gin.Context) {
	user := c.MustGet(auth.UserDataKey).(*auth.UserClaims)
	f.Log.Debugf("adminapi.listZones: called by %s", user.PreferredUsername)

	zones, err := f.Backend.GetAllZones(c.Request.Context())
	if err != nil {
		f.Log.Errorf("adminapi.listZones: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list zones"})
		return
	}

	resp := zonesResponse{Zones: make([]backend.ZoneInfo, 0, len(zones))}
	for _, zi := range zones {
		resp.Zones = append(resp.Zones, zi)
	}
	c.JSON(http.StatusOK, resp)
}

// createZone provisions a new zone in the sqlstore-backed configuration.
func (f *Frontend) createZone(c *gin.Context) {
	zone := records.Normalize(c.Param("zone"))
	user := c.MustGet(auth.UserDataKey).(*auth.UserClaims)
	f.Log.Debugf("adminapi.createZone: %s called by %s", zone, user.PreferredUsername)

	var req createZoneRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	info := backend.ZoneInfo{Name: zone, Type: "SOA", Hostname: req.Hostname, DefaultTTL: req.DefaultTTL}
	if err := f.Provisioner.AddZone(c.Request.Context(), info); err != nil {
		f.Log.Errorf("adminapi.createZone: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create zone"})
		return
	}

	c.JSON(http.StatusCreated, info)
}

// deleteZone removes a zone and everything provisioned under it.
func (f *Frontend) deleteZone(c *gin.Context) {
	zone := records.Normalize(c.Param("zone"))
	user := c.MustGet(auth.UserDataKey).(*auth.UserClaims)
	f.Log.Debugf("adminapi.deleteZone: %s called by %s", zone, user.PreferredUsername)

	if err := f.Provisioner.DeleteZone(c.Request.Context(), zone); err != nil {
		f.Log.Errorf("adminapi.deleteZone: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete zone"})
		return
	}

	c.Status(http.StatusNoContent)
}
