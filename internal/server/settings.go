package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type roleRequest struct {
	// RoleID may be empty: an empty value clears the configuration.
	RoleID string `json:"role_id"`
}

type channelRequest struct {
	ChannelID string `json:"channel_id"`
}

type decayRequest struct {
	HalfLifeDays float64 `json:"half_life_days" binding:"required"`
}

// GetSettings returns the community's configuration, creating the default
// row on first access. Elevated-only, enforced by the ledger.
func (s *Server) GetSettings(c *gin.Context) {
	cs, err := s.svc.Settings(c.Request.Context(), c.Param("community"), actor(c).Identity())
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, cs)
}

// SetAdminRole configures which role grants elevated ledger privilege.
// Only platform-native administrators may change it.
func (s *Server) SetAdminRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := s.svc.SetAdminRole(c.Request.Context(), c.Param("community"), req.RoleID, actor(c).Identity()); err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"admin_role_id": req.RoleID})
}

// SetTrustedRole configures the role gating vouch creation.
func (s *Server) SetTrustedRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := s.svc.SetTrustedRole(c.Request.Context(), c.Param("community"), req.RoleID, actor(c).Identity()); err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trusted_role_id": req.RoleID})
}

// SetLogChannel configures the audit notification destination.
func (s *Server) SetLogChannel(c *gin.Context) {
	var req channelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := s.svc.SetLogChannel(c.Request.Context(), c.Param("community"), req.ChannelID, actor(c).Identity()); err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"log_channel_id": req.ChannelID})
}

// SetDecay configures the reputation decay half-life in days.
func (s *Server) SetDecay(c *gin.Context) {
	var req decayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "half_life_days is required"})
		return
	}
	if err := s.svc.SetDecayHalfLife(c.Request.Context(), c.Param("community"), req.HalfLifeDays, actor(c).Identity()); err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"half_life_days": req.HalfLifeDays})
}
