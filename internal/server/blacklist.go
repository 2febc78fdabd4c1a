package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vouchlab/vouchd/internal/ledger"
)

type addBlacklistRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Reason string `json:"reason"`
}

// AddBlacklist bars a user from giving and receiving vouches in the
// community. Elevated-only, enforced by the ledger.
func (s *Server) AddBlacklist(c *gin.Context) {
	var req addBlacklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	user := s.lookupProfile(c, req.UserID)
	entry, err := s.svc.AddBlacklist(c.Request.Context(), c.Param("community"), ledger.Identity{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Tag:         user.Tag,
	}, req.Reason, actor(c).Identity())
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// RemoveBlacklist lifts a blacklist entry.
func (s *Server) RemoveBlacklist(c *gin.Context) {
	err := s.svc.RemoveBlacklist(c.Request.Context(), c.Param("community"), c.Param("user"), actor(c).Identity())
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": true})
}

// ListBlacklist returns the community's blacklist.
func (s *Server) ListBlacklist(c *gin.Context) {
	entries, err := s.svc.ListBlacklist(c.Request.Context(), c.Param("community"), actor(c).Identity())
	if err != nil {
		s.respondErr(c, err)
		return
	}
	if entries == nil {
		entries = []ledger.BlacklistEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
