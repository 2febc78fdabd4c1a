package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vouchlab/vouchd/internal/ledger"
)

type mintTokenRequest struct {
	Secret      string `json:"secret" binding:"required"`
	ActorID     string `json:"actor_id" binding:"required"`
	DisplayName string `json:"display_name" binding:"required"`
	Tag         string `json:"tag"`
	Bot         bool   `json:"bot"`
}

// MintToken exchanges the operator bootstrap secret for an actor token.
// This is how the platform-facing gateway obtains tokens for the
// identities it proxies; with no bootstrap hash configured the endpoint
// refuses everything.
func (s *Server) MintToken(c *gin.Context) {
	var req mintTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "secret, actor_id, and display_name are required"})
		return
	}

	if !CheckBootstrapSecret(s.bootstrapHash, req.Secret) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid bootstrap secret"})
		return
	}

	token, err := s.tokens.Issue(ledger.Identity{
		ID:          req.ActorID,
		DisplayName: req.DisplayName,
		Tag:         req.Tag,
		Bot:         req.Bot,
	})
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
