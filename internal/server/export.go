package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Export renders the target's full vouch history, removed records
// included, to CSV and delivers the file to the requester through the
// directory. Elevated-only, enforced by the ledger.
func (s *Server) Export(c *gin.Context) {
	communityID := c.Param("community")
	targetID := c.Param("user")
	requester := actor(c)

	records, err := s.svc.ListForExport(c.Request.Context(), communityID, targetID, requester.Identity())
	if err != nil {
		s.respondErr(c, err)
		return
	}

	target := s.lookupProfile(c, targetID)
	if err := s.exporter.Deliver(c.Request.Context(), requester.ActorID, targetID, target.DisplayName, records); err != nil {
		exportDeliveriesTotal.WithLabelValues("failure").Inc()
		c.JSON(http.StatusBadGateway, gin.H{"error": "export file could not be delivered"})
		return
	}

	exportDeliveriesTotal.WithLabelValues("success").Inc()
	c.JSON(http.StatusOK, gin.H{"delivered": true, "records": len(records)})
}
