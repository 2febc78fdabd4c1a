package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/vouchlab/vouchd/internal/ledger"
	"github.com/vouchlab/vouchd/internal/pager"
)

type createVouchRequest struct {
	TargetID string `json:"target_id" binding:"required"`
	Reason   string `json:"reason" binding:"required,max=500"`
}

// CreateVouch records a new vouch from the authenticated actor. The target
// identity is resolved through the directory so the record snapshots its
// display name and the bot check runs against live data.
func (s *Server) CreateVouch(c *gin.Context) {
	var req createVouchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target_id and a reason of at most 500 characters are required"})
		return
	}
	communityID := c.Param("community")

	target, err := s.dir.Lookup(c.Request.Context(), req.TargetID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target user could not be resolved"})
		return
	}

	v, err := s.svc.Create(c.Request.Context(), communityID, actor(c).Identity(), ledger.Identity{
		ID:          target.ID,
		DisplayName: target.DisplayName,
		Tag:         target.Tag,
		Bot:         target.Bot,
	}, req.Reason)
	if err != nil {
		s.respondErr(c, err)
		return
	}

	vouchesCreatedTotal.Inc()
	c.JSON(http.StatusCreated, v)
}

// vouchPage is the list response: one page of records plus the signed
// cursor that lets the same requester navigate from it.
type vouchPage struct {
	Entries    []ledger.Vouch `json:"entries"`
	Page       int            `json:"page"`
	TotalPages int            `json:"total_pages"`
	Total      int            `json:"total"`
	Cursor     string         `json:"cursor"`
}

// ListVouches returns one page of the live vouches received by a user,
// newest-first. Without a cursor it serves the clamped ?page= index; with
// ?cursor= and ?dir=next|prev it re-derives the neighboring view from a
// fresh fetch, so records created or removed since the cursor was issued
// are reflected.
func (s *Server) ListVouches(c *gin.Context) {
	communityID := c.Param("community")
	userID := c.Param("user")
	requester := actor(c)

	idx := 0
	if raw := c.Query("cursor"); raw != "" {
		cur, err := s.cursors.Decode(raw, requester.ActorID)
		if err != nil {
			s.respondErr(c, err)
			return
		}
		// The cursor binds the view, not the URL: navigate the subject it
		// was issued for.
		communityID, userID = cur.CommunityID, cur.SubjectID
		switch c.Query("dir") {
		case "next":
			idx = cur.Page + 1
		case "prev":
			idx = cur.Page - 1
		default:
			idx = cur.Page
		}
	} else if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "page must be an integer"})
			return
		}
		idx = n
	}

	vouches, err := s.svc.Received(c.Request.Context(), communityID, userID)
	if err != nil {
		s.respondErr(c, err)
		return
	}

	pages := pager.Paginate(vouches, pager.DefaultPageSize)
	idx = pager.ClampPage(idx, len(pages))
	entries := pager.Page(pages, idx)
	if entries == nil {
		entries = []ledger.Vouch{}
	}

	signed, err := s.cursors.Encode(pager.Cursor{
		RequesterID: requester.ActorID,
		SubjectID:   userID,
		CommunityID: communityID,
		Page:        idx,
		TotalPages:  len(pages),
	})
	if err != nil {
		s.respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, vouchPage{
		Entries:    entries,
		Page:       idx,
		TotalPages: len(pages),
		Total:      len(vouches),
		Cursor:     signed,
	})
}

// DeleteVouch soft-deletes a record. The ledger enforces that the actor is
// the original voucher or holds elevated privilege.
func (s *Server) DeleteVouch(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "vouch id must be an integer"})
		return
	}

	if err := s.svc.SoftDelete(c.Request.Context(), id, actor(c).Identity()); err != nil {
		s.respondErr(c, err)
		return
	}

	vouchesRemovedTotal.WithLabelValues("delete").Inc()
	c.JSON(http.StatusOK, gin.H{"removed": true})
}

// PurgeVouches soft-deletes every live vouch the target has received in
// the community. Elevated-only, enforced by the ledger.
func (s *Server) PurgeVouches(c *gin.Context) {
	communityID := c.Param("community")
	target := s.lookupProfile(c, c.Param("user"))

	n, err := s.svc.Purge(c.Request.Context(), communityID, ledger.Identity{
		ID:          target.ID,
		DisplayName: target.DisplayName,
		Tag:         target.Tag,
	}, actor(c).Identity())
	if err != nil {
		s.respondErr(c, err)
		return
	}

	vouchesRemovedTotal.WithLabelValues("purge").Add(float64(n))
	c.JSON(http.StatusOK, gin.H{"purged": n})
}
