package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vouchlab/vouchd/internal/ledger"
	"github.com/vouchlab/vouchd/internal/pager"
	"github.com/vouchlab/vouchd/internal/reputation"
)

const recentVouchCount = 5

// Stats reports a user's standing within one community: counts, decayed
// score, and badge, all derived from a single snapshot.
func (s *Server) Stats(c *gin.Context) {
	communityID := c.Param("community")
	userID := c.Param("user")

	snapshot, err := s.svc.Snapshot(c.Request.Context(), communityID)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	halfLife, err := s.svc.HalfLife(c.Request.Context(), communityID)
	if err != nil {
		s.respondErr(c, err)
		return
	}

	received := reputation.Received(snapshot, userID)
	c.JSON(http.StatusOK, gin.H{
		"user_id":  userID,
		"received": received,
		"given":    reputation.Given(snapshot, userID),
		"score":    reputation.Score(snapshot, userID, halfLife, time.Now().UTC()),
		"badge":    reputation.BadgeFor(received),
	})
}

// Profile extends Stats with the resolved identity, the most recent
// received vouches, and the user's blacklist status.
func (s *Server) Profile(c *gin.Context) {
	communityID := c.Param("community")
	userID := c.Param("user")

	snapshot, err := s.svc.Snapshot(c.Request.Context(), communityID)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	halfLife, err := s.svc.HalfLife(c.Request.Context(), communityID)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	blacklisted, err := s.svc.IsBlacklisted(c.Request.Context(), communityID, userID)
	if err != nil {
		s.respondErr(c, err)
		return
	}

	var recent []ledger.Vouch
	for _, v := range snapshot {
		if v.TargetID != userID {
			continue
		}
		recent = append(recent, v)
		if len(recent) == recentVouchCount {
			break
		}
	}
	if recent == nil {
		recent = []ledger.Vouch{}
	}

	profile := s.lookupProfile(c, userID)
	received := reputation.Received(snapshot, userID)
	c.JSON(http.StatusOK, gin.H{
		"user_id":      userID,
		"display_name": profile.DisplayName,
		"tag":          profile.Tag,
		"avatar_url":   profile.AvatarURL,
		"received":     received,
		"given":        reputation.Given(snapshot, userID),
		"score":        reputation.Score(snapshot, userID, halfLife, time.Now().UTC()),
		"badge":        reputation.BadgeFor(received),
		"blacklisted":  blacklisted,
		"recent":       recent,
	})
}

// Leaderboard ranks the community's identities by vouches received, or by
// vouches given with ?by=given.
func (s *Server) Leaderboard(c *gin.Context) {
	communityID := c.Param("community")

	side := reputation.ByReceived
	switch c.DefaultQuery("by", "received") {
	case "received":
	case "given":
		side = reputation.ByGiven
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "by must be received or given"})
		return
	}

	snapshot, err := s.svc.Snapshot(c.Request.Context(), communityID)
	if err != nil {
		s.respondErr(c, err)
		return
	}

	entries := reputation.Leaderboard(snapshot, side, reputation.DefaultLeaderboardSize)
	if entries == nil {
		entries = []reputation.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"community_id": communityID, "entries": entries})
}

// GlobalStats reports the user's counts across every community, with the
// most recent received records for context. Scores are community-scoped
// because decay is, so the unscoped view carries counts only.
func (s *Server) GlobalStats(c *gin.Context) {
	userID := c.Param("user")

	received, err := s.svc.Received(c.Request.Context(), "", userID)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	given, err := s.svc.Given(c.Request.Context(), "", userID)
	if err != nil {
		s.respondErr(c, err)
		return
	}

	recent := received
	if len(recent) > pager.DefaultPageSize {
		recent = recent[:pager.DefaultPageSize]
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":  userID,
		"received": len(received),
		"given":    len(given),
		"badge":    reputation.BadgeFor(len(received)),
		"recent":   recent,
	})
}
