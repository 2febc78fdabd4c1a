// Package server exposes the vouch ledger over HTTP. It is the inbound
// command surface: each request resolves the actor's identity from its
// bearer token, dispatches into the ledger service, and maps the ledger's
// error kinds to HTTP statuses.
package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vouchlab/vouchd/internal/directory"
	"github.com/vouchlab/vouchd/internal/export"
	"github.com/vouchlab/vouchd/internal/ledger"
	"github.com/vouchlab/vouchd/internal/pager"
	"go.uber.org/zap"
)

// Server holds the handler dependencies.
type Server struct {
	svc      *ledger.Service
	dir      directory.Directory
	exporter *export.Exporter
	cursors  *pager.CursorCodec
	tokens   *TokenIssuer

	// bootstrapHash is the bcrypt hash of the operator bootstrap secret;
	// empty disables the token mint endpoint.
	bootstrapHash string

	// start is the immutable process start time, captured once at
	// initialization and passed in explicitly.
	start   time.Time
	version string

	// upstreams reports the health monitor's view of external
	// dependencies; nil when no monitor is running.
	upstreams func() map[string]string

	logger *zap.Logger
}

// New creates a Server.
func New(svc *ledger.Service, dir directory.Directory, exporter *export.Exporter,
	cursors *pager.CursorCodec, tokens *TokenIssuer, start time.Time, version string,
	logger *zap.Logger) *Server {
	return &Server{
		svc:      svc,
		dir:      dir,
		exporter: exporter,
		cursors:  cursors,
		tokens:   tokens,
		start:    start,
		version:  version,
		logger:   logger,
	}
}

// SetBootstrapHash configures the bcrypt hash guarding the token mint
// endpoint.
func (s *Server) SetBootstrapHash(hash string) { s.bootstrapHash = hash }

// SetUpstreamStatus wires the health monitor's status view into the status
// endpoint.
func (s *Server) SetUpstreamStatus(fn func() map[string]string) { s.upstreams = fn }

// Register mounts all routes on the given router group. Everything except
// the bootstrap endpoint requires an actor token.
func (s *Server) Register(rg *gin.RouterGroup) {
	rg.POST("/auth/token", s.MintToken)

	authed := rg.Group("", RequireActor(s.tokens))
	{
		authed.POST("/communities/:community/vouches", s.CreateVouch)
		authed.GET("/communities/:community/users/:user/vouches", s.ListVouches)
		authed.DELETE("/vouches/:id", s.DeleteVouch)
		authed.POST("/communities/:community/users/:user/purge", s.PurgeVouches)

		authed.GET("/communities/:community/users/:user/stats", s.Stats)
		authed.GET("/communities/:community/users/:user/profile", s.Profile)
		authed.GET("/communities/:community/leaderboard", s.Leaderboard)
		authed.GET("/users/:user/stats", s.GlobalStats)

		authed.GET("/communities/:community/settings", s.GetSettings)
		authed.PUT("/communities/:community/settings/admin-role", s.SetAdminRole)
		authed.PUT("/communities/:community/settings/trusted-role", s.SetTrustedRole)
		authed.PUT("/communities/:community/settings/log-channel", s.SetLogChannel)
		authed.PUT("/communities/:community/settings/decay", s.SetDecay)

		authed.POST("/communities/:community/blacklist", s.AddBlacklist)
		authed.DELETE("/communities/:community/blacklist/:user", s.RemoveBlacklist)
		authed.GET("/communities/:community/blacklist", s.ListBlacklist)

		authed.POST("/communities/:community/users/:user/export", s.Export)
	}
}

// respondErr maps ledger error kinds to HTTP statuses. Expected rejections
// surface their message verbatim; transient store faults become a generic
// failure and the detail stays in the log.
func (s *Server) respondErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrNotFoundOrRemoved):
		c.JSON(http.StatusNotFound, gin.H{"error": ledger.ErrNotFoundOrRemoved.Error()})
	case errors.Is(err, ledger.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, pager.ErrCursorOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": pager.ErrCursorOwner.Error()})
	case errors.Is(err, pager.ErrBadCursor):
		c.JSON(http.StatusBadRequest, gin.H{"error": pager.ErrBadCursor.Error()})
	case errors.Is(err, ledger.ErrStore):
		s.logger.Error("store fault", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "temporary storage error, please try again"})
	default:
		s.logger.Error("unhandled error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error processing command"})
	}
}

// lookupProfile resolves an identity for display, degrading to the generic
// placeholder when the directory cannot resolve it.
func (s *Server) lookupProfile(c *gin.Context, userID string) directory.Profile {
	p, err := s.dir.Lookup(c.Request.Context(), userID)
	if err != nil {
		s.logger.Debug("profile lookup failed, using placeholder",
			zap.String("user_id", userID), zap.Error(err))
		return directory.Placeholder(userID)
	}
	return p
}
