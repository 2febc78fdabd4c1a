// Package directory adapts the platform's identity directory: resolving
// opaque identity handles to display profiles, answering capability
// queries, and delivering private-channel messages.
package directory

import (
	"context"
	"io"

	"github.com/vouchlab/vouchd/internal/access"
)

// Profile is the display information the directory holds for an identity.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Tag         string `json:"tag"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Bot         bool   `json:"bot"`
}

// Directory is the identity directory contract the core consumes.
type Directory interface {
	// Lookup resolves an identity handle to its profile. It may fail when
	// the identity is no longer resolvable; display-only callers should
	// degrade to Placeholder rather than fail their operation.
	Lookup(ctx context.Context, userID string) (Profile, error)

	// Capabilities answers the access-control capability query for an
	// actor within a community.
	Capabilities(ctx context.Context, communityID, actorID string) (access.Capabilities, error)

	// SendFile delivers a file to the user's private channel.
	SendFile(ctx context.Context, userID, message, filename string, content io.Reader) error
}

// Placeholder is the generic profile used when an identity cannot be
// resolved for display purposes.
func Placeholder(userID string) Profile {
	return Profile{ID: userID, DisplayName: "User", Tag: "0000"}
}
