package directory

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/vouchlab/vouchd/internal/access"
)

// Delivery records one private-channel file delivery made through a Static
// directory.
type Delivery struct {
	UserID   string
	Message  string
	Filename string
	Content  []byte
}

// Static is an in-memory Directory for tests and single-process development.
type Static struct {
	mu         sync.RWMutex
	profiles   map[string]Profile
	admins     map[string]bool            // "communityID|userID"
	roles      map[string]map[string]bool // "communityID|userID" → role set
	deliveries []Delivery
	failSend   bool
}

// NewStatic creates an empty Static directory.
func NewStatic() *Static {
	return &Static{
		profiles: make(map[string]Profile),
		admins:   make(map[string]bool),
		roles:    make(map[string]map[string]bool),
	}
}

func memberKey(communityID, userID string) string { return communityID + "|" + userID }

// AddProfile registers an identity.
func (s *Static) AddProfile(p Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

// GrantAdministrator gives the user the platform-native administrator
// capability within the community.
func (s *Static) GrantAdministrator(communityID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins[memberKey(communityID, userID)] = true
}

// GrantRole adds the user to a group within the community.
func (s *Static) GrantRole(communityID, userID, roleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memberKey(communityID, userID)
	if s.roles[key] == nil {
		s.roles[key] = make(map[string]bool)
	}
	s.roles[key][roleID] = true
}

// FailSends makes subsequent SendFile calls return an error.
func (s *Static) FailSends() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSend = true
}

// Lookup implements Directory.
func (s *Static) Lookup(_ context.Context, userID string) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return Profile{}, fmt.Errorf("identity %s not resolvable", userID)
	}
	return p, nil
}

// Capabilities implements Directory. Unknown members get an empty
// capability set rather than an error.
func (s *Static) Capabilities(_ context.Context, communityID, actorID string) (access.Capabilities, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := memberKey(communityID, actorID)
	caps := access.Capabilities{
		Administrator: s.admins[key],
		Roles:         make(map[string]bool, len(s.roles[key])),
	}
	for r := range s.roles[key] {
		caps.Roles[r] = true
	}
	return caps, nil
}

// SendFile implements Directory, recording the delivery.
func (s *Static) SendFile(_ context.Context, userID, message, filename string, content io.Reader) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSend {
		return fmt.Errorf("private channel for %s is closed", userID)
	}
	s.deliveries = append(s.deliveries, Delivery{
		UserID: userID, Message: message, Filename: filename, Content: data,
	})
	return nil
}

// Deliveries returns a copy of the recorded deliveries.
func (s *Static) Deliveries() []Delivery {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Delivery, len(s.deliveries))
	copy(out, s.deliveries)
	return out
}
