package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory, thread-safe Store implementation. It is
// primarily useful for tests and for single-process development setups that
// do not require durable persistence across restarts.
type MemoryStore struct {
	mu        sync.RWMutex
	nextID    int64
	vouches   map[int64]*Vouch
	settings  map[string]*CommunitySettings
	blacklist map[string]*BlacklistEntry // "communityID|userID"
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:    1,
		vouches:   make(map[int64]*Vouch),
		settings:  make(map[string]*CommunitySettings),
		blacklist: make(map[string]*BlacklistEntry),
	}
}

func blKey(communityID, userID string) string { return communityID + "|" + userID }

// InsertVouch implements Store.
func (s *MemoryStore) InsertVouch(_ context.Context, v *Vouch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v.ID = s.nextID
	s.nextID++
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	cp := *v
	s.vouches[v.ID] = &cp
	return nil
}

// GetVouch implements Store.
func (s *MemoryStore) GetVouch(_ context.Context, id int64) (*Vouch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vouches[id]
	if !ok {
		return nil, ErrNotFoundOrRemoved
	}
	cp := *v
	return &cp, nil
}

// MarkRemoved implements Store.
func (s *MemoryStore) MarkRemoved(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vouches[id]
	if !ok || v.Removed {
		return false, nil
	}
	v.Removed = true
	return true, nil
}

// PurgeTarget implements Store.
func (s *MemoryStore) PurgeTarget(_ context.Context, communityID, targetID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, v := range s.vouches {
		if v.CommunityID == communityID && v.TargetID == targetID && !v.Removed {
			v.Removed = true
			n++
		}
	}
	return n, nil
}

// ListVouches implements Store.
func (s *MemoryStore) ListVouches(_ context.Context, q VouchQuery) ([]Vouch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Vouch
	for _, v := range s.vouches {
		if q.CommunityID != "" && v.CommunityID != q.CommunityID {
			continue
		}
		if q.VoucherID != "" && v.VoucherID != q.VoucherID {
			continue
		}
		if q.TargetID != "" && v.TargetID != q.TargetID {
			continue
		}
		if !q.IncludeRemoved && v.Removed {
			continue
		}
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// Settings implements Store. The row is created with defaults on first access.
func (s *MemoryStore) Settings(_ context.Context, communityID string) (*CommunitySettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.settingsLocked(communityID)
	return &cp, nil
}

// settingsLocked returns the live settings row, creating it if absent.
// Callers must hold s.mu.
func (s *MemoryStore) settingsLocked(communityID string) *CommunitySettings {
	if cs, ok := s.settings[communityID]; ok {
		return cs
	}
	cs := &CommunitySettings{
		CommunityID:       communityID,
		DecayHalfLifeDays: DefaultHalfLifeDays,
	}
	s.settings[communityID] = cs
	return cs
}

// SetAdminRole implements Store.
func (s *MemoryStore) SetAdminRole(_ context.Context, communityID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settingsLocked(communityID).AdminRoleID = roleID
	return nil
}

// SetTrustedRole implements Store.
func (s *MemoryStore) SetTrustedRole(_ context.Context, communityID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settingsLocked(communityID).TrustedRoleID = roleID
	return nil
}

// SetLogChannel implements Store.
func (s *MemoryStore) SetLogChannel(_ context.Context, communityID, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settingsLocked(communityID).LogChannelID = channelID
	return nil
}

// SetDecayHalfLife implements Store.
func (s *MemoryStore) SetDecayHalfLife(_ context.Context, communityID string, days float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settingsLocked(communityID).DecayHalfLifeDays = days
	return nil
}

// AddBlacklist implements Store.
func (s *MemoryStore) AddBlacklist(_ context.Context, e *BlacklistEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := blKey(e.CommunityID, e.UserID)
	if _, exists := s.blacklist[key]; exists {
		return ErrConflict
	}
	e.ID = uuid.New()
	if e.AddedAt.IsZero() {
		e.AddedAt = time.Now().UTC()
	}
	cp := *e
	s.blacklist[key] = &cp
	return nil
}

// RemoveBlacklist implements Store.
func (s *MemoryStore) RemoveBlacklist(_ context.Context, communityID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := blKey(communityID, userID)
	if _, ok := s.blacklist[key]; !ok {
		return false, nil
	}
	delete(s.blacklist, key)
	return true, nil
}

// ListBlacklist implements Store.
func (s *MemoryStore) ListBlacklist(_ context.Context, communityID string) ([]BlacklistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []BlacklistEntry
	for _, e := range s.blacklist {
		if e.CommunityID == communityID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt.After(out[j].AddedAt) })
	return out, nil
}

// IsBlacklisted implements Store.
func (s *MemoryStore) IsBlacklisted(_ context.Context, communityID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blacklist[blKey(communityID, userID)]
	return ok, nil
}
