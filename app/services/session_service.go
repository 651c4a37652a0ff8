package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/address-lookup/helpers/utils"
	"github.com/address-lookup/internal/lookup"
	"github.com/address-lookup/internal/mapping"
	"github.com/address-lookup/internal/parser"
	"github.com/address-lookup/internal/search"
)

var (
	// ErrSessionNotFound is returned for unknown or expired session ids.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTooManySessions is returned when the session limit is reached.
	ErrTooManySessions = errors.New("too many open sessions")
)

// CreateSessionParams describes the checkout form a session serves.
type CreateSessionParams struct {
	Profile string
	// Fields are the destination fields the form renders. Empty means the
	// standard fields.
	Fields []string
	// Values are the current field values, e.g. a stored address.
	Values map[string]string
	// Postcode and HouseNumber prefill the lookup inputs.
	Postcode    string
	HouseNumber string
	Optional    bool
}

// SessionView is a session snapshot plus the addition the shopper most
// likely meant, when the typed one was not accepted.
type SessionView struct {
	lookup.Snapshot
	Suggested *lookup.Selection `json:"suggested,omitempty"`
	Profile   string            `json:"profile"`
}

type sessionEntry struct {
	session  *lookup.Session
	profile  string
	fields   []string
	optional bool
}

// SessionService keeps the live form sessions.
type SessionService struct {
	api      lookup.AddressAPI
	mappings *MappingService
	cfg      lookup.Config
	clock    lookup.Clock
	ttl      time.Duration
	max      int
	logger   *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

// NewSessionService tạo mới SessionService
func NewSessionService(api lookup.AddressAPI, mappings *MappingService, cfg lookup.Config, ttl time.Duration, maxSessions int, logger *zap.Logger) *SessionService {
	return &SessionService{
		api:      api,
		mappings: mappings,
		cfg:      cfg,
		clock:    lookup.RealClock,
		ttl:      ttl,
		max:      maxSessions,
		logger:   logger,
		sessions: make(map[string]*sessionEntry),
	}
}

// WithClock replaces the clock driving debounce timers.
func (ss *SessionService) WithClock(c lookup.Clock) *SessionService {
	ss.clock = c
	return ss
}

// Create opens a session for one form. The field mapping of the profile is
// refreshed against the form's fields first.
func (ss *SessionService) Create(ctx context.Context, p CreateSessionParams) (SessionView, error) {
	ss.mu.RLock()
	full := ss.max > 0 && len(ss.sessions) >= ss.max
	ss.mu.RUnlock()
	if full {
		return SessionView{}, ErrTooManySessions
	}

	fields := p.Fields
	if len(fields) == 0 {
		fields = ss.mappings.StandardFields()
	}
	profile, _, err := ss.mappings.Refresh(ctx, p.Profile, fields)
	if err != nil {
		return SessionView{}, fmt.Errorf("refresh field mapping: %w", err)
	}

	initial := make(mapping.Destination, len(fields))
	for _, f := range fields {
		initial[f] = p.Values[f]
	}

	houseNumber := p.HouseNumber
	if houseNumber == "" {
		houseNumber = parser.InitHouseNumber(p.Values["address_1"], p.Values["address_2"])
	}
	postcode := p.Postcode
	if postcode == "" {
		postcode = p.Values["postcode"]
	}

	id := utils.GenerateUUID()
	fm := projectMapping(fields, profile.Config.Mapping)
	s := lookup.NewSession(id, ss.api, lookup.NewMemoryFieldStore(initial), fm, ss.cfg, ss.clock, ss.logger)
	entry := &sessionEntry{session: s, profile: p.Profile, fields: slices.Clone(fields), optional: p.Optional}

	ss.mu.Lock()
	ss.sessions[id] = entry
	ss.mu.Unlock()

	if postcode != "" || houseNumber != "" {
		s.SetInput(parser.Input{Postcode: postcode, HouseNumber: houseNumber, Optional: p.Optional})
	}

	ss.logger.Info("session created",
		zap.String("session", id),
		zap.String("profile", p.Profile),
		zap.Int("fields", len(fields)))
	return ss.view(entry), nil
}

// Input feeds new postcode and house number values to the session.
func (ss *SessionService) Input(id, postcode, houseNumber string) (SessionView, parser.Parsed, error) {
	entry, err := ss.get(id)
	if err != nil {
		return SessionView{}, parser.Parsed{}, err
	}
	parsed := entry.session.SetInput(parser.Input{Postcode: postcode, HouseNumber: houseNumber, Optional: entry.optional})
	return ss.view(entry), parsed, nil
}

// Select applies the addition picker value.
func (ss *SessionService) Select(id string, sel lookup.Selection) (SessionView, error) {
	entry, err := ss.get(id)
	if err != nil {
		return SessionView{}, err
	}
	entry.session.Select(sel)
	return ss.view(entry), nil
}

// Get returns the current view of the session.
func (ss *SessionService) Get(id string) (SessionView, error) {
	entry, err := ss.get(id)
	if err != nil {
		return SessionView{}, err
	}
	return ss.view(entry), nil
}

// Delete closes and forgets the session.
func (ss *SessionService) Delete(id string) error {
	ss.mu.Lock()
	entry, ok := ss.sessions[id]
	delete(ss.sessions, id)
	ss.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	entry.session.Close()
	return nil
}

// ApplyMapping pushes a changed profile mapping to its open sessions. Each
// session only receives the fields its own form renders.
func (ss *SessionService) ApplyMapping(profile string, fm mapping.FieldMapping) int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	n := 0
	for _, entry := range ss.sessions {
		if entry.profile == profile {
			entry.session.SetMapping(projectMapping(entry.fields, fm))
			n++
		}
	}
	return n
}

// projectMapping restricts fm to fields, filling fields fm does not know
// with their defaults.
func projectMapping(fields []string, fm mapping.FieldMapping) mapping.FieldMapping {
	return mapping.Merge(mapping.ComputeDefaults(fields), fm)
}

// Count returns the number of open sessions.
func (ss *SessionService) Count() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.sessions)
}

// Expire closes sessions idle since before now-ttl and returns how many.
func (ss *SessionService) Expire(now time.Time) int {
	if ss.ttl <= 0 {
		return 0
	}
	cutoff := now.Add(-ss.ttl)

	ss.mu.Lock()
	var expired []*lookup.Session
	for id, entry := range ss.sessions {
		if entry.session.UpdatedAt().Before(cutoff) {
			expired = append(expired, entry.session)
			delete(ss.sessions, id)
		}
	}
	ss.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	return len(expired)
}

// RunJanitor expires idle sessions every interval until ctx is done.
func (ss *SessionService) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := ss.Expire(now); n > 0 {
				ss.logger.Info("expired idle sessions", zap.Int("count", n), zap.Int("open", ss.Count()))
			}
		}
	}
}

// Close tears every session down.
func (ss *SessionService) Close() {
	ss.mu.Lock()
	sessions := make([]*lookup.Session, 0, len(ss.sessions))
	for _, entry := range ss.sessions {
		sessions = append(sessions, entry.session)
	}
	ss.sessions = make(map[string]*sessionEntry)
	ss.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

func (ss *SessionService) get(id string) (*sessionEntry, error) {
	if !utils.IsUUID(id) {
		return nil, ErrSessionNotFound
	}
	ss.mu.RLock()
	entry, ok := ss.sessions[id]
	ss.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return entry, nil
}

func (ss *SessionService) view(entry *sessionEntry) SessionView {
	st := entry.session.State()
	v := SessionView{Snapshot: entry.session.Snapshot(), Profile: entry.profile}

	if st.Status == lookup.StatusAdditionAmbiguous && st.Key.Addition != "" {
		if slices.Contains(st.Candidates, st.Key.Addition) {
			sel := lookup.Addition(st.Key.Addition)
			v.Suggested = &sel
		} else if c, ok := search.ClosestAddition(st.Key.Addition, st.Candidates); ok {
			sel := lookup.SelectionFor(c)
			v.Suggested = &sel
		}
	}
	return v
}
