package lookup

import (
	"slices"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/address-lookup/internal/mapping"
	"github.com/address-lookup/internal/parser"
)

// DisplayMode controls how a resolved address is presented.
type DisplayMode string

const (
	// DisplayDefault hides the address fields and shows the formatted address.
	DisplayDefault DisplayMode = "default"
	// DisplayOnAddress shows the address fields once an address was found.
	DisplayOnAddress DisplayMode = "showOnAddress"
	// DisplayAll always shows the address fields.
	DisplayAll DisplayMode = "showAll"
)

// Valid reports whether m is one of the known modes.
func (m DisplayMode) Valid() bool {
	switch m {
	case DisplayDefault, DisplayOnAddress, DisplayAll:
		return true
	}
	return false
}

// Config is the per-session configuration.
type Config struct {
	Debounce         time.Duration
	ConfirmAdditions bool
	DisplayMode      DisplayMode
	Locale           parser.Locale
}

// FieldStore holds the destination form fields. Replace swaps the whole set
// at once so a reader never sees a partly written address.
type FieldStore interface {
	Snapshot() mapping.Destination
	Replace(mapping.Destination)
}

// MemoryFieldStore is a FieldStore kept in memory.
type MemoryFieldStore struct {
	mu     sync.RWMutex
	values mapping.Destination
}

// NewMemoryFieldStore returns a store holding a copy of initial.
func NewMemoryFieldStore(initial mapping.Destination) *MemoryFieldStore {
	return &MemoryFieldStore{values: initial.Clone()}
}

func (m *MemoryFieldStore) Snapshot() mapping.Destination {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values.Clone()
}

func (m *MemoryFieldStore) Replace(d mapping.Destination) {
	next := d.Clone()
	m.mu.Lock()
	m.values = next
	m.mu.Unlock()
}

// Option is one entry of the addition picker.
type Option struct {
	Label     string    `json:"label"`
	Selection Selection `json:"selection"`
}

// PlaceholderLabel is the label of the unselected picker entry.
const PlaceholderLabel = "Select a house number"

// Snapshot is a point-in-time copy of a session, safe to hand out.
type Snapshot struct {
	ID               string              `json:"id"`
	Status           Status              `json:"status"`
	Key              string              `json:"key,omitempty"`
	PostcodeValid    bool                `json:"postcodeValid"`
	HouseNumberValid bool                `json:"houseNumberValid"`
	Address          *Address            `json:"address,omitempty"`
	Formatted        string              `json:"formatted,omitempty"`
	ShowFields       bool                `json:"showFields"`
	Options          []Option            `json:"options,omitempty"`
	Selection        Selection           `json:"selection"`
	Error            string              `json:"error,omitempty"`
	Notice           string              `json:"notice,omitempty"`
	Fields           mapping.Destination `json:"fields"`
}

// Session binds one form's input to the lookup machine. Events are applied
// one at a time under a mutex; effects run while it is held, so two events
// never interleave.
type Session struct {
	id      string
	cfg     Config
	machine Machine
	parser  *parser.Parser
	sched   *Scheduler
	fields  FieldStore
	logger  *zap.Logger

	mu        sync.Mutex
	state     State
	parsed    parser.Parsed
	fieldMap  mapping.FieldMapping
	errorText string
	formatted string
	updated   time.Time
	onChange  []func(Snapshot)
}

// NewSession tạo mới Session
func NewSession(id string, api AddressAPI, fields FieldStore, fm mapping.FieldMapping, cfg Config, clock Clock, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fields == nil {
		fields = NewMemoryFieldStore(nil)
	}
	if !cfg.DisplayMode.Valid() {
		cfg.DisplayMode = DisplayDefault
	}
	if cfg.Locale.PostcodePattern == nil {
		cfg.Locale = parser.NL
	}

	s := &Session{
		id:       id,
		cfg:      cfg,
		machine:  Machine{ConfirmAdditions: cfg.ConfirmAdditions},
		parser:   parser.New(cfg.Locale),
		fields:   fields,
		logger:   logger.With(zap.String("session", id)),
		state:    State{Status: StatusIdle},
		fieldMap: fm.Clone(),
		updated:  time.Now(),
	}
	s.sched = NewScheduler(api, clock, cfg.Debounce, s.dispatch, s.logger)
	s.cfg.Debounce = s.sched.Debounce()
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// SetInput parses the form input and feeds the resulting key to the machine.
// The field-level validity is returned for inline feedback.
func (s *Session) SetInput(in parser.Input) parser.Parsed {
	parsed := s.parser.Parse(in)

	s.mu.Lock()
	s.parsed = parsed
	s.mu.Unlock()

	s.dispatch(InputChanged{Key: parsed.Key})
	return parsed
}

// Select applies the user's addition choice.
func (s *Session) Select(sel Selection) {
	s.dispatch(AdditionSelected{Selection: sel})
}

// SetMapping replaces the field mapping used by later writes.
func (s *Session) SetMapping(fm mapping.FieldMapping) {
	next := fm.Clone()
	s.mu.Lock()
	s.fieldMap = next
	s.mu.Unlock()
}

// OnChange registers f to receive a snapshot after every transition.
func (s *Session) OnChange(f func(Snapshot)) {
	s.mu.Lock()
	s.onChange = append(s.onChange, f)
	s.mu.Unlock()
}

// Close tears the session down. Pending timers are stopped and answers
// still in flight are dropped.
func (s *Session) Close() {
	s.dispatch(Closed{})
	s.sched.Close()
}

// UpdatedAt is the time of the last applied event.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updated
}

// State returns a copy of the machine state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the current session view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) dispatch(e Event) {
	s.mu.Lock()
	prev := s.state.Status
	next, effects := s.machine.Transition(s.state, e)
	s.state = next
	s.updated = time.Now()
	for _, eff := range effects {
		s.run(eff)
	}
	if prev != next.Status {
		s.logger.Debug("lookup state changed",
			zap.String("from", string(prev)),
			zap.String("to", string(next.Status)),
			zap.Stringer("key", next.Key))
	}

	var (
		listeners []func(Snapshot)
		snap      Snapshot
	)
	if len(effects) > 0 || prev != next.Status {
		listeners = slices.Clone(s.onChange)
		snap = s.snapshotLocked()
	}
	s.mu.Unlock()

	for _, f := range listeners {
		f(snap)
	}
}

// run performs one effect. Called with s.mu held.
func (s *Session) run(eff Effect) {
	switch eff := eff.(type) {
	case StartTimer:
		s.sched.Start(eff.Timer)
	case CancelTimer:
		s.sched.Cancel(eff.Timer)
	case IssueLookup:
		s.logger.Debug("issuing lookup", zap.Uint64("request", eff.Request), zap.Stringer("key", eff.Key))
		s.sched.Issue(eff.Request, eff.Key)
	case WriteFields:
		s.fields.Replace(mapping.Apply(eff.Address, s.fields.Snapshot(), s.fieldMap))
		s.formatted = eff.Address.Formatted()
	case ClearFields:
		s.fields.Replace(mapping.Clear(s.fields.Snapshot(), s.fieldMap))
		s.formatted = ""
	case ShowError:
		s.logger.Warn("lookup failed", zap.String("message", eff.Message), zap.Error(s.state.Cause))
		s.errorText = eff.Message
	case ClearError:
		s.errorText = ""
	}
}

func (s *Session) snapshotLocked() Snapshot {
	st := s.state
	snap := Snapshot{
		ID:               s.id,
		Status:           st.Status,
		PostcodeValid:    s.parsed.PostcodeValid,
		HouseNumberValid: s.parsed.HouseNumberValid,
		Selection:        st.Selection,
		Error:            s.errorText,
		Notice:           st.Notice(),
		Fields:           s.fields.Snapshot(),
	}
	if st.Key.Valid() {
		snap.Key = st.Key.String()
	}
	if st.Address != nil {
		addr := *st.Address
		snap.Address = &addr
		snap.Formatted = s.formatted
	}
	snap.Options = options(st)

	switch s.cfg.DisplayMode {
	case DisplayAll:
		snap.ShowFields = true
	case DisplayOnAddress:
		snap.ShowFields = st.Status == StatusFound
	default:
		snap.ShowFields = false
	}
	return snap
}

// options lists the picker entries: the placeholder first, then one entry
// per candidate in API order.
func options(st State) []Option {
	if len(st.Candidates) == 0 || st.provisional == nil {
		return nil
	}
	out := make([]Option, 0, len(st.Candidates)+1)
	out = append(out, Option{Label: PlaceholderLabel, Selection: Placeholder()})
	number := strconv.Itoa(st.provisional.HouseNumber)
	for _, c := range st.Candidates {
		label := number
		if c != "" {
			label += " " + c
		}
		out = append(out, Option{Label: label, Selection: SelectionFor(c)})
	}
	return out
}

// Options returns the addition picker entries.
func (s *Session) Options() []Option {
	s.mu.Lock()
	defer s.mu.Unlock()
	return options(s.state)
}
