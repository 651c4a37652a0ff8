package lookup

import (
	"slices"
	"strconv"

	"github.com/address-lookup/internal/parser"
)

const (
	// MessageTransportFailure is shown when the address service could not be reached.
	MessageTransportFailure = "An error has occurred while retrieving address data. Please try again later or contact us."
	// MessageAdditionRejected is shown when a confirmed addition turns out to be invalid.
	MessageAdditionRejected = "The selected house number addition is not valid for this address. Please check the house number."
	// MessageNotFound is the notice for StatusNotFound. It is not an error.
	MessageNotFound = "Address not found."
)

// Status is the externally visible state of a lookup session.
type Status string

const (
	StatusIdle              Status = "idle"
	StatusPending           Status = "pending"
	StatusLoading           Status = "loading"
	StatusFound             Status = "found"
	StatusNotFound          Status = "not_found"
	StatusAdditionAmbiguous Status = "addition_ambiguous"
	StatusFailed            Status = "failed"
)

// SelectionKind tags a Selection.
type SelectionKind int

const (
	// SelectPlaceholder means nothing has been chosen yet.
	SelectPlaceholder SelectionKind = iota
	// SelectNoAddition chooses the bare house number. Only offered when the
	// empty addition is among the candidates.
	SelectNoAddition
	// SelectAddition chooses one of the listed additions.
	SelectAddition
)

// Selection is the user's choice in the addition picker. The placeholder,
// the empty addition and a real addition are three different values.
type Selection struct {
	Kind     SelectionKind `json:"kind"`
	Addition string        `json:"addition,omitempty"`
}

// Placeholder is the unselected picker value.
func Placeholder() Selection { return Selection{Kind: SelectPlaceholder} }

// NoAddition selects the house number without addition.
func NoAddition() Selection { return Selection{Kind: SelectNoAddition} }

// Addition selects addition a.
func Addition(a string) Selection { return Selection{Kind: SelectAddition, Addition: a} }

// SelectionFor maps a candidate as returned by the API to its Selection.
func SelectionFor(candidate string) Selection {
	if candidate == "" {
		return NoAddition()
	}
	return Addition(candidate)
}

func (s Selection) candidate() (string, bool) {
	switch s.Kind {
	case SelectNoAddition:
		return "", true
	case SelectAddition:
		return s.Addition, true
	}
	return "", false
}

func (s Selection) String() string {
	switch s.Kind {
	case SelectPlaceholder:
		return "placeholder"
	case SelectNoAddition:
		return "no addition"
	}
	return "addition " + strconv.Quote(s.Addition)
}

// State is one session's lookup state. The zero value is Idle.
//
// Every timer and request gets an id from seq. Only the id stored in timer
// or request is live; events carrying any other id are stale and dropped.
type State struct {
	Status     Status
	Key        parser.CanonicalKey // key the status refers to
	Address    *Address            // resolved address while Found
	Candidates []string            // additions offered while disambiguating
	Selection  Selection
	Message    string // error shown while Failed
	Cause      error

	provisional *Address
	seq         uint64
	timer       uint64
	request     uint64
	confirming  bool
	closed      bool

	lastKey    parser.CanonicalKey
	lastResult Result
	hasLast    bool
}

// Notice is the message a form shows for the state, if any.
func (s State) Notice() string {
	switch s.Status {
	case StatusFailed:
		return s.Message
	case StatusNotFound:
		return MessageNotFound
	}
	return ""
}

// Closed reports whether the session has been torn down.
func (s State) Closed() bool { return s.closed }

// Provisional is the address awaiting an addition choice.
func (s State) Provisional() *Address { return s.provisional }

// Event drives Transition.
type Event interface{ event() }

// InputChanged carries the key parsed from the current form input. Invalid
// keys are allowed here and move the session back to Idle.
type InputChanged struct{ Key parser.CanonicalKey }

// TimerFired is delivered when the debounce timer Timer elapses.
type TimerFired struct{ Timer uint64 }

// ResultArrived delivers the answer to request Request.
type ResultArrived struct {
	Request uint64
	Result  Result
}

// AdditionSelected is the user's choice in the addition picker.
type AdditionSelected struct{ Selection Selection }

// Closed tears the session down.
type Closed struct{}

func (InputChanged) event()     {}
func (TimerFired) event()       {}
func (ResultArrived) event()    {}
func (AdditionSelected) event() {}
func (Closed) event()           {}

// Effect is work the runtime performs after a transition.
type Effect interface{ effect() }

// StartTimer arms the debounce timer with id Timer, replacing any other.
type StartTimer struct{ Timer uint64 }

// CancelTimer disarms timer Timer.
type CancelTimer struct{ Timer uint64 }

// IssueLookup sends Key to the address API. The answer must come back as
// ResultArrived with the same Request id.
type IssueLookup struct {
	Request uint64
	Key     parser.CanonicalKey
}

// WriteFields writes Address into the destination fields.
type WriteFields struct{ Address Address }

// ClearFields empties the address-mapped destination fields.
type ClearFields struct{}

// ShowError displays Message.
type ShowError struct{ Message string }

// ClearError removes the displayed error.
type ClearError struct{}

func (StartTimer) effect()  {}
func (CancelTimer) effect() {}
func (IssueLookup) effect() {}
func (WriteFields) effect() {}
func (ClearFields) effect() {}
func (ShowError) effect()   {}
func (ClearError) effect()  {}

// Machine holds the options Transition depends on.
type Machine struct {
	// ConfirmAdditions issues a second lookup for the chosen addition and
	// fails the session if the API does not confirm it.
	ConfirmAdditions bool
}

// Transition is the pure state transition function. It never performs I/O;
// the returned effects describe what the runtime has to do, in order.
func (m Machine) Transition(s State, e Event) (State, []Effect) {
	if s.closed {
		return s, nil
	}
	if s.Status == "" {
		s.Status = StatusIdle
	}

	switch e := e.(type) {
	case InputChanged:
		return m.inputChanged(s, e.Key)
	case TimerFired:
		return m.timerFired(s, e.Timer)
	case ResultArrived:
		return m.resultArrived(s, e.Request, e.Result)
	case AdditionSelected:
		return m.additionSelected(s, e.Selection)
	case Closed:
		return m.close(s)
	}
	return s, nil
}

func (m Machine) inputChanged(s State, key parser.CanonicalKey) (State, []Effect) {
	// Nothing to do while the same key is loading or has its answer.
	if key == s.Key {
		switch s.Status {
		case StatusLoading, StatusFound, StatusNotFound, StatusAdditionAmbiguous:
			return s, nil
		}
	}

	var effects []Effect
	if s.timer != 0 {
		effects = append(effects, CancelTimer{Timer: s.timer})
		s.timer = 0
	}
	s, effects = leave(s, effects)
	s.request = 0
	s.confirming = false

	if !key.Valid() {
		s.Status = StatusIdle
		s.Key = parser.Invalid
		return s, effects
	}

	if s.hasLast && key == s.lastKey {
		s.Key = key
		return m.enter(s, s.lastResult, effects)
	}

	s.seq++
	s.timer = s.seq
	s.Status = StatusPending
	s.Key = key
	return s, append(effects, StartTimer{Timer: s.timer})
}

func (m Machine) timerFired(s State, timer uint64) (State, []Effect) {
	if timer == 0 || timer != s.timer || s.Status != StatusPending {
		return s, nil
	}

	s.timer = 0
	s.seq++
	s.request = s.seq
	s.Status = StatusLoading
	return s, []Effect{IssueLookup{Request: s.request, Key: s.Key}}
}

func (m Machine) resultArrived(s State, request uint64, r Result) (State, []Effect) {
	if request == 0 || request != s.request {
		return s, nil
	}
	s.request = 0

	if s.confirming {
		s.confirming = false
		if r.Kind == ResultValid && r.Address != nil {
			addr := *r.Address
			s.Address = &addr
			return s, []Effect{WriteFields{Address: addr}}
		}
		effects := []Effect{ClearFields{}}
		s.Address = nil
		s.Status = StatusFailed
		s.Message = MessageAdditionRejected
		if r.Kind == ResultError {
			s.Message = MessageTransportFailure
		}
		s.Cause = r.Err
		return s, append(effects, ShowError{Message: s.Message})
	}

	if r.Kind != ResultError {
		s.hasLast = true
		s.lastKey = s.Key
		s.lastResult = r
	}
	return m.enter(s, r, nil)
}

// enter moves s into the state described by r.
func (m Machine) enter(s State, r Result, effects []Effect) (State, []Effect) {
	s.Address = nil
	s.provisional = nil
	s.Candidates = nil
	s.Selection = Placeholder()
	s.Message = ""
	s.Cause = nil

	switch r.Kind {
	case ResultValid:
		if r.Address == nil {
			break
		}
		addr := *r.Address
		s.Status = StatusFound
		s.Address = &addr
		return s, append(effects, WriteFields{Address: addr})
	case ResultNotFound:
		s.Status = StatusNotFound
		return s, effects
	case ResultAdditionAmbiguous:
		if r.Address == nil {
			break
		}
		provisional := *r.Address
		s.Status = StatusAdditionAmbiguous
		s.provisional = &provisional
		s.Candidates = slices.Clone(r.Candidates)
		return s, effects
	}

	s.Status = StatusFailed
	s.Message = MessageTransportFailure
	s.Cause = r.Err
	return s, append(effects, ShowError{Message: s.Message})
}

func (m Machine) additionSelected(s State, sel Selection) (State, []Effect) {
	if s.provisional == nil {
		return s, nil
	}
	if s.Status != StatusAdditionAmbiguous && s.Status != StatusFound {
		return s, nil
	}

	if sel.Kind == SelectPlaceholder {
		var effects []Effect
		if s.Status == StatusFound {
			effects = append(effects, ClearFields{})
		}
		s.Status = StatusAdditionAmbiguous
		s.Address = nil
		s.Selection = sel
		s.request = 0
		s.confirming = false
		return s, effects
	}

	addition, _ := sel.candidate()
	if !slices.Contains(s.Candidates, addition) {
		return s, nil
	}

	var effects []Effect
	if s.Status == StatusFound {
		if current, ok := s.Selection.candidate(); ok && current == addition {
			return s, nil
		}
		// Leaving the previous Found: parts the new address lacks must not
		// keep the old values.
		effects = append(effects, ClearFields{})
	}

	addr := s.provisional.WithAddition(addition)
	s.Status = StatusFound
	s.Address = &addr
	s.Selection = sel
	s.request = 0
	s.confirming = false
	effects = append(effects, WriteFields{Address: addr})

	if m.ConfirmAdditions {
		s.seq++
		s.request = s.seq
		s.confirming = true
		effects = append(effects, IssueLookup{Request: s.request, Key: s.Key.WithAddition(addition)})
	}
	return s, effects
}

func (m Machine) close(s State) (State, []Effect) {
	var effects []Effect
	if s.timer != 0 {
		effects = append(effects, CancelTimer{Timer: s.timer})
		s.timer = 0
	}
	if s.Status == StatusFailed {
		effects = append(effects, ClearError{})
	}
	s.request = 0
	s.confirming = false
	s.closed = true
	s.Status = StatusIdle
	return s, effects
}

// leave emits the exit effects of the current status.
func leave(s State, effects []Effect) (State, []Effect) {
	switch s.Status {
	case StatusFound:
		effects = append(effects, ClearFields{})
	case StatusFailed:
		s.Message = ""
		s.Cause = nil
		effects = append(effects, ClearError{})
	}
	s.Address = nil
	s.provisional = nil
	s.Candidates = nil
	s.Selection = Placeholder()
	return s, effects
}
