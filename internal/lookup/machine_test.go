package lookup

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/address-lookup/internal/parser"
)

var (
	key1 = parser.CanonicalKey{Postcode: "1234AB", HouseNumber: 10}
	key2 = parser.CanonicalKey{Postcode: "1234AB", HouseNumber: 12}
)

func dorpsstraat10() Address {
	return Address{Street: "Dorpsstraat", HouseNumber: 10, City: "Utrecht", Postcode: "1234AB"}
}

// loading drives a fresh state to Loading for key and returns the request id.
func loading(t *testing.T, m Machine, s State, key parser.CanonicalKey) (State, uint64) {
	t.Helper()

	s, effects := m.Transition(s, InputChanged{Key: key})
	require.Equal(t, StatusPending, s.Status)
	start := lastEffect[StartTimer](t, effects)

	s, effects = m.Transition(s, TimerFired{Timer: start.Timer})
	require.Equal(t, StatusLoading, s.Status)
	issue := lastEffect[IssueLookup](t, effects)
	require.Equal(t, key, issue.Key)
	return s, issue.Request
}

func lastEffect[T Effect](t *testing.T, effects []Effect) T {
	t.Helper()
	for i := len(effects) - 1; i >= 0; i-- {
		if e, ok := effects[i].(T); ok {
			return e
		}
	}
	var zero T
	require.Failf(t, "effect not emitted", "want %T in %#v", zero, effects)
	return zero
}

func TestTransition_InvalidInputStaysIdle(t *testing.T) {
	s, effects := Machine{}.Transition(State{}, InputChanged{Key: parser.Invalid})

	assert.Equal(t, StatusIdle, s.Status)
	assert.Empty(t, effects)
}

func TestTransition_EditRestartsDebounce(t *testing.T) {
	m := Machine{}

	s, effects := m.Transition(State{}, InputChanged{Key: key1})
	first := lastEffect[StartTimer](t, effects)

	s, effects = m.Transition(s, InputChanged{Key: key2})
	assert.Equal(t, []Effect{CancelTimer{Timer: first.Timer}, StartTimer{Timer: first.Timer + 1}}, effects)
	assert.Equal(t, key2, s.Key)

	// The superseded timer firing late does nothing.
	s2, effects := m.Transition(s, TimerFired{Timer: first.Timer})
	assert.Empty(t, effects)
	assert.Equal(t, s, s2)
}

func TestTransition_ValidResultWritesFields(t *testing.T) {
	m := Machine{}
	s, req := loading(t, m, State{}, key1)

	s, effects := m.Transition(s, ResultArrived{Request: req, Result: Valid(dorpsstraat10())})

	assert.Equal(t, StatusFound, s.Status)
	assert.Equal(t, []Effect{WriteFields{Address: dorpsstraat10()}}, effects)
}

func TestTransition_StaleResultIgnored(t *testing.T) {
	m := Machine{}
	s, oldReq := loading(t, m, State{}, key1)
	s, newReq := loading(t, m, s, key2)
	require.NotEqual(t, oldReq, newReq)

	other := dorpsstraat10()
	other.HouseNumber = 12
	s, _ = m.Transition(s, ResultArrived{Request: newReq, Result: Valid(other)})
	require.Equal(t, StatusFound, s.Status)

	s2, effects := m.Transition(s, ResultArrived{Request: oldReq, Result: Valid(dorpsstraat10())})
	assert.Empty(t, effects)
	assert.Equal(t, 12, s2.Address.HouseNumber)
}

func TestTransition_SameKeyWhileLoadingKeepsRequest(t *testing.T) {
	m := Machine{}
	s, req := loading(t, m, State{}, key1)

	s, effects := m.Transition(s, InputChanged{Key: key1})
	assert.Empty(t, effects)
	assert.Equal(t, StatusLoading, s.Status)

	s, _ = m.Transition(s, ResultArrived{Request: req, Result: NotFound()})
	assert.Equal(t, StatusNotFound, s.Status)
	assert.Equal(t, MessageNotFound, s.Notice())
}

func TestTransition_LeavingFoundClearsFields(t *testing.T) {
	m := Machine{}
	s, req := loading(t, m, State{}, key1)
	s, _ = m.Transition(s, ResultArrived{Request: req, Result: Valid(dorpsstraat10())})

	s, effects := m.Transition(s, InputChanged{Key: parser.Invalid})

	assert.Equal(t, StatusIdle, s.Status)
	assert.Equal(t, []Effect{ClearFields{}}, effects)
	assert.Nil(t, s.Address)
}

func TestTransition_ReturningToCompletedKeyNeedsNoLookup(t *testing.T) {
	m := Machine{}
	s, req := loading(t, m, State{}, key1)
	s, _ = m.Transition(s, ResultArrived{Request: req, Result: Valid(dorpsstraat10())})

	s, _ = m.Transition(s, InputChanged{Key: key2})
	require.Equal(t, StatusPending, s.Status)

	s, effects := m.Transition(s, InputChanged{Key: key1})

	assert.Equal(t, StatusFound, s.Status)
	require.Len(t, effects, 2)
	assert.IsType(t, CancelTimer{}, effects[0])
	assert.Equal(t, WriteFields{Address: dorpsstraat10()}, effects[1])
}

func TestTransition_TransportFailure(t *testing.T) {
	m := Machine{}
	s, req := loading(t, m, State{}, key1)

	cause := errors.New("connection refused")
	s, effects := m.Transition(s, ResultArrived{Request: req, Result: Failure(cause)})

	assert.Equal(t, StatusFailed, s.Status)
	assert.Equal(t, []Effect{ShowError{Message: MessageTransportFailure}}, effects)
	assert.ErrorIs(t, s.Cause, cause)

	// Same key again retries: failures are not remembered.
	s, effects = m.Transition(s, InputChanged{Key: key1})
	assert.Equal(t, StatusPending, s.Status)
	assert.Equal(t, ClearError{}, effects[0])
	assert.IsType(t, StartTimer{}, effects[1])
	assert.Empty(t, s.Notice())
}

func TestTransition_AdditionSelection(t *testing.T) {
	m := Machine{}
	s, req := loading(t, m, State{}, key1)

	s, effects := m.Transition(s, ResultArrived{Request: req, Result: AdditionAmbiguous(dorpsstraat10(), []string{"", "A", "B"})})
	require.Equal(t, StatusAdditionAmbiguous, s.Status)
	assert.Empty(t, effects)
	assert.Equal(t, Placeholder(), s.Selection)

	t.Run("unknown addition ignored", func(t *testing.T) {
		s2, effects := m.Transition(s, AdditionSelected{Selection: Addition("C")})
		assert.Empty(t, effects)
		assert.Equal(t, StatusAdditionAmbiguous, s2.Status)
	})

	t.Run("no addition", func(t *testing.T) {
		s2, effects := m.Transition(s, AdditionSelected{Selection: NoAddition()})
		require.Equal(t, StatusFound, s2.Status)
		want := dorpsstraat10().WithAddition("")
		assert.Equal(t, []Effect{WriteFields{Address: want}}, effects)
		assert.Equal(t, "Dorpsstraat 10", s2.Address.StreetAndHouseNumber())
	})

	s, effects = m.Transition(s, AdditionSelected{Selection: Addition("B")})
	require.Equal(t, StatusFound, s.Status)
	assert.Equal(t, "10 B", s.Address.HouseNumberAndAddition())
	assert.Len(t, effects, 1)

	// Another addition replaces the written one: clear first, then write.
	s, effects = m.Transition(s, AdditionSelected{Selection: NoAddition()})
	require.Equal(t, StatusFound, s.Status)
	assert.Equal(t, []Effect{ClearFields{}, WriteFields{Address: dorpsstraat10().WithAddition("")}}, effects)

	// Picking the same one again changes nothing.
	s2, effects := m.Transition(s, AdditionSelected{Selection: SelectionFor("")})
	assert.Empty(t, effects)
	assert.Equal(t, s, s2)

	// Back to the placeholder clears what was written.
	s, effects = m.Transition(s, AdditionSelected{Selection: Placeholder()})
	assert.Equal(t, StatusAdditionAmbiguous, s.Status)
	assert.Equal(t, []Effect{ClearFields{}}, effects)
}

func TestTransition_ConfirmAdditions(t *testing.T) {
	m := Machine{ConfirmAdditions: true}
	s, req := loading(t, m, State{}, key1)
	s, _ = m.Transition(s, ResultArrived{Request: req, Result: AdditionAmbiguous(dorpsstraat10(), []string{"A", "B"})})

	s, effects := m.Transition(s, AdditionSelected{Selection: Addition("B")})
	require.Equal(t, StatusFound, s.Status)
	confirm := lastEffect[IssueLookup](t, effects)
	assert.Equal(t, key1.WithAddition("B"), confirm.Key)

	t.Run("confirmed", func(t *testing.T) {
		s2, effects := m.Transition(s, ResultArrived{Request: confirm.Request, Result: Valid(dorpsstraat10().WithAddition("B"))})
		assert.Equal(t, StatusFound, s2.Status)
		assert.IsType(t, WriteFields{}, effects[0])
	})

	t.Run("rejected", func(t *testing.T) {
		s2, effects := m.Transition(s, ResultArrived{Request: confirm.Request, Result: NotFound()})
		assert.Equal(t, StatusFailed, s2.Status)
		assert.Equal(t, []Effect{ClearFields{}, ShowError{Message: MessageAdditionRejected}}, effects)
	})

	t.Run("transport failure", func(t *testing.T) {
		s2, effects := m.Transition(s, ResultArrived{Request: confirm.Request, Result: Failure(errors.New("connection reset"))})
		assert.Equal(t, StatusFailed, s2.Status)
		assert.Equal(t, []Effect{ClearFields{}, ShowError{Message: MessageTransportFailure}}, effects)
	})
}

func TestTransition_Closed(t *testing.T) {
	m := Machine{}
	s, effects := m.Transition(State{}, InputChanged{Key: key1})
	start := lastEffect[StartTimer](t, effects)

	s, effects = m.Transition(s, Closed{})
	assert.Equal(t, []Effect{CancelTimer{Timer: start.Timer}}, effects)
	assert.True(t, s.Closed())

	for _, e := range []Event{TimerFired{Timer: start.Timer}, InputChanged{Key: key2}, ResultArrived{Request: 1}} {
		s2, effects := m.Transition(s, e)
		assert.Empty(t, effects)
		assert.Equal(t, s, s2)
	}
}
