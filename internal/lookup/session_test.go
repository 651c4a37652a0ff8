package lookup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/address-lookup/internal/mapping"
	"github.com/address-lookup/internal/parser"
)

// manualClock fires timers only when advanced.
type manualClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []func()
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t.f)
		}
	}
	c.mu.Unlock()

	for _, f := range due {
		f()
	}
}

type reply struct {
	res Result
	err error
}

type call struct {
	key   parser.CanonicalKey
	reply chan reply
}

// gatedAPI blocks every lookup until the test answers it.
type gatedAPI struct {
	calls chan call
}

func newGatedAPI() *gatedAPI {
	return &gatedAPI{calls: make(chan call, 16)}
}

func (a *gatedAPI) Lookup(ctx context.Context, key parser.CanonicalKey) (Result, error) {
	c := call{key: key, reply: make(chan reply, 1)}
	a.calls <- c
	select {
	case r := <-c.reply:
		return r.res, r.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (a *gatedAPI) next(t *testing.T) call {
	t.Helper()
	select {
	case c := <-a.calls:
		return c
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no lookup issued")
		return call{}
	}
}

func (a *gatedAPI) assertIdle(t *testing.T) {
	t.Helper()
	select {
	case c := <-a.calls:
		assert.Failf(t, "unexpected lookup", "key %s", c.key)
	case <-time.After(50 * time.Millisecond):
	}
}

var checkoutMapping = mapping.FieldMapping{
	"address_1": mapping.StreetAndHouseNumber,
	"city":      mapping.City,
	"postcode":  mapping.Postcode,
	"address_2": mapping.Unmapped,
}

func newTestSession(t *testing.T, api AddressAPI, cfg Config) (*Session, *manualClock, *MemoryFieldStore) {
	t.Helper()
	clock := &manualClock{}
	fields := NewMemoryFieldStore(mapping.Destination{"address_2": "attn. Jan"})
	s := NewSession("test", api, fields, checkoutMapping, cfg, clock, zaptest.NewLogger(t))
	t.Cleanup(s.Close)
	return s, clock, fields
}

func waitStatus(t *testing.T, s *Session, want Status) {
	t.Helper()
	require.Eventually(t, func() bool { return s.State().Status == want },
		2*time.Second, 5*time.Millisecond, "status never became %s (is %s)", want, s.State().Status)
}

func TestSession_DebounceSendsOnlyLastKey(t *testing.T) {
	api := newGatedAPI()
	s, clock, _ := newTestSession(t, api, Config{Debounce: 300 * time.Millisecond})

	for _, nr := range []string{"1", "10", "10 b"} {
		s.SetInput(parser.Input{Postcode: "1234 ab", HouseNumber: nr})
		clock.Advance(100 * time.Millisecond)
	}
	api.assertIdle(t)
	assert.Equal(t, StatusPending, s.State().Status)

	clock.Advance(300 * time.Millisecond)

	c := api.next(t)
	assert.Equal(t, parser.CanonicalKey{Postcode: "1234AB", HouseNumber: 10, Addition: "B"}, c.key)
	api.assertIdle(t)
	c.reply <- reply{res: NotFound()}
	waitStatus(t, s, StatusNotFound)
}

func TestSession_InvalidInputNeverLooksUp(t *testing.T) {
	api := newGatedAPI()
	s, clock, _ := newTestSession(t, api, Config{})

	parsed := s.SetInput(parser.Input{Postcode: "1234", HouseNumber: "10"})
	clock.Advance(time.Second)

	assert.False(t, parsed.PostcodeValid)
	assert.True(t, parsed.HouseNumberValid)
	assert.Equal(t, StatusIdle, s.State().Status)
	api.assertIdle(t)
}

func TestSession_OutOfOrderResponses(t *testing.T) {
	api := newGatedAPI()
	s, clock, fields := newTestSession(t, api, Config{})

	s.SetInput(parser.Input{Postcode: "1234AB", HouseNumber: "10"})
	clock.Advance(DefaultDebounce)
	first := api.next(t)

	s.SetInput(parser.Input{Postcode: "1234AB", HouseNumber: "12"})
	clock.Advance(DefaultDebounce)
	second := api.next(t)

	addr12 := dorpsstraat10()
	addr12.HouseNumber = 12
	second.reply <- reply{res: Valid(addr12)}
	waitStatus(t, s, StatusFound)

	first.reply <- reply{res: Valid(dorpsstraat10())}
	s.sched.Wait()

	assert.Equal(t, 12, s.State().Address.HouseNumber)
	assert.Equal(t, "Dorpsstraat 12", fields.Snapshot()["address_1"])
}

func TestSession_AdditionDisambiguation(t *testing.T) {
	api := newGatedAPI()
	s, clock, fields := newTestSession(t, api, Config{})

	s.SetInput(parser.Input{Postcode: "1234AB", HouseNumber: "10"})
	clock.Advance(DefaultDebounce)
	api.next(t).reply <- reply{res: AdditionAmbiguous(dorpsstraat10(), []string{"", "A", "B"})}
	waitStatus(t, s, StatusAdditionAmbiguous)

	assert.Equal(t, []Option{
		{Label: PlaceholderLabel, Selection: Placeholder()},
		{Label: "10", Selection: NoAddition()},
		{Label: "10 A", Selection: Addition("A")},
		{Label: "10 B", Selection: Addition("B")},
	}, s.Options())
	assert.Empty(t, fields.Snapshot()["address_1"])

	s.Select(Addition("B"))

	snap := s.Snapshot()
	assert.Equal(t, StatusFound, snap.Status)
	assert.Equal(t, mapping.Destination{
		"address_1": "Dorpsstraat 10 B",
		"address_2": "attn. Jan",
		"city":      "Utrecht",
		"postcode":  "1234AB",
	}, snap.Fields)
	assert.Equal(t, "Dorpsstraat 10 B\n1234AB Utrecht", snap.Formatted)
	assert.False(t, snap.ShowFields)
}

func TestSession_TransportFailure(t *testing.T) {
	api := newGatedAPI()
	s, clock, _ := newTestSession(t, api, Config{DisplayMode: DisplayOnAddress})

	s.SetInput(parser.Input{Postcode: "1234AB", HouseNumber: "10"})
	clock.Advance(DefaultDebounce)
	api.next(t).reply <- reply{err: errors.New("dial tcp: i/o timeout")}
	waitStatus(t, s, StatusFailed)

	snap := s.Snapshot()
	assert.Equal(t, MessageTransportFailure, snap.Error)
	assert.Equal(t, mapping.Destination{"address_2": "attn. Jan"}, snap.Fields)
	assert.False(t, snap.ShowFields)

	s.SetInput(parser.Input{Postcode: "1234AB", HouseNumber: "11"})
	snap = s.Snapshot()
	assert.Equal(t, StatusPending, snap.Status)
	assert.Empty(t, snap.Error)
}

func TestSession_ReselectingAdditionClearsOldSuffix(t *testing.T) {
	api := newGatedAPI()
	clock := &manualClock{}
	fields := NewMemoryFieldStore(mapping.Destination{})
	fm := mapping.FieldMapping{
		"address_1":           mapping.StreetAndHouseNumber,
		"house_number_suffix": mapping.HouseNumberAddition,
	}
	s := NewSession("test", api, fields, fm, Config{}, clock, zaptest.NewLogger(t))
	t.Cleanup(s.Close)

	s.SetInput(parser.Input{Postcode: "1234AB", HouseNumber: "10"})
	clock.Advance(DefaultDebounce)
	api.next(t).reply <- reply{res: AdditionAmbiguous(dorpsstraat10(), []string{"", "A"})}
	waitStatus(t, s, StatusAdditionAmbiguous)

	s.Select(Addition("A"))
	assert.Equal(t, mapping.Destination{"address_1": "Dorpsstraat 10 A", "house_number_suffix": "A"}, fields.Snapshot())

	s.Select(NoAddition())
	assert.Equal(t, StatusFound, s.State().Status)
	assert.Equal(t, "Dorpsstraat 10", fields.Snapshot()["address_1"])
	assert.Empty(t, fields.Snapshot()["house_number_suffix"])
}

func TestSession_ConfirmedAdditionRejected(t *testing.T) {
	api := newGatedAPI()
	s, clock, fields := newTestSession(t, api, Config{ConfirmAdditions: true})

	s.SetInput(parser.Input{Postcode: "1234AB", HouseNumber: "10"})
	clock.Advance(DefaultDebounce)
	api.next(t).reply <- reply{res: AdditionAmbiguous(dorpsstraat10(), []string{"A", "B"})}
	waitStatus(t, s, StatusAdditionAmbiguous)

	s.Select(Addition("B"))
	assert.Equal(t, "Dorpsstraat 10 B", fields.Snapshot()["address_1"])

	confirm := api.next(t)
	assert.Equal(t, "B", confirm.key.Addition)
	confirm.reply <- reply{res: NotFound()}
	waitStatus(t, s, StatusFailed)

	assert.Equal(t, MessageAdditionRejected, s.Snapshot().Error)
	assert.Empty(t, fields.Snapshot()["address_1"])
}

func TestSession_CloseDropsPendingWork(t *testing.T) {
	api := newGatedAPI()
	s, clock, _ := newTestSession(t, api, Config{})

	var (
		mu      sync.Mutex
		updates int
	)
	s.OnChange(func(Snapshot) {
		mu.Lock()
		updates++
		mu.Unlock()
	})

	s.SetInput(parser.Input{Postcode: "1234AB", HouseNumber: "10"})
	clock.Advance(DefaultDebounce)
	inflight := api.next(t)

	s.SetInput(parser.Input{Postcode: "1234AB", HouseNumber: "12"})
	s.Close()
	clock.Advance(time.Second)

	inflight.reply <- reply{res: Valid(dorpsstraat10())}
	s.sched.Wait()
	api.assertIdle(t)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 4, updates, "pending, loading, pending, closed")
	assert.True(t, s.State().Closed())
	assert.Nil(t, s.State().Address)
}

func TestSession_SetMappingAffectsLaterWrites(t *testing.T) {
	api := newGatedAPI()
	s, clock, fields := newTestSession(t, api, Config{})
	s.SetMapping(mapping.FieldMapping{"street": mapping.Street, "number": mapping.HouseNumberAndAddition})

	s.SetInput(parser.Input{Postcode: "1234AB", HouseNumber: "10"})
	clock.Advance(DefaultDebounce)
	api.next(t).reply <- reply{res: Valid(dorpsstraat10())}
	waitStatus(t, s, StatusFound)

	assert.Equal(t, mapping.Destination{
		"address_2": "attn. Jan",
		"street":    "Dorpsstraat",
		"number":    "10",
	}, fields.Snapshot())
}
