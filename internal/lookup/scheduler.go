package lookup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/address-lookup/internal/parser"
)

// DefaultDebounce is the quiet period after the last edit before a lookup
// is sent.
const DefaultDebounce = 300 * time.Millisecond

// Timer is a cancellable pending callback.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. The real clock is time.AfterFunc; tests use a
// manual one.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// RealClock is backed by the time package.
var RealClock Clock = realClock{}

// Scheduler performs the timer and lookup effects of one session. It holds
// at most one armed timer. Answers are handed to deliver tagged with the id
// of the effect that caused them; deciding whether they are stale is the
// state machine's job.
type Scheduler struct {
	clock    Clock
	debounce time.Duration
	api      AddressAPI
	deliver  func(Event)
	logger   *zap.Logger

	mu      sync.Mutex
	timer   Timer
	timerID uint64
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler tạo mới Scheduler
func NewScheduler(api AddressAPI, clock Clock, debounce time.Duration, deliver func(Event), logger *zap.Logger) *Scheduler {
	if clock == nil {
		clock = RealClock
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		clock:    clock,
		debounce: debounce,
		api:      api,
		deliver:  deliver,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Debounce returns the configured quiet period.
func (s *Scheduler) Debounce() time.Duration { return s.debounce }

// Start arms timer id, stopping whatever timer was armed before.
func (s *Scheduler) Start(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timerID = id
	s.timer = s.clock.AfterFunc(s.debounce, func() {
		s.deliver(TimerFired{Timer: id})
	})
}

// Cancel stops timer id if it is the armed one.
func (s *Scheduler) Cancel(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil && s.timerID == id {
		s.timer.Stop()
		s.timer = nil
		s.timerID = 0
	}
}

// Issue sends key to the API in the background. The answer, or the
// transport failure, comes back through deliver as ResultArrived{id}.
// Earlier requests are left running: their answers are ignored on arrival.
func (s *Scheduler) Issue(id uint64, key parser.CanonicalKey) {
	if !key.Valid() {
		s.logger.Error("refusing to look up invalid key", zap.Uint64("request", id))
		return
	}

	s.mu.Lock()
	ctx := s.ctx
	if ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		start := time.Now()
		res, err := s.api.Lookup(ctx, key)
		if err != nil {
			res = Failure(fmt.Errorf("lookup %s: %w", key, err))
		}
		if ctx.Err() != nil {
			return
		}

		s.logger.Debug("lookup completed",
			zap.Uint64("request", id),
			zap.Stringer("key", key),
			zap.Stringer("result", res),
			zap.Duration("took", time.Since(start)))
		s.deliver(ResultArrived{Request: id, Result: res})
	}()
}

// Close stops the armed timer and cancels the context of every in-flight
// request. Nothing is delivered after Close returns, except by a request
// already past its cancellation check.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.cancel()
	s.mu.Unlock()
}

// Wait blocks until every issued request has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
