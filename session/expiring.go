package session

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// CancelFunc disarms a pending expiry without clearing the stored value.
type CancelFunc func()

// ExpiringStore is a single-slot store holding a value plus a countdown
// timer. The value auto-clears when the timer fires. A value is present iff
// a timer was armed for it; each Set cancels the previous timer before
// arming a new one, so a superseded timer can never clear a newer value.
type ExpiringStore[T any] struct {
	clk      clock.Clock
	ttl      *Setting[int]
	onClear  func(T)
	onExpire func()

	mu        sync.Mutex
	value     T
	present   bool
	timer     *clock.Timer
	armed     bool
	gen       uint64
	startedAt time.Time
	duration  time.Duration
}

// ExpiringStoreOption configures an ExpiringStore.
type ExpiringStoreOption[T any] func(*ExpiringStore[T])

// WithOnClear sets a release hook invoked with the previous value whenever
// it leaves the store (Clear, expiry, or replacement by Set). Used to wipe
// secret material.
func WithOnClear[T any](fn func(T)) ExpiringStoreOption[T] {
	return func(s *ExpiringStore[T]) {
		s.onClear = fn
	}
}

// WithOnExpire sets a hook invoked after the timer fires and the value has
// been cleared. Observers use it to re-render remaining-time displays.
func WithOnExpire[T any](fn func()) ExpiringStoreOption[T] {
	return func(s *ExpiringStore[T]) {
		s.onExpire = fn
	}
}

// NewExpiringStore creates an empty store. The ttl setting supplies the
// default duration (seconds) used when Set is called without an explicit TTL.
func NewExpiringStore[T any](clk clock.Clock, ttl *Setting[int], opts ...ExpiringStoreOption[T]) *ExpiringStore[T] {
	s := &ExpiringStore[T]{clk: clk, ttl: ttl}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type setOptions struct {
	ttlSeconds int
	persist    bool
}

// SetOption configures a single Set call.
type SetOption func(*setOptions)

// WithTTL overrides the store's default duration for this Set call.
func WithTTL(seconds int) SetOption {
	return func(o *setOptions) {
		o.ttlSeconds = seconds
	}
}

// PersistTTL writes an explicitly supplied TTL through to the associated
// duration setting before arming the timer, so future implicit durations
// reflect the new default. It has no effect without WithTTL.
func PersistTTL() SetOption {
	return func(o *setOptions) {
		o.persist = true
	}
}

// Set installs a value and (re)starts the countdown, canceling any prior
// pending expiry. The returned CancelFunc disarms the timer but leaves the
// value in place.
func (s *ExpiringStore[T]) Set(value T, opts ...SetOption) CancelFunc {
	var o setOptions
	for _, opt := range opts {
		opt(&o)
	}

	s.mu.Lock()
	seconds := o.ttlSeconds
	explicit := seconds > 0
	if !explicit {
		seconds = s.ttl.Value()
	}
	if o.persist && explicit {
		s.ttl.Set(seconds)
	}

	if s.armed && s.timer != nil {
		s.timer.Stop()
	}
	var released T
	releasing := false
	if s.present && s.onClear != nil {
		released = s.value
		releasing = true
	}

	s.gen++
	gen := s.gen
	s.value = value
	s.present = true
	s.startedAt = s.clk.Now()
	s.duration = time.Duration(seconds) * time.Second
	s.armed = true
	s.timer = s.clk.AfterFunc(s.duration, func() {
		s.expire(gen)
	})
	onClear := s.onClear
	s.mu.Unlock()

	if releasing {
		onClear(released)
	}
	return func() {
		s.cancel(gen)
	}
}

// cancel disarms the timer for the given generation. The value is left
// untouched; only the pending expiry callback is stopped.
func (s *ExpiringStore[T]) cancel(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || !s.armed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = nil
	s.armed = false
}

func (s *ExpiringStore[T]) expire(gen uint64) {
	s.mu.Lock()
	if s.gen != gen || !s.armed {
		s.mu.Unlock()
		return
	}
	released := s.value
	releasing := s.present
	var zero T
	s.value = zero
	s.present = false
	s.armed = false
	s.timer = nil
	onClear := s.onClear
	onExpire := s.onExpire
	s.mu.Unlock()

	if releasing && onClear != nil {
		onClear(released)
	}
	if onExpire != nil {
		onExpire()
	}
}

// Clear cancels any pending timer and empties the value. Idempotent.
func (s *ExpiringStore[T]) Clear() {
	s.mu.Lock()
	if s.armed && s.timer != nil {
		s.timer.Stop()
	}
	released := s.value
	releasing := s.present
	var zero T
	s.value = zero
	s.present = false
	s.armed = false
	s.timer = nil
	s.gen++
	onClear := s.onClear
	s.mu.Unlock()

	if releasing && onClear != nil {
		onClear(released)
	}
}

// Get returns the held value and whether one is present.
func (s *ExpiringStore[T]) Get() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.present
}

// Remaining returns the whole seconds left before expiry, rounded up.
// It returns 0 when no timer is armed.
func (s *ExpiringStore[T]) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.armed {
		return 0
	}
	rem := s.duration - s.clk.Now().Sub(s.startedAt)
	if rem <= 0 {
		return 0
	}
	return int((rem + time.Second - 1) / time.Second)
}

// Active reports whether a timer is armed and a value is present.
func (s *ExpiringStore[T]) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed && s.present
}
