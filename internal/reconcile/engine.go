// Package reconcile decides whether a client's playback update becomes the
// room's new player state, and produces the compensation pulse that follows
// every accepted update.
package reconcile

import (
	"math"
	"time"

	"github.com/weiawesome/wes-io-live/party-service/internal/domain"
)

// Verdict is the outcome of reconciling one update.
type Verdict int

const (
	Accepted Verdict = iota
	RejectedNotMember
	RejectedDuplicate
	RejectedThrottled
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case RejectedNotMember:
		return "not_member"
	case RejectedDuplicate:
		return "duplicate"
	case RejectedThrottled:
		return "throttled"
	default:
		return "unknown"
	}
}

// Config holds the reconciliation timings.
type Config struct {
	DuplicateTolerance time.Duration `mapstructure:"duplicate_tolerance"`
	Throttle           time.Duration `mapstructure:"throttle"`
	PulseDelay         time.Duration `mapstructure:"pulse_delay"`
	PulseStep          time.Duration `mapstructure:"pulse_step"`
}

// DefaultConfig returns the standard timings: 2s tolerance, 1s throttle and
// a +1s pulse one second after each accepted update.
func DefaultConfig() Config {
	return Config{
		DuplicateTolerance: 2 * time.Second,
		Throttle:           time.Second,
		PulseDelay:         time.Second,
		PulseStep:          time.Second,
	}
}

// Engine is stateless apart from its configuration; it is safe for
// concurrent use.
type Engine struct {
	cfg       Config
	afterFunc func(time.Duration, func())
}

// NewEngine creates an engine. Zero fields of cfg take the default value.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.DuplicateTolerance <= 0 {
		cfg.DuplicateTolerance = def.DuplicateTolerance
	}
	if cfg.Throttle <= 0 {
		cfg.Throttle = def.Throttle
	}
	if cfg.PulseDelay <= 0 {
		cfg.PulseDelay = def.PulseDelay
	}
	if cfg.PulseStep <= 0 {
		cfg.PulseStep = def.PulseStep
	}
	return &Engine{
		cfg: cfg,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Reconcile evaluates upd, submitted by userID at now, against room. The
// checks run in order: membership (only once the player is active),
// duplicate, throttle (only once active). On Accepted the returned player
// is the state to persist and broadcast; otherwise it is room.Player.
func (e *Engine) Reconcile(room *domain.Room, upd domain.PlaybackUpdate, userID string, now time.Time) (domain.Player, Verdict) {
	current := room.Player

	if current.Active && !room.HasMember(userID) {
		return current, RejectedNotMember
	}

	if upd.IsPlaying == current.IsPlaying &&
		math.Abs(upd.CurrentTime-current.CurrentTime) < e.cfg.DuplicateTolerance.Seconds() {
		return current, RejectedDuplicate
	}

	nowSec := domain.EpochSeconds(now)
	if current.Active && nowSec-current.LastUpdate < e.cfg.Throttle.Seconds() {
		return current, RejectedThrottled
	}

	return domain.Player{
		Active:      true,
		IsPlaying:   upd.IsPlaying,
		Duration:    upd.Duration,
		CurrentTime: upd.CurrentTime,
		UpdatedBy:   userID,
		LastUpdate:  nowSec,
	}, Accepted
}

// Advance returns p moved forward by one pulse step, never past its duration.
// A zero duration means the length is unknown (live streams) and is not a cap.
func (e *Engine) Advance(p domain.Player) domain.Player {
	next := p
	next.CurrentTime = p.CurrentTime + e.cfg.PulseStep.Seconds()
	if p.Duration > 0 {
		next.CurrentTime = math.Min(next.CurrentTime, p.Duration)
	}
	return next
}

// SchedulePulse calls publish with Advance(p) after the pulse delay. The
// pulse is fire-and-forget: it cannot be cancelled, does not re-check the
// room and is never persisted.
func (e *Engine) SchedulePulse(p domain.Player, publish func(domain.Player)) {
	next := e.Advance(p)
	e.afterFunc(e.cfg.PulseDelay, func() {
		publish(next)
	})
}
