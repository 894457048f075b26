// Package scheduler implements the session scheduler: the single authority
// over client state, the request/audio queues, the synthesis engine's busy
// slot, and the playback backend's active-client slot.
//
// Every public method posts a command closure onto a single buffered
// channel drained by one goroutine (Run); nothing outside that goroutine
// ever mutates scheduler-owned state. This is the same single-owner-goroutine
// pattern used to serialize output loops and timeout checking against
// shared connection state in connection-oriented servers.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/haivivi/ttsd/pkg/engine"
	"github.com/haivivi/ttsd/pkg/enginedrv"
	"github.com/haivivi/ttsd/pkg/logging"
	"github.com/haivivi/ttsd/pkg/metrics"
	"github.com/haivivi/ttsd/pkg/player"
	"github.com/haivivi/ttsd/pkg/rpc"
	"github.com/haivivi/ttsd/pkg/session"
	"github.com/haivivi/ttsd/pkg/ttstype"
)

var _ rpc.Handler = (*Scheduler)(nil)

// Option configures a Scheduler at construction.
type Option func(*Scheduler)

// WithLogger sets the scheduler's logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithCleanupDeadline bounds how long a client may stay registered after
// its transport definitively reports it gone before finalize runs
// (defaults to 0: finalize immediately on Disconnected, since wsbus only
// calls it once its own ping/pong deadline has already elapsed).
func WithCleanupDeadline(d time.Duration) Option {
	return func(s *Scheduler) { s.cleanupDeadline = d }
}

// WithMetrics attaches a metrics.Scheduler the scheduler updates at every
// session/queue/engine-slot transition. Omit to run without metrics.
func WithMetrics(m *metrics.Scheduler) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// EngineLoader resolves and loads the default engine the first time it is
// needed: if this is the first client and no engine is loaded, it loads
// the default engine.
type EngineLoader func(ctx context.Context) (engine.Plugin, error)

// Scheduler is the session scheduler.
type Scheduler struct {
	reg      *session.Registry
	drv      *enginedrv.Driver
	backend  player.Backend
	notifier session.Notifier
	logger   logging.Logger

	loadEngine      EngineLoader
	cleanupDeadline time.Duration
	metrics         *metrics.Scheduler

	cmds   chan func()
	engineLoaded bool

	mu sync.Mutex
	activeAudioClient ttstype.ClientID
	hasActiveAudio    bool
}

// New creates a Scheduler. Call Run to start its event loop before issuing
// any public method.
func New(reg *session.Registry, drv *enginedrv.Driver, backend player.Backend, notifier session.Notifier, loadEngine EngineLoader, opts ...Option) *Scheduler {
	s := &Scheduler{
		reg:      reg,
		drv:      drv,
		backend:  backend,
		notifier: notifier,
		logger:   logging.Nop(),
		loadEngine: loadEngine,
		cmds:     make(chan func(), 256),
	}
	for _, o := range opts {
		o(s)
	}
	drv.SetOnChunk(s.onEngineChunk)
	return s
}

// Run drains the command loop until ctx is cancelled, also forwarding
// player backend events onto the same loop.
func (s *Scheduler) Run(ctx context.Context) {
	go s.pumpBackendEvents(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-s.cmds:
			cmd()
		}
	}
}

func (s *Scheduler) pumpBackendEvents(ctx context.Context) {
	events := s.backend.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			e := ev
			s.post(func() { s.handleBackendEvent(e) })
		}
	}
}

// post enqueues fn onto the loop and blocks the caller until the *next*
// slot is available to accept it (it does not wait for fn to run) — used
// internally by async callback forwarders that must not block their own
// goroutine indefinitely.
func (s *Scheduler) post(fn func()) {
	s.cmds <- fn
}

// call posts fn onto the loop and blocks until fn has completed and
// reported its error — the pattern every public RPC-ish method below uses
// to run to completion on the loop goroutine.
func (s *Scheduler) call(fn func() error) error {
	done := make(chan error, 1)
	s.cmds <- func() { done <- fn() }
	return <-done
}

func (s *Scheduler) onEngineChunk(client ttstype.ClientID, utt ttstype.UtteranceID, event ttstype.ChunkEvent, data []byte) {
	s.post(func() { s.handleEngineChunk(client, utt, event, data) })
}

// --- rpc.Handler ---

func (s *Scheduler) Initialize(ctx context.Context, client ttstype.ClientID, pid int, mode ttstype.Mode) error {
	return s.call(func() error { return s.doInitialize(ctx, client, pid, mode) })
}

func (s *Scheduler) Prepare(ctx context.Context, client ttstype.ClientID) error {
	return s.call(func() error { return s.doPrepare(client) })
}

func (s *Scheduler) Unprepare(ctx context.Context, client ttstype.ClientID) error {
	return s.call(func() error { return s.reg.Transition(client, session.EventUnprepare) })
}

func (s *Scheduler) Play(ctx context.Context, client ttstype.ClientID) error {
	return s.call(func() error { return s.doPlay(client) })
}

func (s *Scheduler) Stop(ctx context.Context, client ttstype.ClientID) error {
	return s.call(func() error { return s.doStop(client) })
}

func (s *Scheduler) Pause(ctx context.Context, client ttstype.ClientID) error {
	return s.call(func() error { return s.doPause(client) })
}

func (s *Scheduler) Resume(ctx context.Context, client ttstype.ClientID) error {
	return s.call(func() error { return s.doPlay(client) })
}

func (s *Scheduler) AddText(ctx context.Context, client ttstype.ClientID, item ttstype.RequestItem) (ttstype.UtteranceID, error) {
	var utt ttstype.UtteranceID
	err := s.call(func() error {
		var err error
		utt, err = s.doAddText(client, item)
		return err
	})
	return utt, err
}

func (s *Scheduler) Finalize(ctx context.Context, client ttstype.ClientID) error {
	return s.call(func() error { return s.doFinalize(client) })
}

func (s *Scheduler) GetSupportedVoices(ctx context.Context) []rpc.VoiceDescriptor {
	var out []rpc.VoiceDescriptor
	_ = s.call(func() error {
		s.drv.ForeachVoice(func(lang string, vt ttstype.VoiceType) bool {
			out = append(out, rpc.VoiceDescriptor{Language: lang, VoiceType: vt})
			return true
		})
		return nil
	})
	return out
}

func (s *Scheduler) GetDefaultVoice(ctx context.Context) (string, ttstype.VoiceType) {
	var lang string
	var vt ttstype.VoiceType
	_ = s.call(func() error {
		lang, vt = s.drv.DefaultVoice()
		return nil
	})
	return lang, vt
}

// Disconnected is called by the transport once it has a definitive
// "client gone" indication (e.g. wsbus's missed-pong deadline), never
// merely because a ping was slow while the client was Playing.
func (s *Scheduler) Disconnected(client ttstype.ClientID) {
	finalize := func() {
		s.post(func() { s.doFinalize(client) })
	}
	if s.cleanupDeadline <= 0 {
		finalize()
		return
	}
	time.AfterFunc(s.cleanupDeadline, finalize)
}
