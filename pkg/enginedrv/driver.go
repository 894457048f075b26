// Package enginedrv implements the engine driver: it owns the single
// shared synthesis in-flight slot, loads/unloads engine.Plugin instances,
// and filters the plugin's asynchronous callback stream so that stale,
// cancelled, or unrecognized (client, utt) pairs never reach the scheduler.
//
// The driver never touches scheduler state directly — callbacks are handed
// to an OnChunk closure, which the scheduler posts onto its own event-loop
// channel, the same indirection used to get callback-goroutine data onto an
// owning goroutine in connection-oriented transports.
package enginedrv

import (
	"context"
	"sync"

	"github.com/haivivi/ttsd/pkg/engine"
	"github.com/haivivi/ttsd/pkg/logging"
	"github.com/haivivi/ttsd/pkg/pcm"
	"github.com/haivivi/ttsd/pkg/schederr"
	"github.com/haivivi/ttsd/pkg/ttstype"
)

// busyState is the shared synthesis slot's occupancy state.
type busyState int

const (
	busyIdle busyState = iota
	busyInFlight
	busyCancelled
)

// OnChunk is invoked for every chunk the driver accepts as live, i.e. has
// already passed the stale/cancelled/unknown-client filter. The callback
// runs on whatever goroutine the underlying engine delivers on — the
// scheduler is responsible for marshalling it onto its own loop.
type OnChunk func(client ttstype.ClientID, utt ttstype.UtteranceID, event ttstype.ChunkEvent, data []byte)

// Driver manages one loaded engine.Plugin and the exclusive synthesis slot.
type Driver struct {
	logger logging.Logger
	onChunk OnChunk

	mu      sync.Mutex
	plugin  engine.Plugin
	info    engine.Info
	loaded  bool
	state   busyState
	client  ttstype.ClientID
	utt     ttstype.UtteranceID
	// generation increments on every Start and on Unload. Deliver does not
	// consult it: chunks are matched on (client, utt) only.
	generation uint64
}

// New creates a Driver. SetOnChunk must be called (typically by the
// scheduler that owns this driver) before Load, since the wiring is
// circular: the scheduler needs a *Driver to construct, and the driver
// needs the scheduler's callback.
func New(logger logging.Logger) *Driver {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Driver{logger: logger}
}

// SetOnChunk installs the callback invoked for every chunk that passes the
// staleness filter.
func (d *Driver) SetOnChunk(onChunk OnChunk) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onChunk = onChunk
}

// Load loads plugin and wires the driver as its ResultSink. An engine may be
// loaded at most once per daemon lifetime per engine id.
func (d *Driver) Load(ctx context.Context, plugin engine.Plugin) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loaded {
		return schederr.New(schederr.OperationFailed, "engine already loaded")
	}
	if err := plugin.Load(ctx, d); err != nil {
		return schederr.Wrap(schederr.EngineNotFound, err, "engine load failed")
	}
	d.plugin = plugin
	d.info = plugin.Info()
	d.loaded = true
	d.state = busyIdle
	return nil
}

// Unload is idempotent.
func (d *Driver) Unload() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.loaded {
		return nil
	}
	err := d.plugin.Unload()
	d.plugin = nil
	d.loaded = false
	d.state = busyIdle
	d.generation++
	if err != nil {
		return schederr.Wrap(schederr.OperationFailed, err, "engine unload failed")
	}
	return nil
}

// Info returns the loaded engine's Info, or the zero value if unloaded.
func (d *Driver) Info() engine.Info {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.info
}

// AudioFormat returns the loaded engine's output format.
func (d *Driver) AudioFormat() pcm.Format {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.plugin == nil {
		return pcm.Format{}
	}
	return d.plugin.AudioFormat()
}

// ForeachVoice delegates to the loaded engine.
func (d *Driver) ForeachVoice(visit func(lang string, vt ttstype.VoiceType) bool) {
	d.mu.Lock()
	p := d.plugin
	d.mu.Unlock()
	if p != nil {
		p.ForeachVoice(visit)
	}
}

// IsValidVoice delegates to the loaded engine.
func (d *Driver) IsValidVoice(lang string, vt ttstype.VoiceType) bool {
	d.mu.Lock()
	p := d.plugin
	d.mu.Unlock()
	return p != nil && p.IsValidVoice(lang, vt)
}

// DefaultVoice delegates to the loaded engine.
func (d *Driver) DefaultVoice() (string, ttstype.VoiceType) {
	d.mu.Lock()
	p := d.plugin
	d.mu.Unlock()
	if p == nil {
		return ttstype.DefaultLanguage, ttstype.VoiceAuto
	}
	return p.DefaultVoice()
}

// SupportsPitch reports the loaded engine's pitch capability.
func (d *Driver) SupportsPitch() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.info.SupportsPitch
}

// IsBusy reports whether the single synthesis slot is occupied.
func (d *Driver) IsBusy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == busyInFlight
}

// CurrentClient reports which client's utterance currently occupies the
// synthesis slot (only meaningful when IsBusy returns true).
func (d *Driver) CurrentClient() ttstype.ClientID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.client
}

// CurrentUtt reports the utterance id currently occupying the synthesis
// slot (only meaningful when IsBusy returns true).
func (d *Driver) CurrentUtt() ttstype.UtteranceID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.utt
}

// Start occupies the synthesis slot and asks the engine to begin producing
// utt's audio. Returns an OperationFailed error if the slot is already occupied (the
// scheduler is responsible for only calling Start when it isn't, but the
// driver enforces it defensively since it is the sole owner of the slot).
func (d *Driver) Start(ctx context.Context, client ttstype.ClientID, utt ttstype.UtteranceID, req engine.SynthRequest) error {
	d.mu.Lock()
	if !d.loaded {
		d.mu.Unlock()
		return schederr.New(schederr.EngineNotFound, "no engine loaded")
	}
	if d.state == busyInFlight {
		d.mu.Unlock()
		return schederr.New(schederr.OperationFailed, "synthesis slot occupied by client %d utt %d", d.client, d.utt)
	}
	d.state = busyInFlight
	d.client = client
	d.utt = utt
	d.generation++
	plugin := d.plugin
	d.mu.Unlock()

	if err := plugin.StartSynth(ctx, client, utt, req); err != nil {
		d.mu.Lock()
		d.state = busyIdle
		d.mu.Unlock()
		return schederr.Wrap(schederr.OperationFailed, err, "engine start_synth failed")
	}
	return nil
}

// Cancel marks the in-flight synthesis cancelled: Deliver drops every further
// callback for it except the engine's own Cancel event, and the plugin is
// asked to stop producing them.
// Cancel is safe to call when nothing is in flight (no-op).
func (d *Driver) Cancel() error {
	d.mu.Lock()
	if d.state != busyInFlight {
		d.mu.Unlock()
		return nil
	}
	d.state = busyCancelled
	plugin := d.plugin
	d.mu.Unlock()

	if plugin == nil {
		return nil
	}
	if err := plugin.CancelSynth(); err != nil {
		return schederr.Wrap(schederr.OperationFailed, err, "engine cancel_synth failed")
	}
	return nil
}

// Deliver implements engine.ResultSink. It is the stale/unknown/cancelled
// filter: a chunk is forwarded to OnChunk only if it matches the current
// (client, utt). This runs on the engine's own callback goroutine, so it
// never writes the slot back to Idle itself — that happens only inside the
// scheduler loop via Release, once the posted chunk has actually been
// processed.
func (d *Driver) Deliver(client ttstype.ClientID, utt ttstype.UtteranceID, event ttstype.ChunkEvent, data []byte) bool {
	d.mu.Lock()
	matches := d.state != busyIdle && d.client == client && d.utt == utt
	cancelled := d.state == busyCancelled
	onChunk := d.onChunk
	d.mu.Unlock()

	if !matches {
		d.logger.DebugPrintf("enginedrv: dropping stale chunk client=%d utt=%d event=%s", client, utt, event)
		return false
	}
	if cancelled && event != ttstype.ChunkCancel {
		// Suppress everything except the engine's own cancel ack once we've
		// told it to stop; the scheduler already knows the utterance died.
		return false
	}
	if onChunk != nil {
		onChunk(client, utt, event, data)
	}
	return !event.Terminal()
}

// Release returns the synthesis slot to Idle. The scheduler calls this from
// its own event-loop goroutine after it has finished handling a terminal
// chunk (Finish/Cancel/Fail) for (client, utt) — never from the engine
// callback goroutine. Calling it for a (client, utt) that no longer owns the
// slot is a harmless no-op.
func (d *Driver) Release(client ttstype.ClientID, utt ttstype.UtteranceID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != busyIdle && d.client == client && d.utt == utt {
		d.state = busyIdle
	}
}
