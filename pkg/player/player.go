// Package player defines the audio output backend contract: a single
// exclusive playback slot the scheduler hands queued AudioChunks to, with
// pause/resume/stop control and an event stream for playback-progress
// notifications.
//
// Generalizes a gain/fade/close mixer interface down to the
// single-active-client slot the scheduler's arbitration policy guarantees
// (only one client ever plays at once).
package player

import (
	"context"

	"github.com/haivivi/ttsd/pkg/pcm"
	"github.com/haivivi/ttsd/pkg/ttstype"
)

// EventKind distinguishes the asynchronous notifications a Backend emits.
type EventKind int

const (
	// EventChunkPlayed fires once a previously Enqueued chunk has finished
	// rendering, mirroring the engine driver's chunk delivery so the
	// scheduler can drive utterance_completed and queue refill the same way
	// for both synthesis and playback completion.
	EventChunkPlayed EventKind = iota
	// EventDrained fires when a slot's queue has been fully rendered and no
	// further chunks are pending.
	EventDrained
	// EventError fires if the backend fails to render a chunk.
	EventError
)

// Event is one asynchronous notification from a Backend, always tagged with
// the client and utterance whose chunk it concerns. ChunkEvent carries the
// engine chunk event the played chunk was enqueued with (only meaningful
// for EventChunkPlayed); the scheduler uses ChunkEvent == ttstype.ChunkFinish
// to know exactly when an utterance's last chunk has finished rendering.
type Event struct {
	Client     ttstype.ClientID
	Utt        ttstype.UtteranceID
	Kind       EventKind
	ChunkEvent ttstype.ChunkEvent
	Err        error
}

// Backend is the exclusive audio-output slot (the scheduler's
// active_audio_client). A scheduler normally owns exactly one Backend
// instance; CreateSlot assigns the slot to a client and DestroySlot
// releases it.
type Backend interface {
	// CreateSlot assigns the output slot to client at the given format,
	// replacing whatever previously held it. The caller (scheduler) has
	// already resolved the arbitration policy before calling this.
	CreateSlot(ctx context.Context, client ttstype.ClientID, format pcm.Format) error
	// DestroySlot releases the slot if it currently belongs to client
	// (no-op otherwise).
	DestroySlot(client ttstype.ClientID) error

	// Enqueue appends a chunk of PCM to render for client's current
	// utterance, tagged with the engine event it came from. The backend
	// renders chunks from the same utterance in order and emits
	// EventChunkPlayed, carrying the same event back, as each completes —
	// a zero-length ttstype.ChunkFinish chunk still occupies its place in
	// the queue so its completion is reported in order, even though it
	// carries no audio.
	Enqueue(client ttstype.ClientID, utt ttstype.UtteranceID, event ttstype.ChunkEvent, data []byte) error

	Pause(client ttstype.ClientID) error
	Resume(client ttstype.ClientID) error
	// Stop halts playback and discards any unrendered queued audio for
	// client immediately.
	Stop(client ttstype.ClientID) error

	// State reports whether client currently holds the slot and, if so,
	// whether it is actively rendering (true) or paused (false).
	State(client ttstype.ClientID) (holds bool, playing bool)

	// Events returns the channel the scheduler drains on its event loop.
	Events() <-chan Event
}
