// Package engine defines the synthesis engine plugin contract: the Go
// analogue of a dynamically loaded module exporting load/unload, voice
// enumeration, and a streaming synth call that delivers chunks through a
// result sink.
package engine

import (
	"context"

	"github.com/haivivi/ttsd/pkg/pcm"
	"github.com/haivivi/ttsd/pkg/ttstype"
)

// Info describes a loaded engine.
type Info struct {
	UUID          string
	Name          string
	NeedsNetwork  bool
	SupportsPitch bool // pitch is an optional capability, not every engine supports it
}

// SynthRequest is the engine-facing view of a RequestItem, carrying the
// session credential opaquely.
type SynthRequest struct {
	Language   string
	VoiceType  ttstype.VoiceType
	Text       string
	Speed      int
	Pitch      int
	Credential *string
}

// ResultSink receives the engine's asynchronous (client, utt_id, event,
// bytes) stream. Deliver returns whether the engine should keep streaming;
// engines must stop calling Deliver for a given utterance once a terminal
// event was delivered or false was returned.
type ResultSink interface {
	Deliver(client ttstype.ClientID, utt ttstype.UtteranceID, event ttstype.ChunkEvent, data []byte) (keepStreaming bool)
}

// Plugin is one loadable synthesis engine.
type Plugin interface {
	// Load resolves and initializes the engine with a result sink. Called
	// at most once per daemon lifetime per engine id.
	Load(ctx context.Context, sink ResultSink) error
	// Unload is idempotent.
	Unload() error

	Info() Info
	ForeachVoice(visit func(lang string, vt ttstype.VoiceType) bool)
	IsValidVoice(lang string, vt ttstype.VoiceType) bool
	DefaultVoice() (lang string, vt ttstype.VoiceType)
	AudioFormat() pcm.Format

	// StartSynth begins synthesizing one utterance. The caller (enginedrv)
	// transitions its busy state to InFlight before calling this, so a
	// synchronous callback on the same goroutine is handled correctly.
	StartSynth(ctx context.Context, client ttstype.ClientID, utt ttstype.UtteranceID, req SynthRequest) error
	// CancelSynth asks the engine to cancel whatever is in flight. Any
	// further events for the cancelled utterance must be dropped by the
	// caller, not suppressed by the engine.
	CancelSynth() error
}
