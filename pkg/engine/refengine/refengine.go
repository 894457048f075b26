// Package refengine is a deterministic synthetic synthesizer used by tests
// and as the daemon's zero-dependency default engine. It never touches the
// network: given a request it emits Start, then one Continue chunk per
// configured slice of text, then Finish — each carrying a silence payload
// sized from the slice length, the way a real engine would size PCM output
// from synthesized speech duration.
//
// A plain function adapted to implement engine.Plugin, generalized to the
// scheduler's start/cancel lifecycle.
package refengine

import (
	"context"
	"sync"
	"time"

	"github.com/haivivi/ttsd/pkg/engine"
	"github.com/haivivi/ttsd/pkg/pcm"
	"github.com/haivivi/ttsd/pkg/ttstype"
)

// Options configures the reference engine.
type Options struct {
	// ChunkRunes is the number of text runes represented by one Continue
	// chunk. Defaults to 16.
	ChunkRunes int
	// BytesPerRune is how many silence bytes one rune of text produces.
	// Defaults to 320 (10ms of 16kHz mono 16-bit silence).
	BytesPerRune int
	// Format is the audio format reported and tagged on every chunk.
	// Defaults to 16kHz mono L16.
	Format pcm.Format
	// Delay, if non-zero, is the simulated per-chunk synthesis latency.
	// Zero delivers every chunk synchronously from within StartSynth,
	// exercising the callback-fires-synchronously-on-the-same-goroutine
	// path that enginedrv must also handle correctly.
	Delay time.Duration
}

// Engine is a deterministic, network-free engine.Plugin implementation.
type Engine struct {
	opts Options

	mu      sync.Mutex
	sink    engine.ResultSink
	cancel  context.CancelFunc
	running bool
}

var _ engine.Plugin = (*Engine)(nil)

// New creates a reference Engine with the given options, filling in
// defaults for any zero fields.
func New(opts Options) *Engine {
	if opts.ChunkRunes <= 0 {
		opts.ChunkRunes = 16
	}
	if opts.BytesPerRune <= 0 {
		opts.BytesPerRune = 320
	}
	if opts.Format == (pcm.Format{}) {
		opts.Format = pcm.Format{Kind: pcm.KindL16, SampleRate: 16000, Channels: 1}
	}
	return &Engine{opts: opts}
}

func (e *Engine) Load(_ context.Context, sink engine.ResultSink) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sink = sink
	return nil
}

func (e *Engine) Unload() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sink = nil
	return nil
}

func (e *Engine) Info() engine.Info {
	return engine.Info{
		UUID:          "00000000-0000-0000-0000-000000000001",
		Name:          "reference",
		NeedsNetwork:  false,
		SupportsPitch: true,
	}
}

func (e *Engine) ForeachVoice(visit func(lang string, vt ttstype.VoiceType) bool) {
	voices := []struct {
		lang string
		vt   ttstype.VoiceType
	}{
		{"en", ttstype.VoiceFemale},
		{"en", ttstype.VoiceMale},
		{"en", ttstype.VoiceChild},
	}
	for _, v := range voices {
		if !visit(v.lang, v.vt) {
			return
		}
	}
}

func (e *Engine) IsValidVoice(lang string, vt ttstype.VoiceType) bool {
	if lang == ttstype.DefaultLanguage {
		return true
	}
	valid := false
	e.ForeachVoice(func(l string, t ttstype.VoiceType) bool {
		if l == lang && t == vt {
			valid = true
			return false
		}
		return true
	})
	return valid
}

func (e *Engine) DefaultVoice() (string, ttstype.VoiceType) {
	return "en", ttstype.VoiceFemale
}

func (e *Engine) AudioFormat() pcm.Format {
	return e.opts.Format
}

func (e *Engine) StartSynth(ctx context.Context, client ttstype.ClientID, utt ttstype.UtteranceID, req engine.SynthRequest) error {
	e.mu.Lock()
	sink := e.sink
	synthCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true
	e.mu.Unlock()

	if sink == nil {
		return engineErr("engine not loaded")
	}

	deliver := func(ev ttstype.ChunkEvent, data []byte) bool {
		return sink.Deliver(client, utt, ev, data)
	}

	runeSlices := sliceRunes(req.Text, e.opts.ChunkRunes)

	emit := func() {
		defer func() {
			e.mu.Lock()
			e.running = false
			e.mu.Unlock()
		}()

		if !deliver(ttstype.ChunkStart, nil) {
			return
		}
		for _, rs := range runeSlices {
			select {
			case <-synthCtx.Done():
				deliver(ttstype.ChunkCancel, nil)
				return
			default:
			}
			if e.opts.Delay > 0 {
				select {
				case <-time.After(e.opts.Delay):
				case <-synthCtx.Done():
					deliver(ttstype.ChunkCancel, nil)
					return
				}
			}
			payload := make([]byte, len(rs)*e.opts.BytesPerRune)
			if !deliver(ttstype.ChunkContinue, payload) {
				return
			}
		}
		deliver(ttstype.ChunkFinish, nil)
	}

	if e.opts.Delay > 0 {
		go emit()
	} else {
		emit()
	}
	return nil
}

func (e *Engine) CancelSynth() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
	return nil
}

func sliceRunes(text string, chunkSize int) [][]rune {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	var out [][]rune
	for len(runes) > 0 {
		n := chunkSize
		if n > len(runes) {
			n = len(runes)
		}
		out = append(out, runes[:n])
		runes = runes[n:]
	}
	return out
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

func engineErr(msg string) error { return simpleErr(msg) }
