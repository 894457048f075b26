// Package doubaoengine adapts the Volcengine Doubao Speech SDK
// (pkg/doubaospeech) into an engine.Plugin: a real, network-backed
// synthesis engine for the scheduler's engine driver to load alongside —
// or instead of — refengine.
//
// Built on doubaospeech.TTSServiceV2.Stream (pkg/doubaospeech/tts_v2.go),
// whose iter.Seq2[*TTSV2Chunk, error] shape is adapted here into the
// scheduler's Start/Continue/Finish/Fail chunk-event stream.
package doubaoengine

import (
	"context"
	"fmt"
	"sync"

	"github.com/haivivi/ttsd/pkg/doubaospeech"
	"github.com/haivivi/ttsd/pkg/engine"
	"github.com/haivivi/ttsd/pkg/logging"
	"github.com/haivivi/ttsd/pkg/pcm"
	"github.com/haivivi/ttsd/pkg/ttstype"
)

// VoiceMap resolves the three VoiceType kinds (plus optional user-defined
// slots) to a Doubao speaker id for a given language, since the real engine
// has no notion of ttstype.VoiceType on the wire.
type VoiceMap map[string]map[ttstype.VoiceType]string

// Options configures the engine.
type Options struct {
	AppID      string
	AccessKey  string
	AppKey     string
	ResourceID string // defaults to doubaospeech.ResourceTTSV2
	SampleRate int    // defaults to 24000
	Voices     VoiceMap
	Logger     logging.Logger
}

// Engine adapts a doubaospeech.Client into an engine.Plugin.
type Engine struct {
	opts   Options
	client *doubaospeech.Client
	log    logging.Logger

	mu      sync.Mutex
	sink    engine.ResultSink
	cancel  context.CancelFunc
}

var _ engine.Plugin = (*Engine)(nil)

// New constructs an unloaded Engine.
func New(opts Options) *Engine {
	if opts.ResourceID == "" {
		opts.ResourceID = doubaospeech.ResourceTTSV2
	}
	if opts.SampleRate == 0 {
		opts.SampleRate = 24000
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Engine{opts: opts, log: logger}
}

func (e *Engine) Load(_ context.Context, sink engine.ResultSink) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.client = doubaospeech.NewClient(e.opts.AppID,
		doubaospeech.WithV2APIKey(e.opts.AccessKey, e.opts.AppKey),
		doubaospeech.WithResourceID(e.opts.ResourceID),
	)
	e.sink = sink
	e.log.InfoPrintf("doubaoengine: loaded, resource=%s", e.opts.ResourceID)
	return nil
}

func (e *Engine) Unload() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.client = nil
	e.sink = nil
	return nil
}

func (e *Engine) Info() engine.Info {
	return engine.Info{
		UUID:          "a2b6e6d2-8f1a-4e7a-9a9e-doubaotts0001",
		Name:          "doubao",
		NeedsNetwork:  true,
		SupportsPitch: true,
	}
}

func (e *Engine) ForeachVoice(visit func(lang string, vt ttstype.VoiceType) bool) {
	for lang, byType := range e.opts.Voices {
		for vt := range byType {
			if !visit(lang, vt) {
				return
			}
		}
	}
}

func (e *Engine) IsValidVoice(lang string, vt ttstype.VoiceType) bool {
	if lang == ttstype.DefaultLanguage {
		return true
	}
	byType, ok := e.opts.Voices[lang]
	if !ok {
		return false
	}
	_, ok = byType[vt]
	return ok
}

func (e *Engine) DefaultVoice() (string, ttstype.VoiceType) {
	for lang, byType := range e.opts.Voices {
		if _, ok := byType[ttstype.VoiceFemale]; ok {
			return lang, ttstype.VoiceFemale
		}
	}
	return "zh", ttstype.VoiceFemale
}

func (e *Engine) AudioFormat() pcm.Format {
	return pcm.Format{Kind: pcm.KindL16, SampleRate: e.opts.SampleRate, Channels: 1}
}

func (e *Engine) speaker(lang string, vt ttstype.VoiceType) (string, error) {
	if lang == ttstype.DefaultLanguage {
		lang, vt = e.DefaultVoice()
	}
	byType, ok := e.opts.Voices[lang]
	if !ok {
		return "", fmt.Errorf("no voices configured for language %q", lang)
	}
	speaker, ok := byType[vt]
	if !ok {
		return "", fmt.Errorf("no speaker configured for %q/%s", lang, vt)
	}
	return speaker, nil
}

func (e *Engine) StartSynth(ctx context.Context, client ttstype.ClientID, utt ttstype.UtteranceID, req engine.SynthRequest) error {
	e.mu.Lock()
	c := e.client
	sink := e.sink
	synthCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.mu.Unlock()

	if c == nil || sink == nil {
		return fmt.Errorf("doubaoengine: not loaded")
	}

	speaker, err := e.speaker(req.Language, req.VoiceType)
	if err != nil {
		return err
	}

	ttsReq := &doubaospeech.TTSV2Request{
		Text:       req.Text,
		Speaker:    speaker,
		Format:     "pcm",
		SampleRate: e.opts.SampleRate,
		SpeedRatio: speedRatio(req.Speed),
		PitchRatio: pitchRatio(req.Pitch),
		Language:   req.Language,
		ResourceID: e.opts.ResourceID,
	}

	go e.stream(synthCtx, c, sink, client, utt, ttsReq)
	return nil
}

func (e *Engine) stream(ctx context.Context, c *doubaospeech.Client, sink engine.ResultSink, client ttstype.ClientID, utt ttstype.UtteranceID, req *doubaospeech.TTSV2Request) {
	started := false
	for chunk, err := range c.TTSV2.Stream(ctx, req) {
		if err != nil {
			e.log.WarnPrintf("doubaoengine: synth %d/%d failed: %v", client, utt, err)
			if started {
				sink.Deliver(client, utt, ttstype.ChunkFail, nil)
			} else {
				sink.Deliver(client, utt, ttstype.ChunkStart, nil)
				sink.Deliver(client, utt, ttstype.ChunkFail, nil)
			}
			return
		}
		if !started {
			started = true
			if !sink.Deliver(client, utt, ttstype.ChunkStart, nil) {
				return
			}
		}
		if len(chunk.Audio) > 0 {
			if !sink.Deliver(client, utt, ttstype.ChunkContinue, chunk.Audio) {
				return
			}
		}
		if chunk.IsLast {
			sink.Deliver(client, utt, ttstype.ChunkFinish, nil)
			return
		}
	}
}

func (e *Engine) CancelSynth() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
	return nil
}

// speedRatio maps the protocol's integer speed (an implementer-defined
// range, default DefaultParam=0) onto Doubao's 0.2-3.0 ratio, treating 0 as
// "use the default" and otherwise scaling around 1.0 in 0.1 steps per unit.
func speedRatio(speed int) float64 {
	if speed == ttstype.DefaultParam {
		return 0
	}
	r := 1.0 + float64(speed)*0.1
	if r < 0.2 {
		r = 0.2
	}
	if r > 3.0 {
		r = 3.0
	}
	return r
}

func pitchRatio(pitch int) float64 {
	if pitch == ttstype.DefaultParam {
		return 0
	}
	r := 1.0 + float64(pitch)*0.1
	if r < 0.1 {
		r = 0.1
	}
	if r > 3.0 {
		r = 3.0
	}
	return r
}
