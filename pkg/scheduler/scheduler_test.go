package scheduler_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/haivivi/ttsd/pkg/engine"
	"github.com/haivivi/ttsd/pkg/engine/refengine"
	"github.com/haivivi/ttsd/pkg/enginedrv"
	"github.com/haivivi/ttsd/pkg/player/localmixer"
	"github.com/haivivi/ttsd/pkg/scheduler"
	"github.com/haivivi/ttsd/pkg/schederr"
	"github.com/haivivi/ttsd/pkg/session"
	"github.com/haivivi/ttsd/pkg/ttstype"
)

// recordingNotifier captures callbacks on channels so tests can wait for a
// specific asynchronous event instead of sleeping blind.
type recordingNotifier struct {
	stateChanged       chan ttstype.State
	utteranceStarted   chan ttstype.UtteranceID
	utteranceCompleted chan ttstype.UtteranceID
	errs               chan schederr.Kind
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		stateChanged:       make(chan ttstype.State, 64),
		utteranceStarted:   make(chan ttstype.UtteranceID, 64),
		utteranceCompleted: make(chan ttstype.UtteranceID, 64),
		errs:               make(chan schederr.Kind, 64),
	}
}

func (n *recordingNotifier) StateChanged(_ ttstype.ClientID, _, after ttstype.State) {
	n.stateChanged <- after
}
func (n *recordingNotifier) UtteranceStarted(_ ttstype.ClientID, utt ttstype.UtteranceID) {
	n.utteranceStarted <- utt
}
func (n *recordingNotifier) UtteranceCompleted(_ ttstype.ClientID, utt ttstype.UtteranceID) {
	n.utteranceCompleted <- utt
}
func (n *recordingNotifier) Error(_ ttstype.ClientID, _ ttstype.UtteranceID, kind schederr.Kind) {
	n.errs <- kind
}

func drainUntil[T any](t *testing.T, ch chan T, want T) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-ch:
			if any(got) == any(want) {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %v", want)
		}
	}
}

// harness wires a Scheduler against refengine + localmixer, both
// network-free and deterministic (refengine.Options.Delay == 0 delivers
// every chunk synchronously from inside StartSynth).
type harness struct {
	sched    *scheduler.Scheduler
	notifier *recordingNotifier
	cancel   context.CancelFunc
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	notifier := newRecordingNotifier()
	reg := session.New(notifier, nil)
	drv := enginedrv.New(nil)
	backend := localmixer.New(nil)

	loadEngine := func(ctx context.Context) (engine.Plugin, error) {
		return refengine.New(refengine.Options{ChunkRunes: 4, BytesPerRune: 32}), nil
	}

	sched := scheduler.New(reg, drv, backend, notifier, loadEngine)
	ctx, cancel := context.WithCancel(context.Background())
	go sched.Run(ctx)
	t.Cleanup(cancel)
	return &harness{sched: sched, notifier: notifier, cancel: cancel}
}

func (h *harness) mustInitPlay(t *testing.T, client ttstype.ClientID) {
	t.Helper()
	if err := h.sched.Initialize(context.Background(), client, 1, ttstype.ModeDefault); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := h.sched.Prepare(context.Background(), client); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := h.sched.Play(context.Background(), client); err != nil {
		t.Fatalf("Play: %v", err)
	}
}

// A single add_text on a Playing client starts synthesis, fires
// utterance_started, streams audio, and completes.
func TestAddTextPlaysToCompletion(t *testing.T) {
	h := newHarness(t)
	const client ttstype.ClientID = 1
	h.mustInitPlay(t, client)

	utt, err := h.sched.AddText(context.Background(), client, ttstype.RequestItem{Text: "hello world"})
	if err != nil {
		t.Fatalf("AddText: %v", err)
	}
	if utt != ttstype.MinUtteranceID {
		t.Fatalf("got utt %d, want %d", utt, ttstype.MinUtteranceID)
	}

	drainUntil(t, h.notifier.utteranceStarted, utt)
	drainUntil(t, h.notifier.utteranceCompleted, utt)
}

// Two requests queued back to back both complete, in order.
func TestTwoRequestsBothComplete(t *testing.T) {
	h := newHarness(t)
	const client ttstype.ClientID = 1
	h.mustInitPlay(t, client)

	utt1, err := h.sched.AddText(context.Background(), client, ttstype.RequestItem{Text: "one"})
	if err != nil {
		t.Fatalf("AddText 1: %v", err)
	}
	utt2, err := h.sched.AddText(context.Background(), client, ttstype.RequestItem{Text: "two"})
	if err != nil {
		t.Fatalf("AddText 2: %v", err)
	}
	if utt2 <= utt1 {
		t.Fatalf("utt2 (%d) should be greater than utt1 (%d)", utt2, utt1)
	}

	drainUntil(t, h.notifier.utteranceCompleted, utt1)
	drainUntil(t, h.notifier.utteranceCompleted, utt2)
}

// Stop mid-synthesis tears down the in-flight utterance and the client
// returns to Ready without ever completing it.
func TestStopCancelsInFlightSynthesis(t *testing.T) {
	h := newHarness(t)
	const client ttstype.ClientID = 1
	h.mustInitPlay(t, client)

	if _, err := h.sched.AddText(context.Background(), client, ttstype.RequestItem{Text: "long request text here"}); err != nil {
		t.Fatalf("AddText: %v", err)
	}
	if err := h.sched.Stop(context.Background(), client); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	drainUntil(t, h.notifier.stateChanged, ttstype.StateReady)
}

// add_text rejects an unsupported voice.
func TestAddTextRejectsUnsupportedVoice(t *testing.T) {
	h := newHarness(t)
	const client ttstype.ClientID = 1
	h.mustInitPlay(t, client)

	_, err := h.sched.AddText(context.Background(), client, ttstype.RequestItem{
		Text:      "hi",
		Language:  "fr",
		VoiceType: ttstype.VoiceMale,
	})
	if err == nil {
		t.Fatal("expected an error for an unsupported language/voice pair")
	}
	if schederr.KindOf(err) != schederr.InvalidVoice {
		t.Fatalf("got kind %v, want InvalidVoice", schederr.KindOf(err))
	}
}

// add_text rejects text over the maximum length.
func TestAddTextRejectsOversizeText(t *testing.T) {
	h := newHarness(t)
	const client ttstype.ClientID = 1
	h.mustInitPlay(t, client)

	_, err := h.sched.AddText(context.Background(), client, ttstype.RequestItem{
		Text: strings.Repeat("a", 1001),
	})
	if schederr.KindOf(err) != schederr.InvalidParameter {
		t.Fatalf("got kind %v, want InvalidParameter", schederr.KindOf(err))
	}
}

// add_text is rejected from Created (never prepared).
func TestAddTextRejectedBeforePrepare(t *testing.T) {
	h := newHarness(t)
	const client ttstype.ClientID = 1
	if err := h.sched.Initialize(context.Background(), client, 1, ttstype.ModeDefault); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	_, err := h.sched.AddText(context.Background(), client, ttstype.RequestItem{Text: "hi"})
	if schederr.KindOf(err) != schederr.InvalidState {
		t.Fatalf("got kind %v, want InvalidState", schederr.KindOf(err))
	}
}

// Pause/resume on an arbitrated single-client slot.
func TestPauseThenResume(t *testing.T) {
	h := newHarness(t)
	const client ttstype.ClientID = 1
	h.mustInitPlay(t, client)

	if err := h.sched.Pause(context.Background(), client); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	drainUntil(t, h.notifier.stateChanged, ttstype.StatePaused)

	if err := h.sched.Resume(context.Background(), client); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	drainUntil(t, h.notifier.stateChanged, ttstype.StatePlaying)
}

// A second client preempts the first (ModeDefault pauses, doesn't stop).
func TestPlayArbitrationPausesPreviousHolder(t *testing.T) {
	h := newHarness(t)
	const clientA ttstype.ClientID = 1
	const clientB ttstype.ClientID = 2
	h.mustInitPlay(t, clientA)

	if err := h.sched.Initialize(context.Background(), clientB, 2, ttstype.ModeDefault); err != nil {
		t.Fatalf("Initialize B: %v", err)
	}
	if err := h.sched.Prepare(context.Background(), clientB); err != nil {
		t.Fatalf("Prepare B: %v", err)
	}
	if err := h.sched.Play(context.Background(), clientB); err != nil {
		t.Fatalf("Play B: %v", err)
	}

	drainUntil(t, h.notifier.stateChanged, ttstype.StatePaused)
}

// Finalize tears down a client cleanly even mid-synthesis.
func TestFinalizeDuringSynthesis(t *testing.T) {
	h := newHarness(t)
	const client ttstype.ClientID = 1
	h.mustInitPlay(t, client)

	if _, err := h.sched.AddText(context.Background(), client, ttstype.RequestItem{Text: "some text"}); err != nil {
		t.Fatalf("AddText: %v", err)
	}
	if err := h.sched.Finalize(context.Background(), client); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	// A second finalize on an already-gone client is a harmless no-op.
	if err := h.sched.Finalize(context.Background(), client); err != nil {
		t.Fatalf("second Finalize: %v", err)
	}
}

// GetSupportedVoices/GetDefaultVoice surface the loaded engine's catalog.
func TestVoiceCatalog(t *testing.T) {
	h := newHarness(t)
	const client ttstype.ClientID = 1
	// loadEngine only runs on the first Initialize.
	h.mustInitPlay(t, client)

	voices := h.sched.GetSupportedVoices(context.Background())
	if len(voices) == 0 {
		t.Fatal("expected at least one supported voice")
	}
	lang, vt := h.sched.GetDefaultVoice(context.Background())
	if lang == "" {
		t.Fatal("expected a non-empty default language")
	}
	_ = vt
}

func TestInitializeRejectsDuplicateClient(t *testing.T) {
	h := newHarness(t)
	const client ttstype.ClientID = 1
	if err := h.sched.Initialize(context.Background(), client, 1, ttstype.ModeDefault); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	err := h.sched.Initialize(context.Background(), client, 1, ttstype.ModeDefault)
	if schederr.KindOf(err) != schederr.InvalidParameter {
		t.Fatalf("got kind %v, want InvalidParameter", schederr.KindOf(err))
	}
}
