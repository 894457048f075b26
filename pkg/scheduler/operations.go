package scheduler

import (
	"context"
	"unicode/utf8"

	"github.com/haivivi/ttsd/pkg/engine"
	"github.com/haivivi/ttsd/pkg/player"
	"github.com/haivivi/ttsd/pkg/schederr"
	"github.com/haivivi/ttsd/pkg/session"
	"github.com/haivivi/ttsd/pkg/ttstype"
)

// maxTextRunes is the maximum length of one add_text request's Text,
// measured in runes; the scheduler rejects anything longer with
// InvalidParameter rather than handing an oversize request to the engine.
const maxTextRunes = 1000

// doInitialize creates a new client session and its playback slot. Runs on
// the loop goroutine.
func (s *Scheduler) doInitialize(ctx context.Context, client ttstype.ClientID, pid int, mode ttstype.Mode) error {
	if !s.engineLoaded {
		plugin, err := s.loadEngine(ctx)
		if err != nil {
			return schederr.Wrap(schederr.EngineNotFound, err, "load default engine")
		}
		if err := s.drv.Load(ctx, plugin); err != nil {
			return err
		}
		s.engineLoaded = true
	}

	if _, err := s.reg.Create(client, pid, mode); err != nil {
		return err
	}
	if err := s.backend.CreateSlot(ctx, client, s.drv.AudioFormat()); err != nil {
		s.reg.Delete(client)
		return schederr.Wrap(schederr.OperationFailed, err, "create playback slot")
	}
	if s.metrics != nil {
		s.metrics.SessionCreated(ctx)
	}
	return nil
}

// doPrepare transitions a session from Created to Ready.
func (s *Scheduler) doPrepare(client ttstype.ClientID) error {
	return s.reg.Transition(client, session.EventPrepare)
}

// doPlay implements play: arbitration, slot assignment, and triggering
// advanceSynthesis.
func (s *Scheduler) doPlay(client ttstype.ClientID) error {
	sess, ok := s.reg.Get(client)
	if !ok {
		return schederr.New(schederr.InvalidParameter, "unknown client %d", client)
	}

	wasPaused := sess.State() == ttstype.StatePaused

	if err := s.reg.Transition(client, session.EventPlay); err != nil {
		return err
	}

	if info := s.drv.Info(); info.NeedsNetwork && !s.networkUp() {
		// Best-effort network check: revert the state change and surface
		// OutOfNetwork rather than leaving the client half-played.
		s.reg.ForceState(client, ttstype.StateReady)
		return schederr.New(schederr.OutOfNetwork, "engine requires network")
	}

	s.mu.Lock()
	prevClient, prevHeld := s.activeAudioClient, s.hasActiveAudio
	s.mu.Unlock()

	if prevHeld && prevClient != client {
		if mode := sess.Mode; mode == ttstype.ModeScreenReader {
			if err := s.doStop(prevClient); err != nil {
				s.logger.WarnPrintf("scheduler: preempt-stop of client %d failed: %v", prevClient, err)
			}
		} else {
			s.backend.Pause(prevClient)
			s.reg.ForceState(prevClient, ttstype.StatePaused)
		}
	}

	s.mu.Lock()
	s.activeAudioClient = client
	s.hasActiveAudio = true
	s.mu.Unlock()

	if wasPaused {
		s.backend.Resume(client)
	} else if holds, _ := s.backend.State(client); holds {
		s.backend.Resume(client)
	}

	s.advanceSynthesis()
	return nil
}

// doPause pauses playback; the engine keeps producing chunks regardless.
func (s *Scheduler) doPause(client ttstype.ClientID) error {
	if err := s.reg.Transition(client, session.EventPause); err != nil {
		return err
	}
	return s.backend.Pause(client)
}

// doStop cancels any in-flight synthesis, drains queued requests, and stops
// playback for client.
func (s *Scheduler) doStop(client ttstype.ClientID) error {
	sess, ok := s.reg.Get(client)
	if !ok {
		return schederr.New(schederr.InvalidParameter, "unknown client %d", client)
	}

	drained := sess.Requests.Drain()
	var last ttstype.UtteranceID
	for _, r := range drained {
		if r.UttID > last {
			last = r.UttID
		}
	}
	if s.engineBusyBelongsTo(client) && s.drv.CurrentUtt() > last {
		last = s.drv.CurrentUtt()
	}
	sess.Audio.Clear()

	s.backend.Stop(client)

	if s.engineBusyBelongsTo(client) {
		s.drv.Cancel()
	}

	if last > 0 {
		sess.MarkStopped(last)
	}
	sess.ReleaseAllUtteranceIDs()

	if err := s.reg.Transition(client, session.EventStop); err != nil {
		// stop is accepted from any state >= Ready; a reject here means the
		// client was Created, which stop never targets in practice.
		return err
	}

	s.mu.Lock()
	if s.hasActiveAudio && s.activeAudioClient == client {
		s.hasActiveAudio = false
	}
	s.mu.Unlock()

	return nil
}

// doAddText validates and enqueues one RequestItem, allocating its
// utterance id.
func (s *Scheduler) doAddText(client ttstype.ClientID, item ttstype.RequestItem) (ttstype.UtteranceID, error) {
	sess, ok := s.reg.Get(client)
	if !ok {
		return 0, schederr.New(schederr.InvalidParameter, "unknown client %d", client)
	}

	switch sess.State() {
	case ttstype.StateReady, ttstype.StatePlaying, ttstype.StatePaused:
	default:
		return 0, schederr.New(schederr.InvalidState, "add_text not valid from %s", sess.State())
	}

	if utf8.RuneCountInString(item.Text) > maxTextRunes {
		return 0, schederr.New(schederr.InvalidParameter, "text exceeds maximum length of %d characters", maxTextRunes)
	}

	lang := item.Language
	if lang == "" {
		lang = ttstype.DefaultLanguage
	}
	if !s.drv.IsValidVoice(lang, item.VoiceType) {
		return 0, schederr.New(schederr.InvalidVoice, "unsupported voice %s/%s", lang, item.VoiceType)
	}
	if item.Pitch != ttstype.DefaultParam && !s.drv.SupportsPitch() {
		return 0, schederr.New(schederr.NotSupportedFeature, "engine does not support pitch control")
	}

	utt, err := sess.NextUtteranceID()
	if err != nil {
		return 0, err
	}
	item.UttID = utt
	item.Language = lang
	sess.Requests.Push(item)
	if s.metrics != nil {
		s.metrics.RequestEnqueued(context.Background(), sess.Requests.Len())
	}

	if sess.State() == ttstype.StatePlaying {
		s.advanceSynthesis()
	}
	return utt, nil
}

// doFinalize stops and tears down a client session for good.
func (s *Scheduler) doFinalize(client ttstype.ClientID) error {
	if _, ok := s.reg.Get(client); !ok {
		return nil
	}
	_ = s.doStop(client)
	s.backend.DestroySlot(client)
	s.reg.Delete(client)
	if s.metrics != nil {
		s.metrics.SessionFinalized(context.Background())
	}
	return nil
}

func (s *Scheduler) engineBusyBelongsTo(client ttstype.ClientID) bool {
	return s.drv.IsBusy() && s.drv.CurrentClient() == client
}

// networkUp is a placeholder best-effort check; it always reports the
// network as up since no concrete connectivity-monitoring subsystem is in
// scope here.
func (s *Scheduler) networkUp() bool { return true }

// advanceSynthesis is the producer pump: it starts the next queued request
// for the active client whenever the engine's synthesis slot is free.
func (s *Scheduler) advanceSynthesis() {
	if s.drv.IsBusy() {
		return
	}

	s.mu.Lock()
	client, ok := s.activeAudioClient, s.hasActiveAudio
	s.mu.Unlock()
	if !ok {
		return
	}

	sess, exists := s.reg.Get(client)
	if !exists || sess.State() != ttstype.StatePlaying {
		return
	}

	item, ok := sess.Requests.Pop()
	if !ok {
		return
	}

	req := engine.SynthRequest{
		Language:   item.Language,
		VoiceType:  item.VoiceType,
		Text:       item.Text,
		Speed:      item.Speed,
		Pitch:      item.Pitch,
		Credential: sess.Credential,
	}
	if err := s.drv.Start(context.Background(), client, item.UttID, req); err != nil {
		if s.notifier != nil {
			s.notifier.Error(client, item.UttID, schederr.KindOf(err))
		}
		s.doStop(client)
		return
	}
	if s.metrics != nil {
		s.metrics.EngineSlotOccupied(context.Background())
	}
}

// handleEngineChunk is the scheduler-side half of result-sink processing,
// run only from the loop goroutine: forward live audio to the playback
// backend and react to terminal events.
func (s *Scheduler) handleEngineChunk(client ttstype.ClientID, utt ttstype.UtteranceID, event ttstype.ChunkEvent, data []byte) {
	sess, ok := s.reg.Get(client)
	if !ok {
		return
	}

	if event == ttstype.ChunkStart {
		if sess.MarkStarted(utt) && s.notifier != nil {
			s.notifier.UtteranceStarted(client, utt)
		}
	}

	if event == ttstype.ChunkContinue || event == ttstype.ChunkFinish {
		// A Finish chunk still gets queued even when it carries no payload:
		// the backend reports its completion in order, so the scheduler
		// learns exactly when this utterance's audio has finished playing.
		sess.Audio.Push(ttstype.AudioChunk{UttID: utt, Event: event, Payload: data, Format: s.drv.AudioFormat()})
		s.backend.Enqueue(client, utt, event, data)
	}

	switch event {
	case ttstype.ChunkFinish:
		s.drv.Release(client, utt)
		s.releaseMetric()
		s.advanceSynthesis()
	case ttstype.ChunkCancel:
		s.drv.Release(client, utt)
		s.releaseMetric()
		sess.ReleaseUtteranceID(utt)
		s.advanceSynthesis()
	case ttstype.ChunkFail:
		s.drv.Release(client, utt)
		s.releaseMetric()
		if s.notifier != nil {
			s.notifier.Error(client, utt, schederr.OperationFailed)
		}
		s.doStop(client)
	}
}

func (s *Scheduler) releaseMetric() {
	if s.metrics != nil {
		s.metrics.EngineSlotReleased(context.Background())
	}
}

// handleBackendEvent processes a playback-completion event from the audio
// backend.
func (s *Scheduler) handleBackendEvent(ev player.Event) {
	sess, ok := s.reg.Get(ev.Client)
	if !ok {
		return
	}

	switch ev.Kind {
	case player.EventChunkPlayed:
		sess.Audio.Pop()
		if sess.MarkStarted(ev.Utt) && s.notifier != nil {
			s.notifier.UtteranceStarted(ev.Client, ev.Utt)
		}
		if ev.ChunkEvent == ttstype.ChunkFinish {
			// This utterance's Finish chunk has now actually played, not
			// merely been synthesized — the client's completion signal, so
			// fire it here rather than when the full queue happens to drain.
			// Leave state Playing; the audio slot is freed only on stop.
			sess.MarkCompleted(ev.Utt)
			sess.ReleaseUtteranceID(ev.Utt)
			if s.notifier != nil {
				s.notifier.UtteranceCompleted(ev.Client, ev.Utt)
			}
			if s.metrics != nil {
				s.metrics.UtteranceCompleted(context.Background())
			}
		}
	case player.EventDrained:
		s.advanceSynthesis()
		return
	case player.EventError:
		if s.notifier != nil {
			s.notifier.Error(ev.Client, ev.Utt, schederr.OperationFailed)
		}
		return
	}

	s.advanceSynthesis()
}
