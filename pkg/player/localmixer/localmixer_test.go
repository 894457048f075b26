package localmixer_test

import (
	"context"
	"testing"
	"time"

	"github.com/haivivi/ttsd/pkg/pcm"
	"github.com/haivivi/ttsd/pkg/player"
	"github.com/haivivi/ttsd/pkg/player/localmixer"
	"github.com/haivivi/ttsd/pkg/ttstype"
)

func testFormat() pcm.Format {
	return pcm.Format{Kind: pcm.KindL16, SampleRate: 16000, Channels: 1}
}

func drainEvent(t *testing.T, events <-chan player.Event, kind player.EventKind) player.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %v", kind)
		}
	}
}

func TestEnqueuedChunkPlaysAndDrains(t *testing.T) {
	b := localmixer.New(nil)
	const client ttstype.ClientID = 1
	if err := b.CreateSlot(context.Background(), client, testFormat()); err != nil {
		t.Fatalf("CreateSlot: %v", err)
	}
	defer b.DestroySlot(client)

	if err := b.Enqueue(client, ttstype.MinUtteranceID, ttstype.ChunkContinue, make([]byte, 32)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	ev := drainEvent(t, b.Events(), player.EventChunkPlayed)
	if ev.Utt != ttstype.MinUtteranceID {
		t.Fatalf("got utt %d, want %d", ev.Utt, ttstype.MinUtteranceID)
	}
	drainEvent(t, b.Events(), player.EventDrained)
}

func TestEnqueueIgnoredForWrongClient(t *testing.T) {
	b := localmixer.New(nil)
	const client ttstype.ClientID = 1
	const other ttstype.ClientID = 2
	if err := b.CreateSlot(context.Background(), client, testFormat()); err != nil {
		t.Fatalf("CreateSlot: %v", err)
	}
	defer b.DestroySlot(client)

	if err := b.Enqueue(other, ttstype.MinUtteranceID, ttstype.ChunkContinue, make([]byte, 32)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	holds, _ := b.State(other)
	if holds {
		t.Fatal("expected the slot not to be held by a client that never created it")
	}
}

func TestPauseBlocksPlaybackUntilResume(t *testing.T) {
	b := localmixer.New(nil)
	const client ttstype.ClientID = 1
	if err := b.CreateSlot(context.Background(), client, testFormat()); err != nil {
		t.Fatalf("CreateSlot: %v", err)
	}
	defer b.DestroySlot(client)

	if err := b.Pause(client); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := b.Enqueue(client, ttstype.MinUtteranceID, ttstype.ChunkContinue, make([]byte, 32)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	select {
	case ev := <-b.Events():
		t.Fatalf("expected no playback progress while paused, got %v", ev.Kind)
	case <-time.After(50 * time.Millisecond):
	}

	if err := b.Resume(client); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	drainEvent(t, b.Events(), player.EventChunkPlayed)
}

func TestStopDiscardsQueuedAudio(t *testing.T) {
	b := localmixer.New(nil)
	const client ttstype.ClientID = 1
	if err := b.CreateSlot(context.Background(), client, testFormat()); err != nil {
		t.Fatalf("CreateSlot: %v", err)
	}
	defer b.DestroySlot(client)

	if err := b.Pause(client); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := b.Enqueue(client, ttstype.MinUtteranceID, ttstype.ChunkContinue, make([]byte, 3200)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := b.Stop(client); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	drainEvent(t, b.Events(), player.EventDrained)
}
