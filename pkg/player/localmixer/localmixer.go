// Package localmixer is the reference player.Backend: a single in-process
// goroutine that paces chunk delivery against wall-clock audio duration
// (via pcm.Format.Duration) rather than handing data to a real audio
// device. No real audio plays — this is the zero-dependency backend used
// by tests and as the daemon's default when no native output device is
// configured.
package localmixer

import (
	"context"
	"sync"
	"time"

	"github.com/haivivi/ttsd/pkg/fifo"
	"github.com/haivivi/ttsd/pkg/logging"
	"github.com/haivivi/ttsd/pkg/pcm"
	"github.com/haivivi/ttsd/pkg/player"
	"github.com/haivivi/ttsd/pkg/ttstype"
)

type pending struct {
	utt   ttstype.UtteranceID
	event ttstype.ChunkEvent
	data  []byte
}

// Backend is the reference local mixer.
type Backend struct {
	logger logging.Logger
	events chan player.Event

	mu       sync.Mutex
	client   ttstype.ClientID
	holds    bool
	format   pcm.Format
	queue    *fifo.Queue[pending]
	playing  bool
	resumeCh chan struct{}
	cancel   context.CancelFunc
}

var _ player.Backend = (*Backend)(nil)

// New creates an idle Backend.
func New(logger logging.Logger) *Backend {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Backend{
		logger: logger,
		events: make(chan player.Event, 64),
		queue:  fifo.New[pending](),
	}
}

func (b *Backend) Events() <-chan player.Event { return b.events }

func (b *Backend) CreateSlot(ctx context.Context, client ttstype.ClientID, format pcm.Format) error {
	b.mu.Lock()
	if b.cancel != nil {
		b.cancel()
	}
	b.queue.Clear()
	b.client = client
	b.holds = true
	b.format = format
	b.playing = true
	b.resumeCh = make(chan struct{})
	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.mu.Unlock()

	go b.run(runCtx, client)
	return nil
}

func (b *Backend) DestroySlot(client ttstype.ClientID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.holds || b.client != client {
		return nil
	}
	if b.cancel != nil {
		b.cancel()
	}
	b.holds = false
	b.queue.Clear()
	return nil
}

func (b *Backend) Enqueue(client ttstype.ClientID, utt ttstype.UtteranceID, event ttstype.ChunkEvent, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.holds || b.client != client {
		return nil
	}
	b.queue.Push(pending{utt: utt, event: event, data: data})
	return nil
}

func (b *Backend) Pause(client ttstype.ClientID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.holds || b.client != client {
		return nil
	}
	if b.playing {
		b.playing = false
		b.resumeCh = make(chan struct{})
	}
	return nil
}

func (b *Backend) Resume(client ttstype.ClientID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.holds || b.client != client {
		return nil
	}
	if !b.playing {
		b.playing = true
		close(b.resumeCh)
	}
	return nil
}

func (b *Backend) Stop(client ttstype.ClientID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.holds || b.client != client {
		return nil
	}
	b.queue.Clear()
	if !b.playing {
		b.playing = true
		close(b.resumeCh)
	}
	return nil
}

func (b *Backend) State(client ttstype.ClientID) (holds bool, playing bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.holds || b.client != client {
		return false, false
	}
	return true, b.playing
}

func (b *Backend) run(ctx context.Context, client ttstype.ClientID) {
	for {
		p, ok := b.queue.Pop()
		if !ok {
			b.emit(player.Event{Client: client, Kind: player.EventDrained})
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Millisecond):
				continue
			}
		}

		b.mu.Lock()
		playing := b.playing
		resumeCh := b.resumeCh
		format := b.format
		b.mu.Unlock()
		if !playing {
			select {
			case <-ctx.Done():
				return
			case <-resumeCh:
			}
		}

		dur := format.Duration(len(p.data))
		select {
		case <-ctx.Done():
			return
		case <-time.After(dur):
		}

		b.emit(player.Event{Client: client, Utt: p.utt, Kind: player.EventChunkPlayed, ChunkEvent: p.event})
	}
}

func (b *Backend) emit(ev player.Event) {
	select {
	case b.events <- ev:
	default:
		b.logger.WarnPrintf("localmixer: event channel full, dropping %v", ev.Kind)
	}
}
