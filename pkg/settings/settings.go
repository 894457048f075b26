// Package settings persists the engine-selection and default-voice control
// surface as a separate subsystem the scheduler still reacts to when it
// changes. It is a thin, typed wrapper over pkg/kv's Store interface.
package settings

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/haivivi/ttsd/pkg/kv"
	"github.com/haivivi/ttsd/pkg/ttstype"
)

// ChangeKind identifies which default a Change notification describes.
type ChangeKind int

const (
	ChangeEngine ChangeKind = iota
	ChangeVoice
)

// Change is delivered on Store.Watch when a default is updated.
type Change struct {
	Kind ChangeKind
}

// Store is the durable settings surface: the current default engine id and
// default voice, plus a change feed.
//
// A hot-swap of the in-flight engine is not supported: the daemon's engine
// loader reads DefaultEngine only when the first initialize triggers an
// engine load, so a new default affects only a later first-load. Nothing in
// the daemon reads the Watch feed.
type Store interface {
	DefaultEngine(ctx context.Context) (string, error)
	SetDefaultEngine(ctx context.Context, engineID string) error

	DefaultVoice(ctx context.Context) (lang string, vt ttstype.VoiceType, err error)
	SetDefaultVoice(ctx context.Context, lang string, vt ttstype.VoiceType) error

	// Watch returns a channel of Change notifications. The channel is closed
	// when Close is called on this Store.
	Watch() <-chan Change

	Close() error
}

var (
	keyDefaultEngine = kv.Key{"settings", "default_engine"}
	keyDefaultVoice  = kv.Key{"settings", "default_voice"}
)

type voiceRecord struct {
	Language  string           `json:"language"`
	VoiceType ttstype.VoiceType `json:"voice_type"`
}

// KVStore is a Store backed by a kv.Store (typically *kv.Badger;
// *kv.Memory in tests).
type KVStore struct {
	db kv.Store

	mu      sync.Mutex
	watcher chan Change
}

var _ Store = (*KVStore)(nil)

// NewKVStore wraps db as a settings Store.
func NewKVStore(db kv.Store) *KVStore {
	return &KVStore{
		db:      db,
		watcher: make(chan Change, 8),
	}
}

func (s *KVStore) DefaultEngine(ctx context.Context) (string, error) {
	b, err := s.db.Get(ctx, keyDefaultEngine)
	if err != nil {
		if err == kv.ErrNotFound {
			return "", nil
		}
		return "", err
	}
	return string(b), nil
}

func (s *KVStore) SetDefaultEngine(ctx context.Context, engineID string) error {
	if err := s.db.Set(ctx, keyDefaultEngine, []byte(engineID)); err != nil {
		return err
	}
	s.notify(Change{Kind: ChangeEngine})
	return nil
}

func (s *KVStore) DefaultVoice(ctx context.Context) (string, ttstype.VoiceType, error) {
	b, err := s.db.Get(ctx, keyDefaultVoice)
	if err != nil {
		if err == kv.ErrNotFound {
			return ttstype.DefaultLanguage, ttstype.VoiceAuto, nil
		}
		return "", ttstype.VoiceAuto, err
	}
	var rec voiceRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return "", ttstype.VoiceAuto, err
	}
	return rec.Language, rec.VoiceType, nil
}

func (s *KVStore) SetDefaultVoice(ctx context.Context, lang string, vt ttstype.VoiceType) error {
	b, err := json.Marshal(voiceRecord{Language: lang, VoiceType: vt})
	if err != nil {
		return err
	}
	if err := s.db.Set(ctx, keyDefaultVoice, b); err != nil {
		return err
	}
	s.notify(Change{Kind: ChangeVoice})
	return nil
}

func (s *KVStore) Watch() <-chan Change {
	return s.watcher
}

func (s *KVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		close(s.watcher)
		s.watcher = nil
	}
	return s.db.Close()
}

func (s *KVStore) notify(c Change) {
	s.mu.Lock()
	ch := s.watcher
	s.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- c:
	default:
		// A slow/absent watcher never blocks a settings write; the next
		// DefaultEngine/DefaultVoice call still observes the new value.
	}
}
