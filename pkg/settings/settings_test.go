package settings_test

import (
	"context"
	"testing"

	"github.com/haivivi/ttsd/pkg/kv"
	"github.com/haivivi/ttsd/pkg/settings"
	"github.com/haivivi/ttsd/pkg/ttstype"
)

func TestDefaultEngineRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := settings.NewKVStore(kv.NewMemory(nil))
	t.Cleanup(func() { s.Close() })

	id, err := s.DefaultEngine(ctx)
	if err != nil {
		t.Fatalf("DefaultEngine: %v", err)
	}
	if id != "" {
		t.Fatalf("DefaultEngine = %q, want empty before any write", id)
	}

	if err := s.SetDefaultEngine(ctx, "doubao"); err != nil {
		t.Fatalf("SetDefaultEngine: %v", err)
	}
	id, err = s.DefaultEngine(ctx)
	if err != nil {
		t.Fatalf("DefaultEngine: %v", err)
	}
	if id != "doubao" {
		t.Fatalf("DefaultEngine = %q, want %q", id, "doubao")
	}
}

func TestDefaultVoiceRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := settings.NewKVStore(kv.NewMemory(nil))
	t.Cleanup(func() { s.Close() })

	lang, vt, err := s.DefaultVoice(ctx)
	if err != nil {
		t.Fatalf("DefaultVoice: %v", err)
	}
	if lang != ttstype.DefaultLanguage || vt != ttstype.VoiceAuto {
		t.Fatalf("DefaultVoice = (%q, %v), want (%q, %v)", lang, vt, ttstype.DefaultLanguage, ttstype.VoiceAuto)
	}

	if err := s.SetDefaultVoice(ctx, "zh", ttstype.VoiceFemale); err != nil {
		t.Fatalf("SetDefaultVoice: %v", err)
	}
	lang, vt, err = s.DefaultVoice(ctx)
	if err != nil {
		t.Fatalf("DefaultVoice: %v", err)
	}
	if lang != "zh" || vt != ttstype.VoiceFemale {
		t.Fatalf("DefaultVoice = (%q, %v), want (\"zh\", %v)", lang, vt, ttstype.VoiceFemale)
	}
}

func TestWatchNotifiesOnChange(t *testing.T) {
	ctx := context.Background()
	s := settings.NewKVStore(kv.NewMemory(nil))
	t.Cleanup(func() { s.Close() })

	ch := s.Watch()
	if err := s.SetDefaultEngine(ctx, "refengine"); err != nil {
		t.Fatalf("SetDefaultEngine: %v", err)
	}

	select {
	case c := <-ch:
		if c.Kind != settings.ChangeEngine {
			t.Fatalf("Change.Kind = %v, want ChangeEngine", c.Kind)
		}
	default:
		t.Fatalf("expected a Change on the watch channel")
	}
}

func TestWatchNeverBlocksOnFullBuffer(t *testing.T) {
	ctx := context.Background()
	s := settings.NewKVStore(kv.NewMemory(nil))
	t.Cleanup(func() { s.Close() })

	for i := 0; i < 100; i++ {
		if err := s.SetDefaultEngine(ctx, "engine"); err != nil {
			t.Fatalf("SetDefaultEngine: %v", err)
		}
	}
}
