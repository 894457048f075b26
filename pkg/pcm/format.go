// Package pcm describes the audio format carried on AudioChunks, and a
// handful of duration/byte-count conversions the player and engine driver
// need to reason about buffered audio without decoding it.
//
// Format is an open (kind, sample_rate, channels) triple rather than a
// closed enum of named combinations: it is queried once from the engine
// per session and is opaque data as far as the scheduler is concerned.
package pcm

import "time"

// Kind identifies the encoding of the payload bytes in an AudioChunk.
type Kind int

const (
	KindUnknown Kind = iota
	// KindL16 is signed 16-bit little-endian linear PCM.
	KindL16
	// KindOpus is Opus-encoded frames, as some engines emit compressed audio
	// directly; the scheduler never decodes it, only forwards it.
	KindOpus
)

func (k Kind) String() string {
	switch k {
	case KindL16:
		return "L16"
	case KindOpus:
		return "opus"
	default:
		return "unknown"
	}
}

// Format is the constant (audio_kind, sample_rate_hz, channel_count) triple
// that applies to every AudioChunk of one utterance.
type Format struct {
	Kind       Kind
	SampleRate int
	Channels   int
}

// String returns a human-readable representation, e.g. "L16; rate=24000; channels=1".
func (f Format) String() string {
	return f.Kind.String() + "; rate=" + itoa(f.SampleRate) + "; channels=" + itoa(f.Channels)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// BytesPerSample returns the byte width of one sample, per channel.
// Only meaningful for KindL16; Opus frames are variable-length and callers
// must not use byte-duration math on them.
func (f Format) BytesPerSample() int {
	switch f.Kind {
	case KindL16:
		return 2
	default:
		return 0
	}
}

// BytesInDuration returns how many payload bytes a chunk of the given
// duration occupies in this format. Valid for KindL16 only.
func (f Format) BytesInDuration(d time.Duration) int64 {
	bps := f.BytesPerSample()
	if bps == 0 {
		return 0
	}
	samples := int64(d) * int64(f.SampleRate) / int64(time.Second)
	return samples * int64(f.Channels) * int64(bps)
}

// Duration returns the playback duration of n bytes of payload in this
// format. Valid for KindL16 only; returns 0 for other kinds (callers
// needing Opus frame duration must get it from the engine instead).
func (f Format) Duration(n int) time.Duration {
	bps := f.BytesPerSample()
	if bps == 0 || f.Channels == 0 || f.SampleRate == 0 {
		return 0
	}
	samples := int64(n) / int64(f.Channels) / int64(bps)
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}
