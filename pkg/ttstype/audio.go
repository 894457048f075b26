package ttstype

import "github.com/haivivi/ttsd/pkg/pcm"

// AudioChunk is one piece of synthesized audio produced by the engine for a
// specific utterance. Format is constant across every chunk of one
// utterance; it is queried once from the engine at session setup.
type AudioChunk struct {
	UttID   UtteranceID
	Event   ChunkEvent
	Payload []byte // raw PCM bytes (or engine-declared alternate format); may be empty on Cancel/Fail
	Format  pcm.Format
}
