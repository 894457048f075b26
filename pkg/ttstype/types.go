// Package ttstype holds the wire-level data model shared by every layer of
// the scheduler core: client/utterance identities, request and audio-chunk
// shapes, and the enums that drive arbitration and the state machine.
package ttstype

import (
	"encoding/json"
	"fmt"
)

// ClientID is a process-local handle for a client session. Stable for the
// life of the session, unique across all live sessions, never reused while
// the session exists.
type ClientID int64

func (c ClientID) String() string { return fmt.Sprintf("client#%d", int64(c)) }

// UtteranceID is a monotonically increasing per-client counter. It wraps at
// 10000 back to 1: the wire protocol carries only four-digit ids.
type UtteranceID int

const (
	// MinUtteranceID is the first id assigned in a session and the id
	// resumed after a wrap.
	MinUtteranceID UtteranceID = 1
	// MaxUtteranceID is the last id before wrapping back to MinUtteranceID.
	MaxUtteranceID UtteranceID = 9999
)

// Next returns the next id in sequence, wrapping back to MinUtteranceID.
func (u UtteranceID) Next() UtteranceID {
	if u >= MaxUtteranceID {
		return MinUtteranceID
	}
	return u + 1
}

// Mode classifies a session for arbitration purposes. Fixed at session
// creation; cannot change once the session leaves Created.
type Mode int

const (
	ModeDefault Mode = iota
	ModeNotification
	ModeScreenReader
)

func (m Mode) String() string {
	switch m {
	case ModeDefault:
		return "default"
	case ModeNotification:
		return "notification"
	case ModeScreenReader:
		return "screen_reader"
	default:
		return "unknown"
	}
}

// State is a ClientSession's position in the Created -> Ready -> Playing <-> Paused
// state machine.
type State int

const (
	StateCreated State = iota
	StateReady
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// VoiceType selects which voice profile synthesizes a request.
// Auto/Male/Female/Child are fixed slots; UserDefined carries an index in
// 1..=3 for engine-specific custom voices.
type VoiceType struct {
	kind        voiceKind
	userDefined int // valid only when kind == voiceUserDefined
}

type voiceKind int

const (
	voiceAuto voiceKind = iota
	voiceMale
	voiceFemale
	voiceChild
	voiceUserDefined
)

var (
	VoiceAuto   = VoiceType{kind: voiceAuto}
	VoiceMale   = VoiceType{kind: voiceMale}
	VoiceFemale = VoiceType{kind: voiceFemale}
	VoiceChild  = VoiceType{kind: voiceChild}
)

// VoiceUserDefined returns the VoiceType for a user-defined slot, 1..=3.
// Panics on an out-of-range index: callers validate at the RPC boundary.
func VoiceUserDefined(index int) VoiceType {
	if index < 1 || index > 3 {
		panic("ttstype: user-defined voice index out of range 1..=3")
	}
	return VoiceType{kind: voiceUserDefined, userDefined: index}
}

// UserDefinedIndex returns the user-defined slot (1..=3) and true if this
// VoiceType is a user-defined voice.
func (v VoiceType) UserDefinedIndex() (int, bool) {
	if v.kind != voiceUserDefined {
		return 0, false
	}
	return v.userDefined, true
}

// MarshalJSON encodes VoiceType as its wire string ("auto", "male", "female",
// "child", or "user_defined:N"), since its fields are unexported and a
// struct literal would otherwise marshal to "{}".
func (v VoiceType) MarshalJSON() ([]byte, error) {
	if v.kind == voiceUserDefined {
		return json.Marshal(fmt.Sprintf("user_defined:%d", v.userDefined))
	}
	return json.Marshal(v.String())
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (v *VoiceType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "auto":
		*v = VoiceAuto
	case "male":
		*v = VoiceMale
	case "female":
		*v = VoiceFemale
	case "child":
		*v = VoiceChild
	default:
		var idx int
		if _, err := fmt.Sscanf(s, "user_defined:%d", &idx); err != nil {
			return fmt.Errorf("ttstype: invalid voice type %q", s)
		}
		*v = VoiceUserDefined(idx)
	}
	return nil
}

func (v VoiceType) String() string {
	switch v.kind {
	case voiceAuto:
		return "auto"
	case voiceMale:
		return "male"
	case voiceFemale:
		return "female"
	case voiceChild:
		return "child"
	case voiceUserDefined:
		return fmt.Sprintf("user_defined(%d)", v.userDefined)
	default:
		return "unknown"
	}
}

// DefaultLanguage is the sentinel language tag meaning "use the daemon
// default".
const DefaultLanguage = "default"

// DefaultParam is the sentinel value for speed/pitch meaning "use the
// engine's default".
const DefaultParam = 0

// RequestItem is one queued synthesis request, immutable after insertion.
type RequestItem struct {
	UttID     UtteranceID
	Text      string
	Language  string // BCP-47-ish two-letter tag, or DefaultLanguage
	VoiceType VoiceType
	Speed     int // engine-reported range; 0 (DefaultParam) means daemon default
	Pitch     int // engine-reported range; 0 (DefaultParam) means daemon default; NotSupportedFeature if engine lacks pitch control
}

// ChunkEvent tags the lifecycle position of an AudioChunk within an
// utterance's stream.
type ChunkEvent int

const (
	ChunkStart ChunkEvent = iota
	ChunkContinue
	ChunkFinish
	ChunkCancel
	ChunkFail
)

func (e ChunkEvent) String() string {
	switch e {
	case ChunkStart:
		return "start"
	case ChunkContinue:
		return "continue"
	case ChunkFinish:
		return "finish"
	case ChunkCancel:
		return "cancel"
	case ChunkFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Terminal reports whether this event ends the in-flight synthesis call.
func (e ChunkEvent) Terminal() bool {
	return e == ChunkFinish || e == ChunkCancel || e == ChunkFail
}
