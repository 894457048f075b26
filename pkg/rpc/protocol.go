// Package rpc defines the wire protocol of ttsd's external client
// interface, transport-agnostic: message envelopes, the tagged-union
// request/notification payloads, and the Handler/Notifier interfaces a
// transport (e.g. pkg/rpc/wsbus) drives.
//
// Follows a tagged-union envelope: a `type`/`method` string field selects
// the concrete payload type during UnmarshalJSON.
package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/haivivi/ttsd/pkg/schederr"
	"github.com/haivivi/ttsd/pkg/ttstype"
)

// MethodType names one of the client-invoked operations.
type MethodType string

const (
	MethodInitialize          MethodType = "initialize"
	MethodPrepare             MethodType = "prepare"
	MethodUnprepare           MethodType = "unprepare"
	MethodPlay                MethodType = "play"
	MethodStop                MethodType = "stop"
	MethodPause               MethodType = "pause"
	MethodResume              MethodType = "resume"
	MethodAddText              MethodType = "add_text"
	MethodFinalize             MethodType = "finalize"
	MethodGetSupportedVoices   MethodType = "get_supported_voices"
	MethodGetDefaultVoice      MethodType = "get_default_voice"
)

// Request is the envelope a client sends for one method call. ReqID lets
// the transport correlate the matching Response.
type Request struct {
	ReqID  string          `json:"req_id"`
	Method MethodType      `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// InitializeParams carries the client's registration.
type InitializeParams struct {
	PID int         `json:"pid"`
	Mode ttstype.Mode `json:"mode"`
}

// AddTextParams carries one RequestItem for the add_text method.
type AddTextParams struct {
	Text      string           `json:"text"`
	Language  string           `json:"language,omitempty"`
	VoiceType ttstype.VoiceType `json:"voice_type"`
	Speed     int              `json:"speed,omitempty"`
	Pitch     int              `json:"pitch,omitempty"`
}

// Response is the envelope returned for a Request.
type Response struct {
	ReqID  string          `json:"req_id"`
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *WireError      `json:"error,omitempty"`
}

// WireError is the JSON shape of a *schederr.Error on the wire.
type WireError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// NewWireError converts err into the wire shape, mapping any non-schederr
// error to OperationFailed per schederr.KindOf.
func NewWireError(err error) *WireError {
	if err == nil {
		return nil
	}
	return &WireError{Kind: schederr.KindOf(err).String(), Message: err.Error()}
}

// AddTextResult carries the allocated utterance id.
type AddTextResult struct {
	UttID ttstype.UtteranceID `json:"utt_id"`
}

// VoiceDescriptor is one entry of get_supported_voices' result.
type VoiceDescriptor struct {
	Language  string           `json:"language"`
	VoiceType ttstype.VoiceType `json:"voice_type"`
}

// VoicesResult is get_supported_voices' result.
type VoicesResult struct {
	Voices []VoiceDescriptor `json:"voices"`
}

// DefaultVoiceResult is get_default_voice's result.
type DefaultVoiceResult struct {
	Language  string           `json:"language"`
	VoiceType ttstype.VoiceType `json:"voice_type"`
}

// NotificationType names one of the four callback kinds.
type NotificationType string

const (
	NotifyStateChanged       NotificationType = "state_changed"
	NotifyUtteranceStarted   NotificationType = "utterance_started"
	NotifyUtteranceCompleted NotificationType = "utterance_completed"
	NotifyError              NotificationType = "error"
)

// Notification is the envelope a transport pushes to a client unsolicited.
type Notification struct {
	Type NotificationType `json:"type"`
	Pld  json.RawMessage  `json:"pld"`
}

// StateChangedPayload is state_changed's payload.
type StateChangedPayload struct {
	Before ttstype.State `json:"before"`
	After  ttstype.State `json:"after"`
}

// UtteranceEventPayload is utterance_started/utterance_completed's payload.
type UtteranceEventPayload struct {
	UttID ttstype.UtteranceID `json:"utt_id"`
}

// ErrorPayload is the error notification's payload.
type ErrorPayload struct {
	UttID ttstype.UtteranceID `json:"utt_id,omitempty"`
	Kind  string              `json:"kind"`
}

func newNotification(t NotificationType, v any) *Notification {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("rpc: marshal notification payload: %v", err))
	}
	return &Notification{Type: t, Pld: b}
}

// NewStateChangedNotification builds a state_changed Notification.
func NewStateChangedNotification(before, after ttstype.State) *Notification {
	return newNotification(NotifyStateChanged, StateChangedPayload{Before: before, After: after})
}

// NewUtteranceStartedNotification builds an utterance_started Notification.
func NewUtteranceStartedNotification(utt ttstype.UtteranceID) *Notification {
	return newNotification(NotifyUtteranceStarted, UtteranceEventPayload{UttID: utt})
}

// NewUtteranceCompletedNotification builds an utterance_completed Notification.
func NewUtteranceCompletedNotification(utt ttstype.UtteranceID) *Notification {
	return newNotification(NotifyUtteranceCompleted, UtteranceEventPayload{UttID: utt})
}

// NewErrorNotification builds an error Notification.
func NewErrorNotification(utt ttstype.UtteranceID, kind schederr.Kind) *Notification {
	return newNotification(NotifyError, ErrorPayload{UttID: utt, Kind: kind.String()})
}
