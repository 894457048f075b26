package rpc

import (
	"context"

	"github.com/haivivi/ttsd/pkg/schederr"
	"github.com/haivivi/ttsd/pkg/ttstype"
)

// Handler is implemented by the scheduler: a transport (pkg/rpc/wsbus)
// decodes each client Request into a typed call and invokes the matching
// Handler method, translating the returned error into a WireError.
type Handler interface {
	Initialize(ctx context.Context, client ttstype.ClientID, pid int, mode ttstype.Mode) error
	Prepare(ctx context.Context, client ttstype.ClientID) error
	Unprepare(ctx context.Context, client ttstype.ClientID) error
	Play(ctx context.Context, client ttstype.ClientID) error
	Stop(ctx context.Context, client ttstype.ClientID) error
	Pause(ctx context.Context, client ttstype.ClientID) error
	Resume(ctx context.Context, client ttstype.ClientID) error
	AddText(ctx context.Context, client ttstype.ClientID, item ttstype.RequestItem) (ttstype.UtteranceID, error)
	Finalize(ctx context.Context, client ttstype.ClientID) error
	GetSupportedVoices(ctx context.Context) []VoiceDescriptor
	GetDefaultVoice(ctx context.Context) (string, ttstype.VoiceType)

	// Disconnected tells the scheduler a client's transport connection
	// dropped — it does not by itself finalize the client; the scheduler
	// decides when a dropped connection means "definitively gone".
	Disconnected(client ttstype.ClientID)
}

// Server is implemented by a transport. Notify pushes an unsolicited
// Notification to one connected client; it is a no-op (not an error) if the
// client has no live connection, since the scheduler's session state is the
// source of truth, not the transport's.
type Server interface {
	Notify(client ttstype.ClientID, n *Notification)
	Serve(ctx context.Context) error
	Close() error
}

// Notifier adapts a Server into session.Notifier (the interface
// pkg/session and pkg/scheduler call to deliver the four notification
// kinds), translating each callback into a wire Notification and pushing it
// through Server.Notify.
type Notifier struct {
	srv Server
}

// NewNotifier wraps srv as a session.Notifier.
func NewNotifier(srv Server) *Notifier {
	return &Notifier{srv: srv}
}

func (n *Notifier) StateChanged(client ttstype.ClientID, before, after ttstype.State) {
	n.srv.Notify(client, NewStateChangedNotification(before, after))
}

func (n *Notifier) UtteranceStarted(client ttstype.ClientID, utt ttstype.UtteranceID) {
	n.srv.Notify(client, NewUtteranceStartedNotification(utt))
}

func (n *Notifier) UtteranceCompleted(client ttstype.ClientID, utt ttstype.UtteranceID) {
	n.srv.Notify(client, NewUtteranceCompletedNotification(utt))
}

func (n *Notifier) Error(client ttstype.ClientID, utt ttstype.UtteranceID, kind schederr.Kind) {
	n.srv.Notify(client, NewErrorNotification(utt, kind))
}
