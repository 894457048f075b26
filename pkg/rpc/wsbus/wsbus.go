// Package wsbus is the reference rpc.Server transport: one
// gorilla/websocket connection per client, a JSON request/response/
// notification protocol, and a liveness ping loop that detects a
// definitively-gone client for the cleanup probe.
//
// Keeps a mutex-protected map of live connections keyed by
// ttstype.ClientID, dialed over plain websocket.
package wsbus

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haivivi/ttsd/pkg/logging"
	"github.com/haivivi/ttsd/pkg/rpc"
	"github.com/haivivi/ttsd/pkg/ttstype"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is a websocket-backed rpc.Server.
type Server struct {
	addr    string
	handler rpc.Handler
	logger  logging.Logger

	httpSrv *http.Server

	mu    sync.RWMutex
	conns map[ttstype.ClientID]*conn
}

var _ rpc.Server = (*Server)(nil)

// New creates a Server bound to addr. SetHandler must be called before
// Serve — the scheduler that implements rpc.Handler typically needs this
// Server already constructed (to build its own rpc.Notifier), so the two
// are wired together after both exist rather than at either's construction,
// the same circular-dependency break enginedrv.Driver uses for its OnChunk
// callback.
func New(addr string, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{
		addr:   addr,
		logger: logger,
		conns:  make(map[ttstype.ClientID]*conn),
	}
}

// SetHandler installs the Handler that dispatched requests are delivered
// to. Must be called once, before Serve.
func (s *Server) SetHandler(handler rpc.Handler) {
	s.handler = handler
}

// Serve runs the HTTP/websocket listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ttsd", s.handleUpgrade)
	s.httpSrv = &http.Server{Addr: s.addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return s.Close()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Close shuts down the listener and every live connection.
func (s *Server) Close() error {
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.conns = make(map[ttstype.ClientID]*conn)
	s.mu.Unlock()

	for _, c := range conns {
		c.ws.Close()
	}
	if s.httpSrv != nil {
		return s.httpSrv.Close()
	}
	return nil
}

// Notify pushes a Notification to client's live connection, if any.
func (s *Server) Notify(client ttstype.ClientID, n *rpc.Notification) {
	s.mu.RLock()
	c, ok := s.conns[client]
	s.mu.RUnlock()
	if !ok {
		return
	}
	c.send(n)
}

type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	client  ttstype.ClientID
	hasID   bool
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WarnPrintf("wsbus: upgrade failed: %v", err)
		return
	}
	c := &conn{ws: ws}
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go s.pingLoop(c)
	s.readLoop(c)
}

func (s *Server) pingLoop(c *conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for range ticker.C {
		c.writeMu.Lock()
		c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		err := c.ws.WriteMessage(websocket.PingMessage, nil)
		c.writeMu.Unlock()
		if err != nil {
			return
		}
	}
}

func (s *Server) readLoop(c *conn) {
	defer func() {
		c.ws.Close()
		if c.hasID {
			s.mu.Lock()
			if s.conns[c.client] == c {
				delete(s.conns, c.client)
			}
			s.mu.Unlock()
			s.handler.Disconnected(c.client)
		}
	}()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var req rpc.Request
		if err := json.Unmarshal(data, &req); err != nil {
			s.logger.WarnPrintf("wsbus: bad request frame: %v", err)
			continue
		}
		s.dispatch(c, &req)
	}
}

func (s *Server) dispatch(c *conn, req *rpc.Request) {
	ctx := context.Background()
	resp := &rpc.Response{ReqID: req.ReqID}

	switch req.Method {
	case rpc.MethodInitialize:
		var p rpc.InitializeParams
		var client ttstype.ClientID
		if err := decodeInitialize(req.Params, &p, &client); err != nil {
			resp.Error = rpc.NewWireError(err)
			break
		}
		if err := s.handler.Initialize(ctx, client, p.PID, p.Mode); err != nil {
			resp.Error = rpc.NewWireError(err)
			break
		}
		c.client = client
		c.hasID = true
		s.mu.Lock()
		s.conns[client] = c
		s.mu.Unlock()
		resp.OK = true

	case rpc.MethodPrepare:
		resp = s.simple(req, c, s.handler.Prepare)
	case rpc.MethodUnprepare:
		resp = s.simple(req, c, s.handler.Unprepare)
	case rpc.MethodPlay:
		resp = s.simple(req, c, s.handler.Play)
	case rpc.MethodStop:
		resp = s.simple(req, c, s.handler.Stop)
	case rpc.MethodPause:
		resp = s.simple(req, c, s.handler.Pause)
	case rpc.MethodResume:
		resp = s.simple(req, c, s.handler.Resume)

	case rpc.MethodAddText:
		var p rpc.AddTextParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			resp.Error = rpc.NewWireError(err)
			break
		}
		item := ttstype.RequestItem{
			Text:      p.Text,
			Language:  p.Language,
			VoiceType: p.VoiceType,
			Speed:     p.Speed,
			Pitch:     p.Pitch,
		}
		if item.Language == "" {
			item.Language = ttstype.DefaultLanguage
		}
		utt, err := s.handler.AddText(ctx, c.client, item)
		if err != nil {
			resp.Error = rpc.NewWireError(err)
			break
		}
		resp.OK = true
		resp.Result, _ = json.Marshal(rpc.AddTextResult{UttID: utt})

	case rpc.MethodFinalize:
		resp = s.simple(req, c, s.handler.Finalize)

	case rpc.MethodGetSupportedVoices:
		voices := s.handler.GetSupportedVoices(ctx)
		resp.OK = true
		resp.Result, _ = json.Marshal(rpc.VoicesResult{Voices: voices})

	case rpc.MethodGetDefaultVoice:
		lang, vt := s.handler.GetDefaultVoice(ctx)
		resp.OK = true
		resp.Result, _ = json.Marshal(rpc.DefaultVoiceResult{Language: lang, VoiceType: vt})

	default:
		resp.Error = &rpc.WireError{Kind: "invalid_parameter", Message: "unknown method " + string(req.Method)}
	}

	c.send(resp)
}

func (s *Server) simple(req *rpc.Request, c *conn, fn func(context.Context, ttstype.ClientID) error) *rpc.Response {
	resp := &rpc.Response{ReqID: req.ReqID}
	if err := fn(context.Background(), c.client); err != nil {
		resp.Error = rpc.NewWireError(err)
		return resp
	}
	resp.OK = true
	return resp
}

func decodeInitialize(raw json.RawMessage, p *rpc.InitializeParams, client *ttstype.ClientID) error {
	var v struct {
		ClientID ttstype.ClientID `json:"client_id"`
		PID      int              `json:"pid"`
		Mode     ttstype.Mode     `json:"mode"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	*client = v.ClientID
	p.PID = v.PID
	p.Mode = v.Mode
	return nil
}

func (c *conn) send(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	c.ws.WriteMessage(websocket.TextMessage, b)
}
