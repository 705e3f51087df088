package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/deepteams/upscale"
	"github.com/deepteams/upscale/internal/logger"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	WriteBufferPool: &sync.Pool{},
}

// Header is the text message that announces a conversion on /ws. The image
// bytes follow as one binary message.
type Header struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Scale int    `json:"scale"`
	Loop  *uint  `json:"loop,omitempty"`
}

// Message is a JSON text message sent by the server on /ws.
type Message struct {
	Type    string `json:"type"` // "progress", "done" or "error"
	ID      string `json:"id"`
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message"`
	Current int    `json:"current,omitempty"`
	Total   int    `json:"total,omitempty"`

	// Set on "error".
	Kind string `json:"kind,omitempty"`

	// Set on "done"; the output bytes follow as one binary message.
	Name     string `json:"name,omitempty"`
	MIMEType string `json:"mime,omitempty"`
	Fallback string `json:"fallback,omitempty"`
	Frames   int    `json:"frames,omitempty"`
}

// session is one websocket client. It processes one conversion at a time.
type session struct {
	s    *Server
	conn *websocket.Conn
	log  *logger.Logger
	ctx  context.Context

	wmu  sync.Mutex
	busy atomic.Bool
	wg   sync.WaitGroup
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	ss := &session{s: s, conn: conn, ctx: ctx, log: s.log.Extend(s.log.With().Str("remote", r.RemoteAddr))}
	defer func() {
		cancel()
		ss.wg.Wait()
		_ = conn.Close()
	}()
	conn.SetReadLimit(s.conf.MaxUploadBytes + 64<<10)
	ss.reader()
}

func (ss *session) reader() {
	var (
		pending *Header
		discard bool
	)
	for {
		kind, data, err := ss.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ss.log.Warn().Err(err).Msg("websocket read")
			}
			return
		}
		switch kind {
		case websocket.TextMessage:
			if ss.busy.Load() {
				discard = true
				ss.sendError("", "busy", "Error: a conversion is already running")
				continue
			}
			var h Header
			if err := json.Unmarshal(data, &h); err != nil {
				ss.sendError("", "BadRequest", "Error: invalid header: "+err.Error())
				continue
			}
			pending, discard = &h, false
		case websocket.BinaryMessage:
			if discard {
				discard = false
				continue
			}
			if pending == nil {
				ss.sendError("", "BadRequest", "Error: send a header before the image")
				continue
			}
			h := pending
			pending = nil
			ss.start(h, data)
		}
	}
}

func (ss *session) start(h *Header, data []byte) {
	id := newRequestID()
	if !ss.s.acquire() {
		ss.sendError(id, "busy", "Error: too many conversions in flight")
		return
	}
	params := upscale.Params{Scale: h.Scale, LoopCount: ss.s.defaults.Loop}
	if params.Scale == 0 {
		params.Scale = ss.s.defaults.Scale
	}
	if h.Loop != nil {
		params.LoopCount = *h.Loop
	}
	req := upscale.Request{Data: data, MIMEType: h.Type, FileName: h.Name, Params: params}

	ss.busy.Store(true)
	ss.wg.Add(1)
	go func() {
		defer ss.wg.Done()
		defer ss.busy.Store(false)
		defer ss.s.release()
		ss.run(id, req)
	}()
}

func (ss *session) run(id string, req upscale.Request) {
	var terminal upscale.Event
	reporter := upscale.ReporterFunc(func(e upscale.Event) {
		if e.Terminal {
			terminal = e
			return
		}
		ss.send(Message{
			Type:    "progress",
			ID:      id,
			Stage:   e.Stage.String(),
			Message: e.Message,
			Current: e.Current,
			Total:   e.Total,
		})
	})

	out, err := ss.s.convert(ss.ctx, id, req, reporter)
	if err != nil {
		ss.sendError(id, upscale.KindOf(err).String(), terminal.Message)
		return
	}
	ss.send(Message{
		Type:     "done",
		ID:       id,
		Stage:    upscale.StateDone.String(),
		Message:  terminal.Message,
		Name:     out.FileName,
		MIMEType: out.MIMEType,
		Fallback: out.Fallback.String(),
		Frames:   out.Frames,
	})
	ss.write(websocket.BinaryMessage, out.Data)
}

func (ss *session) sendError(id, kind, msg string) {
	ss.send(Message{Type: "error", ID: id, Stage: upscale.StateFailed.String(), Kind: kind, Message: msg})
}

func (ss *session) send(m Message) {
	data, err := json.Marshal(m)
	if err != nil {
		ss.log.Error().Err(err).Msg("websocket encode")
		return
	}
	ss.write(websocket.TextMessage, data)
}

// write serializes writers; gorilla connections allow one concurrent writer.
func (ss *session) write(kind int, data []byte) {
	ss.wmu.Lock()
	defer ss.wmu.Unlock()
	_ = ss.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ss.conn.WriteMessage(kind, data); err != nil {
		ss.log.Debug().Err(err).Msg("websocket write")
	}
}
