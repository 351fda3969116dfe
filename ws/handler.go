package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/vsocial/minichat/auth"
	"github.com/vsocial/minichat/messaging"
)

type closeCause int

const (
	readError closeCause = iota + 1
	writeError
	pingError
	serverStop
	kickedOff
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 3 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = 20 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 25 * time.Second

	// websocket max message size to read.
	readLimit = 4096
)

// Handler manages one authenticated connection. Every connection gets a
// recv goroutine and a send goroutine; frames from the client are handled
// strictly one at a time, the next read only starts after the previous
// message finished its store write and registry push.
//
// After registration the conn has exactly one writer, sendLoop. Anything
// that needs the connection gone, eviction by a newer login, a read error,
// server shutdown, asks for it over stopChan and sendLoop performs the
// close write itself.
type Handler struct {
	sync.Mutex

	svc      *messaging.Service
	registry *Registry

	identity *auth.Identity
	sid      string
	conn     *websocket.Conn

	sendChan chan *messaging.ServerFrame
	stopChan chan closeCause

	closing bool
}

func (h *Handler) String() string {
	return fmt.Sprintf(`{"uid":%d,"sid":"%s"}`, h.identity.UserID, h.sid)
}

// Enqueue implements `messaging.Channel`.
func (h *Handler) Enqueue(f *messaging.ServerFrame) bool {
	h.Lock()
	defer h.Unlock()
	if h.closing {
		return false
	}
	select {
	case h.sendChan <- f:
		return true
	default:
		// Writer stalled and the buffer is full. Frames are droppable:
		// pushes are best effort, and a stalled peer gets torn down by
		// the write deadline shortly anyway.
		glog.Errorf("Enqueue(): send buffer full, dropping frame, session: %s", h)
		return false
	}
}

func (h *Handler) isClosing() bool {
	h.Lock()
	defer h.Unlock()
	return h.closing
}

// stop asks sendLoop to close the connection. Unlike Enqueue it can never
// be dropped: the one-slot buffer keeps the first cause and later calls
// are no-ops.
func (h *Handler) stop(cause closeCause) {
	select {
	case h.stopChan <- cause:
	default:
	}
}

// shutdown runs on the sendLoop goroutine only, which owns the conn, so
// the close write here cannot race an in-flight frame write.
func (h *Handler) shutdown(cause closeCause) {
	h.Lock()
	if h.closing {
		h.Unlock()
		return
	}
	h.closing = true
	h.Unlock()

	h.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = h.conn.WriteMessage(websocket.CloseMessage, []byte{})
	h.conn.Close()

	if cause != serverStop {
		glog.V(5).Infof("connection closed, cause: %d, session: %s", cause, h)
		if h.registry.Unregister(h.identity.UserID, h) {
			liveConnections.Dec()
		}
	}
}

func (h *Handler) recvLoop() {
	defer func() { glog.V(5).Infof("recvLoop(): exited, session: %s", h) }()

	h.conn.SetReadLimit(readLimit)
	h.conn.SetReadDeadline(time.Now().Add(pongWait))
	h.conn.SetPongHandler(func(string) error {
		h.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for !h.isClosing() {
		_, data, err := h.conn.ReadMessage()
		if err != nil {
			glog.V(5).Infof("recvLoop(): read error, session: %s, err: %v", h, err)
			h.stop(readError)
			return
		}

		glog.V(5).Infof("recvLoop(): incoming frame: %s, session: %s", data, h)
		h.handleFrame(data)
	}
}

// handleFrame runs the per-frame state machine. Every failure is local to
// the frame: the client gets one error frame and the connection stays open.
func (h *Handler) handleFrame(data []byte) {
	var req messaging.ClientFrame
	if err := json.Unmarshal(data, &req); err != nil {
		glog.Errorf("handleFrame(): malformed frame, session: %s, err: %v", h, err)
		h.Enqueue(&messaging.ServerFrame{Error: "Formato de mensagem inválido"})
		return
	}

	if req.ReceiverID == 0 || req.Content == "" {
		h.Enqueue(&messaging.ServerFrame{Error: "Destinatário ou conteúdo ausente"})
		return
	}

	// The sender id comes from the verified handshake identity, never
	// from the frame payload. Background context: closing the connection
	// must not cancel an in-flight store write.
	msg, err := h.svc.Send(context.Background(), h.identity, req.ReceiverID, req.Content)
	if err != nil {
		h.Enqueue(&messaging.ServerFrame{Error: messaging.ClientText(err)})
		return
	}

	h.Enqueue(&messaging.ServerFrame{Status: messaging.StatusSent, Message: msg})
}

func (h *Handler) sendLoop() {
	pingTicker := time.NewTicker(pingPeriod)
	defer func() {
		pingTicker.Stop()
		glog.V(5).Infof("sendLoop(): exited, session: %s", h)
	}()

	for {
		select {
		case cause := <-h.stopChan:
			h.shutdown(cause)
			return
		case f := <-h.sendChan:
			h.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := h.conn.WriteJSON(f); err != nil {
				glog.Errorf("sendLoop(): write error, session: %s, err: %v", h, err)
				h.shutdown(writeError)
				return
			}
		case <-pingTicker.C:
			h.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := h.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				glog.Errorf("sendLoop(): ping error, session: %s, err: %v", h, err)
				h.shutdown(pingError)
				return
			}
		}
	}
}
