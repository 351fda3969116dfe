// Package ws serves the persistent side of the messaging core: the
// websocket endpoint, the per-connection handlers and the live connection
// registry.
package ws

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	"github.com/pborman/uuid"

	"github.com/vsocial/minichat/auth"
	"github.com/vsocial/minichat/messaging"
)

// Close reasons sent with protocol close code 1008 on a failed handshake.
// These strings are part of the client contract.
const (
	closeReasonNoToken  = "Token não fornecido"
	closeReasonBadToken = "Token inválido"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// The node sits behind a reverse proxy that owns origin policy.
		return true
	},
}

// Hub upgrades and authenticates new connections and hands them to the
// registry. The registry is injected so tests can build an isolated one.
type Hub struct {
	verifier auth.Verifier
	svc      *messaging.Service
	registry *Registry
}

func NewHub(verifier auth.Verifier, svc *messaging.Service, registry *Registry) *Hub {
	return &Hub{
		verifier: verifier,
		svc:      svc,
		registry: registry,
	}
}

// ServeHTTP handles websocket upgrade requests. The bearer token rides in
// the handshake query string; a connection that fails verification is
// closed with code 1008 and never reaches the registry.
func (hub *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	var ident *auth.Identity
	authErr := auth.ErrMissingToken
	if token != "" {
		ident, authErr = hub.verifier.Verify(token)
	}

	// Upgrade before rejecting: the policy-violation close code can only
	// reach the client over an established websocket.
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Errorf("ServeHTTP(): upgrade error: %v", err)
		return
	}

	if authErr != nil {
		glog.Errorf("ServeHTTP(): authenticate error: %v", authErr)
		reason := closeReasonBadToken
		if errors.Is(authErr, auth.ErrMissingToken) {
			reason = closeReasonNoToken
		}
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteMessage(websocket.CloseMessage, msg)
		conn.Close()
		return
	}

	h := &Handler{
		svc:      hub.svc,
		registry: hub.registry,
		identity: ident,
		sid:      strings.ReplaceAll(uuid.New(), "-", ""),
		conn:     conn,
		sendChan: make(chan *messaging.ServerFrame, 16),
		stopChan: make(chan closeCause, 1),
	}

	conn.SetCloseHandler(func(code int, text string) error {
		glog.Infof("connection closed by peer, session: %s, code: %d, text: %s", h, code, text)
		return nil
	})

	glog.Infof("connection authenticated, session: %s, ip: %s", h, remoteIP(r))

	if old := hub.registry.Register(ident.UserID, h); old != nil {
		// At most one live channel per user: a new login replaces the
		// previous connection. The old connection's own send loop writes
		// the close frame; touching its conn from here would race an
		// in-flight frame write.
		glog.V(5).Infof("replacing live connection, uid: %d, old session: %s", ident.UserID, old)
		old.stop(kickedOff)
	} else {
		liveConnections.Inc()
	}

	go h.recvLoop()
	go h.sendLoop()
}

// Close tears down all live connections, for server shutdown.
func (hub *Hub) Close() {
	glog.Infof("close connections ...")
	hub.registry.CloseAll()
	glog.Infof("close connections done")
}

func remoteIP(r *http.Request) string {
	ip := r.Header.Get("X-REAL-IP")
	if ip == "" {
		if ips := r.Header.Get("X-FORWARDED-FOR"); ips != "" {
			for _, x := range strings.Split(ips, ",") {
				if x != "" {
					ip = x
				}
			}
		}
	}
	if ip == "" {
		ip, _, _ = net.SplitHostPort(r.RemoteAddr)
	}
	return ip
}
