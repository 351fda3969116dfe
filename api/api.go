// Package api is the REST surface: the fallback send-message path for
// clients without a live connection, the history/contact reads, and token
// issuance. Send goes through the same messaging.Service as the websocket
// path, so a live-connected recipient sees messages from either path.
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"

	"github.com/vsocial/minichat/auth"
	"github.com/vsocial/minichat/messaging"
	"github.com/vsocial/minichat/store"
)

type Server struct {
	tokens *auth.JWT
	svc    *messaging.Service
	users  store.Users
}

func NewServer(tokens *auth.JWT, svc *messaging.Service, users store.Users) *Server {
	return &Server{
		tokens: tokens,
		svc:    svc,
		users:  users,
	}
}

func (s *Server) Router() http.Handler {
	r := httprouter.New()
	r.POST("/api/auth/register", s.register)
	r.POST("/api/auth/login", s.login)
	r.POST("/api/messages", s.authenticated(s.sendMessage))
	// httprouter cannot register a static /contacts next to :userId, so
	// one route serves both and dispatches on the segment value.
	r.GET("/api/messages/:userId", s.authenticated(s.messagesGet))
	return r
}

// handle is an httprouter.Handle with the verified caller attached.
type handle func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, ident *auth.Identity)

// authenticated verifies the Authorization bearer token per request.
func (s *Server) authenticated(next handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, "Token não fornecido")
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

		ident, err := s.tokens.Verify(token)
		if err != nil {
			glog.V(5).Infof("authenticated(): verify error: %v", err)
			writeError(w, http.StatusUnauthorized, "Token inválido")
			return
		}
		next(w, r, ps, ident)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.Errorf("writeJSON(): encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
