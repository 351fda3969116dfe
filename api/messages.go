package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"

	"github.com/vsocial/minichat/auth"
	"github.com/vsocial/minichat/messaging"
	"github.com/vsocial/minichat/store"
)

var validate = validator.New()

type sendMessageRequest struct {
	ReceiverID int64  `json:"receiverId" validate:"required,gt=0"`
	Content    string `json:"content" validate:"required"`
}

// fieldError mirrors the {errors:[{param,msg}]} body validation failures
// have always produced on this API.
type fieldError struct {
	Param string `json:"param"`
	Msg   string `json:"msg"`
}

func validationErrors(err error) []fieldError {
	var out []fieldError
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return append(out, fieldError{Param: "body", Msg: "Requisição inválida"})
	}
	for _, fe := range verrs {
		switch fe.Field() {
		case "ReceiverID":
			out = append(out, fieldError{Param: "receiverId", Msg: "Destinatário inválido"})
		case "Content":
			out = append(out, fieldError{Param: "content", Msg: "Conteúdo é obrigatório"})
		default:
			out = append(out, fieldError{Param: fe.Field(), Msg: "Campo inválido"})
		}
	}
	return out
}

// sendMessage is the stateless fallback for the websocket send: identical
// validation and persistence, including the live push to a connected
// recipient, which happens inside Service.Send.
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request, _ httprouter.Params, ident *auth.Identity) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Formato de requisição inválido")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"errors": validationErrors(err)})
		return
	}

	msg, err := s.svc.Send(r.Context(), ident, req.ReceiverID, req.Content)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, messaging.ErrDeliveryFailed) {
			status = http.StatusInternalServerError
		}
		writeError(w, status, messaging.ClientText(err))
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

// messagesGet serves both GET /api/messages/contacts and
// GET /api/messages/:userId.
func (s *Server) messagesGet(w http.ResponseWriter, r *http.Request, ps httprouter.Params, ident *auth.Identity) {
	seg := ps.ByName("userId")
	if seg == "contacts" {
		s.contacts(w, r, ident)
		return
	}

	otherID, err := strconv.ParseInt(seg, 10, 64)
	if err != nil || otherID <= 0 {
		writeError(w, http.StatusBadRequest, "Destinatário inválido")
		return
	}

	msgs, err := s.svc.Conversation(r.Context(), ident.UserID, otherID)
	if err != nil {
		glog.Errorf("messagesGet(): conversation error, uid: %d, other: %d, err: %v", ident.UserID, otherID, err)
		writeError(w, http.StatusInternalServerError, "Erro interno do servidor")
		return
	}
	if msgs == nil {
		msgs = []*store.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) contacts(w http.ResponseWriter, r *http.Request, ident *auth.Identity) {
	contacts, err := s.svc.Contacts(r.Context(), ident.UserID)
	if err != nil {
		glog.Errorf("contacts(): error, uid: %d, err: %v", ident.UserID, err)
		writeError(w, http.StatusInternalServerError, "Erro interno do servidor")
		return
	}
	if contacts == nil {
		contacts = []*store.Contact{}
	}
	writeJSON(w, http.StatusOK, contacts)
}
