package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"

	"github.com/vsocial/minichat/auth"
	"github.com/vsocial/minichat/store"
)

type credentialsRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

func credentialErrors(err error) []fieldError {
	var out []fieldError
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return append(out, fieldError{Param: "body", Msg: "Requisição inválida"})
	}
	for _, fe := range verrs {
		switch fe.Field() {
		case "Username":
			out = append(out, fieldError{Param: "username", Msg: "Nome de usuário inválido"})
		case "Password":
			out = append(out, fieldError{Param: "password", Msg: "Senha inválida"})
		}
	}
	return out
}

func (s *Server) register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Formato de requisição inválido")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"errors": credentialErrors(err)})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		glog.Errorf("register(): hash error: %v", err)
		writeError(w, http.StatusInternalServerError, "Erro ao registrar")
		return
	}

	if _, err := s.users.Create(r.Context(), req.Username, hash); err != nil {
		if errors.Is(err, store.ErrDuplicateUser) {
			writeError(w, http.StatusBadRequest, "Usuário já existe")
			return
		}
		glog.Errorf("register(): create error: %v", err)
		writeError(w, http.StatusInternalServerError, "Erro ao registrar")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"message": "Usuário registrado"})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Formato de requisição inválido")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"errors": credentialErrors(err)})
		return
	}

	u, err := s.users.ByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, "Usuário não encontrado")
			return
		}
		glog.Errorf("login(): lookup error: %v", err)
		writeError(w, http.StatusInternalServerError, "Erro interno do servidor")
		return
	}

	if !auth.CheckPassword(u.Password, req.Password) {
		writeError(w, http.StatusUnauthorized, "Usuário ou Senha incorretos")
		return
	}

	token, err := s.tokens.Generate(u.ID, u.Username)
	if err != nil {
		glog.Errorf("login(): token error: %v", err)
		writeError(w, http.StatusInternalServerError, "Erro interno do servidor")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
