package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/vsocial/minichat/auth"
	"github.com/vsocial/minichat/messaging"
	"github.com/vsocial/minichat/store"
)

type captureChannel struct {
	frames []*messaging.ServerFrame
}

func (c *captureChannel) Enqueue(f *messaging.ServerFrame) bool {
	c.frames = append(c.frames, f)
	return true
}

type testRegistry struct {
	channels map[int64]messaging.Channel
}

func (r *testRegistry) Lookup(uid int64) (messaging.Channel, bool) {
	ch, ok := r.channels[uid]
	return ch, ok
}

type fixture struct {
	router   http.Handler
	tokens   *auth.JWT
	registry *testRegistry
	messages *store.MockMessages
	users    *store.MockUsers
}

func newFixture(t *testing.T) *fixture {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	f := &fixture{
		tokens:   auth.NewJWT([]byte("test-secret"), time.Hour),
		registry: &testRegistry{channels: make(map[int64]messaging.Channel)},
		messages: store.NewMockMessages(ctrl),
		users:    store.NewMockUsers(ctrl),
	}

	svc := messaging.NewService(f.messages, f.users, f.registry)
	f.router = NewServer(f.tokens, svc, f.users).Router()
	return f
}

func (f *fixture) request(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) token(t *testing.T, uid int64, username string) string {
	token, err := f.tokens.Generate(uid, username)
	require.NoError(t, err)
	return token
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func TestSendMessageRequiresToken(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	w := f.request(t, http.MethodPost, "/api/messages", "", `{"receiverId":2,"content":"oi"}`)
	req.Equal(http.StatusUnauthorized, w.Code)
	req.Equal("Token não fornecido", errorBody(t, w))

	w = f.request(t, http.MethodPost, "/api/messages", "garbage", `{"receiverId":2,"content":"oi"}`)
	req.Equal(http.StatusUnauthorized, w.Code)
	req.Equal("Token inválido", errorBody(t, w))
}

func TestSendMessageExpiredToken(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	// Signed with the server's secret but already past its expiry.
	expired := auth.NewJWT([]byte("test-secret"), -time.Minute)
	token, err := expired.Generate(1, "alice")
	req.NoError(err)

	w := f.request(t, http.MethodPost, "/api/messages", token, `{"receiverId":2,"content":"oi"}`)
	req.Equal(http.StatusUnauthorized, w.Code)
	req.Equal("Token inválido", errorBody(t, w))
}

func TestSendMessageCreated(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.users.EXPECT().ByID(gomock.Any(), int64(2)).Return(&store.User{ID: 2, Username: "bob"}, nil)
	f.messages.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, m *store.Message) error {
			m.ID = 3
			return nil
		})

	w := f.request(t, http.MethodPost, "/api/messages", f.token(t, 1, "alice"),
		`{"receiverId":2,"content":"<i>oi</i> bob"}`)
	req.Equal(http.StatusCreated, w.Code)

	var msg store.Message
	req.NoError(json.Unmarshal(w.Body.Bytes(), &msg))
	req.Equal(int64(3), msg.ID)
	req.Equal(int64(1), msg.SenderID)
	req.Equal(int64(2), msg.ReceiverID)
	req.Equal("oi bob", msg.Content)
	req.Equal("alice", msg.SenderUsername)
	req.NotEmpty(msg.CreatedAt)
}

// A recipient with a live connection sees REST-sent messages too: the two
// delivery paths share the accept operation.
func TestSendMessagePushesToLiveRecipient(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.users.EXPECT().ByID(gomock.Any(), int64(2)).Return(&store.User{ID: 2, Username: "bob"}, nil)
	f.messages.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)

	bob := &captureChannel{}
	f.registry.channels[2] = bob

	w := f.request(t, http.MethodPost, "/api/messages", f.token(t, 1, "alice"),
		`{"receiverId":2,"content":"oi"}`)
	req.Equal(http.StatusCreated, w.Code)

	req.Len(bob.frames, 1)
	req.Equal(messaging.StatusReceived, bob.frames[0].Status)
	req.Equal("oi", bob.frames[0].Message.Content)
}

func TestSendMessageValidation(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	w := f.request(t, http.MethodPost, "/api/messages", f.token(t, 1, "alice"), `{}`)
	req.Equal(http.StatusBadRequest, w.Code)

	var body struct {
		Errors []fieldError `json:"errors"`
	}
	req.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	req.Len(body.Errors, 2)
}

func TestSendMessageRecipientNotFound(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.users.EXPECT().ByID(gomock.Any(), int64(99)).Return(nil, store.ErrUserNotFound)

	w := f.request(t, http.MethodPost, "/api/messages", f.token(t, 1, "alice"),
		`{"receiverId":99,"content":"oi"}`)
	req.Equal(http.StatusBadRequest, w.Code)
	req.Equal("Destinatário não encontrado", errorBody(t, w))
}

func TestSendMessageStoreUnavailable(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.users.EXPECT().ByID(gomock.Any(), int64(2)).Return(&store.User{ID: 2, Username: "bob"}, nil)
	f.messages.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(errors.New("connection refused"))

	w := f.request(t, http.MethodPost, "/api/messages", f.token(t, 1, "alice"),
		`{"receiverId":2,"content":"oi"}`)
	req.Equal(http.StatusInternalServerError, w.Code)
	req.Equal("Erro ao enviar mensagem", errorBody(t, w))
}

func TestContacts(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.messages.EXPECT().Contacts(gomock.Any(), int64(1)).Return([]*store.Contact{
		{ID: 2, Username: "bob"},
		{ID: 3, Username: "carol"},
	}, nil)

	w := f.request(t, http.MethodGet, "/api/messages/contacts", f.token(t, 1, "alice"), "")
	req.Equal(http.StatusOK, w.Code)

	var contacts []*store.Contact
	req.NoError(json.Unmarshal(w.Body.Bytes(), &contacts))
	req.Len(contacts, 2)
	req.Equal("bob", contacts[0].Username)
}

func TestConversation(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	want := []*store.Message{
		{ID: 1, SenderID: 1, ReceiverID: 2, Content: "oi", CreatedAt: "2026-08-30T10:00:00.000Z", SenderUsername: "alice"},
		{ID: 2, SenderID: 2, ReceiverID: 1, Content: "olá", CreatedAt: "2026-08-30T10:00:01.000Z", SenderUsername: "bob"},
	}
	f.messages.EXPECT().Conversation(gomock.Any(), int64(1), int64(2)).Return(want, nil)

	w := f.request(t, http.MethodGet, "/api/messages/2", f.token(t, 1, "alice"), "")
	req.Equal(http.StatusOK, w.Code)

	var msgs []*store.Message
	req.NoError(json.Unmarshal(w.Body.Bytes(), &msgs))
	req.Equal(want, msgs)
}

func TestConversationEmpty(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.messages.EXPECT().Conversation(gomock.Any(), int64(1), int64(5)).Return(nil, nil)

	w := f.request(t, http.MethodGet, "/api/messages/5", f.token(t, 1, "alice"), "")
	req.Equal(http.StatusOK, w.Code)
	req.Equal("[]", strings.TrimSpace(w.Body.String()))
}

func TestConversationBadUserID(t *testing.T) {
	f := newFixture(t)

	w := f.request(t, http.MethodGet, "/api/messages/abc", f.token(t, 1, "alice"), "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegister(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.users.EXPECT().Create(gomock.Any(), "alice", gomock.Any()).DoAndReturn(
		func(_ context.Context, _, hash string) (int64, error) {
			// The handler stores a hash, never the plain password.
			req.True(auth.CheckPassword(hash, "segredo123"))
			return 5, nil
		})

	w := f.request(t, http.MethodPost, "/api/auth/register", "", `{"username":"alice","password":"segredo123"}`)
	req.Equal(http.StatusCreated, w.Code)
}

func TestRegisterDuplicate(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.users.EXPECT().Create(gomock.Any(), "alice", gomock.Any()).
		Return(int64(0), fmt.Errorf("create user `alice`: %w", store.ErrDuplicateUser))

	w := f.request(t, http.MethodPost, "/api/auth/register", "", `{"username":"alice","password":"segredo123"}`)
	req.Equal(http.StatusBadRequest, w.Code)
	req.Equal("Usuário já existe", errorBody(t, w))
}

func TestLogin(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	hash, err := auth.HashPassword("segredo123")
	req.NoError(err)
	f.users.EXPECT().ByUsername(gomock.Any(), "alice").
		Return(&store.User{ID: 1, Username: "alice", Password: hash}, nil).Times(2)

	w := f.request(t, http.MethodPost, "/api/auth/login", "", `{"username":"alice","password":"segredo123"}`)
	req.Equal(http.StatusOK, w.Code)

	var body struct {
		Token string `json:"token"`
	}
	req.NoError(json.Unmarshal(w.Body.Bytes(), &body))

	ident, err := f.tokens.Verify(body.Token)
	req.NoError(err)
	req.Equal(int64(1), ident.UserID)
	req.Equal("alice", ident.Username)

	// Wrong password.
	w = f.request(t, http.MethodPost, "/api/auth/login", "", `{"username":"alice","password":"errado123"}`)
	req.Equal(http.StatusUnauthorized, w.Code)
	req.Equal("Usuário ou Senha incorretos", errorBody(t, w))
}

func TestLoginUnknownUser(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.users.EXPECT().ByUsername(gomock.Any(), "ghost").Return(nil, store.ErrUserNotFound)

	w := f.request(t, http.MethodPost, "/api/auth/login", "", `{"username":"ghost","password":"segredo123"}`)
	req.Equal(http.StatusUnauthorized, w.Code)
	req.Equal("Usuário não encontrado", errorBody(t, w))
}
