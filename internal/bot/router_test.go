package bot

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/himera-dialogs/internal/bot/handlers"
	"github.com/Proton-105/himera-dialogs/internal/chat"
	"github.com/Proton-105/himera-dialogs/internal/command"
	"github.com/Proton-105/himera-dialogs/internal/dialog"
	"github.com/Proton-105/himera-dialogs/internal/state"
)

const (
	testChatID int64 = 100
	testUserID int64 = 7
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// telegramStub answers every Bot API method with the same message.
type telegramStub struct {
	mu      sync.Mutex
	methods []string
}

func (s *telegramStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.methods = append(s.methods, r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:])
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"chat":{"id":100}}}`)
}

func (s *telegramStub) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.methods...)
}

type fakeMessenger struct {
	mu     sync.Mutex
	nextID int
	log    []string
}

func (m *fakeMessenger) Send(_ context.Context, _ int64, text string, _ *chat.Extra) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.log = append(m.log, "send:"+text)
	return m.nextID, nil
}

func (m *fakeMessenger) Edit(_ context.Context, _ int64, _ int, text string, _ *chat.Extra) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, "edit:"+text)
	return nil
}

func (m *fakeMessenger) Delete(context.Context, int64, int) error {
	return nil
}

func (m *fakeMessenger) history() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.log...)
}

type routerFixture struct {
	tb        *telebot.Bot
	stub      *telegramStub
	messenger *fakeMessenger
	store     *state.MemoryStore[dialog.State]
	dialogs   *dialog.Dialogs
	router    *Router
}

func newRouterFixture(t *testing.T, parser *command.Parser) *routerFixture {
	t.Helper()

	stub := &telegramStub{}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	tb, err := telebot.NewBot(telebot.Settings{URL: srv.URL, Token: "test", Offline: true})
	require.NoError(t, err)

	messenger := &fakeMessenger{}
	store := state.NewMemoryStore[dialog.State]()
	dialogs := dialog.New(store, messenger, dialog.WithLogger(testLogger()))
	dialogs.Register(dialog.NewDialog("menu").
		OnEnter(func(ctx context.Context, next *dialog.Next, _ *dialog.State) error {
			return next.Send(ctx, dialog.NewMessage("pick").InlineKeyboard(
				dialog.Choice{Text: "A", Phase: "a"},
			))
		}).
		Phase("a", func(ctx context.Context, next *dialog.Next, _ *dialog.State) error {
			return next.Send(ctx, dialog.NewMessage("done"))
		}))

	router := NewRouter(dialogs, nil, parser, testLogger())
	router.RegisterCommand("/menu", func(c telebot.Context) error {
		ctx := handlers.Context(c)
		return dialog.SessionFromContext(ctx).Enter(ctx, "menu", nil, nil)
	})
	router.RegisterCommand(CommandCancel, handlers.NewCancelHandler(dialogs, testLogger()))

	return &routerFixture{
		tb:        tb,
		stub:      stub,
		messenger: messenger,
		store:     store,
		dialogs:   dialogs,
		router:    router,
	}
}

func (f *routerFixture) text(t *testing.T, text string) {
	t.Helper()
	require.NoError(t, f.router.Route(f.tb.NewContext(telebot.Update{Message: &telebot.Message{
		ID:     1,
		Sender: &telebot.User{ID: testUserID},
		Chat:   &telebot.Chat{ID: testChatID},
		Text:   text,
	}})))
}

func (f *routerFixture) press(t *testing.T, messageID int, data string) {
	t.Helper()
	require.NoError(t, f.router.Route(f.tb.NewContext(telebot.Update{Callback: &telebot.Callback{
		ID:      "cb",
		Sender:  &telebot.User{ID: testUserID},
		Data:    data,
		Message: &telebot.Message{ID: messageID, Chat: &telebot.Chat{ID: testChatID}},
	}})))
}

func (f *routerFixture) token(t *testing.T) string {
	t.Helper()
	st, err := f.store.FindOne(context.Background(), testChatID, state.Filter{"user.id": testUserID})
	require.NoError(t, err)
	require.Len(t, st.Next.Callback, 1)
	for token := range st.Next.Callback {
		return token
	}
	return ""
}

func TestRouter_DialogFlow(t *testing.T) {
	f := newRouterFixture(t, nil)

	f.text(t, "/menu")
	token := f.token(t)

	f.press(t, 1, token)
	f.dialogs.Wait()

	assert.Equal(t, []string{"send:pick", "edit:done"}, f.messenger.history())
	assert.Equal(t, 0, f.store.Len())
	assert.Contains(t, f.stub.calls(), "answerCallbackQuery")
}

func TestRouter_CancelExitsDialog(t *testing.T) {
	f := newRouterFixture(t, nil)

	f.text(t, "/menu@test_bot")
	require.Equal(t, 1, f.store.Len())

	f.text(t, "/cancel")
	assert.Equal(t, 0, f.store.Len())
	assert.Equal(t, []string{"sendMessage"}, f.stub.calls())
}

func TestRouter_ParserAndDefault(t *testing.T) {
	var captured chat.Params
	parser := command.NewParser(command.WithLogger(testLogger())).
		Schema(command.NewSchema().Prefix("tip").Number("amount"), "tip").
		Controller("tip", func(_ context.Context, params chat.Params) error {
			captured = params
			return nil
		})

	f := newRouterFixture(t, parser)

	var fallback []string
	f.router.SetDefault(func(c telebot.Context) error {
		fallback = append(fallback, c.Text())
		return nil
	})

	f.text(t, "tip 12.5")
	f.text(t, "hello")

	assert.Equal(t, chat.Params{"amount": 12.5}, captured)
	assert.Equal(t, []string{"hello"}, fallback)
}

func TestRouter_UnknownCallbackUsesPrefixHandlers(t *testing.T) {
	f := newRouterFixture(t, nil)

	var got string
	f.router.RegisterCallback("page:", func(c telebot.Context) error {
		got = "short"
		return nil
	})
	f.router.RegisterCallback("page:next", func(c telebot.Context) error {
		got = "long"
		return nil
	})

	f.press(t, 99, "page:next")
	assert.Equal(t, "long", got)
}

func TestRouter_MiddlewareOrder(t *testing.T) {
	f := newRouterFixture(t, nil)

	var order []string
	for _, name := range []string{"outer", "inner"} {
		name := name
		f.router.Use(func(next handlers.Handler) handlers.Handler {
			return func(c telebot.Context) error {
				order = append(order, name)
				return next(c)
			}
		})
	}

	f.text(t, "anything")
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestCommandName(t *testing.T) {
	assert.Equal(t, "/start", commandName("/start"))
	assert.Equal(t, "/start", commandName("/start@my_bot payload"))
	assert.Equal(t, "/tip", commandName("/tip 10"))
}

func TestErrorHandlingMiddleware_AnswersFailedPresses(t *testing.T) {
	f := newRouterFixture(t, nil)
	f.router.Use(ErrorHandlingMiddleware(nil))

	f.router.RegisterCallback("boom", func(telebot.Context) error {
		return assert.AnError
	})
	f.router.RegisterCommand("/boom", func(telebot.Context) error {
		return assert.AnError
	})

	f.press(t, 99, "boom")
	assert.Equal(t, []string{"answerCallbackQuery"}, f.stub.calls())

	f.text(t, "/boom")
	assert.Equal(t, []string{"answerCallbackQuery", "sendMessage"}, f.stub.calls())
}
