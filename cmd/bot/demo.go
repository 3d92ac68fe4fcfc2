package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/himera-dialogs/internal/bot"
	"github.com/Proton-105/himera-dialogs/internal/bot/handlers"
	"github.com/Proton-105/himera-dialogs/internal/bot/keyboard"
	"github.com/Proton-105/himera-dialogs/internal/chat"
	"github.com/Proton-105/himera-dialogs/internal/dialog"
	"github.com/Proton-105/himera-dialogs/internal/poll"
	"github.com/Proton-105/himera-dialogs/internal/state"
)

const (
	signupAnswerTimeout = 5 * time.Minute
	catalogPerPage      = 5
)

var catalogItems = []string{
	"Эспрессо", "Американо", "Капучино", "Латте", "Раф",
	"Флэт уайт", "Мокко", "Какао", "Чай зелёный", "Чай чёрный",
	"Лимонад", "Морс",
}

func demoDialogs() []*dialog.Dialog {
	return []*dialog.Dialog{signupDialog(), catalogDialog()}
}

func demoPolls() []*poll.Poll {
	return []*poll.Poll{votePoll()}
}

// registerDemoCommands binds the slash commands that start demo conversations.
func registerDemoCommands(router *bot.Router, polls *poll.Polls) {
	router.RegisterCommand("/signup", enterDialog("signup"))
	router.RegisterCommand("/catalog", enterDialog("catalog"))
	router.RegisterCommand("/vote", startVote(polls))
}

func enterDialog(name string) handlers.Handler {
	return func(c telebot.Context) error {
		ctx := handlers.Context(c)
		session := dialog.SessionFromContext(ctx)
		if session == nil {
			return nil
		}
		return session.Enter(ctx, name, nil, nil)
	}
}

type signupParams struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func cancelChoice() dialog.Choice {
	return dialog.Choice{Text: "Отмена", Phase: "cancel"}
}

func askAge(text string) *dialog.Message {
	return dialog.NewMessage(text).
		OnMessage(chat.SubtypeText, "confirm", dialog.Capture("age"), dialog.Timeout(signupAnswerTimeout)).
		InlineKeyboard(cancelChoice())
}

func signupDialog() *dialog.Dialog {
	return dialog.NewDialog("signup").
		OnEnter(func(ctx context.Context, next *dialog.Next, _ *dialog.State) error {
			return next.Send(ctx, dialog.NewMessage("Как тебя зовут?").
				OnMessage(chat.SubtypeText, "age", dialog.Capture("name"), dialog.Timeout(signupAnswerTimeout)).
				InlineKeyboard(cancelChoice()))
		}).
		Phase("age", func(ctx context.Context, next *dialog.Next, st *dialog.State) error {
			return next.Send(ctx, askAge(fmt.Sprintf("Приятно познакомиться, %s! Сколько тебе лет?", st.Params.String("name"))))
		}).
		Phase("confirm", func(ctx context.Context, next *dialog.Next, st *dialog.State) error {
			var p signupParams
			if err := st.Params.Decode(&p); err != nil || p.Age <= 0 {
				return next.Send(ctx, askAge("Возраст нужно указать числом. Сколько тебе лет?"))
			}

			return next.Send(ctx, dialog.NewMessage(fmt.Sprintf("Имя: %s\nВозраст: %d\nВсё верно?", p.Name, p.Age)).
				InlineKeyboard(
					dialog.Choice{Text: "Да", Phase: "done", NumInRow: 2},
					dialog.Choice{Text: "Заново", Phase: "restart", NumInRow: 2},
				))
		}).
		Phase("restart", func(ctx context.Context, next *dialog.Next, _ *dialog.State) error {
			return next.Navigate(ctx, chat.Params{"dialog": "signup"})
		}).
		Phase("done", func(ctx context.Context, next *dialog.Next, st *dialog.State) error {
			return next.Send(ctx, dialog.NewMessage(fmt.Sprintf("Готово, %s!", st.Params.String("name"))))
		}).
		Phase("cancel", func(ctx context.Context, next *dialog.Next, _ *dialog.State) error {
			return next.Send(ctx, dialog.NewMessage("Регистрация отменена."))
		})
}

func catalogDialog() *dialog.Dialog {
	return dialog.NewDialog("catalog").
		OnEnter(func(ctx context.Context, next *dialog.Next, _ *dialog.State) error {
			return sendCatalogPage(ctx, next, 1)
		}).
		Phase("page", func(ctx context.Context, next *dialog.Next, _ *dialog.State) error {
			page := 1
			if action, ok := keyboard.DecodeAction(next.Session().Update().Data); ok {
				if n, err := strconv.Atoi(action.Params["page"]); err == nil {
					page = n
				}
			}
			return sendCatalogPage(ctx, next, page)
		}).
		Phase("close", func(ctx context.Context, next *dialog.Next, _ *dialog.State) error {
			return next.Send(ctx, dialog.NewMessage("Каталог закрыт."))
		})
}

// sendCatalogPage renders one page. Navigation buttons carry encoded page
// actions that fall through to the "page" phase.
func sendCatalogPage(ctx context.Context, next *dialog.Next, page int) error {
	p := keyboard.NewPagination(catalogItems, keyboard.PerPage(catalogPerPage), keyboard.StartPage(page))

	nav, err := keyboard.PaginationButtons(p, "page", keyboard.DefaultPaginationLabels)
	if err != nil {
		return err
	}

	layout := keyboard.NewInline()
	for _, btn := range nav {
		layout.Add(btn, "", len(nav))
	}

	text := "Меню:\n• " + strings.Join(p.Items(), "\n• ")

	return next.Send(ctx, dialog.NewMessage(text).
		Buttons(layout.Rows()).
		InlineKeyboard(dialog.Choice{Text: "Закрыть", Phase: "close"}).
		OnCallback("page", nil))
}

func votePoll() *poll.Poll {
	return poll.NewPoll("vote").
		OnShow(func(ctx context.Context, s *poll.Session) error {
			st := s.State()
			yes, no := tally(st.Data)

			layout := keyboard.NewInline()
			for _, option := range []struct{ text, choice string }{
				{fmt.Sprintf("👍 %d", yes), "yes"},
				{fmt.Sprintf("👎 %d", no), "no"},
			} {
				btn, err := keyboard.ActionButton(option.text, "vote", map[string]string{"choice": option.choice})
				if err != nil {
					return err
				}
				layout.Add(btn, "", 2)
			}

			stop, err := keyboard.UserActionButton(st.User.ID, "Завершить", "stop", nil)
			if err != nil {
				return err
			}
			layout.NextRow().Add(stop, "", 1)

			question, _ := st.Data["question"].(string)
			return s.SendMessage(ctx, question, &chat.Extra{Keyboard: layout.Rows()})
		}).
		Action("vote", func(ctx context.Context, s *poll.Session) error {
			st := s.State()
			votes, _ := st.Data["votes"].(map[string]any)
			updated := make(map[string]any, len(votes)+1)
			for k, v := range votes {
				updated[k] = v
			}
			updated[strconv.FormatInt(s.Update().SenderID(), 10)] = s.Params().String("choice")

			data := chat.Params(st.Data).Merge(chat.Params{"votes": updated})
			return s.Save(ctx, state.Fields{"data": map[string]any(data)}, true)
		}).
		Action("stop", func(ctx context.Context, s *poll.Session) error {
			st := s.State()
			if s.Params().String("user_id") != strconv.FormatInt(s.Update().SenderID(), 10) {
				return nil
			}

			yes, no := tally(st.Data)
			question, _ := st.Data["question"].(string)
			if err := s.SendMessage(ctx, fmt.Sprintf("%s\nИтог: 👍 %d, 👎 %d", question, yes, no), nil); err != nil {
				return err
			}
			return s.Stop(ctx, "")
		})
}

func tally(data map[string]any) (yes, no int) {
	votes, _ := data["votes"].(map[string]any)
	for _, v := range votes {
		switch v {
		case "yes":
			yes++
		case "no":
			no++
		}
	}
	return yes, no
}

// startVote opens a chat-wide poll; the text after the command is the question.
func startVote(polls *poll.Polls) handlers.Handler {
	return func(c telebot.Context) error {
		ctx := handlers.Context(c)
		upd := chat.UpdateFromContext(ctx)
		if upd == nil {
			return nil
		}

		question := strings.TrimSpace(strings.TrimPrefix(upd.Text, "/vote"))
		if question == "" {
			question = "Голосуем?"
		}

		return polls.NewSession(upd).Start(ctx, "vote", nil, map[string]any{
			"question": question,
			"votes":    map[string]any{},
		})
	}
}
