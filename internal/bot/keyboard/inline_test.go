package keyboard_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/himera-dialogs/internal/bot/keyboard"
	"github.com/Proton-105/himera-dialogs/internal/chat"
)

func btn(text string) chat.Button {
	return chat.Button{Text: text, Data: text}
}

func texts(rows [][]chat.Button) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		for _, b := range row {
			out[i] = append(out[i], b.Text)
		}
	}
	return out
}

func TestInline_Rows(t *testing.T) {
	t.Run("packs by fraction of a row", func(t *testing.T) {
		rows := keyboard.NewInline().
			Add(btn("a"), "", 3).
			Add(btn("b"), "", 3).
			Add(btn("c"), "", 3).
			Add(btn("d"), "", 2).
			Add(btn("e"), "", 2).
			Add(btn("f"), "", 1).
			Rows()

		assert.Equal(t, [][]string{{"a", "b", "c"}, {"d", "e"}, {"f"}}, texts(rows))
	})

	t.Run("wider button opens a new row", func(t *testing.T) {
		rows := keyboard.NewInline().
			Add(btn("a"), "", 2).
			Add(btn("b"), "", 1).
			Rows()

		assert.Equal(t, [][]string{{"a"}, {"b"}}, texts(rows))
	})

	t.Run("next row and groups", func(t *testing.T) {
		kb := keyboard.NewInline().
			Add(btn("a"), "admin", 2).
			Add(btn("b"), "", 2).
			NextRow().
			Items([]keyboard.Item{{Button: btn("c")}, {Button: btn("d"), Group: "user"}}, "admin", 2)

		assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}}, texts(kb.Rows()))
		assert.Equal(t, [][]string{{"b"}, {"d"}}, texts(kb.Rows("user")))
		assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, texts(kb.Rows("admin")))
	})
}

func TestMarkup(t *testing.T) {
	assert.Nil(t, keyboard.Markup(nil))

	markup := keyboard.Markup([][]chat.Button{
		{{Text: "Prev", Data: "p"}, {Text: "Next", Data: "n"}},
		{{Text: "Site", URL: "https://example.com"}},
	})
	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Equal(t, "n", markup.InlineKeyboard[0][1].Data)
	assert.Equal(t, "https://example.com", markup.InlineKeyboard[1][0].URL)
}
