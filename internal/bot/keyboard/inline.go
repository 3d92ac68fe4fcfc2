package keyboard

import (
	"math/big"
	"slices"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/himera-dialogs/internal/chat"
)

// Item is one button placed by the Inline layout.
type Item struct {
	Button   chat.Button
	Group    string
	NumInRow int // the button takes 1/NumInRow of a row; values below 1 mean 1
}

// Inline packs buttons into rows. A button is appended to the current row
// while the widths of the row's buttons add up to at most one full row.
type Inline struct {
	rows [][]Item
}

// NewInline creates an empty layout.
func NewInline() *Inline {
	return &Inline{}
}

// Add places a button in the current row or opens a new one when it does not fit.
func (k *Inline) Add(button chat.Button, group string, numInRow int) *Inline {
	return k.add(Item{Button: button, Group: group, NumInRow: numInRow})
}

// Items places several buttons. Group and numInRow fill item fields left empty.
func (k *Inline) Items(items []Item, group string, numInRow int) *Inline {
	for _, item := range items {
		if item.Group == "" {
			item.Group = group
		}
		if item.NumInRow < 1 {
			item.NumInRow = numInRow
		}
		k.add(item)
	}
	return k
}

// NextRow forces the following button onto a new row.
func (k *Inline) NextRow() *Inline {
	k.rows = append(k.rows, nil)
	return k
}

// Rows renders the layout. When groups are given only buttons without a
// group or with one of the given groups are kept. Empty rows are dropped.
func (k *Inline) Rows(groups ...string) [][]chat.Button {
	out := make([][]chat.Button, 0, len(k.rows))
	for _, items := range k.rows {
		row := make([]chat.Button, 0, len(items))
		for _, item := range items {
			if item.Group == "" || len(groups) == 0 || slices.Contains(groups, item.Group) {
				row = append(row, item.Button)
			}
		}
		if len(row) > 0 {
			out = append(out, row)
		}
	}
	return out
}

func (k *Inline) add(item Item) *Inline {
	if item.NumInRow < 1 {
		item.NumInRow = 1
	}

	if len(k.rows) == 0 {
		k.rows = append(k.rows, nil)
	}

	last := len(k.rows) - 1
	used := new(big.Rat)
	for _, placed := range k.rows[last] {
		used.Add(used, big.NewRat(1, int64(placed.NumInRow)))
	}
	used.Add(used, big.NewRat(1, int64(item.NumInRow)))

	if used.Cmp(big.NewRat(1, 1)) > 0 {
		k.rows = append(k.rows, []Item{item})
	} else {
		k.rows[last] = append(k.rows[last], item)
	}

	return k
}

// Markup converts rows into telebot inline markup.
func Markup(rows [][]chat.Button) *telebot.ReplyMarkup {
	if len(rows) == 0 {
		return nil
	}

	inlineKeyboard := make([][]telebot.InlineButton, len(rows))
	for i, row := range rows {
		inlineKeyboard[i] = make([]telebot.InlineButton, len(row))
		for j, btn := range row {
			inlineKeyboard[i][j] = telebot.InlineButton{
				Text: btn.Text,
				Data: btn.Data,
				URL:  btn.URL,
			}
		}
	}

	return &telebot.ReplyMarkup{InlineKeyboard: inlineKeyboard}
}
