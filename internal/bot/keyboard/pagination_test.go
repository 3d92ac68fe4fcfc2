package keyboard_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/himera-dialogs/internal/bot/keyboard"
)

func TestPagination(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}

	testCases := []struct {
		name      string
		opts      []keyboard.PaginationOption
		setPage   int
		wantPage  int
		wantItems []int
		wantLabel string
	}{
		{name: "first page by default", setPage: 1, wantPage: 1, wantItems: []int{1, 2, 3, 4, 5}, wantLabel: "1 / 3"},
		{name: "last partial page", setPage: 3, wantPage: 3, wantItems: []int{11, 12}, wantLabel: "3 / 3"},
		{name: "cycles past the end", setPage: 4, wantPage: 1, wantItems: []int{1, 2, 3, 4, 5}, wantLabel: "1 / 3"},
		{name: "cycles before the start", setPage: 0, wantPage: 3, wantItems: []int{11, 12}, wantLabel: "3 / 3"},
		{name: "clamps without cycle", opts: []keyboard.PaginationOption{keyboard.NoCycle()}, setPage: 9, wantPage: 3, wantItems: []int{11, 12}, wantLabel: "3 / 3"},
		{name: "custom page size", opts: []keyboard.PaginationOption{keyboard.PerPage(4)}, setPage: 2, wantPage: 2, wantItems: []int{5, 6, 7, 8}, wantLabel: "2 / 3"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			p := keyboard.NewPagination(items, tc.opts...)
			assert.Equal(t, tc.wantPage, p.SetPage(tc.setPage))
			assert.Equal(t, tc.wantItems, p.Items())
			assert.Equal(t, tc.wantLabel, p.Label())
		})
	}
}

func TestPagination_Empty(t *testing.T) {
	p := keyboard.NewPagination([]string{})
	assert.Equal(t, 1, p.Pages())
	assert.True(t, p.IsFirst())
	assert.True(t, p.IsLast())
	assert.Empty(t, p.Items())
}

func TestPaginationButtons(t *testing.T) {
	items := make([]int, 25)

	testCases := []struct {
		name      string
		opts      []keyboard.PaginationOption
		wantTexts []string
		wantPages []string
	}{
		{
			name:      "cycling first page",
			opts:      []keyboard.PaginationOption{keyboard.StartPage(1)},
			wantTexts: []string{"◀️", "1 / 5", "▶️"},
			wantPages: []string{"5", "1", "2"},
		},
		{
			name:      "clamped first page",
			opts:      []keyboard.PaginationOption{keyboard.StartPage(1), keyboard.NoCycle()},
			wantTexts: []string{"1 / 5", "▶️"},
			wantPages: []string{"1", "2"},
		},
		{
			name:      "clamped last page",
			opts:      []keyboard.PaginationOption{keyboard.StartPage(5), keyboard.NoCycle()},
			wantTexts: []string{"◀️", "5 / 5"},
			wantPages: []string{"4", "5"},
		},
		{
			name:      "single page",
			opts:      []keyboard.PaginationOption{keyboard.PerPage(50)},
			wantTexts: []string{"1 / 1"},
			wantPages: []string{"1"},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			p := keyboard.NewPagination(items, tc.opts...)
			buttons, err := keyboard.PaginationButtons(p, "list", keyboard.PaginationLabels{})
			require.NoError(t, err)
			require.Len(t, buttons, len(tc.wantTexts))

			for i, btn := range buttons {
				assert.Equal(t, tc.wantTexts[i], btn.Text)

				action, ok := keyboard.DecodeAction(btn.Data)
				require.True(t, ok)
				assert.Equal(t, "list", action.Name)
				assert.Equal(t, tc.wantPages[i], action.Params["page"])
			}
		})
	}
}
