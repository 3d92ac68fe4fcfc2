package command

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/himera-dialogs/internal/chat"
	apperrors "github.com/Proton-105/himera-dialogs/internal/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParser_Parse(t *testing.T) {
	testCases := []struct {
		name   string
		schema *Schema
		input  string
		want   chat.Params
		ok     bool
	}{
		{
			name:   "required steps in order",
			schema: NewSchema().Prefix("/add").Number("amount").Text("note"),
			input:  "/add 12.5 coffee and cake",
			want:   chat.Params{"amount": 12.5, "note": "coffee and cake"},
			ok:     true,
		},
		{
			name:   "text widens until the literal anchors",
			schema: NewSchema().Text("a").Prefix("END"),
			input:  "hello world END",
			want:   chat.Params{"a": "hello world"},
			ok:     true,
		},
		{
			name:   "required number rejects words",
			schema: NewSchema().Number("n"),
			input:  "abc",
		},
		{
			name:   "optional number left unconsumed",
			schema: NewSchema().Number("n", Optional()),
			input:  "abc",
		},
		{
			name:   "optional number on empty input",
			schema: NewSchema().Number("n", Optional()),
			input:  "",
			want:   chat.Params{},
			ok:     true,
		},
		{
			name:   "optional number omitted before required text",
			schema: NewSchema().Prefix("/remind").Number("minutes", Optional()).Text("what"),
			input:  "/remind buy milk",
			want:   chat.Params{"what": "buy milk"},
			ok:     true,
		},
		{
			name:   "optional number present",
			schema: NewSchema().Prefix("/remind").Number("minutes", Optional()).Text("what"),
			input:  "/remind 15 buy milk",
			want:   chat.Params{"minutes": 15.0, "what": "buy milk"},
			ok:     true,
		},
		{
			name:   "optional prefix",
			schema: NewSchema().Prefix("please", Optional()).Prefix("stop"),
			input:  "stop",
			want:   chat.Params{},
			ok:     true,
		},
		{
			name:   "leading space literal keeps spaces",
			schema: NewSchema().Prefix("a").Prefix(" b"),
			input:  "a b",
			want:   chat.Params{},
			ok:     true,
		},
		{
			name:   "trailing input fails",
			schema: NewSchema().Prefix("/ping"),
			input:  "/ping now",
		},
		{
			name:   "trailing spaces allowed",
			schema: NewSchema().Prefix("/ping"),
			input:  "/ping   ",
			want:   chat.Params{},
			ok:     true,
		},
		{
			name:   "nan is not a number",
			schema: NewSchema().Number("n"),
			input:  "NaN",
		},
		{
			name:   "required date never matches",
			schema: NewSchema().Prefix("/at").Date("when"),
			input:  "/at 2024-01-01",
		},
		{
			name:   "optional date skipped",
			schema: NewSchema().Prefix("/at").Date("when", Optional()),
			input:  "/at",
			want:   chat.Params{},
			ok:     true,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			p := NewParser(WithLogger(testLogger())).Schema(tc.schema, "ctrl")

			m, ok := p.Parse(tc.input)
			require.Equal(t, tc.ok, ok)
			if !tc.ok {
				assert.Nil(t, m)
				return
			}
			assert.Equal(t, "ctrl", m.Controller)
			assert.Equal(t, tc.want, m.Params)
		})
	}
}

func TestParser_TriesSchemasInOrder(t *testing.T) {
	p := NewParser(WithLogger(testLogger())).
		Schema(NewSchema().Prefix("/sum").Number("a").Number("b"), "sum").
		Schema(NewSchema().Prefix("/sum").Text("expr"), "expr")

	m, ok := p.Parse("/sum 1 2")
	require.True(t, ok)
	assert.Equal(t, "sum", m.Controller)

	m, ok = p.Parse("/sum one two")
	require.True(t, ok)
	assert.Equal(t, "expr", m.Controller)
	assert.Equal(t, "one two", m.Params["expr"])
}

func TestParser_SchemaCopiedOnRegistration(t *testing.T) {
	schema := NewSchema().Prefix("/go")
	p := NewParser(WithLogger(testLogger())).Schema(schema, "go")

	schema.Number("n")

	_, ok := p.Parse("/go")
	assert.True(t, ok)
}

func TestParser_ConcurrentMatchesDoNotShareCaptures(t *testing.T) {
	p := NewParser(WithLogger(testLogger())).Schema(NewSchema().Prefix("/echo").Text("v"), "echo")

	var wg sync.WaitGroup
	for _, v := range []string{"one", "two", "three", "four"} {
		wg.Add(1)
		go func(v string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				m, ok := p.Parse("/echo " + v)
				if assert.True(t, ok) {
					assert.Equal(t, v, m.Params["v"])
				}
			}
		}(v)
	}
	wg.Wait()
}

func TestParser_Execute(t *testing.T) {
	ctx := context.Background()

	var got chat.Params
	p := NewParser(WithLogger(testLogger())).
		Schema(NewSchema().Prefix("/pay").Number("amount"), "pay").
		Controller("pay", func(_ context.Context, params chat.Params) error {
			got = params
			return nil
		})

	ran, err := p.Execute(ctx, "/pay 10", chat.Params{"currency": "EUR", "amount": 11})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, chat.Params{"currency": "EUR", "amount": 11}, got)

	ran, err = p.Execute(ctx, "hello", nil)
	require.NoError(t, err)
	assert.False(t, ran)
}

func TestParser_ExecuteUnknownController(t *testing.T) {
	ctx := context.Background()

	var hooked error
	p := NewParser(
		WithLogger(testLogger()),
		WithErrorHook(func(_ context.Context, err error) error {
			hooked = err
			return nil
		}),
	).Schema(NewSchema().Prefix("/ghost"), "ghost")

	ran, err := p.Execute(ctx, "/ghost", nil)
	require.NoError(t, err)
	assert.False(t, ran)
	assert.ErrorIs(t, hooked, apperrors.ErrNotFound)

	p = NewParser(WithLogger(testLogger())).Schema(NewSchema().Prefix("/ghost"), "ghost")
	_, err = p.Execute(ctx, "/ghost", nil)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRegisterMatchRecorder(t *testing.T) {
	var got []string
	RegisterMatchRecorder(func(controller string) { got = append(got, controller) })
	t.Cleanup(func() { RegisterMatchRecorder(nil) })

	p := NewParser(WithLogger(testLogger())).
		Schema(NewSchema().Prefix("/a"), "a").
		Controller("a", func(context.Context, chat.Params) error { return nil })

	_, _ = p.Execute(context.Background(), "/a", nil)
	_, _ = p.Execute(context.Background(), "/b", nil)

	assert.Equal(t, []string{"a", ""}, got)
}
