package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Proton-105/himera-dialogs/internal/chat"
	"github.com/Proton-105/himera-dialogs/internal/command"
)

type sumParams struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

type repeatParams struct {
	Text  string `json:"text"`
	Times int    `json:"times"`
}

const maxRepeat = 10

// newDemoParser understands a few free-form commands:
//
//	sum 2 3.5
//	repeat hello world x 3
//	echo [text]
func newDemoParser(messenger chat.Messenger, opts ...command.Option) *command.Parser {
	reply := func(ctx context.Context, text string) error {
		upd := chat.UpdateFromContext(ctx)
		if upd == nil {
			return nil
		}
		_, err := messenger.Send(ctx, upd.ChatID, text, nil)
		return err
	}

	return command.NewParser(opts...).
		Schema(command.NewSchema().Prefix("sum").Number("a").Number("b"), "sum").
		Schema(command.NewSchema().Prefix("repeat").Text("text").Prefix("x").Number("times"), "repeat").
		Schema(command.NewSchema().Prefix("echo").Text("text", command.Optional()), "echo").
		Controller("sum", func(ctx context.Context, params chat.Params) error {
			var p sumParams
			if err := params.Decode(&p); err != nil {
				return err
			}
			return reply(ctx, formatNumber(p.A+p.B))
		}).
		Controller("repeat", func(ctx context.Context, params chat.Params) error {
			var p repeatParams
			if err := params.Decode(&p); err != nil {
				return err
			}
			if p.Times < 1 || p.Times > maxRepeat {
				return reply(ctx, fmt.Sprintf("Можно повторить от 1 до %d раз.", maxRepeat))
			}
			return reply(ctx, strings.TrimSpace(strings.Repeat(p.Text+" ", p.Times)))
		}).
		Controller("echo", func(ctx context.Context, params chat.Params) error {
			text := params.String("text")
			if text == "" {
				text = "…"
			}
			return reply(ctx, text)
		})
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
