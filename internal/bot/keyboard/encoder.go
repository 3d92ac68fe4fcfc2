package keyboard

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/Proton-105/himera-dialogs/internal/chat"
)

const (
	CallbackDataLimitBytes = 64

	actionParamSeparator = "\x01"
	actionKeySeparator   = ":"
)

// Action is a named button action with string parameters.
type Action struct {
	Name   string
	Params map[string]string
}

// EncodeAction packs an action into callback data as
// "<n>:<name>\x01key:value..." where n is the byte length of everything
// after the first colon. Parameters are written in key order.
func EncodeAction(name string, params map[string]string) (string, error) {
	if name == "" {
		return "", errors.New("action name is empty")
	}
	if strings.Contains(name, actionParamSeparator) {
		return "", fmt.Errorf("action name %q contains a separator", name)
	}

	var b strings.Builder
	b.WriteString(name)

	keys := lo.Keys(params)
	slices.Sort(keys)
	for _, key := range keys {
		value := params[key]
		if key == "" || strings.Contains(key, actionKeySeparator) || strings.Contains(key+value, actionParamSeparator) {
			return "", fmt.Errorf("action parameter %q cannot be encoded", key)
		}
		b.WriteString(actionParamSeparator)
		b.WriteString(key)
		b.WriteString(actionKeySeparator)
		b.WriteString(value)
	}

	body := b.String()
	payload := strconv.Itoa(len(body)) + actionKeySeparator + body
	if len(payload) > CallbackDataLimitBytes {
		return "", fmt.Errorf("callback data exceeds %d byte limit: got %d", CallbackDataLimitBytes, len(payload))
	}

	return payload, nil
}

// DecodeAction unpacks data produced by EncodeAction. It reports false for
// any other callback data, including payloads whose length prefix does not match.
func DecodeAction(data string) (Action, bool) {
	head, body, found := strings.Cut(data, actionKeySeparator)
	if !found {
		return Action{}, false
	}

	n, err := strconv.Atoi(head)
	if err != nil || n != len(body) {
		return Action{}, false
	}

	parts := strings.Split(body, actionParamSeparator)
	action := Action{Name: parts[0], Params: make(map[string]string, len(parts)-1)}
	for _, part := range parts[1:] {
		key, value, _ := strings.Cut(part, actionKeySeparator)
		action.Params[key] = value
	}

	return action, action.Name != ""
}

// ActionButton builds a callback button carrying an encoded action.
func ActionButton(text, name string, params map[string]string) (chat.Button, error) {
	data, err := EncodeAction(name, params)
	if err != nil {
		return chat.Button{}, err
	}

	return chat.Button{Text: text, Data: data}, nil
}

// UserActionButton is ActionButton with the user id added under "user_id".
func UserActionButton(userID int64, text, name string, params map[string]string) (chat.Button, error) {
	withUser := lo.Assign(params, map[string]string{"user_id": strconv.FormatInt(userID, 10)})
	return ActionButton(text, name, withUser)
}
