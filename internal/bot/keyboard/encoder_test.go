package keyboard_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/himera-dialogs/internal/bot/keyboard"
)

func TestEncodeAction(t *testing.T) {
	tests := []struct {
		name      string
		action    string
		params    map[string]string
		want      string
		wantError bool
	}{
		{
			name:   "without params",
			action: "vote",
			want:   "4:vote",
		},
		{
			name:   "params in key order",
			action: "vote",
			params: map[string]string{"option": "2", "id": "a"},
			want:   "18:vote\x01id:a\x01option:2",
		},
		{
			name:      "empty action",
			action:    "",
			wantError: true,
		},
		{
			name:      "key with separator",
			action:    "vote",
			params:    map[string]string{"a:b": "1"},
			wantError: true,
		},
		{
			name:      "exceeds limit",
			action:    strings.Repeat("x", keyboard.CallbackDataLimitBytes),
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := keyboard.EncodeAction(tt.action, tt.params)
			if tt.wantError {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeAction(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantOK     bool
		wantName   string
		wantParams map[string]string
	}{
		{
			name:       "action with params",
			input:      "18:vote\x01id:a\x01option:2",
			wantOK:     true,
			wantName:   "vote",
			wantParams: map[string]string{"id": "a", "option": "2"},
		},
		{
			name:       "value with colon",
			input:      "12:go\x01time:1:30",
			wantOK:     true,
			wantName:   "go",
			wantParams: map[string]string{"time": "1:30"},
		},
		{
			name:   "length mismatch",
			input:  "5:vote",
			wantOK: false,
		},
		{
			name:   "plain token",
			input:  "aZ09aZ09aZ",
			wantOK: false,
		},
		{
			name:   "non numeric prefix",
			input:  "history:3",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := keyboard.DecodeAction(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}

			assert.Equal(t, tt.wantName, got.Name)
			assert.Equal(t, tt.wantParams, got.Params)
		})
	}
}

func TestUserActionButton(t *testing.T) {
	btn, err := keyboard.UserActionButton(42, "Join", "join", nil)
	require.NoError(t, err)

	action, ok := keyboard.DecodeAction(btn.Data)
	require.True(t, ok)
	assert.Equal(t, "Join", btn.Text)
	assert.Equal(t, "join", action.Name)
	assert.Equal(t, map[string]string{"user_id": "42"}, action.Params)
}
