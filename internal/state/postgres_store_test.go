package state

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainment(t *testing.T) {
	testCases := []struct {
		name   string
		filter Filter
		want   string
	}{
		{name: "empty", filter: nil, want: `{}`},
		{name: "top level", filter: Filter{"message_id": 42}, want: `{"message_id":42}`},
		{name: "dotted", filter: Filter{"user.id": int64(7)}, want: `{"user":{"id":7}}`},
		{
			name:   "shared parent",
			filter: Filter{"user.id": 7, "user.name": "ann", "name": "poll"},
			want:   `{"name":"poll","user":{"id":7,"name":"ann"}}`,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := containment(tc.filter)
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, got)
		})
	}
}

func TestUpdatePatch(t *testing.T) {
	setNow(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	patch, err := updatePatch(Fields{"message_id": 3, FieldID: "x", FieldChatID: 1, "next": map[string]any{}})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(patch), &got))

	assert.Equal(t, float64(3), got["message_id"])
	assert.Equal(t, map[string]any{}, got["next"])
	assert.Equal(t, "2026-01-02T03:04:05Z", got[FieldUpdatedAt])
	assert.NotContains(t, got, FieldID)
	assert.NotContains(t, got, FieldChatID)
}
