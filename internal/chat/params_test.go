package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParams_Merge(t *testing.T) {
	base := Params{"a": 1, "b": "x"}
	merged := base.Merge(Params{"b": "y"}, nil, Params{"c": true})

	assert.Equal(t, Params{"a": 1, "b": "y", "c": true}, merged)
	assert.Equal(t, Params{"a": 1, "b": "x"}, base, "receiver must stay untouched")
}

func TestParams_MergeNilReceiver(t *testing.T) {
	var p Params
	assert.Equal(t, Params{"k": "v"}, p.Merge(Params{"k": "v"}))
}

func TestParams_Without(t *testing.T) {
	p := Params{"dialog": "feedback", "phase": "rate", "score": 5}
	assert.Equal(t, Params{"score": 5}, p.Without("dialog", "phase"))
	assert.Len(t, p, 3)
}

func TestParams_Decode(t *testing.T) {
	var out struct {
		Amount  int    `json:"amount"`
		Comment string `json:"comment"`
		Ratio   float64
	}

	err := Params{"amount": float64(12), "comment": "ok", "Ratio": "0.5"}.Decode(&out)
	require.NoError(t, err)

	assert.Equal(t, 12, out.Amount)
	assert.Equal(t, "ok", out.Comment)
	assert.InDelta(t, 0.5, out.Ratio, 1e-9)
}

func TestUpdate_Helpers(t *testing.T) {
	u := &Update{Kind: KindMessage, Sender: &User{ID: 7}, Subtypes: []string{SubtypePhoto, SubtypeText}}

	assert.True(t, u.IsMessage())
	assert.False(t, u.IsCallback())
	assert.Equal(t, int64(7), u.SenderID())
	assert.True(t, u.HasSubtype(SubtypeText))
	assert.False(t, u.HasSubtype(SubtypeVoice))

	var empty *Update
	assert.Equal(t, int64(0), empty.SenderID())
}
