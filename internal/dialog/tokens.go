package dialog

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/Proton-105/himera-dialogs/internal/chat"
)

const (
	// DefaultTokenLength gives 62^10 (about 8.4e17) possible tokens. For n
	// buttons on one message the chance of any collision is below
	// n*n / (2 * 62^10), about 6e-15 for 100 buttons. Collisions within a
	// message are retried anyway; tokens only need to be unique per message
	// because callbacks are resolved against the state tracking that message.
	DefaultTokenLength = 10

	tokenAlphabet     = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	maxTokenCollision = 8
)

// TokenSource issues opaque callback tokens.
type TokenSource interface {
	Token() (string, error)
}

// RandomTokens draws fixed-length base62 tokens from crypto/rand.
type RandomTokens struct {
	Length int
}

func (r RandomTokens) Token() (string, error) {
	n := r.Length
	if n <= 0 {
		n = DefaultTokenLength
	}

	limit := big.NewInt(int64(len(tokenAlphabet)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate token: %w", err)
		}
		buf[i] = tokenAlphabet[idx.Int64()]
	}

	return string(buf), nil
}

// Choice declares one inline button. A Choice with a URL opens the link and
// has no transition; otherwise pressing it moves to Phase with Params merged
// into the conversation params.
type Choice struct {
	Text     string
	Phase    string
	URL      string
	Params   chat.Params
	NumInRow int
	Group    string
}

// EncodeChoices assigns a fresh token to every callback choice. It returns
// the buttons laid out by NumInRow and the callback map keyed by token.
func EncodeChoices(choices []Choice, tokens TokenSource) ([]EncodedChoice, map[string]Target, error) {
	if tokens == nil {
		return nil, nil, errors.New("encode choices: nil token source")
	}

	encoded := make([]EncodedChoice, 0, len(choices))
	callback := make(map[string]Target, len(choices))

	for _, choice := range choices {
		button := chat.Button{Text: choice.Text, URL: choice.URL}
		if choice.URL == "" {
			token, err := uniqueToken(tokens, callback)
			if err != nil {
				return nil, nil, err
			}
			button.Data = token
			callback[token] = Target{Phase: choice.Phase, Params: choice.Params}
		}
		encoded = append(encoded, EncodedChoice{Choice: choice, Button: button})
	}

	return encoded, callback, nil
}

// EncodedChoice pairs a declared choice with its wire button.
type EncodedChoice struct {
	Choice Choice
	Button chat.Button
}

func uniqueToken(tokens TokenSource, taken map[string]Target) (string, error) {
	for attempt := 0; attempt < maxTokenCollision; attempt++ {
		token, err := tokens.Token()
		if err != nil {
			return "", err
		}
		if _, dup := taken[token]; !dup && token != DefaultRoute {
			return token, nil
		}
	}

	return "", fmt.Errorf("encode choices: no unique token after %d attempts", maxTokenCollision)
}
