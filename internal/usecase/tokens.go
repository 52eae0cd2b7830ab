package usecase

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter sizes conversation history so it can be reset before it
// outgrows the model's context. Encoder init is lazy; when the BPE data is
// unavailable we fall back to a bytes/4 estimate rather than failing chat.
type TokenCounter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

func NewTokenCounter() *TokenCounter { return &TokenCounter{} }

func (t *TokenCounter) Count(text string) int {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			t.enc = enc
		}
	})
	if t.enc == nil {
		return len(text) / 4
	}
	return len(t.enc.Encode(text, nil, nil))
}
