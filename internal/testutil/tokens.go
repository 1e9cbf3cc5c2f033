// Package testutil provides deterministic helpers for tests: fixed and
// sequential undo tokens, and builders for common edit batches. With these in
// place the same scenario produces a byte-identical edit log on every run,
// which is what golden comparison relies on.
package testutil

import (
	"fmt"
	"sync"
)

// SequentialTokens is a thread-safe undo-token generator that numbers its
// tokens. Unlike the production UUID generator it can be reset, so the same
// scenario can run repeatedly with identical tokens.
type SequentialTokens struct {
	mu     sync.Mutex
	prefix string
	n      int64
}

// NewSequentialTokens creates a generator producing "<prefix>-1",
// "<prefix>-2" and so on. An empty prefix defaults to "token".
func NewSequentialTokens(prefix string) *SequentialTokens {
	if prefix == "" {
		prefix = "token"
	}
	return &SequentialTokens{prefix: prefix}
}

// Next returns the next token in the sequence.
func (s *SequentialTokens) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%d", s.prefix, s.n)
}

// Reset starts the sequence over. After Reset the next token is "<prefix>-1".
func (s *SequentialTokens) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n = 0
}

// FixedTokens always returns the same token. Useful when a scenario performs
// a single undo and the token's exact value should appear in a golden file.
type FixedTokens struct {
	token string
}

// NewFixedTokens creates a generator returning token every time. An empty
// token defaults to "test-token-default".
func NewFixedTokens(token string) *FixedTokens {
	if token == "" {
		token = "test-token-default"
	}
	return &FixedTokens{token: token}
}

// Next returns the fixed token.
func (f *FixedTokens) Next() string {
	return f.token
}
