package registry

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

// codeAlphabet is the uppercase alphanumeric alphabet codes are drawn from.
// 36^6 gives roughly 2.1e9 possible codes, so collisions among the handful
// of concurrently pending annotations are rare; the store's duplicate check
// plus a bounded retry covers the rest.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CodeLength is the number of characters in an annotation code.
const CodeLength = 6

// NewCode produces a human-typable code from the injected randomness source.
// The generator is stateless and makes no uniqueness guarantee; uniqueness
// is enforced by the store.
func NewCode(rnd *rand.Rand) string {
	var b strings.Builder
	b.Grow(CodeLength)
	for i := 0; i < CodeLength; i++ {
		b.WriteByte(codeAlphabet[rnd.Intn(len(codeAlphabet))])
	}
	return b.String()
}

// defaultCodeSource wraps a seeded rand behind a mutex so concurrent webhook
// handlers can mint codes without a shared-state race.
func defaultCodeSource() func() string {
	var mu sync.Mutex
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		return NewCode(rnd)
	}
}
