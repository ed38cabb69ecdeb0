// Package epoch issues monotonically increasing generation tokens per key.
//
// An asynchronous operation takes a token when it starts and checks it when it
// completes. Only the holder of the latest token for a key may change state;
// every earlier holder finds its token stale and does nothing.
package epoch

import "sync"

// Token is one generation of a key. The zero Token is never current.
type Token struct {
	Key        string
	Generation uint64
}

// Registry hands out tokens. The zero value is ready to use.
type Registry struct {
	mu   sync.Mutex
	gens map[string]uint64
}

// Next invalidates every outstanding token for key and returns a new one.
func (r *Registry) Next(key string) Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gens == nil {
		r.gens = map[string]uint64{}
	}
	r.gens[key]++
	return Token{Key: key, Generation: r.gens[key]}
}

// Current returns the latest generation issued for key, or 0.
func (r *Registry) Current(key string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gens[key]
}

// IsCurrent reports whether t is the latest token issued for its key.
func (r *Registry) IsCurrent(t Token) bool {
	if t.Generation == 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gens[t.Key] == t.Generation
}

// CompareAndAdvance issues a new token for t's key only if t is still current.
// Callers that must hand the key over to a follow-up operation use it instead
// of a separate IsCurrent and Next.
func (r *Registry) CompareAndAdvance(t Token) (Token, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.Generation == 0 || r.gens[t.Key] != t.Generation {
		return Token{}, false
	}
	r.gens[t.Key]++
	return Token{Key: t.Key, Generation: r.gens[t.Key]}, true
}

// Rename moves the generation counter of from to to. Tokens issued under from
// become stale. If to already has a counter the larger generation wins.
func (r *Registry) Rename(from, to string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	gen, ok := r.gens[from]
	if !ok {
		return
	}
	delete(r.gens, from)
	if gen > r.gens[to] {
		r.gens[to] = gen
	}
}

// Forget drops the counter for key. Outstanding tokens for it become stale.
func (r *Registry) Forget(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.gens, key)
}
