package test

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

const asciiLetters = "abcdefghijklmnopqrstuvwxyz0123456789"

var (
	rngMu sync.Mutex
	rng   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// RandomString returns a pseudo-random lowercase string of length n.
func RandomString(n int) string {
	if n <= 0 {
		n = 1
	}
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = asciiLetters[randomIntn(len(asciiLetters))]
	}
	return string(buf)
}

// RandomItemLine returns a valid "login|secret" inventory line.
func RandomItemLine() string {
	return fmt.Sprintf("%s@example.com|%s", RandomString(8), RandomString(12))
}

func randomIntn(n int) int {
	rngMu.Lock()
	defer rngMu.Unlock()
	return rng.Intn(n)
}
