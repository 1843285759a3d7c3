// Package auth implements the rolling shared-secret key check that gates
// the action endpoints.
//
// The secret for a given moment is the hex SHA-256 digest of the decimal
// string of the current window number, where a window is two seconds of
// wall-clock time. A key is admitted if it matches the digest for the
// current window or the one before it, which absorbs clock and network
// skew between the paired controller and this server while keeping each
// key valid for at most about four seconds.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"time"
)

// WindowSeconds is the length of one secret window.
const WindowSeconds = 2

// MaxShift is how many windows back a key is still accepted.
const MaxShift = 1

// Clock supplies the current time. Production code uses RealClock; tests
// use FixedClock.
type Clock interface {
	Now() time.Time
}

// RealClock returns a Clock backed by time.Now.
func RealClock() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// FixedClock always reports the same instant.
type FixedClock time.Time

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return time.Time(c) }

// Window returns the window number containing t. Division floors, so
// instants before the epoch land in negative windows.
func Window(t time.Time) int64 {
	sec := t.Unix()
	w := sec / WindowSeconds
	if sec%WindowSeconds < 0 {
		w--
	}
	return w
}

// Digest returns the key for window w.
func Digest(w int64) string {
	sum := sha256.Sum256([]byte(strconv.FormatInt(w, 10)))
	return hex.EncodeToString(sum[:])
}

// Token returns the key a controller should present at instant now.
func Token(now time.Time) string {
	return Digest(Window(now))
}

// Validator decides whether a presented key proves knowledge of the
// current secret. It holds no mutable state and is safe for concurrent use.
type Validator struct {
	clock Clock
}

// NewValidator creates a validator reading time from clock. A nil clock
// means the real clock.
func NewValidator(clock Clock) *Validator {
	if clock == nil {
		clock = RealClock()
	}
	return &Validator{clock: clock}
}

// Check validates key against the validator's clock.
func (v *Validator) Check(key string) bool {
	return v.Valid(key, v.clock.Now())
}

// Valid reports whether key matches the digest of the window containing
// now or the window immediately before it. Empty or malformed keys simply
// do not match.
func (v *Validator) Valid(key string, now time.Time) bool {
	if key == "" {
		return false
	}

	w := Window(now)
	matched := 0
	for shift := int64(0); shift <= MaxShift; shift++ {
		matched |= subtle.ConstantTimeCompare([]byte(key), []byte(Digest(w-shift)))
	}
	return matched == 1
}
