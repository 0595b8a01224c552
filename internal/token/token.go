// Package token generates the platform's business identifiers: canteen IDs,
// order IDs, the per-day 4-digit pickup codes, and the QR proofs scanned at
// the counter.
package token

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"
)

const idCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Attempt ceilings for the retry-until-unique loops. The 4-digit token
// spaces are small (9000 and 10000 values), so a busy canteen can
// realistically collide; the bounds turn a saturated keyspace into a hard
// error instead of an endless loop.
const (
	CanteenIDAttempts   = 10
	OrderIDAttempts     = 10
	DailyTokenAttempts  = 120
	PickupTokenAttempts = 50
)

// ErrExhausted is returned when a generator runs out of attempts without
// finding an unused value. Callers must surface it, not retry around it.
var ErrExhausted = errors.New("token: exhausted unique-generation attempts")

func randomToken(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = idCharset[rand.IntN(len(idCharset))]
	}
	return string(b)
}

// CanteenID returns a candidate canteen identifier, e.g. "CAN-7Q2XK9TB".
func CanteenID() string {
	return "CAN-" + randomToken(8)
}

// OrderID returns a candidate order identifier, e.g. "ORD-1735719023461-X4B7".
// The timestamp keeps IDs roughly sortable; the suffix disambiguates orders
// placed in the same millisecond.
func OrderID() string {
	return fmt.Sprintf("ORD-%d-%s", time.Now().UnixMilli(), randomToken(4))
}

// DailyToken returns a candidate 4-digit pickup code in [1000, 9999].
// Leading zeros are excluded so the code reads unambiguously when spoken.
func DailyToken() string {
	return strconv.Itoa(1000 + rand.IntN(9000))
}

// PickupToken returns a candidate zero-padded code in [0000, 9999].
func PickupToken() string {
	return fmt.Sprintf("%04d", rand.IntN(10000))
}

// Unique draws candidates from gen until exists reports false, up to
// maxAttempts. The generator stays pure; collision handling against the
// store lives entirely here.
func Unique(ctx context.Context, maxAttempts int, gen func() string, exists func(context.Context, string) (bool, error)) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate := gen()
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrExhausted
}
