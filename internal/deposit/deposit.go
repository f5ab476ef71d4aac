// Package deposit implements the pending-deposit lifecycle: amount
// disambiguation, the dual in-memory/durable store, and the status state
// machine (pending -> matched | expired, both terminal).
package deposit

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Status of a pending deposit. Matched and Expired are terminal.
type Status string

const (
	StatusPending Status = "pending"
	StatusMatched Status = "matched"
	StatusExpired Status = "expired"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool { return s == StatusMatched || s == StatusExpired }

var (
	// ErrInvalidAmount is returned for top-up requests below MinAmount.
	ErrInvalidAmount = errors.New("amount below minimum")
	// ErrDuplicateCode means a unique code was inserted twice; with
	// timestamp-based codes this is a programming-invariant violation.
	ErrDuplicateCode = errors.New("duplicate unique code")
	// ErrNotFound means no pending deposit exists under that code.
	ErrNotFound = errors.New("deposit not found")
	// ErrTerminalStatus means a transition was attempted on an already
	// matched or expired deposit.
	ErrTerminalStatus = errors.New("deposit already in terminal status")
)

// DefaultMinAmount and DefaultMaxSurcharge mirror the provider flow: top-ups
// start at Rp 1.000 and the disambiguating surcharge stays within Rp 300.
const (
	DefaultMinAmount    int64 = 1000
	DefaultMaxSurcharge int64 = 300
)

// PendingDeposit is the central entity: one QR invoice awaiting settlement.
// All fields except Status and QRMessageID are immutable after creation.
type PendingDeposit struct {
	UniqueCode        string
	UserID            int64
	RequestedAmount   int64
	ExpectedAmount    int64 // requested + surcharge; the value watched for in the feed
	CreatedAtMillis   int64
	Status            Status
	QRMessageID       int64  // chat message showing the QR; 0 when unknown
	ProviderDepositID string // informational only, matching is by amount
}

// Age of the deposit at now.
func (d PendingDeposit) Age(now time.Time) time.Duration {
	return time.Duration(now.UnixMilli()-d.CreatedAtMillis) * time.Millisecond
}

// Disambiguator derives unique expected-payment amounts. The feed reports
// amounts only, so concurrent deposits of the same round figure are told
// apart by a small random surcharge. Collisions are possible (~1/MaxSurcharge
// per concurrent pair) and are deliberately not defended against; matching is
// first-hit-wins.
type Disambiguator struct {
	MinAmount    int64
	MaxSurcharge int64
}

// Disambiguate returns requested plus a surcharge drawn uniformly from
// [1, MaxSurcharge]. Requests below MinAmount fail with ErrInvalidAmount.
func (g Disambiguator) Disambiguate(requested int64) (int64, error) {
	min := g.MinAmount
	if min <= 0 {
		min = DefaultMinAmount
	}
	max := g.MaxSurcharge
	if max <= 0 {
		max = DefaultMaxSurcharge
	}
	if requested < min {
		return 0, fmt.Errorf("%w: got %d, minimum %d", ErrInvalidAmount, requested, min)
	}
	return requested + 1 + rand.Int63n(max), nil
}

// NewUniqueCode builds the store key for a user's deposit. Millisecond
// timestamps keep codes unique per user as long as a user cannot submit two
// top-ups within the same millisecond.
func NewUniqueCode(userID int64) string {
	return fmt.Sprintf("user-%d-%d", userID, time.Now().UnixMilli())
}

// Rupiah renders a minor-unit amount with thousands separators: 1500000 ->
// "1,500,000".
func Rupiah(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg, s = true, s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
