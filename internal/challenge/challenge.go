// Package challenge issues and checks the time-bounded messages a wallet holder
// signs to prove ownership of an address before a star is registered.
//
// A challenge message has the form
//
//	{address}:{unixSeconds}:starRegistry
//
// and is not stored server-side: the issue time travels inside the message
// itself and is checked against the validation window on submission.
package challenge

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Purpose is the fixed third field of every challenge message.
const Purpose = "starRegistry"

// DefaultWindow is how long a challenge stays valid after it was issued.
const DefaultWindow = 300 * time.Second

// ErrMalformedMessage is returned by ParseMessage for anything that is not a
// well-formed challenge string.
var ErrMalformedMessage = errors.New("malformed challenge message")

// Message is a parsed challenge string.
type Message struct {
	Address   string
	Timestamp int64
	Purpose   string
}

// ValidationRequest describes an issued challenge and how long it remains valid.
type ValidationRequest struct {
	WalletAddress    string `json:"walletAddress"`
	RequestTimeStamp int64  `json:"requestTimeStamp"`
	Message          string `json:"message"`
	ValidationWindow int64  `json:"validationWindow"` // seconds remaining; 0 once expired
}

// Challenger issues challenge messages and verifies signed ones.
// The zero value is not usable; construct with New.
type Challenger struct {
	window time.Duration
	now    func() time.Time
}

// Option configures a Challenger.
type Option func(*Challenger)

// WithWindow overrides DefaultWindow. Non-positive values are ignored.
func WithWindow(d time.Duration) Option {
	return func(c *Challenger) {
		if d > 0 {
			c.window = d
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Challenger) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a Challenger.
func New(opts ...Option) *Challenger {
	c := &Challenger{window: DefaultWindow, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Window returns the configured validation window.
func (c *Challenger) Window() time.Duration { return c.window }

// Now returns the current time according to the Challenger's clock.
func (c *Challenger) Now() time.Time { return c.now() }

// Issue returns a fresh challenge message for address.
func (c *Challenger) Issue(address string) string {
	return format(address, c.now().Unix())
}

// Request issues a challenge for address and describes it.
func (c *Challenger) Request(address string) ValidationRequest {
	now := c.now().Unix()
	return ValidationRequest{
		WalletAddress:    address,
		RequestTimeStamp: now,
		Message:          format(address, now),
		ValidationWindow: int64(c.window / time.Second),
	}
}

// Describe reports the state of an already issued message at nowSeconds.
func (c *Challenger) Describe(message string, nowSeconds int64) (ValidationRequest, error) {
	m, err := ParseMessage(message)
	if err != nil {
		return ValidationRequest{}, err
	}
	var remaining int64
	if earliest := c.earliest(nowSeconds); m.Timestamp >= earliest {
		remaining = m.Timestamp - earliest
	}
	return ValidationRequest{
		WalletAddress:    m.Address,
		RequestTimeStamp: m.Timestamp,
		Message:          message,
		ValidationWindow: remaining,
	}, nil
}

// CheckWindow reports whether message was issued no more than the validation
// window before nowSeconds. Malformed messages never pass.
func (c *Challenger) CheckWindow(message string, nowSeconds int64) bool {
	m, err := ParseMessage(message)
	if err != nil {
		return false
	}
	return m.Timestamp >= c.earliest(nowSeconds)
}

// earliest is the oldest issue time still inside the window at nowSeconds.
// Comparing timestamps against it avoids overflowing now - ts for extreme
// embedded values.
func (c *Challenger) earliest(nowSeconds int64) int64 {
	return nowSeconds - int64(c.window/time.Second)
}

// VerifySignature reports whether signature is a valid message signature of
// message produced by the key behind address. It never panics and returns
// false for any malformed input.
func (c *Challenger) VerifySignature(message, address, signature string) bool {
	return VerifySignature(message, address, signature)
}

func format(address string, ts int64) string {
	return fmt.Sprintf("%s:%d:%s", address, ts, Purpose)
}

// ParseMessage splits a challenge string into its fields.
func ParseMessage(message string) (*Message, error) {
	parts := strings.Split(message, ":")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 fields, got %d", ErrMalformedMessage, len(parts))
	}
	if parts[0] == "" {
		return nil, fmt.Errorf("%w: empty address", ErrMalformedMessage)
	}
	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp %q", ErrMalformedMessage, parts[1])
	}
	if parts[2] != Purpose {
		return nil, fmt.Errorf("%w: unknown purpose %q", ErrMalformedMessage, parts[2])
	}
	return &Message{Address: parts[0], Timestamp: ts, Purpose: parts[2]}, nil
}

// VerifySignature recovers the signer of message from a 65-byte hex-encoded
// r||s||v signature over the wallet text hash and compares it to address.
func VerifySignature(message, address, signature string) bool {
	if !common.IsHexAddress(address) {
		return false
	}
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return false
	}
	// Wallets emit v as 27/28; recovery expects 0/1.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return false
	}
	return crypto.PubkeyToAddress(*pub) == common.HexToAddress(address)
}

// Sign signs message with key the way a wallet's personal_sign does and returns
// the hex-encoded signature.
func Sign(message string, key *ecdsa.PrivateKey) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		return "", fmt.Errorf("sign message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// AddressOf returns the checksummed address for key.
func AddressOf(key *ecdsa.PrivateKey) string {
	return crypto.PubkeyToAddress(key.PublicKey).Hex()
}
