package ledger

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExpiredChallenge means the signed challenge is older than the
	// validation window (or malformed). The caller should request a new one.
	ErrExpiredChallenge = errors.New("challenge expired; request a new one")

	// ErrInvalidSignature means the signature does not prove control of the
	// claimed address for the given message.
	ErrInvalidSignature = errors.New("invalid signature for address")

	// ErrReservedPayload is returned by AppendEntry for payloads tagged as
	// ownership proofs; those are only accepted via SubmitOwnershipProof.
	ErrReservedPayload = errors.New("payload kind is reserved for ownership proofs")

	// ErrEncodePayload wraps payloads that cannot be JSON-encoded.
	ErrEncodePayload = errors.New("encode payload")
)

// ChainIntegrityError is returned when the tentative chain fails full
// validation. The candidate block was discarded and the ledger is unchanged.
type ChainIntegrityError struct {
	Details []string
}

func (e *ChainIntegrityError) Error() string {
	return fmt.Sprintf("chain integrity check failed: %s", strings.Join(e.Details, "; "))
}
