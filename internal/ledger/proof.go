package ledger

import (
	"encoding/json"
	"strings"
)

// proofKind tags ownership-proof payloads so they can be told apart from any
// other entry appended to the ledger.
const proofKind = "ownershipProof"

// OwnershipProof is the payload of a block accepted through
// SubmitOwnershipProof.
type OwnershipProof struct {
	Kind    string          `json:"kind"`
	Address string          `json:"address"`
	Star    json.RawMessage `json:"star"`
	Message string          `json:"message"`
}

// decodeProof returns the ownership proof carried by b, if any.
func decodeProof(b *Block) (*OwnershipProof, bool) {
	var p OwnershipProof
	if err := json.Unmarshal(b.Payload, &p); err != nil {
		return nil, false
	}
	if p.Kind != proofKind {
		return nil, false
	}
	return &p, true
}

// isProofPayload reports whether raw carries the ownership-proof tag.
func isProofPayload(raw json.RawMessage) bool {
	var tag struct {
		Kind string `json:"kind"`
	}
	return json.Unmarshal(raw, &tag) == nil && tag.Kind == proofKind
}

// DecodeProof extracts the ownership proof from a block returned by the ledger.
func DecodeProof(b *Block) (*OwnershipProof, bool) {
	if b == nil || b.Height == 0 {
		return nil, false
	}
	return decodeProof(b)
}

// sameAddress compares wallet addresses case-insensitively; hex addresses may
// arrive checksummed or lower-cased.
func sameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}
