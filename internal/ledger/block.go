package ledger

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// NullHash is the PreviousHash of the genesis block.
const NullHash = ""

// GenesisPayload is the fixed payload sealed into the genesis block.
const GenesisPayload = "First block in the chain - Genesis block"

// Block is a single sealed record in the ledger.
type Block struct {
	Height       int64           `json:"height"`
	Timestamp    int64           `json:"time"`
	PreviousHash string          `json:"previousBlockHash"`
	Hash         string          `json:"hash"`
	Payload      json.RawMessage `json:"body"`
}

// MarshalJSON renders the genesis block's null link as JSON null.
func (b Block) MarshalJSON() ([]byte, error) {
	type alias Block
	out := struct {
		alias
		PreviousHash *string `json:"previousBlockHash"`
	}{alias: alias(b)}
	if b.PreviousHash != NullHash {
		out.PreviousHash = &b.PreviousHash
	}
	return json.Marshal(out)
}

// ComputeHash derives the block's content hash from its stored fields.
// The canonical form is height|timestamp|previousHash|payload.
func (b *Block) ComputeHash() string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%d|%s|", b.Height, b.Timestamp, b.PreviousHash)
	h.Write(b.Payload)
	return hex.EncodeToString(h.Sum(nil))
}

// clone returns a deep copy so callers can never reach ledger-owned memory.
func (b *Block) clone() *Block {
	cp := *b
	cp.Payload = bytes.Clone(b.Payload)
	return &cp
}

// encodePayload produces the canonical JSON encoding of payload.
// encoding/json emits struct fields in declaration order and map keys sorted,
// which is what makes the hash reproducible.
func encodePayload(payload any) (json.RawMessage, error) {
	if raw, ok := payload.(json.RawMessage); ok {
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncodePayload, err)
		}
		return buf.Bytes(), nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodePayload, err)
	}
	return b, nil
}

// seal builds a block on top of prev (nil for genesis) and computes its hash.
func seal(payload json.RawMessage, prev *Block, now time.Time) *Block {
	b := &Block{
		Height:       0,
		Timestamp:    now.Unix(),
		PreviousHash: NullHash,
		Payload:      payload,
	}
	if prev != nil {
		b.Height = prev.Height + 1
		b.PreviousHash = prev.Hash
	}
	b.Hash = b.ComputeHash()
	return b
}
