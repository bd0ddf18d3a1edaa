package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jmerrifield20/starledger/internal/challenge"
	"go.uber.org/zap"
)

// Ledger is an in-memory, thread-safe, append-only chain of blocks.
//
// The zero value is ready to use; the genesis block is seeded on first use.
// New is preferred since it seeds genesis eagerly and accepts options.
type Ledger struct {
	init sync.Once

	mu    sync.RWMutex
	chain []*Block
	index map[string]int64 // block hash -> height

	challenges *challenge.Challenger
	now        func() time.Time
	logger     *zap.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces time.Now for block timestamps and challenge window checks.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithChallenger sets the challenge verifier used by SubmitOwnershipProof.
func WithChallenger(c *challenge.Challenger) Option {
	return func(l *Ledger) { l.challenges = c }
}

// New creates a Ledger and seeds its genesis block before returning.
func New(logger *zap.Logger, opts ...Option) *Ledger {
	l := &Ledger{logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	l.ensureGenesis()
	return l
}

// ensureGenesis runs exactly once; concurrent callers wait for it to finish.
func (l *Ledger) ensureGenesis() {
	l.init.Do(func() {
		if l.logger == nil {
			l.logger = zap.NewNop()
		}
		if l.now == nil {
			l.now = time.Now
		}
		if l.challenges == nil {
			l.challenges = challenge.New(challenge.WithClock(l.now))
		}

		raw, _ := encodePayload(GenesisPayload)
		genesis := seal(raw, nil, l.now())

		l.mu.Lock()
		l.chain = []*Block{genesis}
		l.index = map[string]int64{genesis.Hash: 0}
		l.mu.Unlock()

		l.logger.Info("ledger initialised", zap.String("genesis_hash", genesis.Hash))
	})
}

// lastBlock returns the chain tip. Callers must hold mu.
func (l *Ledger) lastBlock() *Block {
	if len(l.chain) == 0 {
		return nil
	}
	return l.chain[len(l.chain)-1]
}

// AppendEntry seals payload into a new block and commits it only if the whole
// chain, including the new block, validates. On failure it returns a
// *ChainIntegrityError and the ledger is left untouched. Payloads tagged as
// ownership proofs are refused with ErrReservedPayload.
func (l *Ledger) AppendEntry(ctx context.Context, payload any) (*Block, error) {
	l.ensureGenesis()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}
	if isProofPayload(raw) {
		l.logger.Info("append rejected: ownership proofs must go through SubmitOwnershipProof")
		return nil, ErrReservedPayload
	}
	return l.appendEntry(raw)
}

// appendEntry seals and commits an already encoded payload.
func (l *Ledger) appendEntry(raw json.RawMessage) (*Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	candidate := seal(raw, l.lastBlock(), l.now())

	tentative := make([]*Block, len(l.chain), len(l.chain)+1)
	copy(tentative, l.chain)
	tentative = append(tentative, candidate)

	if problems := validate(tentative); len(problems) > 0 {
		l.logger.Error("append rejected: chain integrity check failed",
			zap.Int64("height", candidate.Height),
			zap.Strings("problems", problems),
		)
		return nil, &ChainIntegrityError{Details: problems}
	}

	l.chain = tentative
	l.index[candidate.Hash] = candidate.Height

	l.logger.Debug("block appended",
		zap.Int64("height", candidate.Height),
		zap.String("hash", candidate.Hash),
	)
	return candidate.clone(), nil
}

// SubmitOwnershipProof appends a star claim after checking that message is
// inside the validation window and was signed by address.
func (l *Ledger) SubmitOwnershipProof(ctx context.Context, address, message, signature string, claimData any) (*Block, error) {
	l.ensureGenesis()

	now := l.now().Unix()
	if !l.challenges.CheckWindow(message, now) {
		l.logger.Info("ownership proof rejected: challenge expired",
			zap.String("address", address),
			zap.String("message", message),
		)
		return nil, ErrExpiredChallenge
	}

	if !l.challenges.VerifySignature(message, address, signature) {
		l.logger.Info("ownership proof rejected: invalid signature", zap.String("address", address))
		return nil, ErrInvalidSignature
	}

	// A valid signature over somebody else's challenge proves nothing about address.
	m, err := challenge.ParseMessage(message)
	if err != nil || !sameAddress(m.Address, address) {
		l.logger.Info("ownership proof rejected: challenge issued for another address",
			zap.String("address", address),
		)
		return nil, ErrInvalidSignature
	}

	star, err := encodePayload(claimData)
	if err != nil {
		return nil, err
	}
	raw, err := encodePayload(OwnershipProof{
		Kind:    proofKind,
		Address: address,
		Star:    star,
		Message: message,
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.appendEntry(raw)
}

// ValidateChain re-derives every block hash and link and returns every problem
// found in ascending height order. An empty result means the chain is intact.
func (l *Ledger) ValidateChain() []string {
	l.ensureGenesis()
	l.mu.RLock()
	defer l.mu.RUnlock()
	return validate(l.chain)
}

func validate(chain []*Block) []string {
	var problems []string
	for i, b := range chain {
		if b.Height != int64(i) {
			problems = append(problems, fmt.Sprintf("block %d height mismatch", i))
		}
		if b.Hash != b.ComputeHash() {
			problems = append(problems, fmt.Sprintf("block %d hash mismatch", i))
		}
		if i == 0 {
			if b.PreviousHash != NullHash {
				problems = append(problems, "block 0 previous hash is not null")
			}
			continue
		}
		if b.PreviousHash != chain[i-1].Hash {
			problems = append(problems, fmt.Sprintf("block %d broken link", i))
		}
	}
	return problems
}

// Height returns the height of the chain tip.
func (l *Ledger) Height() int64 {
	l.ensureGenesis()
	l.mu.RLock()
	defer l.mu.RUnlock()
	return int64(len(l.chain)) - 1
}

// LastBlock returns a copy of the chain tip.
func (l *Ledger) LastBlock() *Block {
	l.ensureGenesis()
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastBlock().clone()
}

// GetByHeight returns the block at height. ok is false when height is outside
// [0, Height()].
func (l *Ledger) GetByHeight(height int64) (*Block, bool) {
	l.ensureGenesis()
	l.mu.RLock()
	defer l.mu.RUnlock()
	if height < 0 || height >= int64(len(l.chain)) {
		return nil, false
	}
	return l.chain[height].clone(), true
}

// GetByHash returns the block whose hash is hash.
func (l *Ledger) GetByHash(hash string) (*Block, bool) {
	l.ensureGenesis()
	l.mu.RLock()
	defer l.mu.RUnlock()
	if h, ok := l.index[hash]; ok && h < int64(len(l.chain)) && l.chain[h].Hash == hash {
		return l.chain[h].clone(), true
	}
	return nil, false
}

// GetProofsByAddress returns the claim data of every ownership proof submitted
// for address, oldest first. The genesis block is never included.
func (l *Ledger) GetProofsByAddress(address string) []json.RawMessage {
	blocks := l.BlocksByAddress(address)
	out := make([]json.RawMessage, 0, len(blocks))
	for _, b := range blocks {
		p, _ := decodeProof(b)
		out = append(out, p.Star)
	}
	return out
}

// BlocksByAddress returns copies of the blocks carrying ownership proofs for
// address, oldest first.
func (l *Ledger) BlocksByAddress(address string) []*Block {
	l.ensureGenesis()
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*Block
	for _, b := range l.chain[1:] {
		p, ok := decodeProof(b)
		if !ok || !sameAddress(p.Address, address) {
			continue
		}
		out = append(out, b.clone())
	}
	return out
}
