package ledger

// TamperPreviousHash overwrites the stored link of the block at height,
// bypassing every ledger invariant. Test use only.
func (l *Ledger) TamperPreviousHash(height int64, prev string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.chain[height].PreviousHash = prev
}

// TamperPayload overwrites the stored payload of the block at height.
func (l *Ledger) TamperPayload(height int64, payload string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.chain[height].Payload = []byte(payload)
}
