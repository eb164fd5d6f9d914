package maps

// Ledger is the set of place identifiers seen during one crawl run. It is not
// synchronised: a Session owns its ledger and drives it from one goroutine.
type Ledger struct {
	seen map[string]struct{}
}

// NewLedger creates an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{seen: make(map[string]struct{})}
}

// Add returns true if id was newly added, false if already present.
func (l *Ledger) Add(id string) bool {
	if _, exists := l.seen[id]; exists {
		return false
	}
	l.seen[id] = struct{}{}
	return true
}

// Len returns the number of unique identifiers tracked.
func (l *Ledger) Len() int {
	return len(l.seen)
}
