package invex

// Ledger records, per resident gene, the UMIs already credited to it. Entries
// live only while the gene is in the window.
type Ledger struct {
	seen map[string]map[string]struct{}
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{seen: make(map[string]map[string]struct{})}
}

// Seen returns true if umi has already been credited to the gene.
func (l *Ledger) Seen(geneID, umi string) bool {
	_, ok := l.seen[geneID][umi]
	return ok
}

// MarkSeen records umi for the gene. Repeated calls are no-ops.
func (l *Ledger) MarkSeen(geneID, umi string) {
	umis, ok := l.seen[geneID]
	if !ok {
		umis = make(map[string]struct{})
		l.seen[geneID] = umis
	}
	umis[umi] = struct{}{}
}

// Evict drops all state for the gene. Unknown genes are ignored.
func (l *Ledger) Evict(geneID string) {
	delete(l.seen, geneID)
}

// Len returns the number of genes with ledger entries.
func (l *Ledger) Len() int {
	return len(l.seen)
}
