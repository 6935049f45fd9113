package invex

import "github.com/inodb/scrinvex/internal/genome"

// Window holds the active features of the current chromosome, ordered by
// start. It only moves forward: features leave from the front as the read
// position passes their end and are never re-examined.
type Window struct {
	chrom    genome.ChromID
	features []genome.Feature
}

// NewWindow creates an empty window positioned before any chromosome.
func NewWindow() *Window {
	return &Window{chrom: genome.NoChrom}
}

// Chrom returns the chromosome the window currently covers.
func (w *Window) Chrom() genome.ChromID {
	return w.chrom
}

// Len returns the number of active features.
func (w *Window) Len() int {
	return len(w.features)
}

// Active returns the active features in start order. The slice is owned by
// the window and valid until the next Advance, Load or Drain.
func (w *Window) Active() []genome.Feature {
	return w.features
}

// Load replaces the window with the sorted features of a new chromosome.
// Residual features must be drained by the caller first.
func (w *Window) Load(chrom genome.ChromID, features []genome.Feature) {
	w.chrom = chrom
	w.features = features
}

// Advance removes and returns the longest prefix of active features whose
// end lies before pos. The cost is proportional to the number evicted.
func (w *Window) Advance(pos int64) []genome.Feature {
	n := 0
	for n < len(w.features) && w.features[n].End < pos {
		n++
	}
	evicted := w.features[:n:n]
	w.features = w.features[n:]
	return evicted
}

// Drain removes and returns every active feature.
func (w *Window) Drain() []genome.Feature {
	evicted := w.features
	w.features = nil
	return evicted
}

// Overlapping appends to buf every active feature sharing a base with the
// block. Features are scanned in start order, stopping at the first one that
// starts at or after the block end.
func (w *Window) Overlapping(b genome.AlignedBlock, buf []*genome.Feature) []*genome.Feature {
	for i := range w.features {
		f := &w.features[i]
		if f.Start >= b.End {
			break
		}
		if f.Intersects(b) {
			buf = append(buf, f)
		}
	}
	return buf
}
