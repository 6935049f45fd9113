package genome

import (
	"errors"
	"strings"
)

// ErrNoSharedContigs is returned when the annotation and the alignments
// have no chromosome name in common.
var ErrNoSharedContigs = errors.New("alignments share no contigs with annotation")

// ChromID is a compact chromosome identifier assigned by a ChromosomeIndex.
type ChromID int32

// NoChrom is the zero-state chromosome used before any alignment is seen.
const NoChrom ChromID = -1

// ChromosomeIndex interns contig names to ChromIDs.
type ChromosomeIndex struct {
	stripChr bool
	ids      map[string]ChromID
	names    []string
}

// NewChromosomeIndex creates an empty index. With stripChr set, a leading
// "chr" is ignored so that "chr1" and "1" map to the same id.
func NewChromosomeIndex(stripChr bool) *ChromosomeIndex {
	return &ChromosomeIndex{
		stripChr: stripChr,
		ids:      make(map[string]ChromID),
	}
}

func (c *ChromosomeIndex) key(name string) string {
	if c.stripChr {
		return NormalizeChrom(name)
	}
	return name
}

// Intern returns the id for name, assigning a new one if needed.
func (c *ChromosomeIndex) Intern(name string) ChromID {
	k := c.key(name)
	if id, ok := c.ids[k]; ok {
		return id
	}
	id := ChromID(len(c.names))
	c.ids[k] = id
	c.names = append(c.names, name)
	return id
}

// Lookup returns the id for name without assigning one.
func (c *ChromosomeIndex) Lookup(name string) (ChromID, bool) {
	id, ok := c.ids[c.key(name)]
	return id, ok
}

// Name returns the name the id was first interned with.
func (c *ChromosomeIndex) Name(id ChromID) string {
	if id < 0 || int(id) >= len(c.names) {
		return ""
	}
	return c.names[id]
}

// Len returns the number of interned contigs.
func (c *ChromosomeIndex) Len() int {
	return len(c.names)
}

// NormalizeChrom removes a "chr" prefix from a chromosome name.
func NormalizeChrom(chrom string) string {
	return strings.TrimPrefix(chrom, "chr")
}
