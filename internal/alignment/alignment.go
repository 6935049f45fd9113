// Package alignment reads SAM/BAM records into the form the counter consumes.
package alignment

import (
	"github.com/biogo/hts/sam"

	"github.com/inodb/scrinvex/internal/genome"
)

// Alignment is one decoded alignment record.
type Alignment struct {
	Name   string
	RefID  int // index into the reader's contigs, -1 when unplaced
	Pos    int64
	Strand genome.Strand
	MapQ   byte
	Flags  sam.Flags
	Cigar  sam.Cigar

	Barcode    string
	HasBarcode bool
	UMI        string
	HasUMI     bool
}

// Blocks appends the aligned reference blocks of a to buf and returns it.
// Every match operation (M, = or X) yields one block; deletions and skipped
// regions advance the reference position without producing a block.
func (a *Alignment) Blocks(chrom genome.ChromID, buf []genome.AlignedBlock) []genome.AlignedBlock {
	pos := a.Pos
	for _, co := range a.Cigar {
		n := int64(co.Len())
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			buf = append(buf, genome.AlignedBlock{
				Chrom:  chrom,
				Start:  pos,
				End:    pos + n,
				Strand: a.Strand,
			})
			pos += n
		case sam.CigarDeletion, sam.CigarSkipped:
			pos += n
		}
	}
	return buf
}

// IsMapped returns true if the record is placed on a reference.
func (a *Alignment) IsMapped() bool {
	return a.Flags&sam.Unmapped == 0 && a.RefID >= 0
}

// Filter decides which records reach the counter. The zero value drops
// secondary, QC-failed and unmapped records only.
type Filter struct {
	MinMapQ        byte
	SkipDuplicates bool
}

// Pass returns true if the alignment should be counted.
func (f Filter) Pass(a *Alignment) bool {
	if a.Flags&(sam.Secondary|sam.QCFail) != 0 {
		return false
	}
	if !a.IsMapped() {
		return false
	}
	if f.SkipDuplicates && a.Flags&sam.Duplicate != 0 {
		return false
	}
	return a.MapQ >= f.MinMapQ
}

// Source yields alignments in file order.
type Source interface {
	// Next reads the next alignment.
	// Returns nil, nil when there are no more alignments.
	Next() (*Alignment, error)

	// Close releases resources held by the source.
	Close() error
}
