package invex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/scrinvex/internal/barcode"
	"github.com/inodb/scrinvex/internal/genome"
)

type classifyFixture struct {
	window *Window
	ledger *Ledger
	agg    *Aggregator
	c      *Classifier
}

func newClassifyFixture(allow barcode.AllowList, feats ...genome.Feature) *classifyFixture {
	w := NewWindow()
	w.Load(0, feats)
	ledger := NewLedger()
	agg := NewAggregator(true)
	return &classifyFixture{
		window: w,
		ledger: ledger,
		agg:    agg,
		c:      NewClassifier(ledger, agg, allow),
	}
}

func (f *classifyFixture) classify(bc, umi string, blocks ...genome.AlignedBlock) Outcome {
	return f.c.Classify(Read{Barcode: bc, HasBarcode: true, UMI: umi, HasUMI: true, Blocks: blocks}, f.window)
}

func fwd(start, end int64) genome.AlignedBlock {
	return genome.AlignedBlock{Start: start, End: end, Strand: genome.Forward}
}

func rev(start, end int64) genome.AlignedBlock {
	return genome.AlignedBlock{Start: start, End: end, Strand: genome.Reverse}
}

// G1 [100,500) +, exon [100,200)
func g1Features() []genome.Feature {
	return []genome.Feature{
		gene("G1", 100, 500, genome.Forward),
		exon("G1", 100, 200, genome.Forward),
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		genic, exonic int64
		want          Category
	}{
		{60, 60, CategoryExon},
		{50, 0, CategoryIntron},
		{100, 50, CategoryJunction},
		{1, 0, CategoryIntron},
		// overlapping exon records can push exonic past genic
		{60, 120, CategoryExon},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, categorize(tt.genic, tt.exonic), "genic=%d exonic=%d", tt.genic, tt.exonic)
	}
}

func TestClassify_Categories(t *testing.T) {
	tests := []struct {
		name   string
		blocks []genome.AlignedBlock
		want   Counts
	}{
		{"exon", []genome.AlignedBlock{fwd(120, 180)}, Counts{Exons: 1, Sense: 1}},
		{"intron", []genome.AlignedBlock{fwd(250, 300)}, Counts{Introns: 1, Sense: 1}},
		{"junction single block", []genome.AlignedBlock{fwd(150, 250)}, Counts{Junctions: 1, Sense: 1}},
		{"junction spliced", []genome.AlignedBlock{fwd(120, 180), fwd(400, 450)}, Counts{Junctions: 1, Sense: 1}},
		{"antisense", []genome.AlignedBlock{rev(120, 180)}, Counts{Exons: 1, Antisense: 1}},
		{"partial gene overlap", []genome.AlignedBlock{fwd(480, 520)}, Counts{Introns: 1, Sense: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newClassifyFixture(nil, g1Features()...)
			assert.Equal(t, OutcomeCounted, f.classify("AAAA", "U1", tt.blocks...))

			rows := f.agg.Take("G1")
			require.Len(t, rows, 1)
			assert.Equal(t, "AAAA", rows[0].Barcode)
			assert.Equal(t, tt.want, rows[0].Counts)
			assert.True(t, f.ledger.Seen("G1", "U1"))
		})
	}
}

func TestClassify_SenseIsFirstGeneBlock(t *testing.T) {
	f := newClassifyFixture(nil, g1Features()...)
	f.classify("AAAA", "U1", rev(250, 260), fwd(300, 310))

	rows := f.agg.Take("G1")
	require.Len(t, rows, 1)
	assert.Equal(t, Counts{Introns: 1, Antisense: 1}, rows[0].Counts)
}

func TestClassify_Deduplicates(t *testing.T) {
	f := newClassifyFixture(nil, g1Features()...)

	assert.Equal(t, OutcomeCounted, f.classify("AAAA", "U1", fwd(120, 180)))
	// same UMI on the same gene, any category and any barcode
	assert.Equal(t, OutcomeDuplicate, f.classify("AAAA", "U1", fwd(250, 300)))
	assert.Equal(t, OutcomeDuplicate, f.classify("CCCC", "U1", fwd(120, 180)))
	assert.Equal(t, OutcomeCounted, f.classify("AAAA", "U2", fwd(250, 300)))

	rows := f.agg.Take("G1")
	require.Len(t, rows, 1)
	assert.Equal(t, Counts{Introns: 1, Exons: 1, Sense: 2}, rows[0].Counts)
}

func TestClassify_DedupIsPerGene(t *testing.T) {
	f := newClassifyFixture(nil,
		gene("G1", 100, 500, genome.Forward),
		exon("G1", 100, 200, genome.Forward),
		gene("G2", 450, 900, genome.Reverse),
	)
	// U1 credited to G1 only
	require.Equal(t, OutcomeCounted, f.classify("AAAA", "U1", fwd(300, 350)))
	// overlaps both; G1 has seen U1 but G2 has not
	require.Equal(t, OutcomeCounted, f.classify("AAAA", "U1", fwd(460, 480)))

	g1 := f.agg.Take("G1")
	g2 := f.agg.Take("G2")
	require.Len(t, g1, 1)
	require.Len(t, g2, 1)
	assert.Equal(t, Counts{Introns: 1, Sense: 1}, g1[0].Counts)
	assert.Equal(t, Counts{Introns: 1, Antisense: 1}, g2[0].Counts)
}

func TestClassify_PartitionPerGene(t *testing.T) {
	f := newClassifyFixture(nil,
		gene("G1", 100, 500, genome.Forward),
		exon("G1", 100, 200, genome.Forward),
		gene("G2", 150, 600, genome.Reverse),
		exon("G2", 550, 600, genome.Reverse),
	)
	// G1: exon; G2: intron
	assert.Equal(t, OutcomeCounted, f.classify("AAAA", "U1", fwd(160, 190)))

	for _, id := range []string{"G1", "G2"} {
		rows := f.agg.Take(id)
		require.Len(t, rows, 1, id)
		c := rows[0].Counts
		assert.Equal(t, uint64(1), c.Reads(), id)
		assert.Equal(t, uint64(1), c.Sense+c.Antisense, id)
	}
}

func TestClassify_Intergenic(t *testing.T) {
	f := newClassifyFixture(nil, g1Features()...)

	assert.Equal(t, OutcomeIntergenic, f.classify("AAAA", "U1", fwd(600, 650)))
	assert.Equal(t, OutcomeIntergenic, f.classify("AAAA", "U2", fwd(0, 100)))
	assert.Equal(t, uint64(2), f.agg.Intergenic("AAAA"))
	assert.Equal(t, 0, f.agg.Pending())
	assert.Equal(t, 0, f.ledger.Len())
}

func TestClassify_DuplicateIsNotIntergenic(t *testing.T) {
	f := newClassifyFixture(nil, g1Features()...)
	f.classify("AAAA", "U1", fwd(120, 180))
	assert.Equal(t, OutcomeDuplicate, f.classify("AAAA", "U1", fwd(120, 180)))
	assert.Equal(t, uint64(0), f.agg.Intergenic("AAAA"))
}

func TestClassify_SkippedReads(t *testing.T) {
	allow := barcode.AllowList{"AAAA": {}}
	f := newClassifyFixture(allow, g1Features()...)

	assert.Equal(t, OutcomeMissingBarcode,
		f.c.Classify(Read{UMI: "U1", HasUMI: true, Blocks: []genome.AlignedBlock{fwd(120, 180)}}, f.window))
	assert.Equal(t, OutcomeMissingBarcode,
		f.c.Classify(Read{Blocks: []genome.AlignedBlock{fwd(120, 180)}}, f.window))
	assert.Equal(t, OutcomeMissingUMI,
		f.c.Classify(Read{Barcode: "AAAA", HasBarcode: true, Blocks: []genome.AlignedBlock{fwd(120, 180)}}, f.window))
	assert.Equal(t, OutcomeBarcodeNotAllowed, f.classify("GGGG", "U1", fwd(120, 180)))

	assert.Equal(t, SkipCounts{MissingBarcode: 2, MissingUMI: 1, BarcodeNotAllowed: 1}, f.agg.Skipped())
	assert.Equal(t, 0, f.agg.Pending())
	assert.False(t, f.ledger.Seen("G1", "U1"))

	assert.Equal(t, OutcomeCounted, f.classify("AAAA", "U1", fwd(120, 180)))
}

func TestClassify_EmptyTagsAreValues(t *testing.T) {
	f := newClassifyFixture(nil, g1Features()...)
	assert.Equal(t, OutcomeCounted,
		f.c.Classify(Read{HasBarcode: true, HasUMI: true, Blocks: []genome.AlignedBlock{fwd(120, 180)}}, f.window))

	rows := f.agg.Take("G1")
	require.Len(t, rows, 1)
	assert.Equal(t, "", rows[0].Barcode)
}

func TestAggregator_TakeAndSummary(t *testing.T) {
	agg := NewAggregator(true)
	agg.Record("G1", "CCCC", CategoryExon, true)
	agg.Record("G1", "AAAA", CategoryIntron, false)
	agg.Record("G1", "AAAA", CategoryJunction, true)
	agg.Record("G2", "AAAA", CategoryExon, true)
	agg.RecordIntergenic("AAAA")
	agg.RecordIntergenic("TTTT")
	assert.Equal(t, 2, agg.Pending())

	rows := agg.Take("G1")
	require.Len(t, rows, 2)
	assert.Equal(t, Row{GeneID: "G1", Barcode: "AAAA", Counts: Counts{Introns: 1, Junctions: 1, Sense: 1, Antisense: 1}}, rows[0])
	assert.Equal(t, Row{GeneID: "G1", Barcode: "CCCC", Counts: Counts{Exons: 1, Sense: 1}}, rows[1])

	assert.Nil(t, agg.Take("G1"), "taken rows are gone")
	assert.Equal(t, 1, agg.Pending())

	summary := agg.Summary()
	require.Len(t, summary, 3)
	assert.Equal(t, SummaryRow{Barcode: "AAAA", Counts: Counts{Introns: 1, Junctions: 1, Exons: 1, Sense: 2, Antisense: 1}, Intergenic: 1}, summary[0])
	assert.Equal(t, SummaryRow{Barcode: "CCCC", Counts: Counts{Exons: 1, Sense: 1}}, summary[1])
	assert.Equal(t, SummaryRow{Barcode: "TTTT", Intergenic: 1}, summary[2])
}

func TestAggregator_NoSummary(t *testing.T) {
	agg := NewAggregator(false)
	agg.Record("G1", "AAAA", CategoryExon, true)
	agg.RecordIntergenic("AAAA")
	assert.Nil(t, agg.Summary())
	assert.Equal(t, uint64(1), agg.Intergenic("AAAA"))
}

func TestCounts(t *testing.T) {
	var c Counts
	assert.True(t, c.IsZero())
	c.Add(CategoryJunction, false)
	c.Add(CategoryExon, true)
	assert.False(t, c.IsZero())
	assert.Equal(t, uint64(2), c.Reads())
	assert.Equal(t, Counts{Junctions: 1, Exons: 1, Sense: 1, Antisense: 1}, c)

	assert.Equal(t, "intron", CategoryIntron.String())
	assert.Equal(t, "junction", CategoryJunction.String())
	assert.Equal(t, "exon", CategoryExon.String())
}
