package gtf

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/inodb/scrinvex/internal/genome"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Snapshot manages gob-serialized features on disk:
//
//	{dir}/features.gob       (serialized features)
//	{dir}/features.gob.meta  (source file fingerprint)
type Snapshot struct {
	dir string
}

// snapshotData is the on-disk form. Chromosome ids are only meaningful
// together with Names, which are re-interned in order on load.
type snapshotData struct {
	Names    []string
	Features []genome.Feature
}

// NewSnapshot creates a snapshot cache for the given directory.
func NewSnapshot(dir string) *Snapshot {
	return &Snapshot{dir: dir}
}

func (s *Snapshot) dataPath() string {
	return filepath.Join(s.dir, "features.gob")
}

func (s *Snapshot) metaPath() string {
	return filepath.Join(s.dir, "features.gob.meta")
}

// Valid checks whether the snapshot was built from the same GTF file.
func (s *Snapshot) Valid(gtf FileFingerprint, stripChr bool) bool {
	meta, err := s.readMeta()
	if err != nil {
		return false
	}

	checks := []struct{ key, val string }{
		{"gtf_path", gtf.Path},
		{"gtf_size", strconv.FormatInt(gtf.Size, 10)},
		{"gtf_modtime", gtf.ModTime.UTC().Format(time.RFC3339Nano)},
		{"strip_chr", strconv.FormatBool(stripChr)},
	}
	for _, c := range checks {
		if meta[c.key] != c.val {
			return false
		}
	}

	if _, err := os.Stat(s.dataPath()); err != nil {
		return false
	}
	return true
}

// Load reads the snapshot into a new feature set.
func (s *Snapshot) Load(stripChr bool) (*genome.FeatureSet, error) {
	f, err := os.Open(s.dataPath())
	if err != nil {
		return nil, fmt.Errorf("open annotation snapshot: %w", err)
	}
	defer f.Close()

	var data snapshotData
	if err := gob.NewDecoder(f).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode annotation snapshot: %w", err)
	}

	index := genome.NewChromosomeIndex(stripChr)
	for _, name := range data.Names {
		index.Intern(name)
	}
	set := genome.NewFeatureSet(index)
	for _, feat := range data.Features {
		set.Add(feat)
	}
	set.Sort()
	return set, nil
}

// Write serializes the feature set to disk. The set must be sorted.
func (s *Snapshot) Write(set *genome.FeatureSet, gtf FileFingerprint, stripChr bool) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	data := snapshotData{Names: make([]string, set.Index.Len())}
	for i := range data.Names {
		data.Names[i] = set.Index.Name(genome.ChromID(i))
	}
	data.Features = make([]genome.Feature, 0, set.Len())
	for _, chrom := range set.Chromosomes() {
		data.Features = append(data.Features, set.Features(chrom)...)
	}

	f, err := os.Create(s.dataPath())
	if err != nil {
		return fmt.Errorf("create annotation snapshot: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(data); err != nil {
		f.Close()
		os.Remove(s.dataPath())
		return fmt.Errorf("encode annotation snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close annotation snapshot: %w", err)
	}

	lines := []string{
		"gtf_path=" + gtf.Path,
		"gtf_size=" + strconv.FormatInt(gtf.Size, 10),
		"gtf_modtime=" + gtf.ModTime.UTC().Format(time.RFC3339Nano),
		"strip_chr=" + strconv.FormatBool(stripChr),
		"created_at=" + time.Now().UTC().Format(time.RFC3339),
		"",
	}
	return os.WriteFile(s.metaPath(), []byte(strings.Join(lines, "\n")), 0644)
}

// Clear removes the snapshot files.
func (s *Snapshot) Clear() {
	os.Remove(s.dataPath())
	os.Remove(s.metaPath())
}

func (s *Snapshot) readMeta() (map[string]string, error) {
	data, err := os.ReadFile(s.metaPath())
	if err != nil {
		return nil, err
	}

	meta := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		if k, v, ok := strings.Cut(line, "="); ok {
			meta[k] = v
		}
	}
	return meta, nil
}
