package flatindex

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
	"github.com/custodia-labs/cogniprof/internal/core/ports/driven"
	"github.com/custodia-labs/cogniprof/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// File layout constants.
const (
	Magic         = "CPFX"
	FormatVersion = uint16(1)
	IndexExt      = ".fidx"
	MetaExt       = ".meta.json"
)

// entryMeta is the sidecar record aligned with vector position i.
type entryMeta struct {
	EntityID string `json:"entity_id"`
	Detail   string `json:"detail,omitempty"`
}

type sidecar struct {
	BuildID string      `json:"build_id"`
	Tag     string      `json:"tag"`
	Entries []entryMeta `json:"entries"`
}

// Index is an in-memory flat index backed by a file pair.
type Index struct {
	mu      sync.RWMutex
	name    string
	dir     string
	loaded  bool
	corrupt string
	dim     int
	buildID string
	tag     string
	vectors [][]float32
	meta    []entryMeta
}

// New returns an unloaded index stored under dir.
func New(dir, name string) (*Index, error) {
	if dir == "" {
		return nil, errors.New("flatindex: directory cannot be empty")
	}
	if name == "" {
		return nil, errors.New("flatindex: name cannot be empty")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	return &Index{name: name, dir: dir}, nil
}

// Name identifies the index on disk.
func (idx *Index) Name() string {
	return idx.name
}

// IndexPath returns the vector file path.
func (idx *Index) IndexPath() string {
	return filepath.Join(idx.dir, idx.name+IndexExt)
}

// MetaPath returns the sidecar path.
func (idx *Index) MetaPath() string {
	return filepath.Join(idx.dir, idx.name+MetaExt)
}

// Build normalizes entries and replaces the file pair.
func (idx *Index) Build(ctx context.Context, entries []driven.IndexEntry, tag string) error {
	dim := 0
	if len(entries) > 0 {
		dim = len(entries[0].Vector)
	}
	vectors := make([][]float32, len(entries))
	meta := make([]entryMeta, len(entries))
	for i, e := range entries {
		if len(e.Vector) != dim {
			return fmt.Errorf("flatindex: entry %s has dimension %d, want %d: %w",
				e.EntityID, len(e.Vector), dim, domain.ErrInvalidInput)
		}
		vectors[i] = normalize(e.Vector)
		meta[i] = entryMeta{EntityID: e.EntityID, Detail: e.Detail}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	buildID := uuid.NewString()

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.writeVectors(buildID, tag, dim, vectors); err != nil {
		return err
	}
	if err := idx.writeMeta(sidecar{BuildID: buildID, Tag: tag, Entries: meta}); err != nil {
		return err
	}

	idx.loaded = true
	idx.corrupt = ""
	idx.dim = dim
	idx.buildID = buildID
	idx.tag = tag
	idx.vectors = vectors
	idx.meta = meta
	logger.Debug("flatindex %s: built %d entries (dim %d, build %s)", idx.name, len(entries), dim, buildID)
	return nil
}

func (idx *Index) writeVectors(buildID, tag string, dim int, vectors [][]float32) error {
	return writeAtomic(idx.dir, idx.IndexPath(), func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		header := []any{
			[]byte(Magic),
			FormatVersion,
			uint32(dim),
			uint32(len(vectors)),
			uint16(len(buildID)), []byte(buildID),
			uint16(len(tag)), []byte(tag),
		}
		for _, v := range header {
			if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
				return err
			}
		}
		for _, vec := range vectors {
			if err := binary.Write(bw, binary.LittleEndian, vec); err != nil {
				return err
			}
		}
		return bw.Flush()
	})
}

func (idx *Index) writeMeta(sc sidecar) error {
	if sc.Entries == nil {
		sc.Entries = []entryMeta{}
	}
	return writeAtomic(idx.dir, idx.MetaPath(), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sc)
	})
}

// writeAtomic writes to a temp file in dir and renames it over path.
func writeAtomic(dir, path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after rename

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Load reads the file pair into memory.
func (idx *Index) Load(_ context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	_, vecErr := os.Stat(idx.IndexPath())
	_, metaErr := os.Stat(idx.MetaPath())
	vecMissing := errors.Is(vecErr, os.ErrNotExist)
	metaMissing := errors.Is(metaErr, os.ErrNotExist)
	switch {
	case vecMissing && metaMissing:
		idx.reset("")
		return fmt.Errorf("flatindex %s: %w", idx.name, domain.ErrVectorIndexUnavailable)
	case vecMissing || metaMissing:
		return idx.fail("index file and sidecar must exist together")
	}

	dim, buildID, tag, vectors, err := readVectors(idx.IndexPath())
	if err != nil {
		return idx.fail(err.Error())
	}
	sc, err := readMeta(idx.MetaPath())
	if err != nil {
		return idx.fail(err.Error())
	}
	if sc.BuildID != buildID {
		return idx.fail(fmt.Sprintf("build id mismatch: index %s, sidecar %s", buildID, sc.BuildID))
	}
	if len(sc.Entries) != len(vectors) {
		return idx.fail(fmt.Sprintf("sidecar has %d entries for %d vectors", len(sc.Entries), len(vectors)))
	}

	idx.loaded = true
	idx.corrupt = ""
	idx.dim = dim
	idx.buildID = buildID
	idx.tag = tag
	idx.vectors = vectors
	idx.meta = sc.Entries
	logger.Debug("flatindex %s: loaded %d entries", idx.name, len(vectors))
	return nil
}

// fail marks the index corrupt. Callers hold the write lock.
func (idx *Index) fail(reason string) error {
	idx.reset(reason)
	return fmt.Errorf("flatindex %s: %s: %w", idx.name, reason, domain.ErrIndexCorrupt)
}

func (idx *Index) reset(corrupt string) {
	idx.loaded = false
	idx.corrupt = corrupt
	idx.dim = 0
	idx.buildID = ""
	idx.tag = ""
	idx.vectors = nil
	idx.meta = nil
}

func readVectors(path string) (dim int, buildID, tag string, vectors [][]float32, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", "", nil, fmt.Errorf("opening index file: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != Magic {
		return 0, "", "", nil, errors.New("bad magic")
	}
	var version uint16
	var d, count uint32
	for _, v := range []any{&version, &d, &count} {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return 0, "", "", nil, errors.New("truncated header")
		}
	}
	if version != FormatVersion {
		return 0, "", "", nil, fmt.Errorf("unsupported format version %d", version)
	}
	if buildID, err = readString(r); err != nil {
		return 0, "", "", nil, err
	}
	if tag, err = readString(r); err != nil {
		return 0, "", "", nil, err
	}

	vectors = make([][]float32, count)
	for i := range vectors {
		vectors[i] = make([]float32, d)
		if err := binary.Read(r, binary.LittleEndian, vectors[i]); err != nil {
			return 0, "", "", nil, fmt.Errorf("truncated vector %d", i)
		}
	}
	return int(d), buildID, tag, vectors, nil
}

func readString(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", errors.New("truncated header")
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", errors.New("truncated header")
	}
	return string(buf), nil
}

func readMeta(path string) (*sidecar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sidecar: %w", err)
	}
	var sc sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("decoding sidecar: %w", err)
	}
	return &sc, nil
}

// Search returns up to k entries ordered by descending inner product with
// the normalized query; ties break on entity id.
func (idx *Index) Search(ctx context.Context, query []float32, k int) ([]driven.IndexHit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.loaded {
		return nil, fmt.Errorf("flatindex %s: %w", idx.name, domain.ErrVectorIndexUnavailable)
	}
	if k <= 0 || len(idx.vectors) == 0 {
		return nil, nil
	}
	if len(query) != idx.dim {
		return nil, fmt.Errorf("flatindex %s: query dimension %d, want %d: %w",
			idx.name, len(query), idx.dim, domain.ErrInvalidInput)
	}

	q := normalize(query)
	hits := make([]driven.IndexHit, len(idx.vectors))
	for i, vec := range idx.vectors {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		hits[i] = driven.IndexHit{
			EntityID:   idx.meta[i].EntityID,
			Similarity: dot(q, vec),
			Detail:     idx.meta[i].Detail,
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].EntityID < hits[j].EntityID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Status describes the index state without touching the vectors.
func (idx *Index) Status() domain.IndexStatus {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	st := domain.IndexStatus{Name: idx.name}
	switch {
	case idx.loaded:
		st.State = domain.IndexReady
		st.Count = len(idx.vectors)
		st.Dimensions = idx.dim
		st.Tag = idx.tag
		st.BuildID = idx.buildID
	case idx.corrupt != "":
		st.State = domain.IndexCorrupt
		st.Reason = idx.corrupt
	default:
		st.State = domain.IndexMissing
		if _, err := os.Stat(idx.IndexPath()); err == nil {
			st.Reason = "on disk, not loaded"
		} else {
			st.Reason = "not built"
		}
	}
	return st
}

// Close releases the in-memory vectors. Files stay on disk.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.reset("")
	return nil
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
