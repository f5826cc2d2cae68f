// Package vectorfile stores profile vectors on disk, one file per entity
// and aggregation run (<entity>.<run>.vec).
//
// Each file starts with a text header naming the manifest version and
// dimension, followed by the components as little-endian float64:
//
//	cogniprof-vector v1 45\n
//	<45 x float64>
//
// Readers compare the header version against the active manifest and
// report domain.ErrManifestMismatch on drift so callers can re-vectorize.
package vectorfile

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
	"github.com/custodia-labs/cogniprof/internal/core/ports/driven"
)

const (
	headerMagic = "cogniprof-vector"
	// Extension is the file suffix of vector files.
	Extension = ".vec"
)

// Store implements driven.VectorStore over a directory.
type Store struct {
	dir string
}

var _ driven.VectorStore = (*Store)(nil)

// New creates the directory if needed and returns a store rooted at it.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("vectorfile: directory cannot be empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving vector directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0700); err != nil {
		return nil, fmt.Errorf("creating vector directory: %w", err)
	}
	return &Store{dir: abs}, nil
}

// Dir returns the absolute directory holding vector files.
func (s *Store) Dir() string {
	return s.dir
}

// PathFor returns the file path used for an entity's vector from one run.
func (s *Store) PathFor(entityID, runID string) string {
	return filepath.Join(s.dir, url.PathEscape(entityID)+"."+url.PathEscape(runID)+Extension)
}

// Write stores the vector and returns its path. The file appears atomically;
// files from earlier runs are left for orphan cleanup.
func (s *Store) Write(_ context.Context, entityID, runID, manifestVersion string, vector domain.Vector) (string, error) {
	if strings.TrimSpace(entityID) == "" {
		return "", fmt.Errorf("vector without entity id: %w", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(runID) == "" {
		return "", fmt.Errorf("vector without run id: %w", domain.ErrInvalidInput)
	}
	if manifestVersion == "" || strings.ContainsAny(manifestVersion, " \n") {
		return "", fmt.Errorf("invalid manifest version %q: %w", manifestVersion, domain.ErrInvalidInput)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %s %d\n", headerMagic, manifestVersion, len(vector))
	for _, v := range vector {
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}

	path := s.PathFor(entityID, runID)
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("creating temp vector file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after rename

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing vector file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing vector file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("renaming vector file: %w", err)
	}
	return path, nil
}

// Read loads a vector written with manifestVersion.
// Unreadable files are reported as domain.ErrNotFound so they get rewritten.
func (s *Store) Read(_ context.Context, path, manifestVersion string) (domain.Vector, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("vector file %s: %w", path, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("opening vector file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	header, err := r.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("vector file %s has no header: %w", path, domain.ErrNotFound)
	}
	var magic, version string
	var dim int
	if _, err := fmt.Sscanf(header, "%s %s %d\n", &magic, &version, &dim); err != nil || magic != headerMagic || dim < 0 {
		return nil, fmt.Errorf("vector file %s has a malformed header: %w", path, domain.ErrNotFound)
	}
	if version != manifestVersion {
		return nil, fmt.Errorf("vector file %s built with %s, want %s: %w",
			path, version, manifestVersion, domain.ErrManifestMismatch)
	}

	raw := make([]byte, dim*8)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("vector file %s is truncated: %w", path, domain.ErrNotFound)
	}
	vec := make(domain.Vector, dim)
	for i := range vec {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	return vec, nil
}

// List returns every vector file path in the directory, sorted.
func (s *Store) List(_ context.Context) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*"+Extension))
	if err != nil {
		return nil, fmt.Errorf("listing vector files: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Remove deletes a vector file. Paths outside the store directory are rejected
// and an already missing file is not an error.
func (s *Store) Remove(_ context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	if filepath.Dir(abs) != s.dir {
		return fmt.Errorf("%s is outside %s: %w", path, s.dir, domain.ErrInvalidInput)
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing vector file: %w", err)
	}
	return nil
}
