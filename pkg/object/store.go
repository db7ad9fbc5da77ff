package object

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Store is a content-addressed object store with a 2-character fan-out
// directory layout: <root>/ab/cdef0123...
type Store struct {
	root string
}

// NewStore creates a Store rooted at the given directory. Fan-out
// directories are created lazily on first write.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Root returns the directory the store writes into.
func (s *Store) Root() string {
	return s.root
}

// Path returns the filesystem path for a given hash.
func (s *Store) Path(h Hash) string {
	if len(h) < 3 {
		return filepath.Join(s.root, string(h))
	}
	return filepath.Join(s.root, string(h[:2]), string(h[2:]))
}

// Has reports whether the store contains an object with the given hash.
func (s *Store) Has(h Hash) bool {
	if !ValidHash(h) {
		return false
	}
	_, err := os.Stat(s.Path(h))
	return err == nil
}

// Write stores an object and returns its content hash. The on-disk format
// is "type len\0content". Writes are atomic: data is written to a temp
// file, synced, and then renamed into place. Writing an object that already
// exists is a no-op.
func (s *Store) Write(objType ObjectType, data []byte) (Hash, error) {
	h := HashObject(objType, data)

	if s.Has(h) {
		return h, nil
	}

	envelope := fmt.Sprintf("%s %d\x00", objType, len(data))
	raw := make([]byte, 0, len(envelope)+len(data))
	raw = append(raw, envelope...)
	raw = append(raw, data...)

	dir := filepath.Join(s.root, string(h[:2]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &StorageError{Op: "object write mkdir", Path: dir, Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", &StorageError{Op: "object write tmpfile", Path: dir, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", &StorageError{Op: "object write", Path: tmpName, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", &StorageError{Op: "object write sync", Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", &StorageError{Op: "object write close", Path: tmpName, Err: err}
	}

	dest := s.Path(h)
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return "", &StorageError{Op: "object write rename", Path: dest, Err: err}
	}

	return h, nil
}

// Read retrieves an object by hash, returning its type and raw content.
// A missing object yields an error wrapping ErrNotFound.
func (s *Store) Read(h Hash) (ObjectType, []byte, error) {
	if !ValidHash(h) {
		return "", nil, fmt.Errorf("object read %q: %w", h, ErrNotFound)
	}
	p := s.Path(h)
	raw, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, fmt.Errorf("object read %s: %w", h, ErrNotFound)
		}
		return "", nil, &StorageError{Op: "object read", Path: p, Err: err}
	}

	// Parse envelope: "type len\0content"
	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return "", nil, &StorageError{Op: "object read", Path: p, Err: errors.New("invalid format (no NUL)")}
	}
	header := string(raw[:nulIdx])
	content := raw[nulIdx+1:]

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", nil, &StorageError{Op: "object read", Path: p, Err: fmt.Errorf("invalid header %q", header)}
	}
	objType := ObjectType(parts[0])
	length, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", nil, &StorageError{Op: "object read", Path: p, Err: fmt.Errorf("invalid length %q: %w", parts[1], err)}
	}
	if len(content) != length {
		return "", nil, &StorageError{Op: "object read", Path: p, Err: fmt.Errorf("length mismatch (header=%d, actual=%d)", length, len(content))}
	}

	return objType, content, nil
}

// Remove deletes an object. Removing a missing object is not an error.
func (s *Store) Remove(h Hash) error {
	if !ValidHash(h) {
		return nil
	}
	if err := os.Remove(s.Path(h)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &StorageError{Op: "object remove", Path: s.Path(h), Err: err}
	}
	return nil
}

// List returns every object hash present in the store.
func (s *Store) List() ([]Hash, error) {
	var out []Hash
	fanouts, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &StorageError{Op: "object list", Path: s.root, Err: err}
	}
	for _, d := range fanouts {
		if !d.IsDir() || len(d.Name()) != 2 {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(s.root, d.Name()))
		if err != nil {
			return nil, &StorageError{Op: "object list", Path: filepath.Join(s.root, d.Name()), Err: err}
		}
		for _, e := range entries {
			h := Hash(d.Name() + e.Name())
			if ValidHash(h) {
				out = append(out, h)
			}
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

// PutBlob stores raw file content and returns its hash.
func (s *Store) PutBlob(data []byte) (Hash, error) {
	return s.Write(TypeBlob, data)
}

// GetBlob returns the content of a stored blob.
func (s *Store) GetBlob(h Hash) ([]byte, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != TypeBlob {
		return nil, fmt.Errorf("object %s: type mismatch: got %q, want %q", h, objType, TypeBlob)
	}
	return data, nil
}

// PutCommit serializes and stores a Commit.
func (s *Store) PutCommit(c *Commit) (Hash, error) {
	return s.Write(TypeCommit, MarshalCommit(c))
}

// GetCommit reads and deserializes a Commit.
func (s *Store) GetCommit(h Hash) (*Commit, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != TypeCommit {
		return nil, fmt.Errorf("object %s: type mismatch: got %q, want %q", h, objType, TypeCommit)
	}
	c, err := UnmarshalCommit(data)
	if err != nil {
		return nil, &StorageError{Op: "commit decode", Path: s.Path(h), Err: err}
	}
	return c, nil
}
