package remote

import (
	"archive/tar"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/deevcs/dee/pkg/object"
)

const (
	manifestName  = "MANIFEST"
	objectsPrefix = "objects/"

	// maxBundleObjectSize bounds a single object read from a bundle.
	maxBundleObjectSize = 1 << 30
)

// Manifest is the first entry of every bundle.
type Manifest struct {
	Commit    object.Hash `json:"commit"`
	Branch    string      `json:"branch"`
	CreatedAt time.Time   `json:"created_at"`
}

// WriteBundle writes a zstd-compressed tar holding the manifest followed by
// every object reachable from tip (commits, parents, blobs) in hash order.
func WriteBundle(w io.Writer, store *object.Store, tip object.Hash, branch string, createdAt time.Time) error {
	hashes, err := store.Reachable([]object.Hash{tip})
	if err != nil {
		return fmt.Errorf("bundle: collect objects: %w", err)
	}

	zw, err := newZstdWriter(w)
	if err != nil {
		return fmt.Errorf("bundle: %w", err)
	}
	tw := tar.NewWriter(zw)

	createdAt = createdAt.UTC().Truncate(time.Second)
	manifest, err := json.Marshal(Manifest{Commit: tip, Branch: branch, CreatedAt: createdAt})
	if err != nil {
		return fmt.Errorf("bundle: marshal manifest: %w", err)
	}
	if err := writeTarEntry(tw, manifestName, manifest, createdAt); err != nil {
		return err
	}

	for _, h := range hashes {
		objType, data, err := store.Read(h)
		if err != nil {
			return fmt.Errorf("bundle: %w", err)
		}
		if err := writeTarEntry(tw, objectsPrefix+string(objType)+"/"+string(h), data, createdAt); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("bundle: close tar: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("bundle: close zstd: %w", err)
	}
	return nil
}

func writeTarEntry(tw *tar.Writer, name string, data []byte, modTime time.Time) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(data)),
		ModTime:  modTime,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatPAX,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("bundle: write header %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("bundle: write %s: %w", name, err)
	}
	return nil
}

// ReadBundle extracts a bundle into store, verifying each object against
// its name and parsing every commit before it is stored, and checks that the manifest's tip has a complete history.
func ReadBundle(r io.Reader, store *object.Store) (*Manifest, error) {
	zr, err := newZstdReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	defer zr.Close()
	tr := tar.NewReader(zr)

	var manifest *Manifest
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if hdr.Size < 0 || hdr.Size > maxBundleObjectSize {
			return nil, fmt.Errorf("%w: entry %s has size %d", ErrInvalidBundle, hdr.Name, hdr.Size)
		}
		data, err := io.ReadAll(io.LimitReader(tr, hdr.Size))
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidBundle, hdr.Name, err)
		}

		if hdr.Name == manifestName {
			if manifest != nil {
				return nil, fmt.Errorf("%w: duplicate manifest", ErrInvalidBundle)
			}
			manifest = &Manifest{}
			if err := json.Unmarshal(data, manifest); err != nil {
				return nil, fmt.Errorf("%w: manifest: %v", ErrInvalidBundle, err)
			}
			continue
		}
		if manifest == nil {
			return nil, fmt.Errorf("%w: %s precedes the manifest", ErrInvalidBundle, hdr.Name)
		}

		objType, h, err := parseObjectEntryName(hdr.Name)
		if err != nil {
			return nil, err
		}
		if err := writeVerifiedObject(store, objType, h, data); err != nil {
			return nil, err
		}
	}

	if manifest == nil {
		return nil, fmt.Errorf("%w: missing manifest", ErrInvalidBundle)
	}
	if !object.ValidHash(manifest.Commit) {
		return nil, fmt.Errorf("%w: manifest commit %q", ErrInvalidBundle, manifest.Commit)
	}
	missing, err := store.Missing([]object.Hash{manifest.Commit})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: incomplete history: %d objects missing (first %s)", ErrInvalidBundle, len(missing), missing[0])
	}
	return manifest, nil
}

func parseObjectEntryName(name string) (object.ObjectType, object.Hash, error) {
	rest, ok := strings.CutPrefix(name, objectsPrefix)
	if !ok {
		return "", "", fmt.Errorf("%w: unexpected entry %q", ErrInvalidBundle, name)
	}
	typ, h := path.Split(rest)
	objType := object.ObjectType(strings.TrimSuffix(typ, "/"))
	switch objType {
	case object.TypeBlob, object.TypeCommit:
	default:
		return "", "", fmt.Errorf("%w: unsupported object type in %q", ErrInvalidBundle, name)
	}
	if !object.ValidHash(object.Hash(h)) {
		return "", "", fmt.Errorf("%w: bad object hash in %q", ErrInvalidBundle, name)
	}
	return objType, object.Hash(h), nil
}

func writeVerifiedObject(store *object.Store, objType object.ObjectType, h object.Hash, data []byte) error {
	if computed := object.HashObject(objType, data); computed != h {
		return fmt.Errorf("%w: object hash mismatch: expected %s, got %s", ErrInvalidBundle, h, computed)
	}
	if objType == object.TypeCommit {
		if _, err := object.UnmarshalCommit(data); err != nil {
			return fmt.Errorf("%w: commit %s: %w", ErrInvalidBundle, h, err)
		}
	}
	written, err := store.Write(objType, data)
	if err != nil {
		return err
	}
	if written != h {
		return fmt.Errorf("object write mismatch: expected %s, wrote %s", h, written)
	}
	return nil
}

// HashFile returns the SHA-256 hex digest of the file at p.
func HashFile(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()
	sum := sha256.New()
	if _, err := io.Copy(sum, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(sum.Sum(nil)), nil
}
