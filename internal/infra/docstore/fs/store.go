// Package fs implements the document store contract on the local
// filesystem. Documents are plain files under a root directory; metadata
// is derived on demand, which is adequate for the small JSON documents
// this store holds.
package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"epdcore/internal/docstore/core"
)

const defaultRoot = "./epddocs"

// Store persists documents as files rooted at a base directory.
type Store struct {
	root string
}

var _ core.Store = (*Store)(nil)

// New creates a filesystem store rooted at dir, creating it if needed.
// An empty dir falls back to ./epddocs.
func New(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		dir = defaultRoot
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve docs root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create docs root: %w", err)
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute base directory.
func (s *Store) Root() string { return s.root }

func (s *Store) Driver() core.Driver { return core.DriverFilesystem }

// sanitizeKey rejects traversal and absolute keys so documents cannot
// escape the root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("document key must not be empty")
	}
	clean := filepath.Clean(strings.ReplaceAll(key, "\\", "/"))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid document key %q", key)
	}
	return clean, nil
}

func (s *Store) path(rel string) string { return filepath.Join(s.root, rel) }

func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	rel, err := sanitizeKey(key)
	if err != nil {
		return core.Info{}, err
	}
	dst := s.path(rel)
	if _, err := os.Stat(dst); err == nil {
		return core.Info{}, fmt.Errorf("document %s already exists", key)
	} else if !os.IsNotExist(err) {
		return core.Info{}, fmt.Errorf("stat document %s: %w", key, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return core.Info{}, fmt.Errorf("create document dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".doc-*")
	if err != nil {
		return core.Info{}, fmt.Errorf("create temp document: %w", err)
	}
	defer os.Remove(tmp.Name())

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return core.Info{}, fmt.Errorf("write document %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return core.Info{}, fmt.Errorf("finalize document %s: %w", key, err)
	}
	return core.Info{
		Key:          rel,
		Size:         size,
		ContentType:  contentTypeOrDefault(opts.ContentType),
		ETag:         hex.EncodeToString(hasher.Sum(nil)),
		Metadata:     cloneMetadata(opts.Metadata),
		LastModified: time.Now().UTC(),
		URL:          localURL(rel),
	}, nil
}

func (s *Store) Get(ctx context.Context, key string) (core.Info, io.ReadCloser, error) {
	rel, err := sanitizeKey(key)
	if err != nil {
		return core.Info{}, nil, err
	}
	info, err := s.stat(rel)
	if err != nil {
		return core.Info{}, nil, err
	}
	f, err := os.Open(s.path(rel))
	if err != nil {
		return core.Info{}, nil, fmt.Errorf("open document %s: %w", key, err)
	}
	return info, f, nil
}

func (s *Store) Head(ctx context.Context, key string) (core.Info, error) {
	rel, err := sanitizeKey(key)
	if err != nil {
		return core.Info{}, err
	}
	return s.stat(rel)
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	rel, err := sanitizeKey(key)
	if err != nil {
		return false, err
	}
	if err := os.Remove(s.path(rel)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("delete document %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]core.Info, error) {
	var infos []core.Info
	err := filepath.WalkDir(s.root, func(path string, d iofs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, rerr := filepath.Rel(s.root, path)
		if rerr != nil {
			return rerr
		}
		rel = filepath.ToSlash(rel)
		if prefix != "" && !strings.HasPrefix(rel, prefix) {
			return nil
		}
		info, serr := s.stat(rel)
		if serr != nil {
			return serr
		}
		infos = append(infos, info)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// PresignURL returns a local pseudo URL; filesystem documents are not
// reachable over the network so only GET is honoured.
func (s *Store) PresignURL(ctx context.Context, key string, opts core.SignedURLOptions) (string, error) {
	if opts.Method != "" && !strings.EqualFold(opts.Method, "GET") {
		return "", core.ErrUnsupported
	}
	rel, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	if _, err := s.stat(rel); err != nil {
		return "", err
	}
	return localURL(rel), nil
}

// stat derives Info from the file itself. The ETag is recomputed by
// hashing the contents; documents are small enough that this beats
// carrying sidecar metadata files.
func (s *Store) stat(rel string) (core.Info, error) {
	path := s.path(rel)
	fi, err := os.Stat(path)
	if err != nil {
		return core.Info{}, fmt.Errorf("stat document %s: %w", rel, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return core.Info{}, fmt.Errorf("open document %s: %w", rel, err)
	}
	defer f.Close()
	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return core.Info{}, fmt.Errorf("hash document %s: %w", rel, err)
	}
	return core.Info{
		Key:          filepath.ToSlash(rel),
		Size:         fi.Size(),
		ContentType:  contentTypeOrDefault(""),
		ETag:         hex.EncodeToString(hasher.Sum(nil)),
		LastModified: fi.ModTime().UTC(),
		URL:          localURL(rel),
	}, nil
}

func contentTypeOrDefault(ct string) string {
	if strings.TrimSpace(ct) == "" {
		return "application/json"
	}
	return ct
}

func localURL(rel string) string {
	return "http://local.docs/" + filepath.ToSlash(rel)
}

func cloneMetadata(md map[string]string) map[string]string {
	if len(md) == 0 {
		return nil
	}
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
