// Package local provides a filesystem implementation of filestore.Store.
// Buckets map to subdirectories of the configured root; an empty bucket
// writes directly under the root.
package local

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/koustreak/relarchive/internal/errs"
	"github.com/koustreak/relarchive/internal/filestore"
)

// Driver writes archive documents to a local directory.
type Driver struct {
	root string
}

// New returns a Driver rooted at cfg.Dir, creating the directory if needed.
func New(cfg *filestore.Config) (*Driver, error) {
	root := cfg.Dir
	if root == "" {
		root = "."
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, mapError(err, "failed to create output directory")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid output directory", err)
	}
	return &Driver{root: abs}, nil
}

// Ping checks that the root directory still exists.
func (d *Driver) Ping(_ context.Context) error {
	info, err := os.Stat(d.root)
	if err != nil {
		return mapError(err, "output directory unavailable")
	}
	if !info.IsDir() {
		return errs.Newf(errs.ErrKindInvalidInput, "%s is not a directory", d.root)
	}
	return nil
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}

// PutObject writes the document through a temporary file and renames it
// into place so readers never observe a partial archive.
func (d *Driver) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) (*filestore.ObjectInfo, error) {
	path, err := d.resolve(bucket, key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindTimeout, "put object", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, mapError(err, "failed to create bucket directory")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".relarchive-*")
	if err != nil {
		return nil, mapError(err, "failed to create temp file")
	}
	defer os.Remove(tmp.Name())

	hash := md5.New()
	n, err := io.Copy(io.MultiWriter(tmp, hash), r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, mapError(err, "failed to write object")
	}
	if size >= 0 && n != size {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "put object: wrote %d bytes, expected %d", n, size)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, mapError(err, "failed to move object into place")
	}

	info, err := d.StatObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	info.ETag = hex.EncodeToString(hash.Sum(nil))
	if contentType != "" {
		info.ContentType = contentType
	}
	return info, nil
}

// StatObject returns size and modification time of a stored document.
func (d *Driver) StatObject(_ context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	path, err := d.resolve(bucket, key)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, mapError(err, "failed to stat object")
	}
	return &filestore.ObjectInfo{
		Bucket:       bucket,
		Key:          key,
		Size:         st.Size(),
		ContentType:  mime.TypeByExtension(filepath.Ext(key)),
		LastModified: st.ModTime(),
	}, nil
}

// resolve maps bucket/key to a path and refuses anything escaping the root.
func (d *Driver) resolve(bucket, key string) (string, error) {
	if key == "" {
		return "", errs.New(errs.ErrKindInvalidInput, "object key is empty")
	}
	path := filepath.Join(d.root, bucket, filepath.FromSlash(key))
	if path != d.root && !strings.HasPrefix(path, d.root+string(filepath.Separator)) {
		return "", errs.Newf(errs.ErrKindInvalidInput, "object key %q escapes the output directory", key)
	}
	return path, nil
}

func mapError(err error, msg string) *errs.Error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	case errors.Is(err, fs.ErrPermission):
		return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
	default:
		return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
	}
}
