// Package storage abstracts where processed upload files live so the media
// service does not care about the backing store.
package storage

import "context"

// FileStorage stores and retrieves processed upload files by relative path.
type FileStorage interface {
	// Save writes data at the given relative path, creating parent
	// directories as needed.
	Save(ctx context.Context, relPath string, data []byte) error
	// Read returns the file's contents.
	Read(ctx context.Context, relPath string) ([]byte, error)
	// Exists reports whether the file is present.
	Exists(ctx context.Context, relPath string) (bool, error)
	// Delete removes a single file. Missing files are not an error.
	Delete(ctx context.Context, relPath string) error
	// DeletePrefix removes every file under the given relative directory.
	DeletePrefix(ctx context.Context, relPrefix string) error
	// AbsolutePath resolves a relative path for handing to SendFile-style
	// APIs. Implementations without local files return ok=false.
	AbsolutePath(relPath string) (string, bool)
}
