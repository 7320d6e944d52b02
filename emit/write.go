package emit

import (
	"bytes"
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"fortio.org/log"
)

// Result says what Write did.
type Result int

const (
	Written   Result = iota // file created or replaced
	Unchanged               // file already had this content
	Stdout                  // no destination, document went to stdout
)

// contentKey returns the hex sha1 of a document, for logs.
func contentKey(data []byte) string {
	return fmt.Sprintf("%x", sha1.Sum(data))
}

// upToDate reports whether dest already holds exactly doc.
func upToDate(dest string, doc []byte) (bool, error) {
	existing, err := os.ReadFile(dest)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("error reading existing output %s: %w", dest, err)
	}
	return bytes.Equal(existing, doc), nil
}

// Write stores doc at dest, or on stdout when dest is empty. The file is
// replaced atomically; an existing file with identical content is left alone.
func Write(dest string, doc []byte, stdout io.Writer) (Result, error) {
	if dest == "" {
		if _, err := io.Copy(stdout, bytes.NewReader(doc)); err != nil {
			return Stdout, fmt.Errorf("writing to stdout: %w", err)
		}
		return Stdout, nil
	}
	same, err := upToDate(dest, doc)
	if err != nil {
		log.Warnf("Ignoring unreadable existing output: %v", err)
	}
	if same {
		log.LogVf("%s is up to date (sha1 %s)", dest, contentKey(doc))
		return Unchanged, nil
	}
	if err := WriteFileAtomic(dest, doc, 0o644); err != nil {
		return Written, err
	}
	return Written, nil
}

// WriteFileAtomic writes data to a temporary file next to dest and renames
// it into place, so dest never refers to a partially written document.
func WriteFileAtomic(dest string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(dest)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions on %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to move output into place at %s: %w", dest, err)
	}
	return nil
}
