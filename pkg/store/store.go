package store

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Generation identifies a stored revision of an object. Zero means the
// object does not exist.
type Generation int64

const (
	// Unconditional disables the generation precondition on Write.
	Unconditional Generation = -1
	// Absent requires the object to not exist on Write.
	Absent Generation = 0
)

var (
	// ErrNotFound is returned when reading an object that does not exist.
	ErrNotFound = errors.New("object not found")
	// ErrPreconditionFailed is returned when a conditional write finds a
	// generation other than the expected one.
	ErrPreconditionFailed = errors.New("generation precondition failed")
)

// Store is a blob store keyed by object name.
type Store interface {
	// Exists reports whether the object exists.
	Exists(ctx context.Context, key string) (bool, error)
	// Read returns the object content and its current generation.
	Read(ctx context.Context, key string) ([]byte, Generation, error)
	// Write stores data under key when the current generation equals match,
	// or unconditionally when match is Unconditional. It returns the new
	// generation.
	Write(ctx context.Context, key string, data []byte, match Generation) (Generation, error)
	// UploadFile stores the content of a local file under key.
	UploadFile(ctx context.Context, key, localPath string) error
	// Close releases the underlying resources.
	Close() error
	// URI returns a human readable location for key.
	URI(key string) string
}

// ReadText returns the object content as a string.
func ReadText(ctx context.Context, s Store, key string) (string, Generation, error) {
	b, gen, err := s.Read(ctx, key)
	if err != nil {
		return "", 0, err
	}
	return string(b), gen, nil
}

// WriteText stores the string unconditionally.
func WriteText(ctx context.Context, s Store, key, text string) error {
	if _, err := s.Write(ctx, key, []byte(text), Unconditional); err != nil {
		return err
	}
	return nil
}

// EnsureFolder creates an empty "folder/" placeholder object when missing.
func EnsureFolder(ctx context.Context, s Store, folder string) error {
	key := folder + "/"
	ok, err := s.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("error checking folder %s: %w", key, err)
	}
	if ok {
		return nil
	}

	_, err = s.Write(ctx, key, []byte{}, Absent)
	if err != nil && !errors.Is(err, ErrPreconditionFailed) {
		return fmt.Errorf("error creating folder %s: %w", key, err)
	}
	return nil
}

func readFile(localPath string) ([]byte, error) {
	b, err := os.ReadFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read local file %s: %w", localPath, err)
	}
	return b, nil
}
