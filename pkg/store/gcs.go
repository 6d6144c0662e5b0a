package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"cloud.google.com/go/storage"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	textContentType   = "text/plain; charset=utf-8"
	binaryContentType = "application/octet-stream"
	noCacheControl    = "no-cache, no-store, must-revalidate"
)

// GCS is a Store backed by a Google Cloud Storage bucket. Object
// generations map directly onto GCS generation preconditions.
type GCS struct {
	client *storage.Client
	bucket string
}

// GCSClientOptions builds client options from an optional service account
// key file or an optional static access token. With neither, application
// default credentials are used.
func GCSClientOptions(credentialsFile, accessToken string) ([]option.ClientOption, error) {
	opts := make([]option.ClientOption, 0, 1)

	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s", credentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
		return opts, nil
	}

	if accessToken != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{
			TokenType:   "Bearer",
			AccessToken: accessToken,
		})
		opts = append(opts, option.WithTokenSource(ts))
	}

	return opts, nil
}

// NewGCS creates a GCS store for the bucket.
func NewGCS(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCS, error) {
	if bucket == "" {
		return nil, errors.New("bucket name required")
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}

	return &GCS{client: client, bucket: bucket}, nil
}

func (g *GCS) object(key string) *storage.ObjectHandle {
	return g.client.Bucket(g.bucket).Object(key)
}

func (g *GCS) Exists(ctx context.Context, key string) (bool, error) {
	_, err := g.object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get attributes of %s: %w", g.URI(key), err)
	}
	return true, nil
}

func (g *GCS) Read(ctx context.Context, key string) ([]byte, Generation, error) {
	r, err := g.object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("failed to open %s: %w", g.URI(key), err)
	}
	defer r.Close()

	b, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read %s: %w", g.URI(key), err)
	}

	return b, Generation(r.Attrs.Generation), nil
}

func (g *GCS) Write(ctx context.Context, key string, data []byte, match Generation) (Generation, error) {
	obj := conditional(g.object(key), match)

	w := obj.NewWriter(ctx)
	w.ContentType = textContentType
	w.CacheControl = noCacheControl

	if _, err := w.Write(data); err != nil {
		w.Close()
		return 0, g.writeErr(key, match, err)
	}

	if err := w.Close(); err != nil {
		return 0, g.writeErr(key, match, err)
	}

	return Generation(w.Attrs().Generation), nil
}

func (g *GCS) UploadFile(ctx context.Context, key, localPath string) error {
	localFile, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open the local file: %s: %w", localPath, err)
	}
	defer localFile.Close()

	w := g.object(key).NewWriter(ctx)
	w.ContentType = binaryContentType
	w.CacheControl = noCacheControl

	if _, err := io.Copy(w, localFile); err != nil {
		w.Close()
		return fmt.Errorf("failed to copy local file %s to %s: %w", localPath, g.URI(key), err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for %s: %w", g.URI(key), err)
	}

	slog.Debug("uploaded", "file", localPath, "uri", g.URI(key))
	return nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}

func (g *GCS) URI(key string) string {
	return fmt.Sprintf("gs://%s/%s", g.bucket, key)
}

func (g *GCS) writeErr(key string, match Generation, err error) error {
	if isPreconditionFailed(err) {
		return fmt.Errorf("write %s at generation %d: %w", g.URI(key), match, ErrPreconditionFailed)
	}
	return fmt.Errorf("failed to write %s: %w", g.URI(key), err)
}

func conditional(obj *storage.ObjectHandle, match Generation) *storage.ObjectHandle {
	switch {
	case match == Unconditional:
		return obj
	case match == Absent:
		return obj.If(storage.Conditions{DoesNotExist: true})
	default:
		return obj.If(storage.Conditions{GenerationMatch: int64(match)})
	}
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
