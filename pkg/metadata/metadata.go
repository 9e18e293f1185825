// Package metadata describes stored objects and computes their content tags.
package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Default content types.
const (
	ContentTypeJSON   = "application/json"
	ContentTypeBinary = "application/octet-stream"
)

// Metadata errors.
var (
	ErrEmptyKey       = errors.New("object key is empty")
	ErrTagMismatch    = errors.New("etag mismatch")
	ErrInvalidSidecar = errors.New("invalid metadata sidecar")
)

// Object contains the stored state of a single object.
type Object struct {
	LastModified time.Time `json:"lastModified"`
	Key          string    `json:"key"`
	ContentType  string    `json:"contentType"`
	ETag         string    `json:"etag"`
	Size         int64     `json:"size"`
}

// ETag computes the SHA-256 entity tag of the content.
func ETag(content []byte) string {
	hash := sha256.Sum256(content)

	return hex.EncodeToString(hash[:])
}

// NormalizeETag strips the quotes S3 wraps around entity tags.
func NormalizeETag(tag string) string {
	return strings.Trim(strings.TrimSpace(tag), `"`)
}

// Verify checks that content matches the expected tag.
func Verify(content []byte, expected string) error {
	calculated := ETag(content)
	if calculated != NormalizeETag(expected) {
		return fmt.Errorf("%w: expected %s, got %s", ErrTagMismatch, expected, calculated)
	}

	return nil
}

// New builds the metadata of content about to be stored under key.
func New(key string, content []byte, contentType string) (*Object, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrEmptyKey
	}

	if contentType == "" {
		contentType = ContentTypeBinary
	}

	return &Object{
		Key:          key,
		ContentType:  contentType,
		ETag:         ETag(content),
		Size:         int64(len(content)),
		LastModified: time.Now().UTC(),
	}, nil
}

// MarshalSidecar encodes the metadata for storage next to the object.
func (o *Object) MarshalSidecar() ([]byte, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	return data, nil
}

// UnmarshalSidecar decodes metadata written by MarshalSidecar.
func UnmarshalSidecar(data []byte) (*Object, error) {
	var obj Object
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSidecar, err)
	}

	if obj.Key == "" {
		return nil, fmt.Errorf("%w: missing key", ErrInvalidSidecar)
	}

	return &obj, nil
}
