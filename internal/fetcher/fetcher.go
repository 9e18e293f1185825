// Package fetcher copies the population dataset from its public API into
// object storage.
package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"blsdata/internal/crawler"
	"blsdata/internal/logger"
	"blsdata/internal/retry"
	"blsdata/internal/storage"
	"blsdata/pkg/metadata"
	"blsdata/pkg/utils"
)

// SuccessMessage is the handler body for a successful run.
const SuccessMessage = "DataUSA population data synced successfully."

// Fetcher errors.
var (
	ErrFetch          = errors.New("failed to fetch population data")
	ErrUpload         = errors.New("failed to upload to storage")
	ErrUnexpectedBody = errors.New("unexpected data after JSON document")
)

// Fetcher downloads one JSON document and stores it re-indented.
type Fetcher struct {
	client  *http.Client
	objects storage.ObjectStore
	helper  *utils.HTTPHelper
	logger  *logger.Logger
	apiURL  string
	key     string
}

// New creates a fetcher. The client's timeout bounds the request.
func New(client *http.Client, objects storage.ObjectStore, apiURL, key string, log *logger.Logger) *Fetcher {
	return &Fetcher{
		client:  client,
		objects: objects,
		helper:  utils.NewHTTPHelper(""),
		logger:  log,
		apiURL:  apiURL,
		key:     key,
	}
}

// Run fetches the dataset and writes it to storage. Nothing is written
// unless the response is a 2xx with a valid JSON body.
func (f *Fetcher) Run(ctx context.Context) error {
	raw, err := f.fetch(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}

	body, err := Reindent(raw)
	if err != nil {
		return retry.Permanent(fmt.Errorf("%w: %w", ErrFetch, err))
	}

	if err := f.objects.Put(ctx, f.key, body, metadata.ContentTypeJSON); err != nil {
		return fmt.Errorf("%w: %w", ErrUpload, err)
	}

	f.logger.Info(fmt.Sprintf("Success: Saved population data to %s (%d bytes)", f.key, len(body)))

	return nil
}

func (f *Fetcher) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.apiURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header = f.helper.BuildHeaders(map[string]string{"Accept": metadata.ContentTypeJSON})

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("%d %s for url: %s", resp.StatusCode, http.StatusText(resp.StatusCode), f.apiURL)
		if !crawler.IsRetryableStatus(resp.StatusCode) {
			return nil, retry.Permanent(err)
		}

		return nil, err
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return raw, nil
}

// Decode parses a single JSON document keeping numbers verbatim.
func Decode(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var data any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, ErrUnexpectedBody
	}

	return data, nil
}

// Reindent validates raw as a single JSON document and re-indents it with
// two spaces. Key order and number literals are preserved.
func Reindent(raw []byte) ([]byte, error) {
	if _, err := Decode(raw); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(raw), "", "  "); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	return buf.Bytes(), nil
}
