package crawler

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/spider/internal/model"
)

// downloadChunkSize is the buffer size used to stream image bodies to disk.
const downloadChunkSize = 32 * 1024

// ImageDownloader saves one image into a directory.
type ImageDownloader interface {
	// Download never returns an error; failures are described by the outcome.
	Download(ctx context.Context, ref model.ImageRef, targetDir string) model.DownloadOutcome
}

// HTTPDownloader downloads images with an HTTP client.
type HTTPDownloader struct {
	client *http.Client
}

var _ ImageDownloader = (*HTTPDownloader)(nil)

// NewHTTPDownloader creates a downloader using client. If client is nil, a
// client with DefaultTimeout is used.
func NewHTTPDownloader(client *http.Client) *HTTPDownloader {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &HTTPDownloader{client: client}
}

// Download fetches ref and writes it to targetDir under the last segment of
// its URL path, replacing any file of the same name.
//
// URLs without a filename are skipped before any request is made. The body
// is streamed through a temporary file in targetDir and renamed into place,
// so an interrupted download never leaves a truncated image behind.
func (d *HTTPDownloader) Download(ctx context.Context, ref model.ImageRef, targetDir string) model.DownloadOutcome {
	outcome := model.DownloadOutcome{URL: ref.URL}

	name, err := FilenameFromURL(ref.URL)
	if err != nil {
		if errors.Is(err, ErrEmptyFilename) {
			outcome.Skipped = true
			outcome.Err = err
			return outcome
		}
		return failed(outcome, &DownloadError{URL: ref.URL, Err: err})
	}
	dest := filepath.Join(targetDir, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return failed(outcome, &DownloadError{URL: ref.URL, Path: dest, Err: err})
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return failed(outcome, &DownloadError{URL: ref.URL, Path: dest, Err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failed(outcome, &DownloadError{
			URL:        ref.URL,
			Path:       dest,
			StatusCode: resp.StatusCode,
			Err:        statusError(resp.Status),
		})
	}

	n, digest, err := writeFile(dest, resp.Body)
	if err != nil {
		return failed(outcome, &DownloadError{URL: ref.URL, Path: dest, StatusCode: resp.StatusCode, Err: err})
	}

	outcome.Success = true
	outcome.Path = dest
	outcome.BytesWritten = n
	outcome.Digest = digest
	return outcome
}

// tempFilePattern names the partial file a download streams into.
const tempFilePattern = ".spider-*.part"

// writeFile streams r into dest via a temporary file and returns the number
// of bytes written and the hex SHA3-256 digest of the content.
func writeFile(dest string, r io.Reader) (int64, string, error) {
	dir := filepath.Dir(dest)

	// The prefix stays short so any name valid on disk is also valid here
	tmp, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return 0, "", err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	hash := sha3.New256()
	buf := make([]byte, downloadChunkSize)
	n, err := io.CopyBuffer(io.MultiWriter(tmp, hash), r, buf)
	if err != nil {
		cleanup()
		return n, "", err
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return n, "", err
	}
	// CreateTemp uses 0600; saved images are ordinary readable files
	if err := os.Chmod(tmpName, 0644); err != nil { //nolint:gosec // Images are not sensitive
		_ = os.Remove(tmpName)
		return n, "", err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return n, "", err
	}

	return n, hex.EncodeToString(hash.Sum(nil)), nil
}

// FilenameFromURL returns the last segment of rawURL's path.
// It returns ErrEmptyFilename when the path is empty, ends in "/", or ends
// in a dot segment.
func FilenameFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	p := u.Path
	name := p[strings.LastIndex(p, "/")+1:]
	if name == "" || name == "." || name == ".." {
		return "", ErrEmptyFilename
	}
	return name, nil
}

// failed records err on outcome.
func failed(outcome model.DownloadOutcome, err error) model.DownloadOutcome {
	outcome.Err = err
	outcome.Error = err.Error()
	return outcome
}
