// Package staticfs serves collection files from a local directory as an
// http.RoundTripper, so the resource client can read "<dir>/<resource>.json"
// without a collection server. It is read-only.
package staticfs

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

type Transport struct {
	basePath string
}

func New(basePath string) *Transport {
	return &Transport{basePath: basePath}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		if err := req.Body.Close(); err != nil {
			slog.Error("failed to close request body", "error", err)
		}
	}

	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return respond(req, http.StatusMethodNotAllowed, nil), nil
	}

	// The query string is ignored: static files cannot filter, callers
	// filter client side.
	filePath, err := t.safeJoin(strings.TrimPrefix(req.URL.Path, "/"))
	if err != nil {
		return respond(req, http.StatusBadRequest, nil), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return respond(req, http.StatusNotFound, nil), nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", filePath, err)
	}

	if req.Method == http.MethodHead {
		data = nil
	}
	return respond(req, http.StatusOK, data), nil
}

// safeJoin resolves name relative to basePath and rejects directory traversal.
func (t *Transport) safeJoin(name string) (string, error) {
	absBase, err := filepath.Abs(t.basePath)
	if err != nil {
		return "", fmt.Errorf("invalid base path: %w", err)
	}

	absPath, err := filepath.Abs(filepath.Join(t.basePath, name))
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal attempt")
	}
	return absPath, nil
}

func respond(req *http.Request, status int, body []byte) *http.Response {
	header := make(http.Header)
	if body != nil {
		header.Set("Content-Type", "application/json")
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
