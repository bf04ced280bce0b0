// Package archive downloads the generated project and writes it to disk,
// expanding zip archives into a directory when the destination has no
// extension.
package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/starterkit/starter/internal/client"
	"github.com/starterkit/starter/internal/utils"
)

// FallbackFilename is used when neither the caller nor the server names the
// destination.
const FallbackFilename = "starter.zip"

var (
	// ErrIncompleteTransfer means fewer (or more) bytes arrived than declared.
	ErrIncompleteTransfer = errors.New("incomplete transfer")
	// ErrIO wraps filesystem failures while writing the result.
	ErrIO = errors.New("i/o error")
)

// Fetcher starts an archive download.
type Fetcher interface {
	FetchArchive(ctx context.Context, url string) (*client.Download, error)
}

// Result describes what was written.
type Result struct {
	Path      string
	Extracted bool  // Path is a directory holding the archive's files
	Files     int   // number of files written
	Bytes     int64 // size of the downloaded payload
}

// FetchAndSave downloads url and stores it at destination, falling back to
// the server suggested filename and then to FallbackFilename.
func FetchAndSave(ctx context.Context, f Fetcher, url, destination string) (Result, error) {
	data, suggested, err := Fetch(ctx, f, url)
	if err != nil {
		return Result{}, err
	}
	return Materialize(data, Destination(destination, suggested))
}

// Fetch downloads url completely and returns the payload with the server
// suggested filename, "" when there is none.
func Fetch(ctx context.Context, f Fetcher, url string) ([]byte, string, error) {
	dl, err := f.FetchArchive(ctx, url)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = dl.Body.Close() }()

	data, err := Read(dl)
	if err != nil {
		return nil, "", err
	}
	return data, SuggestedFilename(dl.Header), nil
}

// Read drains the download and checks it against the declared length.
func Read(dl *client.Download) ([]byte, error) {
	data, err := io.ReadAll(dl.Body)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %s: %w", ErrIncompleteTransfer, dl.URL, err)
		}
		return nil, fmt.Errorf("failed to read archive from %s: %w", dl.URL, err)
	}
	if dl.ContentLength >= 0 && int64(len(data)) != dl.ContentLength {
		return nil, fmt.Errorf("%w: expected %d bytes, read %d", ErrIncompleteTransfer, dl.ContentLength, len(data))
	}
	return data, nil
}

// SuggestedFilename returns the quoted filename of a Content-Disposition
// header, or "" when there is none. Only the base name is kept.
func SuggestedFilename(h http.Header) string {
	v := h.Get("Content-Disposition")
	idx := strings.Index(v, "filename=")
	if idx < 0 {
		return ""
	}
	rest := v[idx+len("filename="):]
	if !strings.HasPrefix(rest, `"`) {
		return ""
	}
	end := strings.Index(rest[1:], `"`)
	if end < 0 {
		return ""
	}

	name := filepath.Base(filepath.FromSlash(rest[1 : 1+end]))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return ""
	}
	return name
}

// Destination picks the write location: explicit, then suggested, then
// FallbackFilename.
func Destination(explicit, suggested string) string {
	switch {
	case explicit != "":
		return explicit
	case suggested != "":
		return suggested
	default:
		return FallbackFilename
	}
}

// Materialize writes data to dest. A destination without an extension
// receiving a valid zip archive becomes a directory holding its contents;
// anything else is written as a single file.
func Materialize(data []byte, dest string) (Result, error) {
	if filepath.Ext(dest) == "" {
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		// ErrInsecurePath still yields a reader; Extract rejects those entries
		if err == nil || (zr != nil && errors.Is(err, zip.ErrInsecurePath)) {
			n, err := Extract(zr, dest)
			if err != nil {
				return Result{}, err
			}
			return Result{Path: dest, Extracted: true, Files: n, Bytes: int64(len(data))}, nil
		}
	}

	if err := utils.WriteFile(dest, data); err != nil {
		return Result{}, fmt.Errorf("%w: write %s: %w", ErrIO, dest, err)
	}
	return Result{Path: dest, Files: 1, Bytes: int64(len(data))}, nil
}

// Extract expands zr below dir and returns the number of files written.
// Entries escaping dir are rejected.
func Extract(zr *zip.Reader, dir string) (int, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return 0, fmt.Errorf("%w: create %s: %w", ErrIO, dir, err)
	}

	// Closure to address file descriptors issue with all the deferred .Close() methods
	extractAndWriteFile := func(zf *zip.File) error {
		name := filepath.FromSlash(zf.Name)
		if !filepath.IsLocal(name) {
			return fmt.Errorf("%w: illegal file path in archive: %s", ErrIO, zf.Name)
		}
		destPath := filepath.Join(dir, name)

		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return fmt.Errorf("%w: create %s: %w", ErrIO, destPath, err)
			}
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return fmt.Errorf("%w: create %s: %w", ErrIO, filepath.Dir(destPath), err)
		}

		src, err := zf.Open()
		if err != nil {
			return fmt.Errorf("failed to open %s in archive: %w", zf.Name, err)
		}
		defer src.Close()

		mode := zf.Mode().Perm()
		if mode == 0 {
			mode = 0o644
		}
		dst, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
		if err != nil {
			return fmt.Errorf("%w: create %s: %w", ErrIO, destPath, err)
		}
		defer dst.Close()

		if _, err := io.Copy(dst, src); err != nil {
			return fmt.Errorf("%w: write %s: %w", ErrIO, destPath, err)
		}
		return nil
	}

	var files int
	for _, zf := range zr.File {
		if err := extractAndWriteFile(zf); err != nil {
			return files, err
		}
		if !zf.FileInfo().IsDir() {
			files++
		}
	}
	return files, nil
}
