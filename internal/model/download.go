package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type PullOptions struct {
	// BaseURL points at a directory serving manifest.yaml and the files it
	// names.
	BaseURL string
	OutDir  string
	Token   string
	Client  *http.Client
	Stdout  io.Writer
}

// ErrAccessDenied is returned when the bundle host rejects the credentials.
type ErrAccessDenied struct {
	URL string
}

func (e *ErrAccessDenied) Error() string {
	return fmt.Sprintf("access denied for %s; provide --token", e.URL)
}

const (
	maxManifestBytes = 1 << 20
	progressEvery    = 700 * time.Millisecond
)

// puller fetches bundle files relative to a base URL. Output lines from
// concurrent downloads are serialized through mu.
type puller struct {
	client *http.Client
	base   *url.URL
	token  string
	outDir string

	mu     sync.Mutex
	stdout io.Writer
}

func (p *puller) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, _ = fmt.Fprintf(p.stdout, format, args...)
}

// Pull downloads a bundle published over HTTP. The weights and vocabulary
// download concurrently; files already present with a matching checksum are
// skipped. The remote manifest is written only after every file verifies.
func Pull(ctx context.Context, opts PullOptions) (Manifest, error) {
	if opts.BaseURL == "" {
		return Manifest{}, errors.New("base url is required")
	}

	if opts.OutDir == "" {
		return Manifest{}, errors.New("out dir is required")
	}

	base, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/") + "/")
	if err != nil {
		return Manifest{}, fmt.Errorf("parse base url: %w", err)
	}

	p := &puller{
		client: opts.Client,
		base:   base,
		token:  opts.Token,
		outDir: opts.OutDir,
		stdout: opts.Stdout,
	}
	if p.client == nil {
		p.client = http.DefaultClient
	}
	if p.stdout == nil {
		p.stdout = io.Discard
	}

	m, err := p.manifest(ctx)
	if err != nil {
		return Manifest{}, err
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return Manifest{}, fmt.Errorf("create out dir: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, f := range []BundleFile{m.Weights, m.Vocabulary} {
		g.Go(func() error { return p.file(gctx, f) })
	}

	if err := g.Wait(); err != nil {
		return Manifest{}, err
	}

	if err := WriteManifest(opts.OutDir, m); err != nil {
		return Manifest{}, err
	}

	return m, nil
}

func (p *puller) manifest(ctx context.Context) (Manifest, error) {
	body, err := p.get(ctx, ManifestFile)
	if err != nil {
		return Manifest{}, err
	}
	defer body.Close()

	raw, err := io.ReadAll(io.LimitReader(body, maxManifestBytes))
	if err != nil {
		return Manifest{}, fmt.Errorf("read remote manifest: %w", err)
	}

	return ParseManifest(raw)
}

// file brings one bundle file up to date under outDir.
func (p *puller) file(ctx context.Context, f BundleFile) error {
	if f.SHA256 == "" {
		return fmt.Errorf("remote manifest has no checksum for %s", f.Path)
	}

	rel := path.Clean(f.Path)
	if rel == ".." || strings.HasPrefix(rel, "../") || path.IsAbs(rel) {
		return fmt.Errorf("remote manifest path %q escapes the bundle", f.Path)
	}

	dst := filepath.Join(p.outDir, filepath.FromSlash(rel))
	want := strings.ToLower(f.SHA256)

	if have, err := localSHA256(dst); err != nil {
		return err
	} else if have == want {
		p.printf("skip %s (checksum match)\n", rel)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dst), err)
	}

	p.printf("download %s -> %s\n", p.base.JoinPath(rel), dst)

	got, err := p.download(ctx, rel, dst)
	if err != nil {
		return err
	}

	if got != want {
		_ = os.Remove(dst)
		return fmt.Errorf("checksum mismatch for %s: expected %s got %s", rel, want, got)
	}

	p.printf("verified %s (sha256=%s)\n", rel, got)

	return nil
}

// download streams rel into dst through a temp file and returns the hex
// SHA-256 of what was written.
func (p *puller) download(ctx context.Context, rel, dst string) (string, error) {
	body, err := p.get(ctx, rel)
	if err != nil {
		return "", err
	}
	defer body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*.part")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	h := sha256.New()
	prog := &progress{name: rel, out: p.printf, last: time.Now()}

	if _, err := io.Copy(io.MultiWriter(tmp, h, prog), body); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("download %s: %w", rel, err)
	}

	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("move %s into place: %w", rel, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// get issues an authenticated GET for rel and returns the body of a 2xx
// response.
func (p *puller) get(ctx context.Context, rel string) (io.ReadCloser, error) {
	src := p.base.JoinPath(rel).String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", src, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		return nil, &ErrAccessDenied{URL: src}
	case resp.StatusCode/100 != 2:
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: %s", src, resp.Status)
	}

	return resp.Body, nil
}

// localSHA256 hashes an existing file, returning "" when it is absent.
func localSHA256(path string) (string, error) {
	fi, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	if fi.IsDir() {
		return "", fmt.Errorf("expected file at %s, found directory", path)
	}

	return fileSHA256(path)
}

// progress counts bytes and reports at most once per progressEvery.
type progress struct {
	name    string
	written int64
	last    time.Time
	out     func(format string, args ...any)
}

func (p *progress) Write(b []byte) (int, error) {
	p.written += int64(len(b))

	if time.Since(p.last) >= progressEvery {
		p.out("  %s: %d bytes\n", p.name, p.written)
		p.last = time.Now()
	}

	return len(b), nil
}
