package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"healthcare-rag/internal/logger"
	"healthcare-rag/internal/model"
	"healthcare-rag/internal/pkg/pdfextract"
)

var ErrFetch = errors.New("fetch source failed")

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxBodyBytes = 20 << 20
	defaultUserAgent    = "healthrag/1.0"
)

type Options struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	UserAgent    string
	// ContinueOnError skips failing URLs instead of failing the whole load.
	ContinueOnError bool
}

// Failure records a URL skipped by a best-effort load.
type Failure struct {
	URL string
	Err error
}

type Result struct {
	Documents []model.Document
	Skipped   []Failure
}

// Fetcher turns source URLs into plain-text documents. HTML, PDF and plain
// text responses are supported.
type Fetcher struct {
	client *http.Client
	opts   Options
	log    *logger.Logger
}

func New(opts Options, log *logger.Logger) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Fetcher{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
		log:    log.With("component", "fetcher"),
	}
}

// Load fetches every URL in order. In strict mode the first failure aborts the
// load; otherwise failures are collected and only an all-failed load errors.
func (f *Fetcher) Load(ctx context.Context, urls []string) (*Result, error) {
	res := &Result{Documents: make([]model.Document, 0, len(urls))}
	for _, u := range urls {
		doc, err := f.fetch(ctx, u)
		if err != nil {
			if !f.opts.ContinueOnError || ctx.Err() != nil {
				return nil, err
			}
			f.log.Warn("skip source", "url", u, "error", err)
			res.Skipped = append(res.Skipped, Failure{URL: u, Err: err})
			continue
		}
		res.Documents = append(res.Documents, doc)
	}
	if len(res.Documents) == 0 && len(res.Skipped) > 0 {
		return nil, fmt.Errorf("%w: all %d sources failed, last: %w", ErrFetch, len(res.Skipped), res.Skipped[len(res.Skipped)-1].Err)
	}
	return res, nil
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) (model.Document, error) {
	source := strings.TrimSpace(rawURL)
	parsed, err := url.Parse(source)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return model.Document{}, fmt.Errorf("%w: %q is not an http(s) url", ErrFetch, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return model.Document{}, fmt.Errorf("%w: build request for %s: %w", ErrFetch, source, err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return model.Document{}, fmt.Errorf("%w: %s: %w", ErrFetch, source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.Document{}, fmt.Errorf("%w: %s: status %d", ErrFetch, source, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes+1))
	if err != nil {
		return model.Document{}, fmt.Errorf("%w: read %s: %w", ErrFetch, source, err)
	}
	if int64(len(body)) > f.opts.MaxBodyBytes {
		return model.Document{}, fmt.Errorf("%w: %s: body exceeds %d bytes", ErrFetch, source, f.opts.MaxBodyBytes)
	}

	text, err := extract(resp.Header.Get("Content-Type"), parsed.Path, body)
	if err != nil {
		return model.Document{}, fmt.Errorf("%w: extract %s: %w", ErrFetch, source, err)
	}
	if strings.TrimSpace(text) == "" {
		return model.Document{}, fmt.Errorf("%w: %s: no extractable text", ErrFetch, source)
	}

	f.log.Debug("fetched source", "url", source, "bytes", len(body), "chars", utf8.RuneCountInString(text))
	return model.Document{Source: source, Text: text}, nil
}

func extract(contentType, path string, body []byte) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch {
	case mediaType == "application/pdf" || pdfextract.IsPDF(body) ||
		(mediaType == "" || mediaType == "application/octet-stream") && strings.HasSuffix(strings.ToLower(path), ".pdf"):
		return pdfextract.ExtractText(body)
	case mediaType == "text/html" || mediaType == "application/xhtml+xml" || looksLikeHTML(body):
		return extractHTML(bytes.NewReader(body))
	case strings.HasPrefix(mediaType, "text/") || mediaType == "" || utf8.Valid(body):
		return normalizePlainText(string(body)), nil
	default:
		return "", fmt.Errorf("unsupported content type %q", mediaType)
	}
}

func looksLikeHTML(body []byte) bool {
	head := bytes.ToLower(bytes.TrimSpace(body[:min(len(body), 512)]))
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html"))
}

func normalizePlainText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimSpace(s)
}
