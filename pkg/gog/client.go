package gog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Dimensional/GalaxyDL/pkg/store"
)

// Client wraps an http.Client with the fetch semantics the archive engine
// relies on: any non-success status is reported as absence (nil result, nil
// error); errors are reserved for transport-level failures. Transient
// statuses are retried with backoff before being treated as absent.
type Client struct {
	HTTP *http.Client
	// Authorization, when set, supplies the bearer token attached to every
	// request. Token lifecycle lives behind this closure.
	Authorization func(ctx context.Context) (string, error)
	// MaxAttempts bounds retries for transient failures. Zero means 3.
	MaxAttempts int
	Logger      *slog.Logger
}

// NewClient builds a Client around httpClient (http.DefaultClient if nil).
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{HTTP: httpClient, MaxAttempts: 3}
}

func (c *Client) attempts() int {
	if c.MaxAttempts <= 0 {
		return 3
	}
	return c.MaxAttempts
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *Client) do(ctx context.Context, method, url string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", url, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if c.Authorization != nil {
		token, err := c.Authorization(ctx)
		if err != nil {
			return nil, fmt.Errorf("authorize request %s: %w", url, err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return retryDo(ctx, c.HTTP, req, c.attempts())
}

// GetRawBytes fetches url and returns the body, or (nil, nil) for any
// non-success status.
func (c *Client) GetRawBytes(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger().Debug("upstream absent", "url", url, "status", resp.StatusCode)
		io.Copy(io.Discard, resp.Body)
		return nil, nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body %s: %w", url, err)
	}
	return data, nil
}

// GetJSON fetches url and parses the body as a Document, or (nil, nil) for
// any non-success status.
func (c *Client) GetJSON(ctx context.Context, url string) (Document, error) {
	data, err := c.GetRawBytes(ctx, url)
	if err != nil || data == nil {
		return nil, err
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("get json %s: %w", url, err)
	}
	return doc, nil
}

// GetCompressedJSON fetches url, transparently decompressing a
// zlib/gzip/zstd body before parsing. It returns the parsed document, the
// raw (still-compressed) bytes for verbatim persistence, and the response
// headers; (nil, nil, nil, nil) signals absence.
func (c *Client) GetCompressedJSON(ctx context.Context, url string) (Document, []byte, http.Header, error) {
	resp, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger().Debug("upstream absent", "url", url, "status", resp.StatusCode)
		io.Copy(io.Discard, resp.Body)
		return nil, nil, nil, nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read body %s: %w", url, err)
	}
	plain, _ := store.TryDecompress(raw)
	doc, err := ParseDocument(plain)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("get compressed json %s: %w", url, err)
	}
	return doc, raw, resp.Header, nil
}

// GetRange fetches the byte window [from, to] of url via a Range request.
// Servers answering 200 with the full body are accepted for zero-offset
// windows; anything else non-success is absence.
func (c *Client) GetRange(ctx context.Context, url string, from, to int64) ([]byte, error) {
	header := http.Header{}
	header.Set("Range", fmt.Sprintf("bytes=%d-%d", from, to))
	resp, err := c.do(ctx, http.MethodGet, url, header)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusPartialContent:
	case http.StatusOK:
		if from != 0 {
			io.Copy(io.Discard, resp.Body)
			return nil, nil
		}
	default:
		c.logger().Debug("range absent", "url", url, "status", resp.StatusCode, "from", from, "to", to)
		io.Copy(io.Discard, resp.Body)
		return nil, nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read range body %s: %w", url, err)
	}
	// A 200 answer carries the whole file; trim to the requested window.
	if resp.StatusCode == http.StatusOK && int64(len(data)) > to+1 {
		data = data[:to+1]
	}
	return data, nil
}

// ContentLength issues a HEAD request and returns the declared length, or
// -1 when the server does not answer with one.
func (c *Client) ContentLength(ctx context.Context, url string) (int64, error) {
	resp, err := c.do(ctx, http.MethodHead, url, nil)
	if err != nil {
		return -1, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return -1, nil
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			return n, nil
		}
	}
	return -1, nil
}
