package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

type pageShape int

const (
	// the body itself is the item list
	shapeSequence pageShape = iota
	// the item list sits under an "items" key, as search endpoints return it
	shapeKeyed
)

// page is one parsed response body
type page struct {
	shape pageShape
	items []json.RawMessage
}

func parsePage(body []byte) (page, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return page{}, fmt.Errorf("empty response body")
	}

	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return page{}, fmt.Errorf("failed to decode page: %w", err)
		}
		return page{shape: shapeSequence, items: items}, nil
	case '{':
		var keyed struct {
			Items []json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(trimmed, &keyed); err != nil {
			return page{}, fmt.Errorf("failed to decode page: %w", err)
		}
		return page{shape: shapeKeyed, items: keyed.Items}, nil
	default:
		return page{}, fmt.Errorf("unexpected page body starting with %q", trimmed[0])
	}
}

func decodeItems[T any](p page) ([]T, error) {
	out := make([]T, 0, len(p.items))
	for i, raw := range p.items {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("failed to decode item %d: %w", i, err)
		}
		out = append(out, item)
	}
	return out, nil
}

// nextPageURL returns the target of the rel="next" entry of a Link header
func nextPageURL(link string) string {
	for _, entry := range strings.Split(link, ",") {
		parts := strings.Split(entry, ";")
		if len(parts) < 2 {
			continue
		}
		for _, attr := range parts[1:] {
			attr = strings.ReplaceAll(strings.TrimSpace(attr), " ", "")
			if attr == `rel="next"` || attr == "rel=next" {
				target := strings.TrimSpace(parts[0])
				target = strings.TrimPrefix(target, "<")
				return strings.TrimSuffix(target, ">")
			}
		}
	}
	return ""
}

func withParams(rawURL string, params url.Values) string {
	if len(params) == 0 {
		return rawURL
	}
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + params.Encode()
}

// paginate walks a REST listing until the server stops handing out a next link.
// Only the first request carries params; next links are followed verbatim.
func paginate[T any](ctx context.Context, c *Client, startURL string, params url.Values) ([]T, error) {
	var all []T
	next := withParams(startURL, params)
	for next != "" {
		p, link, err := c.fetchPage(ctx, next)
		if err != nil {
			return nil, err
		}
		batch, err := decodeItems[T](p)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		next = nextPageURL(link)
	}
	if all == nil {
		all = []T{}
	}
	return all, nil
}

// fetchPage performs one GET under the retry policy, waiting out rate limits
// and reissuing the same request afterwards.
func (c *Client) fetchPage(ctx context.Context, pageURL string) (page, string, error) {
	for {
		var (
			p    page
			link string
		)
		err := c.withRetry(ctx, pageURL, func() error {
			var err error
			p, link, err = c.getOnce(ctx, pageURL)
			return err
		})
		if rl, ok := asRateLimit(err); ok {
			if !c.waitOnRateLimit {
				return page{}, "", fmt.Errorf("%w: resets in %s", ErrRateLimited, rl.wait)
			}
			c.log.Warn("Rate limit exceeded, waiting", "wait", rl.wait, "url", pageURL)
			if err := c.sleep(ctx, rl.wait); err != nil {
				return page{}, "", err
			}
			continue
		}
		if err != nil {
			return page{}, "", err
		}
		return p, link, nil
	}
}

func (c *Client) getOnce(ctx context.Context, pageURL string) (page, string, error) {
	resp, err := c.rest.RequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return page{}, "", c.classify(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return page{}, "", &transientError{err: fmt.Errorf("failed to read response body: %w", err)}
	}

	p, err := parsePage(body)
	if err != nil {
		return page{}, "", err
	}
	return p, resp.Header.Get("Link"), nil
}
