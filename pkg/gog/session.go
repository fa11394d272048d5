package gog

import (
	"context"
	"fmt"
	"strings"
)

// SessionProvider supplies a currently valid bearer credential and the
// short-lived signed CDN links derived from it. Token lifecycle (refresh,
// storage) belongs entirely to the provider; the archive engine only asks
// for whatever is valid right now.
type SessionProvider interface {
	// AccessToken returns a bearer token valid at the time of the call.
	AccessToken(ctx context.Context) (string, error)
	// SecureLinks returns signed CDN endpoints authorizing content fetches
	// for a game. path is the CDN-relative prefix the links should cover.
	SecureLinks(ctx context.Context, gameID string, generation int, path string) ([]SecureLink, error)
}

// SecureLink is one signed CDN endpoint as issued upstream: a URL template
// with {placeholder} slots and the parameter values to fill them.
type SecureLink struct {
	URLFormat  string            `json:"url_format"`
	Parameters map[string]string `json:"parameters"`
}

// URL expands the link's template with its parameters.
func (l SecureLink) URL() string {
	return l.expand(l.Parameters)
}

// URLWithPath expands the template with the link's parameters but a
// replacement path, which is how per-chunk URLs are minted from one link.
func (l SecureLink) URLWithPath(path string) string {
	params := make(map[string]string, len(l.Parameters))
	for k, v := range l.Parameters {
		params[k] = v
	}
	params["path"] = path
	return l.expand(params)
}

func (l SecureLink) expand(params map[string]string) string {
	url := l.URLFormat
	for k, v := range params {
		url = strings.ReplaceAll(url, "{"+k+"}", v)
	}
	return url
}

// StaticSession is a SessionProvider carrying a pre-issued token. It covers
// the testing and scripted paths where the interactive login flow (out of
// scope here) has already produced a credential; secure links are fetched
// through the supplied client.
type StaticSession struct {
	Token     string
	Client    *Client
	Endpoints Endpoints
}

func (s *StaticSession) AccessToken(ctx context.Context) (string, error) {
	if s.Token == "" {
		return "", fmt.Errorf("static session: no token configured")
	}
	return s.Token, nil
}

func (s *StaticSession) SecureLinks(ctx context.Context, gameID string, generation int, path string) ([]SecureLink, error) {
	doc, err := s.Client.GetJSON(ctx, s.Endpoints.SecureLinkURL(gameID, generation, path))
	if err != nil {
		return nil, fmt.Errorf("secure links for %s: %w", gameID, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("secure links for %s: upstream returned nothing", gameID)
	}
	var links []SecureLink
	for _, u := range doc.Documents("urls") {
		link := SecureLink{
			URLFormat:  u.String("url_format", ""),
			Parameters: map[string]string{},
		}
		if params, ok := u.GetDocument("parameters"); ok {
			for k := range params {
				if v, ok := params.GetString(k); ok {
					link.Parameters[k] = v
				} else if n, ok := params.GetInt(k); ok {
					link.Parameters[k] = fmt.Sprintf("%d", n)
				}
			}
		}
		// Generation-1 responses may carry a plain url instead of a template.
		if link.URLFormat == "" {
			if plain, ok := u.GetString("url"); ok {
				link.URLFormat = plain
			}
		}
		if link.URLFormat != "" {
			links = append(links, link)
		}
	}
	if len(links) == 0 {
		return nil, fmt.Errorf("secure links for %s: no usable endpoints in response", gameID)
	}
	return links, nil
}
