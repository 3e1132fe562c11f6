// Package lms fetches course members and groups from learning-management
// systems and returns them as roster drafts.
package lms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/repo-edu/repo-edu-sub001/internal/roster"
)

// ErrorKind classifies LMS failures so callers can tell them apart from an
// empty course.
type ErrorKind string

const (
	ErrAuth        ErrorKind = "auth"
	ErrNetwork     ErrorKind = "network"
	ErrAPI         ErrorKind = "api"
	ErrUnsupported ErrorKind = "unsupported"
)

// Error is returned for every failed LMS call.
type Error struct {
	Kind    ErrorKind
	LMS     string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s error", e.LMS, e.Kind)
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// Course identifies the course a roster was fetched from.
type Course struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Client is the LMS capability surface.
type Client interface {
	Kind() roster.LMSKind
	FetchCourse(ctx context.Context, courseID string) (*Course, error)
	FetchCourseUsers(ctx context.Context, courseID string) ([]roster.MemberDraft, error)
	FetchCourseGroups(ctx context.Context, courseID string) ([]roster.GroupSetDraft, error)
}

// Config selects and configures a client.
type Config struct {
	Kind    roster.LMSKind
	BaseURL string
	Token   string
}

// New returns the Client for cfg.
func New(cfg Config) (Client, error) {
	switch cfg.Kind {
	case roster.LMSCanvas:
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("canvas requires a base URL")
		}
		return NewCanvas(cfg.BaseURL, cfg.Token), nil
	case roster.LMSNRPS:
		return NewNRPS(cfg.Token), nil
	case roster.LMSNone:
		return nil, fmt.Errorf("no LMS configured")
	default:
		return nil, fmt.Errorf("unsupported LMS kind: %s", cfg.Kind)
	}
}

// pager walks Link-paginated JSON endpoints.
type pager struct {
	lms    string
	accept string
	token  string
	client *http.Client
}

func newPager(lms, accept, token string) *pager {
	return &pager{lms: lms, accept: accept, token: token, client: &http.Client{Timeout: 30 * time.Second}}
}

var nextLink = regexp.MustCompile(`<([^>]+)>\s*;\s*rel="?next"?`)

// parseNextLink extracts the rel="next" target from a Link header.
func parseNextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		if m := nextLink.FindStringSubmatch(part); m != nil {
			return m[1]
		}
	}
	return ""
}

// get fetches one page and returns the next page URL, if any.
func (p *pager) get(ctx context.Context, url string, out any) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &Error{Kind: ErrAPI, LMS: p.lms, Err: err}
	}
	req.Header.Set("Accept", p.accept)
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &Error{Kind: ErrNetwork, LMS: p.lms, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Kind: ErrNetwork, LMS: p.lms, Err: err}
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", &Error{Kind: ErrAuth, LMS: p.lms, Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", &Error{Kind: ErrAPI, LMS: p.lms, Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return "", &Error{Kind: ErrAPI, LMS: p.lms, Message: "malformed response", Err: err}
	}
	return parseNextLink(resp.Header.Get("Link")), nil
}

// getAll follows next links from url, calling onPage with each decoded page.
func getAll[T any](ctx context.Context, p *pager, url string, onPage func(T)) error {
	for url != "" {
		var page T
		next, err := p.get(ctx, url, &page)
		if err != nil {
			return err
		}
		onPage(page)
		url = next
	}
	return nil
}
