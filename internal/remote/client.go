// Package remote implements a thin typed client for the version-controlled
// content host (a GitHub-Contents-compatible HTTP API). It surfaces typed
// errors and never retries internally; retry policy belongs to the caller.
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/starford/ehwaz/internal/apperr"
)

// Target identifies the remote repository a call operates on.
type Target struct {
	Owner  string
	Repo   string
	Branch string
}

// EntryKind distinguishes directory listing entries.
type EntryKind string

const (
	KindFile      EntryKind = "file"
	KindDirectory EntryKind = "dir"
)

// Entry is one item of a directory listing.
type Entry struct {
	Name string
	Kind EntryKind
}

// CredentialSource supplies the Authorization header for outgoing requests.
// The header value is an opaque scheme+token string inserted verbatim.
type CredentialSource interface {
	HasAuthentication() bool
	AuthHeader() (string, bool)
}

// Client talks to the remote content API. It keeps no local state beyond its
// HTTP client; every network or decode failure surfaces as a typed error.
type Client struct {
	base  string
	hc    *http.Client
	creds CredentialSource
}

// NewClient creates a client for the given API base URL
// (e.g. https://api.github.com).
func NewClient(apiBase string, creds CredentialSource) *Client {
	return &Client{
		base:  strings.TrimRight(apiBase, "/"),
		hc:    &http.Client{Timeout: 30 * time.Second},
		creds: creds,
	}
}

// contentFile is the API's file representation.
type contentFile struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	SHA     string `json:"sha"`
}

// ReadFile fetches a file and returns its decoded content together with the
// version token (sha) required to overwrite it. A 404 maps to
// apperr.ErrNotFound; undecodable payloads map to apperr.ErrDecoding.
func (c *Client) ReadFile(ctx context.Context, t Target, path string) ([]byte, string, error) {
	body, status, err := c.do(ctx, http.MethodGet, c.contentURL(t, path, true), nil)
	if err != nil {
		return nil, "", err
	}
	if err := checkStatus(status, body); err != nil {
		return nil, "", err
	}

	var f contentFile
	if err := json.Unmarshal(body, &f); err != nil {
		return nil, "", fmt.Errorf("remote: parse file response: %w", apperr.ErrDecoding)
	}

	// Content arrives base64-encoded with embedded newlines.
	raw, err := base64.StdEncoding.DecodeString(strings.Map(dropSpace, f.Content))
	if err != nil {
		return nil, "", fmt.Errorf("remote: base64 content: %w", apperr.ErrDecoding)
	}
	if !utf8.Valid(raw) {
		return nil, "", fmt.Errorf("remote: content is not valid UTF-8: %w", apperr.ErrDecoding)
	}
	return raw, f.SHA, nil
}

// WriteFile creates or updates a file. It probes for the current version
// token first (ignoring not-found) and sends it with the write, so an
// existing file is updated in place while a missing one is created.
func (c *Client) WriteFile(ctx context.Context, t Target, path string, content []byte, message string) error {
	sha := ""
	if _, probed, err := c.ReadFile(ctx, t, path); err == nil {
		sha = probed
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}

	payload := map[string]any{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(content),
		"branch":  t.Branch,
	}
	if sha != "" {
		payload["sha"] = sha
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("remote: marshal write request: %w", apperr.ErrEncoding)
	}

	body, status, err := c.do(ctx, http.MethodPut, c.contentURL(t, path, false), reqBody)
	if err != nil {
		return err
	}
	return checkStatus(status, body)
}

// ListFiles lists a directory. A 404 (directory not yet created) and a path
// that resolves to a single file both return an empty list, because an
// uninitialised repository is an expected steady state. 401/403 map to
// apperr.ErrAuthentication.
func (c *Client) ListFiles(ctx context.Context, t Target, path string) ([]Entry, error) {
	body, status, err := c.do(ctx, http.MethodGet, c.contentURL(t, path, true), nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err := checkStatus(status, body); err != nil {
		return nil, err
	}

	var items []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &items); err != nil {
		// A single file decodes as an object, not an array.
		return nil, nil
	}
	out := make([]Entry, 0, len(items))
	for _, it := range items {
		kind := KindFile
		if it.Type == "dir" {
			kind = KindDirectory
		}
		out = append(out, Entry{Name: it.Name, Kind: kind})
	}
	return out, nil
}

// EnsureRepo creates the target repository if it does not exist yet. The
// call is idempotent: an already-existing repository is not an error.
func (c *Client) EnsureRepo(ctx context.Context, t Target) error {
	u := fmt.Sprintf("%s/repos/%s/%s", c.base, url.PathEscape(t.Owner), url.PathEscape(t.Repo))
	body, status, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if status >= 200 && status < 300 {
		return nil
	}
	if status != http.StatusNotFound {
		return checkStatus(status, body)
	}

	reqBody, _ := json.Marshal(map[string]any{
		"name":      t.Repo,
		"private":   true,
		"auto_init": true,
	})
	body, status, err = c.do(ctx, http.MethodPost, c.base+"/user/repos", reqBody)
	if err != nil {
		return err
	}
	return checkStatus(status, body)
}

// contentURL builds /repos/{owner}/{repo}/contents/{path}, optionally with a
// ref query for reads.
func (c *Client) contentURL(t Target, path string, withRef bool) string {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		c.base, url.PathEscape(t.Owner), url.PathEscape(t.Repo), strings.Join(segs, "/"))
	if withRef && t.Branch != "" {
		u += "?ref=" + url.QueryEscape(t.Branch)
	}
	return u
}

// do executes one HTTP request and returns the response body and status.
func (c *Client) do(ctx context.Context, method, u string, body []byte) ([]byte, int, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, 0, fmt.Errorf("remote: build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.creds != nil {
		if h, ok := c.creds.AuthHeader(); ok {
			req.Header.Set("Authorization", h)
		}
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("remote: %s %s: %w", method, u, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("remote: read response: %w", err)
	}
	return data, resp.StatusCode, nil
}

// checkStatus maps a non-2xx status to the error taxonomy.
func checkStatus(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperr.ErrAuthentication
	case status == http.StatusNotFound:
		return apperr.ErrNotFound
	default:
		return &apperr.APIError{StatusCode: status, Detail: apiMessage(body)}
	}
}

// apiMessage extracts the host's error message, if any.
func apiMessage(body []byte) string {
	var m struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &m); err != nil {
		return ""
	}
	return m.Message
}

func dropSpace(r rune) rune {
	switch r {
	case '\n', '\r', ' ', '\t':
		return -1
	}
	return r
}
