// Package firestore persists sessions to the remote document store over its REST API.
package firestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/zetatrack/internal/clock"
	"github.com/verte-zerg/zetatrack/internal/model"
)

const (
	DefaultBaseURL  = "https://firestore.googleapis.com/v1"
	DefaultProject  = "smart-zetamac-coach"
	DefaultPageSize = 300

	collection = "sessions"
)

// ErrUnauthorized is returned when the store rejects the credential after a forced refresh.
var ErrUnauthorized = errors.New("unauthorized")

// StatusError is a terminal non-success response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// Credentials issues bearer credentials.
type Credentials interface {
	Acquire(ctx context.Context) (model.Credential, error)
	ForceRefresh(ctx context.Context) (model.Credential, error)
}

// Options configures a Client.
type Options struct {
	HTTP     *http.Client
	BaseURL  string
	Project  string
	PageSize int
	Creds    Credentials
	Clock    clock.Clock
	Logger   *zap.Logger
}

// Client writes and reads session documents.
type Client struct {
	http     *http.Client
	base     string
	pageSize int
	creds    Credentials
	clock    clock.Clock
	logger   *zap.Logger
}

// New builds a Client from opts.
func New(opts Options) *Client {
	c := &Client{
		http:     opts.HTTP,
		pageSize: opts.PageSize,
		creds:    opts.Creds,
		clock:    opts.Clock,
		logger:   opts.Logger,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	base := opts.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	project := opts.Project
	if project == "" {
		project = DefaultProject
	}
	c.base = fmt.Sprintf("%s/projects/%s/databases/(default)/documents/%s", base, url.PathEscape(project), collection)
	if c.pageSize <= 0 {
		c.pageSize = DefaultPageSize
	}
	if c.clock == nil {
		c.clock = clock.Real()
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// SaveSession creates one session document. A 401 triggers exactly one forced
// refresh and resubmission; any further failure is returned.
func (c *Client) SaveSession(ctx context.Context, s model.Session) error {
	cred, err := c.creds.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire credential: %w", err)
	}
	at := s.EndedAt
	if at.IsZero() {
		at = c.clock.Now()
	}
	doc := encodeSession(s, cred.SubjectID, at)

	status, body, err := c.post(ctx, cred.AuthToken, doc)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		c.logger.Info("credential rejected, refreshing before retry")
		cred, err = c.creds.ForceRefresh(ctx)
		if err != nil {
			return fmt.Errorf("failed to refresh credential: %w", err)
		}
		doc.setUserID(cred.SubjectID)
		status, body, err = c.post(ctx, cred.AuthToken, doc)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			return fmt.Errorf("failed to save session: %w", ErrUnauthorized)
		}
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("failed to save session: %w", &StatusError{Status: status, Body: body})
	}
	return nil
}

// ListSessions returns every session owned by the current subject.
func (c *Client) ListSessions(ctx context.Context) ([]model.StoredSession, error) {
	cred, err := c.creds.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire credential: %w", err)
	}
	var docs []document
	pageToken := ""
	retried := false
	for {
		page, status, body, err := c.list(ctx, cred.AuthToken, pageToken)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			// One forced refresh per listing, whichever page hits it.
			if retried {
				return nil, fmt.Errorf("failed to list sessions: %w", ErrUnauthorized)
			}
			retried = true
			cred, err = c.creds.ForceRefresh(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to refresh credential: %w", err)
			}
			continue
		}
		if status < 200 || status > 299 {
			return nil, fmt.Errorf("failed to list sessions: %w", &StatusError{Status: status, Body: body})
		}
		docs = append(docs, page.Documents...)
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	sessions := make([]model.StoredSession, 0, len(docs))
	for _, d := range docs {
		if stringField(d.Fields, "userId") != cred.SubjectID {
			continue
		}
		sessions = append(sessions, decodeSession(d))
	}
	return sessions, nil
}

func (c *Client) post(ctx context.Context, token string, doc document) (int, string, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return 0, "", fmt.Errorf("failed to encode session: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base, bytes.NewReader(payload))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	status, data, err := c.do(req)
	return status, string(data), err
}

// list fetches one page. Undecodable bodies yield an empty page.
func (c *Client) list(ctx context.Context, token, pageToken string) (listResponse, int, string, error) {
	u, err := url.Parse(c.base)
	if err != nil {
		return listResponse{}, 0, "", err
	}
	q := u.Query()
	q.Set("pageSize", strconv.Itoa(c.pageSize))
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	u.RawQuery = q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return listResponse{}, 0, "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	status, data, err := c.do(req)
	if err != nil {
		return listResponse{}, 0, "", err
	}
	var page listResponse
	if status >= 200 && status <= 299 {
		if err := json.Unmarshal(data, &page); err != nil {
			c.logger.Warn("malformed session list response", zap.Error(err))
			page = listResponse{}
		}
	}
	return page, status, string(data), nil
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			// Best-effort body close.
			_ = cerr
		}
	}()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, data, nil
}
