package restgw

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

// Client talks to the content backend over HTTP and translates between the
// wire shapes and the domain types. It owns no business logic: every call
// maps to exactly one endpoint and either resolves with the typed payload or
// fails with one of the core sentinels / core.ValidationError. No retries.
type Client struct {
	base   *url.URL
	http   *http.Client
	token  string
	viewer core.Viewer
}

func NewClient(conf *core.Config, viewer core.Viewer) (*Client, error) {
	base, err := url.Parse(conf.Backend.BaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing backend base URL")
	}
	return &Client{
		base:   base,
		http:   &http.Client{Timeout: conf.Backend.Timeout},
		token:  conf.Backend.Token,
		viewer: viewer,
	}, nil
}

// do sends one JSON request; out may be nil for endpoints with no body.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		body = bytes.NewReader(buf)
	}

	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("X-Viewer-Id", c.viewer.ID)
	req.Header.Set("X-Viewer-Name", c.viewer.Name)
	req.Header.Set("X-Viewer-Role", c.viewer.Role)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(core.ErrTransport, "%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return c.mapError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(core.ErrTransport, "decoding response: %v", err)
	}
	return nil
}

// mapError folds an HTTP failure into the gateway error taxonomy.
func (c *Client) mapError(resp *http.Response) error {
	raw, _ := ioutil.ReadAll(io.LimitReader(resp.Body, 1<<16))

	switch resp.StatusCode {
	case http.StatusNotFound:
		return core.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return core.ErrUnauthorized
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		// either {"error": "..."} or a {field: message} map
		var plain struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(raw, &plain); err == nil && plain.Error != "" {
			return core.NewValidationError(errors.New(plain.Error))
		}
		var fields map[string]string
		if err := json.Unmarshal(raw, &fields); err == nil && len(fields) > 0 {
			flds := make([]core.FieldError, 0, len(fields))
			for f, msg := range fields {
				flds = append(flds, core.FieldError{Field: f, Error: msg})
			}
			return core.NewValidationError(errors.New("invalid input"), flds...)
		}
		return core.NewValidationError(errors.New(strings.TrimSpace(string(raw))))
	}
	return errors.Wrapf(core.ErrTransport, "backend returned %d", resp.StatusCode)
}
