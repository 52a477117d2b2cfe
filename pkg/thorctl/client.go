// Package thorctl is the HTTP client backing the thorctl CLI: thin
// request/response wrappers over pkg/api's routes, grounded on the
// Lens skills-repository's S3Storage request shape (explicit base URL,
// bearer token, typed JSON in/out) generalised to an arbitrary Thorium
// server.
package thorctl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Client is a thin wrapper over net/http carrying the server address
// and bearer token every thorctl subcommand needs.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{BaseURL: baseURL, Token: token, HTTP: http.DefaultClient}
}

func (c *Client) do(method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.BaseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

func (c *Client) Get(path string, out interface{}) error           { return c.do(http.MethodGet, path, nil, out) }
func (c *Client) Post(path string, body, out interface{}) error    { return c.do(http.MethodPost, path, body, out) }
func (c *Client) Put(path string, body, out interface{}) error     { return c.do(http.MethodPut, path, body, out) }
func (c *Client) Delete(path string, out interface{}) error        { return c.do(http.MethodDelete, path, nil, out) }

// Download streams a GET response body to w, used by files/repos
// download subcommands.
func (c *Client) Download(path string, w io.Writer) error {
	req, err := http.NewRequest(http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	_, err = io.Copy(w, resp.Body)
	return err
}
