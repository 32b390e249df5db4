package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type workflowClient struct {
	baseURL string
	http    *http.Client
}

func newClient() *workflowClient {
	return &workflowClient{
		baseURL: resolvedServer(),
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// newRequest builds a request with the caller identity headers attached.
func (c *workflowClient) newRequest(method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal error: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("request creation failed: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user := resolvedUser(); user != "" {
		req.Header.Set("X-Remote-User", user)
	}
	if roles := resolvedRoles(); len(roles) > 0 {
		req.Header.Set("X-Remote-Role", strings.Join(roles, ","))
	}
	if regions := resolvedRegions(); len(regions) > 0 {
		req.Header.Set("X-Remote-Region", strings.Join(regions, ","))
	}
	return req, nil
}

func (c *workflowClient) do(method, path string, body any, v any) error {
	req, err := c.newRequest(method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if v != nil {
		return json.NewDecoder(resp.Body).Decode(v)
	}
	return nil
}

// getJSON performs a GET request and decodes the response.
func (c *workflowClient) getJSON(path string, v any) error {
	return c.do(http.MethodGet, path, nil, v)
}

// getRaw performs a GET request and returns the raw JSON.
func (c *workflowClient) getRaw(path string) (map[string]any, error) {
	var result map[string]any
	if err := c.do(http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// postJSON performs a POST request with a JSON body and decodes the response.
func (c *workflowClient) postJSON(path string, body any, v any) error {
	return c.do(http.MethodPost, path, body, v)
}

// patchJSON performs a PATCH request with a JSON body and decodes the response.
func (c *workflowClient) patchJSON(path string, body any, v any) error {
	return c.do(http.MethodPatch, path, body, v)
}

// putJSON performs a PUT request with a JSON body and decodes the response.
func (c *workflowClient) putJSON(path string, body any, v any) error {
	return c.do(http.MethodPut, path, body, v)
}

// deleteJSON performs a DELETE request.
func (c *workflowClient) deleteJSON(path string) error {
	return c.do(http.MethodDelete, path, nil, nil)
}
