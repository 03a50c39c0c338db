// Package client is a thin HTTP client for a herodb server, mirroring the
// shape of the store's own Get/Put/Delete/Keys/Entries/Trees contract so
// callers can swap an in-process Store for a remote one without
// restructuring call sites. It keeps its own query cache, independent of
// any server-side cache, since the two only ever agree when a call is
// pinned to a commit_sha.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/herodb/herodb/store/cache"
)

// Client talks to one store on a herodb server.
type Client struct {
	baseURL    string
	store      string
	httpClient *http.Client
	queries    *cache.QueryCache
}

// New creates a Client for store at baseURL (e.g. "http://localhost:8080").
func New(baseURL, store string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		store:      store,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		queries:    cache.New(cache.NewLRU(cache.DefaultLRUCapacity), 0),
	}
}

// GetOptions parameterizes Get.
type GetOptions struct {
	Branch    string
	CommitSHA string
	Shallow   bool
}

// Get fetches the value at path.
func (c *Client) Get(path string, opts GetOptions) (any, error) {
	cacheable := opts.CommitSHA != ""
	cacheKey := fmt.Sprintf("get|%s|%s|%v", opts.CommitSHA, path, opts.Shallow)
	if cacheable {
		if cached, ok := c.queries.Get(cacheKey); ok {
			if cached == nil {
				return nil, ErrNotFound
			}
			return cached, nil
		}
	}

	q := url.Values{}
	if opts.Branch != "" {
		q.Set("branch", opts.Branch)
	}
	if opts.CommitSHA != "" {
		q.Set("commit_sha", opts.CommitSHA)
	}
	if opts.Shallow {
		q.Set("shallow", "1")
	}

	var value any
	status, err := c.do(http.MethodGet, c.entryURL(path, q), nil, &value)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		if cacheable {
			c.queries.SetNotFound(cacheKey)
		}
		return nil, ErrNotFound
	}
	if cacheable {
		c.queries.SetFound(cacheKey, value)
	}
	return value, nil
}

// PutOptions parameterizes Put.
type PutOptions struct {
	Branch    string
	Flatten   *bool // nil defaults to true on the wire
	Author    string
	Committer string
}

// Put writes value at path and returns the resulting commit sha.
func (c *Client) Put(path string, value any, opts PutOptions) (string, error) {
	q := url.Values{}
	if opts.Branch != "" {
		q.Set("branch", opts.Branch)
	}
	if opts.Flatten != nil {
		q.Set("flatten_keys", boolParam(*opts.Flatten))
	}
	if opts.Author != "" {
		q.Set("author", opts.Author)
	}
	if opts.Committer != "" {
		q.Set("committer", opts.Committer)
	}

	body, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("client: encode value: %w", err)
	}

	var result struct{ SHA string `json:"sha"` }
	if _, err := c.doWithBody(http.MethodPut, c.entryURL(path, q), body, &result); err != nil {
		return "", err
	}
	return result.SHA, nil
}

// Delete removes path and returns the resulting commit sha.
func (c *Client) Delete(path string, branch string) (string, error) {
	q := url.Values{}
	if branch != "" {
		q.Set("branch", branch)
	}
	var result struct{ SHA string `json:"sha"` }
	status, err := c.do(http.MethodDelete, c.entryURL(path, q), nil, &result)
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return "", ErrNotFound
	}
	return result.SHA, nil
}

// TraverseOptions parameterizes Keys/Entries/Trees.
type TraverseOptions struct {
	Path       string
	Pattern    string
	MinLevel   int
	MaxLevel   int
	DepthFirst  *bool // nil defaults to true on the wire
	FilterBy    string
	ObjectDepth int // Trees only: collapses everything above the last ObjectDepth segments into one flat top-level key
	Branch      string
	CommitSHA   string
}

func (o TraverseOptions) query() url.Values {
	q := url.Values{}
	if o.Pattern != "" {
		q.Set("pattern", o.Pattern)
	}
	if o.MinLevel != 0 {
		q.Set("min_level", strconv.Itoa(o.MinLevel))
	}
	if o.MaxLevel != 0 {
		q.Set("max_level", strconv.Itoa(o.MaxLevel))
	}
	if o.DepthFirst != nil {
		q.Set("depth_first", boolParam(*o.DepthFirst))
	}
	if o.FilterBy != "" {
		q.Set("filter_by", o.FilterBy)
	}
	if o.ObjectDepth != 0 {
		q.Set("object_depth", strconv.Itoa(o.ObjectDepth))
	}
	if o.Branch != "" {
		q.Set("branch", o.Branch)
	}
	if o.CommitSHA != "" {
		q.Set("commit_sha", o.CommitSHA)
	}
	return q
}

// Keys lists paths matching opts.
func (c *Client) Keys(opts TraverseOptions) ([]string, error) {
	var result struct{ Keys []string `json:"keys"` }
	if _, err := c.do(http.MethodGet, c.entryURLSuffix("keys", opts.Path, opts.query()), nil, &result); err != nil {
		return nil, err
	}
	return result.Keys, nil
}

// Entries returns (path, value) pairs matching opts.
func (c *Client) Entries(opts TraverseOptions) (map[string]any, error) {
	var result struct {
		Entries [][2]any `json:"entries"`
	}
	if _, err := c.do(http.MethodGet, c.entryURLSuffix("entries", opts.Path, opts.query()), nil, &result); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(result.Entries))
	for _, pair := range result.Entries {
		key, _ := pair[0].(string)
		out[key] = pair[1]
	}
	return out, nil
}

// Trees returns the nested mapping materialization matching opts.
func (c *Client) Trees(opts TraverseOptions) (map[string]any, error) {
	var result map[string]any
	if _, err := c.do(http.MethodGet, c.entryURLSuffix("trees", opts.Path, opts.query()), nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Merge merges source into target (default master) and returns the new sha.
func (c *Client) Merge(source, target string) (string, error) {
	q := url.Values{}
	if target != "" {
		q.Set("target", target)
	}
	u := fmt.Sprintf("%s/%s/merge/%s?%s", c.baseURL, c.store, url.PathEscape(source), q.Encode())
	var result struct{ SHA string `json:"sha"` }
	if _, err := c.doWithBody(http.MethodPost, u, nil, &result); err != nil {
		return "", err
	}
	return result.SHA, nil
}

// BranchHead returns the commit sha at branch's tip.
func (c *Client) BranchHead(branch string) (string, error) {
	u := fmt.Sprintf("%s/%s/branch/%s", c.baseURL, c.store, url.PathEscape(branch))
	var result struct{ SHA string `json:"sha"` }
	status, err := c.do(http.MethodGet, u, nil, &result)
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return "", ErrNotFound
	}
	return result.SHA, nil
}

func (c *Client) entryURL(path string, q url.Values) string {
	return c.entryURLSuffix("entry", path, q)
}

func (c *Client) entryURLSuffix(kind, path string, q url.Values) string {
	u := fmt.Sprintf("%s/%s/%s", c.baseURL, c.store, kind)
	if path != "" {
		u += "/" + strings.TrimLeft(path, "/")
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func boolParam(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (c *Client) do(method, u string, body []byte, out any) (int, error) {
	return c.doWithBody(method, u, body, out)
}

func (c *Client) doWithBody(method, u string, body []byte, out any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, u, reader)
	if err != nil {
		return 0, fmt.Errorf("client: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("client: %s %s: %w", method, u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return resp.StatusCode, nil
	}
	if resp.StatusCode >= 400 {
		return resp.StatusCode, fmt.Errorf("client: %s %s: status %d", method, u, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("client: decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
