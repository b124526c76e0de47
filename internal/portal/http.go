package portal

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// fingerprintHeader carries the resolved content fingerprint of a response.
const fingerprintHeader = "Skynet-Skylink"

// HTTPClient implements Client against a portal's HTTP API.
type HTTPClient struct {
	base string
	jwt  string
	http *http.Client
}

// NewHTTPClient constructs a portal client. jwt may be empty; when set it is
// forwarded as the portal session cookie on every request.
func NewHTTPClient(baseURL, jwt string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		base: strings.TrimRight(baseURL, "/"),
		jwt:  jwt,
		http: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.jwt != "" {
		req.AddCookie(&http.Cookie{Name: "skynet-jwt", Value: c.jwt})
	}
	return c.http.Do(req)
}

// GetJSON fetches {base}/{userPK}/{path}. The portal reports the resolved
// fingerprint in a response header; when it equals cachedFingerprint the body
// is discarded and the response is flagged as cached.
func (c *HTTPClient) GetJSON(ctx context.Context, userPK, path, cachedFingerprint string) (JSONResponse, error) {
	resp, err := c.get(ctx, fmt.Sprintf("%s/%s/%s?format=json", c.base, userPK, path))
	if err != nil {
		return JSONResponse{}, fmt.Errorf("portal: get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return JSONResponse{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return JSONResponse{}, fmt.Errorf("portal: get %s: unexpected status %d", path, resp.StatusCode)
	}

	fingerprint := resp.Header.Get(fingerprintHeader)
	if fingerprint != "" && fingerprint == cachedFingerprint {
		return JSONResponse{Fingerprint: fingerprint, Cached: true}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return JSONResponse{}, fmt.Errorf("portal: read %s: %w", path, err)
	}
	if !json.Valid(body) {
		return JSONResponse{}, fmt.Errorf("portal: %s: response is not valid JSON", path)
	}
	return JSONResponse{Data: body, Fingerprint: fingerprint}, nil
}

// GetRegistryEntry reads a signed registry entry for (userPK, dataKey).
func (c *HTTPClient) GetRegistryEntry(ctx context.Context, userPK, dataKey string) (*RegistryEntry, error) {
	u := fmt.Sprintf("%s/skynet/registry?publickey=ed25519:%s&datakey=%s",
		c.base, userPK, url.QueryEscape(dataKey))
	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("portal: registry %s: %w", dataKey, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("portal: registry %s: unexpected status %d", dataKey, resp.StatusCode)
	}

	var raw struct {
		Data     string `json:"data"` // hex encoded
		Revision uint64 `json:"revision"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("portal: registry %s: decode: %w", dataKey, err)
	}
	data, err := hex.DecodeString(raw.Data)
	if err != nil {
		return nil, fmt.Errorf("portal: registry %s: bad data: %w", dataKey, err)
	}
	return &RegistryEntry{DataKey: dataKey, Data: data, Revision: raw.Revision}, nil
}

// GetFileContent downloads the raw content behind a reference.
func (c *HTTPClient) GetFileContent(ctx context.Context, reference string) ([]byte, error) {
	resp, err := c.get(ctx, fmt.Sprintf("%s/%s", c.base, reference))
	if err != nil {
		return nil, fmt.Errorf("portal: file %s: %w", reference, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("portal: file %s: unexpected status %d", reference, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
