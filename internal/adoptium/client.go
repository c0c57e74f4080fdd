// SPDX-License-Identifier: MPL-2.0

package adoptium

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// defaultBaseURL is the production Adoptium assets API.
	defaultBaseURL = "https://api.adoptium.net"

	// defaultUserAgent identifies caldera's runtime manager on every request.
	defaultUserAgent = "caldera-runtime/1.0"

	// defaultMaxAttempts bounds retries per HTTP request.
	defaultMaxAttempts = 3

	// defaultBaseBackoff is the first retry delay; subsequent delays double.
	defaultBaseBackoff = 500 * time.Millisecond

	// maxJSONResponseBytes caps API response size (10 MB). Prevents unbounded
	// memory consumption from malformed responses.
	maxJSONResponseBytes = 10 << 20

	// rateLimitCooldown is how long the API is left alone after a 429. The
	// marker is shared across processes via the cooldown file.
	rateLimitCooldown = 2 * time.Minute
)

// ErrReleaseNotFound is returned when no artifact class (jre, then jdk) has a
// release for the requested major/arch/os combination.
var ErrReleaseNotFound = errors.New("no runtime release found")

type (
	// ReleaseSpec describes one downloadable runtime artifact: everything the
	// installer needs to fetch and verify it.
	ReleaseSpec struct {
		Major     int    // Requested feature version, e.g. 17
		Arch      string // Adoptium architecture name: "x64", "aarch64"
		OS        string // Adoptium OS name: "linux", "mac", "windows"
		ImageType string // Artifact class that resolved: "jre" or "jdk"
		Vendor    string // Always "Temurin" for this API
		Version   string // Cleaned OpenJDK version, e.g. "21.0.2"
		URL       string // Direct download link
		SHA256    string // Expected archive checksum
	}

	// assetsEntry is the JSON wire format of one /v3/assets/latest element.
	assetsEntry struct {
		Binary  binaryInfo  `json:"binary"`
		Version versionInfo `json:"version"`
	}

	binaryInfo struct {
		Package packageInfo `json:"package"`
	}

	packageInfo struct {
		Checksum string `json:"checksum"`
		Link     string `json:"link"`
		Name     string `json:"name"`
	}

	versionInfo struct {
		OpenJDKVersion string `json:"openjdk_version"`
	}

	// Client queries the Adoptium assets API for release metadata and
	// downloads release artifacts.
	Client struct {
		httpClient  *http.Client
		baseURL     string // Overridable for tests
		userAgent   string
		maxAttempts int
		baseBackoff time.Duration
		cache       *SpecCache    // Optional resolution cache (nil disables)
		cooldown    *cooldownGate // Optional 429 backoff marker (nil disables)
	}

	// ClientOption configures a Client during construction.
	ClientOption func(*Client)
)

// WithHTTPClient sets a custom HTTP client, useful for tests or proxies.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(a *Client) {
		a.httpClient = c
	}
}

// WithBaseURL overrides the API base URL, primarily for test servers.
func WithBaseURL(base string) ClientOption {
	return func(a *Client) {
		a.baseURL = strings.TrimRight(base, "/")
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(a *Client) {
		a.userAgent = ua
	}
}

// WithRetryPolicy bounds per-request retries and sets the initial backoff.
func WithRetryPolicy(maxAttempts int, baseBackoff time.Duration) ClientOption {
	return func(a *Client) {
		a.maxAttempts = maxAttempts
		a.baseBackoff = baseBackoff
	}
}

// WithSpecCache attaches an on-disk resolution cache so repeated resolutions
// within the TTL skip the API round trip.
func WithSpecCache(c *SpecCache) ClientOption {
	return func(a *Client) {
		a.cache = c
	}
}

// WithCooldownMarker persists 429 backoff state at path so every process
// sharing the data directory honors the same rate-limit cooldown.
func WithCooldownMarker(path string) ClientOption {
	return func(a *Client) {
		a.cooldown = &cooldownGate{path: path}
	}
}

// NewClient creates a Client with production defaults.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: 2 * time.Minute},
		baseURL:     defaultBaseURL,
		userAgent:   defaultUserAgent,
		maxAttempts: defaultMaxAttempts,
		baseBackoff: defaultBaseBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolveRelease finds the latest release for the given major/arch/os. The
// primary artifact class is "jre" (smaller); when the API has no jre build for
// the requested version, it falls back to "jdk". Returns ErrReleaseNotFound
// when neither class resolves.
func (c *Client) ResolveRelease(ctx context.Context, major int, arch, osName string) (*ReleaseSpec, error) {
	cacheKey := fmt.Sprintf("%d:%s:%s", major, arch, osName)
	if c.cache != nil {
		if spec, ok := c.cache.Get(cacheKey); ok {
			return spec, nil
		}
	}

	var lastErr error
	for _, imageType := range []string{"jre", "jdk"} {
		spec, err := c.resolveImageType(ctx, major, arch, osName, imageType)
		if err == nil {
			if c.cache != nil {
				c.cache.Put(cacheKey, spec)
			}
			return spec, nil
		}
		if !errors.Is(err, ErrReleaseNotFound) {
			lastErr = err
		}
		slog.Debug("artifact class unavailable", "major", major, "imageType", imageType, "error", err)
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w for Java %d (%s/%s)", ErrReleaseNotFound, major, osName, arch)
}

// resolveImageType queries one artifact class.
func (c *Client) resolveImageType(ctx context.Context, major int, arch, osName, imageType string) (*ReleaseSpec, error) {
	query := url.Values{}
	query.Set("architecture", arch)
	query.Set("image_type", imageType)
	query.Set("os", osName)
	reqURL := fmt.Sprintf("%s/v3/assets/latest/%d/hotspot?%s", c.baseURL, major, query.Encode())

	if until, active := c.cooldown.Active(time.Now()); active {
		return nil, fmt.Errorf("release API rate limited until %s", until.Format(time.RFC3339))
	}

	var entries []assetsEntry
	err := RetryWithBackoff(ctx, c.maxAttempts, c.baseBackoff, func(attempt int) (bool, error) {
		resp, reqErr := c.doRequest(ctx, reqURL)
		if reqErr != nil {
			// Transport failures are retryable.
			return true, reqErr
		}
		defer func() { _ = resp.Body.Close() }() // read-only response body

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return false, ErrReleaseNotFound
		case resp.StatusCode == http.StatusTooManyRequests:
			c.cooldown.Trip(time.Now(), rateLimitCooldown)
			return true, fmt.Errorf("rate limited by %s", resp.Request.URL.Host)
		case resp.StatusCode >= 500:
			return true, fmt.Errorf("server error %d from %s", resp.StatusCode, reqURL)
		case resp.StatusCode != http.StatusOK:
			return false, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, reqURL)
		}

		if decErr := json.NewDecoder(io.LimitReader(resp.Body, maxJSONResponseBytes)).Decode(&entries); decErr != nil {
			return false, fmt.Errorf("decoding assets response: %w", decErr)
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		return nil, ErrReleaseNotFound
	}

	found := entries[0]
	if found.Binary.Package.Link == "" || found.Binary.Package.Checksum == "" {
		return nil, fmt.Errorf("assets entry for Java %d (%s) is missing package link or checksum", major, imageType)
	}

	return &ReleaseSpec{
		Major:     major,
		Arch:      arch,
		OS:        osName,
		ImageType: imageType,
		Vendor:    "Temurin",
		Version:   CleanOpenJDKVersion(found.Version.OpenJDKVersion),
		URL:       found.Binary.Package.Link,
		SHA256:    found.Binary.Package.Checksum,
	}, nil
}

// Download fetches the artifact at the given URL and returns the response body
// as a streaming reader plus the reported content length (-1 when unknown).
// The caller is responsible for closing the returned ReadCloser.
func (c *Client) Download(ctx context.Context, assetURL string) (io.ReadCloser, int64, error) {
	resp, err := c.doRequest(ctx, assetURL)
	if err != nil {
		return nil, 0, fmt.Errorf("downloading %s: %w", redactURL(assetURL), err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("downloading %s: unexpected status %d", redactURL(assetURL), resp.StatusCode)
	}

	return resp.Body, resp.ContentLength, nil
}

// doRequest executes a GET with the identifying headers attached.
func (c *Client) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	return resp, nil
}

// RetryWithBackoff retries op up to maxAttempts times with exponential
// backoff. It checks ctx.Err() between retries to respect cancellation
// immediately.
//
// op returns (shouldRetry bool, err error). If shouldRetry is false, err is
// returned immediately (nil on success, non-nil on permanent failure). On
// retry exhaustion, the last error is returned.
func RetryWithBackoff(
	ctx context.Context,
	maxAttempts int,
	baseBackoff time.Duration,
	op func(attempt int) (retry bool, err error),
) error {
	var lastErr error
	for attempt := range maxAttempts {
		if attempt > 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("retry aborted: %w", err)
			}
			time.Sleep(baseBackoff * time.Duration(1<<(attempt-1)))
		}

		retry, err := op(attempt)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// CleanOpenJDKVersion strips build suffixes from a raw openjdk_version value,
// e.g. "21.0.2+13-LTS" -> "21.0.2+13" -> "21.0.2".
func CleanOpenJDKVersion(raw string) string {
	v := raw
	if i := strings.IndexByte(v, '-'); i >= 0 {
		v = v[:i]
	}
	if i := strings.IndexByte(v, '+'); i >= 0 {
		v = v[:i]
	}
	return v
}

// redactURL strips query parameters and fragments from a URL for safe
// inclusion in error messages.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
