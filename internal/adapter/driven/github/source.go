// Package github implements the FirmwareSource port using the go-github library.
package github

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/brewlink/brewlink/internal/domain/model"
	"github.com/brewlink/brewlink/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.FirmwareSource = (*Source)(nil)

// Source fetches controller firmware releases from a GitHub repository.
// Each release is expected to carry the firmware asset plus a sibling
// "<asset>.sha256" asset holding the hex digest of the firmware bytes.
type Source struct {
	gh        *gh.Client
	owner     string
	repo      string
	assetName string
	// downloadClient follows asset redirects to the CDN.
	downloadClient *http.Client
}

// NewSource creates a firmware source with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client, optional PAT auth)
//
// An empty token leaves the client unauthenticated, which is enough for
// public release repositories.
func NewSource(token, repoFullName, assetName string) (*Source, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	return &Source{
		gh:             client,
		owner:          owner,
		repo:           repo,
		assetName:      assetName,
		downloadClient: &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

// NewSourceWithHTTPClient creates a Source with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewSourceWithHTTPClient(httpClient *http.Client, baseURL, repoFullName, assetName string) (*Source, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Source{
		gh:             client,
		owner:          owner,
		repo:           repo,
		assetName:      assetName,
		downloadClient: httpClient,
	}, nil
}

// LatestRelease returns the newest published release carrying the configured
// firmware asset, together with its sha256 checksum. Returns
// driven.ErrAssetNotFound when the release exists but lacks the asset.
func (s *Source) LatestRelease(ctx context.Context) (*model.FirmwareRelease, error) {
	release, resp, err := s.gh.Repositories.GetLatestRelease(ctx, s.owner, s.repo)
	if err != nil {
		return nil, fmt.Errorf("fetching latest release for %s/%s: %w", s.owner, s.repo, err)
	}

	logRateLimit(resp, s.owner+"/"+s.repo+"/releases/latest")

	var firmware, checksum *gh.ReleaseAsset
	for _, asset := range release.Assets {
		switch asset.GetName() {
		case s.assetName:
			firmware = asset
		case s.assetName + ".sha256":
			checksum = asset
		}
	}

	if firmware == nil {
		return nil, fmt.Errorf("release %s has no asset %q: %w",
			release.GetTagName(), s.assetName, driven.ErrAssetNotFound)
	}

	digest := ""
	if checksum != nil {
		digest, err = s.fetchChecksum(ctx, checksum.GetID())
		if err != nil {
			return nil, err
		}
	}

	return &model.FirmwareRelease{
		Tag:         release.GetTagName(),
		Notes:       release.GetBody(),
		AssetName:   firmware.GetName(),
		AssetID:     firmware.GetID(),
		Checksum:    digest,
		PublishedAt: release.GetPublishedAt().Time,
	}, nil
}

// DownloadAsset streams the raw bytes of a release asset.
func (s *Source) DownloadAsset(ctx context.Context, assetID int64) (io.ReadCloser, error) {
	rc, _, err := s.gh.Repositories.DownloadReleaseAsset(ctx, s.owner, s.repo, assetID, s.downloadClient)
	if err != nil {
		return nil, fmt.Errorf("downloading asset %d from %s/%s: %w", assetID, s.owner, s.repo, err)
	}
	return rc, nil
}

// fetchChecksum downloads a ".sha256" asset and returns the hex digest it
// carries. The file may be a bare digest or "sha256sum" output, so only the
// first whitespace-separated token counts.
func (s *Source) fetchChecksum(ctx context.Context, assetID int64) (string, error) {
	rc, err := s.DownloadAsset(ctx, assetID)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, 4096))
	if err != nil {
		return "", fmt.Errorf("reading checksum asset %d: %w", assetID, err)
	}

	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return "", fmt.Errorf("checksum asset %d is empty", assetID)
	}

	digest := strings.ToLower(fields[0])
	if _, err := hex.DecodeString(digest); err != nil || len(digest) != 64 {
		return "", fmt.Errorf("checksum asset %d holds malformed digest %q", assetID, digest)
	}

	return digest, nil
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// splitRepo splits a "owner/repo" string into its two components.
func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
