package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/ZebulonRouseFrantzich/jrefetch/internal/jre"
	"github.com/ZebulonRouseFrantzich/jrefetch/internal/logging"
)

// DefaultFallbackURL is the secondary provider's bundle query endpoint.
const DefaultFallbackURL = "https://api.azul.com/zulu/download/community/v1.0/bundles/"

// FallbackResolver selects a runtime archive from the secondary provider.
type FallbackResolver struct {
	fetcher Fetcher
	baseURL string
	logger  logging.Logger
}

// NewFallbackResolver creates a resolver. An empty baseURL selects DefaultFallbackURL.
func NewFallbackResolver(fetcher Fetcher, baseURL string, logger logging.Logger) *FallbackResolver {
	if baseURL == "" {
		baseURL = DefaultFallbackURL
	}
	return &FallbackResolver{
		fetcher: fetcher,
		baseURL: baseURL,
		logger:  logging.OrNop(logger),
	}
}

// QueryURL builds the bundle query for tokens and javaVersion ("8.0", "17.0").
func (r *FallbackResolver) QueryURL(tokens jre.PlatformTokens, javaVersion string) (string, error) {
	u, err := url.Parse(r.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse fallback url: %w", err)
	}
	q := u.Query()
	q.Set("java_version", javaVersion)
	q.Set("os", tokens.OS)
	q.Set("arch", tokens.Arch)
	q.Set("hw_bitness", tokens.Bitness)
	q.Set("ext", "zip")
	q.Set("bundle_type", "jre")
	q.Set("latest", "true")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Resolve returns the first bundle the provider lists. An empty list yields ErrNoRuntime.
func (r *FallbackResolver) Resolve(ctx context.Context, tokens jre.PlatformTokens, javaVersion string) (jre.Bundle, error) {
	queryURL, err := r.QueryURL(tokens, javaVersion)
	if err != nil {
		return jre.Bundle{}, err
	}

	body, err := r.fetcher.Get(ctx, queryURL, nil)
	if err != nil {
		return jre.Bundle{}, fmt.Errorf("query runtime bundles: %w", err)
	}

	var bundles []struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &bundles); err != nil {
		return jre.Bundle{}, malformed(queryURL, err)
	}
	if len(bundles) == 0 {
		return jre.Bundle{}, fmt.Errorf("%w: java %s on %s/%s/%s-bit",
			ErrNoRuntime, javaVersion, tokens.OS, tokens.Arch, tokens.Bitness)
	}
	if bundles[0].URL == "" {
		return jre.Bundle{}, malformedAt(queryURL, 0, "first bundle has no url")
	}

	r.logger.Debug("resolved runtime bundle", "url", bundles[0].URL, "candidates", len(bundles))
	return jre.Bundle{ArchiveURL: bundles[0].URL}, nil
}
