package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ZebulonRouseFrantzich/jrefetch/internal/fetch"
	"github.com/ZebulonRouseFrantzich/jrefetch/internal/jre"
	"github.com/ZebulonRouseFrantzich/jrefetch/internal/logging"
)

// DefaultPrimaryIndexURL is the primary provider's runtime index.
const DefaultPrimaryIndexURL = "https://piston-meta.mojang.com/v1/products/java-runtime/2ec0cc96c44e5a76b9c8b7c39df7210883d12871/all.json"

// Fetcher retrieves provider documents. *fetch.Engine implements it.
type Fetcher interface {
	Get(ctx context.Context, url string, progress fetch.ProgressFunc) ([]byte, error)
}

// PrimaryResolver queries the primary provider's index and manifests.
type PrimaryResolver struct {
	fetcher  Fetcher
	indexURL string
	logger   logging.Logger
}

// NewPrimaryResolver creates a resolver. An empty indexURL selects DefaultPrimaryIndexURL.
func NewPrimaryResolver(fetcher Fetcher, indexURL string, logger logging.Logger) *PrimaryResolver {
	if indexURL == "" {
		indexURL = DefaultPrimaryIndexURL
	}
	return &PrimaryResolver{
		fetcher:  fetcher,
		indexURL: indexURL,
		logger:   logging.OrNop(logger),
	}
}

// indexCandidate is one element of index[platform][channel key].
type indexCandidate struct {
	Manifest *struct {
		URL string `json:"url"`
	} `json:"manifest"`
}

// Resolve looks up the manifest URL for platformID and channel. found is false
// when the index has no candidate, which is the normal trigger for the
// secondary provider. The first candidate wins.
func (r *PrimaryResolver) Resolve(ctx context.Context, platformID string, channel jre.Channel) (string, bool, error) {
	body, err := r.fetcher.Get(ctx, r.indexURL, nil)
	if err != nil {
		return "", false, fmt.Errorf("fetch runtime index: %w", err)
	}

	var index map[string]json.RawMessage
	if err := json.Unmarshal(body, &index); err != nil {
		return "", false, malformed(r.indexURL, err)
	}
	if index == nil {
		return "", false, malformedAt(r.indexURL, 0, "index is not an object")
	}

	platformDoc, ok := index[platformID]
	if !ok || isNull(platformDoc) {
		r.logger.Info("platform not listed in runtime index", "platform", platformID)
		return "", false, nil
	}

	var channels map[string]json.RawMessage
	if err := json.Unmarshal(platformDoc, &channels); err != nil {
		return "", false, malformed(r.indexURL, fmt.Errorf("platform %q: %w", platformID, err))
	}

	key := channel.ManifestKey()
	channelDoc, ok := channels[key]
	if !ok || isNull(channelDoc) {
		r.logger.Info("channel not listed in runtime index", "platform", platformID, "key", key)
		return "", false, nil
	}

	var candidates []indexCandidate
	if err := json.Unmarshal(channelDoc, &candidates); err != nil {
		return "", false, malformed(r.indexURL, fmt.Errorf("%s.%s: %w", platformID, key, err))
	}
	if len(candidates) == 0 {
		r.logger.Info("no runtime candidates in index", "platform", platformID, "key", key)
		return "", false, nil
	}

	first := candidates[0]
	if first.Manifest == nil || first.Manifest.URL == "" {
		return "", false, malformedAt(r.indexURL, 0, "%s.%s[0] has no manifest url", platformID, key)
	}

	r.logger.Debug("resolved runtime manifest", "platform", platformID, "key", key, "url", first.Manifest.URL)
	return first.Manifest.URL, true, nil
}

// FileList fetches the manifest at manifestURL and returns its entries in
// document order.
func (r *PrimaryResolver) FileList(ctx context.Context, manifestURL string) ([]jre.FileEntry, error) {
	body, err := r.fetcher.Get(ctx, manifestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch runtime manifest: %w", err)
	}

	entries, skipped, err := parseFileList(body, manifestURL)
	if err != nil {
		return nil, err
	}
	for _, s := range skipped {
		r.logger.Debug("skipping manifest entry with unknown type", "path", s.path, "type", s.kind)
	}
	return entries, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
