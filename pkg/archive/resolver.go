package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Dimensional/GalaxyDL/pkg/content"
	"github.com/Dimensional/GalaxyDL/pkg/gog"
)

const (
	listingPageSize = 50
	// maxListingOffset is a safety cap on listing pagination. Exceeding it
	// is a warning and returns what was gathered, never a failure.
	maxListingOffset = 10000
)

// ListBuilds enumerates builds for gameID on the given platforms across
// both generations, normalized, deduplicated by (buildID, platform) with
// generation-1 precedence, and sorted by publish date descending. One
// failing platform/generation combination only empties that combination;
// the call errors only when every combination failed and nothing was
// gathered.
func (a *Archiver) ListBuilds(ctx context.Context, gameID string, platforms []string) ([]BuildCandidate, error) {
	var (
		candidates []BuildCandidate
		failures   []error
		combos     int
	)

	for _, platform := range platforms {
		combos += 2

		gen2, err := a.listGeneration2(ctx, gameID, platform)
		if err != nil {
			a.logger.Warn("build listing failed", "game", gameID, "platform", platform, "generation", 2, "error", err)
			failures = append(failures, fmt.Errorf("%s/gen2: %w", platform, err))
		} else {
			candidates = append(candidates, gen2...)
		}

		gen1, err := a.listGeneration1(ctx, gameID, platform)
		if err != nil {
			a.logger.Warn("build listing failed", "game", gameID, "platform", platform, "generation", 1, "error", err)
			failures = append(failures, fmt.Errorf("%s/gen1: %w", platform, err))
		} else {
			candidates = append(candidates, gen1...)
		}
	}

	if len(candidates) == 0 && len(failures) == combos && combos > 0 {
		return nil, fmt.Errorf("list builds for %s: every query failed: %w", gameID, errors.Join(failures...))
	}

	deduped := dedupeCandidates(candidates)
	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].DatePublished > deduped[j].DatePublished
	})
	return deduped, nil
}

// listGeneration2 pages through the unified listing with an offset/limit
// cursor. Stop conditions: an empty page, the cursor passing the declared
// total, or the offset safety cap.
func (a *Archiver) listGeneration2(ctx context.Context, gameID, platform string) ([]BuildCandidate, error) {
	var out []BuildCandidate
	offset := 0
	for {
		url := a.endpoints.BuildsURL(gameID, platform, 2, offset, listingPageSize)
		doc, err := a.client.GetJSON(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("listing page at offset %d: %w", offset, err)
		}
		if doc == nil {
			// Absent listing means no builds for this combination.
			return out, nil
		}

		items := doc.Documents("items")
		if len(items) == 0 {
			return out, nil
		}
		for _, item := range items {
			out = append(out, normalizeCandidate(item, platform, 2))
		}

		offset += len(items)
		if total, ok := doc.GetInt("total_count"); ok && int64(offset) >= total {
			return out, nil
		}
		if hasMore, ok := doc.GetBool("has_more"); ok && !hasMore {
			return out, nil
		}
		if offset >= maxListingOffset {
			a.logger.Warn("listing pagination cap reached", "game", gameID, "platform", platform, "offset", offset)
			return out, nil
		}
	}
}

// listGeneration1 probes the legacy listing first (absent for most titles,
// which is fine), then asks the unified endpoint for generation 1, since
// upstream answers legacy builds through the same shape.
func (a *Archiver) listGeneration1(ctx context.Context, gameID, platform string) ([]BuildCandidate, error) {
	var out []BuildCandidate

	legacy, err := a.client.GetJSON(ctx, a.endpoints.BuildsURL(gameID, platform, 0, 0, 0))
	if err == nil && legacy != nil {
		for _, item := range legacy.Documents("items") {
			out = append(out, normalizeCandidate(item, platform, 1))
		}
	}

	doc, err := a.client.GetJSON(ctx, a.endpoints.BuildsURL(gameID, platform, 1, 0, 0))
	if err != nil {
		if len(out) > 0 {
			return out, nil
		}
		return nil, fmt.Errorf("generation-1 listing: %w", err)
	}
	if doc != nil {
		for _, item := range doc.Documents("items") {
			out = append(out, normalizeCandidate(item, platform, 1))
		}
	}
	return out, nil
}

// normalizeCandidate maps one raw listing record into a BuildCandidate. The
// upstream-declared generation wins over the generation the query asked
// for; when the manifest link's shape disagrees with the declared
// generation, that is logged as a diagnostic, never silently overridden.
func normalizeCandidate(item gog.Document, platform string, genQueried int) BuildCandidate {
	c := BuildCandidate{
		BuildID:       item.String("build_id", ""),
		Platform:      item.String("os", platform),
		Branch:        item.String("branch", "main"),
		DatePublished: item.String("date_published", ""),
		Link:          item.String("link", ""),
		GenQueried:    genQueried,
		VersionName:   item.String("version_name", ""),
		Tags:          item.Strings("tags"),
		LegacyBuildID: item.String("legacy_build_id", ""),
		Public:        item.Bool("public", true),
	}
	if c.BuildID == "" {
		if n, ok := item.GetInt("build_id"); ok {
			c.BuildID = fmt.Sprintf("%d", n)
		}
	}
	if c.LegacyBuildID == "" {
		if n, ok := item.GetInt("legacy_build_id"); ok {
			c.LegacyBuildID = fmt.Sprintf("%d", n)
		}
	}

	gen := item.Int("generation", int64(genQueried))
	c.Gen = content.Generation(gen)
	c.Legacy = c.Gen == content.GenV1 || c.LegacyBuildID != ""

	if hinted := generationFromLink(c.Link); hinted.Valid() && hinted != c.Gen {
		slogDisagreement(c, hinted)
	}
	return c
}

// generationFromLink infers a generation from the manifest link's path
// shape. Diagnostic only.
func generationFromLink(link string) content.Generation {
	switch {
	case strings.Contains(link, "/v1/manifests/"):
		return content.GenV1
	case strings.Contains(link, "/v2/meta/"):
		return content.GenV2
	default:
		return 0
	}
}

func slogDisagreement(c BuildCandidate, hinted content.Generation) {
	// Declared generation remains authoritative.
	slog.Default().Debug("link shape disagrees with declared generation",
		"build", c.BuildID, "declared", c.Gen.String(), "link_hint", hinted.String())
}

// dedupeCandidates collapses duplicates sharing (buildID, platform),
// keeping the lower generation as canonical.
func dedupeCandidates(in []BuildCandidate) []BuildCandidate {
	type key struct{ buildID, platform string }
	best := make(map[key]int, len(in))
	var out []BuildCandidate
	for _, c := range in {
		k := key{c.BuildID, c.Platform}
		if i, ok := best[k]; ok {
			if c.Gen < out[i].Gen {
				out[i] = c
			}
			continue
		}
		best[k] = len(out)
		out = append(out, c)
	}
	return out
}
