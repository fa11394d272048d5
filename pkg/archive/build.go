package archive

import (
	"fmt"
	"sort"

	"github.com/Dimensional/GalaxyDL/pkg/content"
)

// Build is one archived build manifest: one published version of a game for
// one platform. Records are immutable once archived; re-archiving the same
// key is an idempotent skip.
type Build struct {
	GameID    string             `json:"game_id"`
	BuildID   string             `json:"build_id"`
	BuildHash string             `json:"build_hash"`
	Platform  string             `json:"platform"`
	Gen       content.Generation `json:"version"`
	// ArchivePath is archive-relative; the root moves, the record does not.
	ArchivePath string `json:"archive_path"`
	CDNURL      string `json:"cdn_url"`
	// Timestamp is unix seconds at archival time.
	Timestamp    int64    `json:"timestamp"`
	Dependencies []string `json:"dependencies"`
	// ManifestsReferenced are the depot manifest ids this build points at.
	ManifestsReferenced []string `json:"manifests_referenced"`
	// RepositoryID is the v1 repository directory (or the v2 meta hash when
	// known); empty for builds resolved without one.
	RepositoryID string   `json:"repository_id,omitempty"`
	VersionName  string   `json:"version_name"`
	Tags         []string `json:"tags"`
}

// Key is the build's identity: (gameID, buildID, platform).
func (b *Build) Key() string {
	return BuildKey(b.GameID, b.BuildID, b.Platform)
}

// BuildKey joins a build identity into the database key form.
func BuildKey(gameID, buildID, platform string) string {
	return fmt.Sprintf("%s_%s_%s", gameID, buildID, platform)
}

// ReferencesManifest reports whether the build points at manifestID.
func (b *Build) ReferencesManifest(manifestID string) bool {
	for _, m := range b.ManifestsReferenced {
		if m == manifestID {
			return true
		}
	}
	return false
}

// setManifests stores a depot-reference set in stable sorted order so that
// repeated archival produces byte-identical database documents.
func (b *Build) setManifests(refs map[string]struct{}) {
	out := make([]string, 0, len(refs))
	for m := range refs {
		out = append(out, m)
	}
	sort.Strings(out)
	b.ManifestsReferenced = out
}

// BuildCandidate is one normalized entry from the upstream builds listing,
// before its manifest has been fetched.
type BuildCandidate struct {
	BuildID       string             `json:"build_id"`
	Platform      string             `json:"platform"`
	Branch        string             `json:"branch"`
	Legacy        bool               `json:"legacy"`
	DatePublished string             `json:"date_published"`
	Link          string             `json:"link"`
	Gen           content.Generation `json:"generation"`
	GenQueried    int                `json:"generation_queried"`
	VersionName   string             `json:"version_name"`
	Tags          []string           `json:"tags"`
	LegacyBuildID string             `json:"legacy_build_id,omitempty"`
	Public        bool               `json:"public"`
}
