// Package content computes archive-relative and CDN-relative paths for
// GOG Galaxy content. Every function here is pure: names are derived from
// identifiers alone, never from filesystem state, so addressing can be
// tested without touching a disk.
package content

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// Generation selects the content-system protocol family. V1 is the legacy
// blob model (one main.bin per depot), V2 is the chunk model (files built
// from md5-addressed chunks).
type Generation int

const (
	GenV1 Generation = 1
	GenV2 Generation = 2
)

func (g Generation) String() string {
	return fmt.Sprintf("v%d", int(g))
}

// Valid reports whether g is a known generation.
func (g Generation) Valid() bool {
	return g == GenV1 || g == GenV2
}

// ErrInvalidIdentifier reports a content identifier too short (or otherwise
// malformed) to derive an address from.
var ErrInvalidIdentifier = errors.New("invalid content identifier")

// GalaxyPath derives the two-level fan-out form of a content hash:
// ab/cd/abcdef.... Identifiers that already contain a slash are returned
// verbatim, since some upstream manifests reference depots by pre-expanded
// path. The fan-out keeps any single directory from accumulating an
// unbounded number of entries.
func GalaxyPath(id string) (string, error) {
	if strings.Contains(id, "/") {
		return id, nil
	}
	if len(id) < 4 {
		return "", fmt.Errorf("galaxy path %q: %w", id, ErrInvalidIdentifier)
	}
	return path.Join(id[0:2], id[2:4], id), nil
}

// ChunkPath returns the archive-relative location of a v2 chunk,
// chunks/ab/cd/abcdef.... The chunk's identifier is the md5 of its
// compressed bytes, so the path is also the verification key.
func ChunkPath(hash string) (string, error) {
	gp, err := GalaxyPath(hash)
	if err != nil {
		return "", fmt.Errorf("chunk path: %w", err)
	}
	return path.Join("chunks", gp), nil
}

// BlobPath returns the archive-relative location of a v1 depot blob.
// Individual files are not separately addressable; they live at
// (offset, size) windows inside main.bin recorded by the depot manifest.
func BlobPath(buildID string) string {
	return path.Join("blobs", buildID, "main.bin")
}

// BuildManifestPath returns the archive-relative location of a build
// manifest. V1 repositories keep the CDN's game/platform/build hierarchy;
// v2 builds are content-addressed by their meta hash.
func BuildManifestPath(gen Generation, gameID, platform, buildID string) (string, error) {
	switch gen {
	case GenV1:
		return path.Join("builds", "v1", "manifests", gameID, platform, buildID, "repository.json"), nil
	case GenV2:
		gp, err := GalaxyPath(buildID)
		if err != nil {
			return "", fmt.Errorf("build manifest path: %w", err)
		}
		return path.Join("builds", "v2", "meta", gp), nil
	default:
		return "", fmt.Errorf("build manifest path: generation %d: %w", gen, ErrInvalidIdentifier)
	}
}

// DepotManifestPath returns the archive-relative location of a depot
// manifest. The v1 layout needs the owning repository for context; v2
// manifests are content-addressed. V1 manifest identifiers arrive from
// upstream with their .json suffix already attached and are used verbatim.
func DepotManifestPath(gen Generation, gameID, platform, repositoryID, manifestID string) (string, error) {
	switch gen {
	case GenV1:
		return path.Join("manifests", "v1", "manifests", gameID, platform, repositoryID, manifestID), nil
	case GenV2:
		gp, err := GalaxyPath(manifestID)
		if err != nil {
			return "", fmt.Errorf("depot manifest path: %w", err)
		}
		return path.Join("manifests", "v2", "depots", gp), nil
	default:
		return "", fmt.Errorf("depot manifest path: generation %d: %w", gen, ErrInvalidIdentifier)
	}
}

// ReadablePath returns the sibling location for the best-effort prettified
// JSON copy of a raw manifest. Raw v1 manifests already end in .json, so
// the readable copy gets a doubled suffix rather than clobbering the raw
// authoritative bytes.
func ReadablePath(raw string) string {
	return raw + ".json"
}

// ChunkStorePath returns the CDN-relative path of a chunk under a game's
// v2 secure-link store root.
func ChunkStorePath(gameID, hash string) (string, error) {
	gp, err := GalaxyPath(hash)
	if err != nil {
		return "", fmt.Errorf("chunk store path: %w", err)
	}
	return path.Join("/content-system/v2/store", gameID, gp), nil
}

// DatabasePath is the archive-relative location of the build index.
const DatabasePath = "metadata/archive_database.json"
