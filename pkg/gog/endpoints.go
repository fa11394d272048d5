package gog

import "fmt"

// Endpoints holds the upstream URL roots. It is an immutable value owned by
// whichever component needs it; tests point it at local stubs instead of
// patching package state.
type Endpoints struct {
	// ContentSystem serves build listings and secure links.
	ContentSystem string
	// CDN serves v1 manifests and the legacy v2 meta/depot tree.
	CDN string
	// ManifestsCollector serves the newer v2 build/depot manifest mirror.
	ManifestsCollector string
}

// DefaultEndpoints returns the production GOG hosts.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		ContentSystem:      "https://content-system.gog.com",
		CDN:                "https://gog-cdn-fastly.gog.com",
		ManifestsCollector: "https://downloadable-manifests-collector.gog.com",
	}
}

// BuildsURL is the unified builds-listing endpoint. Generation 0 omits the
// generation parameter (the legacy listing shape); offset/limit page the
// generation-2 listing and are omitted when limit is zero.
func (e Endpoints) BuildsURL(gameID, platform string, generation int, offset, limit int) string {
	url := fmt.Sprintf("%s/products/%s/os/%s/builds", e.ContentSystem, gameID, platform)
	sep := "?"
	if generation > 0 {
		url += fmt.Sprintf("%sgeneration=%d", sep, generation)
		sep = "&"
	}
	if limit > 0 {
		url += fmt.Sprintf("%soffset=%d&limit=%d", sep, offset, limit)
	}
	return url
}

// RepositoryURL is the per-build repository endpoint of the content system.
func (e Endpoints) RepositoryURL(gameID, platform, repositoryID string, generation int) string {
	url := fmt.Sprintf("%s/products/%s/os/%s/builds/%s/repository", e.ContentSystem, gameID, platform, repositoryID)
	if generation == 2 {
		url += "?generation=2"
	}
	return url
}

// V1ManifestURL addresses a v1 build or depot manifest on the CDN. name is
// "repository.json" for builds or the depot manifest identifier.
func (e Endpoints) V1ManifestURL(gameID, platform, repositoryID, name string) string {
	return fmt.Sprintf("%s/content-system/v1/manifests/%s/%s/%s/%s", e.CDN, gameID, platform, repositoryID, name)
}

// V2MetaURL addresses a v2 build manifest on the CDN by its fan-out path.
func (e Endpoints) V2MetaURL(galaxyPath string) string {
	return fmt.Sprintf("%s/content-system/v2/meta/%s", e.CDN, galaxyPath)
}

// CollectorBuildURL addresses a v2 build manifest on the collector mirror.
func (e Endpoints) CollectorBuildURL(galaxyPath string) string {
	return fmt.Sprintf("%s/manifests/builds/%s", e.ManifestsCollector, galaxyPath)
}

// DepotManifestURLs returns the v2 depot manifest locations to probe, in
// preference order. The collector mirror is tried first, then the legacy
// CDN meta tree, then the collector's older layout.
func (e Endpoints) DepotManifestURLs(galaxyPath string) []string {
	return []string{
		fmt.Sprintf("%s/manifests/depots/%s", e.ManifestsCollector, galaxyPath),
		fmt.Sprintf("%s/content-system/v2/meta/%s", e.CDN, galaxyPath),
		fmt.Sprintf("%s/depots/%s", e.ManifestsCollector, galaxyPath),
	}
}

// SecureLinkURL is the endpoint issuing short-lived signed CDN links.
func (e Endpoints) SecureLinkURL(gameID string, generation int, path string) string {
	if generation == 2 {
		return fmt.Sprintf("%s/products/%s/secure_link?generation=2&_version=2&path=%s", e.ContentSystem, gameID, path)
	}
	return fmt.Sprintf("%s/products/%s/secure_link?_version=2&type=depot&path=%s", e.ContentSystem, gameID, path)
}
