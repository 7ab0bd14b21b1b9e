// Package manifest holds helpers shared by the HLS and DASH parsers:
// error taxonomy and URL resolution. DASH template expansion lives in the
// dash package.
package manifest

import "net/url"

// Resolve joins a possibly-relative reference against a base URL the way
// every manifest URI (variant playlists, segment URIs, BaseURL elements)
// must be resolved before it is fetched. An unparsable base or ref is
// returned as-is rather than failing the whole parse; manifests routinely
// carry slightly malformed URIs and best-effort parsing is the design
// choice at this layer.
func Resolve(base, ref string) string {
	if ref == "" {
		return base
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if refURL.IsAbs() {
		return ref
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}
