// ABOUTME: Registry manifest wire model shared by the manifest source and the
// ABOUTME: signature provenance fetcher.

package types

// SignatureCertificateAnnotation is the layer annotation key under which
// cosign stores the PEM-encoded signing certificate.
const SignatureCertificateAnnotation = "dev.sigstore.cosign/certificate"

// RegistryManifest is an image manifest or manifest list as returned by a
// registry. Manifest lists carry Manifests; single-image and signature
// manifests carry Layers.
type RegistryManifest struct {
	SchemaVersion int                `json:"schemaVersion"`
	MediaType     string             `json:"mediaType"`
	Manifests     []PlatformManifest `json:"manifests,omitempty"`
	Layers        []Layer            `json:"layers,omitempty"`
}

// PlatformManifest is one per-platform entry of a manifest list.
type PlatformManifest struct {
	MediaType string    `json:"mediaType"`
	Size      int64     `json:"size"`
	Digest    string    `json:"digest"`
	Platform  *Platform `json:"platform,omitempty"`
}

// Platform identifies the target of a per-platform sub-manifest.
type Platform struct {
	Architecture string `json:"architecture"`
	OS           string `json:"os"`
}

// Layer is one manifest layer entry. Signature manifests carry signing
// certificates as annotation values rather than image content.
type Layer struct {
	MediaType   string            `json:"mediaType"`
	Size        int64             `json:"size"`
	Digest      string            `json:"digest"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// ManifestResult is a fetched manifest together with the content digest the
// registry resolved for it. The digest feeds signature triangulation.
type ManifestResult struct {
	Manifest RegistryManifest `json:"manifest"`
	Digest   ContentDigest    `json:"digest"`
}
