// ABOUTME: Derives deduplicated (issuer, identity) signature claims from the
// ABOUTME: certificate annotations of a signature manifest's layers.

package cosign

import (
	"fmt"
	"strings"

	"github.com/imageintel/imageintel/internal/types"
)

// Fulcio certificate extension OIDs carrying the OIDC claims, plus the
// Subject Alternative Name extension older certificates put the identity in.
const (
	oidIssuer         = "1.3.6.1.4.1.57264.1.1"
	oidIdentity       = "1.3.6.1.4.1.57264.1.9"
	oidSubjectAltName = "2.5.29.17"
	identityURLPrefix = "https://"
)

// SignaturesFromLayers extracts one signature claim per layer carrying the
// cosign certificate annotation and returns them sorted by (issuer,
// identity) and deduplicated. A single malformed certificate fails the whole
// derivation: signature claims are a trust decision, so a manifest is
// rejected rather than silently degraded.
func SignaturesFromLayers(layers []types.Layer) ([]types.Signature, error) {
	var signatures []types.Signature

	for _, layer := range layers {
		pemData, ok := layer.Annotations[types.SignatureCertificateAnnotation]
		if !ok {
			continue
		}

		cert, err := ParseCertificatePEM([]byte(pemData))
		if err != nil {
			return nil, fmt.Errorf("certificate in layer %s: %w", layer.Digest, err)
		}

		signatures = append(signatures, claimFromCertificate(cert))
	}

	return types.SortSignatures(signatures), nil
}

// claimFromCertificate reads the OIDC issuer extension, then the OIDC
// identity extension with a fallback to the SAN extension. Identities are
// trimmed to their first https:// occurrence: older certificate shapes embed
// DER framing bytes ahead of the URL.
func claimFromCertificate(cert *Certificate) types.Signature {
	issuer := cert.Extensions[oidIssuer]

	identity, ok := cert.Extensions[oidIdentity]
	if !ok {
		identity = cert.Extensions[oidSubjectAltName]
	}
	if i := strings.Index(identity, identityURLPrefix); i > 0 {
		identity = identity[i:]
	}

	return types.Signature{Issuer: issuer, Identity: identity}
}
