// ABOUTME: Signature claim and verification result types for cosign data.
// ABOUTME: Signature lists are always sorted and deduplicated before use.

package types

import "sort"

// Signature is one (issuer, identity) claim extracted from a signing
// certificate. The field order also defines the sort order.
type Signature struct {
	Issuer   string `json:"issuer"`
	Identity string `json:"identity"`
}

// SortSignatures returns sigs sorted lexicographically by (issuer, identity)
// with duplicate pairs collapsed. Multi-platform signing commonly produces
// several certificates attesting the same claim. The result is never nil so
// an unsigned image serializes as an empty list.
func SortSignatures(sigs []Signature) []Signature {
	sorted := make([]Signature, len(sigs))
	copy(sorted, sigs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Issuer != sorted[j].Issuer {
			return sorted[i].Issuer < sorted[j].Issuer
		}
		return sorted[i].Identity < sorted[j].Identity
	})

	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	if out == nil {
		out = []Signature{}
	}
	return out
}

// CosignInformation is the derived signature provenance of one image: where
// its detached signature manifest lives and which claims it carries. Zero
// signatures is a valid result meaning the image is unsigned.
type CosignInformation struct {
	ManifestLocation string      `json:"manifest_location"`
	Signatures       []Signature `json:"signatures"`
}

// Signed reports whether at least one signature claim was found.
func (c CosignInformation) Signed() bool {
	return len(c.Signatures) > 0
}

// VerificationOutcome is the parsed result of a key-based cosign
// verification: the verifier's own message plus the payload entries it
// accepted.
type VerificationOutcome struct {
	Message    string              `json:"message"`
	Signatures []VerifiedSignature `json:"signatures"`
}

// VerifiedSignature is one entry of cosign's JSON verify output.
type VerifiedSignature struct {
	Critical VerifiedCritical  `json:"critical"`
	Optional map[string]string `json:"optional,omitempty"`
}

// VerifiedCritical is the mandatory block of a verified signature payload.
type VerifiedCritical struct {
	Identity VerifiedIdentity `json:"identity"`
	Image    VerifiedImage    `json:"image"`
	Type     string           `json:"type"`
}

type VerifiedIdentity struct {
	DockerReference string `json:"docker-reference"`
}

type VerifiedImage struct {
	Digest string `json:"docker-manifest-digest"`
}
