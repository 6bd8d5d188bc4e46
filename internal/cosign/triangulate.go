// ABOUTME: Computes the conventional location of an image's detached
// ABOUTME: signature manifest from its reference and content digest.

package cosign

import (
	"fmt"
	"strings"

	"github.com/imageintel/imageintel/internal/types"
)

// Triangulate derives the reference of the detached signature manifest for
// an image: the content digest with ':' replaced by '-', suffixed with
// ".sig", attached as a tag on the source repository. Pure, no I/O.
//
// Example: ghcr.io/example/app:1.0.0 with digest sha256:aa..
// triangulates to ghcr.io/example/app:sha256-aa...sig.
func Triangulate(ref types.ImageReference, dgst types.ContentDigest) (types.ImageReference, error) {
	if ref.Registry == "" || ref.Name == "" {
		return types.ImageReference{}, fmt.Errorf("cannot triangulate from incomplete reference %q", ref.String())
	}
	if dgst == "" {
		return types.ImageReference{}, fmt.Errorf("cannot triangulate %q without a content digest", ref.String())
	}

	tag := strings.ReplaceAll(dgst.String(), ":", "-") + ".sig"
	return ref.WithTag(tag), nil
}
