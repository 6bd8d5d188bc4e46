// ABOUTME: Image reference and content digest types used as cache keys and
// ABOUTME: source arguments throughout the system.

package types

import (
	"fmt"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	digest "github.com/opencontainers/go-digest"
)

// ImageReference identifies a container image by registry, optional
// repository path, image name, and exactly one of tag or digest. It is
// immutable once parsed; its canonical String form is the universal
// cache-key component and the argument to every external source.
type ImageReference struct {
	Registry   string `json:"registry"`
	Repository string `json:"repository,omitempty"`
	Name       string `json:"name"`
	Tag        string `json:"tag,omitempty"`
	Digest     string `json:"digest,omitempty"`
}

// ParseImageReference parses a user-supplied image reference into its
// canonical form. Bare Docker Hub references are normalized the way the
// registry resolves them (index.docker.io, library/ prefix, latest tag),
// so the same image always produces the same cache key.
func ParseImageReference(s string) (ImageReference, error) {
	ref, err := name.ParseReference(strings.TrimSpace(s))
	if err != nil {
		return ImageReference{}, fmt.Errorf("invalid image reference %q: %w", s, err)
	}

	repo := ref.Context()
	path := repo.RepositoryStr()
	imageName := path
	var repoPath string
	if i := strings.LastIndex(path, "/"); i >= 0 {
		repoPath, imageName = path[:i], path[i+1:]
	}

	out := ImageReference{
		Registry:   repo.RegistryStr(),
		Repository: repoPath,
		Name:       imageName,
	}

	switch r := ref.(type) {
	case name.Tag:
		out.Tag = r.TagStr()
	case name.Digest:
		out.Digest = r.DigestStr()
	default:
		return ImageReference{}, fmt.Errorf("image reference %q has no tag or digest", s)
	}

	return out, nil
}

// String renders the canonical reference form:
// registry/[repository/]name{:tag|@digest}.
func (r ImageReference) String() string {
	var b strings.Builder
	b.WriteString(r.Registry)
	b.WriteByte('/')
	if r.Repository != "" {
		b.WriteString(r.Repository)
		b.WriteByte('/')
	}
	b.WriteString(r.Name)
	if r.Digest != "" {
		b.WriteByte('@')
		b.WriteString(r.Digest)
	} else {
		b.WriteByte(':')
		b.WriteString(r.Tag)
	}
	return b.String()
}

// WithTag returns a copy of the reference addressed by tag instead of
// whatever addressing mode it had before.
func (r ImageReference) WithTag(tag string) ImageReference {
	r.Tag = tag
	r.Digest = ""
	return r
}

// ContentDigest is an algorithm-prefixed content hash (sha256:<hex>)
// identifying exact manifest content.
type ContentDigest string

// ParseContentDigest validates s as an algorithm-prefixed digest.
func ParseContentDigest(s string) (ContentDigest, error) {
	d, err := digest.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid content digest %q: %w", s, err)
	}
	return ContentDigest(d), nil
}

func (d ContentDigest) String() string {
	return string(d)
}
