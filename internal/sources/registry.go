// ABOUTME: Registry manifest source built on go-containerregistry's remote
// ABOUTME: client, with 404 responses mapped to typed not-found errors.

package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
	"github.com/sirupsen/logrus"

	"github.com/imageintel/imageintel/internal/errdefs"
	"github.com/imageintel/imageintel/internal/types"
)

// RegistrySource fetches manifests over the OCI distribution API.
type RegistrySource struct {
	auth   authn.Authenticator
	logger *logrus.Logger
}

// NewRegistrySource creates a manifest source using basic auth when
// credentials are given and anonymous access otherwise.
func NewRegistrySource(username, password string, logger *logrus.Logger) *RegistrySource {
	auth := authn.Authenticator(authn.Anonymous)
	if username != "" && password != "" {
		auth = &authn.Basic{Username: username, Password: password}
	}
	return &RegistrySource{
		auth:   auth,
		logger: logger,
	}
}

// GetManifest fetches and decodes the manifest ref points at, along with the
// content digest the registry resolved for it.
func (s *RegistrySource) GetManifest(ctx context.Context, ref types.ImageReference) (*types.ManifestResult, error) {
	parsed, err := name.ParseReference(ref.String())
	if err != nil {
		return nil, errdefs.SourceFailure(fmt.Sprintf("invalid reference %q", ref.String()), err)
	}

	s.logger.WithField("image", ref.String()).Debug("Fetching manifest from registry")

	descriptor, err := remote.Get(parsed, remote.WithAuth(s.auth), remote.WithContext(ctx))
	if err != nil {
		var terr *transport.Error
		if errors.As(err, &terr) && terr.StatusCode == http.StatusNotFound {
			return nil, errdefs.NotFound(fmt.Sprintf("manifest for %s not found", ref.String()), err)
		}
		return nil, errdefs.SourceFailure(fmt.Sprintf("fetching manifest for %s", ref.String()), err)
	}

	var manifest types.RegistryManifest
	if err := json.Unmarshal(descriptor.Manifest, &manifest); err != nil {
		return nil, errdefs.ParseFailure(fmt.Sprintf("decoding manifest for %s", ref.String()), err)
	}

	dgst, err := types.ParseContentDigest(descriptor.Digest.String())
	if err != nil {
		return nil, errdefs.ParseFailure(fmt.Sprintf("digest for %s", ref.String()), err)
	}

	return &types.ManifestResult{Manifest: manifest, Digest: dgst}, nil
}
