// ABOUTME: Mock signature verification source for local testing.
// ABOUTME: Accepts every key except ones containing "invalid".

package mock

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/imageintel/imageintel/internal/errdefs"
	"github.com/imageintel/imageintel/internal/types"
)

// MockVerifySource implements VerifySource without invoking cosign.
type MockVerifySource struct {
	logger *logrus.Logger
}

// NewMockVerifySource creates a mock verify source.
func NewMockVerifySource(logger *logrus.Logger) *MockVerifySource {
	return &MockVerifySource{logger: logger}
}

// Verify fabricates a verification outcome. Keys containing "invalid" fail
// the way a real mismatched key would.
func (m *MockVerifySource) Verify(ctx context.Context, key string, ref types.ImageReference) (*types.VerificationOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.logger.WithField("image", ref.String()).Debug("Serving mock verification")

	if strings.Contains(key, "invalid") {
		return nil, errdefs.SourceFailure(
			fmt.Sprintf("cosign verify of %s: no matching signatures", ref.String()), nil)
	}

	return &types.VerificationOutcome{
		Message: "Verified OK",
		Signatures: []types.VerifiedSignature{
			{
				Critical: types.VerifiedCritical{
					Identity: types.VerifiedIdentity{DockerReference: ref.String()},
					Image:    types.VerifiedImage{Digest: "sha256:" + strings.Repeat("ab", 32)},
					Type:     "cosign container image signature",
				},
			},
		},
	}, nil
}
