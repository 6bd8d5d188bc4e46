// ABOUTME: Signature verification source invoking cosign verify with a
// ABOUTME: caller-supplied key and decoding its JSON payload output.

package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/imageintel/imageintel/internal/errdefs"
	"github.com/imageintel/imageintel/internal/types"
)

// CosignVerifier runs cosign as a subprocess.
type CosignVerifier struct {
	logger *logrus.Logger
}

// NewCosignVerifier creates a subprocess-backed verify source.
func NewCosignVerifier(logger *logrus.Logger) *CosignVerifier {
	return &CosignVerifier{logger: logger}
}

// Verify checks ref's signature against key. cosign prints its human-readable
// summary on stderr and the accepted payloads as JSON on stdout; both are
// returned.
func (v *CosignVerifier) Verify(ctx context.Context, key string, ref types.ImageReference) (*types.VerificationOutcome, error) {
	cmd := exec.CommandContext(ctx, "cosign", "verify",
		"--private-infrastructure=true",
		"--output=json",
		"--key", key,
		ref.String(),
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	v.logger.WithField("image", ref.String()).Debug("Running cosign verify")

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "cosign exited abnormally"
		}
		return nil, errdefs.SourceFailure(fmt.Sprintf("cosign verify of %s: %s", ref.String(), msg), err)
	}

	var signatures []types.VerifiedSignature
	if err := json.Unmarshal(stdout.Bytes(), &signatures); err != nil {
		return nil, errdefs.ParseFailure(fmt.Sprintf("decoding cosign output for %s", ref.String()), err)
	}

	return &types.VerificationOutcome{
		Message:    strings.TrimSpace(stderr.String()),
		Signatures: signatures,
	}, nil
}
