// ABOUTME: Vulnerability scan source invoking the trivy binary and decoding
// ABOUTME: its JSON report, optionally against a remote trivy server.

package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/imageintel/imageintel/internal/errdefs"
	"github.com/imageintel/imageintel/internal/types"
)

// TrivyScanner runs trivy as a subprocess. Registry credentials are passed
// through the environment, never on the command line.
type TrivyScanner struct {
	logger *logrus.Logger
}

// NewTrivyScanner creates a subprocess-backed scan source.
func NewTrivyScanner(logger *logrus.Logger) *TrivyScanner {
	return &TrivyScanner{logger: logger}
}

// Scan runs `trivy image --format json` against ref and decodes the report.
func (s *TrivyScanner) Scan(ctx context.Context, ref types.ImageReference, opts types.ScanOptions) (*types.TrivyOutput, error) {
	args := []string{"image", "--format", "json", "--quiet"}
	if opts.Server != "" {
		args = append(args, "--server", opts.Server)
	}
	args = append(args, ref.String())

	cmd := exec.CommandContext(ctx, "trivy", args...)
	cmd.Env = os.Environ()
	if opts.Username != "" {
		cmd.Env = append(cmd.Env, "TRIVY_USERNAME="+opts.Username)
	}
	if opts.Password != "" {
		cmd.Env = append(cmd.Env, "TRIVY_PASSWORD="+opts.Password)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	s.logger.WithFields(logrus.Fields{
		"image":  ref.String(),
		"server": opts.Server,
	}).Debug("Running trivy scan")

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "trivy exited abnormally"
		}
		return nil, errdefs.SourceFailure(fmt.Sprintf("trivy scan of %s: %s", ref.String(), msg), err)
	}

	var output types.TrivyOutput
	if err := json.Unmarshal(stdout.Bytes(), &output); err != nil {
		return nil, errdefs.ParseFailure(fmt.Sprintf("decoding trivy output for %s", ref.String()), err)
	}

	return &output, nil
}
