// ABOUTME: Mock vulnerability scan source for local testing and development.
// ABOUTME: Produces realistic finding profiles without invoking trivy.

package mock

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/imageintel/imageintel/internal/types"
)

// MockScanSource implements ScanSource with canned finding profiles keyed by
// the image name.
type MockScanSource struct {
	logger *logrus.Logger
}

// NewMockScanSource creates a mock scan source.
func NewMockScanSource(logger *logrus.Logger) *MockScanSource {
	return &MockScanSource{logger: logger}
}

// Scan fabricates a trivy report for ref. Images with "clean" in the name
// come back without findings.
func (m *MockScanSource) Scan(ctx context.Context, ref types.ImageReference, opts types.ScanOptions) (*types.TrivyOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.logger.WithField("image", ref.String()).Debug("Serving mock scan result")

	output := &types.TrivyOutput{
		ArtifactName: ref.String(),
		Results:      []types.TrivyResult{{}},
	}

	switch {
	case strings.Contains(ref.Name, "clean"):
		// no findings
	case strings.Contains(ref.Name, "nginx") || strings.Contains(ref.Name, "web"):
		output.Results[0].Vulnerabilities = webServerVulns()
	default:
		output.Results[0].Vulnerabilities = genericVulns()
	}

	return output, nil
}

func webServerVulns() []types.TrivyVulnerability {
	return []types.TrivyVulnerability{
		{
			ID:               "CVE-2023-44487",
			PkgName:          "nginx",
			InstalledVersion: "1.24.0",
			FixedVersion:     "1.25.3",
			Severity:         types.SeverityHigh,
			PrimaryURL:       "https://avd.aquasec.com/nvd/cve-2023-44487",
		},
		{
			ID:               "CVE-2023-38545",
			PkgName:          "libcurl",
			InstalledVersion: "8.3.0",
			FixedVersion:     "8.4.0",
			Severity:         types.SeverityCritical,
			PrimaryURL:       "https://avd.aquasec.com/nvd/cve-2023-38545",
		},
	}
}

func genericVulns() []types.TrivyVulnerability {
	return []types.TrivyVulnerability{
		{
			ID:               "CVE-2024-6119",
			PkgName:          "libssl3",
			InstalledVersion: "3.0.11",
			FixedVersion:     "3.0.15",
			Severity:         types.SeverityMedium,
			PrimaryURL:       "https://avd.aquasec.com/nvd/cve-2024-6119",
		},
		{
			ID:               "CVE-2023-4911",
			PkgName:          "libc6",
			InstalledVersion: "2.35-0ubuntu3.1",
			FixedVersion:     "2.35-0ubuntu3.4",
			Severity:         types.SeverityHigh,
			PrimaryURL:       "https://avd.aquasec.com/nvd/cve-2023-4911",
		},
		{
			ID:               "CVE-2016-2781",
			PkgName:          "coreutils",
			InstalledVersion: "8.32-4.1ubuntu1",
			Severity:         types.SeverityLow,
		},
	}
}
