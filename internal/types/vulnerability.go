// ABOUTME: Vulnerability finding model, severity ordering, and the trivy JSON
// ABOUTME: wire format the scan source decodes.

package types

import "sort"

// Severity classifies a vulnerability's impact. The order is
// Critical > High > Medium > Low > Unknown.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityUnknown  Severity = "UNKNOWN"
)

// Rank maps a severity onto an integer where higher means more severe.
// Unrecognized values rank as Unknown.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// VulnerabilityFinding is one vulnerability affecting one installed package.
type VulnerabilityFinding struct {
	Severity         Severity `json:"severity"`
	ID               string   `json:"id"`
	PkgName          string   `json:"pkg_name"`
	InstalledVersion string   `json:"installed_version"`
	FixedVersion     string   `json:"fixed_version,omitempty"`
	PrimaryURL       string   `json:"primary_url,omitempty"`
	References       []string `json:"references,omitempty"`
	Score            *float64 `json:"score,omitempty"`
}

// SortFindings returns findings ordered by (severity, ID, package), most
// severe first, with duplicate (severity, ID, package) triples collapsed.
func SortFindings(findings []VulnerabilityFinding) []VulnerabilityFinding {
	sorted := make([]VulnerabilityFinding, len(findings))
	copy(sorted, findings)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.PkgName < b.PkgName
	})

	out := sorted[:0]
	for i, f := range sorted {
		if i == 0 {
			out = append(out, f)
			continue
		}
		prev := sorted[i-1]
		if f.Severity != prev.Severity || f.ID != prev.ID || f.PkgName != prev.PkgName {
			out = append(out, f)
		}
	}
	if out == nil {
		out = []VulnerabilityFinding{}
	}
	return out
}

// SeverityCount tallies findings per severity bucket. It is derived from a
// finding set and never persisted independently of it.
type SeverityCount struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Unknown  int `json:"unknown"`
}

// CountSeverities tallies findings into severity buckets.
func CountSeverities(findings []VulnerabilityFinding) SeverityCount {
	var c SeverityCount
	for _, f := range findings {
		switch f.Severity {
		case SeverityCritical:
			c.Critical++
		case SeverityHigh:
			c.High++
		case SeverityMedium:
			c.Medium++
		case SeverityLow:
			c.Low++
		default:
			c.Unknown++
		}
	}
	return c
}

// Total is the number of findings across all buckets.
func (c SeverityCount) Total() int {
	return c.Critical + c.High + c.Medium + c.Low + c.Unknown
}

// ScanReport is the aggregated outcome of one vulnerability scan: the
// deduplicated findings plus their severity tally.
type ScanReport struct {
	ArtifactName  string                 `json:"artifact_name"`
	Findings      []VulnerabilityFinding `json:"findings"`
	SeverityCount SeverityCount          `json:"severity_count"`
}

// ScanOptions carry the optional scanner server address and registry
// credentials for one scan.
type ScanOptions struct {
	Server   string
	Username string
	Password string
}

// TrivyOutput is the top level of trivy's JSON report format.
type TrivyOutput struct {
	ArtifactName string        `json:"ArtifactName"`
	Results      []TrivyResult `json:"Results"`
}

// TrivyResult is one scan target (OS packages, a lockfile, ...).
type TrivyResult struct {
	Vulnerabilities []TrivyVulnerability `json:"Vulnerabilities,omitempty"`
}

// TrivyVulnerability is one raw finding as trivy reports it.
type TrivyVulnerability struct {
	ID               string   `json:"VulnerabilityID"`
	PkgName          string   `json:"PkgName"`
	InstalledVersion string   `json:"InstalledVersion"`
	FixedVersion     string   `json:"FixedVersion,omitempty"`
	Severity         Severity `json:"Severity"`
	PrimaryURL       string   `json:"PrimaryURL,omitempty"`
	References       []string `json:"References,omitempty"`
}

// Findings flattens all per-target vulnerabilities into one sorted,
// deduplicated finding set.
func (o TrivyOutput) Findings() []VulnerabilityFinding {
	var findings []VulnerabilityFinding
	for _, result := range o.Results {
		for _, v := range result.Vulnerabilities {
			findings = append(findings, VulnerabilityFinding{
				Severity:         v.Severity,
				ID:               v.ID,
				PkgName:          v.PkgName,
				InstalledVersion: v.InstalledVersion,
				FixedVersion:     v.FixedVersion,
				PrimaryURL:       v.PrimaryURL,
				References:       v.References,
			})
		}
	}
	return SortFindings(findings)
}
