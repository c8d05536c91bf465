package remote

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// SkewReport summarizes version spread across cluster nodes, shown by the
// cluster monitor panel.
type SkewReport struct {
	Oldest string `json:"oldest"`
	Newest string `json:"newest"`
	// Mixed is true when nodes run different versions.
	Mixed bool `json:"mixed"`
	// MajorSkew is true when the spread crosses a major version boundary,
	// which the data service does not support in one cluster.
	MajorSkew bool `json:"majorSkew"`
	// Unparseable lists nodes whose reported version is not semver.
	Unparseable []string `json:"unparseable,omitempty"`
}

// AnalyzeSkew computes the version spread over the given nodes.
func AnalyzeSkew(nodes []Node) (*SkewReport, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("remote:skew - no nodes to analyze")
	}

	report := &SkewReport{}
	var oldest, newest *semver.Version
	for _, n := range nodes {
		v, err := semver.NewVersion(n.Version)
		if err != nil {
			report.Unparseable = append(report.Unparseable, n.Name)
			continue
		}
		if oldest == nil || v.LessThan(oldest) {
			oldest = v
		}
		if newest == nil || v.GreaterThan(newest) {
			newest = v
		}
	}
	if oldest == nil {
		return nil, fmt.Errorf("remote:skew - no node reported a parseable version")
	}

	report.Oldest = oldest.String()
	report.Newest = newest.String()
	report.Mixed = !oldest.Equal(newest)
	report.MajorSkew = oldest.Major() != newest.Major()
	return report, nil
}
