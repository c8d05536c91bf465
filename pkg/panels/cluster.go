package panels

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/morezero/console-bridge/pkg/envelope"
	"github.com/morezero/console-bridge/pkg/remote"
	"github.com/morezero/console-bridge/pkg/resilience"
	"github.com/morezero/console-bridge/pkg/session"
)

const clusterLogPrefix = "panels:cluster"

// ClusterReport is the clusterNodes response: the raw node list plus the
// version-skew summary rendered as a warning banner by the panel.
type ClusterReport struct {
	Nodes []remote.Node      `json:"nodes"`
	Skew  *remote.SkewReport `json:"skew,omitempty"`
}

// ClusterFactory builds the handlers for the cluster monitor panel.
func ClusterFactory(deps Deps) session.Factory {
	deps = deps.normalized()
	return func(s *session.Session) error {
		s.Register(envelope.CmdClusterNodes, func(ctx context.Context, req *envelope.Request) (interface{}, error) {
			nodes, err := resilience.WithRetry(ctx, deps.Retry, func(ctx context.Context) ([]remote.Node, error) {
				return resilience.WithTimeout(ctx, deps.CallTimeout, func(ctx context.Context) ([]remote.Node, error) {
					return deps.Remote.ClusterNodes(ctx)
				})
			})
			if err != nil {
				return nil, err
			}

			report := &ClusterReport{Nodes: nodes}
			if len(nodes) > 0 {
				skew, err := remote.AnalyzeSkew(nodes)
				if err != nil {
					// Unparseable versions degrade to a node list
					// without the skew banner.
					slog.Warn(fmt.Sprintf("%s - skew analysis failed: %v", clusterLogPrefix, err))
				} else {
					report.Skew = skew
				}
			}
			return report, nil
		})
		return nil
	}
}
