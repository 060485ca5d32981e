package query

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ethgate/gateway/node"
	"github.com/ethgate/gateway/rpc"
	"github.com/ethgate/gateway/templating"
)

// Service answers get-events requests: merge one or more named-event
// matchers into a single eth_getLogs filter, run it against the node, and
// render every matching log through the shared templater.
type Service struct {
	encoder   *Encoder
	client    *node.Client
	templater *templating.Templater
	origin    []common.Address
}

// NewService builds a query Service. origin scopes every query to a fixed
// set of contract addresses, matching the callback engine's per-job origin.
func NewService(encoder *Encoder, client *node.Client, templater *templating.Templater, origin []common.Address) *Service {
	return &Service{encoder: encoder, client: client, templater: templater, origin: origin}
}

// Query runs matchers against the node between fromBlock and toBlock
// (either may be nil, meaning "unbounded" in that direction) and returns
// the rendered template string for every matching log, in the order the
// node returned them.
func (s *Service) Query(ctx context.Context, matchers []Matcher, fromBlock, toBlock *rpc.BlockID) ([]string, error) {
	topics, err := s.encoder.EncodeMatchers(matchers)
	if err != nil {
		return nil, err
	}

	filter := rpc.Filter{
		Topics:    topics,
		Origin:    s.origin,
		FromBlock: fromBlock,
		ToBlock:   toBlock,
	}

	logs, err := s.client.GetLogs(ctx, filter)
	if err != nil {
		return nil, err
	}

	rendered := make([]string, 0, len(logs))
	for _, l := range logs {
		str, err := s.templater.TemplateLog(l)
		if err != nil {
			return nil, err
		}
		rendered = append(rendered, str)
	}
	return rendered, nil
}
