package models

import "github.com/npcchatter/backend/pkg/constants"

// CapabilityGrant is the set of operations a minted token authorizes on one channel.
// It exists only once the channel has been explicitly authorized.
type CapabilityGrant struct {
	Channel    ChannelName
	Operations []constants.Operation
}

// NewFullGrant grants every operation on channel.
func NewFullGrant(channel ChannelName) *CapabilityGrant {
	ops := make([]constants.Operation, len(constants.FullOperationSet))
	copy(ops, constants.FullOperationSet)
	return &CapabilityGrant{Channel: channel, Operations: ops}
}

// CapabilityMap renders the grant as channel -> operations. A nil grant renders as nil,
// meaning unscoped.
func (g *CapabilityGrant) CapabilityMap() map[string][]string {
	if g == nil {
		return nil
	}
	ops := make([]string, 0, len(g.Operations))
	for _, op := range g.Operations {
		ops = append(ops, string(op))
	}
	return map[string][]string{g.Channel.String(): ops}
}
