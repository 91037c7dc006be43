package models

import (
	"strings"

	"github.com/npcchatter/backend/pkg/constants"
	"github.com/npcchatter/backend/pkg/errors"
)

// ChannelName is a parsed realtime channel identifier of the form <namespace>:<resource-id>.
type ChannelName struct {
	Namespace  constants.ChannelNamespace
	ResourceID string
}

// String renders the channel back to its wire form.
func (c ChannelName) String() string {
	return string(c.Namespace) + constants.ChannelSeparator + c.ResourceID
}

// ParseChannelName splits raw on the first separator. Only the campaign namespace is
// recognized; everything after the first separator is the campaign id, so
// "campaign:c1:extra" names campaign "c1:extra".
func ParseChannelName(raw string) (ChannelName, error) {
	namespace, resourceID, found := strings.Cut(raw, constants.ChannelSeparator)
	if !found {
		return ChannelName{}, errors.ErrUnsupportedNamespace(raw)
	}
	if constants.ChannelNamespace(namespace) != constants.NamespaceCampaign {
		return ChannelName{}, errors.ErrUnsupportedNamespace(namespace)
	}
	if strings.TrimSpace(resourceID) == "" {
		return ChannelName{}, errors.ErrMalformedChannel(raw)
	}
	return ChannelName{Namespace: constants.NamespaceCampaign, ResourceID: resourceID}, nil
}

// CampaignID returns the resource id of a campaign channel.
func (c ChannelName) CampaignID() string {
	return c.ResourceID
}
