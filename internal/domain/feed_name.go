package domain

import (
	"errors"
	"fmt"
)

var ErrUnknownFeedName = errors.New("unknown feed name")

// FeedName identifies one of the supported blocklist feeds.
type FeedName string

const (
	SSHClient            FeedName = "sshclient"
	IPReputation         FeedName = "ipreputation"
	SSHPasswordAuth      FeedName = "sshpwauth"
	RecursiveDNS         FeedName = "dnsrd"
	VNCRemoteFrameBuffer FeedName = "vncrfb"
	CompromisedIPs       FeedName = "compromised-ips"
)

var feedNames = []FeedName{
	SSHClient,
	IPReputation,
	SSHPasswordAuth,
	RecursiveDNS,
	VNCRemoteFrameBuffer,
	CompromisedIPs,
}

// FeedNames returns every known feed name in declaration order.
func FeedNames() []FeedName {
	out := make([]FeedName, len(feedNames))
	copy(out, feedNames)
	return out
}

func (f FeedName) Valid() bool {
	for _, name := range feedNames {
		if f == name {
			return true
		}
	}
	return false
}

func (f FeedName) String() string { return string(f) }

func ParseFeedName(value string) (FeedName, error) {
	name := FeedName(value)
	if !name.Valid() {
		return "", fmt.Errorf("%w %q", ErrUnknownFeedName, value)
	}
	return name, nil
}

func (f *FeedName) UnmarshalText(text []byte) error {
	name, err := ParseFeedName(string(text))
	if err != nil {
		return err
	}
	*f = name
	return nil
}
