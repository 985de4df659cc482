package notify

import (
	"context"
	"slices"
)

// Channel sends one rendered notification to one recipient through a
// concrete delivery method. Implementations must be safe for concurrent use;
// Send is called from many goroutines at once.
type Channel interface {
	// DeliveryMethod identifies the method this channel serves.
	DeliveryMethod() DeliveryMethod

	// Send delivers text to recipient. The processing context gives access
	// to the originating request and per-method templates (for channels
	// that need more than the rendered body, such as an email subject).
	Send(ctx context.Context, recipient Recipient, text string, pctx *ProcessingContext) error
}

// ChannelRegistry is an immutable delivery-method-to-channel lookup table
// built once at construction. When several channels declare the same method,
// the last one wins.
type ChannelRegistry struct {
	channels map[DeliveryMethod]Channel
}

// NewChannelRegistry indexes the given channels by delivery method.
func NewChannelRegistry(channels ...Channel) *ChannelRegistry {
	indexed := make(map[DeliveryMethod]Channel, len(channels))
	for _, ch := range channels {
		if ch == nil {
			continue
		}
		indexed[ch.DeliveryMethod()] = ch
	}
	return &ChannelRegistry{channels: indexed}
}

// Channel returns the channel serving the method, if any.
func (r *ChannelRegistry) Channel(method DeliveryMethod) (Channel, bool) {
	ch, ok := r.channels[method]
	return ch, ok
}

// Methods lists the delivery methods with a registered channel, sorted for
// deterministic output.
func (r *ChannelRegistry) Methods() []DeliveryMethod {
	methods := make([]DeliveryMethod, 0, len(r.channels))
	for method := range r.channels {
		methods = append(methods, method)
	}
	slices.Sort(methods)
	return methods
}
