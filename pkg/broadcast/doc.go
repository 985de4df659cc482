// Package broadcast provides a small, generic publish/subscribe primitive for
// fanning values out to many concurrent consumers inside a single process.
//
// A Broadcaster delivers every published value to all active Subscribers. The
// in-memory implementation is deliberately lossy towards slow consumers: when
// a subscriber's buffer is full the value is dropped for that subscriber and
// the subscription is torn down, so a stalled reader can never block the
// publisher or its sibling subscribers.
//
// Subscriptions are tied to a context; cancelling the context removes the
// subscriber and closes its receive channel.
//
// # Usage
//
//	b := broadcast.NewMemoryBroadcaster[string](16)
//	defer b.Close()
//
//	sub := b.Subscribe(ctx)
//	go func() {
//	    for v := range sub.Receive(ctx) {
//	        fmt.Println(v)
//	    }
//	}()
//
//	_ = b.Broadcast(ctx, "hello")
package broadcast
