// Package interaction implements the consumer side of the telemetry
// pub/sub protocol.
//
// A Client multiplexes many subscribers over one transport.Port. It
// stamps every outgoing envelope with a request ID, correlates get and
// inspect replies with the waiting caller, and dispatches pushes to the
// callbacks registered for their channel:
//
//	c := interaction.NewClient(port, interaction.DefaultConfig())
//	go c.Run(ctx)
//
//	unsubscribe, _ := c.Subscribe("device_1", 10, func(p interaction.Payload) {
//	    _ = store.HandlePayload(p)
//	})
//	defer unsubscribe()
//
//	data, err := c.Get(ctx, "weather")
//
// # Binary frames
//
// Delta frames carry no channel identifier. The client delivers every
// binary frame to every callback of every active subscription. With more
// than one binary channel subscribed on the same port this mixes their
// frames; whether a port should be limited to one binary channel is an
// open question of the protocol, so the behavior is kept as is.
//
// # Failure handling
//
// Malformed envelopes and panicking callbacks are logged and dropped. A
// request that receives no reply fails with ErrRequestTimeout. Only
// timeouts and transport errors reach callers.
package interaction
