package producer

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/worthb0123/go-shared-fork/pkg/transport"
)

// ServeListener accepts framed stream connections on ln and serves each
// as a session. It returns when ctx ends or ln fails, after closing ln
// and waiting for its sessions to end.
func (h *Hub) ServeListener(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	h.logger.Info("stream listener started", "addr", ln.Addr().String())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h.Serve(ctx, transport.NewStreamPort(conn, 0)); err != nil {
				h.logger.Warn("stream session ended", "remote", conn.RemoteAddr().String(), "error", err)
			}
		}()
	}
}

// Handler returns an HTTP handler that upgrades requests to websocket
// sessions. Sessions end when ctx ends.
func (h *Hub) Handler(ctx context.Context) http.Handler {
	return transport.WebSocketHandler(func(p *transport.WebSocketPort) {
		if err := h.Serve(ctx, p); err != nil {
			h.logger.Warn("websocket session ended", "remote", p.RemoteAddr(), "error", err)
		}
	}, h.logger)
}
