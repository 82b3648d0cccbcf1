package main

import (
	"context"
	"log/slog"
	"sync"

	"github.com/worthb0123/go-shared-fork/pkg/interaction"
	"github.com/worthb0123/go-shared-fork/pkg/producer"
	"github.com/worthb0123/go-shared-fork/pkg/register"
)

// deviceFeed keeps one device channel subscribed into a register store
// across sessions and device switches.
type deviceFeed struct {
	store  *register.Store
	fps    int
	logger *slog.Logger

	// onUpdate runs after every applied payload.
	onUpdate func()

	mu      sync.Mutex
	device  int
	client  *interaction.Client
	cancel  func()
	applied uint64
	errors  uint64
}

func newDeviceFeed(store *register.Store, device, fps int, logger *slog.Logger) *deviceFeed {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &deviceFeed{
		store:    store,
		fps:      fps,
		device:   device,
		logger:   logger,
		onUpdate: func() {},
	}
}

// setup is the connection.SetupFunc of the supervisor: every new session
// starts from an empty store and subscribes the current device.
func (f *deviceFeed) setup(_ context.Context, c *interaction.Client) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.client = c
	f.cancel = nil
	return f.subscribeLocked()
}

// switchTo moves the feed to another device. Without a session the
// device is only remembered for the next one.
func (f *deviceFeed) switchTo(device int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if device == f.device {
		return nil
	}
	f.device = device
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	if f.client == nil {
		f.store.Reset()
		f.onUpdate()
		return nil
	}
	return f.subscribeLocked()
}

func (f *deviceFeed) subscribeLocked() error {
	f.store.Reset()
	f.onUpdate()

	channel := producer.DeviceChannel(f.device)
	cancel, err := f.client.Subscribe(channel, f.fps, f.handle)
	if err != nil {
		return err
	}
	f.cancel = cancel
	f.logger.Info("subscribed", "channel", channel, "fps", f.fps)
	return nil
}

func (f *deviceFeed) handle(p interaction.Payload) {
	f.mu.Lock()
	stale := !p.Binary && p.Channel != producer.DeviceChannel(f.device)
	f.mu.Unlock()
	if stale {
		return
	}

	err := f.store.HandlePayload(p)

	f.mu.Lock()
	if err != nil {
		f.errors++
	} else {
		f.applied++
	}
	f.mu.Unlock()

	if err != nil {
		f.logger.Debug("payload rejected", "channel", p.Channel, "error", err)
		return
	}
	f.onUpdate()
}

// Device returns the subscribed device number.
func (f *deviceFeed) Device() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.device
}

// Counts returns the applied and rejected payload counts.
func (f *deviceFeed) Counts() (applied, rejected uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.applied, f.errors
}
