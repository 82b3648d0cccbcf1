package discovery

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// Browser finds producers on the local network.
type Browser interface {
	// Browse streams producers as they are discovered. The channel is
	// closed when ctx is done or the browser is stopped.
	Browse(ctx context.Context) (<-chan *ProducerService, error)

	// Find returns the producer with the given instance name, or the first
	// producer found when instance is empty.
	Find(ctx context.Context, instance string) (*ProducerService, error)

	// Stop ends all browse operations.
	Stop()
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// BrowseTimeout bounds Find when the caller's context has no deadline.
	// Default: 10 seconds.
	BrowseTimeout time.Duration

	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// Logger is optional.
	Logger *slog.Logger
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		BrowseTimeout: BrowseTimeout,
	}
}

// ServiceEntry is a resolved DNS-SD record, independent of the mDNS library.
type ServiceEntry struct {
	Instance string
	Host     string
	Port     uint16
	Text     []string
	Addrs    []string
}

// ToProducerService converts a ServiceEntry to ProducerService.
func (e *ServiceEntry) ToProducerService() (*ProducerService, error) {
	svc, err := DecodeProducerTXT(StringsToTXTRecords(e.Text))
	if err != nil {
		return nil, err
	}
	svc.Instance = e.Instance
	svc.Host = e.Host
	svc.Port = e.Port
	svc.Addresses = slices.Clone(e.Addrs)
	return svc, nil
}

// fromZeroconf flattens a zeroconf entry.
func fromZeroconf(entry *zeroconf.ServiceEntry) ServiceEntry {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return ServiceEntry{
		Instance: entry.Instance,
		Host:     entry.HostName,
		Port:     uint16(entry.Port),
		Text:     entry.Text,
		Addrs:    addrs,
	}
}

// MDNSBrowser implements Browser using zeroconf.
type MDNSBrowser struct {
	config BrowserConfig
	logger *slog.Logger

	mu      sync.Mutex
	cancels map[int]context.CancelFunc
	nextID  int
	stopped bool
}

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig) *MDNSBrowser {
	if config.BrowseTimeout <= 0 {
		config.BrowseTimeout = BrowseTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &MDNSBrowser{
		config:  config,
		logger:  logger,
		cancels: make(map[int]context.CancelFunc),
	}
}

// Browse searches for producers. Services are aggregated by instance name:
// addresses from multiple interfaces are combined into a single entry.
func (b *MDNSBrowser) Browse(ctx context.Context) (<-chan *ProducerService, error) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil, ErrBrowserStopped
	}
	ctx, cancel := context.WithCancel(ctx)
	id := b.nextID
	b.nextID++
	b.cancels[id] = cancel
	b.mu.Unlock()

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)
	found := make(chan ServiceEntry)
	lost := make(chan ServiceEntry)
	out := make(chan *ProducerService)

	go func() {
		defer close(found)
		defer close(lost)
		for {
			select {
			case e, ok := <-entries:
				if !ok {
					return
				}
				select {
				case found <- fromZeroconf(e):
				case <-ctx.Done():
					return
				}
			case e, ok := <-removed:
				if !ok {
					removed = nil
					continue
				}
				select {
				case lost <- fromZeroconf(e):
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		aggregate(ctx, found, lost, out, b.logger)
		b.mu.Lock()
		delete(b.cancels, id)
		b.mu.Unlock()
		cancel()
	}()

	go func() {
		if err := zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, b.browserOptions()...); err != nil {
			b.logger.Warn("mdns browse failed", "error", err)
			cancel()
		}
	}()

	return out, nil
}

// Find returns the named producer, or the first compatible producer when
// instance is empty.
func (b *MDNSBrowser) Find(ctx context.Context, instance string) (*ProducerService, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.config.BrowseTimeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	return first(ctx, results, instance)
}

// Stop ends all browse operations.
func (b *MDNSBrowser) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopped = true
	for id, cancel := range b.cancels {
		cancel()
		delete(b.cancels, id)
	}
}

// browserOptions returns zeroconf client options based on config.
func (b *MDNSBrowser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if ifaces := selectInterfaces(b.config.Interface); ifaces != nil {
		opts = append(opts, zeroconf.SelectIfaces(ifaces))
	}
	return opts
}

// aggregate turns raw entries into one ProducerService per instance,
// merging addresses and forgetting instances once all addresses are gone.
// Each instance is emitted once, when first seen, and emitted again only
// after it was forgotten. It closes out when found is closed or ctx is done.
func aggregate(ctx context.Context, found, lost <-chan ServiceEntry, out chan<- *ProducerService, logger *slog.Logger) {
	defer close(out)

	services := make(map[string]*ProducerService)
	for {
		select {
		case entry, ok := <-found:
			if !ok {
				return
			}
			svc, err := entry.ToProducerService()
			if err != nil {
				logger.Debug("ignoring producer", "instance", entry.Instance, "error", err)
				continue
			}

			if existing, seen := services[svc.Instance]; seen {
				existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
				continue
			}
			services[svc.Instance] = svc
			emit := *svc
			emit.Addresses = slices.Clone(svc.Addresses)
			select {
			case out <- &emit:
			case <-ctx.Done():
				return
			}

		case entry, ok := <-lost:
			if !ok {
				lost = nil
				continue
			}
			if existing, seen := services[entry.Instance]; seen {
				existing.Addresses = removeAddresses(existing.Addresses, entry.Addrs)
				if len(existing.Addresses) == 0 {
					delete(services, entry.Instance)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}

// first waits for a matching producer on results.
func first(ctx context.Context, results <-chan *ProducerService, instance string) (*ProducerService, error) {
	for {
		select {
		case svc, ok := <-results:
			if !ok {
				return nil, ErrNotFound
			}
			if instance == "" || svc.Instance == instance {
				return svc, nil
			}
		case <-ctx.Done():
			return nil, ErrNotFound
		}
	}
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, add []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range add {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses drops the given addresses from the list.
func removeAddresses(addresses, drop []string) []string {
	toRemove := make(map[string]bool, len(drop))
	for _, addr := range drop {
		toRemove[addr] = true
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}

var _ Browser = (*MDNSBrowser)(nil)
