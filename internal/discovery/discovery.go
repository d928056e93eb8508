// Package discovery locates speakers on the local network over mDNS. The
// devices advertise _bose-passport._tcp with their GUID in the TXT records,
// which lets us recover a speaker whose configured address went stale.
package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/libp2p/zeroconf/v2"
	"go.uber.org/zap"
)

const (
	serviceName = "_bose-passport._tcp"
	mdnsDomain  = "local."
)

// DefaultTimeout bounds one browse. mDNS answers arrive within a second or
// two on a healthy network.
const DefaultTimeout = 10 * time.Second

// Browser finds speakers by GUID. It implements device.GUIDResolver.
type Browser struct {
	logger  *zap.Logger
	timeout time.Duration
}

func New(logger *zap.Logger) *Browser {
	return &Browser{logger: logger, timeout: DefaultTimeout}
}

// WithTimeout overrides the per-lookup browse timeout.
func (b *Browser) WithTimeout(d time.Duration) *Browser {
	b.timeout = d
	return b
}

// Lookup browses for the speaker advertising guid and returns its address.
func (b *Browser) Lookup(ctx context.Context, guid string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 8)
	errCh := make(chan error, 1)
	go func() {
		errCh <- zeroconf.Browse(ctx, serviceName, mdnsDomain, entries)
	}()

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				if err := <-errCh; err != nil && ctx.Err() == nil {
					return "", fmt.Errorf("mdns browse failed: %w", err)
				}
				return "", fmt.Errorf("speaker %s not found", guid)
			}
			if entry == nil || !matchesGUID(entry, guid) {
				continue
			}
			host := entryAddress(entry)
			if host == "" {
				continue
			}
			b.logger.Info("Discovered speaker",
				zap.String("guid", guid),
				zap.String("host", host),
				zap.String("instance", entry.Instance))
			return host, nil
		case <-ctx.Done():
			return "", fmt.Errorf("speaker %s not found before timeout", guid)
		}
	}
}

// matchesGUID checks the TXT records for the GUID key the speakers publish.
// Older firmware omits it; the instance name carries the GUID there.
func matchesGUID(entry *zeroconf.ServiceEntry, guid string) bool {
	for _, txt := range entry.Text {
		key, value, found := strings.Cut(txt, "=")
		if found && strings.EqualFold(key, "guid") && strings.EqualFold(value, guid) {
			return true
		}
	}
	return strings.EqualFold(entry.Instance, guid)
}

func entryAddress(entry *zeroconf.ServiceEntry) string {
	if len(entry.AddrIPv4) > 0 {
		return entry.AddrIPv4[0].String()
	}
	if entry.HostName != "" {
		return strings.TrimSuffix(entry.HostName, ".")
	}
	return ""
}
