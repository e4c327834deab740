// ABOUTME: mDNS service discovery for chunk feeds
// ABOUTME: Feed servers advertise themselves; players browse for them
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

// ServiceType is the DNS-SD type feeds advertise under
const ServiceType = "_minibae-feed._tcp"

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	Path        string // websocket path advertised in TXT
	SampleRate  int    // advertised in TXT so players can show it before connecting
}

// Manager handles mDNS operations
type Manager struct {
	config Config
	ctx    context.Context
	cancel context.CancelFunc
	feeds  chan *FeedInfo
	server *mdns.Server
}

// FeedInfo describes a discovered feed
type FeedInfo struct {
	Name       string
	Host       string
	Port       int
	Path       string
	SampleRate int
}

// URL returns the websocket URL of the feed
func (f *FeedInfo) URL() string {
	path := f.Path
	if path == "" {
		path = "/feed"
	}
	return fmt.Sprintf("ws://%s%s", net.JoinHostPort(f.Host, strconv.Itoa(f.Port)), path)
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config: config,
		ctx:    ctx,
		cancel: cancel,
		feeds:  make(chan *FeedInfo, 10),
	}
}

// Advertise advertises this feed via mDNS
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		txtRecords(m.config),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}
	m.server = server

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)", m.config.ServiceName, m.config.Port, ServiceType)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse searches for feeds until Stop is called
func (m *Manager) Browse() error {
	go m.browseLoop()
	return nil
}

// browseLoop continuously browses for feeds
func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)

		go func() {
			for entry := range entries {
				feed := feedFromEntry(entry)
				if feed == nil {
					continue
				}

				log.Printf("Discovered feed: %s at %s:%d", feed.Name, feed.Host, feed.Port)

				select {
				case m.feeds <- feed:
				case <-m.ctx.Done():
					return
				}
			}
		}()

		params := &mdns.QueryParam{
			Service: ServiceType,
			Domain:  "local",
			Timeout: 3 * time.Second,
			Entries: entries,
		}

		err := mdns.Query(params)
		close(entries)

		if err != nil {
			log.Printf("mDNS query failed: %v", err)
			select {
			case <-time.After(time.Second):
			case <-m.ctx.Done():
				return
			}
		}
	}
}

// Feeds returns the channel of discovered feeds
func (m *Manager) Feeds() <-chan *FeedInfo {
	return m.feeds
}

// Stop stops the discovery manager
func (m *Manager) Stop() {
	m.cancel()
}

// Discover browses until the first feed shows up or ctx ends
func Discover(ctx context.Context) (*FeedInfo, error) {
	m := NewManager(Config{})
	defer m.Stop()

	if err := m.Browse(); err != nil {
		return nil, err
	}

	select {
	case feed := <-m.Feeds():
		return feed, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("no feed found: %w", ctx.Err())
	}
}

func txtRecords(config Config) []string {
	path := config.Path
	if path == "" {
		path = "/feed"
	}
	txt := []string{"path=" + path}
	if config.SampleRate > 0 {
		txt = append(txt, "rate="+strconv.Itoa(config.SampleRate))
	}
	return txt
}

// feedFromEntry converts a browse result; entries without an IPv4 address are skipped
func feedFromEntry(entry *mdns.ServiceEntry) *FeedInfo {
	if entry.AddrV4 == nil {
		return nil
	}

	feed := &FeedInfo{
		Name: strings.TrimSuffix(entry.Name, "."+ServiceType+".local."),
		Host: entry.AddrV4.String(),
		Port: entry.Port,
	}

	for _, field := range entry.InfoFields {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "path":
			feed.Path = value
		case "rate":
			if rate, err := strconv.Atoi(value); err == nil {
				feed.SampleRate = rate
			}
		}
	}

	return feed
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
