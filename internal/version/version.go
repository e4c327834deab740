// ABOUTME: Version and product identification
// ABOUTME: Reported in feed handshakes, the TUI header and -version output
package version

import "fmt"

// Version is overridden at build time with -ldflags "-X ...version.Version=..."
var Version = "0.1.0"

const (
	// Product names the player and feed in handshakes and mDNS records
	Product = "minibae-stream"

	// Manufacturer identifies the software vendor
	Manufacturer = "miniBAE"
)

// String returns the product and version for banners
func String() string {
	return fmt.Sprintf("%s %s", Product, Version)
}
