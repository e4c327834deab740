// ABOUTME: Discovery package for chunk feeds on the local network
// ABOUTME: Wraps hashicorp/mdns advertisement and browsing
// Package discovery advertises feed servers and finds them from players
// using mDNS under the _minibae-feed._tcp service type.
package discovery
