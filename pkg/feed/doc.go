// ABOUTME: Feed package serving producer output over WebSocket
// ABOUTME: One producer, many players, advertised over mDNS
// Package feed runs a producer on one machine and broadcasts its chunks to
// players elsewhere on the network.
//
// Each player receives feed/hello with the PCM format, then binary chunks
// tagged with their frame offset, then feed/end. A player that falls behind
// loses chunks rather than stalling the feed.
package feed
