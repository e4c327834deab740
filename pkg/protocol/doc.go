// ABOUTME: Chunk feed wire protocol package
// ABOUTME: Defines protocol messages and the WebSocket feed client
// Package protocol implements the chunk feed wire protocol.
//
// A player sends client/hello, the feed answers with feed/hello carrying
// the PCM format, then streams binary audio chunks until feed/end.
//
// Example:
//
//	client := protocol.NewClient(protocol.Config{URL: "ws://host:8930/feed"})
//	err := client.Connect(ctx)
//	chunk, err := client.Next()
package protocol
