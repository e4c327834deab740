// ABOUTME: Output sink interface consumed by the scheduler
// ABOUTME: Device clock plus fire-and-forget block submission
package playback

// Sink is the destination for scheduled blocks.
//
// Implementations must be safe for concurrent use: CurrentTime is read from
// the chunk delivery path and from status readers while the device advances
// the clock on its own thread.
type Sink interface {
	// CurrentTime returns the device clock in seconds. It never goes backwards.
	CurrentTime() float64

	// Schedule queues block to start at startTime on the device clock and
	// returns immediately. An error means the sink will not accept more
	// blocks (for example, the device was closed).
	Schedule(block *Block, startTime float64) error
}
