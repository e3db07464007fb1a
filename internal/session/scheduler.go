package session

// Scheduler runs a callback on a future tick of the logical task that
// owns the Session. write() uses it to coalesce a burst of local
// writes happening within the same tick into a single flush, the way
// a cooperative single-threaded host would use a microtask queue
// (spec §9).
type Scheduler interface {
	Defer(fn func())
}

// ChannelScheduler is the default Scheduler: Defer posts the callback
// to a buffered channel, and Tasks returns that channel so a Run loop
// can drain it alongside inbound transport messages -- the channel +
// tick boundary rendering spec §9 describes for a multi-threaded host.
type ChannelScheduler struct {
	tasks chan func()
}

// NewChannelScheduler creates a ChannelScheduler with reasonable
// buffering for a session that rarely has more than one flush
// pending at a time.
func NewChannelScheduler() *ChannelScheduler {
	return &ChannelScheduler{tasks: make(chan func(), 8)}
}

// Defer implements Scheduler.
func (c *ChannelScheduler) Defer(fn func()) {
	c.tasks <- fn
}

// Tasks returns the channel of deferred callbacks.
func (c *ChannelScheduler) Tasks() <-chan func() {
	return c.tasks
}

// InlineScheduler runs callbacks immediately. It is useful in tests
// that want deterministic, synchronous flush behaviour without
// standing up a Run loop.
type InlineScheduler struct{}

// Defer implements Scheduler by calling fn synchronously.
func (InlineScheduler) Defer(fn func()) {
	fn()
}
