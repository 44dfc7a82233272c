package timeline

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Minhal128/CodeX/common/id"
	"github.com/Minhal128/CodeX/internal/decoder"
	"github.com/Minhal128/CodeX/internal/model"
)

type Origin string

const (
	// Local entries were sent by this session.
	Local Origin = "local"
	// Remote entries arrived over the channel.
	Remote Origin = "remote"
	// Synthetic entries were generated by this session, such as directive
	// progress and failure notices.
	Synthetic Origin = "synthetic"
)

type Entry struct {
	ID      int64
	Message model.Message
	Content decoder.Content
	Origin  Origin
	At      time.Time
}

// Text is what the entry shows in the chat.
func (e Entry) Text() string {
	if e.Content == nil {
		return e.Message.Body
	}
	return e.Content.Display()
}

// Timeline is the ordered, append-only chat history of a session. Entries are
// never deduplicated: a locally sent message that echoes back over the
// channel appears twice.
type Timeline struct {
	clock clockwork.Clock

	mu          sync.Mutex
	entries     []Entry
	subscribers []func(Entry)
}

type Option func(*Timeline)

func WithClock(clock clockwork.Clock) Option {
	return func(t *Timeline) {
		t.clock = clock
	}
}

func New(opts ...Option) *Timeline {
	t := &Timeline{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Append adds e at the end of the timeline, assigning its id and timestamp
// when unset, and returns the stored entry. Subscribers are notified in
// append order.
func (t *Timeline) Append(e Entry) Entry {
	if e.ID == 0 {
		e.ID = id.New()
	}
	if e.At.IsZero() {
		e.At = t.clock.Now()
	}
	if e.Content == nil {
		e.Content = decoder.Text{Body: e.Message.Body}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = append(t.entries, e)
	for _, fn := range t.subscribers {
		fn(e)
	}
	return e
}

// Entries returns a copy of the timeline.
func (t *Timeline) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Entry(nil), t.entries...)
}

func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Subscribe registers fn to receive every entry appended from now on. fn is
// called with the timeline locked and must not call back into it.
func (t *Timeline) Subscribe(fn func(Entry)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subscribers = append(t.subscribers, fn)
}
