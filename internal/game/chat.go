package game

// FeedCapacity bounds the chat feed. Inserting an 11th entry evicts the
// oldest.
const FeedCapacity = 10

// SystemAuthor is the reserved author label the authority uses for
// announcements (e.g. a newly asked question) pushed into the shared feed.
const SystemAuthor = "Question"

// Entry is one chat line: either a player message or a system announcement,
// in whatever order the authority pushed them.
type Entry struct {
	Author  string
	Content string
}

// System reports whether the entry is an authority announcement rather than a
// player message, so a renderer can style it differently.
func (e Entry) System() bool {
	return e.Author == SystemAuthor
}

// Feed is a fixed-capacity, insertion-ordered log. It performs no reordering
// or merging; eviction is strictly FIFO.
type Feed struct {
	entries []Entry
}

func NewFeed() *Feed {
	return &Feed{entries: make([]Entry, 0, FeedCapacity)}
}

func (f *Feed) Append(e Entry) {
	f.entries = append(f.entries, e)
	if len(f.entries) > FeedCapacity {
		f.entries = f.entries[len(f.entries)-FeedCapacity:]
	}
}

func (f *Feed) Len() int { return len(f.entries) }

func (f *Feed) Entries() []Entry {
	out := make([]Entry, len(f.entries))
	copy(out, f.entries)
	return out
}
