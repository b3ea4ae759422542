package browser

import "sync"

// DownloadState describes the lifecycle stage of a browser download.
type DownloadState int

const (
	DownloadBegan DownloadState = iota
	DownloadInProgress
	DownloadCompleted
	DownloadCanceled
	DownloadFailed
)

func (s DownloadState) String() string {
	switch s {
	case DownloadBegan:
		return "began"
	case DownloadInProgress:
		return "in progress"
	case DownloadCompleted:
		return "completed"
	case DownloadCanceled:
		return "canceled"
	case DownloadFailed:
		return "failed"
	}
	return "unknown"
}

// DownloadEvent is a normalized download lifecycle event. ID is the
// engine-assigned identifier; with AllowAndName download behavior the file on
// disk is named after it.
type DownloadEvent struct {
	ID                string
	SuggestedFilename string
	State             DownloadState
	Received          int64
	Total             int64
}

// eventHub fans download events out to any number of subscribers. Subscriber
// channels are buffered; a subscriber that falls far behind loses events
// rather than blocking the browser event listener.
type eventHub struct {
	mu   sync.Mutex
	subs map[int]chan DownloadEvent
	next int
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[int]chan DownloadEvent)}
}

// subscribe registers a new subscriber. The returned cancel function detaches
// it and closes the channel.
func (h *eventHub) subscribe() (<-chan DownloadEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	ch := make(chan DownloadEvent, 64)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

func (h *eventHub) publish(ev DownloadEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// Drop instead of blocking the CDP listener goroutine.
		}
	}
}

// closeAll detaches every subscriber. Called when the session closes.
func (h *eventHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
