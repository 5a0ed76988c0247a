package telegram

import (
	"sync"
	"time"
)

const (
	maxPixels = 18_000_000
	maxFile   = 20 << 20
	maxText   = 3900
)

// debounce is how long an album waits for more screenshots.
var debounce = 1200 * time.Millisecond

// chat -> Target set with /code, used for the next photo without a caption.
var pending sync.Map

func setPending(chatID int64, t Target) { pending.Store(chatID, t) }
func getPending(chatID int64) (Target, bool) {
	if v, ok := pending.Load(chatID); ok {
		t, ok := v.(Target)
		return t, ok
	}
	return Target{}, false
}
func clearPending(chatID int64) { pending.Delete(chatID) }

// photoBatch collects the screenshots of one album.
type photoBatch struct {
	ChatID       int64
	Key          string // "grp:<mediaGroupID>"
	MediaGroupID string

	mu      sync.Mutex
	fileIDs []string
	target  Target
	timer   *time.Timer
}

var batches sync.Map // key -> *photoBatch
