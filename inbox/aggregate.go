package inbox

import (
	"slices"
	"unicode/utf8"
)

const (
	excerptLen    = 30
	excerptMarker = "..."
)

// Aggregate groups msgs into threads as seen by viewerID. Threads are ordered
// by their most recent message, newest first. Each thread is summarised by its
// newest message and counts the unread messages the viewer received.
//
// msgs is not modified.
func Aggregate(msgs []Message, viewerID int64) []Thread {
	sorted := slices.Clone(msgs)
	slices.SortStableFunc(sorted, func(a, b Message) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	threads := make([]Thread, 0, len(sorted))
	index := make(map[ThreadKey]int, len(sorted))
	for _, m := range sorted {
		key := KeyOf(m, viewerID)
		i, ok := index[key]
		if !ok {
			i = len(threads)
			index[key] = i
			threads = append(threads, newThread(key, m, viewerID))
		}
		if m.RecipientID == viewerID && !m.Read {
			threads[i].Unread++
		}
	}
	return threads
}

func newThread(key ThreadKey, m Message, viewerID int64) Thread {
	t := Thread{
		Key:         key,
		LastID:      m.ID,
		LastContent: m.Content,
		LastKind:    m.Kind,
		LastTime:    m.CreatedAt,
		Title:       m.Title,
		ProductID:   m.ProductID,
		PostID:      m.PostID,
	}
	if m.IsSystem() {
		return t
	}
	t.OtherUserID = m.OtherParticipant(viewerID)
	// The sender name snapshot only describes the other side when they sent it.
	if m.SenderID == t.OtherUserID {
		t.OtherName = m.SenderName
	}
	return t
}

// Excerpt shortens s to at most 30 characters, appending "..." when it had to
// cut.
func Excerpt(s string) string {
	if utf8.RuneCountInString(s) <= excerptLen {
		return s
	}
	return string([]rune(s)[:excerptLen]) + excerptMarker
}
