package inbox

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return t0.Add(time.Duration(minutes) * time.Minute)
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name   string
		viewer int64
		msgs   []Message
		want   []Thread
	}{
		{
			name:   "Empty",
			viewer: 1,
			want:   []Thread{},
		},
		{
			name:   "ProductChatAndSystem",
			viewer: 1,
			msgs: []Message{
				{ID: 1, RecipientID: 1, SenderID: 2, SenderName: "bob", ProductID: 5, Kind: KindChat, Content: "a", CreatedAt: at(1)},
				{ID: 2, RecipientID: 1, SenderID: 2, SenderName: "bob", ProductID: 5, Kind: KindChat, Content: "b", CreatedAt: at(2)},
				{ID: 3, RecipientID: 1, Kind: KindSystem, Title: "Welcome", Content: "hi", CreatedAt: at(0)},
			},
			want: []Thread{
				{
					Key:    ThreadKey{Scope: ScopeProduct, ContextID: 5, OtherUserID: 2},
					LastID: 2, LastContent: "b", LastKind: KindChat, LastTime: at(2),
					ProductID: 5, OtherUserID: 2, OtherName: "bob", Unread: 2,
				},
				{
					Key:    ThreadKey{Scope: ScopeSystem, ContextID: 3},
					LastID: 3, LastContent: "hi", LastKind: KindSystem, LastTime: at(0),
					Title: "Welcome", Unread: 1,
				},
			},
		},
		{
			name:   "SystemMessagesNeverMerge",
			viewer: 1,
			msgs: []Message{
				{ID: 1, RecipientID: 1, Kind: KindOrder, CreatedAt: at(1), Read: true},
				{ID: 2, RecipientID: 1, Kind: KindOrder, CreatedAt: at(2)},
			},
			want: []Thread{
				{Key: ThreadKey{Scope: ScopeSystem, ContextID: 2}, LastID: 2, LastKind: KindOrder, LastTime: at(2), Unread: 1},
				{Key: ThreadKey{Scope: ScopeSystem, ContextID: 1}, LastID: 1, LastKind: KindOrder, LastTime: at(1)},
			},
		},
		{
			name:   "ProductlessChatCollapses",
			viewer: 1,
			msgs: []Message{
				{ID: 1, RecipientID: 1, SenderID: 4, Kind: KindChat, CreatedAt: at(1)},
				{ID: 2, RecipientID: 1, SenderID: 4, Kind: KindOrder, CreatedAt: at(3)},
			},
			want: []Thread{
				{Key: ThreadKey{Scope: ScopeProduct, OtherUserID: 4}, LastID: 2, LastKind: KindOrder, LastTime: at(3), OtherUserID: 4, Unread: 2},
			},
		},
		{
			name:   "SentMessagesAreNeverUnread",
			viewer: 1,
			msgs: []Message{
				{ID: 1, RecipientID: 1, SenderID: 2, SenderName: "bob", ProductID: 7, Kind: KindChat, CreatedAt: at(1)},
				{ID: 2, RecipientID: 2, SenderID: 1, SenderName: "alice", ProductID: 7, Kind: KindChat, Content: "reply", CreatedAt: at(2)},
			},
			want: []Thread{
				{
					Key:    ThreadKey{Scope: ScopeProduct, ContextID: 7, OtherUserID: 2},
					LastID: 2, LastContent: "reply", LastKind: KindChat, LastTime: at(2),
					ProductID: 7, OtherUserID: 2, Unread: 1,
				},
			},
		},
		{
			name:   "PondByPostAndCommenter",
			viewer: 1,
			msgs: []Message{
				{ID: 1, RecipientID: 1, SenderID: 2, PostID: 9, Kind: KindPond, CreatedAt: at(1)},
				{ID: 2, RecipientID: 1, SenderID: 3, PostID: 9, Kind: KindPond, CreatedAt: at(2)},
				{ID: 3, RecipientID: 1, SenderID: 2, PostID: 9, Kind: KindPond, CreatedAt: at(3), Read: true},
			},
			want: []Thread{
				{Key: ThreadKey{Scope: ScopePost, ContextID: 9, OtherUserID: 2}, LastID: 3, LastKind: KindPond, LastTime: at(3), PostID: 9, OtherUserID: 2, Unread: 1},
				{Key: ThreadKey{Scope: ScopePost, ContextID: 9, OtherUserID: 3}, LastID: 2, LastKind: KindPond, LastTime: at(2), PostID: 9, OtherUserID: 3, Unread: 1},
			},
		},
		{
			name:   "TiesKeepInputOrder",
			viewer: 1,
			msgs: []Message{
				{ID: 1, RecipientID: 1, SenderID: 2, ProductID: 1, Kind: KindChat, Content: "first", CreatedAt: at(1)},
				{ID: 2, RecipientID: 1, SenderID: 2, ProductID: 1, Kind: KindChat, Content: "second", CreatedAt: at(1)},
			},
			want: []Thread{
				{Key: ThreadKey{Scope: ScopeProduct, ContextID: 1, OtherUserID: 2}, LastID: 1, LastContent: "first", LastKind: KindChat, LastTime: at(1), ProductID: 1, OtherUserID: 2, Unread: 2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(tt.msgs, tt.viewer)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Aggregate() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAggregate_doesNotModifyInput(t *testing.T) {
	msgs := []Message{
		{ID: 1, RecipientID: 1, Kind: KindSystem, CreatedAt: at(1)},
		{ID: 2, RecipientID: 1, Kind: KindSystem, CreatedAt: at(2)},
	}
	Aggregate(msgs, 1)
	if msgs[0].ID != 1 || msgs[1].ID != 2 {
		t.Errorf("Aggregate() reordered its input: %v", msgs)
	}
}

func TestAggregate_permutationsGroupTheSame(t *testing.T) {
	msgs := []Message{
		{ID: 1, RecipientID: 1, SenderID: 2, ProductID: 5, Kind: KindChat, CreatedAt: at(1)},
		{ID: 2, RecipientID: 2, SenderID: 1, ProductID: 5, Kind: KindChat, CreatedAt: at(2)},
		{ID: 3, RecipientID: 1, SenderID: 2, ProductID: 5, Kind: KindChat, CreatedAt: at(3)},
		{ID: 4, RecipientID: 1, Kind: KindSystem, CreatedAt: at(4)},
		{ID: 5, RecipientID: 1, SenderID: 3, PostID: 8, Kind: KindPond, CreatedAt: at(5), Read: true},
		{ID: 6, RecipientID: 1, SenderID: 3, Kind: KindChat, CreatedAt: at(6)},
	}
	want := unreadByKey(Aggregate(msgs, 1))

	permute(msgs, 0, func(p []Message) {
		got := unreadByKey(Aggregate(p, 1))
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("grouping depends on input order (-want +got):\n%s", diff)
		}
	})
}

func unreadByKey(threads []Thread) map[string]int {
	out := make(map[string]int, len(threads))
	for _, th := range threads {
		out[th.Key.String()] = th.Unread
	}
	return out
}

func permute(msgs []Message, k int, visit func([]Message)) {
	if k == len(msgs) {
		visit(msgs)
		return
	}
	for i := k; i < len(msgs); i++ {
		msgs[k], msgs[i] = msgs[i], msgs[k]
		permute(msgs, k+1, visit)
		msgs[k], msgs[i] = msgs[i], msgs[k]
	}
}

func TestExcerpt(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "Empty", in: "", want: ""},
		{name: "Short", in: "hello", want: "hello"},
		{name: "Exact", in: strings.Repeat("a", 30), want: strings.Repeat("a", 30)},
		{name: "Long", in: strings.Repeat("a", 31), want: strings.Repeat("a", 30) + "..."},
		{name: "Multibyte", in: strings.Repeat("鱼", 40), want: strings.Repeat("鱼", 30) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Excerpt(tt.in); got != tt.want {
				t.Errorf("Excerpt() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseThreadKey(t *testing.T) {
	tests := []struct {
		in      string
		want    ThreadKey
		wantErr bool
	}{
		{in: "system-12", want: ThreadKey{Scope: ScopeSystem, ContextID: 12}},
		{in: "product-5-2", want: ThreadKey{Scope: ScopeProduct, ContextID: 5, OtherUserID: 2}},
		{in: "product-0-2", want: ThreadKey{Scope: ScopeProduct, OtherUserID: 2}},
		{in: "pond-9-3", want: ThreadKey{Scope: ScopePost, ContextID: 9, OtherUserID: 3}},
		{in: "pond-0-3", wantErr: true},
		{in: "system-0", wantErr: true},
		{in: "system-1-2", wantErr: true},
		{in: "product-5", wantErr: true},
		{in: "product-x-2", wantErr: true},
		{in: "order-1-2", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseThreadKey(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidThreadKey) {
					t.Errorf("ParseThreadKey() error = %v, want ErrInvalidThreadKey", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseThreadKey() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseThreadKey() = %+v, want %+v", got, tt.want)
			}
			if s := got.String(); s != tt.in {
				t.Errorf("String() = %q, want %q", s, tt.in)
			}
		})
	}
}
