// internal/playlist/queue_test.go
//
//nolint:goconst // test file with repeated string literals
package playlist

import (
	"math/rand/v2"
	"slices"
	"testing"
)

func newQueue(current int, idList ...string) *PlayingQueue {
	q := NewQueue()
	tracks := make([]Track, len(idList))
	for i, id := range idList {
		tracks[i] = tr(id)
	}
	q.Replace(tracks, current)
	return q
}

func assertOrder(t *testing.T, q *PlayingQueue, want ...string) {
	t.Helper()
	if got := ids(q.Tracks()); !slices.Equal(got, want) {
		t.Errorf("Tracks() = %v, want %v", got, want)
	}
}

func assertCurrent(t *testing.T, q *PlayingQueue, want string) {
	t.Helper()
	cur := q.Current()
	if cur == nil {
		t.Fatalf("Current() = nil, want %s", want)
	}
	if cur.ID != want {
		t.Errorf("Current().ID = %q, want %q", cur.ID, want)
	}
}

func TestNewQueue(t *testing.T) {
	q := NewQueue()

	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
	if q.CurrentIndex() != -1 {
		t.Errorf("CurrentIndex() = %d, want -1", q.CurrentIndex())
	}
	if q.Current() != nil {
		t.Error("Current() should be nil for empty queue")
	}
	if q.NextIndex(true) != -1 {
		t.Error("NextIndex on empty queue should be -1")
	}
}

func TestQueue_Add(t *testing.T) {
	q := NewQueue()

	q.Add(tr("a"), tr("b"))

	if q.Len() != 2 {
		t.Errorf("Len() = %d, want 2", q.Len())
	}
	// Add doesn't change current index
	if q.CurrentIndex() != -1 {
		t.Errorf("CurrentIndex() = %d, want -1 (unchanged)", q.CurrentIndex())
	}
}

func TestQueue_AddAndPlay(t *testing.T) {
	q := newQueue(0, "existing")

	track := q.AddAndPlay(tr("new1"), tr("new2"))

	if q.CurrentIndex() != 1 {
		t.Errorf("CurrentIndex() = %d, want 1", q.CurrentIndex())
	}
	if track == nil || track.ID != "new1" {
		t.Errorf("returned track = %v, want new1", track)
	}
	if q.AddAndPlay() != nil {
		t.Error("AddAndPlay with no tracks should return nil")
	}
}

func TestQueue_Replace(t *testing.T) {
	q := newQueue(1, "old1", "old2")

	track := q.Replace([]Track{tr("a"), tr("b"), tr("c")}, 2)

	assertOrder(t, q, "a", "b", "c")
	if track == nil || track.ID != "c" {
		t.Errorf("returned track = %v, want c", track)
	}

	q.Replace([]Track{tr("x")}, 9)
	assertCurrent(t, q, "x")

	if q.Replace(nil, 0) != nil || q.CurrentIndex() != -1 {
		t.Error("Replace with nothing should leave no current track")
	}
}

func TestQueue_Current_ReturnsCopy(t *testing.T) {
	q := newQueue(0, "a")

	q.Current().Title = "changed"

	if q.Tracks()[0].Title != "" {
		t.Error("Current() should return a copy")
	}
}

func TestQueue_NextIndex(t *testing.T) {
	tests := []struct {
		name    string
		current int
		wrap    bool
		want    int
	}{
		{"middle", 0, false, 1},
		{"last no wrap", 2, false, -1},
		{"last wrap", 2, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newQueue(tt.current, "a", "b", "c")
			if got := q.NextIndex(tt.wrap); got != tt.want {
				t.Errorf("NextIndex(%v) = %d, want %d", tt.wrap, got, tt.want)
			}
		})
	}

	q := newQueue(2, "a", "b", "c")
	if next := q.PeekNext(true); next == nil || next.ID != "a" {
		t.Errorf("PeekNext(true) = %v, want a", next)
	}
	if q.PeekNext(false) != nil {
		t.Error("PeekNext(false) at end should be nil")
	}
}

func TestQueue_Next(t *testing.T) {
	q := newQueue(0, "a", "b")

	if next := q.Next(); next == nil || next.ID != "b" {
		t.Errorf("Next() = %v, want b", next)
	}
	if q.Next() != nil {
		t.Error("Next() at end should return nil")
	}
	if q.CurrentIndex() != 1 {
		t.Errorf("CurrentIndex() = %d, want 1", q.CurrentIndex())
	}
	if !q.HasPrev() || q.HasNext() {
		t.Error("expected HasPrev and not HasNext at the end")
	}
}

func TestQueue_JumpTo(t *testing.T) {
	q := newQueue(0, "a", "b", "c")

	if track := q.JumpTo(2); track == nil || track.ID != "c" {
		t.Errorf("JumpTo(2) = %v, want c", track)
	}
	if q.JumpTo(3) != nil || q.JumpTo(-1) != nil {
		t.Error("JumpTo out of range should return nil")
	}
	if q.CurrentIndex() != 2 {
		t.Errorf("CurrentIndex() = %d, want 2", q.CurrentIndex())
	}
}

func TestQueue_RemoveAt(t *testing.T) {
	tests := []struct {
		name      string
		current   int
		remove    int
		wantIndex int
		wantOrder []string
	}{
		{"before current", 2, 0, 1, []string{"b", "c", "d"}},
		{"after current", 1, 3, 1, []string{"a", "b", "c"}},
		{"current", 1, 1, 1, []string{"a", "c", "d"}},
		{"current at end", 3, 3, 2, []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newQueue(tt.current, "a", "b", "c", "d")
			if !q.RemoveAt(tt.remove) {
				t.Fatal("RemoveAt should return true")
			}
			assertOrder(t, q, tt.wantOrder...)
			if q.CurrentIndex() != tt.wantIndex {
				t.Errorf("CurrentIndex() = %d, want %d", q.CurrentIndex(), tt.wantIndex)
			}
			if !slices.Equal(ids(q.OriginalTracks()), tt.wantOrder) {
				t.Errorf("OriginalTracks() = %v, want %v", ids(q.OriginalTracks()), tt.wantOrder)
			}
		})
	}

	q := newQueue(0, "a")
	if q.RemoveAt(5) {
		t.Error("RemoveAt out of range should return false")
	}
}

func TestQueue_Clear(t *testing.T) {
	q := newQueue(1, "a", "b", "c")

	q.Clear()

	assertOrder(t, q, "b")
	assertCurrent(t, q, "b")

	empty := NewQueue()
	empty.Add(tr("a"))
	empty.Clear()
	if !empty.IsEmpty() || empty.CurrentIndex() != -1 {
		t.Error("Clear with nothing current should empty the queue")
	}
}

func TestQueue_ClearUpcoming(t *testing.T) {
	q := newQueue(1, "a", "b", "c", "d")

	q.ClearUpcoming()

	assertOrder(t, q, "a", "b")
	assertCurrent(t, q, "b")
	if len(q.Upcoming()) != 0 {
		t.Errorf("Upcoming() = %v, want none", ids(q.Upcoming()))
	}
}

func TestQueue_ClearUpcoming_Shuffled(t *testing.T) {
	q := newQueue(0, "a", "b", "c", "d", "e")
	q.Shuffle(rand.New(rand.NewPCG(1, 1)))
	upcoming := ids(q.Upcoming())

	q.ClearUpcoming()
	q.Unshuffle()

	assertOrder(t, q, "a")
	for _, id := range upcoming {
		if q.IndexOf(id) >= 0 {
			t.Errorf("%s survived ClearUpcoming", id)
		}
	}
}

func TestQueue_InsertNext(t *testing.T) {
	q := newQueue(1, "a", "b", "c")

	q.InsertNext(tr("x"))
	assertOrder(t, q, "a", "b", "x", "c")

	// An existing occurrence moves instead of duplicating.
	q.InsertNext(tr("a"))
	assertOrder(t, q, "b", "a", "x", "c")
	assertCurrent(t, q, "b")

	// The current track is left alone.
	q.InsertNext(tr("b"))
	assertOrder(t, q, "b", "a", "x", "c")

	if !slices.Equal(ids(q.OriginalTracks()), ids(q.Tracks())) {
		t.Error("unshuffled original order should mirror the queue")
	}
}

func TestQueue_InsertNext_NothingCurrent(t *testing.T) {
	q := NewQueue()
	q.Add(tr("a"))

	q.InsertNext(tr("x"))

	assertOrder(t, q, "x", "a")
}

func TestQueue_InsertNext_Shuffled(t *testing.T) {
	q := newQueue(1, "a", "b", "c", "d")
	q.Shuffle(rand.New(rand.NewPCG(5, 5)))

	q.InsertNext(tr("x"))

	if q.Tracks()[1].ID != "x" {
		t.Errorf("queue = %v, want x right after current", ids(q.Tracks()))
	}
	q.Unshuffle()
	assertOrder(t, q, "a", "b", "x", "c", "d")
	assertCurrent(t, q, "b")
}

func TestQueue_Move(t *testing.T) {
	tests := []struct {
		name      string
		current   int
		from, to  int
		wantIndex int
	}{
		{"both after current", 1, 2, 3, 1},
		{"from before to after", 2, 0, 3, 1},
		{"from after to before", 1, 3, 0, 2},
		{"move current", 1, 1, 3, 3},
		{"both before current", 3, 0, 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newQueue(tt.current, "a", "b", "c", "d")
			playing := q.Current().ID

			if !q.Move(tt.from, tt.to) {
				t.Fatal("Move should return true")
			}
			if q.CurrentIndex() != tt.wantIndex {
				t.Errorf("CurrentIndex() = %d, want %d", q.CurrentIndex(), tt.wantIndex)
			}
			assertCurrent(t, q, playing)
		})
	}
}

func TestQueue_ShuffleRoundTrip(t *testing.T) {
	q := newQueue(2, "a", "b", "c", "d", "e", "f")

	q.Shuffle(rand.New(rand.NewPCG(9, 9)))

	if !q.Shuffled() {
		t.Error("Shuffled() should be true")
	}
	if q.CurrentIndex() != 0 {
		t.Errorf("CurrentIndex() = %d, want 0", q.CurrentIndex())
	}
	assertCurrent(t, q, "c")

	q.Unshuffle()

	assertOrder(t, q, "a", "b", "c", "d", "e", "f")
	assertCurrent(t, q, "c")
	if q.CurrentIndex() != 2 {
		t.Errorf("CurrentIndex() = %d, want 2", q.CurrentIndex())
	}
}

func TestQueue_ShuffleAfterAdvancing(t *testing.T) {
	q := newQueue(0, "a", "b", "c", "d")
	q.Shuffle(rand.New(rand.NewPCG(2, 3)))
	q.Next()
	playing := q.Current().ID
	q.Add(tr("e"))

	q.Unshuffle()

	assertOrder(t, q, "a", "b", "c", "d", "e")
	assertCurrent(t, q, playing)
}

func TestQueue_Restore(t *testing.T) {
	q := NewQueue()

	q.Restore([]Track{tr("c"), tr("a"), tr("b")}, []Track{tr("a"), tr("b"), tr("c")}, 1)

	assertCurrent(t, q, "a")
	if !q.Shuffled() {
		t.Error("restored shuffled snapshot should be shuffled")
	}
	q.Unshuffle()
	assertOrder(t, q, "a", "b", "c")
	assertCurrent(t, q, "a")

	q.Restore([]Track{tr("x")}, nil, 7)
	if q.Shuffled() || q.CurrentIndex() != -1 {
		t.Error("out-of-range index should restore with nothing current")
	}
}
