package notify

import (
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coflyn/flow/internal/playback"
)

// mockNotifier records notifications for testing.
type mockNotifier struct {
	mu            sync.Mutex
	notifications []Notification
	lastID        uint32
	closed        bool
}

func (m *mockNotifier) Notify(n Notification) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastID++
	m.notifications = append(m.notifications, n)
	return m.lastID, nil
}

func (m *mockNotifier) Dismiss(uint32) error { return nil }

func (m *mockNotifier) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockNotifier) sent() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Notification(nil), m.notifications...)
}

func TestAnnouncer_NowPlaying(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		bus := playback.NewBus(zerolog.Nop())
		mock := &mockNotifier{}
		a := NewAnnouncer(mock, bus, Options{NowPlaying: true, ShowCover: true, Timeout: 5 * time.Second}, zerolog.Nop())
		defer a.Close()

		bus.Publish(playback.TrackChange{Track: playback.Track{
			ID: "a", Title: "Test Song", Artist: "Test Artist", Album: "Test Album", CoverURI: "/music/cover.jpg",
		}})
		synctest.Wait()
		bus.Publish(playback.TrackChange{Track: playback.Track{ID: "b", Artist: "Solo"}})
		synctest.Wait()

		sent := mock.sent()
		require.Len(t, sent, 2)
		assert.Equal(t, "Test Song", sent[0].Summary)
		assert.Equal(t, "Test Artist · Test Album", sent[0].Body)
		assert.Equal(t, "/music/cover.jpg", sent[0].Image)
		assert.Equal(t, 5*time.Second, sent[0].Timeout)
		assert.Equal(t, UrgencyLow, sent[0].Urgency)
		assert.Zero(t, sent[0].Replaces)

		assert.Equal(t, "b", sent[1].Summary, "falls back to the id")
		assert.Equal(t, "Solo", sent[1].Body)
		assert.Equal(t, uint32(1), sent[1].Replaces, "replaces the previous notification")
	})
}

func TestAnnouncer_NowPlayingDisabled(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		bus := playback.NewBus(zerolog.Nop())
		mock := &mockNotifier{}
		a := NewAnnouncer(mock, bus, Options{}, zerolog.Nop())
		defer a.Close()

		bus.Publish(playback.TrackChange{Track: playback.Track{ID: "a", CoverURI: "/c.jpg"}})
		synctest.Wait()

		assert.Empty(t, mock.sent())
	})
}

func TestAnnouncer_Notices(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		bus := playback.NewBus(zerolog.Nop())
		mock := &mockNotifier{}
		a := NewAnnouncer(mock, bus, Options{}, zerolog.Nop())
		defer a.Close()

		bus.Publish(playback.Notice{Message: "Sleep timer ended"})
		synctest.Wait()
		bus.Publish(playback.Notice{Message: "Playback stopped", Terminal: true})
		synctest.Wait()

		sent := mock.sent()
		require.Len(t, sent, 2)
		assert.Equal(t, "Flow", sent[0].Summary)
		assert.Equal(t, "Sleep timer ended", sent[0].Body)
		assert.Equal(t, UrgencyNormal, sent[0].Urgency)
		assert.Zero(t, sent[0].Timeout, "server default")
		assert.Equal(t, UrgencyCritical, sent[1].Urgency)
	})
}

func TestAnnouncer_CloseStops(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		bus := playback.NewBus(zerolog.Nop())
		mock := &mockNotifier{}
		a := NewAnnouncer(mock, bus, Options{NowPlaying: true}, zerolog.Nop())

		require.NoError(t, a.Close())
		bus.Publish(playback.TrackChange{Track: playback.Track{ID: "a"}})
		synctest.Wait()

		assert.Empty(t, mock.sent())
		assert.Zero(t, bus.Len())
		assert.True(t, mock.closed, "owns the notifier")
	})
}
