package signal

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/blaketylerfullerton/aerialintelligence/internal/core/domain"
	"github.com/blaketylerfullerton/aerialintelligence/internal/core/ports"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dialHub(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForSubscribers(t *testing.T, hub *AlertHub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for hub.SubscriberCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber count never reached %d", want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAlertHub_DeliversEventsToSubscribers(t *testing.T) {
	hub := NewAlertHub(zap.NewNop().Sugar())
	defer hub.Close()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	conn := dialHub(t, server)
	waitForSubscribers(t, hub, 1)

	hub.Publish(ports.AlertEvent{
		TickID:  "tick-1",
		Message: "SECURITY ALERT [HIGH]",
		Assessment: domain.ThreatAssessment{
			StreamKey: "cam1",
			Level:     domain.LevelHigh,
			Score:     4,
			Triggered: true,
		},
	})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var event ports.AlertEvent
	require.NoError(t, conn.ReadJSON(&event))

	assert.Equal(t, "tick-1", event.TickID)
	assert.Equal(t, domain.StreamKey("cam1"), event.Assessment.StreamKey)
	assert.Equal(t, domain.LevelHigh, event.Assessment.Level)
}

func TestAlertHub_ConcurrentPublishersSingleSubscriber(t *testing.T) {
	hub := NewAlertHub(zap.NewNop().Sugar())
	defer hub.Close()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	conn := dialHub(t, server)
	waitForSubscribers(t, hub, 1)

	// Independent pipeline goroutines publish simultaneously; the hub must
	// serialize the connection writes. Total stays within the subscriber
	// buffer so nothing can be dropped.
	const publishers = 4
	const eventsEach = 4

	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < eventsEach; i++ {
				hub.Publish(ports.AlertEvent{
					TickID: "tick",
					Assessment: domain.ThreatAssessment{
						StreamKey: domain.StreamKey([]string{"cam-a", "cam-b", "cam-c", "cam-d"}[p]),
						Level:     domain.LevelHigh,
						Score:     4,
						Triggered: true,
					},
				})
			}
		}(p)
	}
	wg.Wait()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := 0; i < publishers*eventsEach; i++ {
		var event ports.AlertEvent
		require.NoError(t, conn.ReadJSON(&event), "event %d", i)
	}

	assert.Equal(t, 1, hub.SubscriberCount())
}

func TestAlertHub_SlowSubscriberIsDroppedNotWaitedFor(t *testing.T) {
	hub := NewAlertHub(zap.NewNop().Sugar())
	defer hub.Close()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	// Subscriber that never reads; oversized payloads saturate the socket so
	// the writer stalls and the queue fills.
	dialHub(t, server)
	waitForSubscribers(t, hub, 1)

	event := ports.AlertEvent{
		TickID:  "tick",
		Message: strings.Repeat("x", 4<<20),
	}

	start := time.Now()
	for i := 0; i < subscriberBuffer+2; i++ {
		hub.Publish(event)
	}

	// Publish must return immediately rather than wait out write deadlines.
	assert.Less(t, time.Since(start), 3*time.Second)
	waitForSubscribers(t, hub, 0)
}

func TestAlertHub_DropsDisconnectedSubscribers(t *testing.T) {
	hub := NewAlertHub(zap.NewNop().Sugar())
	defer hub.Close()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	conn := dialHub(t, server)
	waitForSubscribers(t, hub, 1)

	conn.Close()
	waitForSubscribers(t, hub, 0)

	// Publishing with no subscribers must not panic or block.
	hub.Publish(ports.AlertEvent{TickID: "tick-2"})
}
