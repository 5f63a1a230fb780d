package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"biosignal-service/internal/model"
)

func TestParseTopics(t *testing.T) {
	topics, err := parseTopics("")
	require.NoError(t, err)
	require.Equal(t, []string{TopicSamples, TopicEvents}, topics)

	topics, err = parseTopics(" events , events")
	require.NoError(t, err)
	require.Equal(t, []string{TopicEvents}, topics)

	_, err = parseTopics("samples,alarms")
	require.ErrorContains(t, err, `"alarms"`)
}

func TestOriginChecker(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws/samples", nil)
	require.True(t, originChecker([]string{"http://ui.local"})(req))

	req.Header.Set("Origin", "http://evil.local")
	require.False(t, originChecker([]string{"http://ui.local"})(req))
	require.True(t, originChecker([]string{"*"})(req))
	require.True(t, originChecker(nil)(req))
}

func newTestClient(id string, topics ...string) *Client {
	client := &Client{ID: id, Send: make(chan []byte, 1)}
	for _, topic := range topics {
		client.Subscribe(topic)
	}
	return client
}

func TestConnectionManagerBroadcast(t *testing.T) {
	cm := NewConnectionManager()
	samples := newTestClient("a", TopicSamples)
	events := newTestClient("b", TopicEvents)
	cm.Register(samples)
	cm.Register(events)

	require.Equal(t, 0, cm.Broadcast(TopicSamples, []byte("one")))
	require.Equal(t, []byte("one"), <-samples.Send)
	require.Empty(t, events.Send)

	// Queue of one: the second message is dropped for the slow client
	require.Equal(t, 0, cm.Broadcast(TopicSamples, []byte("two")))
	require.Equal(t, 1, cm.Broadcast(TopicSamples, []byte("three")))

	stats := cm.GetStats()
	require.Equal(t, 2, stats.TotalConnections)
	require.Equal(t, map[string]int{TopicSamples: 1, TopicEvents: 1}, stats.ByTopic)
}

func TestConnectionManagerUnregisterIsSafe(t *testing.T) {
	cm := NewConnectionManager()
	client := newTestClient("a", TopicEvents)
	cm.Register(client)

	cm.Unregister(client)
	cm.Unregister(client)
	_, open := <-client.Send
	require.False(t, open)

	require.False(t, cm.SendTo(client, []byte("late")))
	require.Equal(t, 0, cm.Broadcast(TopicEvents, []byte("late")))

	other := newTestClient("b", TopicEvents)
	cm.Register(other)
	cm.CloseAll()
	_, open = <-other.Send
	require.False(t, open)
	require.Equal(t, 0, cm.GetStats().TotalConnections)
}

func TestSampleStreamDeliversEvents(t *testing.T) {
	api := newTestAPI(t)
	server := httptest.NewServer(api.engine)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/samples?topics=events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool {
		return api.ws.GetConnectionStats().TotalConnections == 1
	}, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = api.acquisition.StartSession(ctx)
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(WebSocketMessage{Type: "ping"}))

	seen := make(map[string]bool)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for !(seen["session_started"] && seen["pong"]) {
		var message WebSocketMessage
		require.NoError(t, conn.ReadJSON(&message))
		require.NotEqual(t, EventTypeSample, message.Type)
		seen[message.Type] = true
	}
}

func TestSampleStreamRejectsUnknownTopic(t *testing.T) {
	api := newTestAPI(t)

	rec := httptest.NewRecorder()
	api.engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/samples?topics=alarms", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSampleStreamForwardsSamples(t *testing.T) {
	api := newTestAPI(t)
	server := httptest.NewServer(api.engine)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/samples?topics=samples"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool {
		return api.ws.GetConnectionStats().TotalConnections == 1
	}, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = api.acquisition.Connect(ctx, nil)
	require.NoError(t, err)
	api.source.feed(model.DecodedSample{ECG: 321, HeartRate: 64})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)

		var message struct {
			Type string            `json:"type"`
			Data model.SamplePoint `json:"data"`
		}
		if json.Unmarshal(raw, &message) != nil || message.Type != EventTypeSample {
			continue
		}
		require.Equal(t, int16(321), message.Data.Sample.ECG)
		require.Equal(t, uint16(64), message.Data.Sample.HeartRate)
		return
	}
}
