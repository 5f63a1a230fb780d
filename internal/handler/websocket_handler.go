// internal/handler/websocket_handler.go
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"biosignal-service/internal/service"
	"biosignal-service/internal/utils"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	writeWait      = 10 * time.Second
	sendBufferSize = 512
)

// WebSocketHandler streams samples and acquisition events to WebSocket clients
type WebSocketHandler struct {
	upgrader    websocket.Upgrader
	connections *ConnectionManager
	acquisition *service.AcquisitionService
	eventBus    *EventBus
	logger      *utils.ServiceLogger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	acquisition *service.AcquisitionService,
	eventBus *EventBus,
	allowedOrigins []string,
	logger *zap.Logger,
) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		connections: NewConnectionManager(),
		acquisition: acquisition,
		eventBus:    eventBus,
		logger:      utils.NewServiceLogger(logger, "websocket-handler"),
	}
}

func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowedOrigins) == 0 {
			return true
		}
		return slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
	}
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/samples", h.HandleSampleStream)
}

// Run forwards bus events to subscribed clients until ctx is cancelled
func (h *WebSocketHandler) Run(ctx context.Context) {
	events := h.eventBus.Subscribe(append([]string{EventTypeSample}, LifecycleEventTypes()...)...)
	defer h.connections.CloseAll()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			topic := TopicEvents
			if event.Type == EventTypeSample {
				topic = TopicSamples
			}
			h.broadcast(topic, &WebSocketMessage{
				Type:      event.Type,
				Data:      event.Data,
				Timestamp: event.Timestamp,
			})
		}
	}
}

// HandleSampleStream upgrades the request and streams samples and events
// @Summary Live sample stream
// @Description WebSocket stream of decoded samples ("sample") and acquisition events such as "session_completed". Use ?topics=samples,events to choose.
// @Tags WebSocket
// @Param topics query string false "Comma separated topics" default(samples,events)
// @Success 101 "Switching protocols"
// @Router /ws/samples [get]
func (h *WebSocketHandler) HandleSampleStream(c *gin.Context) {
	topics, err := parseTopics(c.Query("topics"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid topics", err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.NewString(),
		Connection:  conn,
		Send:        make(chan []byte, sendBufferSize),
		UserAgent:   c.Request.UserAgent(),
		RemoteAddr:  c.Request.RemoteAddr,
		ConnectedAt: time.Now(),
	}
	for _, topic := range topics {
		client.Subscribe(topic)
	}

	h.connections.Register(client)
	h.logger.Info("WebSocket client connected",
		zap.String("client_id", client.ID),
		zap.Strings("topics", topics),
		zap.String("remote_addr", client.RemoteAddr),
	)

	go h.sendInitialSnapshot(client)
	go h.handleClientRead(client)
	go h.handleClientWrite(client)
}

func parseTopics(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return []string{TopicSamples, TopicEvents}, nil
	}

	var topics []string
	for _, topic := range strings.Split(raw, ",") {
		topic = strings.TrimSpace(topic)
		if topic != TopicSamples && topic != TopicEvents {
			return nil, fmt.Errorf("unknown topic: %q", topic)
		}
		if !slices.Contains(topics, topic) {
			topics = append(topics, topic)
		}
	}
	return topics, nil
}

// handleClientRead reads control messages until the connection drops
func (h *WebSocketHandler) handleClientRead(client *Client) {
	defer func() {
		h.connections.Unregister(client)
		client.Connection.Close()
		h.logger.Info("WebSocket client disconnected", zap.String("client_id", client.ID))
	}()

	client.Connection.SetReadLimit(4096)
	client.Connection.SetReadDeadline(time.Now().Add(pongWait))
	client.Connection.SetPongHandler(func(string) error {
		client.Connection.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageBytes, err := client.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
			}
			break
		}

		var message WebSocketMessage
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			h.sendError(client, "invalid message")
			continue
		}

		h.handleClientMessage(client, &message)
	}
}

// handleClientWrite drains the client's send queue and keeps the connection alive
func (h *WebSocketHandler) handleClientWrite(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Connection.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Connection.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Debug("WebSocket write error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
				return
			}

		case <-ticker.C:
			client.Connection.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleClientMessage handles incoming client messages
func (h *WebSocketHandler) handleClientMessage(client *Client, message *WebSocketMessage) {
	switch message.Type {
	case "subscribe", "unsubscribe":
		topic := messageTopic(message)
		if topic != TopicSamples && topic != TopicEvents {
			h.sendError(client, "unknown topic")
			return
		}
		if message.Type == "subscribe" {
			client.Subscribe(topic)
		} else {
			client.Unsubscribe(topic)
		}
		h.sendMessage(client, &WebSocketMessage{
			Type:      message.Type + "d",
			Data:      gin.H{"topic": topic},
			Timestamp: time.Now(),
		})
	case "ping":
		h.sendMessage(client, &WebSocketMessage{
			Type:      "pong",
			Timestamp: time.Now(),
		})
	default:
		h.logger.Warn("Unknown message type",
			zap.String("type", message.Type),
			zap.String("client_id", client.ID),
		)
		h.sendError(client, "unknown message type")
	}
}

func messageTopic(message *WebSocketMessage) string {
	data, ok := message.Data.(map[string]interface{})
	if !ok {
		return ""
	}
	topic, _ := data["topic"].(string)
	return topic
}

// sendInitialSnapshot sends the latest metrics so a client can render at once
func (h *WebSocketHandler) sendInitialSnapshot(client *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	snapshot, err := h.acquisition.Snapshot(ctx)
	if err != nil {
		h.logger.Debug("No initial snapshot for client", zap.Error(err))
		return
	}

	h.sendMessage(client, &WebSocketMessage{
		Type:      "snapshot",
		Data:      snapshot,
		Timestamp: time.Now(),
	})
}

// sendMessage queues a message for one client
func (h *WebSocketHandler) sendMessage(client *Client, message *WebSocketMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket message", zap.Error(err))
		return
	}

	if !h.connections.SendTo(client, messageBytes) {
		h.logger.Warn("Client gone or send channel full, dropping message",
			zap.String("client_id", client.ID),
		)
	}
}

// sendError sends an error message to a client
func (h *WebSocketHandler) sendError(client *Client, errorMsg string) {
	h.sendMessage(client, &WebSocketMessage{
		Type:      "error",
		Data:      gin.H{"error": errorMsg},
		Timestamp: time.Now(),
	})
}

// broadcast sends a message to every client subscribed to topic
func (h *WebSocketHandler) broadcast(topic string, message *WebSocketMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	if dropped := h.connections.Broadcast(topic, messageBytes); dropped > 0 {
		h.logger.Debug("Slow WebSocket clients dropped a message",
			zap.String("topic", topic),
			zap.Int("clients", dropped),
		)
	}
}

// GetConnectionStats returns connection statistics
func (h *WebSocketHandler) GetConnectionStats() *ConnectionStats {
	return h.connections.GetStats()
}
