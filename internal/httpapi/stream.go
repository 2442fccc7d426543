package httpapi

import (
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/marketplace/internal/notify"
	"github.com/MarkoPoloResearchLab/marketplace/pkg/marketplace"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	streamWriteWait      = 10 * time.Second
	streamPongWait       = 60 * time.Second
	streamPingPeriod     = (streamPongWait * 9) / 10
	streamMaxMessageSize = 512
	streamBufferSize     = 1024
	conversationQuery    = "conversation"
)

func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}
	return websocket.Upgrader{
		ReadBufferSize:  streamBufferSize,
		WriteBufferSize: streamBufferSize,
		CheckOrigin: func(request *http.Request) bool {
			origin := request.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}
}

// handleStream upgrades to a websocket carrying the caller's profile topic
// and every requested conversation topic the caller participates in.
func (handler *httpHandler) handleStream(ctx *gin.Context) {
	profileID, ok := handler.requireProfile(ctx)
	if !ok {
		return
	}
	topics := []string{handler.service.ProfileTopic(profileID)}
	for _, rawID := range ctx.QueryArray(conversationQuery) {
		conversationID, err := marketplace.NewConversationID(rawID)
		if err != nil {
			handler.respondError(ctx, err)
			return
		}
		if err := handler.service.AuthorizeConversation(ctx.Request.Context(), profileID, conversationID); err != nil {
			handler.respondError(ctx, err)
			return
		}
		topics = append(topics, handler.service.ConversationTopic(conversationID))
	}

	conn, err := handler.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		handler.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	subscription := handler.hub.Subscribe(topics...)
	handler.logger.Debug("stream opened", zap.String("profile_id", profileID.String()), zap.Strings("topics", topics))

	go handler.readPump(conn, subscription)
	handler.writePump(conn, subscription)
}

// readPump discards client frames and closes the subscription once the peer goes away.
func (handler *httpHandler) readPump(conn *websocket.Conn, subscription *notify.Subscription) {
	defer subscription.Close()
	conn.SetReadLimit(streamMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				handler.logger.Warn("stream read failed", zap.Error(err))
			}
			return
		}
	}
}

func (handler *httpHandler) writePump(conn *websocket.Conn, subscription *notify.Subscription) {
	ticker := time.NewTicker(streamPingPeriod)
	defer func() {
		ticker.Stop()
		subscription.Close()
		_ = conn.Close()
	}()
	for {
		select {
		case message, ok := <-subscription.Messages():
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(streamFrame{Topic: message.Topic, Data: message.Payload}); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
