package handlers

import (
	"net/http"
	"time"

	"quantcontrol/internal/models"
	dbconfig "quantcontrol/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The read API is origin-gated by the CORS middleware; the socket serves
	// the same dashboard.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const streamPollInterval = 2 * time.Second

// StreamSignals pushes signal rows over a websocket whenever they change.
// The dashboard uses this instead of hammering the list endpoint.
func StreamSignals(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Reader goroutine: detects client disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	var lastSeen time.Time
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		var signals []models.Signal
		if err := dbconfig.DB.
			Where("updated_at > ?", lastSeen).
			Order("updated_at ASC").
			Limit(100).
			Find(&signals).Error; err != nil {
			logger.Warnf("Signal stream query failed: %v", err)
			continue
		}

		for _, sig := range signals {
			if err := conn.WriteJSON(sig); err != nil {
				return
			}
			if sig.UpdatedAt.After(lastSeen) {
				lastSeen = sig.UpdatedAt
			}
		}
	}
}
