package bridge

import (
	"net/http"

	"github.com/ageniuscoder/mmchat/widget/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the bridge listens on loopback by default; origin is not checked
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RegisterWS mounts GET /ws streaming WireEvents. Authentication, when
// enabled, is done by the group middleware; browsers pass ?token=<JWT>.
func RegisterWS(rg *gin.RouterGroup, hub *Hub) {
	rg.GET("/ws", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		client := &Client{
			Hub:     hub,
			Conn:    conn,
			Send:    make(chan []byte, 256),
			Subject: c.GetString(auth.CtxSubject),
		}
		if !hub.add(client) {
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	})
}
