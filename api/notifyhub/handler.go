package notifyhub

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/moyoez/gfpgan-client/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // OnlyAllowLocal already restricts to localhost
	},
}

// HandleNotifyWS upgrades to WebSocket, registers the connection for
// broadcasts and replays the current state from initial (may be nil) so a
// late UI starts in sync. Broadcasts that arrive during the replay are
// written after it.
func HandleNotifyWS(hub *Hub, initial func() []*types.Notification) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// the writer starts only after the replay, so the snapshot can never
		// overwrite a newer live notification
		cl := hub.register(conn)
		defer hub.Unregister(conn)
		if initial != nil {
			for _, n := range initial() {
				if err := cl.send(n); err != nil {
					return
				}
			}
		}
		go cl.writeLoop(hub)

		// client messages are ignored; the loop only notices the close
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}
}
