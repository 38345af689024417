/******************************************************************************
 *
 *  Description :
 *
 *    Handler of websocket connections: live feed of a hub's events.
 *
 *****************************************************************************/

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hubchat/chat/server/logs"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 55 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum size of a message from the peer. Peers only send typing notifications.
	maxPeerMessage = 512
)

// Handles websocket requests from peers.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow connections from any Origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

// serveLiveFeed subscribes the user to the hub and streams events as JSON text frames
// until either side goes away.
func (a *apiServer) serveLiveFeed(wrt http.ResponseWriter, req *http.Request) {
	hub, err := uidParam(req, "hub")
	if err != nil {
		writeError(wrt, err)
		return
	}
	user := currentUser(req)

	// Subscribe before the upgrade so errors are reported as plain HTTP responses.
	ctx, cancel := context.WithTimeout(req.Context(), a.timeout)
	events, unsub, err := a.reg.Subscribe(ctx, hub, user)
	cancel()
	if err != nil {
		writeError(wrt, err)
		return
	}

	ws, err := upgrader.Upgrade(wrt, req, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		logs.Warn.Println("ws: failed to upgrade", err)
		unsub()
		return
	}

	logs.Info.Printf("ws: live feed of hub[%s] started for %s at %s", hub, user, req.RemoteAddr)

	// Typing notifications from the peer.
	onTyping := func(msg *MsgFeedClient) {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.reg.Typing(ctx, hub, user, msg.Channel, msg.Typing); err != nil {
			logs.Info.Printf("ws: typing in hub[%s] by %s rejected: %v", hub, user, err)
		}
	}

	closed := make(chan struct{})
	go feedReadLoop(ws, closed, onTyping)
	go feedWriteLoop(ws, events, unsub, closed)
}

// feedReadLoop consumes control frames and typing notifications and detects when the peer goes away.
func feedReadLoop(ws *websocket.Conn, closed chan<- struct{}, onTyping func(*MsgFeedClient)) {
	defer close(closed)

	ws.SetReadLimit(maxPeerMessage)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		mt, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				logs.Warn.Println("ws: readLoop", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		var msg MsgFeedClient
		if err := json.Unmarshal(raw, &msg); err != nil {
			logs.Info.Println("ws: malformed message from peer", err)
			continue
		}
		if msg.What == feedTyping {
			onTyping(&msg)
		}
	}
}

// feedWriteLoop forwards hub events to the peer. Ends when the hub closes the subscription,
// the peer disconnects or a write fails.
func feedWriteLoop(ws *websocket.Conn, events <-chan *HubEvent, unsub func(), closed <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		unsub()
		// Break readLoop.
		ws.Close()
	}()

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				// Subscription ended by the hub: member left or hub is gone.
				wsWrite(ws, websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "subscription ended"))
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				logs.Err.Println("ws: failed to serialize event", err)
				continue
			}
			if err := wsWrite(ws, websocket.TextMessage, data); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
					websocket.CloseNormalClosure) {
					logs.Warn.Println("ws: writeLoop", err)
				}
				return
			}

		case <-closed:
			return

		case <-ticker.C:
			if err := wsWrite(ws, websocket.PingMessage, nil); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
					websocket.CloseNormalClosure) {
					logs.Warn.Println("ws: writeLoop ping", err)
				}
				return
			}
		}
	}
}

// Writes a message with the given message type (mt) and payload.
func wsWrite(ws *websocket.Conn, mt int, bits []byte) error {
	if bits == nil {
		bits = []byte{}
	}
	ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteMessage(mt, bits)
}
