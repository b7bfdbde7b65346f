package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"bus-simulator/internal/hub"
	"bus-simulator/internal/sim"
)

type WSHandler struct {
	hub *hub.Hub
	mgr *sim.Manager
	ctx context.Context
}

func NewWSHandler(ctx context.Context, h *hub.Hub, mgr *sim.Manager) *WSHandler {
	return &WSHandler{hub: h, mgr: mgr, ctx: ctx}
}

// WSMessage is a client command. RouteID is used by board, disembark and
// interact; RouteIDs by follow.
type WSMessage struct {
	Type     string   `json:"type"`
	RouteID  string   `json:"routeId,omitempty"`
	RouteIDs []string `json:"routeIds,omitempty"`
}

type ResultMessage struct {
	Type          string `json:"type"`
	Command       string `json:"command"`
	OK            bool   `json:"ok"`
	RouteID       string `json:"routeId,omitempty"`
	Error         string `json:"error,omitempty"`
	Reason        string `json:"reason,omitempty"`
	TravelSeconds *int64 `json:"travelSeconds,omitempty"`
}

type PongMessage struct {
	Type string `json:"type"`
}

func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Printf("websocket accept failed: %v", err)
		return
	}

	clientID := uuid.New().String()
	client := hub.NewClient(clientID, 64)

	h.hub.Register(client)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.sendSnapshot(client)

	go h.writeLoop(ctx, conn, client)

	h.readLoop(ctx, conn, client)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	defer func() {
		h.hub.Unregister(client)
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				log.Printf("websocket read error client=%s: %v", client.ID, err)
			}
			return
		}

		if msgType != websocket.MessageText {
			continue
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("invalid ws message client=%s: %v", client.ID, err)
			continue
		}

		h.handle(client, msg)
	}
}

func (h *WSHandler) handle(client *hub.Client, msg WSMessage) {
	switch msg.Type {
	case "ping":
		h.send(client, PongMessage{Type: "pong"})

	case "follow":
		client.Follow(msg.RouteIDs)
		h.sendSnapshot(client)

	case "start":
		h.mgr.Start(h.ctx)
		h.send(client, ResultMessage{Type: "result", Command: msg.Type, OK: true})

	case "stop":
		h.mgr.Stop()
		h.send(client, ResultMessage{Type: "result", Command: msg.Type, OK: true})

	case "reset":
		h.mgr.Reset()
		h.send(client, ResultMessage{Type: "result", Command: msg.Type, OK: true})

	case "board":
		_, err := h.mgr.AttemptBoarding(msg.RouteID)
		h.send(client, result(msg, err, nil))

	case "disembark":
		d, _, err := h.mgr.AttemptDisembark(msg.RouteID)
		var secs *int64
		if err == nil {
			secs = seconds(d)
		}
		h.send(client, result(msg, err, secs))

	case "interact":
		out, _, err := h.mgr.Interact(msg.RouteID)
		var secs *int64
		if err == nil && out.Action == sim.ActionDisembarked {
			secs = seconds(out.TravelTime)
		}
		res := result(msg, err, secs)
		if err == nil {
			res.Command = string(out.Action)
		}
		h.send(client, res)
	}
}

func result(msg WSMessage, err error, secs *int64) ResultMessage {
	res := ResultMessage{Type: "result", Command: msg.Type, OK: err == nil, RouteID: msg.RouteID, TravelSeconds: secs}
	if err != nil {
		res.Error = err.Error()
		res.Reason = sim.Reason(err)
	}
	return res
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-client.Done():
			// Hub dropped us; closing unblocks readLoop.
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return

		case msg := <-client.Send:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) sendSnapshot(client *hub.Client) {
	data, err := hub.EncodeSnapshot(client, h.mgr.Snapshot())
	if err != nil {
		return
	}
	if !client.Enqueue(data) {
		log.Printf("failed to send snapshot client=%s", client.ID)
	}
}

func (h *WSHandler) send(client *hub.Client, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	client.Enqueue(data)
}
