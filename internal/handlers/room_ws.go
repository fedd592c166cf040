package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/conquian-game/server/internal/game"
	"github.com/conquian-game/server/internal/models"
)

// IntentMessage is the inbound websocket message shape. Which fields are
// meaningful depends on Type.
type IntentMessage struct {
	Type     string   `json:"type"`
	Alias    string   `json:"alias,omitempty"`
	RoomCode string   `json:"room_code,omitempty"`
	CardID   string   `json:"card_id,omitempty"`
	CardIDs  []string `json:"card_ids,omitempty"`
	Action   string   `json:"action,omitempty"`
	Message  string   `json:"message,omitempty"`
}

// RoomWSHandler upgrades the HTTP connection to a websocket and runs the
// read loop. Each connection gets a fresh identity; the room binds it to a
// seat on join and rebinds it on reconnection.
func RoomWSHandler(logger *logrus.Logger, srv *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"conquian"},
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			logger.Warnf("WebSocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")

		if c.Subprotocol() != "conquian" {
			logger.Warnf("Client connected with invalid subprotocol: %s", c.Subprotocol())
			c.Close(websocket.StatusPolicyViolation, "Client must use the 'conquian' subprotocol.")
			return
		}

		connID := uuid.New()
		logger.Infof("WebSocket connection %s established from %s", connID, r.RemoteAddr)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		room := readIntents(ctx, c, connID, srv, logger)

		logger.Infof("Connection %s read loop exited", connID)
		if room != nil {
			room.HandleDisconnect(connID)
		}
	}
}

// readIntents reads and routes messages until the connection dies. It
// returns the room the connection ended up in, if any, so the caller can
// run disconnect handling.
func readIntents(ctx context.Context, c *websocket.Conn, connID uuid.UUID, srv *RoomServer, logger *logrus.Logger) *game.Room {
	var room *game.Room

	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				logger.Infof("WebSocket closed normally for connection %s", connID)
			} else if strings.Contains(err.Error(), "context canceled") {
				logger.Infof("WebSocket context canceled for connection %s", connID)
			} else {
				logger.Warnf("Error reading from WebSocket for connection %s: %v", connID, err)
			}
			return room
		}
		if msgType != websocket.MessageText {
			logger.Warnf("Non-text message from connection %s, ignoring", connID)
			continue
		}

		var msg IntentMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warnf("Invalid JSON from connection %s: %v", connID, err)
			sendWsError(ctx, c, "bad_action", "Invalid JSON format.")
			continue
		}

		logger.Debugf("Intent %q from connection %s", msg.Type, connID)

		switch msg.Type {
		case "create_room":
			if room != nil {
				sendWsError(ctx, c, "bad_action", "Already in a room.")
				continue
			}
			newRoom, err := srv.Registry.CreateRoom()
			if err != nil {
				logger.Errorf("Room creation failed: %v", err)
				sendWsError(ctx, c, "bad_action", "Could not create a room.")
				continue
			}
			installBroadcasters(newRoom, logger)
			if err := newRoom.Join(msg.Alias, connID, c); err != nil {
				sendRejection(ctx, c, err)
				continue
			}
			room = newRoom
			sendWsMessage(ctx, c, game.RoomEvent{
				Type: game.EventRoomCreated,
				Payload: map[string]interface{}{
					"room_code": newRoom.Code,
					"alias":     msg.Alias,
				},
			})

		case "join_room":
			if room != nil {
				sendWsError(ctx, c, "bad_action", "Already in a room.")
				continue
			}
			target, ok := srv.Registry.GetRoom(msg.RoomCode)
			if !ok {
				sendWsError(ctx, c, "room_not_found", "The room does not exist.")
				continue
			}
			installBroadcasters(target, logger)
			if err := target.Join(msg.Alias, connID, c); err != nil {
				sendRejection(ctx, c, err)
				continue
			}
			room = target

		case "start_game_request":
			if room == nil {
				sendWsError(ctx, c, "bad_action", "Join a room first.")
				continue
			}
			if err := room.StartGame(connID); err != nil {
				sendRejection(ctx, c, err)
			}

		case "submit_exchange_card":
			if room == nil {
				sendWsError(ctx, c, "bad_action", "Join a room first.")
				continue
			}
			if err := room.SubmitExchangeCard(connID, msg.CardID); err != nil {
				sendRejection(ctx, c, err)
			}

		case "offer_response":
			if room == nil {
				sendWsError(ctx, c, "bad_action", "Join a room first.")
				continue
			}
			if err := room.HandleOfferResponse(connID, msg.Action); err != nil {
				sendRejection(ctx, c, err)
			}

		case "submit_meld":
			if room == nil {
				sendWsError(ctx, c, "bad_action", "Join a room first.")
				continue
			}
			if err := room.SubmitMeld(connID, msg.CardIDs); err != nil {
				sendRejection(ctx, c, err)
			}

		case "discard_card":
			if room == nil {
				sendWsError(ctx, c, "bad_action", "Join a room first.")
				continue
			}
			if err := room.DiscardCard(connID, msg.CardID); err != nil {
				sendRejection(ctx, c, err)
			}

		case "chat":
			if room == nil {
				sendWsError(ctx, c, "bad_action", "Join a room first.")
				continue
			}
			if err := room.Chat(connID, msg.Message); err != nil {
				sendRejection(ctx, c, err)
			}

		case "ping":
			sendWsMessage(ctx, c, map[string]string{"type": "pong"})

		default:
			logger.Warnf("Unknown intent type %q from connection %s", msg.Type, connID)
			sendWsError(ctx, c, "bad_action", "Unknown intent type: "+msg.Type)
		}

		select {
		case <-ctx.Done():
			return room
		default:
		}
	}
}

// installBroadcasters wires the outbound delivery closures into a room if
// they are not set yet. The closures are invoked with the room lock held,
// so they snapshot connections synchronously and write asynchronously.
func installBroadcasters(room *game.Room, logger *logrus.Logger) {
	room.Mu.Lock()
	defer room.Mu.Unlock()
	if room.BroadcastFn == nil {
		room.BroadcastFn = makeRoomBroadcast(room, logger)
	}
	if room.BroadcastToSeatFn == nil {
		room.BroadcastToSeatFn = makeSeatBroadcast(room, logger)
	}
}

// makeRoomBroadcast returns a closure for Room.BroadcastFn.
func makeRoomBroadcast(room *game.Room, logger *logrus.Logger) func(ev game.RoomEvent) {
	return func(ev game.RoomEvent) {
		// Called with the room lock held: read the roster directly, then
		// write off-goroutine so game logic is never blocked on a socket.
		conns := make([]*websocket.Conn, 0, len(room.Players))
		for _, p := range room.Players {
			if p.Connected && p.Conn != nil {
				conns = append(conns, p.Conn)
			}
		}
		msgBytes, err := json.Marshal(ev)
		if err != nil {
			logger.Errorf("Failed to marshal broadcast event %s for room %s: %v", ev.Type, room.Code, err)
			return
		}
		go writeAll(conns, msgBytes, room.Code, logger)
	}
}

// makeSeatBroadcast returns a closure for Room.BroadcastToSeatFn.
func makeSeatBroadcast(room *game.Room, logger *logrus.Logger) func(seat int, ev game.RoomEvent) {
	return func(seat int, ev game.RoomEvent) {
		var target *models.Player
		for _, p := range room.Players {
			if p.Seat == seat {
				target = p
				break
			}
		}
		if target == nil || !target.Connected || target.Conn == nil {
			return
		}
		msgBytes, err := json.Marshal(ev)
		if err != nil {
			logger.Errorf("Failed to marshal private event %s for seat %d in room %s: %v", ev.Type, seat, room.Code, err)
			return
		}
		go writeAll([]*websocket.Conn{target.Conn}, msgBytes, room.Code, logger)
	}
}

func writeAll(conns []*websocket.Conn, data []byte, roomCode string, logger *logrus.Logger) {
	for _, conn := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := conn.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			logger.Warnf("Failed to write message to a client in room %s: %v", roomCode, err)
		}
	}
}

// sendRejection surfaces a typed rejection to the actor; anything else is
// reported as a generic error.
func sendRejection(ctx context.Context, c *websocket.Conn, err error) {
	if reason, ok := game.ReasonOf(err); ok {
		sendWsError(ctx, c, string(reason), err.Error())
		return
	}
	sendWsError(ctx, c, "bad_action", err.Error())
}

// sendWsMessage marshals a message and sends it to the websocket client with
// a write timeout.
func sendWsMessage(ctx context.Context, c *websocket.Conn, message interface{}) {
	if c == nil {
		return
	}
	msgBytes, err := json.Marshal(message)
	if err != nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = c.Write(writeCtx, websocket.MessageText, msgBytes)
}

// sendWsError sends a structured error event to the client.
func sendWsError(ctx context.Context, c *websocket.Conn, reason, errorMsg string) {
	sendWsMessage(ctx, c, map[string]interface{}{
		"type":    string(game.EventError),
		"reason":  reason,
		"message": errorMsg,
	})
}
