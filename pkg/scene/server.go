package scene

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/protocol"
)

// Handler serves the scene protocol over WebSocket, applying commands to ctrl.
// It lets an in-process scene (the simulator) be driven by remote clients.
func Handler(ctrl Controller) http.Handler {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	logger := log.With("component", "scene-server")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}

			msg, err := protocol.ParseMessage(data)
			if err != nil {
				logger.Warn("bad request", "error", err)
				continue
			}

			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			objectID, cmdErr := apply(ctx, ctrl, msg)
			cancel()

			reply, err := protocol.NewReplyMessage(msg.ID, objectID, cmdErr)
			if err != nil {
				return
			}
			out, _ := reply.Bytes()
			if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
				return
			}
		}
	})
}

func apply(ctx context.Context, ctrl Controller, msg *protocol.Message) (int, error) {
	switch msg.Type {
	case protocol.TypeSceneDeleteAll:
		return 0, ctrl.DeleteAll(ctx)

	case protocol.TypeSceneCreate:
		d, err := msg.GetCreateData()
		if err != nil {
			return 0, err
		}
		if d.Shape != protocol.ShapeStaticSphere {
			return 0, fmt.Errorf("unsupported shape %q", d.Shape)
		}
		return ctrl.CreateSphere(ctx, SphereSpec{Radius: d.Radius, Pos: d.Pos, Color: d.Color})

	case protocol.TypeSceneSet:
		d, err := msg.GetSetData()
		if err != nil {
			return 0, err
		}
		if d.Shape != protocol.ShapeStaticSphere {
			return 0, fmt.Errorf("unsupported shape %q", d.Shape)
		}
		return d.ObjectID, ctrl.MoveSphere(ctx, d.ObjectID, d.Pos)

	default:
		return 0, fmt.Errorf("unknown command %q", msg.Type)
	}
}
