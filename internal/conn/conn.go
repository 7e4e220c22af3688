package conn

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/chunkdb/chunkdb/pkg"
)

type WsRequest struct {
	Action RequestAction `json:"action"`
	ReqId  int           `json:"__cdb_client_req_id__"` // used in chunkdb clients
}

var Upgrader = websocket.Upgrader{
	WriteBufferSize: 1024 * 10,
	ReadBufferSize:  1024 * 10,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		pkg.ErrorLog("ws upgrade error", err)
		return
	}
	defer conn.Close()
	defer pkg.InfoLog("connection closed from", conn.RemoteAddr())
	pkg.InfoLog("connection opened from", conn.RemoteAddr())

	ctx := r.Context()
	for {
		_, buf, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				pkg.ErrorLog("conn read error", err)
			}
			return
		}

		var req WsRequest
		if err := json.Unmarshal(buf, &req); err != nil {
			pkg.ErrorLog("parsing request", err)
			continue
		}

		res := s.ActionHandler(ctx, req.Action, buf)
		res.ReqId = req.ReqId

		if err := conn.WriteJSON(res); err != nil {
			pkg.ErrorLog("writing response", err)
			return
		}
	}
}
