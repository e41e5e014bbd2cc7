package http

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"quizhub-service/internal/app"
	"quizhub-service/internal/domain"
	"quizhub-service/internal/logging"
)

// StandingsSource is where live standings come from, usually the app.Hub.
type StandingsSource interface {
	Subscribe(scope domain.Scope) (<-chan domain.Standings, func())
}

// WSHandler streams leaderboard standings: one snapshot on connect (the latest
// published one when available), then every update published for the scope.
type WSHandler struct {
	boards   *app.LeaderboardService
	source   StandingsSource
	upgrader websocket.Upgrader
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

func NewWSHandler(boards *app.LeaderboardService, source StandingsSource) *WSHandler {
	return &WSHandler{
		boards: boards,
		source: source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ServeWS expects ?type=global|category|daily|weekly|monthly|country and, where
// the type needs one, &key=. Quiz rankings are computed on demand and are not streamed.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	scope, err := domain.NewScope(domain.LeaderboardType(r.URL.Query().Get("type")), r.URL.Query().Get("key"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if scope.Type == domain.LeaderboardQuiz {
		badRequest(w, "quiz rankings are not streamed")
		return
	}
	log := logging.FromContext(r.Context(), logrus.StandardLogger()).WithField("scope", scope.String())

	initial, err := h.boards.Snapshot(r.Context(), scope)
	if err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	updates, cancel := h.source.Subscribe(scope)
	defer cancel()

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Only the writer goroutine touches conn for writes.
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case msg, ok := <-send:
				if !ok {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(msg); err != nil {
					log.WithError(err).Debug("ws write error")
					return
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case st, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage{Type: "standings", Payload: st}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage{Type: "standings", Payload: initial}

	// Clients only listen; reading keeps pongs and close frames flowing.
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
