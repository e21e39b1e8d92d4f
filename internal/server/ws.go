package server

import (
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/mehmoodulhaq570/WifiX/internal/server/middleware"
	"github.com/mehmoodulhaq570/WifiX/pkg/transport"
)

// handleWS upgrades the request and hands the connection to the hub. The
// handler blocks until the connection terminates, like any other request
// handler with a body still in flight.
func (a *App) handleWS(w http.ResponseWriter, r *http.Request) {
	reqMeta, _ := middleware.ReqMetadataFrom(r.Context())
	connLogger := a.logger
	if reqMeta != nil {
		connLogger = a.logger.With(slog.String("remoteAddr", reqMeta.IP))
	}

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig(a.config.Transport),
		nil,
		nil,
		a.logger,
	)
	conn.SetOnMessageHandler(a.hub.HandleMessage)
	conn.SetOnCloseHandler(func(id uuid.UUID, err error) {
		connLogger.Info("Deregistering connection due to closure", slog.String("connID", id.String()))
		a.hub.Unregister(id)
	})
	a.hub.Register(conn)

	connLogger.Info("Peer connection fully established", slog.String("connID", conn.ID().String()))
	conn.Run()
	<-conn.Done()
}
