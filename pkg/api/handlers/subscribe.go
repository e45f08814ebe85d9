package handlers

import (
	"net/http"

	authproviders "github.com/cbodonnell/tsuro/pkg/auth/providers"
	"github.com/cbodonnell/tsuro/pkg/log"
	"github.com/cbodonnell/tsuro/pkg/messages"
	"github.com/cbodonnell/tsuro/pkg/network"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// HandleSubscribe opens a notification channel. The first frame must be a
// hello carrying the API key; browsers cannot set headers on websockets.
func HandleSubscribe(subscriberManager *network.SubscriberManager, authProvider authproviders.AuthProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		db := mux.Vars(r)["db"]
		conn, err := network.Upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("Failed to upgrade to WebSocket: %v", err)
			return
		}
		defer conn.Close()
		conn.SetReadLimit(messages.MessageBufferSize)

		hello, err := network.ReadHelloFromWS(conn)
		if err != nil {
			log.Debug("Failed to read hello from %s: %v", conn.RemoteAddr().String(), err)
			return
		}
		claims, err := authProvider.VerifyToken(r.Context(), hello.APIKey)
		if err != nil {
			log.Debug("Rejected subscriber %s: %v", conn.RemoteAddr().String(), err)
			if err := network.WriteErrorToWS(conn, "unauthorized"); err != nil {
				log.Debug("%v", err)
			}
			return
		}

		sub, err := subscriberManager.Connect(conn, db, claims.UID)
		if err != nil {
			log.Error("Failed to register subscriber: %v", err)
			if err := network.WriteErrorToWS(conn, "unavailable"); err != nil {
				log.Debug("%v", err)
			}
			return
		}
		defer subscriberManager.Disconnect(sub.SessionID)
		log.Debug("Session %s subscribed to %s as %s", sub.SessionID, db, claims.UID)

		for _, e := range []*messages.Event{
			{Event: messages.EventNew, SessionID: sub.SessionID},
			{Event: messages.EventOpened, SessionID: sub.SessionID},
		} {
			if err := network.WriteEventToWS(sub, e); err != nil {
				log.Debug("Failed to open session %s: %v", sub.SessionID, err)
				return
			}
		}

		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
					log.Error("Error reading from session %s: %v", sub.SessionID, err)
				}
				log.Trace("Session %s closed", sub.SessionID)
				return
			}
			if msgType == websocket.TextMessage && string(data) == messages.KeepAlivePing {
				if err := sub.WriteText(messages.KeepAlivePong); err != nil {
					log.Debug("Failed to answer keep-alive for session %s: %v", sub.SessionID, err)
					return
				}
			}
		}
	}
}
