package discord

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/websocket"
)

// silentGateway поднимает REST /gateway и websocket, который принимает
// соединение и ничего не шлет (нет Hello). EndpointGateway указывает на него
// до конца теста.
func silentGateway(t *testing.T) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)

	mux.HandleFunc("/gateway", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"url": "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		})
	})
	mux.HandleFunc("/ws/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	prev := discordgo.EndpointGateway
	discordgo.EndpointGateway = srv.URL + "/gateway"
	t.Cleanup(func() {
		discordgo.EndpointGateway = prev
		srv.Close()
	})
}
