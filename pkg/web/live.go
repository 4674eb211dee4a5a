package web

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/PancyStudios/PancyCommunityGo/pkg/leveling"
	"github.com/PancyStudios/PancyCommunityGo/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	liveBuffer     = 32
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = livePongWait * 9 / 10
)

// LiveHub fans XP events out to the dashboard websockets of each guild.
// It implements leveling.Publisher.
type LiveHub struct {
	mu     sync.RWMutex
	subs   map[string]map[*liveClient]struct{}
	closed bool
}

type liveClient struct {
	guildID string
	events  chan leveling.XpEvent
	done    chan struct{}
	once    sync.Once
}

func (lc *liveClient) close() {
	lc.once.Do(func() { close(lc.done) })
}

var _ leveling.Publisher = (*LiveHub)(nil)

// NewLiveHub creates an empty hub
func NewLiveHub() *LiveHub {
	return &LiveHub{subs: make(map[string]map[*liveClient]struct{})}
}

// PublishXpEvent delivers event to every subscriber of its guild. Subscribers
// whose buffer is full miss the event.
func (h *LiveHub) PublishXpEvent(event leveling.XpEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for lc := range h.subs[event.GuildID] {
		select {
		case lc.events <- event:
		default:
			logger.Debug("Cliente en vivo lento, evento descartado en "+event.GuildID, "WebServer")
		}
	}
}

func (h *LiveHub) subscribe(guildID string) (*liveClient, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	lc := &liveClient{
		guildID: guildID,
		events:  make(chan leveling.XpEvent, liveBuffer),
		done:    make(chan struct{}),
	}
	if h.subs[guildID] == nil {
		h.subs[guildID] = make(map[*liveClient]struct{})
	}
	h.subs[guildID][lc] = struct{}{}
	return lc, true
}

func (h *LiveHub) unsubscribe(lc *liveClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[lc.guildID], lc)
	if len(h.subs[lc.guildID]) == 0 {
		delete(h.subs, lc.guildID)
	}
	lc.close()
}

// Subscribers returns how many websockets follow guildID
func (h *LiveHub) Subscribers(guildID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[guildID])
}

// Close disconnects every subscriber and refuses new ones
func (h *LiveHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for guildID, clients := range h.subs {
		for lc := range clients {
			lc.close()
		}
		delete(h.subs, guildID)
	}
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || s.opts.BaseURL == "" {
				return true
			}
			want, err := url.Parse(s.opts.BaseURL)
			if err != nil {
				return false
			}
			got, err := url.Parse(origin)
			return err == nil && got.Host == want.Host
		},
	}
}

// liveHandler streams the XP events of the guild until the client disconnects
func (s *Server) liveHandler(c *gin.Context) {
	guildID := c.Param("guildId")
	conn, err := s.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(fmt.Sprintf("No se pudo abrir el websocket en vivo: %v", err), "WebServer")
		return
	}
	defer conn.Close()

	lc, open := s.deps.Live.subscribe(guildID)
	if !open {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "apagando"))
		return
	}
	defer s.deps.Live.unsubscribe(lc)

	// reader: only control frames are expected, a read error means the client left
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})
	go func() {
		defer lc.close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event := <-lc.events:
			data, err := json.Marshal(event)
			if err != nil {
				logger.Error("Error serializando evento en vivo: "+err.Error(), "WebServer")
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-lc.done:
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(liveWriteWait))
			return
		}
	}
}
