package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/localshop/internal/adapters/nats"
	"github.com/samirrijal/localshop/internal/core/domain"
	"github.com/samirrijal/localshop/internal/pkg/metrics"
)

// wsMessage is sent by clients to narrow the relayed shop events.
type wsMessage struct {
	Action string `json:"action"` // "watch" | "unwatch"
	// Locality is a city or area slug; empty means every shop.
	Locality string `json:"locality"`
}

// wsFilter holds the localities a connection watches.
type wsFilter struct {
	mu    sync.RWMutex
	slugs map[string]struct{}
}

func (f *wsFilter) set(slug string, on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if on {
		f.slugs[slug] = struct{}{}
	} else {
		delete(f.slugs, slug)
	}
}

// allows reports whether the event matches; an empty filter matches all live shops.
func (f *wsFilter) allows(ev *domain.ShopEvent) bool {
	if ev.Shop.Status != domain.ShopLive {
		return false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.slugs) == 0 {
		return true
	}
	_, city := f.slugs[ev.Shop.CitySlug]
	_, area := f.slugs[ev.Shop.AreaSlug]
	return city || area
}

// WebSocketHandler relays live shop updates from NATS to connected clients.
// Clients send {"action":"watch","locality":"connaught-place"} to restrict
// the feed; with no watches every live shop update is relayed.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		remoteAddr := c.RemoteAddr().String()
		logger := slog.Default().With("remote", remoteAddr)
		logger.Debug("ws client connected")

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		filter := &wsFilter{slugs: make(map[string]struct{})}
		sub, err := nc.Subscribe(natsadapter.SubjectAll, func(msg *nats.Msg) {
			ev, err := natsadapter.DecodeShopEvent(msg.Data)
			if err != nil || !filter.allows(ev) {
				return
			}
			_ = writeJSON(ev)
		})
		if err != nil {
			logger.Error("ws subscribe failed", "error", err)
			return
		}
		defer func() { _ = sub.Unsubscribe() }()

		// Keep-alive ping
		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(raw, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}
			if m.Locality == "" {
				_ = writeJSON(map[string]string{"error": "locality is required"})
				continue
			}

			switch m.Action {
			case "watch":
				filter.set(m.Locality, true)
				_ = writeJSON(map[string]string{"status": "watching", "locality": m.Locality})
			case "unwatch":
				filter.set(m.Locality, false)
				_ = writeJSON(map[string]string{"status": "unwatched", "locality": m.Locality})
			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		logger.Debug("ws client disconnected")
	}
}
