package ui

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/almarpuit/site/internal/domain"
	"github.com/almarpuit/site/internal/platform/requestctx"
)

const (
	liveWriteWait  = 10 * time.Second
	livePingPeriod = 30 * time.Second
	livePongWait   = livePingPeriod + 10*time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type liveMessage struct {
	Type  string          `json:"type"`
	Table domain.Table    `json:"table"`
	Op    domain.ChangeOp `json:"op"`
}

// Live streams change notifications for one section to an open editor.
func (h *Handlers) Live(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		http.NotFound(w, r)
		return
	}
	def, ok := lookupSection(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	logger := requestctx.Logger(ctx).With(zap.String("section", def.Key))

	changes := make(chan domain.Change, 16)
	notify := func(change domain.Change) {
		select {
		case changes <- change:
		default:
		}
	}

	sectionID := h.content.Section(ctx, def.Key).Snapshot().SectionID
	tables := []domain.Table{domain.TableSections}
	if sectionID != "" {
		tables = []domain.Table{domain.TableTranslations, domain.TableImages, domain.TableMilestones, domain.TableRequirements}
	}
	for _, table := range tables {
		unsubscribe, err := h.feed.Subscribe(ctx, table, sectionID, notify)
		if err != nil {
			logger.Warn("live: subscribe failed", zap.String("table", string(table)), zap.Error(err))
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		defer unsubscribe()
	}

	// Subscribed before the handshake so no change after it is missed.
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("live: upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(livePongWait))
		})
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
		case <-closed:
			return
		case <-ctx.Done():
			return
		case change := <-changes:
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteJSON(liveMessage{Type: "changed", Table: change.Table, Op: change.Op}); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait)); err != nil {
				return
			}
		}
	}
}
