package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/starfederation/datastar-go/datastar"
)

// HeartbeatInterval keeps idle SSE connections open through proxies.
const HeartbeatInterval = 25 * time.Second

// Subscriber is the read side of the feed.
type Subscriber interface {
	Subscribe(ctx context.Context, tables []string) (<-chan Change, error)
}

// StreamGauge tracks open connections.
type StreamGauge interface {
	StreamOpened()
	StreamClosed()
}

// Scope limits what one connection may follow. An empty Tables set denies
// the stream; RedactIDs strips row ids from every change.
type Scope struct {
	Tables    []string
	RedactIDs bool
}

// Handler streams changes as Datastar signal patches over Server-Sent Events.
// Each change arrives as {"change": {...}}; idle connections receive
// {"heartbeat": <unix>} so proxies keep them open.
type Handler struct {
	feed      Subscriber
	logger    *slog.Logger
	heartbeat time.Duration
	// Streams is optional.
	Streams StreamGauge
	// Access is optional; without it every table is streamed unredacted.
	Access func(r *http.Request) Scope
}

// NewHandler constructs a Handler.
func NewHandler(feed Subscriber, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{feed: feed, logger: logger, heartbeat: HeartbeatInterval}
}

// ServeHTTP handles GET /dashboard/events?tables=clients,policies.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	tables := parseTables(r.URL.Query().Get("tables"))
	redact := false
	if h.Access != nil {
		scope := h.Access(r)
		tables = restrictTables(tables, scope.Tables)
		if len(tables) == 0 {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		redact = scope.RedactIDs
	}

	ctx := r.Context()
	changes, err := h.feed.Subscribe(ctx, tables)
	if err != nil {
		h.logger.Error("realtime subscribe", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("X-Accel-Buffering", "no")
	sse := datastar.NewSSE(w, r)
	if h.Streams != nil {
		h.Streams.StreamOpened()
		defer h.Streams.StreamClosed()
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := sse.MarshalAndPatchSignals(map[string]any{"heartbeat": now.Unix()}); err != nil {
				return
			}
		case change, ok := <-changes:
			if !ok {
				return
			}
			if redact {
				change.ID = ""
			}
			if err := sse.MarshalAndPatchSignals(map[string]any{"change": change}); err != nil {
				h.logger.Debug("realtime send", slog.Any("error", err))
				return
			}
		}
	}
}

func parseTables(raw string) []string {
	var tables []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			tables = append(tables, part)
		}
	}
	return tables
}

// restrictTables intersects the requested tables with allowed. No request
// means every allowed table.
func restrictTables(requested, allowed []string) []string {
	if len(requested) == 0 {
		return append([]string(nil), allowed...)
	}
	permitted := make(map[string]struct{}, len(allowed))
	for _, table := range allowed {
		permitted[table] = struct{}{}
	}
	var out []string
	for _, table := range requested {
		if _, ok := permitted[table]; ok {
			out = append(out, table)
		}
	}
	return out
}
