package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"churnpulse/internal/infrastructure"
	"churnpulse/pkg/contracts/events"
)

// Hub maintains the set of active clients and fans dataset events out to
// them. All client map mutation happens on the Run goroutine; a client that
// cannot drain its send buffer is evicted rather than allowed to stall a
// broadcast.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu        sync.RWMutex
	logger    *slog.Logger
	metrics   *infrastructure.BusinessMetrics
	keepalive Keepalive

	// Lifetime counters, exposed through Totals.
	totalConnections int64
	eventsSent       int64
	eventsDropped    int64

	quit        chan struct{}
	running     bool
	metricsQuit chan struct{}
}

// NewHub builds an idle hub. Start launches its goroutines.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger = logger.With(slog.String("component", "websocket.hub"))

	return &Hub{
		clients:     make(map[*Client]bool),
		broadcast:   make(chan []byte, 64),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		quit:        make(chan struct{}),
		metricsQuit: make(chan struct{}),
		logger:      logger,
	}
}

// SetMetrics attaches the shared instrument set. The hub tolerates running
// without one.
func (h *Hub) SetMetrics(metrics *infrastructure.BusinessMetrics) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.metrics = metrics
}

// Keepalive is the ping cycle pushed down to clients. The ping period
// must stay below the pong deadline or the connection times itself out.
type Keepalive struct {
	PingPeriod time.Duration
	PongWait   time.Duration
}

// SetKeepalive overrides the ping cycle for clients admitted after the
// call. A non-positive or inverted cycle is ignored and the compiled-in
// defaults stay.
func (h *Hub) SetKeepalive(k Keepalive) {
	if k.PingPeriod <= 0 || k.PongWait <= 0 || k.PingPeriod >= k.PongWait {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.keepalive = k
}

func (h *Hub) clientKeepalive() Keepalive {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.keepalive.PingPeriod > 0 {
		return h.keepalive
	}
	return Keepalive{PingPeriod: defaultPingPeriod, PongWait: defaultPongWait}
}

// Start launches the fan-out loop and the counter reporter. Calling it on
// a running hub is a no-op.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true

	go h.Run()
	go h.reportCounters()
}

// Run owns the client map. Everything that mutates it arrives over the
// register, unregister and broadcast channels.
func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.closeAll()
			return
		case client := <-h.register:
			h.admit(client)
		case client := <-h.unregister:
			h.drop(client)
		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

// closeAll evicts every remaining client on the way out.
func (h *Hub) closeAll() {
	h.mu.Lock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()
	h.logger.Info("Hub stopped, all clients closed")
}

// admit registers a client and sends it the connection acknowledgment.
func (h *Hub) admit(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.totalConnections++
	metrics := h.metrics
	h.mu.Unlock()

	ctx := clientContext(client)
	h.logger.InfoContext(ctx, "Client joined",
		slog.String("client_id", client.id),
		slog.String("remote_addr", client.remoteAddr),
		slog.Int("active_clients", count))
	if metrics != nil {
		metrics.WebSocketConnections.Add(ctx, 1)
	}

	h.greet(ctx, client)
}

// drop unregisters a client if it is still tracked. A client evicted during
// a broadcast arrives here a second time and is ignored.
func (h *Hub) drop(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.send)
	count := len(h.clients)
	metrics := h.metrics
	h.mu.Unlock()

	ctx := clientContext(client)
	h.logger.InfoContext(ctx, "Client left",
		slog.String("client_id", client.id),
		slog.Duration("connected_for", time.Since(client.connectedAt)),
		slog.Int("active_clients", count))
	if metrics != nil {
		metrics.WebSocketConnections.Add(ctx, -1)
	}
}

// fanOut delivers one frame to every client and counts the outcome.
func (h *Hub) fanOut(message []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	sent, evicted := 0, 0
	for _, client := range clients {
		select {
		case client.send <- message:
			sent++
		default:
			evicted++
			h.evict(client)
		}
	}

	h.mu.Lock()
	h.eventsSent += int64(sent)
	h.eventsDropped += int64(evicted)
	metrics := h.metrics
	h.mu.Unlock()

	if metrics != nil && sent > 0 {
		metrics.WebSocketEventsSent.Add(context.Background(), int64(sent))
	}
	if evicted > 0 {
		h.logger.Warn("Broadcast dropped slow clients",
			slog.Int("sent", sent),
			slog.Int("evicted", evicted))
	}
}

// evict removes a client whose send buffer is already full.
func (h *Hub) evict(client *Client) {
	h.mu.Lock()
	close(client.send)
	delete(h.clients, client)
	metrics := h.metrics
	h.mu.Unlock()

	ctx := clientContext(client)
	h.logger.WarnContext(ctx, "Send buffer full, evicting client",
		slog.String("client_id", client.id))
	if metrics != nil {
		metrics.WebSocketConnections.Add(ctx, -1)
	}
}

// greet sends the connection acknowledgment to a newly registered client.
func (h *Hub) greet(ctx context.Context, client *Client) {
	frame := events.Envelope{
		Type: events.TypeConnection,
		Data: events.ConnectionData{
			Status:   "connected",
			ClientID: client.id,
			Message:  "Connected to ChurnPulse live updates",
		},
		Timestamp: time.Now().UTC(),
		TraceID:   client.traceID,
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		h.logger.ErrorContext(ctx, "Connection greeting marshal failed",
			slog.String("error", err.Error()))
		return
	}

	select {
	case client.send <- payload:
	default:
		h.logger.WarnContext(ctx, "Greeting dropped, client buffer full",
			slog.String("client_id", client.id))
	}
}

// Publish broadcasts one event envelope to every connected client.
func (h *Hub) Publish(eventType string, data interface{}) {
	frame := events.Envelope{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("Event marshal failed",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()))
		return
	}

	select {
	case h.broadcast <- payload:
	case <-h.quit:
	}
}

// PublishRefreshStarted announces a dataset refresh run.
func (h *Hub) PublishRefreshStarted(runID string) {
	h.Publish(events.TypeRefreshStarted, events.RefreshStartedData{RunID: runID})
}

// PublishRefreshProgress reports per-stage refresh progress.
func (h *Hub) PublishRefreshProgress(runID, stage string, percent int, message string) {
	h.Publish(events.TypeRefreshProgress, events.RefreshProgressData{
		RunID:   runID,
		Stage:   stage,
		Percent: percent,
		Message: message,
	})
}

// PublishRefreshCompleted reports a successful refresh.
func (h *Hub) PublishRefreshCompleted(runID string, rows int, sourceKind, fingerprint string) {
	h.Publish(events.TypeRefreshCompleted, events.RefreshCompletedData{
		RunID:       runID,
		Rows:        rows,
		SourceKind:  sourceKind,
		Fingerprint: fingerprint,
	})
}

// PublishRefreshFailed reports a failed refresh.
func (h *Hub) PublishRefreshFailed(runID, errorText string) {
	h.Publish(events.TypeRefreshFailed, events.RefreshFailedData{
		RunID: runID,
		Error: errorText,
	})
}

// ClientCount reports the live connection count.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register hands a client to the Run loop.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Stop shuts down the hub's goroutines. Connected clients are closed by the
// Run loop on its way out.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return
	}
	h.running = false

	close(h.quit)
	close(h.metricsQuit)
}

// reportCounters logs the hub counters every half minute while running.
func (h *Hub) reportCounters() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.metricsQuit:
			return
		case <-ticker.C:
			connections, sent, dropped := h.Totals()
			h.logger.Info("Hub counters",
				slog.Int("active_clients", h.ClientCount()),
				slog.Int64("total_connections", connections),
				slog.Int64("events_sent", sent),
				slog.Int64("events_dropped", dropped),
				slog.Int("broadcast_queue", len(h.broadcast)))
		}
	}
}

// Totals returns the lifetime connection and event counters. They only
// grow; ClientCount reports the live connection count.
func (h *Hub) Totals() (connections, sent, dropped int64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalConnections, h.eventsSent, h.eventsDropped
}

func clientContext(client *Client) context.Context {
	ctx := context.Background()
	if client.traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, client.traceID)
	}
	return ctx
}
