package notifications

import (
	"context"
	"log"
	"sync"
	"time"

	"rallypoint/internal/observability"

	"github.com/gofiber/websocket/v2"
)

// defaultStaleAfter is how long a connection may sit without any incoming
// frame before the sweep closes it. The ping/pong deadlines catch dead TCP
// peers; the sweep catches peers that stay alive but silent.
const defaultStaleAfter = 10 * time.Minute

type registryEntry struct {
	client       *Client
	lastActivity time.Time
}

// ConnectionRegistry tracks at most one live websocket connection per user.
// A new registration for an already connected user replaces the old
// connection: the newcomer wins and the stale transport is closed.
type ConnectionRegistry struct {
	mu      sync.RWMutex
	entries map[uint]*registryEntry

	sweepInterval time.Duration
	staleAfter    time.Duration
	done          chan struct{}
	stopOnce      sync.Once

	wsLogger *observability.WSLogger
}

// NewConnectionRegistry creates a registry sweeping at the given interval.
func NewConnectionRegistry(sweepInterval time.Duration) *ConnectionRegistry {
	return &ConnectionRegistry{
		entries:       make(map[uint]*registryEntry),
		sweepInterval: sweepInterval,
		staleAfter:    defaultStaleAfter,
		done:          make(chan struct{}),
		wsLogger:      observability.NewWSLogger("connection registry"),
	}
}

// Name returns a human-readable identifier for this hub.
func (r *ConnectionRegistry) Name() string { return "connection registry" }

// SetStaleAfter overrides the idle threshold. Used by tests.
func (r *ConnectionRegistry) SetStaleAfter(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staleAfter = d
}

// Register wires a user's websocket connection into the registry and returns
// the client. The caller runs the client's pumps.
func (r *ConnectionRegistry) Register(userID uint, conn *websocket.Conn) *Client {
	client := NewClient(r, conn, userID)
	r.RegisterClient(client)
	return client
}

// RegisterClient adds a prepared client. Split from Register so tests can
// inject clients without a live websocket connection.
func (r *ConnectionRegistry) RegisterClient(client *Client) {
	userID := client.UserID

	r.mu.Lock()
	old := r.entries[userID]
	r.entries[userID] = &registryEntry{client: client, lastActivity: time.Now()}
	onlineIDs := make([]uint, 0, len(r.entries))
	for id := range r.entries {
		if id != userID {
			onlineIDs = append(onlineIDs, id)
		}
	}
	r.mu.Unlock()

	// Replacement closes the superseded transport without any presence
	// traffic: the user never left, they reconnected, so peers see no edge.
	if old != nil {
		old.client.Close()
		if old.client.Conn != nil {
			_ = old.client.Conn.Close()
		}
		log.Printf("ConnectionRegistry: Replaced connection for user %d", userID)
	} else {
		observability.WebSocketConnectionsTotal.Inc()
		r.broadcastExcept(UserConnected{UserID: userID}, userID)
	}

	r.wsLogger.LogConnect(context.Background(), userID)

	// The (re)connected transport always gets a fresh presence snapshot.
	if msg, err := Encode(ConnectedUsersList{UserIDs: onlineIDs}); err == nil {
		client.TrySend(msg)
	}
}

// UnregisterClient removes the client's registration. A client that was
// already replaced by a newer connection for the same user is ignored, so a
// late disconnect of the old transport cannot knock the new one offline.
func (r *ConnectionRegistry) UnregisterClient(client *Client) {
	userID := client.UserID

	r.mu.Lock()
	entry, ok := r.entries[userID]
	if !ok || entry.client != client {
		r.mu.Unlock()
		return
	}
	delete(r.entries, userID)
	r.mu.Unlock()

	client.Close()
	observability.WebSocketConnectionsTotal.Dec()
	r.wsLogger.LogDisconnect(context.Background(), userID, "unregistered")

	r.broadcastExcept(UserDisconnected{UserID: userID}, userID)
}

// Touch records activity for a user's connection. Incoming frames call this
// so active connections survive the sweep.
func (r *ConnectionRegistry) Touch(userID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[userID]; ok {
		entry.lastActivity = time.Now()
	}
}

// IsOnline reports whether the user has a live connection.
func (r *ConnectionRegistry) IsOnline(userID uint) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[userID]
	return ok
}

// ListOnline returns the ids of all connected users.
func (r *ConnectionRegistry) ListOnline() []uint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]uint, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

// Send pushes an event to one user. Returns false when the user is offline
// or the message was dropped; delivery is best-effort either way. A client
// whose transport already shut down is unregistered on the spot so failure
// and removal stay coupled.
func (r *ConnectionRegistry) Send(userID uint, e Event) bool {
	r.mu.RLock()
	entry, ok := r.entries[userID]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	msg, err := Encode(e)
	if err != nil {
		log.Printf("ConnectionRegistry: Failed to encode %s event: %v", e.EventType(), err)
		return false
	}
	observability.RecordWebSocketEvent(e.EventType())
	if !entry.client.TrySend(msg) {
		if entry.client.Closed() {
			r.UnregisterClient(entry.client)
		}
		return false
	}
	return true
}

// BroadcastAll pushes an event to every connected user.
func (r *ConnectionRegistry) BroadcastAll(e Event) {
	r.broadcastExcept(e, 0)
}

func (r *ConnectionRegistry) broadcastExcept(e Event, exceptUserID uint) {
	msg, err := Encode(e)
	if err != nil {
		log.Printf("ConnectionRegistry: Failed to encode %s event: %v", e.EventType(), err)
		return
	}

	r.mu.RLock()
	clients := make([]*Client, 0, len(r.entries))
	for id, entry := range r.entries {
		if id == exceptUserID {
			continue
		}
		clients = append(clients, entry.client)
	}
	r.mu.RUnlock()

	observability.RecordWebSocketEvent(e.EventType())
	for _, c := range clients {
		c.TrySend(msg)
	}
}

// Run starts the periodic sweep of idle connections. Blocks until Shutdown.
func (r *ConnectionRegistry) Run() {
	if r.sweepInterval <= 0 {
		<-r.done
		return
	}
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.sweepOnce(time.Now())
		case <-r.done:
			return
		}
	}
}

// sweepOnce closes and unregisters connections idle beyond the threshold.
func (r *ConnectionRegistry) sweepOnce(now time.Time) {
	r.mu.RLock()
	stale := make([]*Client, 0)
	for _, entry := range r.entries {
		if now.Sub(entry.lastActivity) > r.staleAfter {
			stale = append(stale, entry.client)
		}
	}
	r.mu.RUnlock()

	for _, client := range stale {
		log.Printf("ConnectionRegistry: Sweeping idle connection for user %d", client.UserID)
		if client.Conn != nil {
			_ = client.Conn.Close()
		}
		r.UnregisterClient(client)
	}
}

// Shutdown stops the sweep loop and closes every connection.
func (r *ConnectionRegistry) Shutdown(ctx context.Context) error {
	r.stopOnce.Do(func() { close(r.done) })

	r.mu.Lock()
	clients := make([]*Client, 0, len(r.entries))
	for _, entry := range r.entries {
		clients = append(clients, entry.client)
	}
	r.entries = make(map[uint]*registryEntry)
	r.mu.Unlock()

	for _, client := range clients {
		client.Close()
		if client.Conn != nil {
			_ = client.Conn.Close()
		}
	}
	r.wsLogger.LogLifecycle(ctx, "shutdown", map[string]interface{}{"closed": len(clients)})
	return nil
}
