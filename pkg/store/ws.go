package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/google/uuid"

	"github.com/kamalraji/planit-go/pkg/logger"
	"github.com/kamalraji/planit-go/pkg/models"
)

// DefaultDialer is the gorilla dialer used by WebSocketStore unless
// overridden in Config.
var DefaultDialer = &gorilla.Dialer{
	Proxy:             gorilla.DefaultDialer.Proxy,
	HandshakeTimeout:  gorilla.DefaultDialer.HandshakeTimeout,
	EnableCompression: true,
	Subprotocols:      []string{"json"},
}

// DefaultTimeout bounds how long a request waits for its RPC response
// after it has been written to the connection.
const DefaultTimeout = 10 * time.Second

// Config configures a WebSocketStore.
type Config struct {
	// Endpoint is the websocket URL of the backend RPC channel.
	Endpoint string

	// AccessToken authenticates the session. Its claims provide the
	// actor identity; the signature is the server's to verify.
	AccessToken string

	// Timeout bounds each RPC round trip. Zero means DefaultTimeout.
	Timeout time.Duration

	Logger logger.Logger
	Dialer *gorilla.Dialer
}

// WebSocketStore implements Store over a JSON-RPC websocket channel:
// requests are correlated to responses by id, and change-feed events
// arrive as id-less frames tagged with their subscription id.
type WebSocketStore struct {
	endpoint string
	token    string
	timeout  time.Duration
	dialer   *gorilla.Dialer
	log      logger.Logger

	conn     *gorilla.Conn
	connLock sync.Mutex

	responseChannels     map[string]chan rpcResponse
	responseChannelsLock sync.RWMutex

	subs     map[string]*wsSubscription
	subsLock sync.RWMutex

	closeChan chan struct{}
	closeOnce sync.Once
	closeErr  error

	connected     bool
	connectedLock sync.Mutex

	principal    models.Principal
	hasPrincipal bool
}

var _ Store = (*WebSocketStore)(nil)

type rpcRequest struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

func (e *rpcError) Error() string {
	return e.Message
}

type rpcResponse struct {
	ID           string          `json:"id,omitempty"`
	Error        *rpcError       `json:"error,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	Subscription string          `json:"subscription,omitempty"`
}

// NewWebSocketStore builds the store and resolves the actor identity
// from the access token. It does not dial; call Connect.
func NewWebSocketStore(cfg Config) (*WebSocketStore, error) {
	if cfg.Endpoint == "" {
		return nil, ErrNoEndpoint
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = DefaultDialer
	}

	ws := &WebSocketStore{
		endpoint:         cfg.Endpoint,
		token:            cfg.AccessToken,
		timeout:          timeout,
		dialer:           dialer,
		log:              log,
		responseChannels: make(map[string]chan rpcResponse),
		subs:             make(map[string]*wsSubscription),
		closeChan:        make(chan struct{}),
	}

	if cfg.AccessToken != "" {
		principal, err := principalFromToken(cfg.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("resolve identity: %w", err)
		}
		ws.principal = principal
		ws.hasPrincipal = true
	}

	return ws, nil
}

// Connect dials the endpoint, authenticates the session and starts the
// read loop. It is also used to re-establish a dropped connection.
func (ws *WebSocketStore) Connect(ctx context.Context) error {
	conn, res, err := ws.dialer.DialContext(ctx, ws.endpoint, nil)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	ws.connLock.Lock()
	ws.conn = conn
	ws.connLock.Unlock()
	ws.setConnected(true)

	go ws.readLoop(conn)

	if ws.token != "" {
		if err := ws.send(ctx, nil, "authenticate", map[string]any{"token": ws.token}); err != nil {
			return fmt.Errorf("authenticate: %w", err)
		}
	}
	return nil
}

// Close sends a close frame and releases the connection. Pending
// requests fail with ErrClosed.
func (ws *WebSocketStore) Close(ctx context.Context) error {
	ws.closeOnce.Do(func() {
		ws.closeErr = ErrClosed
		close(ws.closeChan)
	})
	ws.setConnected(false)

	ws.connLock.Lock()
	defer ws.connLock.Unlock()
	if ws.conn == nil {
		return nil
	}

	writeErr := make(chan error, 1)
	go func() {
		writeErr <- ws.conn.WriteMessage(gorilla.CloseMessage, gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, ""))
	}()
	select {
	case err := <-writeErr:
		if err != nil {
			ws.log.Error("failed to write close message", "error", err)
		}
	case <-ctx.Done():
	}

	return ws.conn.Close()
}

// IsDisconnected reports whether the read loop has observed a broken
// connection. The reconnecting wrapper polls this.
func (ws *WebSocketStore) IsDisconnected() bool {
	ws.connectedLock.Lock()
	defer ws.connectedLock.Unlock()
	return !ws.connected
}

func (ws *WebSocketStore) setConnected(v bool) {
	ws.connectedLock.Lock()
	ws.connected = v
	ws.connectedLock.Unlock()
}

// Query implements Store.
func (ws *WebSocketStore) Query(ctx context.Context, resource, tenant string, filters map[string]string) ([]models.Row, error) {
	var rows []models.Row
	err := ws.send(ctx, &rows, "query", map[string]any{
		"resource": resource,
		"tenant":   tenant,
		"filters":  filters,
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Write implements Store.
func (ws *WebSocketStore) Write(ctx context.Context, resource string, op Op, payload models.Row) (models.Row, error) {
	switch op {
	case OpInsert, OpUpdate, OpDelete:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidOp, op)
	}

	var row models.Row
	err := ws.send(ctx, &row, "write", map[string]any{
		"resource": resource,
		"op":       string(op),
		"row":      payload,
	})
	if err != nil {
		return nil, err
	}
	if op == OpDelete {
		return nil, nil
	}
	return row, nil
}

// Subscribe implements Store.
func (ws *WebSocketStore) Subscribe(ctx context.Context, tenant string, resources []string) (Subscription, error) {
	id := uuid.NewString()
	sub := &wsSubscription{
		id:        id,
		tenant:    tenant,
		resources: resources,
		store:     ws,
		events:    make(chan Event, 64),
		resets:    make(chan struct{}, 1),
	}

	ws.subsLock.Lock()
	ws.subs[id] = sub
	ws.subsLock.Unlock()

	if err := ws.sendSubscribe(ctx, sub); err != nil {
		ws.subsLock.Lock()
		delete(ws.subs, id)
		ws.subsLock.Unlock()
		return nil, err
	}
	return sub, nil
}

// Identity implements Store.
func (ws *WebSocketStore) Identity() (models.Principal, bool) {
	return ws.principal, ws.hasPrincipal
}

func (ws *WebSocketStore) sendSubscribe(ctx context.Context, sub *wsSubscription) error {
	return ws.send(ctx, nil, "subscribe", map[string]any{
		"id":        sub.id,
		"tenant":    sub.tenant,
		"resources": sub.resources,
	})
}

// resubscribeAll re-issues every live subscription after a reconnect
// and fires its reset signal: missed events cannot be replayed, so
// consumers must treat all watched state as unknown.
func (ws *WebSocketStore) resubscribeAll(ctx context.Context) {
	ws.subsLock.RLock()
	subs := make([]*wsSubscription, 0, len(ws.subs))
	for _, s := range ws.subs {
		subs = append(subs, s)
	}
	ws.subsLock.RUnlock()

	for _, sub := range subs {
		if err := ws.sendSubscribe(ctx, sub); err != nil {
			ws.log.Error("resubscribe failed", "subscription", sub.id, "tenant", sub.tenant, "error", err)
			continue
		}
		sub.signalReset()
	}
}

func (ws *WebSocketStore) send(ctx context.Context, dest any, method string, params any) error {
	if ws.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ws.timeout)
		defer cancel()
	}

	select {
	case <-ws.closeChan:
		return ws.closeErr
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	id := uuid.NewString()
	responseChan, err := ws.createResponseChannel(id)
	if err != nil {
		return err
	}
	defer ws.removeResponseChannel(id)

	if err := ws.write(rpcRequest{ID: id, Method: method, Params: params}); err != nil {
		return err
	}

	select {
	case <-ws.closeChan:
		return ws.closeErr
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", ErrTimeout, method)
		}
		return ctx.Err()
	case res, open := <-responseChan:
		if !open {
			return ErrClosed
		}
		if res.Error != nil {
			return fmt.Errorf("%w: %s", ErrRemoteFailure, res.Error.Message)
		}
		if dest == nil || len(res.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(res.Result, dest); err != nil {
			return fmt.Errorf("unmarshal %s result: %w", method, err)
		}
		return nil
	}
}

func (ws *WebSocketStore) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ws.connLock.Lock()
	defer ws.connLock.Unlock()
	if ws.conn == nil {
		return ErrClosed
	}
	return ws.conn.WriteMessage(gorilla.TextMessage, data)
}

func (ws *WebSocketStore) createResponseChannel(id string) (chan rpcResponse, error) {
	ws.responseChannelsLock.Lock()
	defer ws.responseChannelsLock.Unlock()
	if _, ok := ws.responseChannels[id]; ok {
		return nil, fmt.Errorf("%w: %v", ErrIDInUse, id)
	}
	ch := make(chan rpcResponse, 1)
	ws.responseChannels[id] = ch
	return ch, nil
}

func (ws *WebSocketStore) removeResponseChannel(id string) {
	ws.responseChannelsLock.Lock()
	defer ws.responseChannelsLock.Unlock()
	delete(ws.responseChannels, id)
}

func (ws *WebSocketStore) getResponseChannel(id string) (chan rpcResponse, bool) {
	ws.responseChannelsLock.RLock()
	defer ws.responseChannelsLock.RUnlock()
	ch, ok := ws.responseChannels[id]
	return ch, ok
}

func (ws *WebSocketStore) readLoop(conn *gorilla.Conn) {
	for {
		select {
		case <-ws.closeChan:
			return
		default:
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ws.handleReadError(err) {
					return
				}
				continue
			}
			ws.handleMessage(data)
		}
	}
}

// handleReadError reports whether the read loop should exit. A broken
// connection flips the disconnected flag so the reconnecting wrapper
// can pick it up.
func (ws *WebSocketStore) handleReadError(err error) bool {
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrUnexpectedEOF) ||
		gorilla.IsUnexpectedCloseError(err) || gorilla.IsCloseError(err, gorilla.CloseNormalClosure) {
		ws.log.Warn("connection lost", "error", err)
		ws.setConnected(false)
		return true
	}
	ws.log.Error("read error", "error", err)
	return false
}

func (ws *WebSocketStore) handleMessage(data []byte) {
	var res rpcResponse
	if err := json.Unmarshal(data, &res); err != nil {
		ws.log.Error("unparseable frame", "error", err)
		return
	}

	if res.ID != "" {
		ch, ok := ws.getResponseChannel(res.ID)
		if !ok {
			ws.log.Error("response for unknown request", "id", res.ID)
			return
		}
		ch <- res
		return
	}

	if res.Subscription == "" {
		ws.log.Error("frame with neither request id nor subscription")
		return
	}

	var ev Event
	if err := json.Unmarshal(res.Result, &wireEvent{&ev}); err != nil {
		ws.log.Error("unparseable change event", "subscription", res.Subscription, "error", err)
		return
	}

	ws.subsLock.RLock()
	sub, ok := ws.subs[res.Subscription]
	ws.subsLock.RUnlock()
	if !ok {
		ws.log.Debug("event for released subscription", "subscription", res.Subscription)
		return
	}
	sub.deliver(ev)
}

// wireEvent maps the snake_case feed payload onto Event.
type wireEvent struct {
	ev *Event
}

func (w *wireEvent) UnmarshalJSON(data []byte) error {
	var raw struct {
		Resource string `json:"resource"`
		Kind     string `json:"kind"`
		RowID    string `json:"row_id"`
		Tenant   string `json:"tenant_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	w.ev.Resource = raw.Resource
	w.ev.Kind = ChangeKind(raw.Kind)
	w.ev.RowID = raw.RowID
	w.ev.Tenant = raw.Tenant
	return nil
}

type wsSubscription struct {
	id        string
	tenant    string
	resources []string
	store     *WebSocketStore

	events chan Event
	resets chan struct{}

	closeOnce sync.Once
}

var _ Subscription = (*wsSubscription)(nil)

func (s *wsSubscription) Events() <-chan Event    { return s.events }
func (s *wsSubscription) Resets() <-chan struct{} { return s.resets }

func (s *wsSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.store.subsLock.Lock()
		delete(s.store.subs, s.id)
		s.store.subsLock.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), s.store.timeout)
		defer cancel()
		err = s.store.send(ctx, nil, "unsubscribe", map[string]any{"id": s.id})
		close(s.events)
	})
	return err
}

func (s *wsSubscription) deliver(ev Event) {
	select {
	case s.events <- ev:
	default:
		// The consumer is not draining; dropping is safe because
		// events are invalidation hints, and a slow consumer will
		// still converge on its next read.
		s.store.log.Warn("dropping change event, subscriber is slow", "subscription", s.id)
	}
}

func (s *wsSubscription) signalReset() {
	select {
	case s.resets <- struct{}{}:
	default:
	}
}
