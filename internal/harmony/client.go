package harmony

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Hub endpoints and command names of the local WebSocket API.
const (
	DefaultPort = 8088

	provisionOrigin = "http://sl.dhg.myharmony.com"
	wsDomain        = "svcs.myharmony.com"

	cmdProvision          = "setup.account?getProvisionInfo"
	cmdConfig             = "vnd.logitech.harmony/vnd.logitech.harmony.engine?config"
	cmdGetCurrentActivity = "vnd.logitech.harmony/vnd.logitech.harmony.engine?getCurrentActivity"
	cmdStartActivity      = "harmony.activityengine?runactivity"
	cmdHoldAction         = "vnd.logitech.harmony/vnd.logitech.harmony.engine?holdAction"

	// CommandHoldAction is the only command accepted by Send.
	CommandHoldAction = "holdAction"

	codeOK         = 200
	codeInProgress = 100

	defaultRequestTimeout = 30 * time.Second
	keepAliveInterval     = 30 * time.Second
	writeWait             = 10 * time.Second
	maxFrameSize          = 4 << 20
)

// Logger is the logging surface the client and discovery need.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Options configures Dial.
type Options struct {
	// Port of the hub's local API. Zero means DefaultPort.
	Port int

	// RequestTimeout bounds each request/response exchange. Zero means 30s.
	RequestTimeout time.Duration

	// HTTPClient is used for the provisioning request. Nil means http.DefaultClient.
	HTTPClient *http.Client

	Logger Logger
}

// Client is a control session with one hub over its local WebSocket API.
//
// Requests are correlated with responses by id; a single reader goroutine
// dispatches responses to the waiting callers. All methods are safe for
// concurrent use. Close unblocks every pending call with ErrClosed.
type Client struct {
	addr     string
	remoteID string
	timeout  time.Duration
	logger   Logger

	conn    *websocket.Conn
	writeMu sync.Mutex

	pending   map[string]chan response
	pendingMu sync.Mutex
	nextID    atomic.Uint64

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type request struct {
	HubID   string `json:"hubId"`
	Timeout int    `json:"timeout"`
	HBus    hbus   `json:"hbus"`
}

type hbus struct {
	Cmd    string `json:"cmd"`
	ID     string `json:"id"`
	Params any    `json:"params"`
}

type response struct {
	Cmd  string          `json:"cmd"`
	ID   flexString      `json:"id"`
	Code flexString      `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
	Type string          `json:"type"`
}

// Dial provisions the hub at ip and opens its WebSocket session.
//
// Parameters:
//   - ctx: Bounds provisioning and the WebSocket handshake
//   - ip: Hub address as announced by discovery
//   - opts: Port, timeouts and logger
//
// Returns:
//   - *Client: Connected client; call Close when done
//   - error: ErrProvisionFailed or a wrapped dial error
func Dial(ctx context.Context, ip string, opts Options) (*Client, error) {
	port := opts.Port
	if port == 0 {
		port = DefaultPort
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	addr := net.JoinHostPort(ip, strconv.Itoa(port))

	remoteID, err := provision(ctx, httpClient, addr)
	if err != nil {
		return nil, err
	}

	u := url.URL{
		Scheme:   "ws",
		Host:     addr,
		Path:     "/",
		RawQuery: url.Values{"domain": {wsDomain}, "hubId": {remoteID}}.Encode(),
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dialing hub %s: %w", addr, err)
	}
	conn.SetReadLimit(maxFrameSize)

	c := &Client{
		addr:     addr,
		remoteID: remoteID,
		timeout:  timeout,
		logger:   logger,
		conn:     conn,
		pending:  make(map[string]chan response),
		done:     make(chan struct{}),
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.keepAlive()

	return c, nil
}

// provision asks the hub for its active remote id, required to open the socket.
func provision(ctx context.Context, httpClient *http.Client, addr string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"id":      1,
		"cmd":     cmdProvision,
		"timeout": 90000,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrProvisionFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+addr+"/", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrProvisionFailed, err)
	}
	req.Header.Set("Origin", provisionOrigin)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "utf-8")

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrProvisionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrProvisionFailed, resp.StatusCode)
	}

	var out struct {
		Data struct {
			ActiveRemoteID flexString `json:"activeRemoteId"`
		} `json:"data"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decoding response: %w", ErrProvisionFailed, err)
	}
	if out.Data.ActiveRemoteID == "" {
		return "", fmt.Errorf("%w: no activeRemoteId", ErrProvisionFailed)
	}
	return string(out.Data.ActiveRemoteID), nil
}

// RemoteID returns the hub id obtained during provisioning.
func (c *Client) RemoteID() string {
	return c.remoteID
}

// GetConfig fetches the full activity and device configuration.
func (c *Client) GetConfig(ctx context.Context) (Config, error) {
	var cfg Config
	if err := c.call(ctx, cmdConfig, map[string]any{"verb": "get"}, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GetActivities returns the hub's activities, including the PowerOff activity (-1).
func (c *Client) GetActivities(ctx context.Context) ([]Activity, error) {
	cfg, err := c.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	return cfg.Activity, nil
}

// GetAvailableCommands returns the configuration the device catalog is built from.
func (c *Client) GetAvailableCommands(ctx context.Context) (Config, error) {
	return c.GetConfig(ctx)
}

// GetCurrentActivity returns the id of the running activity, OffActivityID when off.
func (c *Client) GetCurrentActivity(ctx context.Context) (string, error) {
	var out struct {
		Result flexString `json:"result"`
	}
	params := map[string]any{"verb": "get", "format": "json"}
	if err := c.call(ctx, cmdGetCurrentActivity, params, &out); err != nil {
		return "", err
	}
	return string(out.Result), nil
}

// StartActivity starts the activity with id and waits for the hub to finish.
func (c *Client) StartActivity(ctx context.Context, id string) error {
	params := map[string]any{
		"async":      "true",
		"timestamp":  0,
		"args":       map[string]any{"rule": "start"},
		"activityId": id,
	}
	return c.call(ctx, cmdStartActivity, params, nil)
}

// TurnOff starts the PowerOff activity.
func (c *Client) TurnOff(ctx context.Context) error {
	return c.StartActivity(ctx, OffActivityID)
}

// Send issues a low-level command without waiting for an answer.
// Only CommandHoldAction is supported; payload is built with EncodeHoldAction.
func (c *Client) Send(ctx context.Context, command, payload string) error {
	if command != CommandHoldAction {
		return fmt.Errorf("%w: %s", ErrUnsupportedCommand, command)
	}
	action, status, err := ParseHoldAction(payload)
	if err != nil {
		return err
	}
	params := map[string]any{
		"status":    status,
		"timestamp": "0",
		"verb":      "render",
		"action":    action,
	}
	return c.write(ctx, c.frame(cmdHoldAction, c.newID(), params))
}

func (c *Client) newID() string {
	return strconv.FormatUint(c.nextID.Add(1), 10)
}

func (c *Client) frame(cmd, id string, params any) request {
	return request{
		HubID:   c.remoteID,
		Timeout: int(c.timeout / time.Second),
		HBus:    hbus{Cmd: cmd, ID: id, Params: params},
	}
}

// call sends a request and waits for its final response, decoding data into out.
func (c *Client) call(ctx context.Context, cmd string, params, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	id := c.newID()
	ch := make(chan response, 4)

	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	if err := c.write(ctx, c.frame(cmd, id, params)); err != nil {
		return err
	}

	for {
		select {
		case resp := <-ch:
			code := resp.Code.int()
			if code == codeInProgress {
				continue
			}
			if code != codeOK {
				return fmt.Errorf("%w: %s returned %d %s", ErrRequestFailed, cmd, code, resp.Msg)
			}
			if out != nil && len(resp.Data) > 0 {
				if err := json.Unmarshal(resp.Data, out); err != nil {
					return fmt.Errorf("decoding %s response: %w", cmd, err)
				}
			}
			return nil
		case <-c.done:
			return ErrClosed
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("%w: %s after %v", ErrTimeout, cmd, c.timeout)
			}
			return ctx.Err()
		}
	}
}

func (c *Client) write(ctx context.Context, req request) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	//nolint:errcheck // write error is reported below
	c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrNotConnected, req.HBus.Cmd, err)
	}
	return nil
}

// readLoop delivers responses to pending calls until the socket fails.
func (c *Client) readLoop() {
	defer c.wg.Done()
	defer c.shutdown()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Warn("hub connection lost", "hub", c.addr, "error", err)
			}
			return
		}

		var resp response
		if err := json.Unmarshal(data, &resp); err != nil {
			c.logger.Debug("ignoring malformed hub frame", "hub", c.addr, "error", err)
			continue
		}
		id := string(resp.ID)
		if id == "" {
			// Unsolicited notifications (state digests and the like).
			c.logger.Debug("hub notification", "hub", c.addr, "type", resp.Type)
			continue
		}

		c.pendingMu.Lock()
		ch, ok := c.pending[id]
		c.pendingMu.Unlock()
		if !ok {
			continue
		}
		select {
		case ch <- resp:
		default:
		}
	}
}

// keepAlive pings the hub so idle sessions are not dropped.
func (c *Client) keepAlive() {
	defer c.wg.Done()
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Debug("hub keep-alive failed", "hub", c.addr, "error", err)
			}
		}
	}
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Done is closed once the session has ended, by Close or by connection loss.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close ends the session. Pending calls return ErrClosed.
func (c *Client) Close() error {
	c.shutdown()
	c.wg.Wait()
	return nil
}
