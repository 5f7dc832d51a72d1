package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // frames arrive as JPEG or PNG
	_ "image/png"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vietanh2810/certcheck-api/internal/api/handler/v1/response"
	"github.com/vietanh2810/certcheck-api/internal/domain"
	"github.com/vietanh2810/certcheck-api/internal/scanner"
)

const (
	scannerWriteWait  = 10 * time.Second
	scannerMaxFrame   = 4 << 20
	scannerSendBuffer = 64

	msgDevices = "devices"
	msgReset   = "reset"
	msgDevice  = "device"
	msgState   = "state"
	msgError   = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS middleware already filtered the origin
	},
}

// scannerInbound is a text message from the browser. Frames are sent as
// binary messages instead.
type scannerInbound struct {
	Type    string           `json:"type"`
	Devices []scanner.Device `json:"devices,omitempty"`
}

type scannerOutbound struct {
	Type   string          `json:"type"`
	Device *scanner.Device `json:"device,omitempty"`
	Error  string          `json:"error,omitempty"`
	*scanner.Snapshot
}

type ScannerDeps struct {
	Decoder  scanner.Decoder
	Badges   scanner.BadgeResolver
	Checkins scanner.CheckinWriter
	Events   EventService
	// Interval is read per connection so config reloads apply to new scanners.
	Interval func() time.Duration
}

type ScannerHandler struct {
	deps ScannerDeps
}

func NewScannerHandler(deps ScannerDeps) *ScannerHandler {
	return &ScannerHandler{
		deps: deps,
	}
}

// HandleWebSocket godoc
// @Summary      Badge scanner session
// @Description  Upgrades to a websocket. The client announces its cameras with {"type":"devices","devices":[...]},
// @Description  then streams camera frames as binary PNG or JPEG messages; {"type":"reset"} returns to idle.
// @Description  The server answers with the chosen device and pushes every state change.
// @Tags         checkins
// @Param        eventID  path  int  true  "Event ID"
// @Param        day  query  string  false  "YYYY-MM-DD; defaults to today for per-day events"
// @Param        access_token  query  string  false  "JWT, for browsers that cannot set headers on upgrade"
// @Success      101  {string}  string  "Switching Protocols"
// @Failure      401  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Router       /events/{eventID}/scanner [get]
// @Security BearerAuth
func (h *ScannerHandler) HandleWebSocket(ctx *gin.Context) {
	actor, respErr := actorFromContext(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}
	eventID, respErr := uintParam(ctx, "eventID")
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}
	if _, err := h.deps.Events.GetEvent(ctx.Request.Context(), actor, eventID); err != nil {
		response.RenderErr(ctx, response.FromDomain(fmt.Errorf("v1.HandleWebSocket -> h.deps.Events.GetEvent -> %w", err)))
		return
	}

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		zap.L().Warn("scanner upgrade failed", zap.Error(err))
		return
	}

	var interval time.Duration
	if h.deps.Interval != nil {
		interval = h.deps.Interval()
	}
	camera := scanner.NewRemoteCamera()
	session := scanner.NewSession(scanner.Config{
		OwnerID:  actor,
		EventID:  eventID,
		Actor:    actor,
		Day:      domain.DayKey(ctx.Query("day")),
		Interval: interval,
	}, scanner.Deps{
		Camera:   camera,
		Decoder:  h.deps.Decoder,
		Badges:   h.deps.Badges,
		Checkins: h.deps.Checkins,
	})

	c := &scannerClient{
		conn:    conn,
		send:    make(chan []byte, scannerSendBuffer),
		camera:  camera,
		session: session,
		eventID: eventID,
	}
	session.OnChange(func(snap scanner.Snapshot) {
		c.push(scannerOutbound{Type: msgState, Snapshot: &snap})
	})

	go c.writePump()
	c.readPump()
}

type scannerClient struct {
	conn    *websocket.Conn
	camera  *scanner.RemoteCamera
	session *scanner.Session
	eventID uint

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// push never blocks: the session's observer runs on the sampling goroutine.
// A client too slow to drain its buffer misses intermediate states.
func (c *scannerClient) push(msg scannerOutbound) {
	b, err := json.Marshal(msg)
	if err != nil {
		zap.L().Error("scanner message encoding", zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- b:
	default:
		zap.L().Warn("scanner client lagging, dropping message", zap.Uint("event_id", c.eventID))
	}
}

func (c *scannerClient) shutdown() {
	if err := c.session.Close(); err != nil {
		zap.L().Warn("scanner session ended with error", zap.Uint("event_id", c.eventID), zap.Error(err))
	}

	c.mu.Lock()
	c.closed = true
	close(c.send)
	c.mu.Unlock()
}

func (c *scannerClient) writePump() {
	defer func() {
		c.conn.Close()
	}()
	for message := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(scannerWriteWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (c *scannerClient) readPump() {
	defer func() {
		c.shutdown()
		c.conn.Close()
	}()
	c.conn.SetReadLimit(scannerMaxFrame)

	for {
		kind, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Info("scanner connection dropped", zap.Uint("event_id", c.eventID), zap.Error(err))
			}
			return
		}

		if kind == websocket.BinaryMessage {
			c.frame(message)
			continue
		}

		var in scannerInbound
		if err := json.Unmarshal(message, &in); err != nil {
			c.push(scannerOutbound{Type: msgError, Error: "malformed message"})
			continue
		}
		switch in.Type {
		case msgDevices:
			c.devices(in.Devices)
		case msgReset:
			c.session.Reset()
		default:
			c.push(scannerOutbound{Type: msgError, Error: fmt.Sprintf("unknown message type %q", in.Type)})
		}
	}
}

// devices picks the camera and starts sampling on the first announcement.
// Later announcements only change the reported selection.
func (c *scannerClient) devices(devices []scanner.Device) {
	selected := c.camera.Announce(devices)
	c.push(scannerOutbound{Type: msgDevice, Device: &selected})

	err := c.session.Start(context.Background())
	switch {
	case err == nil:
		snap := c.session.Snapshot()
		c.push(scannerOutbound{Type: msgState, Snapshot: &snap})
	case errors.Is(err, scanner.ErrAlreadyStarted):
	default:
		zap.L().Error("scanner start failed", zap.Uint("event_id", c.eventID), zap.Error(err))
		c.push(scannerOutbound{Type: msgError, Error: "Could not start the camera"})
	}
}

func (c *scannerClient) frame(data []byte) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		c.push(scannerOutbound{Type: msgError, Error: "unreadable frame"})
		return
	}
	if err := c.camera.Push(img); err != nil {
		c.push(scannerOutbound{Type: msgError, Error: "camera is closed"})
	}
}
