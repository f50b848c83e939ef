package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jettr/tock/internal/infrastructure/logging"
	"github.com/jettr/tock/internal/infrastructure/monitoring"
	"github.com/jettr/tock/internal/kernel/proc"
	"github.com/jettr/tock/internal/kernel/sched"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in dev
	},
}

// Message is one client command on the stream.
type Message struct {
	Type string `json:"type"`
	Slot *int   `json:"slot,omitempty"`
}

// Handler manages WebSocket connections
type Handler struct {
	table   *proc.Table
	sched   *sched.Scheduler
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// NewHandler creates a new WebSocket handler
func NewHandler(table *proc.Table, scheduler *sched.Scheduler, logger *logging.Logger, metrics *monitoring.Metrics) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		table:   table,
		sched:   scheduler,
		logger:  logger,
		metrics: metrics,
	}
}

// HandleConnection handles WebSocket upgrade and messages
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
		defer h.metrics.WSConnections.Dec()
	}

	h.send(conn, gin.H{
		"type":    "system",
		"message": "Connected to tock-kernel (Go)",
	})

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			h.logger.Debug("websocket read ended", zap.Error(err))
			break
		}
		if h.metrics != nil {
			h.metrics.WSMessages.WithLabelValues(msg.Type).Inc()
		}

		switch msg.Type {
		case "ping":
			h.send(conn, gin.H{"type": "pong"})
		case "run":
			h.handleRun(conn, msg)
		case "drain":
			h.handleDrain(conn, msg)
		default:
			h.send(conn, gin.H{
				"type":    "error",
				"message": "unknown message type: " + msg.Type,
			})
		}
	}
}

// handleRun steps the scheduler: one process's queue when a slot is given,
// every live process otherwise. Delivered upcalls are streamed back per
// process so a client can watch notifications land.
func (h *Handler) handleRun(conn *websocket.Conn, msg Message) {
	if msg.Slot == nil {
		ran := h.sched.RunAll()
		h.send(conn, gin.H{"type": "ran", "ran": ran})
		return
	}
	p, ok := h.table.Resolve(*msg.Slot)
	if !ok {
		h.send(conn, gin.H{
			"type":    "error",
			"message": "no live process at slot",
		})
		return
	}
	ran := h.sched.RunPending(p.ID())
	h.send(conn, gin.H{
		"type": "ran",
		"slot": *msg.Slot,
		"ran":  ran,
	})
}

func (h *Handler) handleDrain(conn *websocket.Conn, msg Message) {
	if msg.Slot == nil {
		h.send(conn, gin.H{
			"type":    "error",
			"message": "drain requires a slot",
		})
		return
	}
	p, ok := h.table.Resolve(*msg.Slot)
	if !ok {
		h.send(conn, gin.H{
			"type":    "error",
			"message": "no live process at slot",
		})
		return
	}
	h.send(conn, gin.H{
		"type":    "upcalls",
		"slot":    *msg.Slot,
		"upcalls": p.DrainUpcalls(),
	})
}

func (h *Handler) send(conn *websocket.Conn, payload gin.H) {
	if err := conn.WriteJSON(payload); err != nil {
		h.logger.Debug("websocket write failed", zap.Error(err))
	}
}
