package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jettr/tock/internal/infrastructure/logging"
	"github.com/jettr/tock/internal/infrastructure/monitoring"
	"github.com/jettr/tock/internal/kernel/ipc"
	"github.com/jettr/tock/internal/kernel/mpu"
	"github.com/jettr/tock/internal/kernel/proc"
	"github.com/jettr/tock/internal/kernel/sched"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	table   *proc.Table
	ipc     *ipc.IPC
	sched   *sched.Scheduler
	mpu     mpu.Manager
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// NewHandlers creates a new handler set
func NewHandlers(
	table *proc.Table,
	driver *ipc.IPC,
	scheduler *sched.Scheduler,
	mpuManager mpu.Manager,
	logger *logging.Logger,
	metrics *monitoring.Metrics,
) *Handlers {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handlers{
		table:   table,
		ipc:     driver,
		sched:   scheduler,
		mpu:     mpuManager,
		logger:  logger,
		metrics: metrics,
	}
}

// Root handles health check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "tock-kernel (Go)",
		"version": "0.1.0",
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"processes_live": h.table.Len(),
		"max_processes":  h.table.Config().MaxProcs,
	})
}

// processView is the JSON shape of one live process.
type processView struct {
	Slot           int    `json:"slot"`
	Generation     uint64 `json:"generation"`
	Name           string `json:"name"`
	PendingTasks   int    `json:"pending_tasks"`
	PendingUpcalls int    `json:"pending_upcalls"`
}

func viewOf(p *proc.Process) processView {
	return processView{
		Slot:           p.ID().Slot(),
		Generation:     p.ID().Generation(),
		Name:           p.Name(),
		PendingTasks:   p.PendingTasks(),
		PendingUpcalls: len(p.PendingUpcalls()),
	}
}

// ListProcesses returns every live process in slot order
func (h *Handlers) ListProcesses(c *gin.Context) {
	views := make([]processView, 0, h.table.Len())
	h.table.Each(func(p *proc.Process) {
		views = append(views, viewOf(p))
	})
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"processes": views,
	})
}

// SpawnProcess places a new process in the lowest free slot
func (h *Handlers) SpawnProcess(c *gin.Context) {
	var req struct {
		Name    string `json:"name" binding:"required"`
		Service bool   `json:"service"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request: " + err.Error(),
		})
		return
	}

	p, err := h.table.Spawn(req.Name)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	if req.Service {
		if err := p.Subscribe(0); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   err.Error(),
			})
			return
		}
	}

	h.logger.Info("process spawned",
		zap.String("name", req.Name),
		zap.Stringer("process", p.ID()),
	)
	if h.metrics != nil {
		h.metrics.ProcessesTotal.Inc()
		h.metrics.ProcessesLive.Set(float64(h.table.Len()))
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"process": viewOf(p),
	})
}

// TerminateProcess vacates a process slot
func (h *Handlers) TerminateProcess(c *gin.Context) {
	p, ok := h.resolveSlot(c)
	if !ok {
		return
	}
	h.table.Terminate(p.ID())
	h.logger.Info("process terminated", zap.Stringer("process", p.ID()))
	if h.metrics != nil {
		h.metrics.ProcessesLive.Set(float64(h.table.Len()))
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RestartProcess replaces a process with a fresh instance in the same slot
func (h *Handlers) RestartProcess(c *gin.Context) {
	p, ok := h.resolveSlot(c)
	if !ok {
		return
	}
	fresh, err := h.table.Restart(p.ID())
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	h.logger.Info("process restarted",
		zap.Stringer("old", p.ID()),
		zap.Stringer("new", fresh.ID()),
	)
	if h.metrics != nil {
		h.metrics.Restarts.Inc()
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"process": viewOf(fresh),
	})
}

// resolveSlot parses the :slot parameter and resolves it to a live process,
// writing the error response itself when that fails.
func (h *Handlers) resolveSlot(c *gin.Context) (*proc.Process, bool) {
	slot, err := strconv.Atoi(c.Param("slot"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid slot: " + c.Param("slot"),
		})
		return nil, false
	}
	p, ok := h.table.Resolve(slot)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "no live process at slot " + strconv.Itoa(slot),
		})
		return nil, false
	}
	return p, true
}
