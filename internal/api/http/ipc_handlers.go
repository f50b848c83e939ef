package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jettr/tock/internal/kernel/grant"
	"github.com/jettr/tock/internal/kernel/proc"
	"github.com/jettr/tock/internal/kernel/syscall"
)

// commandView is the JSON shape of a CommandReturn.
type commandView struct {
	Succeeded bool   `json:"succeeded"`
	Value     uint32 `json:"value,omitempty"`
	Error     string `json:"error,omitempty"`
}

func viewOfReturn(r syscall.CommandReturn) commandView {
	v := commandView{Succeeded: r.Succeeded(), Value: r.Value()}
	if code, failed := r.ErrorCode(); failed {
		v.Error = code.String()
	}
	return v
}

// Syscall issues an IPC driver command on behalf of the caller process
func (h *Handlers) Syscall(c *gin.Context) {
	var req struct {
		Caller  *int   `json:"caller" binding:"required"`
		Command uint32 `json:"command"`
		Target  uint32 `json:"target"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request: " + err.Error(),
		})
		return
	}
	caller, ok := h.table.Resolve(*req.Caller)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "no live process at caller slot",
		})
		return
	}

	ret := h.ipc.Command(req.Command, req.Target, 0, caller.ID())
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  viewOfReturn(ret),
	})
}

// Subscribe registers, re-enables, or disables one of a process's upcalls
func (h *Handlers) Subscribe(c *gin.Context) {
	p, ok := h.resolveSlot(c)
	if !ok {
		return
	}
	var req struct {
		Upcall *int `json:"upcall" binding:"required"`
		Off    bool `json:"off"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request: " + err.Error(),
		})
		return
	}
	var err error
	if req.Off {
		err = p.SetUpcallOff(*req.Upcall)
	} else {
		err = p.Subscribe(*req.Upcall)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// AllowReadOnly binds a read-only allow buffer; index 0 carries the
// discovery search name
func (h *Handlers) AllowReadOnly(c *gin.Context) {
	h.allow(c, h.ipc.AllowReadOnly)
}

// AllowReadWrite binds a read-write allow buffer shared with the process
// occupying the slot equal to the chosen index
func (h *Handlers) AllowReadWrite(c *gin.Context) {
	h.allow(c, h.ipc.AllowReadWrite)
}

func (h *Handlers) allow(c *gin.Context, bind func(id proc.ProcessID, index int, data []byte) (grant.Buffer, error)) {
	p, ok := h.resolveSlot(c)
	if !ok {
		return
	}
	var req struct {
		Index *int   `json:"index" binding:"required"`
		Data  string `json:"data"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request: " + err.Error(),
		})
		return
	}
	buf, err := bind(p.ID(), *req.Index, []byte(req.Data))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"addr":    buf.Addr(),
		"len":     buf.Len(),
	})
}

// RunProcess drains the queued IPC tasks of one process
func (h *Handlers) RunProcess(c *gin.Context) {
	p, ok := h.resolveSlot(c)
	if !ok {
		return
	}
	ran := h.sched.RunPending(p.ID())
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"ran":     ran,
	})
}

// RunAll drains every live process's task queue in slot order
func (h *Handlers) RunAll(c *gin.Context) {
	ran := h.sched.RunAll()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"ran":     ran,
	})
}

// ListUpcalls returns a process's pending upcall invocations
func (h *Handlers) ListUpcalls(c *gin.Context) {
	p, ok := h.resolveSlot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"upcalls": p.PendingUpcalls(),
	})
}

// DrainUpcalls removes and returns a process's pending upcall invocations
func (h *Handlers) DrainUpcalls(c *gin.Context) {
	p, ok := h.resolveSlot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"upcalls": p.DrainUpcalls(),
	})
}

// GrantInfo reports whether a process holds an IPC grant record
func (h *Handlers) GrantInfo(c *gin.Context) {
	p, ok := h.resolveSlot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"allocated": h.ipc.GrantAllocated(p.ID()),
	})
}

// ListMPURegions returns the MPU regions installed for a process slot
func (h *Handlers) ListMPURegions(c *gin.Context) {
	p, ok := h.resolveSlot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"regions": h.mpu.Regions(p.ID().Slot()),
	})
}
