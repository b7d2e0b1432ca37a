package handler

import (
	"errors"
	"net/http"

	"fleetdispatch/internal/apierror"
	"fleetdispatch/internal/dto"
	"fleetdispatch/internal/service"

	"github.com/gin-gonic/gin"
)

type DispatchHandler struct{ svc service.DispatchService }

func NewDispatchHandler(svc service.DispatchService) *DispatchHandler {
	return &DispatchHandler{svc: svc}
}

// Run executes a dispatch run. Preview by default; commit when the body sets
// commit=true. Items that cannot be placed come back in the unassigned ledger
// with a 200, never as an error status.
func (h *DispatchHandler) Run(c *gin.Context) {
	var req dto.DispatchRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.svc.Run(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrCommitInProgress) {
			c.JSON(http.StatusConflict, apierror.New(err.Error()))
			return
		}
		c.Error(err)
		c.JSON(http.StatusInternalServerError, apierror.New("dispatch run failed"))
		return
	}

	status := http.StatusOK
	if req.Commit {
		status = http.StatusCreated
	}
	c.JSON(status, resp)
}

// IdleUnits returns, grouped by branch, the vehicles a preview run over the
// same scope would leave without a single placement.
func (h *DispatchHandler) IdleUnits(c *gin.Context) {
	var filter dto.IdleUnitsFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}

	idle, err := h.svc.IdleUnits(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, apierror.New("idle units lookup failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"idle_units_by_branch": idle})
}
