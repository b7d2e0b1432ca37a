package handler

import (
	"errors"
	"net/http"

	"fleetdispatch/internal/apierror"
	"fleetdispatch/internal/dto"
	"fleetdispatch/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PlansHandler struct{ svc service.PlanService }

func NewPlansHandler(svc service.PlanService) *PlansHandler { return &PlansHandler{svc: svc} }

// Get returns a committed plan in the same shape a commit run responds with.
func (h *PlansHandler) Get(c *gin.Context) {
	id, ok := planID(c)
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AttachUnits adds idle vehicles to a committed plan as empty units.
func (h *PlansHandler) AttachUnits(c *gin.Context) {
	id, ok := planID(c)
	if !ok {
		return
	}
	var req dto.AttachUnitsRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AttachUnits(c.Request.Context(), id, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// MoveItem moves one assignment to another unit of the same plan.
func (h *PlansHandler) MoveItem(c *gin.Context) {
	id, ok := planID(c)
	if !ok {
		return
	}
	var req dto.MoveItemRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.svc.MoveItem(c.Request.Context(), id, req); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Rollback deletes a committed plan with its units, assignments and
// remainders, returning every item to the unassigned pool.
func (h *PlansHandler) Rollback(c *gin.Context) {
	id, ok := planID(c)
	if !ok {
		return
	}
	if err := h.svc.Rollback(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Manifest streams the rendered manifest PDF for a committed plan.
func (h *PlansHandler) Manifest(c *gin.Context) {
	id, ok := planID(c)
	if !ok {
		return
	}
	path, err := h.svc.ManifestPath(id)
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New("manifest not rendered yet"))
		return
	}
	c.File(path)
}

func planID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid plan id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *PlansHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPlanNotFound):
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
	case errors.Is(err, service.ErrAssignmentNotInPlan),
		errors.Is(err, service.ErrUnitNotInPlan),
		errors.Is(err, service.ErrUnitOverCapacity):
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
	default:
		c.Error(err)
		c.JSON(http.StatusInternalServerError, apierror.New("plan operation failed"))
	}
}
