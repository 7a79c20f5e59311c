package http

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/domain"
	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/geo"
	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/presence"
	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/repository"
	"github.com/NakshatraNamahaCreations/novus-dispatch/internal/service"
)

type Handler struct {
	dispatch *service.DispatchSvc
	accept   *service.AcceptSvc
	reject   *service.RejectSvc
	slots    *service.SlotSvc
	presence *service.PresenceSync
	dir      *presence.Directory
	orders   *repository.OrderRepo
	earnings *repository.EarningsRepo
}

func NewHandler(dispatch *service.DispatchSvc, accept *service.AcceptSvc, reject *service.RejectSvc,
	slots *service.SlotSvc, presenceSync *service.PresenceSync, dir *presence.Directory,
	orders *repository.OrderRepo, earnings *repository.EarningsRepo) *Handler {
	return &Handler{
		dispatch: dispatch,
		accept:   accept,
		reject:   reject,
		slots:    slots,
		presence: presenceSync,
		dir:      dir,
		orders:   orders,
		earnings: earnings,
	}
}

func agentID(c *gin.Context) string {
	v, _ := c.Get("sub")
	id, _ := v.(string)
	return id
}

// POST /v1/agents/join
// joinAsAgent: refresh presence and replay every still-eligible pending job
// to the (re)connected channel. The offers also come back in the response so
// a polling client needs no bus subscription to catch up.
func (h *Handler) Join(c *gin.Context) {
	var in struct {
		PostalRegion string   `json:"postal_region" binding:"required"`
		Lat          *float64 `json:"lat"`
		Lon          *float64 `json:"lon"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, domain.ErrValidation)
		return
	}
	id := agentID(c)

	var pt *geo.Point
	if in.Lat != nil && in.Lon != nil {
		pt = &geo.Point{Lat: *in.Lat, Lon: *in.Lon}
	}
	h.presence.Upsert(c.Request.Context(), id, pt, in.PostalRegion)

	offers, err := h.dispatch.ReplayForAgent(c.Request.Context(), id, in.PostalRegion, pt)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"offers": offers})
}

// POST /v1/agents/location
func (h *Handler) UpdateLocation(c *gin.Context) {
	var in struct {
		Lat *float64 `json:"lat" binding:"required"`
		Lon *float64 `json:"lon" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, domain.ErrValidation)
		return
	}
	h.presence.Upsert(c.Request.Context(), agentID(c), &geo.Point{Lat: *in.Lat, Lon: *in.Lon}, "")
	ok(c, http.StatusOK, gin.H{})
}

// GET /v1/agents/pending-jobs: the reconnect replay as a pull.
func (h *Handler) PendingJobs(c *gin.Context) {
	id := agentID(c)
	rec, live := h.dir.Lookup(id)
	if !live {
		fail(c, domain.ErrNotFound)
		return
	}
	offers, err := h.dispatch.ReplayForAgent(c.Request.Context(), id, rec.PostalRegion, rec.Point)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"offers": offers})
}

// POST /v1/orders/:id/accept
func (h *Handler) Accept(c *gin.Context) {
	o, entry, err := h.accept.Accept(c.Request.Context(), c.Param("id"), agentID(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"order": o, "earning": entry})
}

// POST /v1/orders/:id/reject
func (h *Handler) Reject(c *gin.Context) {
	var in struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&in)

	if err := h.reject.Reject(c.Request.Context(), c.Param("id"), agentID(c), in.Reason); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{})
}

// GET /v1/agents/me/earnings
func (h *Handler) Earnings(c *gin.Context) {
	id := agentID(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	balance, err := h.earnings.Balance(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	entries, err := h.earnings.Entries(c.Request.Context(), id, limit)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"balance": balance, "entries": entries})
}

// POST /v1/slots/reserve is reserveSlot for the order-intake collaborator,
// called before the order is persisted.
func (h *Handler) ReserveSlot(c *gin.Context) {
	var in struct {
		SlotID string `json:"slot_id" binding:"required"`
		Date   string `json:"date" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, domain.ErrValidation)
		return
	}
	if err := h.slots.Reserve(c.Request.Context(), in.SlotID, in.Date); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{})
}

// GET /v1/slots/:id/availability?date=YYYY-MM-DD: ops view of how much of a
// slot's capacity is taken for one day.
func (h *Handler) SlotAvailability(c *gin.Context) {
	used, capacity, err := h.slots.Availability(c.Request.Context(), c.Param("id"), c.Query("date"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"used": used, "capacity": capacity})
}

// POST /v1/orders is onOrderCreated: persist and broadcast. A broadcast
// failure is logged, never surfaced: the order is durable and reconnect
// replay will still reach eligible agents.
func (h *Handler) CreateOrder(c *gin.Context) {
	var in struct {
		ID              string   `json:"id"`
		Lat             *float64 `json:"lat"`
		Lon             *float64 `json:"lon"`
		PostalRegion    string   `json:"postal_region" binding:"required"`
		ScheduledSlotID string   `json:"scheduled_slot_id" binding:"required"`
		ScheduledDate   string   `json:"scheduled_date" binding:"required"`
		ServiceCategory string   `json:"service_category" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, domain.ErrValidation)
		return
	}
	if _, err := time.Parse("2006-01-02", in.ScheduledDate); err != nil {
		fail(c, domain.ErrValidation)
		return
	}
	if (in.Lat == nil) != (in.Lon == nil) {
		fail(c, domain.ErrValidation)
		return
	}

	o := &domain.Order{
		ID:              in.ID,
		Lat:             in.Lat,
		Lon:             in.Lon,
		PostalRegion:    in.PostalRegion,
		ScheduledSlotID: in.ScheduledSlotID,
		ScheduledDate:   in.ScheduledDate,
		ServiceCategory: in.ServiceCategory,
	}
	if err := h.orders.Create(c.Request.Context(), o); err != nil {
		fail(c, err)
		return
	}
	if err := h.dispatch.BroadcastNewOrder(c.Request.Context(), o); err != nil {
		log.Printf("[intake] broadcast failed for %s: %v", o.ID, err)
	}
	ok(c, http.StatusCreated, gin.H{"order": o})
}

// GET /v1/orders/pending: ops view of this node's pending cache.
func (h *Handler) PendingSnapshot(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"orders": h.dispatch.PendingSnapshot()})
}
