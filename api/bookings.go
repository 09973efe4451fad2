package api

import (
	"net/http"
	"time"

	"github.com/Domenick1991/flightdesk/internal/domain"
	"github.com/Domenick1991/flightdesk/internal/service/booking"
	"github.com/Domenick1991/flightdesk/internal/service/search"
	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	service  booking.BookingUseCase
	searches search.SearchUseCase
}

type createBookingRequest struct {
	SearchID     string         `json:"search_id" binding:"required"`
	SegmentIndex int            `json:"segment_index"`
	ItineraryID  string         `json:"itinerary_id" binding:"required"`
	OwnerID      string         `json:"owner_id"`
	Contact      domain.Contact `json:"contact"`
}

type ticketResponse struct {
	Number        string   `json:"number"`
	Numbers       []string `json:"numbers,omitempty"`
	RecordLocator string   `json:"record_locator"`
	DocumentPath  string   `json:"document_path,omitempty"`
}

type bookingResponse struct {
	ID             string           `json:"id"`
	Status         string           `json:"status"`
	SupplierStatus string           `json:"supplier_status"`
	PaymentStatus  string           `json:"payment_status"`
	OrderID        string           `json:"order_id,omitempty"`
	Total          float64          `json:"total"`
	Currency       string           `json:"currency"`
	Itinerary      domain.Itinerary `json:"itinerary"`
	Ticket         *ticketResponse  `json:"ticket,omitempty"`
	LastError      string           `json:"last_error,omitempty"`
	CreatedAt      string           `json:"created_at"`
	UpdatedAt      string           `json:"updated_at"`
}

func newBookingResponse(b *domain.Booking) bookingResponse {
	resp := bookingResponse{
		ID:             b.ID,
		Status:         string(b.Status),
		SupplierStatus: string(b.SupplierStatus),
		PaymentStatus:  string(b.PaymentStatus),
		OrderID:        b.SupplierOrderID,
		Total:          b.Total(),
		Currency:       b.Flight.Itinerary.Currency,
		Itinerary:      b.Flight.Itinerary,
		LastError:      b.LastError,
		CreatedAt:      b.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      b.UpdatedAt.Format(time.RFC3339),
	}
	if b.Ticket != nil {
		resp.Ticket = &ticketResponse{
			Number:        b.Ticket.Number,
			Numbers:       b.Ticket.Numbers,
			RecordLocator: b.Ticket.RecordLocator,
			DocumentPath:  b.Ticket.DocumentPath,
		}
	}
	return resp
}

func NewBookingHandler(service booking.BookingUseCase, searches search.SearchUseCase) *BookingHandler {
	return &BookingHandler{service: service, searches: searches}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.create)
	router.GET("/:id", h.get)
	router.POST("/:id/fare-check", h.checkFare)
	router.PUT("/:id/passengers", h.savePassengers)
	router.POST("/:id/issue", h.issue)
	router.DELETE("/:id", h.cancel)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	itinerary, pax, err := h.searches.FindItinerary(c.Request.Context(), req.SearchID, req.SegmentIndex, req.ItineraryID)
	if err != nil {
		writeError(c, err)
		return
	}

	b, err := h.service.CreateBooking(c.Request.Context(), booking.CreateBookingInput{
		OwnerID:    req.OwnerID,
		Contact:    req.Contact,
		SearchID:   req.SearchID,
		Itinerary:  itinerary,
		Passengers: pax,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newBookingResponse(b))
}

func (h *BookingHandler) get(c *gin.Context) {
	b, err := h.service.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBookingResponse(b))
}

func (h *BookingHandler) checkFare(c *gin.Context) {
	b, err := h.service.CheckFare(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBookingResponse(b))
}

func (h *BookingHandler) savePassengers(c *gin.Context) {
	var req booking.SavePassengersInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	b, err := h.service.SavePassengers(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBookingResponse(b))
}

func (h *BookingHandler) issue(c *gin.Context) {
	b, err := h.service.RetryIssuance(c.Request.Context(), c.Param("id"), booking.TriggerUser)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBookingResponse(b))
}

func (h *BookingHandler) cancel(c *gin.Context) {
	b, err := h.service.CancelBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBookingResponse(b))
}
