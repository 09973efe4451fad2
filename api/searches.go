package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Domenick1991/flightdesk/internal/domain"
	"github.com/Domenick1991/flightdesk/internal/service/search"
	"github.com/gin-gonic/gin"
)

type SearchHandler struct {
	service search.SearchUseCase
}

type searchSegmentRequest struct {
	Origin      string `json:"origin" binding:"required"`
	Destination string `json:"destination" binding:"required"`
	Date        string `json:"date" binding:"required"`
}

type startSearchRequest struct {
	Segments   []searchSegmentRequest `json:"segments" binding:"required,min=1,dive"`
	Adults     int                    `json:"adults"`
	Children   int                    `json:"children"`
	Infants    int                    `json:"infants"`
	Cabin      string                 `json:"cabin"`
	DirectOnly bool                   `json:"direct_only"`
}

func NewSearchHandler(service search.SearchUseCase) *SearchHandler {
	return &SearchHandler{service: service}
}

func (h *SearchHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.start)
	router.GET("/:id", h.get)
	router.POST("/:id/segments/:index/retry", h.retrySegment)
}

func (r startSearchRequest) toDomain() (domain.SearchRequest, error) {
	req := domain.SearchRequest{
		Passengers: domain.PassengerCounts{Adults: r.Adults, Children: r.Children, Infants: r.Infants},
		Cabin:      strings.ToLower(r.Cabin),
		DirectOnly: r.DirectOnly,
	}
	if req.Passengers.Adults == 0 && req.Passengers.Children == 0 && req.Passengers.Infants == 0 {
		req.Passengers.Adults = 1
	}
	for i, s := range r.Segments {
		date, err := time.Parse("2006-01-02", s.Date)
		if err != nil {
			return req, &domain.ValidationError{Field: fmt.Sprintf("segments[%d].date", i), Reason: "must be YYYY-MM-DD"}
		}
		req.Segments = append(req.Segments, domain.SearchSegment{
			Origin:      strings.ToUpper(strings.TrimSpace(s.Origin)),
			Destination: strings.ToUpper(strings.TrimSpace(s.Destination)),
			Date:        date,
		})
	}
	return req, nil
}

func (h *SearchHandler) start(c *gin.Context) {
	var body startSearchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	req, err := body.toDomain()
	if err != nil {
		writeError(c, err)
		return
	}

	snap, err := h.service.Start(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, snap)
}

func (h *SearchHandler) get(c *gin.Context) {
	snap, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *SearchHandler) retrySegment(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid segment index", Field: "index"})
		return
	}
	snap, err := h.service.RetrySegment(c.Request.Context(), c.Param("id"), index)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, snap)
}
