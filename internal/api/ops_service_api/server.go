package ops_service_api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/Domenick1991/flightdesk/internal/domain"
	"github.com/Domenick1991/flightdesk/internal/service/booking"
	"go.uber.org/zap"
	"google.golang.org/genproto/googleapis/api/httpbody"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Server implements OpsServiceServer on top of the booking service.
type Server struct {
	bookings booking.BookingUseCase
	log      *zap.Logger
}

var _ OpsServiceServer = (*Server)(nil)

func NewServer(bookings booking.BookingUseCase, log *zap.Logger) *Server {
	return &Server{bookings: bookings, log: log.With(zap.String("service", "ops_api"))}
}

func (s *Server) GetBooking(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	id, err := bookingID(req)
	if err != nil {
		return nil, err
	}
	return s.respond(s.bookings.GetBooking(ctx, id))
}

func (s *Server) RetryIssuance(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	id, err := bookingID(req)
	if err != nil {
		return nil, err
	}
	s.log.Info("manual issuance retry", zap.String("booking_id", id))
	return s.respond(s.bookings.RetryIssuance(ctx, id, booking.TriggerAdmin))
}

func (s *Server) RefundBooking(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	id, err := bookingID(req)
	if err != nil {
		return nil, err
	}
	s.log.Info("refund requested", zap.String("booking_id", id))
	return s.respond(s.bookings.RefundBooking(ctx, id))
}

func (s *Server) CompleteBooking(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	id, err := bookingID(req)
	if err != nil {
		return nil, err
	}
	return s.respond(s.bookings.CompleteBooking(ctx, id))
}

// GetTicketDocument returns the supplier's ticket record as a JSON document.
func (s *Server) GetTicketDocument(ctx context.Context, req *wrapperspb.StringValue) (*httpbody.HttpBody, error) {
	id, err := bookingID(req)
	if err != nil {
		return nil, err
	}
	info, err := s.bookings.TicketDetails(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	data, err := json.Marshal(info)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &httpbody.HttpBody{ContentType: "application/json", Data: data}, nil
}

func (s *Server) respond(b *domain.Booking, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, toStatus(err)
	}
	doc, err := toStruct(b)
	if err != nil {
		s.log.Error("encode booking", zap.String("booking_id", b.ID), zap.Error(err))
		return nil, status.Error(codes.Internal, "encode booking")
	}
	return doc, nil
}

func bookingID(req *wrapperspb.StringValue) (string, error) {
	id := strings.TrimSpace(req.GetValue())
	if id == "" {
		return "", status.Error(codes.InvalidArgument, "booking id is required")
	}
	return id, nil
}

func toStruct(b *domain.Booking) (*structpb.Struct, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// toStatus maps the domain error taxonomy to gRPC codes.
func toStatus(err error) error {
	var (
		ve *domain.ValidationError
		re *domain.RejectedError
	)
	switch {
	case errors.As(err, &ve):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition), errors.As(err, &re):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrIntegrationDisabled), domain.IsTransport(err):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
