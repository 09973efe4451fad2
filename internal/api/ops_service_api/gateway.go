package ops_service_api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type route struct {
	method  string
	pattern string
	call    func(ctx context.Context, c OpsServiceClient, id *wrapperspb.StringValue) (proto.Message, error)
}

var routes = []route{
	{http.MethodGet, "/ops/v1/bookings/{id}", func(ctx context.Context, c OpsServiceClient, id *wrapperspb.StringValue) (proto.Message, error) {
		return c.GetBooking(ctx, id)
	}},
	{http.MethodPost, "/ops/v1/bookings/{id}/issue", func(ctx context.Context, c OpsServiceClient, id *wrapperspb.StringValue) (proto.Message, error) {
		return c.RetryIssuance(ctx, id)
	}},
	{http.MethodPost, "/ops/v1/bookings/{id}/refund", func(ctx context.Context, c OpsServiceClient, id *wrapperspb.StringValue) (proto.Message, error) {
		return c.RefundBooking(ctx, id)
	}},
	{http.MethodPost, "/ops/v1/bookings/{id}/complete", func(ctx context.Context, c OpsServiceClient, id *wrapperspb.StringValue) (proto.Message, error) {
		return c.CompleteBooking(ctx, id)
	}},
	{http.MethodGet, "/ops/v1/bookings/{id}/ticket", func(ctx context.Context, c OpsServiceClient, id *wrapperspb.StringValue) (proto.Message, error) {
		return c.GetTicketDocument(ctx, id)
	}},
}

// RegisterOpsServiceHandlerFromEndpoint dials the gRPC endpoint and exposes the
// ops service over HTTP on mux.
func RegisterOpsServiceHandlerFromEndpoint(ctx context.Context, mux *runtime.ServeMux, endpoint string, opts []grpc.DialOption) error {
	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return fmt.Errorf("dial %s: %w", endpoint, err)
	}
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	return RegisterOpsServiceHandlerClient(mux, NewOpsServiceClient(conn))
}

func RegisterOpsServiceHandlerClient(mux *runtime.ServeMux, client OpsServiceClient) error {
	for _, rt := range routes {
		rt := rt
		err := mux.HandlePath(rt.method, rt.pattern, func(w http.ResponseWriter, r *http.Request, params map[string]string) {
			ctx := runtime.NewServerMetadataContext(r.Context(), runtime.ServerMetadata{})
			_, outbound := runtime.MarshalerForRequest(mux, r)

			resp, err := rt.call(ctx, client, wrapperspb.String(params["id"]))
			if err != nil {
				runtime.HTTPError(ctx, mux, outbound, w, r, err)
				return
			}
			runtime.ForwardResponseMessage(ctx, mux, outbound, w, r, resp)
		})
		if err != nil {
			return fmt.Errorf("register %s %s: %w", rt.method, rt.pattern, err)
		}
	}
	return nil
}
