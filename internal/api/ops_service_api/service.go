package ops_service_api

import (
	"context"

	"google.golang.org/genproto/googleapis/api/httpbody"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "flightdesk.ops.v1.OpsService"

// OpsServiceServer is the back-office surface. Requests carry the booking id
// as a StringValue; bookings travel as Struct documents.
type OpsServiceServer interface {
	GetBooking(ctx context.Context, id *wrapperspb.StringValue) (*structpb.Struct, error)
	RetryIssuance(ctx context.Context, id *wrapperspb.StringValue) (*structpb.Struct, error)
	RefundBooking(ctx context.Context, id *wrapperspb.StringValue) (*structpb.Struct, error)
	CompleteBooking(ctx context.Context, id *wrapperspb.StringValue) (*structpb.Struct, error)
	GetTicketDocument(ctx context.Context, id *wrapperspb.StringValue) (*httpbody.HttpBody, error)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unaryHandler[Resp proto.Message](name string, call func(OpsServiceServer, context.Context, *wrapperspb.StringValue) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(wrapperspb.StringValue)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(OpsServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(OpsServiceServer), ctx, req.(*wrapperspb.StringValue))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var OpsService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OpsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("GetBooking", OpsServiceServer.GetBooking),
		unaryHandler("RetryIssuance", OpsServiceServer.RetryIssuance),
		unaryHandler("RefundBooking", OpsServiceServer.RefundBooking),
		unaryHandler("CompleteBooking", OpsServiceServer.CompleteBooking),
		unaryHandler("GetTicketDocument", OpsServiceServer.GetTicketDocument),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "flightdesk/ops/v1/ops.proto",
}

func RegisterOpsServiceServer(s grpc.ServiceRegistrar, srv OpsServiceServer) {
	s.RegisterService(&OpsService_ServiceDesc, srv)
}

type OpsServiceClient interface {
	GetBooking(ctx context.Context, id *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	RetryIssuance(ctx context.Context, id *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	RefundBooking(ctx context.Context, id *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	CompleteBooking(ctx context.Context, id *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetTicketDocument(ctx context.Context, id *wrapperspb.StringValue, opts ...grpc.CallOption) (*httpbody.HttpBody, error)
}

type opsServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewOpsServiceClient(cc grpc.ClientConnInterface) OpsServiceClient {
	return &opsServiceClient{cc: cc}
}

func (c *opsServiceClient) booking(ctx context.Context, method string, id *wrapperspb.StringValue, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), id, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *opsServiceClient) GetBooking(ctx context.Context, id *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.booking(ctx, "GetBooking", id, opts)
}

func (c *opsServiceClient) RetryIssuance(ctx context.Context, id *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.booking(ctx, "RetryIssuance", id, opts)
}

func (c *opsServiceClient) RefundBooking(ctx context.Context, id *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.booking(ctx, "RefundBooking", id, opts)
}

func (c *opsServiceClient) CompleteBooking(ctx context.Context, id *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.booking(ctx, "CompleteBooking", id, opts)
}

func (c *opsServiceClient) GetTicketDocument(ctx context.Context, id *wrapperspb.StringValue, opts ...grpc.CallOption) (*httpbody.HttpBody, error) {
	out := new(httpbody.HttpBody)
	if err := c.cc.Invoke(ctx, fullMethod("GetTicketDocument"), id, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
