// Package rpc exposes the prediction engine as the gRPC service
// viewcast.v1.Board.
//
// The service has a single unary method, Predict, whose request and response
// are google.protobuf.Struct values:
//
//	request:  {"duration_seconds": 600, "type": "long", "platform": "YouTube", "day": "friday"}
//	response: {"views": 30000, "raw_views": 30000.0, "revenue": "60.00", "decision": "RECORD"}
//
// Revenue travels as a fixed two-decimal string so it is never re-rounded by
// a float conversion on the client.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "viewcast.v1.Board"

	// PredictMethod is the full method path of Predict.
	PredictMethod = "/" + ServiceName + "/Predict"
)

// BoardServer is the server API for the Board service.
type BoardServer interface {
	Predict(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the Board service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BoardServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Predict",
			Handler:    predictHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "viewcast/v1/board.proto",
}

// Register adds srv to s.
func Register(s grpc.ServiceRegistrar, srv BoardServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func predictHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BoardServer).Predict(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: PredictMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BoardServer).Predict(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
