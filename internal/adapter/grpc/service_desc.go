package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "cryptotrade.v1.TradingService"

// TradingServiceServer is the server API for TradingService.
// Messages are google.protobuf.Struct so clients need no generated stubs.
type TradingServiceServer interface {
	Buy(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Sell(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetPrices(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetPortfolio(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// TradingServiceDesc is the grpc.ServiceDesc for TradingService
var TradingServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*TradingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Buy", Handler: unaryHandler("Buy", TradingServiceServer.Buy)},
		{MethodName: "Sell", Handler: unaryHandler("Sell", TradingServiceServer.Sell)},
		{MethodName: "GetPrices", Handler: unaryHandler("GetPrices", TradingServiceServer.GetPrices)},
		{MethodName: "GetPortfolio", Handler: unaryHandler("GetPortfolio", TradingServiceServer.GetPortfolio)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cryptotrade/v1/trading.proto",
}

// FullMethod returns the gRPC method path of a TradingService method
func FullMethod(method string) string {
	return "/" + serviceName + "/" + method
}

// RegisterTradingServiceServer registers srv on s
func RegisterTradingServiceServer(s grpc.ServiceRegistrar, srv TradingServiceServer) {
	s.RegisterService(&TradingServiceDesc, srv)
}

type unaryMethod func(TradingServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryMethod) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(TradingServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: FullMethod(method),
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(TradingServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
