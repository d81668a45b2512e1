package embed

// #region imports
import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// #endregion

// #region service

type embedService interface {
	embed(ctx context.Context, text string) (*structpb.ListValue, error)
}

type service struct {
	e Embedder
}

func (s *service) embed(ctx context.Context, text string) (*structpb.ListValue, error) {
	vec, err := s.e.Embed(ctx, text)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "embed: %v", err)
	}
	values := make([]*structpb.Value, len(vec))
	for i, x := range vec {
		values[i] = structpb.NewNumberValue(float64(x))
	}
	return &structpb.ListValue{Values: values}, nil
}

func embedHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	svc := srv.(embedService)
	if interceptor == nil {
		return svc.embed(ctx, in.GetValue())
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: embedMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return svc.embed(ctx, req.(*wrapperspb.StringValue).GetValue())
	})
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*embedService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Embed", Handler: embedHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "assistant/embed/v1/embed.proto",
}

// RegisterServer exposes e on s under the sidecar contract Client speaks.
func RegisterServer(s *grpc.Server, e Embedder) {
	s.RegisterService(&serviceDesc, &service{e: e})
}

// #endregion
