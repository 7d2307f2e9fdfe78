package grpc

import (
	"context"

	"github.com/dmitrijs2005/foliokeeper/internal/server/identity"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	IdentityServiceName = "foliokeeper.identity.v1.Identity"
	WhoAmIFullMethod    = "/" + IdentityServiceName + "/WhoAmI"
)

// IdentityServer is implemented by *GRPCServer.
type IdentityServer interface {
	WhoAmI(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
}

// IdentityServiceDesc describes the identity service using well-known
// protobuf types, so no generated code is needed.
var IdentityServiceDesc = grpc.ServiceDesc{
	ServiceName: IdentityServiceName,
	HandlerType: (*IdentityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "WhoAmI", Handler: whoAmIHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "foliokeeper/identity/v1/identity.proto",
}

func whoAmIHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IdentityServer).WhoAmI(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: WhoAmIFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IdentityServer).WhoAmI(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// WhoAmI returns the caller resolved by the identity interceptor.
func (s *GRPCServer) WhoAmI(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	id := identity.FromContext(ctx)
	if id == nil {
		return nil, status.Error(codes.Unauthenticated, "Authentication required")
	}

	groups := make([]any, 0, len(id.Groups))
	for _, g := range id.Groups {
		groups = append(groups, g)
	}

	res, err := structpb.NewStruct(map[string]any{
		"sub":      id.Subject,
		"email":    id.Email,
		"username": id.Username,
		"groups":   groups,
		"mode":     s.resolver.Mode(),
	})
	if err != nil {
		s.logger.Error(ctx, "error building whoami response", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	return res, nil
}

// WhoAmI calls the identity service over cc.
func WhoAmI(ctx context.Context, cc grpc.ClientConnInterface, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, WhoAmIFullMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
