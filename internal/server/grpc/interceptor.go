package grpc

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/foliokeeper/internal/common"
	"github.com/dmitrijs2005/foliokeeper/internal/server/identity"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var healthMethodPrefix = "/" + healthpb.Health_ServiceDesc.ServiceName + "/"

// identityInterceptor authenticates every call except health checks and
// stores the identity in the handler context.
func (s *GRPCServer) identityInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if strings.HasPrefix(info.FullMethod, healthMethodPrefix) {
		return handler(ctx, req)
	}

	id, err := s.resolver.Required(ctx, authorizationFromMetadata(ctx))
	if err != nil {
		st := toStatus(err)
		if status.Code(st) == codes.Internal {
			s.logger.Error(ctx, "authentication failed", "method", info.FullMethod, "error", err)
		}
		return nil, st
	}

	return handler(identity.WithIdentity(ctx, id), req)
}

// authorizationFromMetadata reads "authorization", falling back to a bare
// token in "access_token".
func authorizationFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(common.AuthorizationHeaderName); len(v) > 0 && v[0] != "" {
		return v[0]
	}
	if v := md.Get(common.AccessTokenHeaderName); len(v) > 0 && v[0] != "" {
		return "Bearer " + v[0]
	}
	return ""
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, common.ErrConfiguration):
		return status.Error(codes.Internal, "internal error")
	case errors.Is(err, common.ErrTokenExpired):
		return status.Error(codes.Unauthenticated, "Token has expired")
	case errors.Is(err, common.ErrInvalidToken):
		return status.Error(codes.Unauthenticated, "Invalid token")
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, common.Detail(err))
	case errors.Is(err, common.ErrorForbidden):
		return status.Error(codes.PermissionDenied, common.Detail(err))
	}
	return status.Error(codes.Internal, "internal error")
}
