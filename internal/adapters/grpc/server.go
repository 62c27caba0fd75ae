package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/clearpay/portal/internal/application"
)

// TokenIntrospectionService is the internal surface sibling services call to
// validate portal access tokens and fetch the verification key.
type TokenIntrospectionService interface {
	ValidateToken(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetPublicKey(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// KeyProvider exposes the active verification key material.
type KeyProvider interface {
	KeyID() string
	PublicKeyPEM() (string, error)
}

type TokenIntrospectionServer struct {
	service *application.Service
	keys    KeyProvider
}

func NewTokenIntrospectionServer(service *application.Service, keys KeyProvider) *TokenIntrospectionServer {
	return &TokenIntrospectionServer{service: service, keys: keys}
}

// Register attaches the introspection service with an explicit descriptor;
// messages ride on structpb so no generated stubs are required.
func Register(server grpc.ServiceRegistrar, svc TokenIntrospectionService) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: "clearpay.portal.v1.TokenIntrospectionService",
		HandlerType: (*TokenIntrospectionService)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "ValidateToken",
				Handler:    validateTokenHandler(svc),
			},
			{
				MethodName: "GetPublicKey",
				Handler:    getPublicKeyHandler(svc),
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "clearpay/portal/v1/token_introspection.proto",
	}, svc)
}

func (s *TokenIntrospectionServer) ValidateToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tokenVal := req.GetFields()["token"]
	if tokenVal == nil {
		return nil, status.Error(codes.InvalidArgument, "missing token")
	}
	token := tokenVal.GetStringValue()
	if token == "" {
		return nil, status.Error(codes.InvalidArgument, "missing token")
	}

	claims, err := s.service.ValidateAccess(ctx, token, "")
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	resp, err := structpb.NewStruct(map[string]any{
		"valid":        true,
		"principal_id": claims.PrincipalID.String(),
		"kind":         string(claims.Kind),
		"expires_at":   claims.ExpiresAt.Unix(),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func (s *TokenIntrospectionServer) GetPublicKey(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	pemKey, err := s.keys.PublicKeyPEM()
	if err != nil {
		return nil, status.Errorf(codes.Internal, "get key: %v", err)
	}
	resp, err := structpb.NewStruct(map[string]any{
		"kid":        s.keys.KeyID(),
		"public_key": pemKey,
		"algorithm":  "RS256",
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func validateTokenHandler(svc TokenIntrospectionService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.ValidateToken(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/clearpay.portal.v1.TokenIntrospectionService/ValidateToken",
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.ValidateToken(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}

func getPublicKeyHandler(svc TokenIntrospectionService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &emptypb.Empty{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.GetPublicKey(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/clearpay.portal.v1.TokenIntrospectionService/GetPublicKey",
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*emptypb.Empty)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.GetPublicKey(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}
