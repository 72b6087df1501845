// Package grpcserver exposes the passkit credential service over gRPC.
package grpcserver

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/and161185/passkit/internal/convert"
	"github.com/and161185/passkit/internal/errs"
	"github.com/and161185/passkit/internal/service"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Server wires the credential service into gRPC handlers.
type Server struct {
	auth    service.AuthService
	signKey []byte
}

var _ CredentialsServer = (*Server)(nil)

// New constructs a gRPC server with injected services.
func New(auth service.AuthService, signKey []byte) *Server {
	return &Server{auth: auth, signKey: signKey}
}

// Register creates a new user account.
func (s *Server) Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	c, err := convert.FromStructCredentials(req)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad request: %v", err)
	}
	if c.Username == "" || c.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "empty username/password")
	}
	userID, err := s.auth.Register(ctx, c.Username, c.Password)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrAlreadyExists):
			return nil, status.Error(codes.AlreadyExists, "username taken")
		case errors.Is(err, errs.ErrInvalidInput):
			return nil, status.Error(codes.InvalidArgument, err.Error())
		default:
			return nil, status.Errorf(codes.Internal, "register: %v", err)
		}
	}
	return convert.ToStructUserID(userID), nil
}

func remoteIP(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return ""
}

// Login authenticates a user and returns an access token.
func (s *Server) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	c, err := convert.FromStructCredentials(req)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad request: %v", err)
	}

	tok, u, err := s.auth.LoginWithIP(ctx, c.Username, c.Password, remoteIP(ctx))
	if err != nil {
		if errors.Is(err, errs.ErrUnauthorized) {
			return nil, status.Error(codes.Unauthenticated, "bad credentials")
		}
		if errors.Is(err, errs.ErrRateLimited) {
			return nil, status.Error(codes.ResourceExhausted, "rate limited")
		}
		return nil, status.Errorf(codes.Internal, "login: %v", err)
	}
	return convert.ToStructLogin(tok, u), nil
}

// ChangePassword replaces the caller's password.
func (s *Server) ChangePassword(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := s.userID(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	pc, err := convert.FromStructPasswordChange(req)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad request: %v", err)
	}
	if pc.New == "" {
		return nil, status.Error(codes.InvalidArgument, "empty new password")
	}
	if err := s.auth.ChangePassword(ctx, userID, pc.Old, pc.New); err != nil {
		switch {
		case errors.Is(err, errs.ErrUnauthorized):
			return nil, status.Error(codes.PermissionDenied, "bad credentials")
		case errors.Is(err, errs.ErrNotFound):
			return nil, status.Error(codes.NotFound, "not found")
		case errors.Is(err, errs.ErrConflict):
			return nil, status.Error(codes.Aborted, "password changed concurrently")
		case errors.Is(err, errs.ErrInvalidInput):
			return nil, status.Error(codes.InvalidArgument, err.Error())
		default:
			return nil, status.Errorf(codes.Internal, "change password: %v", err)
		}
	}
	return &structpb.Struct{}, nil
}

// SignMessage returns the caller's HMAC-SHA256 tag for the payload.
func (s *Server) SignMessage(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := s.userID(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	m, err := convert.FromStructMessage(req, false)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad request: %v", err)
	}
	tag, err := s.auth.SignMessage(ctx, userID, m.Payload)
	if err != nil {
		return nil, messageStatus("sign", err)
	}
	return convert.ToStructTag(tag), nil
}

// VerifyMessage checks a payload and tag under the caller's key.
func (s *Server) VerifyMessage(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := s.userID(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	m, err := convert.FromStructMessage(req, true)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad request: %v", err)
	}
	ok, err := s.auth.VerifyMessage(ctx, userID, m.Payload, m.Tag)
	if err != nil {
		return nil, messageStatus("verify", err)
	}
	return convert.ToStructValid(ok), nil
}

func messageStatus(op string, err error) error {
	if errors.Is(err, errs.ErrNotFound) {
		return status.Error(codes.NotFound, "not found")
	}
	return status.Errorf(codes.Internal, "%s: %v", op, err)
}

// AuthUnary rejects calls to non-public methods without a valid bearer token
// and stores the authenticated user ID in the handler context.
func (s *Server) AuthUnary(public ...string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if slices.Contains(public, info.FullMethod) {
			return next(ctx, req)
		}
		id, err := s.userIDFromCtx(ctx)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "no auth")
		}
		return next(WithUserID(ctx, id), req)
	}
}

// userID prefers the ID placed by AuthUnary and falls back to the token.
func (s *Server) userID(ctx context.Context) (uuid.UUID, error) {
	if id, ok := UserIDFromCtx(ctx); ok {
		return id, nil
	}
	return s.userIDFromCtx(ctx)
}

// userIDFromCtx: extract "authorization: Bearer <JWT>", verify HS256, return sub as UUID.
func (s *Server) userIDFromCtx(ctx context.Context) (uuid.UUID, error) {
	tok, err := bearerTokenFromMD(ctx)
	if err != nil {
		return uuid.Nil, err
	}

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.signKey, nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, errors.New("invalid token")
	}

	v := jwt.NewValidator(jwt.WithLeeway(30 * time.Second))
	if err := v.Validate(&claims); err != nil {
		return uuid.Nil, errors.New("token expired or not valid yet")
	}

	id, err := uuid.FromString(claims.Subject)
	if err != nil {
		return uuid.Nil, errors.New("bad subject")
	}
	return id, nil
}

func bearerTokenFromMD(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("no metadata")
	}
	for _, v := range md.Get("authorization") {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			t := strings.TrimSpace(v[7:])
			if t != "" {
				return t, nil
			}
		}
	}
	return "", errors.New("no bearer token")
}
