package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "passkit.v1.Credentials"

// Full method names.
const (
	MethodRegister       = "/" + ServiceName + "/Register"
	MethodLogin          = "/" + ServiceName + "/Login"
	MethodChangePassword = "/" + ServiceName + "/ChangePassword"
	MethodSignMessage    = "/" + ServiceName + "/SignMessage"
	MethodVerifyMessage  = "/" + ServiceName + "/VerifyMessage"
)

// PublicMethods do not require a bearer token.
var PublicMethods = []string{MethodRegister, MethodLogin}

// CredentialsServer is the server API of passkit.v1.Credentials. Every
// request and response is a structpb.Struct; see package convert for fields.
type CredentialsServer interface {
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ChangePassword(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SignMessage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	VerifyMessage(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(CredentialsServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call unaryCall) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(CredentialsServer), ctx, req.(*structpb.Struct))
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes passkit.v1.Credentials for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CredentialsServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Register", CredentialsServer.Register),
		unaryMethod("Login", CredentialsServer.Login),
		unaryMethod("ChangePassword", CredentialsServer.ChangePassword),
		unaryMethod("SignMessage", CredentialsServer.SignMessage),
		unaryMethod("VerifyMessage", CredentialsServer.VerifyMessage),
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterCredentialsServer registers srv on s.
func RegisterCredentialsServer(s grpc.ServiceRegistrar, srv CredentialsServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls passkit.v1.Credentials over a client connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Register creates an account from credentials built by convert.ToStructCredentials.
func (c *Client) Register(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodRegister, in, opts...)
}

// Login exchanges credentials for a session; see convert.FromStructLogin.
func (c *Client) Login(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodLogin, in, opts...)
}

// ChangePassword replaces the caller's password. Requires a bearer token.
func (c *Client) ChangePassword(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodChangePassword, in, opts...)
}

// SignMessage returns the caller's HMAC tag over a payload.
func (c *Client) SignMessage(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodSignMessage, in, opts...)
}

// VerifyMessage checks a tag against the caller's MAC key.
func (c *Client) VerifyMessage(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodVerifyMessage, in, opts...)
}
