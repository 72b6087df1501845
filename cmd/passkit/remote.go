package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/and161185/passkit/internal/convert"
	grpcserver "github.com/and161185/passkit/internal/server/grpc"
	u "github.com/gofrs/uuid/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"
)

// ---- token store ----

type tokenFile struct {
	UserID      string    `json:"user_id"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir(getenv func(string) string) string {
	if v := getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "passkit")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "passkit")
}

func tokenPath(getenv func(string) string) string {
	return filepath.Join(cfgDir(getenv), "token.json")
}

func saveToken(getenv func(string) string, s convert.Session) error {
	if err := os.MkdirAll(cfgDir(getenv), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(tokenFile{
		UserID:      s.UserID.String(),
		AccessToken: s.AccessToken,
		ExpiresAt:   s.ExpiresAt,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(tokenPath(getenv), b, 0o600)
}

func loadToken(getenv func(string) string) (string, error) {
	b, err := os.ReadFile(tokenPath(getenv))
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (login required)")
	}
	return tf.AccessToken, nil
}

// ---- grpc dial ----

type bearerCreds struct {
	token     string
	plaintext bool
}

func (b bearerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}
func (b bearerCreds) RequireTransportSecurity() bool { return !b.plaintext }

func loadTLS(caPath string, insecure bool) (credentials.TransportCredentials, error) {
	if insecure {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil
	}
	if caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

// dialFunc opens a connection; a non-empty bearer is attached to every call.
type dialFunc func(ctx context.Context, bearer string) (*grpc.ClientConn, error)

func tlsDialer(addr, caPath string, insecure bool) dialFunc {
	return func(_ context.Context, bearer string) (*grpc.ClientConn, error) {
		creds, err := loadTLS(caPath, insecure)
		if err != nil {
			return nil, err
		}
		opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
		if bearer != "" {
			opts = append(opts, grpc.WithPerRPCCredentials(bearerCreds{token: bearer}))
		}
		return grpc.NewClient(addr, opts...)
	}
}

func (e *env) client(ctx context.Context, authed bool) (*grpcserver.Client, func(), error) {
	var bearer string
	if authed {
		tok, err := loadToken(e.getenv)
		if err != nil {
			return nil, nil, err
		}
		bearer = tok
	}
	cc, err := e.dial(ctx, bearer)
	if err != nil {
		return nil, nil, err
	}
	return grpcserver.NewClient(cc), func() { _ = cc.Close() }, nil
}

// rpcFail prints the status message without the gRPC prefix.
func (e *env) rpcFail(err error) int {
	if st, ok := status.FromError(err); ok {
		return e.fail(fmt.Errorf("%s: %s", st.Code(), st.Message()))
	}
	return e.fail(err)
}

// ---- commands ----

func credentialsFrom(args []string, name string, e *env) (convert.Credentials, error) {
	fs := newFlagSet(name, e)
	user := fs.String("u", "", "username")
	if err := fs.Parse(args); err != nil {
		return convert.Credentials{}, err
	}
	if *user == "" {
		return convert.Credentials{}, errors.New("need -u")
	}
	pw, err := e.password()
	if err != nil {
		return convert.Credentials{}, err
	}
	return convert.Credentials{Username: *user, Password: pw}, nil
}

func cmdRegister(ctx context.Context, args []string, e *env) int {
	c, err := credentialsFrom(args, "register", e)
	if err != nil {
		return e.fail(err)
	}
	cli, closeFn, err := e.client(ctx, false)
	if err != nil {
		return e.fail(err)
	}
	defer closeFn()

	resp, err := cli.Register(ctx, convert.ToStructCredentials(c))
	if err != nil {
		return e.rpcFail(err)
	}
	id, err := convert.FromStructUserID(resp)
	if err != nil {
		return e.fail(err)
	}
	fmt.Fprintln(e.stdout, id)
	return exitOK
}

func cmdLogin(ctx context.Context, args []string, e *env) int {
	c, err := credentialsFrom(args, "login", e)
	if err != nil {
		return e.fail(err)
	}
	cli, closeFn, err := e.client(ctx, false)
	if err != nil {
		return e.fail(err)
	}
	defer closeFn()

	resp, err := cli.Login(ctx, convert.ToStructCredentials(c))
	if err != nil {
		return e.rpcFail(err)
	}
	s, err := convert.FromStructLogin(resp)
	if err != nil {
		return e.fail(err)
	}
	if s.UserID == u.Nil {
		return e.fail(errors.New("server returned no user id"))
	}
	if err := saveToken(e.getenv, s); err != nil {
		return e.fail(err)
	}
	fmt.Fprintf(e.stdout, "logged in as %s until %s\n", s.UserID, s.ExpiresAt.Format(time.RFC3339))
	return exitOK
}

func cmdPasswd(ctx context.Context, _ []string, e *env) int {
	oldPw, err := e.secret(EnvPassword, "Current password: ")
	if err != nil {
		return e.fail(err)
	}
	newPw, err := e.secret(EnvNewPassword, "New password: ")
	if err != nil {
		return e.fail(err)
	}
	cli, closeFn, err := e.client(ctx, true)
	if err != nil {
		return e.fail(err)
	}
	defer closeFn()

	if _, err := cli.ChangePassword(ctx, convert.ToStructPasswordChange(convert.PasswordChange{Old: oldPw, New: newPw})); err != nil {
		return e.rpcFail(err)
	}
	fmt.Fprintln(e.stdout, "password changed")
	return exitOK
}

func cmdSign(ctx context.Context, args []string, e *env) int {
	arg, err := oneArg(newFlagSet("sign", e), args)
	if err != nil {
		return e.fail(err)
	}
	msg, err := e.input(arg)
	if err != nil {
		return e.fail(err)
	}
	cli, closeFn, err := e.client(ctx, true)
	if err != nil {
		return e.fail(err)
	}
	defer closeFn()

	resp, err := cli.SignMessage(ctx, convert.ToStructMessage(convert.Message{Payload: msg}))
	if err != nil {
		return e.rpcFail(err)
	}
	tag, err := convert.FromStructTag(resp)
	if err != nil {
		return e.fail(err)
	}
	fmt.Fprintln(e.stdout, base64.StdEncoding.EncodeToString(tag))
	return exitOK
}

func cmdCheck(ctx context.Context, args []string, e *env) int {
	fs := newFlagSet("check", e)
	tagB64 := fs.String("tag", "", "base64 tag")
	arg, err := oneArg(fs, args)
	if err != nil {
		return e.fail(err)
	}
	tag, err := decodeFlag("tag", *tagB64)
	if err != nil {
		return e.fail(err)
	}
	msg, err := e.input(arg)
	if err != nil {
		return e.fail(err)
	}
	cli, closeFn, err := e.client(ctx, true)
	if err != nil {
		return e.fail(err)
	}
	defer closeFn()

	resp, err := cli.VerifyMessage(ctx, convert.ToStructMessage(convert.Message{Payload: msg, Tag: tag}))
	if err != nil {
		return e.rpcFail(err)
	}
	ok, err := convert.FromStructValid(resp)
	if err != nil {
		return e.fail(err)
	}
	if !ok {
		fmt.Fprintln(e.stdout, "invalid")
		return exitMismatch
	}
	fmt.Fprintln(e.stdout, "valid")
	return exitOK
}
