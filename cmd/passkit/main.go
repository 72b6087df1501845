// Command passkit hashes and verifies passwords, computes message
// authentication codes, and talks to a passkit server.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

// Exit codes.
const (
	exitOK       = 0
	exitMismatch = 1
	exitError    = 2
)

// Environment variables read instead of prompting.
const (
	EnvPassword    = "PASSKIT_PASSWORD"
	EnvNewPassword = "PASSKIT_NEW_PASSWORD"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// env is the process surface a command runs against.
type env struct {
	stdin  *bufio.Reader
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string
	tty    *os.File // nil when passwords cannot be prompted for
	dial   dialFunc
}

func osEnv() *env {
	e := &env{
		stdin:  bufio.NewReader(os.Stdin),
		stdout: os.Stdout,
		stderr: os.Stderr,
		getenv: os.Getenv,
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		e.tty = os.Stdin
	}
	return e
}

// secret returns the value of envVar, prompts on the terminal, or reads one
// line from stdin, in that order.
func (e *env) secret(envVar, prompt string) (string, error) {
	if v := e.getenv(envVar); v != "" {
		return v, nil
	}
	if e.tty != nil {
		fmt.Fprint(e.stderr, prompt)
		b, err := term.ReadPassword(int(e.tty.Fd()))
		fmt.Fprintln(e.stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := e.stdin.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (e *env) password() (string, error) {
	return e.secret(EnvPassword, "Password: ")
}

// input returns the argument, or stdin when it is "-".
func (e *env) input(arg string) ([]byte, error) {
	if arg == "-" {
		return io.ReadAll(e.stdin)
	}
	return []byte(arg), nil
}

func (e *env) printJSON(v any) {
	enc := json.NewEncoder(e.stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// fail reports err and returns the error exit code.
func (e *env) fail(err error) int {
	fmt.Fprintln(e.stderr, "error:", err)
	return exitError
}

func (e *env) usage() int {
	fmt.Fprint(e.stderr, `passkit CLI
Usage:
  passkit [-addr HOST:PORT] [-cacert file | -insecure] <cmd> [args]

Offline commands (password from `+EnvPassword+` or prompt):
  version
  hash          [-m 128MiB] [-t 4] [-p 2] [-len 64] [-salt-len 16]
  verify        [-max-memory 1GiB] [-max-time 64] <encoded>   exit 0 match, 1 mismatch, 2 error
  inspect       <encoded>
  needs-rehash  [hash flags] <encoded>                         exit 0 current, 1 stale
  salt          [-n 16]
  mackey        [-n 32]
  mac           [-key <b64>] <input|->
  mac-verify    -key <b64> -tag <b64> <input|->               exit 0 valid, 1 invalid

Server commands:
  register      -u <username>
  login         -u <username>                                 (saves token)
  passwd                                                      (`+EnvNewPassword+` or prompt)
  sign          <input|->
  check         -tag <b64> <input|->                          exit 0 valid, 1 invalid
`)
	return exitError
}

// run dispatches subcommands and returns the process exit code.
func run(args []string, e *env) int {
	fs := flag.NewFlagSet("passkit", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	addr := fs.String("addr", "localhost:8443", "server addr")
	caPath := fs.String("cacert", "", "CA cert (PEM)")
	insecure := fs.Bool("insecure", false, "skip cert verify (dev)")
	timeout := fs.Duration("timeout", 30*time.Second, "request timeout")
	fs.Usage = func() { e.usage() }
	if err := fs.Parse(args); err != nil {
		return exitError
	}
	if fs.NArg() < 1 {
		return e.usage()
	}
	if e.dial == nil {
		e.dial = tlsDialer(*addr, *caPath, *insecure)
	}
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch cmd {
	case "version":
		fmt.Fprintf(e.stdout, "passkit %s (%s)\n", version, buildDate)
		return exitOK
	case "hash":
		return cmdHash(rest, e)
	case "verify":
		return cmdVerify(rest, e)
	case "inspect":
		return cmdInspect(rest, e)
	case "needs-rehash":
		return cmdNeedsRehash(rest, e)
	case "salt":
		return cmdRandom("salt", 16, rest, e)
	case "mackey":
		return cmdRandom("mackey", 32, rest, e)
	case "mac":
		return cmdMAC(rest, e)
	case "mac-verify":
		return cmdMACVerify(rest, e)
	case "register":
		return cmdRegister(ctx, rest, e)
	case "login":
		return cmdLogin(ctx, rest, e)
	case "passwd":
		return cmdPasswd(ctx, rest, e)
	case "sign":
		return cmdSign(ctx, rest, e)
	case "check":
		return cmdCheck(ctx, rest, e)
	default:
		fmt.Fprintf(e.stderr, "unknown command %q\n", cmd)
		return e.usage()
	}
}

func main() {
	os.Exit(run(os.Args[1:], osEnv()))
}
