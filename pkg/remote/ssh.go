package remote

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/Clawue884/sidra-monitoring/pkg/errors"
)

// Credentials configures SSH authentication for the fleet.
type Credentials struct {
	User     string `json:"user" yaml:"user"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	KeyPath  string `json:"key_path,omitempty" yaml:"key_path,omitempty"`
	Port     int    `json:"port,omitempty" yaml:"port,omitempty"`
}

// SSHRunner executes commands over SSH using golang.org/x/crypto/ssh.
// A new connection is dialed per Run call; probes batch their commands
// so connection reuse has not been worth the session cache.
type SSHRunner struct {
	Creds          Credentials
	ConnectTimeout time.Duration
}

// NewSSHRunner creates a runner with the given credentials.
func NewSSHRunner(creds Credentials, connectTimeout time.Duration) *SSHRunner {
	if creds.Port == 0 {
		creds.Port = 22
	}
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	return &SSHRunner{Creds: creds, ConnectTimeout: connectTimeout}
}

// Run implements Runner. The context deadline bounds both the dial and
// the command; on expiry the session is torn down and a TIMEOUT error
// is returned.
func (r *SSHRunner) Run(ctx context.Context, addr, cmd string) (Result, error) {
	cfg, err := r.clientConfig()
	if err != nil {
		return Result{}, err
	}

	hostPort := net.JoinHostPort(addr, fmt.Sprintf("%d", r.Creds.Port))

	client, err := dialContext(ctx, hostPort, cfg)
	if err != nil {
		return Result{}, classifyDialError(addr, err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return Result{}, errors.Wrap(errors.ErrCodeUnreachable, "failed to open ssh session", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	select {
	case <-ctx.Done():
		// Closing the session unblocks the Run goroutine.
		session.Close()
		client.Close()
		return Result{}, errors.Wrap(errors.ErrCodeTimeout, "remote command deadline exceeded", ctx.Err())
	case err := <-done:
		res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
		if err != nil {
			var exitErr *ssh.ExitError
			if stderrors.As(err, &exitErr) {
				res.ExitCode = exitErr.ExitStatus()
				return res, nil
			}
			return res, errors.Wrap(errors.ErrCodeUnreachable, "remote command transport failure", err)
		}
		return res, nil
	}
}

func (r *SSHRunner) clientConfig() (*ssh.ClientConfig, error) {
	cfg := &ssh.ClientConfig{
		User:            r.Creds.User,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         r.ConnectTimeout,
	}

	var methods []ssh.AuthMethod
	if r.Creds.KeyPath != "" {
		key, err := os.ReadFile(r.Creds.KeyPath)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfig, "failed to read ssh key", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfig, "failed to parse ssh key", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if r.Creds.Password != "" {
		methods = append(methods, ssh.Password(r.Creds.Password))
	}
	if len(methods) == 0 {
		return nil, errors.New(errors.ErrCodeConfig, "no ssh authentication method configured")
	}
	cfg.Auth = methods

	return cfg, nil
}

// dialContext dials SSH respecting the context deadline. ssh.Dial only
// honors its own Timeout, so the TCP connection is established with a
// net.Dialer first and then upgraded.
func dialContext(ctx context.Context, hostPort string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	d := net.Dialer{Timeout: cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", hostPort)
	if err != nil {
		return nil, err
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, hostPort, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}

func classifyDialError(addr string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "unable to authenticate"),
		strings.Contains(msg, "permission denied"),
		strings.Contains(msg, "no supported methods remain"):
		slog.Debug("ssh authentication rejected", "host", addr)
		return errors.Wrap(errors.ErrCodeAuthFailed, "ssh authentication failed", err)
	case strings.Contains(msg, "i/o timeout"),
		strings.Contains(msg, "deadline exceeded"):
		return errors.Wrap(errors.ErrCodeTimeout, "ssh connect timed out", err)
	default:
		return errors.Wrap(errors.ErrCodeUnreachable, "ssh connect failed", err)
	}
}
