package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// session is one connected SFTP subsystem.
type session interface {
	ReadDir(p string) ([]fs.FileInfo, error)
	Stat(p string) (fs.FileInfo, error)
	Open(p string) (io.ReadCloser, error)
	// Close releases the SFTP client and the SSH connection. It is safe to
	// call more than once and from another goroutine.
	Close() error
}

// dialFunc opens a session for creds.
type dialFunc func(ctx context.Context, creds Credentials) (session, error)

type sshSession struct {
	ssh  *ssh.Client
	sftp *sftp.Client

	once sync.Once
	err  error
}

func (s *sshSession) ReadDir(p string) ([]fs.FileInfo, error) { return s.sftp.ReadDir(p) }

func (s *sshSession) Stat(p string) (fs.FileInfo, error) { return s.sftp.Stat(p) }

func (s *sshSession) Open(p string) (io.ReadCloser, error) { return s.sftp.Open(p) }

func (s *sshSession) Close() error {
	s.once.Do(func() {
		sftpErr := s.sftp.Close()
		sshErr := s.ssh.Close()
		if sshErr != nil && !errors.Is(sshErr, net.ErrClosed) {
			s.err = sshErr
		} else if sftpErr != nil && !errors.Is(sftpErr, net.ErrClosed) && !errors.Is(sftpErr, io.EOF) {
			s.err = sftpErr
		}
	})
	return s.err
}

// sshDialer connects with password authentication. The TCP connect and the
// SSH handshake together are bounded by timeout.
type sshDialer struct {
	timeout         time.Duration
	hostKeyCallback ssh.HostKeyCallback
}

func (d sshDialer) dial(ctx context.Context, creds Credentials) (session, error) {
	const op = "transfer.dial"

	dctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	addr := creds.Addr()
	var nd net.Dialer
	conn, err := nd.DialContext(dctx, "tcp", addr)
	if err != nil {
		return nil, classify(op, fmt.Errorf("connect %s: %w", addr, err))
	}

	if deadline, ok := dctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	password := creds.Password
	cfg := &ssh.ClientConfig{
		User: creds.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: d.hostKeyCallback,
		Timeout:         d.timeout,
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		if dctx.Err() != nil {
			return nil, classify(op, fmt.Errorf("ssh handshake with %s: %w", addr, dctx.Err()))
		}
		return nil, classify(op, fmt.Errorf("ssh handshake with %s: %w", addr, err))
	}
	_ = conn.SetDeadline(time.Time{})

	client := ssh.NewClient(sshConn, chans, reqs)
	sc, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return nil, classify(op, fmt.Errorf("start sftp subsystem: %w", err))
	}
	return &sshSession{ssh: client, sftp: sc}, nil
}
