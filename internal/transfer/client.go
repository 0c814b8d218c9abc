package transfer

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"slices"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/JonMunkholm/sasbridge/internal/apperr"
	"github.com/JonMunkholm/sasbridge/internal/config"
)

// Defaults applied by NewClient for zero Options fields.
const (
	DefaultDialTimeout      = 10 * time.Second
	DefaultOperationTimeout = 60 * time.Second
	DefaultMaxReadSize      = 1 << 30
)

// Options configures a Client.
type Options struct {
	// DialTimeout bounds TCP connect plus SSH handshake.
	DialTimeout time.Duration
	// OperationTimeout bounds a whole call. On expiry the connection is
	// closed and the call fails with apperr.Network.
	OperationTimeout time.Duration
	// HostKeyCallback verifies the server. Nil accepts any host key.
	HostKeyCallback ssh.HostKeyCallback
	// MaxReadSize caps ReadFile.
	MaxReadSize int64
}

// Client performs one-shot SFTP operations.
type Client struct {
	opts Options
	dial dialFunc
}

// NewClient returns a client using opts, filling defaults.
func NewClient(opts Options) *Client {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = DefaultOperationTimeout
	}
	if opts.MaxReadSize <= 0 {
		opts.MaxReadSize = DefaultMaxReadSize
	}
	if opts.HostKeyCallback == nil {
		opts.HostKeyCallback = ssh.InsecureIgnoreHostKey()
	}

	c := &Client{opts: opts}
	c.dial = sshDialer{timeout: opts.DialTimeout, hostKeyCallback: opts.HostKeyCallback}.dial
	return c
}

// NewClientFromConfig builds a client from cfg. Host keys are checked
// against cfg.KnownHostsFile when set; otherwise any key is accepted and a
// warning is logged.
func NewClientFromConfig(cfg config.SFTPConfig) (*Client, error) {
	opts := Options{
		DialTimeout:      cfg.DialTimeout,
		OperationTimeout: cfg.OperationTimeout,
		MaxReadSize:      int64(cfg.MaxDownloadSize.Bytes()),
	}
	if cfg.KnownHostsFile != "" {
		cb, err := knownhosts.New(cfg.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("load known hosts %s: %w", cfg.KnownHostsFile, err)
		}
		opts.HostKeyCallback = cb
	} else {
		slog.Warn("SFTP host key verification disabled; set SFTP_KNOWN_HOSTS to enable it")
	}
	return NewClient(opts), nil
}

// run opens a session, hands it to fn and closes it. When the operation
// deadline passes the session is closed from under fn so blocked I/O
// returns.
func (c *Client) run(ctx context.Context, op string, creds Credentials, fn func(session) error) error {
	if err := creds.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.OperationTimeout)
	defer cancel()

	sess, err := c.dial(ctx, creds)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = sess.Close() })
	defer func() {
		stop()
		if cerr := sess.Close(); cerr != nil {
			slog.Debug("closing sftp session", "op", op, "error", cerr)
		}
	}()

	err = fn(sess)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return apperr.Wrap(apperr.Network, op, "operation aborted", ctxErr)
	}
	return classify(op, err)
}

// TestConnection verifies that creds can open a session and list the home
// directory.
func (c *Client) TestConnection(ctx context.Context, creds Credentials) error {
	return c.run(ctx, "transfer.test_connection", creds, func(s session) error {
		_, err := s.ReadDir(".")
		return err
	})
}

// List returns the entries of dir, directories first, each group sorted by
// name. An empty dir lists the login directory.
func (c *Client) List(ctx context.Context, creds Credentials, dir string) ([]Entry, error) {
	const op = "transfer.list"
	if dir == "" {
		dir = "."
	}

	var entries []Entry
	err := c.run(ctx, op, creds, func(s session) error {
		fi, err := s.Stat(dir)
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			return apperr.Errorf(apperr.Invalid, op, "%s is not a directory", dir)
		}

		infos, err := s.ReadDir(dir)
		if err != nil {
			return err
		}
		entries = make([]Entry, 0, len(infos))
		for _, fi := range infos {
			entries = append(entries, Entry{
				Name:     fi.Name(),
				Path:     path.Join(dir, fi.Name()),
				IsDir:    fi.Mode()&os.ModeDir != 0,
				Size:     fi.Size(),
				Modified: fi.ModTime().UTC(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		if a.IsDir != b.IsDir {
			if a.IsDir {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return entries, nil
}

// ReadFile returns the whole content of the regular file at p.
func (c *Client) ReadFile(ctx context.Context, creds Credentials, p string) ([]byte, error) {
	const op = "transfer.read_file"
	if p == "" {
		return nil, apperr.New(apperr.Invalid, op, "path is required")
	}

	var data []byte
	err := c.run(ctx, op, creds, func(s session) error {
		fi, err := s.Stat(p)
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return apperr.Errorf(apperr.Invalid, op, "%s is a directory", p)
		}
		if fi.Size() > c.opts.MaxReadSize {
			return apperr.Errorf(apperr.Invalid, op, "file too large: %d bytes, limit %d", fi.Size(), c.opts.MaxReadSize)
		}

		f, err := s.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()

		data, err = io.ReadAll(io.LimitReader(f, c.opts.MaxReadSize+1))
		if err != nil {
			return err
		}
		if int64(len(data)) > c.opts.MaxReadSize {
			return apperr.Errorf(apperr.Invalid, op, "file too large: limit %d bytes", c.opts.MaxReadSize)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
