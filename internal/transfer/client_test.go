package transfer

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/JonMunkholm/sasbridge/internal/apperr"
	"github.com/JonMunkholm/sasbridge/internal/config"
)

func testClient() *Client {
	return NewClient(Options{DialTimeout: 2 * time.Second, OperationTimeout: 5 * time.Second})
}

// sasTree creates root/{b.sas7bdat, a.txt, zdir/, adir/nested.sas7bdat}.
func sasTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.sas7bdat"), []byte("dataset-bytes"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "zdir"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "adir"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "adir", "nested.sas7bdat"), nil, 0o644))
	return filepath.ToSlash(root)
}

func waitClosed(t *testing.T, srv *sftpServer) {
	t.Helper()
	assert.Eventually(t, func() bool { return srv.open.Load() == 0 }, 2*time.Second, 10*time.Millisecond,
		"server still has %d open connections", srv.open.Load())
}

func TestList(t *testing.T) {
	srv := startSFTPServer(t)
	root := sasTree(t)

	entries, err := testClient().List(context.Background(), srv.creds(t), root)
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"adir", "zdir", "a.txt", "b.sas7bdat"}, names)

	assert.True(t, entries[0].IsDir)
	assert.Equal(t, root+"/adir", entries[0].Path)
	assert.False(t, entries[3].IsDir)
	assert.Equal(t, int64(len("dataset-bytes")), entries[3].Size)
	assert.Equal(t, root+"/b.sas7bdat", entries[3].Path)
	assert.WithinDuration(t, time.Now(), entries[3].Modified, time.Hour)
	assert.Equal(t, time.UTC, entries[3].Modified.Location())

	waitClosed(t, srv)
}

func TestList_NotFound(t *testing.T) {
	srv := startSFTPServer(t)
	root := sasTree(t)

	_, err := testClient().List(context.Background(), srv.creds(t), root+"/missing")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.NotFound), "got %v", err)
	waitClosed(t, srv)
}

func TestList_FileIsInvalid(t *testing.T) {
	srv := startSFTPServer(t)
	root := sasTree(t)

	_, err := testClient().List(context.Background(), srv.creds(t), root+"/a.txt")
	assert.True(t, apperr.Is(err, apperr.Invalid), "got %v", err)
}

func TestReadFile(t *testing.T) {
	srv := startSFTPServer(t)
	root := sasTree(t)

	data, err := testClient().ReadFile(context.Background(), srv.creds(t), root+"/b.sas7bdat")
	require.NoError(t, err)
	assert.Equal(t, []byte("dataset-bytes"), data)
	waitClosed(t, srv)
}

func TestReadFile_MissingLeavesNoSession(t *testing.T) {
	srv := startSFTPServer(t)
	root := sasTree(t)

	_, err := testClient().ReadFile(context.Background(), srv.creds(t), root+"/nope.sas7bdat")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.NotFound), "got %v", err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	assert.Equal(t, int32(1), srv.sessions.Load())
	waitClosed(t, srv)
}

func TestReadFile_TooLarge(t *testing.T) {
	srv := startSFTPServer(t)
	root := sasTree(t)

	c := NewClient(Options{MaxReadSize: 4})
	_, err := c.ReadFile(context.Background(), srv.creds(t), root+"/b.sas7bdat")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Invalid))
	assert.Contains(t, err.Error(), "file too large")
}

func TestTestConnection(t *testing.T) {
	srv := startSFTPServer(t)

	require.NoError(t, testClient().TestConnection(context.Background(), srv.creds(t)))
	waitClosed(t, srv)
}

func TestWrongPasswordIsAuthError(t *testing.T) {
	srv := startSFTPServer(t)
	creds := srv.creds(t)
	creds.Password = "wrong"

	err := testClient().TestConnection(context.Background(), creds)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Auth), "got %v", err)
	waitClosed(t, srv)
}

func TestClosedPortIsNetworkError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	start := time.Now()
	err = testClient().TestConnection(context.Background(), Credentials{
		Host: "127.0.0.1", Port: port, Username: testUser, Password: testPassword,
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Network), "got %v", err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSilentServerTimesOut(t *testing.T) {
	// Accepts TCP but never speaks SSH.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	var conns []net.Conn
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			conns = append(conns, c)
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		<-done
		for _, c := range conns {
			c.Close()
		}
	})

	c := NewClient(Options{DialTimeout: 200 * time.Millisecond})
	start := time.Now()
	err = c.TestConnection(context.Background(), Credentials{
		Host: "127.0.0.1", Port: ln.Addr().(*net.TCPAddr).Port, Username: "u", Password: "p",
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Network), "got %v", err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

// hangingSession blocks every call until it is closed.
type hangingSession struct {
	closed chan struct{}
	closes atomic.Int32
}

func newHangingSession() *hangingSession { return &hangingSession{closed: make(chan struct{})} }

func (h *hangingSession) ReadDir(string) ([]fs.FileInfo, error) {
	<-h.closed
	return nil, io.ErrUnexpectedEOF
}

func (h *hangingSession) Stat(string) (fs.FileInfo, error) {
	<-h.closed
	return nil, io.ErrUnexpectedEOF
}

func (h *hangingSession) Open(string) (io.ReadCloser, error) {
	<-h.closed
	return nil, io.ErrUnexpectedEOF
}

func (h *hangingSession) Close() error {
	if h.closes.Add(1) == 1 {
		close(h.closed)
	}
	return nil
}

func TestOperationTimeoutClosesSession(t *testing.T) {
	sess := newHangingSession()
	c := NewClient(Options{OperationTimeout: 50 * time.Millisecond})
	c.dial = func(context.Context, Credentials) (session, error) { return sess, nil }

	start := time.Now()
	_, err := c.List(context.Background(), Credentials{Host: "h", Username: "u"}, "/sasdata")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Network), "got %v", err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.GreaterOrEqual(t, sess.closes.Load(), int32(1))
}

func TestInvalidCredentials(t *testing.T) {
	c := testClient()
	c.dial = func(context.Context, Credentials) (session, error) {
		t.Fatal("dial must not be reached")
		return nil, nil
	}

	for _, creds := range []Credentials{
		{Username: "u"},
		{Host: "h"},
		{Host: "h", Username: "u", Port: 70000},
	} {
		err := c.TestConnection(context.Background(), creds)
		assert.True(t, apperr.Is(err, apperr.Invalid), "%+v: got %v", creds, err)
	}
}

func TestCredentialsAddr(t *testing.T) {
	assert.Equal(t, "example.com:22", Credentials{Host: "example.com"}.Addr())
	assert.Equal(t, "10.0.0.1:2222", Credentials{Host: " 10.0.0.1 ", Port: 2222}.Addr())
	assert.Equal(t, "[::1]:22", Credentials{Host: "::1"}.Addr())
}

func TestKnownHosts(t *testing.T) {
	srv := startSFTPServer(t)
	dir := t.TempDir()

	good := filepath.Join(dir, "known_hosts")
	line := knownhosts.Line([]string{srv.addr}, srv.hostKey)
	require.NoError(t, os.WriteFile(good, []byte(line+"\n"), 0o600))

	c, err := NewClientFromConfig(config.SFTPConfig{
		DialTimeout:      2 * time.Second,
		OperationTimeout: 5 * time.Second,
		KnownHostsFile:   good,
		MaxDownloadSize:  datasize.MB,
	})
	require.NoError(t, err)
	require.NoError(t, c.TestConnection(context.Background(), srv.creds(t)))

	// Same address, another server's key.
	other := startSFTPServer(t)
	bad := filepath.Join(dir, "known_hosts_bad")
	badLine := knownhosts.Line([]string{srv.addr}, other.hostKey)
	require.NoError(t, os.WriteFile(bad, []byte(badLine+"\n"), 0o600))

	c, err = NewClientFromConfig(config.SFTPConfig{KnownHostsFile: bad})
	require.NoError(t, err)
	err = c.TestConnection(context.Background(), srv.creds(t))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Auth), "got %v", err)
	assert.True(t, strings.Contains(err.Error(), "host key"), err.Error())

	_, err = NewClientFromConfig(config.SFTPConfig{KnownHostsFile: filepath.Join(dir, "absent")})
	assert.Error(t, err)
}
