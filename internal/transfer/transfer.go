// Package transfer browses and downloads files on a remote server over
// SFTP.
//
// Every call opens its own SSH connection and SFTP session, performs one
// operation and closes both before returning, on every path. Sessions are
// never pooled or reused. Failures carry apperr.Auth for rejected
// credentials, apperr.NotFound for missing paths and apperr.Network for
// transport errors and timeouts.
package transfer

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/sasbridge/internal/apperr"
)

// DefaultPort is used when Credentials.Port is zero.
const DefaultPort = 22

// Credentials identify a remote account. The password is used for one
// call and never stored.
type Credentials struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Validate reports missing or malformed fields as apperr.Invalid.
func (c Credentials) Validate() error {
	const op = "transfer.credentials"
	switch {
	case strings.TrimSpace(c.Host) == "":
		return apperr.New(apperr.Invalid, op, "host is required")
	case strings.TrimSpace(c.Username) == "":
		return apperr.New(apperr.Invalid, op, "username is required")
	case c.Port < 0 || c.Port > 65535:
		return apperr.Errorf(apperr.Invalid, op, "port %d out of range", c.Port)
	}
	return nil
}

// Addr returns host:port, applying DefaultPort.
func (c Credentials) Addr() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(strings.TrimSpace(c.Host), strconv.Itoa(port))
}

// Entry is one item of a remote directory listing.
type Entry struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	IsDir    bool      `json:"isDirectory"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}
