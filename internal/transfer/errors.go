package transfer

import (
	"context"
	"errors"
	"io/fs"
	"strings"

	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/JonMunkholm/sasbridge/internal/apperr"
)

// classify maps a raw SSH/SFTP/network error onto an apperr kind.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if apperr.KindOf(err) != apperr.Unknown {
		return err
	}

	var keyErr *knownhosts.KeyError
	var revoked *knownhosts.RevokedError
	switch {
	case errors.As(err, &keyErr), errors.As(err, &revoked):
		return apperr.Wrap(apperr.Auth, op, "host key verification failed", err)
	case isAuthFailure(err):
		return apperr.Wrap(apperr.Auth, op, "authentication failed", err)
	case errors.Is(err, fs.ErrNotExist):
		return apperr.Wrap(apperr.NotFound, op, "", err)
	case errors.Is(err, fs.ErrPermission):
		return apperr.Wrap(apperr.Auth, op, "permission denied", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.Wrap(apperr.Network, op, "timed out", err)
	}
	return apperr.Wrap(apperr.Network, op, "", err)
}

// isAuthFailure recognises the handshake error x/crypto/ssh returns when
// every auth method was rejected. The package exposes no typed error for it.
func isAuthFailure(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "no supported methods remain")
}
