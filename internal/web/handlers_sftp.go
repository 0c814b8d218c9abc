package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/JonMunkholm/sasbridge/internal/apperr"
	"github.com/JonMunkholm/sasbridge/internal/logging"
	"github.com/JonMunkholm/sasbridge/internal/transfer"
)

// maxDescriptorSize bounds JSON request bodies.
const maxDescriptorSize = 64 << 10

// descriptor is the JSON body of every remote transfer request.
type descriptor struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	Path     string `json:"path"`
}

func (d descriptor) credentials() transfer.Credentials {
	return transfer.Credentials{
		Host:     d.Host,
		Port:     d.Port,
		Username: d.Username,
		Password: d.Password,
	}
}

// readDescriptor decodes the body and applies the default port and path.
func (s *Server) readDescriptor(w http.ResponseWriter, r *http.Request) (descriptor, error) {
	var d descriptor
	if err := decodeJSON(w, r, &d); err != nil {
		return d, err
	}
	if d.Port == 0 {
		d.Port = transfer.DefaultPort
	}
	d.Path = strings.TrimSpace(d.Path)
	if d.Path == "" {
		d.Path = s.cfg.SFTP.DefaultPath
	}
	return d, nil
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	const op = "web.decode"

	r.Body = http.MaxBytesReader(w, r.Body, maxDescriptorSize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return apperr.New(apperr.Invalid, op, "request body too large")
		case errors.Is(err, io.EOF):
			return apperr.New(apperr.Invalid, op, "request body is empty")
		}
		return apperr.Wrap(apperr.Invalid, op, "invalid JSON body", err)
	}
	return nil
}

// handleSFTPTest opens and closes a session with the supplied credentials.
func (s *Server) handleSFTPTest(w http.ResponseWriter, r *http.Request) {
	d, err := s.readDescriptor(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.transfer.TestConnection(r.Context(), d.credentials()); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSFTPList lists a remote directory.
func (s *Server) handleSFTPList(w http.ResponseWriter, r *http.Request) {
	d, err := s.readDescriptor(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	entries, err := s.transfer.List(r.Context(), d.credentials(), d.Path)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if entries == nil {
		entries = []transfer.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleSFTPDownload streams a remote file back as an attachment named
// after the file.
func (s *Server) handleSFTPDownload(w http.ResponseWriter, r *http.Request) {
	d, err := s.readDescriptor(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	data, err := s.transfer.ReadFile(r.Context(), d.credentials(), d.Path)
	if err != nil {
		respondError(w, r, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "application/octet-stream")
	h.Set("Content-Disposition", attachment(path.Base(d.Path)))
	h.Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logging.FromContext(r.Context()).Warn("writing download response", "path", d.Path, "error", err)
	}
}
