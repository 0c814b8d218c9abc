package web

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/sasbridge/internal/apperr"
	"github.com/JonMunkholm/sasbridge/internal/convert"
	"github.com/JonMunkholm/sasbridge/internal/encode"
	"github.com/JonMunkholm/sasbridge/internal/history"
	"github.com/JonMunkholm/sasbridge/internal/logging"
	mw "github.com/JonMunkholm/sasbridge/internal/web/middleware"
)

// multipartMemory is how much of a form is buffered in memory before
// parts spill to temporary files.
const multipartMemory = 32 << 20

// handleConvert accepts a multipart "file" field holding a SAS7BDAT dataset
// and responds with the converted file as an attachment.
func (s *Server) handleConvert(format encode.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "web.convert"

		maxSize := int64(s.cfg.Upload.MaxFileSize.Bytes())
		// Leave room for multipart boundaries and headers.
		r.Body = http.MaxBytesReader(w, r.Body, maxSize+1<<20)

		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				respondError(w, r, apperr.New(apperr.Invalid, op, "file too large"))
				return
			}
			respondError(w, r, apperr.Wrap(apperr.Invalid, op, "invalid multipart form", err))
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			respondError(w, r, apperr.New(apperr.Invalid, op, "no file provided"))
			return
		}
		defer file.Close()

		if header.Size > maxSize {
			respondError(w, r, apperr.New(apperr.Invalid, op, "file too large"))
			return
		}
		data, err := io.ReadAll(file)
		if err != nil {
			respondError(w, r, apperr.Wrap(apperr.Invalid, op, "failed to read file", err))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Upload.Timeout)
		defer cancel()

		res, err := s.converter.Convert(ctx, convert.Request{
			FileName: header.Filename,
			Data:     data,
			Format:   format,
			Subject:  s.subjectOf(r),
			ClientIP: r.RemoteAddr,
		})
		if err != nil {
			respondError(w, r, err)
			return
		}

		h := w.Header()
		h.Set("Content-Type", res.ContentType)
		h.Set("Content-Disposition", attachment(res.FileName))
		h.Set("Content-Length", strconv.Itoa(len(res.Data)))
		h.Set("X-Conversion-Id", res.ID)
		h.Set("X-Row-Count", strconv.Itoa(res.Rows))
		h.Set("X-Column-Count", strconv.Itoa(res.Columns))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(res.Data); err != nil {
			logging.FromContext(r.Context()).Warn("writing conversion response", "error", err)
		}
	}
}

// handleHistory lists recent conversions, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", history.DefaultLimit)

	entries, err := s.converter.History(r.Context(), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleQueueStatus reports conversion slots in use.
func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.converter.LimiterStatus())
}

// subjectOf returns the caller's token subject when a valid bearer token
// was sent, and "" otherwise. Conversion does not require a token.
func (s *Server) subjectOf(r *http.Request) string {
	if sub := mw.SubjectFromContext(r.Context()); sub != "" {
		return sub
	}
	token := mw.BearerToken(r)
	if token == "" || s.tokens == nil {
		return ""
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return ""
	}
	return claims.Subject
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// attachment builds a Content-Disposition value; non-ASCII names are
// encoded per RFC 2231.
func attachment(name string) string {
	v := mime.FormatMediaType("attachment", map[string]string{"filename": name})
	if v == "" {
		return "attachment"
	}
	return v
}
