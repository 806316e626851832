package http

import (
	"errors"
	"io"
	"net/http"
	"sync/atomic"

	"masjid/internal/log"
	"masjid/internal/media"
)

// multipartOverhead is allowed on top of the file limit for headers and
// boundaries.
const multipartOverhead = 1 << 20

type showcasePage struct {
	pageData
	Images   []media.Image
	MaxBytes int64
}

func (s *Server) handleShowcase(w http.ResponseWriter, r *http.Request) {
	images, err := s.media.List(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "showcase.html", showcasePage{
		pageData: s.page(r, "Showcase"),
		Images:   images,
		MaxBytes: s.media.MaxBytes(),
	})
}

// handleListImages returns the stored images as a plain JSON array.
func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	images, err := s.media.List(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Image listing failed", log.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to list images"})
		return
	}
	writeJSON(w, http.StatusOK, images)
}

// handleUpload streams the multipart "file" field into the media store.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.media.MaxBytes()+multipartOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, jsonError{Success: false, Error: "Expected a multipart upload"})
		return
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.uploadError(w, r, err)
			return
		}
		if part.FormName() != "file" || part.FileName() == "" {
			part.Close()
			continue
		}

		up, err := s.media.Save(r.Context(), part.FileName(), part)
		part.Close()
		if err != nil {
			s.uploadError(w, r, err)
			return
		}
		atomic.AddInt64(&s.appMetrics.uploads, 1)
		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"filePath": up.FilePath,
			"fileName": up.FileName,
		})
		return
	}
	s.uploadError(w, r, media.ErrEmptyFile)
}

func (s *Server) uploadError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classifyError(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "Upload failed", log.FieldError, err)
	}
	writeJSON(w, status, jsonError{Success: false, Error: msg})
}
