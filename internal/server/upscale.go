package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"github.com/deepteams/upscale"
)

// params reads scale and loop from q, falling back to the configured
// defaults.
func (s *Server) params(q url.Values) (upscale.Params, error) {
	p := upscale.Params{Scale: s.defaults.Scale, LoopCount: s.defaults.Loop}
	if v := q.Get("scale"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("scale %q: %w", v, upscale.ErrInvalidScale)
		}
		p.Scale = n
	}
	if v := q.Get("loop"); v != "" {
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return p, fmt.Errorf("loop %q: %w", v, err)
		}
		p.LoopCount = uint(n)
	}
	return p, nil
}

func (s *Server) handleUpscale(w http.ResponseWriter, r *http.Request) {
	id := newRequestID()
	w.Header().Set("X-Request-Id", id)

	params, err := s.params(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !s.acquire() {
		http.Error(w, "too many conversions in flight", http.StatusServiceUnavailable)
		return
	}
	defer s.release()

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.conf.MaxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req := upscale.Request{
		Data:     data,
		MIMEType: r.Header.Get("Content-Type"),
		FileName: r.URL.Query().Get("name"),
		Params:   params,
	}
	out, err := s.convert(r.Context(), id, req, nil)
	if err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}

	h := w.Header()
	h.Set("Content-Type", out.MIMEType)
	h.Set("Content-Length", strconv.Itoa(len(out.Data)))
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": out.FileName}))
	h.Set("X-Upscale-Fallback", out.Fallback.String())
	h.Set("X-Upscale-Frames", strconv.Itoa(out.Frames))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Data)
}
