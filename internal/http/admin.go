package httpserver

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Clark-Hu/movie-reviews/internal/auth"
	"github.com/Clark-Hu/movie-reviews/internal/catalog"
	"github.com/Clark-Hu/movie-reviews/internal/domain"
	"github.com/Clark-Hu/movie-reviews/internal/media"
)

// Multipart parts beyond this size are spooled to temporary files.
const multipartMemory = 32 << 20

// movieForm is a parsed admin movie submission. saved lists references of
// files ingested while parsing, so they can be released if the catalog
// rejects the submission.
type movieForm struct {
	input       catalog.MovieInput
	categoryIDs []int64
	saved       []string
}

func (s *Server) parseMovieForm(w http.ResponseWriter, r *http.Request) (movieForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes())
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) {
			return movieForm{}, err
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			return movieForm{}, domain.NewValidationError("malformed form body")
		}
		// Plain url-encoded forms carry no files.
		if err := r.ParseForm(); err != nil {
			return movieForm{}, domain.NewValidationError("malformed form body")
		}
	}

	form := movieForm{input: catalog.MovieInput{
		Title:       r.FormValue("title"),
		Director:    r.FormValue("director"),
		Genre:       r.FormValue("genre"),
		Description: r.FormValue("description"),
		ImageURL:    r.FormValue("image_url"),
		VideoURL:    r.FormValue("video_url"),
	}}

	if raw := strings.TrimSpace(r.FormValue("year")); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			return movieForm{}, domain.NewValidationError("malformed fields", "year")
		}
		form.input.Year = year
	}

	seen := make(map[int64]bool)
	for _, raw := range r.Form["categories"] {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil || id <= 0 {
			return movieForm{}, domain.NewValidationError("malformed fields", "categories")
		}
		if !seen[id] {
			seen[id] = true
			form.categoryIDs = append(form.categoryIDs, id)
		}
	}

	var err error
	if form.input.UploadedImage, err = s.ingestPart(r, "image_file", media.Image, &form); err != nil {
		s.releaseUploads(form.saved)
		return movieForm{}, err
	}
	if form.input.UploadedVideo, err = s.ingestPart(r, "video_file", media.Video, &form); err != nil {
		s.releaseUploads(form.saved)
		return movieForm{}, err
	}
	return form, nil
}

// ingestPart stores the named file part if present. A part whose extension
// is not allowed yields an empty reference.
func (s *Server) ingestPart(r *http.Request, field string, kind media.Kind, form *movieForm) (string, error) {
	if r.MultipartForm == nil {
		return "", nil
	}
	headers := r.MultipartForm.File[field]
	if len(headers) == 0 || headers[0].Filename == "" {
		return "", nil
	}
	return s.ingestFile(headers[0], kind, form)
}

func (s *Server) ingestFile(fh *multipart.FileHeader, kind media.Kind, form *movieForm) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open %s part: %w", kind, err)
	}
	defer f.Close()

	ref, ok, err := s.media.Save(f, fh.Filename, kind)
	if err != nil || !ok {
		return "", err
	}
	form.saved = append(form.saved, ref)
	return ref, nil
}

func (s *Server) releaseUploads(refs []string) {
	for _, ref := range refs {
		if err := s.media.Remove(ref); err != nil {
			s.logger.Warn("release upload failed", zap.String("ref", ref), zap.Error(err))
		}
	}
}

func (s *Server) handleAdminCreateMovie(w http.ResponseWriter, r *http.Request) {
	form, err := s.parseMovieForm(w, r)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	movie, err := s.catalog.CreateMovie(r.Context(), auth.FromContext(r.Context()), form.input, form.categoryIDs)
	if err != nil {
		s.releaseUploads(form.saved)
		s.respondDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/movies/%d", movie.ID))
	s.respondJSON(w, http.StatusCreated, toMovieResponse(movie))
}

func (s *Server) handleAdminGetMovie(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	detail, err := s.catalog.GetMovie(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"movie":       toMovieResponse(detail.Movie),
		"categoryIds": detail.CategoryIDs,
	})
}

func (s *Server) handleAdminUpdateMovie(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	form, err := s.parseMovieForm(w, r)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	res, err := s.catalog.UpdateMovie(r.Context(), auth.FromContext(r.Context()), id, form.input, form.categoryIDs)
	if err != nil {
		s.releaseUploads(form.saved)
		s.respondDomainError(w, r, err)
		return
	}

	// Drop uploaded files the edit replaced.
	prev, movie := res.Previous, res.Movie
	var replaced []string
	if prev.ImageURL != movie.ImageURL && media.IsRef(prev.ImageURL) {
		replaced = append(replaced, prev.ImageURL)
	}
	if prev.VideoURL != movie.VideoURL && media.IsRef(prev.VideoURL) {
		replaced = append(replaced, prev.VideoURL)
	}
	s.releaseUploads(replaced)

	s.respondJSON(w, http.StatusOK, toMovieResponse(movie))
}

func (s *Server) handleAdminDeleteMovie(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	movie, err := s.catalog.DeleteMovie(r.Context(), auth.FromContext(r.Context()), id)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	var owned []string
	for _, ref := range []string{movie.ImageURL, movie.VideoURL} {
		if media.IsRef(ref) {
			owned = append(owned, ref)
		}
	}
	s.releaseUploads(owned)
	w.WriteHeader(http.StatusNoContent)
}
