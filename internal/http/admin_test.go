package httpserver

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Clark-Hu/movie-reviews/internal/accounts"
	"github.com/Clark-Hu/movie-reviews/internal/testutil"
)

type filePart struct {
	field, name string
	content     []byte
}

func multipartBody(tb testing.TB, fields map[string][]string, files ...filePart) (*bytes.Buffer, string) {
	tb.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, values := range fields {
		for _, v := range values {
			if err := mw.WriteField(key, v); err != nil {
				tb.Fatalf("write field %s: %v", key, err)
			}
		}
	}
	for _, f := range files {
		w, err := mw.CreateFormFile(f.field, f.name)
		if err != nil {
			tb.Fatalf("create part %s: %v", f.field, err)
		}
		if _, err := w.Write(f.content); err != nil {
			tb.Fatalf("write part %s: %v", f.field, err)
		}
	}
	if err := mw.Close(); err != nil {
		tb.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func (ts *testServer) sendForm(tb testing.TB, method, path, token string, fields map[string][]string, files ...filePart) *httptest.ResponseRecorder {
	tb.Helper()
	body, contentType := multipartBody(tb, fields, files...)
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)
	return rec
}

func movieFields(title string) map[string][]string {
	return map[string][]string{
		"title":       {title},
		"director":    {"Some Director"},
		"year":        {"2020"},
		"genre":       {"Drama"},
		"description": {"Some description"},
	}
}

func (ts *testServer) uploadCount(tb testing.TB) int {
	tb.Helper()
	entries, err := os.ReadDir(ts.cfg.UploadDir)
	if err != nil && !os.IsNotExist(err) {
		tb.Fatalf("read upload dir: %v", err)
	}
	return len(entries)
}

func TestAdminCreateMovie_PlaceholderAndCategories(t *testing.T) {
	ts := buildTestServer(t)
	admin := ts.login(t, accounts.DefaultAdminUsername, accounts.DefaultAdminPassword)

	fields := movieFields("X")
	fields["categories"] = []string{"1", "3", "1"}
	rec := ts.sendForm(t, http.MethodPost, "/admin/movies/", admin, fields)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d body=%s", rec.Code, rec.Body.String())
	}
	movie := decode[movieResponse](t, rec)
	if movie.ImageURL != "https://picsum.photos/seed/X/300/450.jpg" {
		t.Fatalf("imageUrl = %q", movie.ImageURL)
	}
	if movie.Rating != 0 || movie.VideoType != "external" {
		t.Fatalf("movie = %+v", movie)
	}
	if loc := rec.Header().Get("Location"); loc != "/movies/"+itoa(movie.ID) {
		t.Fatalf("location = %q", loc)
	}
	if n := testutil.CountRows(t, ts.pool, "movie_categories", "movie_id = $1", movie.ID); n != 2 {
		t.Fatalf("category links = %d, want 2", n)
	}
}

func TestAdminCreateMovie_Validation(t *testing.T) {
	ts := buildTestServer(t)
	admin := ts.login(t, accounts.DefaultAdminUsername, accounts.DefaultAdminPassword)
	before := testutil.CountRows(t, ts.pool, "movies", "")

	tests := []struct {
		name   string
		mutate func(map[string][]string)
		field  string
	}{
		{"missing title", func(f map[string][]string) { f["title"] = []string{"  "} }, "title"},
		{"malformed year", func(f map[string][]string) { f["year"] = []string{"twenty"} }, "year"},
		{"year out of range", func(f map[string][]string) { f["year"] = []string{"1700"} }, "year"},
		{"malformed category", func(f map[string][]string) { f["categories"] = []string{"drama"} }, "categories"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := movieFields("Rejected")
			tt.mutate(fields)
			rec := ts.sendForm(t, http.MethodPost, "/admin/movies/", admin, fields,
				filePart{"image_file", "poster.png", []byte("png")})
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422 (body=%s)", rec.Code, rec.Body.String())
			}
			resp := decode[struct {
				Code    string       `json:"code"`
				Details fieldDetails `json:"details"`
			}](t, rec)
			if resp.Code != "VALIDATION_ERROR" || len(resp.Details.Fields) == 0 || resp.Details.Fields[0] != tt.field {
				t.Fatalf("error = %+v", resp)
			}
		})
	}

	if after := testutil.CountRows(t, ts.pool, "movies", ""); after != before {
		t.Fatalf("movies = %d, want %d", after, before)
	}
	if n := ts.uploadCount(t); n != 0 {
		t.Fatalf("rejected submissions left %d uploaded files", n)
	}
}

func TestAdminMovie_LongURLs(t *testing.T) {
	ts := buildTestServer(t)
	admin := ts.login(t, accounts.DefaultAdminUsername, accounts.DefaultAdminPassword)

	title := strings.Repeat("T", 201)
	image := "https://cdn.example.com/poster.jpg?sig=" + strings.Repeat("a", 600)
	fields := movieFields(title)
	fields["image_url"] = []string{image}
	rec := ts.sendForm(t, http.MethodPost, "/admin/movies/", admin, fields)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d body=%s", rec.Code, rec.Body.String())
	}
	created := decode[movieResponse](t, rec)
	if created.Title != title || created.ImageURL != image {
		t.Fatalf("long fields not stored verbatim: %+v", created)
	}

	fields = movieFields(title)
	fields["video_url"] = []string{"https://cdn.example.com/trailer.mp4?sig=" + strings.Repeat("b", 600)}
	rec = ts.sendForm(t, http.MethodPut, "/admin/movies/"+itoa(created.ID), admin, fields)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status = %d body=%s", rec.Code, rec.Body.String())
	}
	if updated := decode[movieResponse](t, rec); updated.ImageURL != image || updated.VideoURL != fields["video_url"][0] {
		t.Fatalf("updated = %+v", updated)
	}
}

func TestAdminMovie_UploadLifecycle(t *testing.T) {
	ts := buildTestServer(t)
	admin := ts.login(t, accounts.DefaultAdminUsername, accounts.DefaultAdminPassword)

	rec := ts.sendForm(t, http.MethodPost, "/admin/movies/", admin, movieFields("Uploaded"),
		filePart{"image_file", "Poster.PNG", []byte("image-bytes")},
		filePart{"video_file", "trailer.mp4", []byte("video-bytes")})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d body=%s", rec.Code, rec.Body.String())
	}
	created := decode[movieResponse](t, rec)
	if !strings.HasPrefix(created.ImageURL, "/uploads/") || !strings.HasSuffix(created.ImageURL, ".png") {
		t.Fatalf("imageUrl = %q", created.ImageURL)
	}
	if created.VideoType != "upload" || !strings.HasSuffix(created.VideoURL, ".mp4") {
		t.Fatalf("video = %q (%s)", created.VideoURL, created.VideoType)
	}

	served := httptest.NewRecorder()
	ts.Handler().ServeHTTP(served, httptest.NewRequest(http.MethodGet, created.ImageURL, nil))
	if served.Code != http.StatusOK || served.Body.String() != "image-bytes" {
		t.Fatalf("serve upload: status = %d body=%q", served.Code, served.Body.String())
	}

	// Replacing the image drops the old file and keeps the video.
	rec = ts.sendForm(t, http.MethodPut, "/admin/movies/"+itoa(created.ID), admin, movieFields("Uploaded"),
		filePart{"image_file", "second.jpg", []byte("second")})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status = %d body=%s", rec.Code, rec.Body.String())
	}
	updated := decode[movieResponse](t, rec)
	if updated.ImageURL == created.ImageURL || updated.VideoURL != created.VideoURL {
		t.Fatalf("updated = %+v", updated)
	}
	if _, err := os.Stat(filepath.Join(ts.cfg.UploadDir, filepath.Base(created.ImageURL))); !os.IsNotExist(err) {
		t.Fatalf("replaced image still on disk: %v", err)
	}
	if n := ts.uploadCount(t); n != 2 {
		t.Fatalf("upload files = %d, want 2", n)
	}

	rec = ts.do(t, http.MethodDelete, "/admin/movies/"+itoa(created.ID), nil, admin)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status = %d", rec.Code)
	}
	if n := ts.uploadCount(t); n != 0 {
		t.Fatalf("upload files after delete = %d, want 0", n)
	}
	if rec := ts.do(t, http.MethodGet, "/movies/"+itoa(created.ID), nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("deleted movie: status = %d, want 404", rec.Code)
	}
}

func TestAdminCreateMovie_TooLarge(t *testing.T) {
	ts := buildTestServer(t)
	admin := ts.login(t, accounts.DefaultAdminUsername, accounts.DefaultAdminPassword)
	before := testutil.CountRows(t, ts.pool, "movies", "")

	big := bytes.Repeat([]byte("v"), int(ts.cfg.MaxUploadBytes())+1024)
	rec := ts.sendForm(t, http.MethodPost, "/admin/movies/", admin, movieFields("Huge"),
		filePart{"video_file", "huge.mp4", big})
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	if got := errorCode(t, rec); got != "PAYLOAD_TOO_LARGE" {
		t.Fatalf("code = %s", got)
	}
	if after := testutil.CountRows(t, ts.pool, "movies", ""); after != before {
		t.Fatalf("oversized upload created a movie")
	}
}

func TestAdminMovie_DisallowedExtensionFallsBack(t *testing.T) {
	ts := buildTestServer(t)
	admin := ts.login(t, accounts.DefaultAdminUsername, accounts.DefaultAdminPassword)

	fields := movieFields("Script")
	fields["image_url"] = []string{"https://example.com/poster.jpg"}
	rec := ts.sendForm(t, http.MethodPost, "/admin/movies/", admin, fields,
		filePart{"image_file", "payload.exe", []byte("MZ")})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if movie := decode[movieResponse](t, rec); movie.ImageURL != "https://example.com/poster.jpg" {
		t.Fatalf("imageUrl = %q", movie.ImageURL)
	}
	if n := ts.uploadCount(t); n != 0 {
		t.Fatalf("disallowed file stored")
	}
}

func TestAdminMovie_NotFound(t *testing.T) {
	ts := buildTestServer(t)
	admin := ts.login(t, accounts.DefaultAdminUsername, accounts.DefaultAdminPassword)

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		if rec := ts.do(t, method, "/admin/movies/424242", nil, admin); rec.Code != http.StatusNotFound {
			t.Fatalf("%s: status = %d, want 404", method, rec.Code)
		}
	}
	rec := ts.sendForm(t, http.MethodPut, "/admin/movies/424242", admin, movieFields("Ghost"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("PUT: status = %d, want 404", rec.Code)
	}
}

func TestServeUpload_RejectsTraversal(t *testing.T) {
	ts := buildTestServer(t)
	for _, name := range []string{"..", "missing.png", "..%2Fsecret"} {
		req := httptest.NewRequest(http.MethodGet, "/uploads/x", nil)
		req = attachParam(req, "name", name)
		rec := httptest.NewRecorder()
		ts.handleServeUpload(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%q: status = %d, want 404", name, rec.Code)
		}
	}
}
