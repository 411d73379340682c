package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"family-album/model"
	"family-album/service"
	"family-album/storage"
)

// maxUploadSize caps multipart request bodies.
const maxUploadSize = 200 * 1024 * 1024 // 200 MB

// Handlers exposes the album service over HTTP. The layer is deliberately
// thin: multipart parsing and status mapping only, all decisions live in
// the services.
type Handlers struct {
	Library *service.Library
	Albums  *service.Albums
	Deleter *service.Deleter
	Log     *zap.Logger
}

// Register mounts all routes on mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	wrap := func(fn http.HandlerFunc) http.HandlerFunc {
		return RecoveryMiddleware(h.Log, RequestLoggerMiddleware(h.Log, fn))
	}

	mux.HandleFunc("POST /upload-image", wrap(h.handleUploadImage))
	mux.HandleFunc("POST /generate-album", wrap(h.handleGenerateAlbum))
	mux.HandleFunc("GET /all-photos", wrap(h.handleAllPhotos))
	mux.HandleFunc("GET /recent-photos", wrap(h.handleRecentPhotos))
	mux.HandleFunc("GET /all-albums", wrap(h.handleAllAlbums))
	mux.HandleFunc("GET /recent-albums", wrap(h.handleRecentAlbums))
	mux.HandleFunc("GET /albums/{id}", wrap(h.handleGetAlbum))
	mux.HandleFunc("DELETE /photos/{id}", wrap(h.handleDeletePhoto))
	mux.HandleFunc("DELETE /albums/{id}", wrap(h.handleDeleteAlbum))
	mux.HandleFunc("POST /photos/bulk-delete", wrap(h.handleBulkDeletePhotos))
	mux.HandleFunc("POST /albums/bulk-delete", wrap(h.handleBulkDeleteAlbums))
	mux.HandleFunc("POST /albums/{id}/video", wrap(h.handleAttachVideo))
	mux.HandleFunc("GET /download-video/{id}", wrap(h.handleDownloadVideo))
	mux.HandleFunc("GET /health", wrap(h.handleHealth))
}

func (h *Handlers) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	filename, contentType, data, ok := h.readUpload(w, r, "file")
	if !ok {
		return
	}

	photo, err := h.Library.UploadPhoto(r.Context(), filename, contentType, data)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"image_id": photo.ID,
		"photo":    photo,
	})
}

func (h *Handlers) handleGenerateAlbum(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "Invalid multipart request", http.StatusBadRequest)
		return
	}

	theme := r.FormValue("theme")
	var album *model.AlbumRecord
	var err error

	if file, header, ferr := r.FormFile("image"); ferr == nil {
		defer file.Close()
		data, rerr := io.ReadAll(file)
		if rerr != nil {
			http.Error(w, "Error reading image: "+rerr.Error(), http.StatusBadRequest)
			return
		}
		album, err = h.Albums.GenerateFromImage(r.Context(), header.Filename, header.Header.Get("Content-Type"), data)
	} else if theme != "" {
		album, err = h.Albums.GenerateFromTheme(r.Context(), theme)
	} else {
		http.Error(w, "Either image or theme must be provided", http.StatusBadRequest)
		return
	}

	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, album)
}

func (h *Handlers) handleAllPhotos(w http.ResponseWriter, r *http.Request) {
	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", 100)
	photos, err := h.Library.ListPhotos(r.Context(), skip, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"photos": photos})
}

func (h *Handlers) handleRecentPhotos(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 4)
	photos, err := h.Library.ListPhotos(r.Context(), 0, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"photos": photos})
}

func (h *Handlers) handleAllAlbums(w http.ResponseWriter, r *http.Request) {
	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", 100)
	albums, err := h.Albums.ListAlbums(r.Context(), skip, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"albums": albums})
}

func (h *Handlers) handleRecentAlbums(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 4)
	albums, err := h.Albums.ListAlbums(r.Context(), 0, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"albums": albums})
}

func (h *Handlers) handleGetAlbum(w http.ResponseWriter, r *http.Request) {
	album, err := h.Albums.GetAlbum(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, album)
}

func (h *Handlers) handleDeletePhoto(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	result := h.Deleter.DeletePhotos(r.Context(), []string{id})
	if len(result.Successful) == 0 {
		http.Error(w, "Photo not found or could not be deleted", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Photo " + id + " deleted successfully"})
}

func (h *Handlers) handleDeleteAlbum(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	result := h.Deleter.DeleteAlbums(r.Context(), []string{id})
	if len(result.Successful) == 0 {
		http.Error(w, "Album not found or could not be deleted", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Album " + id + " deleted successfully"})
}

func (h *Handlers) handleBulkDeletePhotos(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhotoIDs []string `json:"photo_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	result := h.Deleter.DeletePhotos(r.Context(), req.PhotoIDs)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) handleBulkDeleteAlbums(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AlbumIDs []string `json:"album_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	result := h.Deleter.DeleteAlbums(r.Context(), req.AlbumIDs)
	h.writeJSON(w, http.StatusOK, result)
}

// handleAttachVideo is the rendering job's callback once it has written
// the album video asset to the object store.
func (h *Handlers) handleAttachVideo(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	key, err := h.Albums.AttachVideo(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"album_id": id, "video_key": key})
}

func (h *Handlers) handleDownloadVideo(w http.ResponseWriter, r *http.Request) {
	url, err := h.Albums.VideoDownloadURL(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"download_url": url})
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// readUpload pulls a single file out of a multipart request.
func (h *Handlers) readUpload(w http.ResponseWriter, r *http.Request, field string) (filename, contentType string, data []byte, ok bool) {
	if r.ContentLength > maxUploadSize {
		http.Error(w, "File size exceeds limit", http.StatusRequestEntityTooLarge)
		return
	}
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "Invalid multipart request", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		http.Error(w, "No file found in the request", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err = io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading file: "+err.Error(), http.StatusInternalServerError)
		return
	}
	return header.Filename, header.Header.Get("Content-Type"), data, true
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.Log.Error("failed to encode response", zap.Error(err))
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	switch {
	case storage.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	default:
		h.Log.Error("request failed", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func queryInt(r *http.Request, name string, def int64) int64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return def
	}
	return v
}
