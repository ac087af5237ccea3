package httpapi

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"canopy-backend-go/internal/services"
	"canopy-backend-go/internal/storage"

	"github.com/go-chi/chi/v5"
)

type MediaViewResponse struct {
	ID        string `json:"id"`
	ViewCount int64  `json:"viewCount"`
}

func (s *Server) UploadMedia(w http.ResponseWriter, r *http.Request) {
	limit := int64(s.Config.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	if err := r.ParseMultipartForm(limit); err != nil {
		WriteError(w, http.StatusBadRequest, "File is empty or too large")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "File is empty or too large")
		return
	}
	defer file.Close()
	if header.Size > limit {
		WriteError(w, http.StatusRequestEntityTooLarge, "File is too large")
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "File could not be read")
		return
	}
	var caption *string
	if value := strings.TrimSpace(r.FormValue("caption")); value != "" {
		caption = &value
	}
	media, effects, err := services.UploadMedia(r.Context(), s.DB, s.Store, CurrentActor(r), services.UploadMediaInput{
		EventID:          chi.URLParam(r, "eventId"),
		Filename:         header.Filename,
		ContentType:      header.Header.Get("Content-Type"),
		Data:             data,
		Caption:          caption,
		TaggedSponsorIDs: formList(r, "sponsorIds"),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.runEffects(effects)
	WriteJSON(w, http.StatusCreated, map[string]MediaDTO{"media": toMediaDTO(media)})
}

// formList accepts repeated fields as well as one comma separated value.
func formList(r *http.Request, key string) []string {
	out := []string{}
	if r.MultipartForm == nil {
		return out
	}
	for _, value := range r.MultipartForm.Value[key] {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (s *Server) EventGallery(w http.ResponseWriter, r *http.Request) {
	event, err := services.GetEvent(r.Context(), s.DB, chi.URLParam(r, "eventId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !event.Visible(s.optionalActor(r)) {
		WriteError(w, http.StatusNotFound, "Event not found")
		return
	}
	items, err := services.ListGallery(r.Context(), s.DB, event.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, ItemsResponse[MediaDTO]{Items: toMediaDTOs(items)})
}

func (s *Server) ListEventMedia(w http.ResponseWriter, r *http.Request) {
	items, err := services.ListEventMedia(r.Context(), s.DB, CurrentActor(r), chi.URLParam(r, "eventId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, ItemsResponse[MediaDTO]{Items: toMediaDTOs(items)})
}

func (s *Server) RecordMediaView(w http.ResponseWriter, r *http.Request) {
	mediaID := chi.URLParam(r, "mediaId")
	views, err := services.RecordMediaView(r.Context(), s.DB, mediaID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, MediaViewResponse{ID: mediaID, ViewCount: views})
}

func (s *Server) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	effects, err := services.DeleteMedia(r.Context(), s.DB, s.Store, CurrentActor(r), chi.URLParam(r, "mediaId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.runEffects(effects)
	w.WriteHeader(http.StatusNoContent)
}

// MediaContent streams objects kept on local disk. With object storage the
// stored URLs point at the bucket and this route is unused.
func (s *Server) MediaContent(w http.ResponseWriter, r *http.Request) {
	if s.Local == nil {
		WriteError(w, http.StatusNotFound, "Media not found")
		return
	}
	key := chi.URLParam(r, "*")
	file, err := s.Local.Open(key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			writeServiceError(w, r, err)
			return
		}
		WriteError(w, http.StatusNotFound, "Media not found")
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if contentType := mime.TypeByExtension(path.Ext(key)); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeContent(w, r, info.Name(), info.ModTime(), file)
}
