package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"canopy-backend-go/internal/models"
	"canopy-backend-go/internal/storage"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	ContentPending  = "PENDING"
	ContentApproved = "APPROVED"
	ContentRejected = "REJECTED"
)

const mediaColumns = `id, event_id, uploader_id, url, storage_key, thumbnail_url, thumbnail_key, content_type, size_bytes,
       caption, tagged_sponsor_ids, status, moderated_at, moderated_by, moderation_note, time_to_decision_seconds,
       view_count, created_at, updated_at`

var allowedMediaTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"video/mp4":  true,
}

type UploadMediaInput struct {
	EventID          string
	Filename         string
	ContentType      string
	Data             []byte
	Caption          *string
	TaggedSponsorIDs []string
}

// StoredObject is the result of the storage step: where the original and its
// optional thumbnail ended up.
type StoredObject struct {
	URL          string
	StorageKey   string
	ThumbnailURL *string
	ThumbnailKey *string
	ContentType  string
	SizeBytes    int64
}

// UploadMedia stores an upload for an event the actor takes part in and
// records it as PENDING moderation.
func UploadMedia(ctx context.Context, database *sqlx.DB, store storage.ObjectStore, actor Actor, input UploadMediaInput) (models.EventMedia, []Effect, error) {
	if len(input.Data) == 0 {
		return models.EventMedia{}, nil, ErrBadRequest("File is empty")
	}
	contentType := strings.ToLower(strings.TrimSpace(input.ContentType))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(input.Data)
	}
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	if !allowedMediaTypes[contentType] {
		return models.EventMedia{}, nil, ErrBadRequest("Unsupported media type")
	}
	event, err := requireParticipant(ctx, database, actor, input.EventID)
	if err != nil {
		return models.EventMedia{}, nil, err
	}
	tagged, err := validateSponsorTags(ctx, database, input.TaggedSponsorIDs)
	if err != nil {
		return models.EventMedia{}, nil, err
	}

	key := storage.ObjectKey("events/"+event.ID, input.Filename)
	url, err := store.Put(ctx, key, bytes.NewReader(input.Data), contentType)
	if err != nil {
		return models.EventMedia{}, nil, WrapError(err, "store media")
	}
	obj := StoredObject{URL: url, StorageKey: key, ContentType: contentType, SizeBytes: int64(len(input.Data))}
	if storage.IsImage(contentType) {
		if thumb, err := storage.MakeThumbnail(input.Data); err == nil {
			thumbKey := storage.ThumbnailKey(key)
			if thumbURL, err := store.Put(ctx, thumbKey, bytes.NewReader(thumb), "image/jpeg"); err == nil {
				obj.ThumbnailURL = &thumbURL
				obj.ThumbnailKey = &thumbKey
			} else {
				log.Printf("[media] thumbnail upload failed for %s: %v", key, err)
			}
		} else {
			log.Printf("[media] thumbnail skipped for %s: %v", key, err)
		}
	}

	media, effects, err := CreateEventMedia(ctx, database, actor, event, obj, input.Caption, tagged)
	if err != nil {
		removeObjects(store, obj.StorageKey, obj.ThumbnailKey)
		return models.EventMedia{}, nil, err
	}
	return media, effects, nil
}

// CreateEventMedia persists an already stored object as PENDING media.
func CreateEventMedia(ctx context.Context, database *sqlx.DB, actor Actor, event models.Event, obj StoredObject, caption *string, tagged []string) (models.EventMedia, []Effect, error) {
	if obj.URL == "" || obj.StorageKey == "" {
		return models.EventMedia{}, nil, ErrBadRequest("Media url and storage key are required")
	}
	now := time.Now().UTC()
	var media models.EventMedia
	err := database.GetContext(ctx, &media, `
INSERT INTO event_media (id, event_id, uploader_id, url, storage_key, thumbnail_url, thumbnail_key, content_type,
                         size_bytes, caption, tagged_sponsor_ids, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,'PENDING',$12,$12)
RETURNING `+mediaColumns,
		uuid.NewString(), event.ID, actor.ID, obj.URL, obj.StorageKey, obj.ThumbnailURL, obj.ThumbnailKey, obj.ContentType,
		obj.SizeBytes, trimOptional(caption), pq.StringArray(tagged), now)
	if err != nil {
		return models.EventMedia{}, nil, WrapError(err, "create media")
	}
	effects := []Effect{activityEffect("media.uploaded", "MEDIA", media.ID, actor.ID, now,
		map[string]interface{}{"eventId": event.ID, "contentType": obj.ContentType})}
	return media, effects, nil
}

func GetMedia(ctx context.Context, q sqlx.QueryerContext, mediaID string) (models.EventMedia, error) {
	if _, err := uuid.Parse(mediaID); err != nil {
		return models.EventMedia{}, ErrNotFound("Media not found")
	}
	var media models.EventMedia
	err := sqlx.GetContext(ctx, q, &media, `SELECT `+mediaColumns+` FROM event_media WHERE id = $1`, mediaID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.EventMedia{}, ErrNotFound("Media not found")
	}
	return media, err
}

// ListGallery returns approved media, newest first. An empty eventID lists
// every event's gallery.
func ListGallery(ctx context.Context, database *sqlx.DB, eventID string) ([]models.EventMedia, error) {
	items := []models.EventMedia{}
	err := database.SelectContext(ctx, &items, `
SELECT `+mediaColumns+`
FROM event_media
WHERE status = 'APPROVED' AND ($1 = '' OR event_id::text = $1)
ORDER BY created_at DESC
LIMIT 200
`, eventID)
	return items, err
}

// ListEventMedia lists media in every status for the event's manager.
func ListEventMedia(ctx context.Context, database *sqlx.DB, actor Actor, eventID string) ([]models.EventMedia, error) {
	if _, err := getEventForManager(ctx, database, actor, eventID); err != nil {
		return nil, err
	}
	items := []models.EventMedia{}
	err := database.SelectContext(ctx, &items, `SELECT `+mediaColumns+` FROM event_media WHERE event_id = $1 ORDER BY created_at DESC`, eventID)
	return items, err
}

func ListMyMedia(ctx context.Context, database *sqlx.DB, userID string) ([]models.EventMedia, error) {
	items := []models.EventMedia{}
	err := database.SelectContext(ctx, &items, `SELECT `+mediaColumns+` FROM event_media WHERE uploader_id = $1 ORDER BY created_at DESC`, userID)
	return items, err
}

// RecordMediaView counts one gallery view of approved media.
func RecordMediaView(ctx context.Context, database *sqlx.DB, mediaID string) (int64, error) {
	if _, err := uuid.Parse(mediaID); err != nil {
		return 0, ErrNotFound("Media not found")
	}
	var views int64
	err := database.GetContext(ctx, &views, `
UPDATE event_media SET view_count = view_count + 1
WHERE id = $1 AND status = 'APPROVED'
RETURNING view_count
`, mediaID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound("Media not found")
	}
	return views, err
}

// DeleteMedia removes the row; stored objects are removed best-effort after.
func DeleteMedia(ctx context.Context, database *sqlx.DB, store storage.ObjectStore, actor Actor, mediaID string) ([]Effect, error) {
	media, err := GetMedia(ctx, database, mediaID)
	if err != nil {
		return nil, err
	}
	if media.UploaderID != actor.ID && !actor.IsAdmin() {
		event, err := getEvent(ctx, database, media.EventID)
		if err != nil {
			return nil, err
		}
		if !canManageEvent(actor, event) {
			return nil, ErrForbidden("You cannot delete this media")
		}
	}
	if _, err := database.ExecContext(ctx, `DELETE FROM event_media WHERE id = $1`, mediaID); err != nil {
		return nil, err
	}
	removeObjects(store, media.StorageKey, media.ThumbnailKey)
	return []Effect{activityEffect("media.deleted", "MEDIA", mediaID, actor.ID, time.Now().UTC(),
		map[string]interface{}{"eventId": media.EventID})}, nil
}

func removeObjects(store storage.ObjectStore, key string, thumbKey *string) {
	if store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	keys := []string{key}
	if thumbKey != nil {
		keys = append(keys, *thumbKey)
	}
	for _, k := range keys {
		if err := store.Delete(ctx, k); err != nil {
			log.Printf("[media] delete object %s failed: %v", k, err)
		}
	}
}

// requireParticipant loads the event and checks the actor is signed up for
// it, manages it, or is an admin.
func requireParticipant(ctx context.Context, database *sqlx.DB, actor Actor, eventID string) (models.Event, error) {
	if _, err := uuid.Parse(eventID); err != nil {
		return models.Event{}, ErrNotFound("Event not found")
	}
	event, err := getEvent(ctx, database, eventID)
	if err != nil {
		return models.Event{}, err
	}
	if canManageEvent(actor, event) {
		return event, nil
	}
	var signedUp bool
	if err := database.GetContext(ctx, &signedUp, `SELECT EXISTS(SELECT 1 FROM event_signups WHERE event_id = $1 AND user_id = $2)`, eventID, actor.ID); err != nil {
		return models.Event{}, err
	}
	if !signedUp {
		return models.Event{}, ErrForbidden("Only event participants can share content")
	}
	return event, nil
}

// validateSponsorTags deduplicates tags and checks each names a sponsor profile.
func validateSponsorTags(ctx context.Context, database *sqlx.DB, raw []string) ([]string, error) {
	seen := map[string]bool{}
	ids := []string{}
	for _, value := range raw {
		id := strings.TrimSpace(value)
		if id == "" || seen[id] {
			continue
		}
		if _, err := uuid.Parse(id); err != nil {
			return nil, ErrBadRequest("Invalid sponsor tag")
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return ids, nil
	}
	var found int
	if err := database.GetContext(ctx, &found, `SELECT count(*) FROM sponsor_profiles WHERE id::text = ANY($1)`, pq.StringArray(ids)); err != nil {
		return nil, err
	}
	if found != len(ids) {
		return nil, ErrBadRequest("Tagged sponsor not found")
	}
	return ids, nil
}

// sponsorContacts returns contact emails for tagged sponsor profiles.
func sponsorContacts(ctx context.Context, q sqlx.QueryerContext, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	emails := []string{}
	err := sqlx.SelectContext(ctx, q, &emails, `SELECT contact_email FROM sponsor_profiles WHERE id::text = ANY($1)`, pq.StringArray(ids))
	return emails, err
}
