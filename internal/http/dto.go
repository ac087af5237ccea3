package httpapi

import (
	"time"

	"canopy-backend-go/internal/models"
	"canopy-backend-go/internal/services"
)

type EventDTO struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Category       *string    `json:"category,omitempty"`
	StartsAt       time.Time  `json:"startsAt"`
	EndsAt         time.Time  `json:"endsAt"`
	Location       *string    `json:"location,omitempty"`
	IsOnline       bool       `json:"isOnline"`
	Capacity       int        `json:"capacity"`
	Status         string     `json:"status"`
	ApprovalStatus string     `json:"approvalStatus"`
	ApprovalNote   *string    `json:"approvalNote,omitempty"`
	CreatedBy      *string    `json:"createdBy,omitempty"`
	CreatorName    string     `json:"creatorName,omitempty"`
	SignupCount    *int       `json:"signupCount,omitempty"`
	SeatsLeft      *int       `json:"seatsLeft,omitempty"`
	SubmittedAt    *time.Time `json:"submittedAt,omitempty"`
	ApprovedAt     *time.Time `json:"approvedAt,omitempty"`
	PublishedAt    *time.Time `json:"publishedAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	CancelledAt    *time.Time `json:"cancelledAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func toEventDTO(event models.Event) EventDTO {
	return EventDTO{
		ID:             event.ID,
		Title:          event.Title,
		Description:    event.Description,
		Category:       event.Category,
		StartsAt:       event.StartsAt,
		EndsAt:         event.EndsAt,
		Location:       event.Location,
		IsOnline:       event.IsOnline,
		Capacity:       event.Capacity,
		Status:         event.Status,
		ApprovalStatus: event.ApprovalStatus,
		ApprovalNote:   event.ApprovalNote,
		CreatedBy:      event.CreatedBy,
		SubmittedAt:    event.SubmittedAt,
		ApprovedAt:     event.ApprovedAt,
		PublishedAt:    event.PublishedAt,
		CompletedAt:    event.CompletedAt,
		CancelledAt:    event.CancelledAt,
		CreatedAt:      event.CreatedAt,
		UpdatedAt:      event.UpdatedAt,
	}
}

func toEventDetailDTO(detail services.EventDetail) EventDTO {
	dto := toEventDTO(detail.Event)
	count := detail.SignupCount
	left := detail.SeatsLeft()
	dto.SignupCount = &count
	dto.SeatsLeft = &left
	dto.CreatorName = detail.CreatorName
	return dto
}

func toEventDetailDTOs(details []services.EventDetail) []EventDTO {
	items := make([]EventDTO, 0, len(details))
	for _, detail := range details {
		items = append(items, toEventDetailDTO(detail))
	}
	return items
}

type SignupDTO struct {
	ID          string     `json:"id"`
	EventID     string     `json:"eventId"`
	UserID      string     `json:"userId"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	UserName    string     `json:"userName,omitempty"`
	UserEmail   string     `json:"userEmail,omitempty"`
	CheckInAt   *time.Time `json:"checkInAt,omitempty"`
	CheckOutAt  *time.Time `json:"checkOutAt,omitempty"`
	Minutes     *int       `json:"minutes,omitempty"`
	EventTitle  string     `json:"eventTitle,omitempty"`
	EventStatus string     `json:"eventStatus,omitempty"`
	StartsAt    *time.Time `json:"startsAt,omitempty"`
	EndsAt      *time.Time `json:"endsAt,omitempty"`
	Location    *string    `json:"location,omitempty"`
	IsOnline    bool       `json:"isOnline,omitempty"`
}

func toSignupDTO(signup models.EventSignup) SignupDTO {
	return SignupDTO{
		ID:        signup.ID,
		EventID:   signup.EventID,
		UserID:    signup.UserID,
		Status:    signup.Status,
		CreatedAt: signup.CreatedAt,
	}
}

type AttendanceDTO struct {
	ID           string     `json:"id"`
	EventID      string     `json:"eventId"`
	UserID       string     `json:"userId"`
	UserName     string     `json:"userName,omitempty"`
	UserEmail    string     `json:"userEmail,omitempty"`
	CheckInAt    *time.Time `json:"checkInAt,omitempty"`
	CheckOutAt   *time.Time `json:"checkOutAt,omitempty"`
	Minutes      *int       `json:"minutes,omitempty"`
	HoursEntryID *string    `json:"hoursEntryId,omitempty"`
}

func toAttendanceDTO(a models.EventAttendance) AttendanceDTO {
	return AttendanceDTO{
		ID:           a.ID,
		EventID:      a.EventID,
		UserID:       a.UserID,
		CheckInAt:    a.CheckInAt,
		CheckOutAt:   a.CheckOutAt,
		Minutes:      a.Minutes,
		HoursEntryID: a.HoursEntryID,
	}
}

type HoursDTO struct {
	ID         string    `json:"id"`
	EventID    *string   `json:"eventId,omitempty"`
	EventTitle *string   `json:"eventTitle,omitempty"`
	Minutes    int       `json:"minutes"`
	Note       *string   `json:"note,omitempty"`
	Source     string    `json:"source"`
	VerifiedBy *string   `json:"verifiedBy,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toHoursDTO(entry models.HoursEntry) HoursDTO {
	return HoursDTO{
		ID:         entry.ID,
		EventID:    entry.EventID,
		Minutes:    entry.Minutes,
		Note:       entry.Note,
		Source:     entry.Source,
		VerifiedBy: entry.VerifiedBy,
		CreatedAt:  entry.CreatedAt,
	}
}

type TaskDTO struct {
	ID                 string    `json:"id"`
	EventID            string    `json:"eventId"`
	Title              string    `json:"title"`
	Description        *string   `json:"description,omitempty"`
	RequiredVolunteers int       `json:"requiredVolunteers"`
	AssignedCount      int       `json:"assignedCount"`
	CompletedCount     int       `json:"completedCount"`
	CreatedAt          time.Time `json:"createdAt"`
}

func toTaskDTO(task models.EventTask) TaskDTO {
	return TaskDTO{
		ID:                 task.ID,
		EventID:            task.EventID,
		Title:              task.Title,
		Description:        task.Description,
		RequiredVolunteers: task.RequiredVolunteers,
		CreatedAt:          task.CreatedAt,
	}
}

type AssignmentDTO struct {
	ID          string     `json:"id"`
	EventID     string     `json:"eventId"`
	TaskID      string     `json:"taskId"`
	TaskTitle   string     `json:"taskTitle,omitempty"`
	UserID      string     `json:"userId"`
	UserName    string     `json:"userName,omitempty"`
	Status      string     `json:"status"`
	AssignedAt  time.Time  `json:"assignedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func toAssignmentDTO(a models.EventAssignment) AssignmentDTO {
	return AssignmentDTO{
		ID:          a.ID,
		EventID:     a.EventID,
		TaskID:      a.TaskID,
		UserID:      a.UserID,
		Status:      a.Status,
		AssignedAt:  a.AssignedAt,
		CompletedAt: a.CompletedAt,
	}
}

type SponsorProfileDTO struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	OrgName      string     `json:"orgName"`
	ContactName  *string    `json:"contactName,omitempty"`
	ContactEmail string     `json:"contactEmail"`
	ContactPhone *string    `json:"contactPhone,omitempty"`
	Website      *string    `json:"website,omitempty"`
	LogoURL      *string    `json:"logoUrl,omitempty"`
	BrandColor   *string    `json:"brandColor,omitempty"`
	Tagline      *string    `json:"tagline,omitempty"`
	Status       string     `json:"status"`
	StatusNote   *string    `json:"statusNote,omitempty"`
	ApprovedAt   *time.Time `json:"approvedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func toSponsorProfileDTO(p models.SponsorProfile) SponsorProfileDTO {
	return SponsorProfileDTO{
		ID:           p.ID,
		UserID:       p.UserID,
		OrgName:      p.OrgName,
		ContactName:  p.ContactName,
		ContactEmail: p.ContactEmail,
		ContactPhone: p.ContactPhone,
		Website:      p.Website,
		LogoURL:      p.LogoURL,
		BrandColor:   p.BrandColor,
		Tagline:      p.Tagline,
		Status:       p.Status,
		StatusNote:   p.StatusNote,
		ApprovedAt:   p.ApprovedAt,
		CreatedAt:    p.CreatedAt,
	}
}

type SponsorshipDTO struct {
	ID                string        `json:"id"`
	SponsorID         string        `json:"sponsorId"`
	OrgName           string        `json:"orgName,omitempty"`
	EventID           string        `json:"eventId"`
	EventTitle        string        `json:"eventTitle,omitempty"`
	Type              string        `json:"type"`
	Amount            *float64      `json:"amount,omitempty"`
	InKindDescription *string       `json:"inKindDescription,omitempty"`
	Note              *string       `json:"note,omitempty"`
	Status            string        `json:"status"`
	DecisionNote      *string       `json:"decisionNote,omitempty"`
	ApprovedAt        *time.Time    `json:"approvedAt,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	TotalHours        *float64      `json:"totalHours,omitempty"`
	GalleryViews      *int64        `json:"galleryViews,omitempty"`
	ROI               *services.ROI `json:"roi,omitempty"`
}

func toSponsorshipDTO(s models.Sponsorship) SponsorshipDTO {
	return SponsorshipDTO{
		ID:                s.ID,
		SponsorID:         s.SponsorID,
		EventID:           s.EventID,
		Type:              s.Type,
		Amount:            s.Amount,
		InKindDescription: s.InKindDescription,
		Note:              s.Note,
		Status:            s.Status,
		DecisionNote:      s.DecisionNote,
		ApprovedAt:        s.ApprovedAt,
		CreatedAt:         s.CreatedAt,
	}
}

func toSponsorshipDetailDTOs(rows []services.SponsorshipDetail) []SponsorshipDTO {
	items := make([]SponsorshipDTO, 0, len(rows))
	for _, row := range rows {
		dto := toSponsorshipDTO(row.Sponsorship)
		dto.OrgName = row.OrgName
		dto.EventTitle = row.EventTitle
		items = append(items, dto)
	}
	return items
}

type MediaDTO struct {
	ID               string     `json:"id"`
	EventID          string     `json:"eventId"`
	UploaderID       string     `json:"uploaderId"`
	URL              string     `json:"url"`
	ThumbnailURL     *string    `json:"thumbnailUrl,omitempty"`
	ContentType      string     `json:"contentType"`
	SizeBytes        int64      `json:"sizeBytes"`
	Caption          *string    `json:"caption,omitempty"`
	TaggedSponsorIDs []string   `json:"taggedSponsorIds"`
	Status           string     `json:"status"`
	ModeratedAt      *time.Time `json:"moderatedAt,omitempty"`
	ModerationNote   *string    `json:"moderationNote,omitempty"`
	ViewCount        int64      `json:"viewCount"`
	CreatedAt        time.Time  `json:"createdAt"`
}

func toMediaDTO(m models.EventMedia) MediaDTO {
	tagged := []string(m.TaggedSponsorIDs)
	if tagged == nil {
		tagged = []string{}
	}
	return MediaDTO{
		ID:               m.ID,
		EventID:          m.EventID,
		UploaderID:       m.UploaderID,
		URL:              m.URL,
		ThumbnailURL:     m.ThumbnailURL,
		ContentType:      m.ContentType,
		SizeBytes:        m.SizeBytes,
		Caption:          m.Caption,
		TaggedSponsorIDs: tagged,
		Status:           m.Status,
		ModeratedAt:      m.ModeratedAt,
		ModerationNote:   m.ModerationNote,
		ViewCount:        m.ViewCount,
		CreatedAt:        m.CreatedAt,
	}
}

func toMediaDTOs(rows []models.EventMedia) []MediaDTO {
	items := make([]MediaDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, toMediaDTO(row))
	}
	return items
}

type StoryDTO struct {
	ID               string     `json:"id"`
	EventID          string     `json:"eventId"`
	EventTitle       string     `json:"eventTitle,omitempty"`
	AuthorID         string     `json:"authorId"`
	AuthorName       string     `json:"authorName,omitempty"`
	Title            string     `json:"title"`
	Body             string     `json:"body"`
	TaggedSponsorIDs []string   `json:"taggedSponsorIds"`
	Status           string     `json:"status"`
	ModeratedAt      *time.Time `json:"moderatedAt,omitempty"`
	ModerationNote   *string    `json:"moderationNote,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

func toStoryDTO(s models.EventStory) StoryDTO {
	tagged := []string(s.TaggedSponsorIDs)
	if tagged == nil {
		tagged = []string{}
	}
	return StoryDTO{
		ID:               s.ID,
		EventID:          s.EventID,
		AuthorID:         s.AuthorID,
		Title:            s.Title,
		Body:             s.Body,
		TaggedSponsorIDs: tagged,
		Status:           s.Status,
		ModeratedAt:      s.ModeratedAt,
		ModerationNote:   s.ModerationNote,
		CreatedAt:        s.CreatedAt,
	}
}

func toStoryDTOs(rows []models.EventStory) []StoryDTO {
	items := make([]StoryDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, toStoryDTO(row))
	}
	return items
}

type AuditLogDTO struct {
	ID         string      `json:"id"`
	ActorID    *string     `json:"actorId,omitempty"`
	Action     string      `json:"action"`
	EntityType string      `json:"entityType"`
	EntityID   string      `json:"entityId"`
	Before     interface{} `json:"before"`
	After      interface{} `json:"after"`
	Note       *string     `json:"note,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
}

func toAuditLogDTO(entry models.AuditLog) AuditLogDTO {
	return AuditLogDTO{
		ID:         entry.ID,
		ActorID:    entry.ActorID,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Before:     rawJSON(entry.Before),
		After:      rawJSON(entry.After),
		Note:       entry.Note,
		CreatedAt:  entry.CreatedAt,
	}
}
