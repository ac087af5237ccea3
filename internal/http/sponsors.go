package httpapi

import (
	"net/http"

	"canopy-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
)

type SponsorApplyRequest struct {
	OrgName      string  `json:"orgName" validate:"required,max=200"`
	ContactName  *string `json:"contactName"`
	ContactEmail string  `json:"contactEmail" validate:"omitempty,email"`
	ContactPhone *string `json:"contactPhone"`
	Website      *string `json:"website" validate:"omitempty,url"`
	LogoURL      *string `json:"logoUrl" validate:"omitempty,url"`
	BrandColor   *string `json:"brandColor" validate:"omitempty,hexcolor"`
	Tagline      *string `json:"tagline" validate:"omitempty,max=280"`
}

type PledgeRequest struct {
	EventID           string   `json:"eventId" validate:"required,uuid"`
	Type              string   `json:"type" validate:"required"`
	Amount            *float64 `json:"amount"`
	InKindDescription *string  `json:"inKindDescription"`
	Note              *string  `json:"note"`
}

type SponsorshipDecisionRequest struct {
	Status string  `json:"status" validate:"required"`
	Note   *string `json:"note"`
}

// SponsorApplyResponse carries a fresh token pair so the SPONSOR role granted
// by the application is usable without a refresh.
type SponsorApplyResponse struct {
	Profile      SponsorProfileDTO `json:"profile"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
	ExpiresAt    int64             `json:"expiresAt"`
}

type SponsorReportResponse struct {
	Profile       SponsorProfileDTO `json:"profile"`
	Items         []SponsorshipDTO  `json:"items"`
	ApprovedFunds float64           `json:"approvedFunds"`
	TotalHours    float64           `json:"totalHours"`
	TotalViews    int64             `json:"totalViews"`
}

func (s *Server) ApplySponsor(w http.ResponseWriter, r *http.Request) {
	var req SponsorApplyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	actor := CurrentActor(r)
	profile, effects, err := services.ApplySponsor(r.Context(), s.DB, actor, services.SponsorProfileInput{
		OrgName:      req.OrgName,
		ContactName:  req.ContactName,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		Website:      req.Website,
		LogoURL:      req.LogoURL,
		BrandColor:   req.BrandColor,
		Tagline:      req.Tagline,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.runEffects(effects)
	pair, err := sponsorSession(s.Tokens, actor)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, SponsorApplyResponse{
		Profile:      toSponsorProfileDTO(profile),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
	})
}

func sponsorSession(tokens services.TokenService, actor services.Actor) (services.TokenPair, error) {
	roles := append(append([]string{}, actor.Roles...), string(services.RoleSponsor))
	return tokens.IssuePair(actor.ID, actor.Email, actor.Name, roles)
}

func (s *Server) MySponsorProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := services.GetSponsorProfileByUser(r.Context(), s.DB, CurrentUserID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]SponsorProfileDTO{"profile": toSponsorProfileDTO(profile)})
}

func (s *Server) Pledge(w http.ResponseWriter, r *http.Request) {
	var req PledgeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	sponsorship, effects, err := services.Pledge(r.Context(), s.DB, CurrentActor(r), services.PledgeInput{
		EventID:           req.EventID,
		Type:              req.Type,
		Amount:            req.Amount,
		InKindDescription: req.InKindDescription,
		Note:              req.Note,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.runEffects(effects)
	WriteJSON(w, http.StatusCreated, map[string]SponsorshipDTO{"sponsorship": toSponsorshipDTO(sponsorship)})
}

func (s *Server) MySponsorships(w http.ResponseWriter, r *http.Request) {
	profile, err := services.GetSponsorProfileByUser(r.Context(), s.DB, CurrentUserID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	rows, err := services.ListSponsorships(r.Context(), s.DB, services.SponsorshipFilter{
		SponsorID: profile.ID,
		Status:    r.URL.Query().Get("status"),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, ItemsResponse[SponsorshipDTO]{Items: toSponsorshipDetailDTOs(rows)})
}

func (s *Server) SponsorReport(w http.ResponseWriter, r *http.Request) {
	report, err := services.BuildSponsorReport(r.Context(), s.DB, CurrentUserID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	items := make([]SponsorshipDTO, 0, len(report.Rows))
	for _, row := range report.Rows {
		row := row
		dto := toSponsorshipDTO(row.Sponsorship)
		dto.OrgName = row.OrgName
		dto.EventTitle = row.EventTitle
		dto.TotalHours = &row.TotalHours
		dto.GalleryViews = &row.GalleryViews
		dto.ROI = &row.ROI
		items = append(items, dto)
	}
	WriteJSON(w, http.StatusOK, SponsorReportResponse{
		Profile:       toSponsorProfileDTO(report.Profile),
		Items:         items,
		ApprovedFunds: report.ApprovedFunds,
		TotalHours:    report.TotalHours,
		TotalViews:    report.TotalViews,
	})
}

// EventSponsorships shows every sponsorship to the event team and only the
// approved ones to everyone else.
func (s *Server) EventSponsorships(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	event, err := services.GetEvent(r.Context(), s.DB, eventID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	filter := services.SponsorshipFilter{EventID: event.ID, Status: services.SponsorApproved}
	if event.ManagedBy(CurrentActor(r)) {
		filter.Status = r.URL.Query().Get("status")
	}
	rows, err := services.ListSponsorships(r.Context(), s.DB, filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, ItemsResponse[SponsorshipDTO]{Items: toSponsorshipDetailDTOs(rows)})
}

func (s *Server) AdminListSponsorProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := services.ListSponsorProfiles(r.Context(), s.DB, r.URL.Query().Get("status"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	items := make([]SponsorProfileDTO, 0, len(profiles))
	for _, p := range profiles {
		items = append(items, toSponsorProfileDTO(p))
	}
	WriteJSON(w, http.StatusOK, ItemsResponse[SponsorProfileDTO]{Items: items})
}

func (s *Server) AdminListSponsorships(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rows, err := services.ListSponsorships(r.Context(), s.DB, services.SponsorshipFilter{
		SponsorID: q.Get("sponsorId"),
		EventID:   q.Get("eventId"),
		Status:    q.Get("status"),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, ItemsResponse[SponsorshipDTO]{Items: toSponsorshipDetailDTOs(rows)})
}

func (s *Server) DecideSponsorship(w http.ResponseWriter, r *http.Request) {
	var req SponsorshipDecisionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	sponsorship, effects, err := services.UpdateSponsorshipApproval(r.Context(), s.DB, CurrentActor(r), chi.URLParam(r, "sponsorshipId"), req.Status, req.Note)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.runEffects(effects)
	WriteJSON(w, http.StatusOK, map[string]SponsorshipDTO{"sponsorship": toSponsorshipDTO(sponsorship)})
}
