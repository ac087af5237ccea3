package httpapi

import (
	"net/http"
	"time"

	"canopy-backend-go/internal/config"
	"canopy-backend-go/internal/services"
	"canopy-backend-go/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
)

type Server struct {
	DB      *sqlx.DB
	Config  config.Config
	Tokens  services.TokenService
	Effects *services.EffectRunner
	Store   storage.ObjectStore
	// Local is set when media lives on disk and is served by this API.
	Local *storage.LocalStore
	Hub   *services.ActivityHub
}

func NewTokenService(cfg config.Config, revoker services.Revoker) services.TokenService {
	return services.TokenService{
		Secret:     []byte(cfg.JWTSecret),
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  time.Duration(cfg.AccessTTLSeconds) * time.Second,
		RefreshTTL: time.Duration(cfg.RefreshTTLSeconds) * time.Second,
		VerifyTTL:  time.Duration(cfg.VerifyTTLSeconds) * time.Second,
		Revoker:    revoker,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(Recoverer)
	r.Use(RequestLogger)
	if len(s.Config.CorsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.Config.CorsOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	auth := WithAuth(s.Tokens)
	managers := RequireAnyRole(services.RoleEventManager, services.RoleAdmin)

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(a chi.Router) {
			a.Post("/register", s.Register)
			a.Post("/login", s.Login)
			a.Post("/refresh", s.Refresh)
			a.Get("/verify-email", s.VerifyEmail)
			a.With(auth).Post("/logout", s.Logout)
		})

		api.Route("/me", func(me chi.Router) {
			me.Use(auth)
			me.Get("/", s.Me)
			me.Put("/profile", s.UpdateProfile)
			me.Put("/password", s.ChangePassword)
			me.Delete("/", s.DeactivateAccount)
			me.Post("/ping", s.Ping)
			me.Get("/hours", s.MyHours)
			me.Get("/signups", s.MySignups)
			me.Get("/media", s.MyMedia)
			me.Get("/stories", s.MyStories)
			me.Get("/events", s.MyManagedEvents)
		})

		api.Route("/events", func(events chi.Router) {
			events.Get("/", s.ListPublicEvents)
			events.Get("/{eventId}", s.GetEvent)
			events.Get("/{eventId}/gallery", s.EventGallery)
			events.Get("/{eventId}/stories", s.EventStories)
			events.Get("/{eventId}/tasks", s.ListTasks)

			events.Group(func(authed chi.Router) {
				authed.Use(auth)
				authed.With(managers).Post("/", s.CreateEvent)
				authed.Put("/{eventId}", s.UpdateEvent)
				authed.Post("/{eventId}/publish", s.PublishEvent)
				authed.Post("/{eventId}/cancel", s.CancelEvent)
				authed.Post("/{eventId}/complete", s.CompleteEvent)
				authed.Get("/{eventId}/analytics", s.EventAnalytics)

				authed.Post("/{eventId}/signup", s.Signup)
				authed.Delete("/{eventId}/signup", s.CancelMySignup)
				authed.Get("/{eventId}/signups", s.ListEventSignups)
				authed.Delete("/{eventId}/signups/{userId}", s.CancelVolunteerSignup)

				authed.Post("/{eventId}/check-in", s.CheckIn)
				authed.Post("/{eventId}/check-out", s.CheckOut)
				authed.Get("/{eventId}/attendance", s.ListAttendance)
				authed.Post("/{eventId}/hours", s.RecordHours)

				authed.Post("/{eventId}/tasks", s.CreateTask)
				authed.Delete("/{eventId}/tasks/{taskId}", s.DeleteTask)
				authed.Post("/{eventId}/tasks/{taskId}/assignments", s.AssignTask)
				authed.Get("/{eventId}/assignments", s.ListAssignments)
				authed.Post("/{eventId}/assignments/{assignmentId}/complete", s.CompleteAssignment)
				authed.Delete("/{eventId}/assignments/{assignmentId}", s.Unassign)

				authed.Post("/{eventId}/media", s.UploadMedia)
				authed.Get("/{eventId}/media", s.ListEventMedia)
				authed.Post("/{eventId}/stories", s.CreateStory)
				authed.Get("/{eventId}/sponsorships", s.EventSponsorships)
			})
		})

		api.Route("/media", func(media chi.Router) {
			media.Post("/{mediaId}/views", s.RecordMediaView)
			media.Get("/content/*", s.MediaContent)
			media.With(auth).Delete("/{mediaId}", s.DeleteMedia)
		})

		api.Route("/stories", func(stories chi.Router) {
			stories.Get("/", s.ListStories)
			stories.With(auth).Delete("/{storyId}", s.DeleteStory)
		})

		api.Route("/sponsors", func(sp chi.Router) {
			sp.Use(auth)
			sp.Post("/apply", s.ApplySponsor)
			sp.Get("/me", s.MySponsorProfile)
			sp.Group(func(sponsor chi.Router) {
				sponsor.Use(RequireAnyRole(services.RoleSponsor))
				sponsor.Post("/pledges", s.Pledge)
				sponsor.Get("/me/sponsorships", s.MySponsorships)
				sponsor.Get("/me/report", s.SponsorReport)
			})
		})

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(auth)
			admin.Use(RequireAnyRole(services.RoleAdmin))
			admin.Get("/users", s.ListUsers)
			admin.Put("/users/{userId}/roles", s.SetUserRoles)
			admin.Put("/users/{userId}/active", s.SetUserActive)
			admin.Get("/events", s.AdminListEvents)
			admin.Get("/sponsors", s.AdminListSponsorProfiles)
			admin.Get("/sponsorships", s.AdminListSponsorships)
			admin.Put("/sponsorships/{sponsorshipId}/approval", s.DecideSponsorship)
			admin.Get("/moderation/queue", s.ModerationQueue)
			admin.Post("/moderation/{kind}/{entityId}", s.Moderate)
			admin.Get("/audit-logs", s.AuditLogs)
			admin.Get("/analytics/overview", s.AnalyticsOverview)
			admin.Get("/health/history", s.HealthHistory)
		})
	})

	r.Get("/ws/activity", s.ActivitySocket)
	return r
}

func (s *Server) runEffects(effects []services.Effect) {
	s.Effects.RunDetached(effects)
}
