package api

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vietanh2810/certcheck-api/docs"
	v1 "github.com/vietanh2810/certcheck-api/internal/api/handler/v1"
	"github.com/vietanh2810/certcheck-api/internal/api/middleware"
	"github.com/vietanh2810/certcheck-api/internal/config"
	"github.com/vietanh2810/certcheck-api/internal/document"
	"github.com/vietanh2810/certcheck-api/internal/domain"
	"github.com/vietanh2810/certcheck-api/internal/mailer"
	"github.com/vietanh2810/certcheck-api/internal/qrcodec"
	"github.com/vietanh2810/certcheck-api/internal/render"
	"github.com/vietanh2810/certcheck-api/internal/repository"
	"github.com/vietanh2810/certcheck-api/internal/repository/dao"
	"github.com/vietanh2810/certcheck-api/internal/service"
)

type Server struct {
	Config   *config.AppConfig
	Router   *gin.Engine
	Registry *prometheus.Registry

	store    artifactStore
	renderer *swappableRenderer
	codec    *qrcodec.Codec
}

func NewServer(ctx context.Context, conf *config.AppConfig, db *gorm.DB) (*Server, error) {
	gin.SetMode(conf.Gin.Mode)
	engine := gin.New()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store, err := openArtifactStore(ctx, conf.Storage, conf.API.PublicBaseURL, registry)
	if err != nil {
		return nil, fmt.Errorf("openArtifactStore -> %w", err)
	}

	s := &Server{
		Config:   conf,
		Router:   engine,
		Registry: registry,
		store:    store,
		codec:    qrcodec.New(),
	}
	s.renderer = newSwappableRenderer(s.newRenderer(conf.RenderSettings()))
	conf.OnReload(func(c *config.AppConfig) {
		s.renderer.swap(s.newRenderer(c.RenderSettings()))
	})

	s.MountMiddlewares()

	repos := newRepositories(db)
	eventSvc := service.NewEventService(repos.events)
	checkinSvc := service.NewCheckinService(repos.checkins, repos.events, registry)
	certificateSvc := s.initCertificateService(repos)

	s.MountHandlers(handlers{
		auth:        v1.NewAuthHandler(conf.API, service.NewAuthService(repos.users)),
		user:        v1.NewUserHandler(service.NewUserService(repos.users)),
		event:       v1.NewEventHandler(eventSvc),
		template:    v1.NewTemplateHandler(service.NewTemplateService(repos.templates), s.renderer),
		certificate: v1.NewCertificateHandler(certificateSvc, eventSvc),
		checkin:     v1.NewCheckinHandler(checkinSvc, eventSvc),
		scanner: v1.NewScannerHandler(v1.ScannerDeps{
			Decoder:  s.codec,
			Badges:   certificateSvc,
			Checkins: checkinSvc,
			Events:   eventSvc,
			Interval: func() time.Duration { return conf.ScannerSettings().SampleInterval },
		}),
		artifact: v1.NewArtifactHandler(store),
	})

	return s, nil
}

type repositories struct {
	users        *repository.UserRepository
	events       *repository.EventRepository
	templates    *repository.TemplateRepository
	certificates *repository.CertificateRepository
	checkins     *repository.CheckinRepository
}

func newRepositories(db *gorm.DB) repositories {
	return repositories{
		users:        repository.NewUserRepository(dao.NewUserDAO(db)),
		events:       repository.NewEventRepository(dao.NewEventDAO(db)),
		templates:    repository.NewTemplateRepository(dao.NewTemplateDAO(db)),
		certificates: repository.NewCertificateRepository(dao.NewCertificateDAO(db)),
		checkins:     repository.NewCheckinRepository(dao.NewCheckinDAO(db)),
	}
}

func (s *Server) newRenderer(conf config.RenderConfig) *render.Renderer {
	return render.NewRenderer(s.codec,
		render.WithSupersample(conf.Supersample),
		render.WithBackgroundTimeout(conf.BackgroundTimeout),
	)
}

func (s *Server) initCertificateService(repos repositories) *service.CertificateService {
	var mail service.MailSender
	switch {
	case s.Config.Mail.Enabled:
		mail = mailer.NewSMTPSender(mailer.Config{
			Host:        s.Config.Mail.Host,
			Port:        s.Config.Mail.Port,
			Username:    s.Config.Mail.Username,
			Password:    s.Config.Mail.Password,
			FromAddress: s.Config.Mail.FromAddress,
			FromName:    s.Config.Mail.FromName,
		})
	case s.Config.API.Environment != "prod":
		mail = mailer.LogSender{}
	}

	deps := service.CertificateServiceDeps{
		Renderer:      s.renderer,
		Store:         s.store,
		Repo:          repos.certificates,
		Events:        repos.events,
		Templates:     repos.templates,
		Documents:     document.NewBuilder(),
		Mail:          mail,
		PublicBaseURL: s.Config.API.PublicBaseURL,
		Registerer:    s.Registry,
	}

	return service.NewCertificateService(deps)
}

func (s *Server) MountMiddlewares() {
	// Logger and Recovery are needed unless we use gin.Default().
	s.Router.Use(gin.Logger())
	s.Router.Use(gin.Recovery())
	s.Router.Use(requestid.New())
	s.Router.Use(middleware.ConfigCORS(s.Config.API.AllowedCORSDomains))
}

type handlers struct {
	auth        *v1.AuthHandler
	user        *v1.UserHandler
	event       *v1.EventHandler
	template    *v1.TemplateHandler
	certificate *v1.CertificateHandler
	checkin     *v1.CheckinHandler
	scanner     *v1.ScannerHandler
	artifact    *v1.ArtifactHandler
}

func (s *Server) MountHandlers(h handlers) {
	const basePath = "/api/v1"

	auth := s.Router.Group(basePath)
	{
		auth.POST("/auth/signup", h.auth.HandleSignup)
		auth.POST("/auth/login", h.auth.HandleLogin)
	}

	api := s.Router.Group(basePath, middleware.NewAuthenticator(s.Config.API.JWTSigningKey).VerifyJWT())
	{
		api.GET("/users/me", h.user.HandleGetMe)

		api.POST("/events", h.event.HandleCreateEvent)
		api.GET("/events", h.event.HandleListEvents)
		api.GET("/events/:eventID", h.event.HandleGetEvent)
		api.POST("/events/:eventID/registrations", h.event.HandleAddRegistration)
		api.GET("/events/:eventID/registrations", h.event.HandleListRegistrations)

		api.POST("/templates", h.template.HandleCreateTemplate)
		api.GET("/templates/:templateID", h.template.HandleGetTemplate)
		api.PUT("/templates/:templateID", h.template.HandleUpdateTemplate)
		api.GET("/templates/:templateID/preview", h.template.HandlePreviewTemplate)

		api.POST("/events/:eventID/certificates", h.certificate.HandleGenerate)
		api.GET("/events/:eventID/certificates", h.certificate.HandleListByEvent)

		api.GET("/events/:eventID/checkins", h.checkin.HandleOverview)
		api.PUT("/events/:eventID/checkins", h.checkin.HandleSetStatus)
		api.POST("/events/:eventID/checkins/toggle", h.checkin.HandleToggle)
		api.POST("/events/:eventID/checkins/bulk-toggle", h.checkin.HandleBulkToggle)
		api.GET("/events/:eventID/checkins/:registrationID", h.checkin.HandleStatus)
		// Scanner
		api.GET("/events/:eventID/scanner", h.scanner.HandleWebSocket)
	}

	// Public: the QR code on a certificate resolves here.
	s.Router.GET("/certificates/:certificateID", h.certificate.HandlePublicView)
	if s.Config.Storage.Backend == config.StorageBadger {
		s.Router.GET("/artifacts/*path", h.artifact.HandleGetArtifact)
	}

	s.Router.GET("/", v1.HandleHealthcheck)
	s.Router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{Registry: s.Registry})))

	// Setup Swagger UI.
	docs.SwaggerInfo.Host = s.Config.API.BaseURL
	docs.SwaggerInfo.BasePath = basePath
	docs.SwaggerInfo.Title = "Certificates & check-in API"
	docs.SwaggerInfo.Description = "Certificate generation with QR badges and an idempotent event check-in ledger."
	docs.SwaggerInfo.Version = "1.0"
	s.Router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))
}

func (s *Server) Close() error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("s.store.Close -> %w", err)
	}
	return nil
}

// swappableRenderer lets a config reload replace the renderer while
// generation runs keep the one they started with.
type swappableRenderer struct {
	current atomic.Pointer[render.Renderer]
}

func newSwappableRenderer(r *render.Renderer) *swappableRenderer {
	sr := &swappableRenderer{}
	sr.current.Store(r)
	return sr
}

func (r *swappableRenderer) swap(next *render.Renderer) {
	r.current.Store(next)
	zap.L().Info("renderer reconfigured", zap.Int("supersample", next.Supersample()))
}

func (r *swappableRenderer) Render(ctx context.Context, tpl domain.Template, fields render.FieldResolver, qrPayload string) ([]byte, error) {
	return r.current.Load().Render(ctx, tpl, fields, qrPayload)
}
