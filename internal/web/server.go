// Package web serves the dealership website and its admin screens.
package web

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nstyle/dealership/internal/logging"
	"github.com/nstyle/dealership/internal/session"
	"github.com/nstyle/dealership/internal/store"
)

// Options configures the site.
type Options struct {
	GalleryDir   string
	MediaDir     string
	PromoVideo   string // file name under MediaDir shown on the home page
	UploadLimit  int64  // bytes
	SecureCookie bool
	SessionTTL   time.Duration
}

// Server holds the site's dependencies.
type Server struct {
	opts     Options
	store    *store.Store
	sessions session.Store
	log      zerolog.Logger
	engine   *gin.Engine
}

// New builds the router. The gallery and media directories are created if
// missing.
func New(opts Options, st *store.Store, sessions session.Store, log zerolog.Logger) (*Server, error) {
	if st == nil || sessions == nil {
		return nil, errors.New("web: store and session store are required")
	}
	if opts.UploadLimit <= 0 {
		opts.UploadLimit = 5 << 20
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = session.DefaultTTL
	}
	for _, dir := range []string{opts.GalleryDir, opts.MediaDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	pages, err := loadPages()
	if err != nil {
		return nil, err
	}

	s := &Server{opts: opts, store: st, sessions: sessions, log: log}

	r := gin.New()
	if err := r.SetTrustedProxies(nil); err != nil {
		return nil, err
	}
	r.HTMLRender = pages
	r.MaxMultipartMemory = opts.UploadLimit
	r.Use(logging.GinLogger(log), gin.CustomRecovery(s.recover))
	s.routes(r)
	s.engine = r
	return s, nil
}

// formOverhead is the room a request body gets beyond the upload limit for
// the remaining form fields and multipart framing.
const formOverhead = 1 << 20

// Handler returns the site with method override applied ahead of routing.
func (s *Server) Handler() http.Handler {
	return methodOverride(s.opts.UploadLimit+formOverhead, s.engine)
}

func (s *Server) routes(r *gin.Engine) {
	r.StaticFS("/static", http.FS(staticFS()))
	if s.opts.GalleryDir != "" {
		r.Static("/gallery", s.opts.GalleryDir)
	}
	if s.opts.MediaDir != "" {
		r.Static("/media", s.opts.MediaDir)
	}

	r.GET("/", s.home)
	r.GET("/inventory", s.inventory)
	r.GET("/inventory/:id", s.inventoryShow)
	r.GET("/about", s.static("about", "会社概要", "N-STYLEの会社概要。石狩市で創業20年、地域のお客様に信頼される中古車販売店です。"))
	r.GET("/contact", s.static("contact", "お問い合わせ", "N-STYLEへのお問い合わせはこちらから。ご質問・ご相談などお気軽にご連絡ください。"))
	r.GET("/access", s.static("access", "アクセス", "N-STYLEへのアクセス方法。店舗所在地、地図、交通手段をご案内いたします。"))
	r.GET("/api/announcements", s.apiAnnouncements)
	r.GET("/healthz", s.healthz)

	admin := r.Group("/admin")
	admin.GET("/login", s.loginPage)
	admin.POST("/login", s.login)
	admin.GET("/logout", s.logout)

	authed := admin.Group("", s.requireAdmin)
	authed.GET("", s.adminIndex)
	authed.GET("/new", s.newVehiclePage)
	authed.POST("", s.createVehicle)
	authed.GET("/:id/edit", s.editVehiclePage)
	authed.PUT("/:id", s.updateVehicle)
	authed.DELETE("/:id", s.deleteVehicle)

	authed.GET("/users", s.usersPage)
	authed.POST("/users", s.createUser)
	authed.DELETE("/users/:id", s.deleteUser)

	authed.GET("/announcements", s.announcementsPage)
	authed.POST("/announcements", s.createAnnouncement)
	authed.GET("/announcements/:id/edit", s.editAnnouncementPage)
	authed.PUT("/announcements/:id", s.updateAnnouncement)
	authed.DELETE("/announcements/:id", s.deleteAnnouncement)

	r.NoRoute(func(c *gin.Context) {
		s.notFound(c, "ページが見つかりません", "お探しのページは見つかりませんでした。")
	})
}

func (s *Server) recover(c *gin.Context, err any) {
	s.log.Error().Interface("panic", err).Str("path", c.Request.URL.Path).Msg("handler panic")
	c.HTML(http.StatusInternalServerError, "error", gin.H{
		"title":       "サーバーエラー",
		"description": "サーバーで予期せぬエラーが発生しました。",
		"message":     "しばらくしてからもう一度お試しください。",
	})
	c.Abort()
}

func (s *Server) healthz(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// promoVideo returns the public URL of the promo video if it has been rendered.
func (s *Server) promoVideo() string {
	if s.opts.MediaDir == "" || s.opts.PromoVideo == "" {
		return ""
	}
	if _, err := os.Stat(filepath.Join(s.opts.MediaDir, s.opts.PromoVideo)); err != nil {
		return ""
	}
	return "/media/" + s.opts.PromoVideo
}
