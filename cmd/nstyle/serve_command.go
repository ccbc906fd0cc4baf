package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nstyle/dealership/internal/config"
	"github.com/nstyle/dealership/internal/session"
	"github.com/nstyle/dealership/internal/store"
	"github.com/nstyle/dealership/internal/web"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dealership website",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			site := cfg.Site
			if cmd.Flags().Changed("addr") {
				site.Addr = addr
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(runCtx, site, cfg.Promo.Output, ctx.log())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, or :$PORT)")
	return cmd
}

func serve(ctx context.Context, site config.Site, promoOutput string, log zerolog.Logger) error {
	if log.GetLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	st, err := store.Open(ctx, store.Options{Path: site.Database, PrimaryAdmin: site.AdminUser})
	if err != nil {
		return err
	}
	defer st.Close()
	log.Info().Str("path", site.Database).Msg("connected to sqlite database")

	created, err := st.SeedAdmin(ctx, site.AdminUser, site.AdminPassword)
	if err != nil {
		return err
	}
	if created {
		log.Info().Str("username", site.AdminUser).Msg("admin user created")
	}

	ttl := time.Duration(site.SessionHours) * time.Hour
	var sessions session.Store
	if site.RedisAddr != "" {
		rs, err := session.NewRedisStore(ctx, session.RedisConfig{Addr: site.RedisAddr, TTL: ttl})
		if err != nil {
			return err
		}
		defer rs.Close()
		sessions = rs
		log.Info().Str("addr", site.RedisAddr).Msg("using redis sessions")
	} else {
		sessions = session.NewMemoryStore(ttl)
	}

	srv, err := web.New(web.Options{
		GalleryDir:   site.GalleryDir,
		MediaDir:     site.MediaDir,
		PromoVideo:   promoVideoName(site.MediaDir, promoOutput),
		UploadLimit:  int64(site.UploadLimitMB) << 20,
		SecureCookie: site.SecureCookie,
		SessionTTL:   ttl,
	}, st, sessions, log)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              site.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", site.Addr).Msg("website listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", site.Addr, err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// promoVideoName returns the promo file name when the renderer writes into
// the site's media directory, so the home page can embed it.
func promoVideoName(mediaDir, output string) string {
	if mediaDir == "" || output == "" {
		return ""
	}
	rel, err := filepath.Rel(mediaDir, output)
	if err != nil || rel != filepath.Base(output) {
		return ""
	}
	return rel
}
