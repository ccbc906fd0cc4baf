package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nstyle/dealership/internal/session"
)

const sessionCookie = "nstyle_sid"

// methodOverride lets HTML forms send PUT and DELETE as a POST carrying a
// _method field or query parameter. It runs before gin picks a route, so it
// also caps POST bodies at maxBody before anything parses them.
func methodOverride(maxBody int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			r.Body = http.MaxBytesReader(w, r.Body, maxBody)
			m := r.URL.Query().Get("_method")
			if m == "" {
				m = r.PostFormValue("_method")
			}
			switch m = strings.ToUpper(m); m {
			case http.MethodPut, http.MethodPatch, http.MethodDelete:
				r.Method = m
			}
		}
		next.ServeHTTP(w, r)
	})
}

// parseForm reads the request form once. It writes a 400 and returns false
// when the body is too large or malformed.
func (s *Server) parseForm(c *gin.Context) bool {
	err := c.Request.ParseMultipartForm(s.opts.UploadLimit)
	if err == nil || errors.Is(err, http.ErrNotMultipart) {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.String(http.StatusBadRequest, errTooLarge.Error())
		return false
	}
	s.log.Warn().Err(err).Msg("parse form")
	c.String(http.StatusBadRequest, "フォームを読み取れませんでした")
	return false
}

// sessionID returns the caller's session id. With create set, a missing or
// expired session is replaced by a new one and the cookie is (re)issued.
func (s *Server) sessionID(c *gin.Context, create bool) (string, error) {
	ctx := c.Request.Context()
	if id, err := c.Cookie(sessionCookie); err == nil && id != "" {
		_, err := s.sessions.Authenticated(ctx, id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, session.ErrNotFound) {
			return "", err
		}
	}
	if !create {
		return "", session.ErrNotFound
	}
	return s.newSession(c)
}

// newSession creates an empty session and points the cookie at it.
func (s *Server) newSession(c *gin.Context) (string, error) {
	id, err := s.sessions.Create(c.Request.Context())
	if err != nil {
		return "", err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, id, int(s.opts.SessionTTL.Seconds()), "/", "", s.opts.SecureCookie, true)
	return id, nil
}

// requireAdmin redirects to the login page unless the session is logged in.
func (s *Server) requireAdmin(c *gin.Context) {
	id, err := s.sessionID(c, false)
	if err == nil {
		var ok bool
		if ok, err = s.sessions.Authenticated(c.Request.Context(), id); err == nil && ok {
			c.Next()
			return
		}
	}
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		s.log.Warn().Err(err).Msg("session lookup failed")
	}
	c.Redirect(http.StatusFound, "/admin/login")
	c.Abort()
}
