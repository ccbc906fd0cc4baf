package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nstyle/dealership/internal/store"
)

func (s *Server) usersPage(c *gin.Context) {
	users, err := s.store.Users(c.Request.Context())
	if err != nil {
		s.fail(c, err, "アカウント情報の取得に失敗しました")
		return
	}
	c.HTML(http.StatusOK, "admin/users", gin.H{
		"title":       "アカウント管理",
		"description": "ユーザーアカウントの追加・削除を行います",
		"users":       users,
	})
}

func (s *Server) createUser(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")
	if username == "" || password == "" {
		c.String(http.StatusBadRequest, "ユーザー名とパスワードは必須です")
		return
	}
	_, err := s.store.CreateUser(c.Request.Context(), username, password)
	if errors.Is(err, store.ErrDuplicate) {
		c.String(http.StatusConflict, "このユーザー名は既に使用されています")
		return
	}
	if err != nil {
		s.fail(c, err, "アカウントの追加に失敗しました")
		return
	}
	s.log.Info().Str("username", username).Msg("user created")
	c.Redirect(http.StatusFound, "/admin/users")
}

func (s *Server) deleteUser(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		c.Redirect(http.StatusFound, "/admin/users")
		return
	}
	err := s.store.DeleteUser(c.Request.Context(), id)
	switch {
	case errors.Is(err, store.ErrProtected):
		c.String(http.StatusForbidden, "メイン管理者は削除できません")
		return
	case err != nil && !errors.Is(err, store.ErrNotFound):
		s.fail(c, err, "アカウントの削除に失敗しました")
		return
	}
	c.Redirect(http.StatusFound, "/admin/users")
}

func (s *Server) announcementsPage(c *gin.Context) {
	list, err := s.store.Announcements(c.Request.Context(), -1, 0)
	if err != nil {
		s.fail(c, err, "お知らせ情報の取得に失敗しました")
		return
	}
	c.HTML(http.StatusOK, "admin/announcements", gin.H{
		"title":         "お知らせ管理",
		"description":   "トップページのお知らせを追加・削除します",
		"announcements": list,
		"defaultIcon":   store.DefaultIcon,
	})
}

func announcementFromForm(c *gin.Context) *store.Announcement {
	return &store.Announcement{
		Title:     strings.TrimSpace(c.PostForm("title")),
		Content:   strings.TrimSpace(c.PostForm("content")),
		IconClass: strings.TrimSpace(c.PostForm("icon_class")),
	}
}

func (s *Server) createAnnouncement(c *gin.Context) {
	a := announcementFromForm(c)
	err := s.store.CreateAnnouncement(c.Request.Context(), a)
	if errors.Is(err, store.ErrMissingFields) {
		c.String(http.StatusBadRequest, "タイトルと内容は必須です")
		return
	}
	if err != nil {
		s.fail(c, err, "お知らせの追加に失敗しました")
		return
	}
	c.Redirect(http.StatusFound, "/admin/announcements")
}

func (s *Server) editAnnouncementPage(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		s.notFound(c, "お知らせが見つかりません", "指定されたお知らせは見つかりませんでした。")
		return
	}
	a, err := s.store.Announcement(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.notFound(c, "お知らせが見つかりません", "指定されたお知らせは見つかりませんでした。")
		return
	}
	if err != nil {
		s.fail(c, err, "お知らせ情報の取得に失敗しました")
		return
	}
	c.HTML(http.StatusOK, "admin/announcements/edit", gin.H{
		"title":        "お知らせ編集",
		"description":  "お知らせの内容を編集します",
		"announcement": a,
	})
}

func (s *Server) updateAnnouncement(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		s.notFound(c, "お知らせが見つかりません", "指定されたお知らせは見つかりませんでした。")
		return
	}
	a := announcementFromForm(c)
	a.ID = id
	err := s.store.UpdateAnnouncement(c.Request.Context(), a)
	switch {
	case errors.Is(err, store.ErrMissingFields):
		c.String(http.StatusBadRequest, "タイトルと内容は必須です")
		return
	case errors.Is(err, store.ErrNotFound):
		s.notFound(c, "お知らせが見つかりません", "指定されたお知らせは見つかりませんでした。")
		return
	case err != nil:
		s.fail(c, err, "お知らせの更新に失敗しました")
		return
	}
	c.Redirect(http.StatusFound, "/admin/announcements")
}

func (s *Server) deleteAnnouncement(c *gin.Context) {
	id, ok := paramID(c)
	if ok {
		err := s.store.DeleteAnnouncement(c.Request.Context(), id)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			s.fail(c, err, "お知らせの削除に失敗しました")
			return
		}
	}
	c.Redirect(http.StatusFound, "/admin/announcements")
}
