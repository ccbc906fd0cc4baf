package web

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nstyle/dealership/internal/session"
	"github.com/nstyle/dealership/internal/store"
)

const badLogin = "ユーザー名またはパスワードが正しくありません"

var (
	errNotImage = errors.New("画像ファイルのみアップロード可能です")
	errTooLarge = errors.New("画像ファイルが大きすぎます")
)

func (s *Server) loginPage(c *gin.Context) {
	var msg string
	if id, err := s.sessionID(c, false); err == nil {
		msg, _ = s.sessions.Flash(c.Request.Context(), id)
	}
	c.HTML(http.StatusOK, "admin/login", gin.H{
		"title":       "管理者ログイン",
		"description": "N-STYLE 管理画面へのログインページです。",
		"message":     msg,
	})
}

func (s *Server) login(c *gin.Context) {
	ctx := c.Request.Context()
	id, err := s.sessionID(c, true)
	if err != nil {
		s.fail(c, err, "セッションの作成に失敗しました")
		return
	}

	_, err = s.store.Authenticate(ctx, c.PostForm("username"), c.PostForm("password"))
	switch {
	case err == nil:
		// Never promote an id the client chose before logging in.
		if err := s.sessions.Destroy(ctx, id); err != nil {
			s.log.Warn().Err(err).Msg("destroy pre-login session")
		}
		if id, err = s.newSession(c); err != nil {
			s.fail(c, err, "セッションの作成に失敗しました")
			return
		}
		if err := s.sessions.SetAuthenticated(ctx, id, true); err != nil {
			s.fail(c, err, "セッションの更新に失敗しました")
			return
		}
		c.Redirect(http.StatusFound, "/admin")
		return
	case errors.Is(err, store.ErrBadCredentials):
		_ = s.sessions.SetFlash(ctx, id, badLogin)
	default:
		s.log.Error().Err(err).Msg("login")
		_ = s.sessions.SetFlash(ctx, id, "サーバーエラーが発生しました")
	}
	c.Redirect(http.StatusFound, "/admin/login")
}

func (s *Server) logout(c *gin.Context) {
	if id, err := s.sessionID(c, false); err == nil {
		if err := s.sessions.Destroy(c.Request.Context(), id); err != nil {
			s.log.Error().Err(err).Msg("destroy session")
			c.String(http.StatusInternalServerError, "ログアウトに失敗しました")
			return
		}
	} else if !errors.Is(err, session.ErrNotFound) {
		s.log.Warn().Err(err).Msg("logout session lookup")
	}
	c.SetCookie(sessionCookie, "", -1, "/", "", s.opts.SecureCookie, true)
	c.Redirect(http.StatusFound, "/admin/login")
}

func (s *Server) adminIndex(c *gin.Context) {
	cars, err := s.store.Vehicles(c.Request.Context())
	if err != nil {
		s.fail(c, err, "管理画面の読み込みに失敗しました")
		return
	}
	c.HTML(http.StatusOK, "admin/index", gin.H{
		"title":       "在庫管理",
		"description": "N-STYLE 車両在庫管理システム",
		"cars":        cars,
	})
}

func (s *Server) newVehiclePage(c *gin.Context) {
	c.HTML(http.StatusOK, "admin/new", gin.H{
		"title":       "新規車両追加",
		"description": "新しい車両情報を登録します",
		"car":         &store.Vehicle{Status: store.StatusAvailable},
	})
}

// vehicleFromForm reads the shared vehicle form. Blank numbers read as zero.
func vehicleFromForm(c *gin.Context) *store.Vehicle {
	num := func(key string) int {
		n, _ := strconv.Atoi(strings.TrimSpace(c.PostForm(key)))
		return n
	}
	return &store.Vehicle{
		Name:         strings.TrimSpace(c.PostForm("name")),
		Model:        c.PostForm("model"),
		Year:         num("year"),
		Price:        num("price"),
		Mileage:      num("mileage"),
		Color:        c.PostForm("color"),
		FuelType:     c.PostForm("fuel_type"),
		Transmission: c.PostForm("transmission"),
		Status:       c.PostForm("status"),
		Description:  c.PostForm("description"),
		Features:     store.ParseFeatures(c.PostForm("features")),
		StoreName:    c.PostForm("store_name"),
	}
}

// saveUpload stores the optional "image" file in the gallery and returns its
// public path, or "" when no file was sent.
func (s *Server) saveUpload(c *gin.Context) (string, error) {
	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if err := s.checkUpload(fh); err != nil {
		return "", err
	}
	name := "car-" + uuid.NewString() + strings.ToLower(filepath.Ext(fh.Filename))
	if err := c.SaveUploadedFile(fh, filepath.Join(s.opts.GalleryDir, name)); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	return "/gallery/" + name, nil
}

func (s *Server) checkUpload(fh *multipart.FileHeader) error {
	if !strings.HasPrefix(fh.Header.Get("Content-Type"), "image/") {
		return errNotImage
	}
	if fh.Size > s.opts.UploadLimit {
		return errTooLarge
	}
	return nil
}

// uploadOrFail handles the upload and writes the response on failure.
func (s *Server) uploadOrFail(c *gin.Context, message string) (string, bool) {
	path, err := s.saveUpload(c)
	if errors.Is(err, errNotImage) || errors.Is(err, errTooLarge) {
		c.String(http.StatusBadRequest, err.Error())
		return "", false
	}
	if err != nil {
		s.fail(c, err, message)
		return "", false
	}
	return path, true
}

func (s *Server) createVehicle(c *gin.Context) {
	if !s.parseForm(c) {
		return
	}
	v := vehicleFromForm(c)
	if v.Name == "" {
		c.String(http.StatusBadRequest, "車名は必須です")
		return
	}
	path, ok := s.uploadOrFail(c, "車両の追加に失敗しました")
	if !ok {
		return
	}
	v.ImagePath = path

	if err := s.store.CreateVehicle(c.Request.Context(), v); err != nil {
		s.fail(c, err, "車両の追加に失敗しました")
		return
	}
	s.log.Info().Int64("id", v.ID).Str("name", v.Name).Msg("vehicle created")
	c.Redirect(http.StatusFound, "/admin")
}

func (s *Server) editVehiclePage(c *gin.Context) {
	car, ok := s.vehicleOr404(c)
	if !ok {
		return
	}
	c.HTML(http.StatusOK, "admin/edit", gin.H{
		"title":       "車両編集",
		"description": "車両情報を編集します",
		"car":         car,
	})
}

func (s *Server) vehicleOr404(c *gin.Context) (*store.Vehicle, bool) {
	id, ok := paramID(c)
	if !ok {
		s.notFound(c, "車両が見つかりません", "お探しの車両は見つかりませんでした。")
		return nil, false
	}
	car, err := s.store.Vehicle(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.notFound(c, "車両が見つかりません", "お探しの車両は見つかりませんでした。")
		return nil, false
	}
	if err != nil {
		s.fail(c, err, "車両情報の取得に失敗しました")
		return nil, false
	}
	return car, true
}

func (s *Server) updateVehicle(c *gin.Context) {
	current, ok := s.vehicleOr404(c)
	if !ok {
		return
	}
	if !s.parseForm(c) {
		return
	}
	v := vehicleFromForm(c)
	if v.Name == "" {
		c.String(http.StatusBadRequest, "車名は必須です")
		return
	}
	path, ok := s.uploadOrFail(c, "車両の更新に失敗しました")
	if !ok {
		return
	}
	v.ID = current.ID
	v.ImagePath = current.ImagePath
	if path != "" {
		v.ImagePath = path
	}

	if err := s.store.UpdateVehicle(c.Request.Context(), v); err != nil {
		s.fail(c, err, "車両の更新に失敗しました")
		return
	}
	c.Redirect(http.StatusFound, "/admin")
}

func (s *Server) deleteVehicle(c *gin.Context) {
	car, ok := s.vehicleOr404(c)
	if !ok {
		return
	}
	err := s.store.DeleteVehicle(c.Request.Context(), car.ID)
	if errors.Is(err, store.ErrNotFound) {
		s.notFound(c, "車両が見つかりません", "お探しの車両は見つかりませんでした。")
		return
	}
	if err != nil {
		s.fail(c, err, "車両の削除に失敗しました")
		return
	}
	c.Redirect(http.StatusFound, "/admin")
}
