package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nstyle/dealership/internal/store"
)

const homeItems = 3

func (s *Server) home(c *gin.Context) {
	ctx := c.Request.Context()
	announcements, err := s.store.Announcements(ctx, homeItems, 0)
	if err != nil {
		s.fail(c, err, "トップページの読み込みに失敗しました")
		return
	}
	cars, err := s.store.RecentVehicles(ctx, homeItems)
	if err != nil {
		s.fail(c, err, "トップページの読み込みに失敗しました")
		return
	}
	c.HTML(http.StatusOK, "index", gin.H{
		"title":         "N-STYLE - 中古車販売",
		"description":   "石狩市で創業20年、地域のお客様に寄り添った中古車販売サービスを提供",
		"catchphrase":   "安心・安全・最安値",
		"announcements": announcements,
		"cars":          cars,
		"promoVideo":    s.promoVideo(),
	})
}

func (s *Server) inventory(c *gin.Context) {
	f := store.InventoryFilter{
		Price:        c.Query("price"),
		FuelType:     c.Query("fuel_type"),
		Transmission: c.Query("transmission"),
	}
	if n, err := strconv.Atoi(c.Query("mileage")); err == nil {
		f.MaxMileage = n
	}

	cars, err := s.store.Inventory(c.Request.Context(), f)
	if err != nil {
		s.fail(c, err, "在庫情報の取得に失敗しました")
		return
	}
	c.HTML(http.StatusOK, "inventory/index", gin.H{
		"title":       "在庫情報",
		"description": "N-STYLEの中古車在庫一覧。豊富なラインナップからあなたにぴったりの一台をお選びください",
		"cars":        cars,
		"query": gin.H{
			"price":        f.Price,
			"fuel_type":    f.FuelType,
			"transmission": f.Transmission,
			"mileage":      c.Query("mileage"),
		},
	})
}

func (s *Server) inventoryShow(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		s.notFound(c, "車両が見つかりません", "お探しの車両は見つかりませんでした。")
		return
	}
	car, err := s.store.AvailableVehicle(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.notFound(c, "車両が見つかりません", "お探しの車両は見つかりませんでした。")
		return
	}
	if err != nil {
		s.fail(c, err, "車両情報の取得に失敗しました")
		return
	}
	c.HTML(http.StatusOK, "inventory/show", gin.H{
		"title":       car.Name + " - 在庫情報",
		"description": car.Name + "の詳細情報ページです。",
		"car":         car,
	})
}

func (s *Server) static(page, title, description string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, page, gin.H{"title": title, "description": description})
	}
}

// apiAnnouncements pages through announcements for the home page's
// "load more" button.
func (s *Server) apiAnnouncements(c *gin.Context) {
	offset := queryInt(c, "offset", 0)
	limit := queryInt(c, "limit", homeItems)

	list, err := s.store.Announcements(c.Request.Context(), limit, offset)
	if err != nil {
		s.log.Error().Err(err).Msg("api announcements")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch announcements"})
		return
	}
	c.JSON(http.StatusOK, list)
}

// queryInt reads a positive integer query parameter. Missing, zero, negative
// or malformed values yield def.
func queryInt(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}
