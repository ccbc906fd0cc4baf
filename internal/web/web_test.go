package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nstyle/dealership/internal/session"
	"github.com/nstyle/dealership/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testSite struct {
	t       *testing.T
	store   *store.Store
	handler http.Handler
	gallery string
	media   string
	cookie  *http.Cookie
}

func newTestSite(t *testing.T) *testSite {
	t.Helper()
	dir := t.TempDir()
	ctx := context.Background()

	st, err := store.Open(ctx, store.Options{Path: filepath.Join(dir, "site.sqlite"), PrimaryAdmin: "nstyle2025"})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	if _, err := st.SeedAdmin(ctx, "nstyle2025", "password"); err != nil {
		t.Fatal(err)
	}

	opts := Options{
		GalleryDir:  filepath.Join(dir, "gallery"),
		MediaDir:    filepath.Join(dir, "media"),
		PromoVideo:  "promo-sample.mp4",
		UploadLimit: 1 << 10,
		SessionTTL:  time.Hour,
	}
	srv, err := New(opts, st, session.NewMemoryStore(time.Hour), zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &testSite{t: t, store: st, handler: srv.Handler(), gallery: opts.GalleryDir, media: opts.MediaDir}
}

func (s *testSite) do(req *http.Request) *httptest.ResponseRecorder {
	s.t.Helper()
	if s.cookie != nil {
		req.AddCookie(s.cookie)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *testSite) get(path string) *httptest.ResponseRecorder {
	return s.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (s *testSite) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req)
}

func (s *testSite) login(user, pass string) *httptest.ResponseRecorder {
	s.t.Helper()
	w := s.postForm("/admin/login", url.Values{"username": {user}, "password": {pass}})
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie {
			s.cookie = c
		}
	}
	return w
}

func (s *testSite) addVehicle(v store.Vehicle) *store.Vehicle {
	s.t.Helper()
	if err := s.store.CreateVehicle(context.Background(), &v); err != nil {
		s.t.Fatal(err)
	}
	return &v
}

func expectRedirect(t *testing.T, w *httptest.ResponseRecorder, to string) {
	t.Helper()
	if w.Code != http.StatusFound || w.Header().Get("Location") != to {
		t.Fatalf("got %d Location=%q, want redirect to %s\n%s", w.Code, w.Header().Get("Location"), to, w.Body)
	}
}

func TestHomePage(t *testing.T) {
	s := newTestSite(t)
	ctx := context.Background()
	for _, title := range []string{"初売り", "GW休業", "新車入荷", "決算セール"} {
		if err := s.store.CreateAnnouncement(ctx, &store.Announcement{Title: title, Content: "本文"}); err != nil {
			t.Fatal(err)
		}
	}
	s.addVehicle(store.Vehicle{Name: "プリウス", Price: 180, Mileage: 42000})
	s.addVehicle(store.Vehicle{Name: "売約済の車", Status: "sold"})

	w := s.get("/")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"安心・安全・最安値", "決算セール", "プリウス", "180万円", "42,000km"} {
		if !strings.Contains(body, want) {
			t.Errorf("home page missing %q", want)
		}
	}
	for _, hidden := range []string{"初売り", "売約済の車", "/media/promo-sample.mp4"} {
		if strings.Contains(body, hidden) {
			t.Errorf("home page shows %q", hidden)
		}
	}

	if err := os.WriteFile(filepath.Join(s.media, "promo-sample.mp4"), []byte("mp4"), 0o644); err != nil {
		t.Fatal(err)
	}
	if body := s.get("/").Body.String(); !strings.Contains(body, `src="/media/promo-sample.mp4"`) {
		t.Error("promo video not embedded once rendered")
	}
	if w := s.get("/media/promo-sample.mp4"); w.Code != http.StatusOK || w.Body.String() != "mp4" {
		t.Errorf("media route = %d", w.Code)
	}
}

func TestInventory(t *testing.T) {
	s := newTestSite(t)
	cheap := s.addVehicle(store.Vehicle{Name: "ミラ", Price: 45, Features: []string{"ETC"}})
	s.addVehicle(store.Vehicle{Name: "アルファード", Price: 420})
	sold := s.addVehicle(store.Vehicle{Name: "ノート", Price: 60, Status: "sold"})

	body := s.get("/inventory?price=100").Body.String()
	if !strings.Contains(body, "ミラ") || strings.Contains(body, "アルファード") || strings.Contains(body, "ノート") {
		t.Errorf("price filter wrong:\n%s", body)
	}
	if !strings.Contains(body, `value="100" selected`) {
		t.Error("selected price bucket not kept")
	}

	w := s.get("/inventory/" + itoa(cheap.ID))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ETC") {
		t.Errorf("detail = %d", w.Code)
	}
	for _, path := range []string{"/inventory/" + itoa(sold.ID), "/inventory/abc", "/inventory/999"} {
		if w := s.get(path); w.Code != http.StatusNotFound {
			t.Errorf("%s = %d, want 404", path, w.Code)
		}
	}
}

func TestStaticPagesAndNotFound(t *testing.T) {
	s := newTestSite(t)
	for _, path := range []string{"/about", "/contact", "/access", "/static/js/script.js", "/static/css/style.css"} {
		if w := s.get(path); w.Code != http.StatusOK {
			t.Errorf("%s = %d", path, w.Code)
		}
	}
	w := s.get("/no/such/page")
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "ページが見つかりません") {
		t.Errorf("unknown route = %d", w.Code)
	}
	if w := s.get("/healthz"); w.Code != http.StatusOK {
		t.Errorf("healthz = %d", w.Code)
	}
}

func TestAPIAnnouncements(t *testing.T) {
	s := newTestSite(t)
	for i := 0; i < 5; i++ {
		a := &store.Announcement{Title: "お知らせ" + itoa(int64(i)), Content: "本文"}
		if err := s.store.CreateAnnouncement(context.Background(), a); err != nil {
			t.Fatal(err)
		}
	}

	decode := func(w *httptest.ResponseRecorder) []map[string]any {
		t.Helper()
		if w.Code != http.StatusOK {
			t.Fatalf("status %d", w.Code)
		}
		var out []map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatal(err)
		}
		return out
	}

	if got := decode(s.get("/api/announcements")); len(got) != 3 {
		t.Errorf("default page size = %d", len(got))
	}
	got := decode(s.get("/api/announcements?offset=3&limit=3"))
	if len(got) != 2 {
		t.Fatalf("second page = %d", len(got))
	}
	if got[0]["icon_class"] != store.DefaultIcon || got[0]["created_at"] == nil {
		t.Errorf("item = %v", got[0])
	}
	if got := decode(s.get("/api/announcements?offset=x&limit=0")); len(got) != 3 {
		t.Errorf("bad params = %d", len(got))
	}
}

func TestStoreFailureRendersErrorPage(t *testing.T) {
	s := newTestSite(t)
	s.store.Close()

	w := s.get("/")
	if w.Code != http.StatusInternalServerError || !strings.Contains(w.Body.String(), "トップページの読み込みに失敗しました") {
		t.Errorf("home with closed store = %d", w.Code)
	}
	w = s.get("/api/announcements")
	if w.Code != http.StatusInternalServerError || !strings.Contains(w.Body.String(), "Failed to fetch announcements") {
		t.Errorf("api with closed store = %d %s", w.Code, w.Body)
	}
}

func TestAdminRequiresLogin(t *testing.T) {
	s := newTestSite(t)
	for _, path := range []string{"/admin", "/admin/new", "/admin/users", "/admin/announcements"} {
		expectRedirect(t, s.get(path), "/admin/login")
	}
	expectRedirect(t, s.postForm("/admin/users", url.Values{"username": {"x"}, "password": {"y"}}), "/admin/login")
	if _, err := s.store.UserByName(context.Background(), "x"); err == nil {
		t.Error("unauthenticated request created a user")
	}
}

func TestLoginFlow(t *testing.T) {
	s := newTestSite(t)

	expectRedirect(t, s.login("nstyle2025", "wrong"), "/admin/login")
	w := s.get("/admin/login")
	if !strings.Contains(w.Body.String(), badLogin) {
		t.Error("failed login message not shown")
	}
	if strings.Contains(s.get("/admin/login").Body.String(), badLogin) {
		t.Error("flash message shown twice")
	}

	expectRedirect(t, s.login("nstyle2025", "password"), "/admin")
	if w := s.get("/admin"); w.Code != http.StatusOK {
		t.Fatalf("admin after login = %d", w.Code)
	}

	expectRedirect(t, s.get("/admin/logout"), "/admin/login")
	expectRedirect(t, s.get("/admin"), "/admin/login")
}

func multipartVehicle(t *testing.T, fields map[string]string, filename, contentType string, data []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if filename != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="`+filename+`"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(data)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestAdminVehicleLifecycle(t *testing.T) {
	s := newTestSite(t)
	s.login("nstyle2025", "password")
	ctx := context.Background()

	body, ct := multipartVehicle(t, map[string]string{
		"name": "フィット", "price": "98", "mileage": "35000", "features": "ナビ\nETC\n",
	}, "Fit.JPG", "image/jpeg", []byte("jpeg"))
	req := httptest.NewRequest(http.MethodPost, "/admin", body)
	req.Header.Set("Content-Type", ct)
	expectRedirect(t, s.do(req), "/admin")

	cars, _ := s.store.Vehicles(ctx)
	if len(cars) != 1 {
		t.Fatalf("vehicles = %d", len(cars))
	}
	car := cars[0]
	if car.Status != store.StatusAvailable || len(car.Features) != 2 || car.Price != 98 {
		t.Errorf("stored = %+v", car)
	}
	name := strings.TrimPrefix(car.ImagePath, "/gallery/")
	if !strings.HasPrefix(name, "car-") || !strings.HasSuffix(name, ".jpg") {
		t.Errorf("image path = %s", car.ImagePath)
	}
	if _, err := os.Stat(filepath.Join(s.gallery, name)); err != nil {
		t.Errorf("upload not saved: %v", err)
	}
	if w := s.get(car.ImagePath); w.Code != http.StatusOK {
		t.Errorf("gallery route = %d", w.Code)
	}

	// Update without a new image keeps the old one.
	body, ct = multipartVehicle(t, map[string]string{"name": "フィット RS", "price": "105", "status": "sold"}, "", "", nil)
	req = httptest.NewRequest(http.MethodPost, "/admin/"+itoa(car.ID)+"?_method=PUT", body)
	req.Header.Set("Content-Type", ct)
	expectRedirect(t, s.do(req), "/admin")
	updated, _ := s.store.Vehicle(ctx, car.ID)
	if updated.Name != "フィット RS" || updated.Status != "sold" || updated.ImagePath != car.ImagePath {
		t.Errorf("updated = %+v", updated)
	}

	if w := s.get("/admin/" + itoa(car.ID) + "/edit"); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "フィット RS") {
		t.Errorf("edit page = %d", w.Code)
	}
	if w := s.get("/admin/999/edit"); w.Code != http.StatusNotFound {
		t.Errorf("edit missing = %d", w.Code)
	}

	expectRedirect(t, s.postForm("/admin/"+itoa(car.ID), url.Values{"_method": {"DELETE"}}), "/admin")
	if _, err := s.store.Vehicle(ctx, car.ID); err == nil {
		t.Error("vehicle not deleted")
	}
	if w := s.postForm("/admin/"+itoa(car.ID), url.Values{"_method": {"DELETE"}}); w.Code != http.StatusNotFound {
		t.Errorf("delete missing = %d", w.Code)
	}
}

func TestAdminUploadRejected(t *testing.T) {
	s := newTestSite(t)
	s.login("nstyle2025", "password")

	cases := []struct {
		name, filename, contentType string
		data                        []byte
	}{
		{"not an image", "notes.txt", "text/plain", []byte("hello")},
		{"too large", "big.png", "image/png", bytes.Repeat([]byte{1}, 2<<10)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, ct := multipartVehicle(t, map[string]string{"name": "x"}, tc.filename, tc.contentType, tc.data)
			req := httptest.NewRequest(http.MethodPost, "/admin", body)
			req.Header.Set("Content-Type", ct)
			if w := s.do(req); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d", w.Code)
			}
		})
	}
	if cars, _ := s.store.Vehicles(context.Background()); len(cars) != 0 {
		t.Errorf("rejected upload stored %d vehicles", len(cars))
	}
}

func TestAdminOversizedBodyRejectedBeforeBuffering(t *testing.T) {
	s := newTestSite(t)
	s.login("nstyle2025", "password")

	huge := bytes.Repeat([]byte{1}, formOverhead+4<<10)
	body, ct := multipartVehicle(t, map[string]string{"name": "x"}, "huge.png", "image/png", huge)
	req := httptest.NewRequest(http.MethodPost, "/admin", body)
	req.Header.Set("Content-Type", ct)

	w := s.do(req)
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), errTooLarge.Error()) {
		t.Fatalf("status = %d body = %q", w.Code, w.Body)
	}
	if entries, _ := os.ReadDir(s.gallery); len(entries) != 0 {
		t.Errorf("gallery has %d files", len(entries))
	}
	if cars, _ := s.store.Vehicles(context.Background()); len(cars) != 0 {
		t.Errorf("stored %d vehicles", len(cars))
	}
}

func TestLoginIssuesFreshSession(t *testing.T) {
	s := newTestSite(t)

	// A failed login leaves the client with an anonymous session id.
	s.login("nstyle2025", "wrong")
	if s.cookie == nil {
		t.Fatal("no session cookie after failed login")
	}
	before := s.cookie

	expectRedirect(t, s.login("nstyle2025", "password"), "/admin")
	if s.cookie.Value == before.Value {
		t.Fatal("login kept the pre-login session id")
	}
	if w := s.get("/admin"); w.Code != http.StatusOK {
		t.Errorf("new session not authenticated: %d", w.Code)
	}

	s.cookie = before
	expectRedirect(t, s.get("/admin"), "/admin/login")
}

func TestAdminUsers(t *testing.T) {
	s := newTestSite(t)
	s.login("nstyle2025", "password")
	ctx := context.Background()

	if w := s.postForm("/admin/users", url.Values{"username": {"staff"}}); w.Code != http.StatusBadRequest {
		t.Errorf("missing password = %d", w.Code)
	}
	expectRedirect(t, s.postForm("/admin/users", url.Values{"username": {"staff"}, "password": {"pw"}}), "/admin/users")
	if w := s.postForm("/admin/users", url.Values{"username": {"staff"}, "password": {"pw"}}); w.Code != http.StatusConflict {
		t.Errorf("duplicate = %d", w.Code)
	}
	if w := s.get("/admin/users"); !strings.Contains(w.Body.String(), "staff") {
		t.Error("users page missing new account")
	}

	primary, _ := s.store.UserByName(ctx, "nstyle2025")
	if w := s.postForm("/admin/users/"+itoa(primary.ID), url.Values{"_method": {"DELETE"}}); w.Code != http.StatusForbidden {
		t.Errorf("delete primary = %d", w.Code)
	}
	staff, _ := s.store.UserByName(ctx, "staff")
	expectRedirect(t, s.postForm("/admin/users/"+itoa(staff.ID), url.Values{"_method": {"DELETE"}}), "/admin/users")
	if _, err := s.store.UserByName(ctx, "staff"); err == nil {
		t.Error("staff not deleted")
	}
}

func TestAdminAnnouncements(t *testing.T) {
	s := newTestSite(t)
	s.login("nstyle2025", "password")
	ctx := context.Background()

	if w := s.postForm("/admin/announcements", url.Values{"title": {"件名のみ"}}); w.Code != http.StatusBadRequest {
		t.Errorf("missing content = %d", w.Code)
	}
	expectRedirect(t, s.postForm("/admin/announcements", url.Values{"title": {"臨時休業"}, "content": {"本日休業"}}), "/admin/announcements")

	list, _ := s.store.Announcements(ctx, -1, 0)
	if len(list) != 1 || list[0].IconClass != store.DefaultIcon {
		t.Fatalf("announcements = %+v", list)
	}
	id := itoa(list[0].ID)

	if w := s.get("/admin/announcements/" + id + "/edit"); w.Code != http.StatusOK {
		t.Errorf("edit page = %d", w.Code)
	}
	if w := s.get("/admin/announcements/999/edit"); w.Code != http.StatusNotFound {
		t.Errorf("edit missing = %d", w.Code)
	}

	expectRedirect(t, s.postForm("/admin/announcements/"+id+"?_method=PUT",
		url.Values{"title": {"臨時休業"}, "content": {"明日休業"}, "icon_class": {"fas fa-store"}}), "/admin/announcements")
	a, _ := s.store.Announcement(ctx, list[0].ID)
	if a.Content != "明日休業" || a.IconClass != "fas fa-store" {
		t.Errorf("updated = %+v", a)
	}

	expectRedirect(t, s.postForm("/admin/announcements/"+id, url.Values{"_method": {"DELETE"}}), "/admin/announcements")
	if _, err := s.store.Announcement(ctx, list[0].ID); err == nil {
		t.Error("announcement not deleted")
	}
}

func TestMethodOverride(t *testing.T) {
	var got string
	h := methodOverride(1<<10, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { got = r.Method }))

	cases := []struct {
		method, target, body, want string
	}{
		{http.MethodPost, "/x", "_method=put", http.MethodPut},
		{http.MethodPost, "/x?_method=DELETE", "", http.MethodDelete},
		{http.MethodPost, "/x", "_method=TRACE", http.MethodPost},
		{http.MethodGet, "/x?_method=DELETE", "", http.MethodGet},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.target, strings.NewReader(tc.body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		h.ServeHTTP(httptest.NewRecorder(), req)
		if got != tc.want {
			t.Errorf("%s %s %q -> %s, want %s", tc.method, tc.target, tc.body, got, tc.want)
		}
	}
}

func TestMethodOverrideCapsBody(t *testing.T) {
	var method string
	var readErr error
	h := methodOverride(64, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		_, readErr = io.ReadAll(r.Body)
	}))

	body := "_method=PUT&notes=" + strings.Repeat("a", 4096)
	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if method != http.MethodPost {
		t.Errorf("oversized body still overrode method to %s", method)
	}
	var tooLarge *http.MaxBytesError
	if !errors.As(readErr, &tooLarge) {
		t.Errorf("body read error = %v, want MaxBytesError", readErr)
	}
}

func TestThousands(t *testing.T) {
	for in, want := range map[int]string{0: "0", 999: "999", 1000: "1,000", 42000: "42,000", 1234567: "1,234,567", -5000: "-5,000"} {
		if got := thousands(in); got != want {
			t.Errorf("thousands(%d) = %s, want %s", in, got, want)
		}
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
