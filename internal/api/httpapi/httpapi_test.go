package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BearBump/GTLTrack/internal/cache/rediscache"
	"github.com/BearBump/GTLTrack/internal/models"
	"github.com/BearBump/GTLTrack/internal/services/admin"
	"github.com/BearBump/GTLTrack/internal/services/auth"
	"github.com/BearBump/GTLTrack/internal/services/inquiry"
	"github.com/BearBump/GTLTrack/internal/services/lookup"
	"github.com/BearBump/GTLTrack/internal/services/shipments"
	"github.com/BearBump/GTLTrack/internal/services/siteinfo"
	"github.com/BearBump/GTLTrack/internal/storage/memstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type failingTracker struct{}

func (failingTracker) Fetch(ctx context.Context, lr string) (*models.ShipmentRecord, error) {
	return nil, errors.New("permission denied")
}

type APISuite struct {
	suite.Suite

	mr   *miniredis.Miniredis
	repo *shipments.Service
	deps Deps
	opts Options
	srv  *httptest.Server
}

func (s *APISuite) SetupTest() {
	s.mr = miniredis.RunT(s.T())
	c := rediscache.New(s.mr.Addr())
	rl := rediscache.NewRateLimiter(s.mr.Addr())
	s.T().Cleanup(func() {
		_ = c.Close()
		_ = rl.Close()
	})

	hash, err := auth.HashPassword("s3cret", auth.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	s.Require().NoError(err)

	s.repo = shipments.New(memstore.New())
	tracker := lookup.NewTracker(s.repo, c, time.Minute)
	s.repo.OnWrite(tracker.Evict)
	s.deps = Deps{
		Tracker:  tracker,
		Admin:    admin.New(s.repo),
		Auth:     auth.New("admin@gtl.com", hash, c, 0),
		Inquiry:  inquiry.New("7023651572", 3*time.Second),
		Contacts: siteinfo.DefaultContacts(),
		Limiter:  rl,
		Ready:    c,
	}

	dir := s.T().TempDir()
	sw := filepath.Join(dir, "swagger.json")
	s.Require().NoError(os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))
	s.opts = Options{SwaggerPath: sw, TrackRateLimit: 100, InquiryRateLimit: 100}
	s.start()
}

func (s *APISuite) start() {
	if s.srv != nil {
		s.srv.Close()
	}
	s.srv = httptest.NewServer(New(s.deps, s.opts).Router())
	s.T().Cleanup(s.srv.Close)
}

func (s *APISuite) do(method, path, token string, body any) *http.Response {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		s.Require().NoError(err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, rd)
	s.Require().NoError(err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (s *APISuite) decode(resp *http.Response, v any) {
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(v))
}

func (s *APISuite) login() string {
	resp := s.do(http.MethodPost, "/api/admin/login", "", loginRequest{Email: "admin@gtl.com", Password: "s3cret"})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var out sessionResponse
	s.decode(resp, &out)
	s.Require().NotEmpty(out.Token)
	return out.Token
}

func (s *APISuite) TestHealthAndSiteInfo() {
	s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/healthz", "", nil).StatusCode)

	var branches []siteinfo.Branch
	s.decode(s.do(http.MethodGet, "/api/branches", "", nil), &branches)
	s.Require().Len(branches, 5)

	var contacts siteinfo.Contacts
	s.decode(s.do(http.MethodGet, "/api/contacts", "", nil), &contacts)
	s.Require().Equal("gatewaytranslogistic@gmail.com", contacts.Email)
}

func (s *APISuite) TestReadyz() {
	s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/readyz", "", nil).StatusCode)
	s.mr.Close()
	s.Require().Equal(http.StatusServiceUnavailable, s.do(http.MethodGet, "/readyz", "", nil).StatusCode)
}

func (s *APISuite) TestSwaggerServed() {
	resp := s.do(http.MethodGet, "/swagger.json", "", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	s.Require().Contains(string(body), `"swagger"`)
}

func (s *APISuite) TestTrack() {
	s.Require().NoError(s.repo.Save(context.Background(), models.ShipmentRecord{LR: "GTL1", Status: models.ShipmentStatusDelivered, Route: "Vapi", Date: "2025-01-01"}))

	resp := s.do(http.MethodGet, "/api/track/GTL1", "", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var out trackResponse
	s.decode(resp, &out)
	s.Require().Equal("found", out.State)
	s.Require().Equal(models.ShipmentStatusDelivered, out.Record.Status)

	resp = s.do(http.MethodGet, "/api/track/NOPE", "", nil)
	s.Require().Equal(http.StatusNotFound, resp.StatusCode)
	s.decode(resp, &out)
	s.Require().Equal("not_found", out.State)
	s.Require().Equal(lookup.MsgNotFound, out.Message)

	resp = s.do(http.MethodGet, "/api/track?lr=%20%20", "", nil)
	s.Require().Equal(http.StatusBadRequest, resp.StatusCode)
	s.decode(resp, &out)
	s.Require().Equal(lookup.MsgEmptyLR, out.Message)

	resp = s.do(http.MethodGet, "/api/track?lr=+GTL1+", "", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
}

func (s *APISuite) TestTrack_SeesAdminWrites() {
	tok := s.login()
	track := func(lr string) (int, trackResponse) {
		resp := s.do(http.MethodGet, "/api/track/"+lr, "", nil)
		var out trackResponse
		s.decode(resp, &out)
		return resp.StatusCode, out
	}

	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/api/admin/shipments", tok,
		models.ShipmentRecord{LR: "LR1", Status: models.ShipmentStatusPending, Route: "Vapi"}).StatusCode)
	code, out := track("LR1")
	s.Require().Equal(http.StatusOK, code)
	s.Require().Equal(models.ShipmentStatusPending, out.Record.Status)
	s.Require().True(s.mr.Exists(lookup.CurrentKey("LR1")))

	s.Require().Equal(http.StatusOK, s.do(http.MethodPut, "/api/admin/shipments/LR1", tok,
		models.ShipmentRecord{LR: "LR1", Status: models.ShipmentStatusDelivered, Route: "Vapi"}).StatusCode)
	code, out = track("LR1")
	s.Require().Equal(http.StatusOK, code)
	s.Require().Equal(models.ShipmentStatusDelivered, out.Record.Status)

	// переименование сбрасывает оба ключа
	s.Require().Equal(http.StatusOK, s.do(http.MethodPut, "/api/admin/shipments/LR1", tok,
		models.ShipmentRecord{LR: "LR2", Status: models.ShipmentStatusDelivered, Route: "Vapi"}).StatusCode)
	code, _ = track("LR1")
	s.Require().Equal(http.StatusNotFound, code)
	code, _ = track("LR2")
	s.Require().Equal(http.StatusOK, code)

	s.Require().Equal(http.StatusNoContent, s.do(http.MethodDelete, "/api/admin/shipments/LR2?confirm=true", tok, nil).StatusCode)
	code, out = track("LR2")
	s.Require().Equal(http.StatusNotFound, code)
	s.Require().Equal("not_found", out.State)
}

func (s *APISuite) TestTrack_StoreError() {
	s.deps.Tracker = failingTracker{}
	s.start()

	resp := s.do(http.MethodGet, "/api/track/GTL1", "", nil)
	s.Require().Equal(http.StatusBadGateway, resp.StatusCode)
	var out trackResponse
	s.decode(resp, &out)
	s.Require().Equal("error", out.State)
	s.Require().Equal(lookup.MsgFailed, out.Message)
}

func (s *APISuite) TestTrack_RateLimited() {
	s.opts.TrackRateLimit = 2
	s.start()

	s.Require().Equal(http.StatusNotFound, s.do(http.MethodGet, "/api/track/A1", "", nil).StatusCode)
	s.Require().Equal(http.StatusNotFound, s.do(http.MethodGet, "/api/track/A1", "", nil).StatusCode)
	resp := s.do(http.MethodGet, "/api/track/A1", "", nil)
	s.Require().Equal(http.StatusTooManyRequests, resp.StatusCode)
	s.Require().Equal("60", resp.Header.Get("Retry-After"))
}

func (s *APISuite) trackFrom(forwardedFor string) int {
	req, err := http.NewRequest(http.MethodGet, s.srv.URL+"/api/track/A1", nil)
	s.Require().NoError(err)
	req.Header.Set("X-Forwarded-For", forwardedFor)
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	_ = resp.Body.Close()
	return resp.StatusCode
}

func (s *APISuite) TestTrack_RateLimitIgnoresForwardedForByDefault() {
	s.opts.TrackRateLimit = 1
	s.start()

	s.Require().Equal(http.StatusNotFound, s.trackFrom("10.0.0.1"))
	s.Require().Equal(http.StatusTooManyRequests, s.trackFrom("10.0.0.2"))
}

func (s *APISuite) TestTrack_RateLimitTrustsProxyWhenEnabled() {
	s.opts.TrackRateLimit = 1
	s.opts.TrustProxy = true
	s.start()

	s.Require().Equal(http.StatusNotFound, s.trackFrom("10.0.0.1"))
	s.Require().Equal(http.StatusTooManyRequests, s.trackFrom("10.0.0.1"))
	s.Require().Equal(http.StatusNotFound, s.trackFrom("10.0.0.2"))
}

func (s *APISuite) TestTrack_LimiterDownFailsOpen() {
	s.mr.Close()
	// кэш тоже лежит, Tracker уходит в store
	s.Require().Equal(http.StatusNotFound, s.do(http.MethodGet, "/api/track/A1", "", nil).StatusCode)
}

func (s *APISuite) TestInquiry() {
	req := inquiry.Request{
		Material:    "AB",
		Weight:      "10 TONS",
		LoadType:    inquiry.LoadFull,
		Vehicle:     "Large (25T)",
		FromAddress: "Godown 1, Rahanal Village",
		ToAddress:   "Plot 7, Ambattur Estate",
		ToCity:      "Chennai",
	}
	resp := s.do(http.MethodPost, "/api/inquiries", "", req)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var res inquiry.Result
	s.decode(resp, &res)
	s.Require().True(strings.HasPrefix(res.Link, "https://wa.me/7023651572?text="))
	s.Require().Equal(3, res.ResetAfterSeconds)

	req.LoadType = inquiry.LoadPart
	resp = s.do(http.MethodPost, "/api/inquiries", "", req)
	s.Require().Equal(http.StatusUnprocessableEntity, resp.StatusCode)
	var eb errorBody
	s.decode(resp, &eb)
	s.Require().Equal(inquiry.MsgPartLoad, eb.Error)

	req2, err := http.NewRequest(http.MethodPost, s.srv.URL+"/api/inquiries", strings.NewReader("{"))
	s.Require().NoError(err)
	resp, err = http.DefaultClient.Do(req2)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *APISuite) TestAdmin_RequiresSession() {
	s.Require().Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/api/admin/shipments", "", nil).StatusCode)
	s.Require().Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/api/admin/session", "bogus", nil).StatusCode)

	resp := s.do(http.MethodPost, "/api/admin/login", "", loginRequest{Email: "admin@gtl.com", Password: "nope"})
	s.Require().Equal(http.StatusUnauthorized, resp.StatusCode)
	var eb errorBody
	s.decode(resp, &eb)
	s.Require().Equal("Invalid credentials", eb.Error)
}

func (s *APISuite) TestAdmin_CookieSession() {
	resp := s.do(http.MethodPost, "/api/admin/login", "", loginRequest{Email: "admin@gtl.com", Password: "s3cret"})
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie {
			cookie = c
		}
	}
	s.Require().NotNil(cookie)
	s.Require().True(cookie.HttpOnly)

	req, err := http.NewRequest(http.MethodGet, s.srv.URL+"/api/admin/session", nil)
	s.Require().NoError(err)
	req.AddCookie(cookie)
	resp, err = http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var out sessionResponse
	s.decode(resp, &out)
	s.Require().Equal("admin@gtl.com", out.Email)
	s.Require().True(out.IsAdmin)
}

func (s *APISuite) TestAdmin_CRUDAndFilter() {
	tok := s.login()

	for _, rec := range []models.ShipmentRecord{
		{LR: "GTL1", Status: models.ShipmentStatusDelivered, Route: "Mumbai - Pune"},
		{LR: "GTL2", Status: models.ShipmentStatusPending, Route: "Vapi - Surat"},
		{LR: "GTL3", Status: models.ShipmentStatusInTransit, Route: "Bhiwandi - Ahmedabad"},
	} {
		s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/api/admin/shipments", tok, rec).StatusCode)
	}
	s.Require().Equal(http.StatusBadRequest, s.do(http.MethodPost, "/api/admin/shipments", tok, models.ShipmentRecord{LR: "bad lr"}).StatusCode)
	s.Require().Equal(http.StatusBadRequest, s.do(http.MethodPost, "/api/admin/shipments", tok, models.ShipmentRecord{LR: "X1", Status: "Lost"}).StatusCode)

	var snap admin.Snapshot
	s.decode(s.do(http.MethodGet, "/api/admin/shipments?status=Delivered", tok, nil), &snap)
	s.Require().Len(snap.Records, 1)
	s.Require().Equal("GTL1", snap.Records[0].LR)
	s.Require().Equal(3, snap.Stats.Total)

	s.decode(s.do(http.MethodGet, "/api/admin/shipments?status=Delivered&search=zzz", tok, nil), &snap)
	s.Require().Empty(snap.Records)

	// смена lr = переименование
	resp := s.do(http.MethodPut, "/api/admin/shipments/GTL2", tok, models.ShipmentRecord{LR: "GTL9", Status: models.ShipmentStatusDelivered, Route: "Vapi - Surat"})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	_, err := s.repo.Fetch(context.Background(), "GTL2")
	s.Require().ErrorIs(err, shipments.ErrNotFound)

	var st statsResponse
	s.decode(s.do(http.MethodGet, "/api/admin/stats", tok, nil), &st)
	s.Require().Equal(admin.Stats{Total: 3, Delivered: 2, InTransit: 1}, st.Stats)

	s.Require().Equal(http.StatusBadRequest, s.do(http.MethodDelete, "/api/admin/shipments/GTL9", tok, nil).StatusCode)
	s.Require().Equal(http.StatusNoContent, s.do(http.MethodDelete, "/api/admin/shipments/GTL9?confirm=true", tok, nil).StatusCode)
	s.Require().Equal(http.StatusNoContent, s.do(http.MethodDelete, "/api/admin/shipments/GTL9?confirm=true", tok, nil).StatusCode)
}

func (s *APISuite) TestAdmin_ExportCSV() {
	tok := s.login()
	s.Require().NoError(s.repo.Save(context.Background(), models.ShipmentRecord{LR: "GTL1", Status: "In Transit", Route: "Mumbai, Pune", Date: "2025-01-01"}))
	s.Require().NoError(s.repo.Save(context.Background(), models.ShipmentRecord{LR: "GTL2", Status: "Pending", Route: "Vapi", Date: "2025-01-02"}))

	resp := s.do(http.MethodGet, "/api/admin/shipments/export.csv", tok, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Require().Contains(resp.Header.Get("Content-Type"), "text/csv")
	s.Require().Contains(resp.Header.Get("Content-Disposition"), `filename="gtl-shipments-`)

	body, _ := io.ReadAll(resp.Body)
	lines := strings.Split(strings.TrimRight(string(body), "\n"), "\n")
	want := []string{
		"LR Number,Status,Route,Date",
		"GTL2,Pending,Vapi,2025-01-02",
		`GTL1,In Transit,"Mumbai, Pune",2025-01-01`,
	}
	s.Require().Equal(want, lines)

	// фильтр списка не сужает выгрузку
	resp = s.do(http.MethodGet, "/api/admin/shipments/export.csv?status=Pending&search=vapi", tok, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	body, _ = io.ReadAll(resp.Body)
	s.Require().Equal(want, strings.Split(strings.TrimRight(string(body), "\n"), "\n"))
}

func (s *APISuite) TestAdmin_Logout() {
	tok := s.login()
	s.Require().Equal(http.StatusNoContent, s.do(http.MethodPost, "/api/admin/logout", tok, nil).StatusCode)
	s.Require().Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/api/admin/session", tok, nil).StatusCode)
}

func (s *APISuite) TestAdmin_Stream() {
	tok := s.login()
	s.Require().NoError(s.repo.Save(context.Background(), models.ShipmentRecord{LR: "S1", Status: "Pending"}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.srv.URL+"/api/admin/shipments/stream", nil)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal("text/event-stream", resp.Header.Get("Content-Type"))

	rd := bufio.NewReader(resp.Body)
	next := func() admin.Snapshot {
		for {
			line, err := rd.ReadString('\n')
			s.Require().NoError(err)
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				var snap admin.Snapshot
				s.Require().NoError(json.Unmarshal([]byte(data), &snap))
				return snap
			}
		}
	}

	s.Require().Len(next().Records, 1)

	s.Require().NoError(s.repo.Save(context.Background(), models.ShipmentRecord{LR: "S2", Status: "Pending"}))
	for snap := next(); len(snap.Records) != 2; snap = next() {
	}
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}
