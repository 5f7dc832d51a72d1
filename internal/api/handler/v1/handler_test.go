package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietanh2810/certcheck-api/internal/api/middleware"
	"github.com/vietanh2810/certcheck-api/internal/domain"
	"github.com/vietanh2810/certcheck-api/internal/service"
)

const testOwner uint = 7

func day(s string) time.Time {
	t, _ := time.Parse(domain.DayKeyLayout, s)
	return t
}

// newRouter mounts routes behind a stand-in for the JWT middleware. actor 0
// leaves the request unauthenticated.
func newRouter(actor uint, mount func(r gin.IRoutes)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/", func(ctx *gin.Context) {
		if actor != 0 {
			ctx.Set(middleware.ContextUserIDKey, actor)
		}
		ctx.Next()
	})
	mount(g)
	return r
}

func do(r http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type fakeEvents struct {
	events        map[uint]domain.Event
	registrations map[uint][]domain.Registration
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{
		events: map[uint]domain.Event{
			1: {ID: 1, OwnerID: testOwner, Name: "Go Meetup",
				DateRanges: []domain.DateRange{{Start: day("2024-05-14"), End: day("2024-05-14")}}},
			2: {ID: 2, OwnerID: testOwner, Name: "GopherCon",
				DateRanges: []domain.DateRange{{Start: day("2024-06-10"), End: day("2024-06-11")}}},
		},
		registrations: map[uint][]domain.Registration{
			1: {{ID: 10, EventID: 1, Name: "Ada"}, {ID: 11, EventID: 1, Name: "Linus"}},
			2: {{ID: 20, EventID: 2, Name: "Grace"}},
		},
	}
}

func (f *fakeEvents) CreateEvent(_ context.Context, event domain.Event) (domain.Event, error) {
	event.ID = uint(len(f.events) + 1)
	f.events[event.ID] = event
	return event, nil
}

func (f *fakeEvents) GetEvent(_ context.Context, ownerID, id uint) (domain.Event, error) {
	e, ok := f.events[id]
	if !ok || e.OwnerID != ownerID {
		return domain.Event{}, domain.NewNotFoundError("event %d", id)
	}
	return e, nil
}

func (f *fakeEvents) ListEvents(_ context.Context, ownerID uint) ([]domain.Event, error) {
	var out []domain.Event
	for _, e := range f.events {
		if e.OwnerID == ownerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEvents) AddRegistration(_ context.Context, r domain.Registration) (domain.Registration, error) {
	r.ID = 99
	f.registrations[r.EventID] = append(f.registrations[r.EventID], r)
	return r, nil
}

func (f *fakeEvents) ListRegistrations(_ context.Context, _, eventID uint) ([]domain.Registration, error) {
	return f.registrations[eventID], nil
}

type setCall struct {
	target service.CheckinTarget
	status domain.CheckinStatus
	actor  uint
}

type fakeCheckins struct {
	mu        sync.Mutex
	sets      []setCall
	batchIDs  []uint
	statusErr error
}

func (f *fakeCheckins) Toggle(_ context.Context, target service.CheckinTarget, actor uint) (domain.CheckinRecord, error) {
	return domain.CheckinRecord{RegistrationID: target.RegistrationID, DayKey: target.Day, Status: domain.CheckinDone, CheckedInBy: &actor}, nil
}

func (f *fakeCheckins) BulkToggle(_ context.Context, _, _ uint, ids []uint, d domain.DayKey, _ uint) (domain.BulkResult, error) {
	res := domain.BulkResult{Failed: map[uint]string{}}
	for _, id := range ids {
		res.Succeeded = append(res.Succeeded, domain.CheckinRecord{RegistrationID: id, DayKey: d, Status: domain.CheckinDone})
	}
	return res, nil
}

func (f *fakeCheckins) SetStatus(_ context.Context, target service.CheckinTarget, status domain.CheckinStatus, actor uint, _ string) (domain.CheckinRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets = append(f.sets, setCall{target: target, status: status, actor: actor})
	return domain.CheckinRecord{RegistrationID: target.RegistrationID, DayKey: target.Day, DayLabel: "All days", Status: status}, nil
}

func (f *fakeCheckins) StatusOf(_ context.Context, _ uint, _ domain.CheckinKey) (domain.CheckinStatus, error) {
	if f.statusErr != nil {
		return "", f.statusErr
	}
	return domain.CheckinDone, nil
}

func (f *fakeCheckins) BatchStatus(_ context.Context, _ uint, ids []uint) (map[uint][]domain.CheckinRecord, error) {
	f.batchIDs = ids
	out := map[uint][]domain.CheckinRecord{}
	for _, id := range ids {
		out[id] = []domain.CheckinRecord{{RegistrationID: id, Status: domain.CheckinUndone}}
	}
	return out, nil
}

func (f *fakeCheckins) calls() []setCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]setCall(nil), f.sets...)
}

func mountCheckins(h *CheckinHandler) func(r gin.IRoutes) {
	return func(r gin.IRoutes) {
		r.GET("/events/:eventID/checkins", h.HandleOverview)
		r.PUT("/events/:eventID/checkins", h.HandleSetStatus)
		r.POST("/events/:eventID/checkins/toggle", h.HandleToggle)
		r.POST("/events/:eventID/checkins/bulk-toggle", h.HandleBulkToggle)
		r.GET("/events/:eventID/checkins/:registrationID", h.HandleStatus)
	}
}

func TestCheckinHandler_SetStatus(t *testing.T) {
	tests := []struct {
		name       string
		actor      uint
		path       string
		body       string
		wantStatus int
		wantCalls  int
	}{
		{
			name:       "collective day",
			actor:      testOwner,
			path:       "/events/1/checkins",
			body:       `{"registration_id":10,"status":"done"}`,
			wantStatus: http.StatusOK,
			wantCalls:  1,
		},
		{
			name:       "unknown status",
			actor:      testOwner,
			path:       "/events/1/checkins",
			body:       `{"registration_id":10,"status":"maybe"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed day",
			actor:      testOwner,
			path:       "/events/2/checkins",
			body:       `{"registration_id":10,"status":"done","day":"14/05/2024"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad event id",
			actor:      testOwner,
			path:       "/events/abc/checkins",
			body:       `{"registration_id":10,"status":"done"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "no actor",
			path:       "/events/1/checkins",
			body:       `{"registration_id":10,"status":"done"}`,
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeCheckins{}
			r := newRouter(tt.actor, mountCheckins(NewCheckinHandler(svc, newFakeEvents())))

			w := do(r, http.MethodPut, tt.path, tt.body)

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			calls := svc.calls()
			require.Len(t, calls, tt.wantCalls)
			if tt.wantCalls > 0 {
				assert.Equal(t, domain.CollectiveDay, calls[0].target.Day)
				assert.Equal(t, uint(10), calls[0].target.RegistrationID)
				assert.Equal(t, testOwner, calls[0].actor)
				assert.Equal(t, domain.CheckinDone, calls[0].status)
			}
		})
	}
}

func TestCheckinHandler_Status(t *testing.T) {
	r := newRouter(testOwner, mountCheckins(NewCheckinHandler(&fakeCheckins{}, newFakeEvents())))

	t.Run("day of a per-day event", func(t *testing.T) {
		w := do(r, http.MethodGet, "/events/2/checkins/20?day=2024-06-11", "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "2024-06-11", body["day"])
		assert.Equal(t, "done", body["status"])
	})

	t.Run("collective key on a per-day event", func(t *testing.T) {
		w := do(r, http.MethodGet, "/events/2/checkins/20", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("day outside the event", func(t *testing.T) {
		w := do(r, http.MethodGet, "/events/2/checkins/20?day=2024-06-12", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown event", func(t *testing.T) {
		w := do(r, http.MethodGet, "/events/42/checkins/10", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("registration of another event", func(t *testing.T) {
		w := do(r, http.MethodGet, "/events/2/checkins/10?day=2024-06-11", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCheckinHandler_StatusSkipsForeignRegistration(t *testing.T) {
	// the ledger is never consulted, so its failure does not surface
	svc := &fakeCheckins{statusErr: domain.NewTransientStorageError("checkin lookup", context.DeadlineExceeded)}
	r := newRouter(testOwner, mountCheckins(NewCheckinHandler(svc, newFakeEvents())))

	w := do(r, http.MethodGet, "/events/1/checkins/20", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckinHandler_StatusStorageUnavailable(t *testing.T) {
	svc := &fakeCheckins{statusErr: domain.NewTransientStorageError("checkin lookup", context.DeadlineExceeded)}
	r := newRouter(testOwner, mountCheckins(NewCheckinHandler(svc, newFakeEvents())))

	w := do(r, http.MethodGet, "/events/1/checkins/10", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCheckinHandler_Overview(t *testing.T) {
	svc := &fakeCheckins{}
	r := newRouter(testOwner, mountCheckins(NewCheckinHandler(svc, newFakeEvents())))

	w := do(r, http.MethodGet, "/events/1/checkins", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []uint{10, 11}, svc.batchIDs)

	var body struct {
		Buckets []domain.DayBucket                `json:"buckets"`
		Records map[string][]domain.CheckinRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Buckets, 1)
	assert.True(t, body.Buckets[0].Key.IsCollective())
	assert.Len(t, body.Records, 2)

	w = do(r, http.MethodGet, "/events/1/checkins?registration_ids=11", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []uint{11}, svc.batchIDs)

	w = do(r, http.MethodGet, "/events/1/checkins?registration_ids=1,x", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// ids registered to another event are not looked up
	w = do(r, http.MethodGet, "/events/1/checkins?registration_ids=11,20,99", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []uint{11}, svc.batchIDs)

	svc.batchIDs = nil
	w = do(r, http.MethodGet, "/events/1/checkins?registration_ids=20", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, svc.batchIDs)
	var empty struct {
		Records map[string][]domain.CheckinRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &empty))
	assert.Empty(t, empty.Records)
}

func TestCheckinHandler_BulkToggle(t *testing.T) {
	r := newRouter(testOwner, mountCheckins(NewCheckinHandler(&fakeCheckins{}, newFakeEvents())))

	w := do(r, http.MethodPost, "/events/2/checkins/bulk-toggle", `{"registration_ids":[10,11],"day":"2024-06-10"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res domain.BulkResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Len(t, res.Succeeded, 2)

	w = do(r, http.MethodPost, "/events/2/checkins/bulk-toggle", `{"registration_ids":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type fakeCertificates struct {
	result  service.BatchResult
	records map[string]domain.CertificateRecord
	got     service.GenerateRequest
}

func (f *fakeCertificates) Generate(_ context.Context, req service.GenerateRequest) (service.BatchResult, error) {
	f.got = req
	return f.result, nil
}

func (f *fakeCertificates) Lookup(_ context.Context, id string) (domain.CertificateRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return domain.CertificateRecord{}, domain.NewNotFoundError("certificate %s", id)
	}
	return rec, nil
}

func (f *fakeCertificates) ListByEvent(_ context.Context, _, eventID uint) ([]domain.CertificateRecord, error) {
	var out []domain.CertificateRecord
	for _, rec := range f.records {
		if rec.EventID == eventID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func newFakeCertificates() *fakeCertificates {
	return &fakeCertificates{
		result: service.BatchResult{
			Total:     2,
			Succeeded: 1,
			Failures:  []service.Failure{{RegistrationID: 11, Name: "Linus", Error: "render failed"}},
			Certificates: []domain.CertificateRecord{
				{ID: "c-1", EventID: 1, RecipientName: "Ada"},
			},
			DocumentPDF: []byte("%PDF-1.3 fake"),
		},
		records: map[string]domain.CertificateRecord{
			"c-1": {ID: "c-1", OwnerID: testOwner, EventID: 1, RecipientName: "Ada", ArtifactURL: "https://cdn.example.com/c-1.png"},
			"c-2": {ID: "c-2", OwnerID: testOwner, EventID: 404, RecipientName: "Orphan"},
		},
	}
}

func mountCertificates(h *CertificateHandler) func(r gin.IRoutes) {
	return func(r gin.IRoutes) {
		r.POST("/events/:eventID/certificates", h.HandleGenerate)
		r.GET("/events/:eventID/certificates", h.HandleListByEvent)
		r.GET("/certificates/:certificateID", h.HandlePublicView)
	}
}

func TestCertificateHandler_Generate(t *testing.T) {
	body := `{"template_id":3,"registration_ids":[10,11]}`

	t.Run("json", func(t *testing.T) {
		svc := newFakeCertificates()
		r := newRouter(testOwner, mountCertificates(NewCertificateHandler(svc, newFakeEvents())))

		w := do(r, http.MethodPost, "/events/1/certificates", body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var res map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Equal(t, "1 of 2 succeeded", res["summary"])
		assert.NotEmpty(t, res["document_pdf"])
		assert.Len(t, res["failures"], 1)

		assert.Equal(t, service.GenerateRequest{
			OwnerID:         testOwner,
			EventID:         1,
			TemplateID:      3,
			RegistrationIDs: []uint{10, 11},
		}, svc.got)
	})

	t.Run("pdf", func(t *testing.T) {
		r := newRouter(testOwner, mountCertificates(NewCertificateHandler(newFakeCertificates(), newFakeEvents())))

		w := do(r, http.MethodPost, "/events/1/certificates", body, "Accept", "application/pdf")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
		assert.Equal(t, "1 of 2 succeeded", w.Header().Get("X-Certificate-Summary"))
		assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
	})

	t.Run("email without subject", func(t *testing.T) {
		svc := newFakeCertificates()
		r := newRouter(testOwner, mountCertificates(NewCertificateHandler(svc, newFakeEvents())))

		w := do(r, http.MethodPost, "/events/1/certificates", `{"template_id":3,"registration_ids":[10],"send_email":true}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Zero(t, svc.got.EventID)
	})
}

func TestCertificateHandler_PublicView(t *testing.T) {
	// the public view is reachable without a signed-in organizer
	r := newRouter(0, mountCertificates(NewCertificateHandler(newFakeCertificates(), newFakeEvents())))

	w := do(r, http.MethodGet, "/certificates/c-1", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var view map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "Ada", view["recipient_name"])
	assert.Equal(t, "Go Meetup", view["event_name"])
	assert.Equal(t, "https://cdn.example.com/c-1.png", view["artifact_url"])

	w = do(r, http.MethodGet, "/certificates/c-2", "")
	require.Equal(t, http.StatusOK, w.Code)
	view = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.NotContains(t, view, "event_name")

	w = do(r, http.MethodGet, "/certificates/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCertificateHandler_ListByEvent(t *testing.T) {
	r := newRouter(testOwner, mountCertificates(NewCertificateHandler(newFakeCertificates(), newFakeEvents())))

	w := do(r, http.MethodGet, "/events/1/certificates", "")
	require.Equal(t, http.StatusOK, w.Code)
	var records []domain.CertificateRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "c-1", records[0].ID)

	w = do(r, http.MethodGet, "/events/404/certificates", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEventHandler(t *testing.T) {
	events := newFakeEvents()
	h := NewEventHandler(events)
	r := newRouter(testOwner, func(r gin.IRoutes) {
		r.POST("/events", h.HandleCreateEvent)
		r.GET("/events/:eventID", h.HandleGetEvent)
	})

	w := do(r, http.MethodPost, "/events", `{"name":"Workshop","date_ranges":[{"start":"2024-09-01","end":"2024-09-03"}]}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created domain.Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, testOwner, created.OwnerID)

	w = do(r, http.MethodGet, "/events/2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Buckets []domain.DayBucket `json:"buckets"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got.Buckets, 2)
	assert.Equal(t, domain.DayKey("2024-06-10"), got.Buckets[0].Key)

	w = do(r, http.MethodPost, "/events", `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
