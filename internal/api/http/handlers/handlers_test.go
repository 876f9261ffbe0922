package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-tracker/internal/api/dto"
	"github.com/spec-kit/ticket-tracker/internal/auth"
	"github.com/spec-kit/ticket-tracker/internal/config"
	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/service"
	apperrors "github.com/spec-kit/ticket-tracker/pkg/util/errorutil"
)

type saveCall struct {
	ticketID string
	actorID  string
	update   domain.TicketUpdate
	note     string
	files    []service.FileUpload
}

type fakeWorkflow struct {
	saves   []saveCall
	saveErr error
	filter  service.TicketListFilter
	created service.TicketCreateInput
	tickets []domain.Ticket
}

func (f *fakeWorkflow) CreateTicket(_ context.Context, actorID string, input service.TicketCreateInput) (*domain.Ticket, error) {
	f.created = input
	return &domain.Ticket{ID: "T9", Name: input.Name, Priority: input.Priority, Status: input.Status, CreatedBy: actorID}, nil
}

func (f *fakeWorkflow) ListTickets(_ context.Context, filter service.TicketListFilter) ([]domain.Ticket, error) {
	f.filter = filter
	return f.tickets, nil
}

func (f *fakeWorkflow) GetTicket(_ context.Context, ticketID string) (*domain.Ticket, error) {
	for _, t := range f.tickets {
		if t.ID == ticketID {
			return &t, nil
		}
	}
	return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
}

func (f *fakeWorkflow) ListPhotos(_ context.Context, ticketID string) ([]domain.Photo, error) {
	return []domain.Photo{{ID: "P1", TicketID: ticketID, URL: "https://files.test/a.jpg"}}, nil
}

func (f *fakeWorkflow) SaveUpdate(_ context.Context, ticketID, actorID string, update domain.TicketUpdate, note string, files []service.FileUpload) (*service.SaveUpdateResult, error) {
	f.saves = append(f.saves, saveCall{ticketID: ticketID, actorID: actorID, update: update, note: note, files: files})
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	return &service.SaveUpdateResult{
		Log:   domain.LogEntry{ID: "L1", TicketID: ticketID, ActorID: actorID, Action: domain.LogActionUpdate},
		Stage: service.StageComplete,
		Uploaded: []service.AttachmentOutcome{
			{FileName: "a.jpg", Attachment: &domain.Attachment{ID: "A1", StoragePath: "T1/L1/x.jpg"}, URL: "https://files.test/T1/L1/x.jpg"},
			{FileName: "b.jpg", Err: apperrors.NewAttachmentError("b.jpg", errors.New("bucket offline"))},
		},
	}, nil
}

type fakeHistory struct {
	query service.HistoryQuery
	rows  []service.HistoryRow
}

func (f *fakeHistory) GetHistory(_ context.Context, query service.HistoryQuery) ([]service.HistoryRow, error) {
	f.query = query
	return f.rows, nil
}

func (f *fakeHistory) ExportHistory(_ context.Context, query service.HistoryQuery) ([]byte, error) {
	f.query = query
	return []byte("PK-fake-xlsx"), nil
}

type fakeDirectory struct {
	role domain.UserRole
}

func (f *fakeDirectory) ListByRole(_ context.Context, role domain.UserRole) ([]domain.User, error) {
	f.role = role
	return []domain.User{{ID: "U2", Name: "Tess", Role: domain.UserRoleTechnician}}, nil
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

var manager = domain.User{ID: "U1", Name: "Mona", Role: domain.UserRoleManager}

func newTestApp(t *testing.T, tickets *fakeWorkflow, history *fakeHistory, upload config.UploadConfig) *fiber.App {
	t.Helper()
	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		domainErr := apperrors.ToDomainError(err)
		return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"success": false, "code": domainErr.Code})
	}})
	app.Use(func(c *fiber.Ctx) error {
		user := manager
		auth.SetPrincipal(c, &user)
		return c.Next()
	})
	validator := dto.NewValidator()
	h := NewTicketsHandler(tickets, history, validator, upload)
	users := NewUsersHandler(&fakeDirectory{}, validator)
	app.Get("/api/tickets", h.ListTickets)
	app.Post("/api/tickets", h.CreateTicket)
	app.Put("/api/tickets/update", h.UpdateTicket)
	app.Post("/api/tickets/save_update", h.SaveUpdate)
	app.Get("/api/tickets/history", h.History)
	app.Get("/api/tickets/history/export", h.ExportHistory)
	app.Get("/api/tickets/:id", h.GetTicket)
	app.Get("/api/photos/:ticketId", h.ListPhotos)
	app.Get("/api/users", users.ListUsers)
	app.Get("/api/profile", users.Profile)
	return app
}

func multipartRequest(t *testing.T, fields map[string]string, files map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for name, content := range files {
		part, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = io.WriteString(part, content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/tickets/save_update", &body)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	return req
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestSaveUpdate_MultipartFields(t *testing.T) {
	tickets := &fakeWorkflow{}
	app := newTestApp(t, tickets, &fakeHistory{}, config.UploadConfig{MaxFiles: 5, MaxFileBytes: 1 << 20})

	req := multipartRequest(t, map[string]string{
		"ticket_id":   "T1",
		"status":      "2",
		"priority":    "",
		"assigned_to": "",
		"name":        "",
		"message":     "replaced the roller",
	}, map[string]string{"a.jpg": "jpeg-bytes", "b.jpg": "more-bytes"})

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)

	require.Len(t, tickets.saves, 1)
	call := tickets.saves[0]
	assert.Equal(t, "T1", call.ticketID)
	assert.Equal(t, manager.ID, call.actorID)
	assert.Equal(t, "replaced the roller", call.note)
	require.NotNil(t, call.update.Status)
	assert.Equal(t, domain.TicketStatusInProgress, *call.update.Status)
	assert.Nil(t, call.update.Priority, "blank priority is not sent")
	assert.Nil(t, call.update.Name, "blank name is not sent")
	require.NotNil(t, call.update.AssignedTo, "blank assignee clears")
	assert.Equal(t, "", *call.update.AssignedTo)
	assert.Len(t, call.files, 2)

	assert.Equal(t, true, body["success"])
	assert.Equal(t, "complete", body["stage"])
	assert.EqualValues(t, 1, body["failed"])
	attachments := body["attachments"].([]any)
	require.Len(t, attachments, 2)
	assert.Equal(t, "A1", attachments[0].(map[string]any)["attachment_id"])
	assert.Equal(t, false, attachments[1].(map[string]any)["ok"])
}

func TestSaveUpdate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		fields map[string]string
		files  map[string]string
		upload config.UploadConfig
		status int
	}{
		{
			name:   "missing ticket id",
			fields: map[string]string{"status": "1"},
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown status",
			fields: map[string]string{"ticket_id": "T1", "status": "9"},
			status: http.StatusBadRequest,
		},
		{
			name:   "too many files",
			fields: map[string]string{"ticket_id": "T1"},
			files:  map[string]string{"a.jpg": "a", "b.jpg": "b"},
			upload: config.UploadConfig{MaxFiles: 1},
			status: http.StatusBadRequest,
		},
		{
			name:   "file too large",
			fields: map[string]string{"ticket_id": "T1"},
			files:  map[string]string{"a.jpg": strings.Repeat("x", 64)},
			upload: config.UploadConfig{MaxFiles: 5, MaxFileBytes: 16},
			status: http.StatusBadRequest,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tickets := &fakeWorkflow{}
			app := newTestApp(t, tickets, &fakeHistory{}, tc.upload)
			resp, err := app.Test(multipartRequest(t, tc.fields, tc.files))
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Empty(t, tickets.saves)
		})
	}
}

func TestSaveUpdate_ServiceErrorStatus(t *testing.T) {
	tickets := &fakeWorkflow{saveErr: apperrors.NewNotFound("ticket", nil)}
	app := newTestApp(t, tickets, &fakeHistory{}, config.UploadConfig{})
	resp, err := app.Test(multipartRequest(t, map[string]string{"ticket_id": "missing"}, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateTicket_JSONNullUnassigns(t *testing.T) {
	tickets := &fakeWorkflow{}
	app := newTestApp(t, tickets, &fakeHistory{}, config.UploadConfig{})

	req := httptest.NewRequest(http.MethodPut, "/api/tickets/update",
		strings.NewReader(`{"id":"T1","status":3,"assigned_to":null,"message":"done"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, tickets.saves, 1)
	update := tickets.saves[0].update
	require.NotNil(t, update.Status)
	assert.Equal(t, domain.TicketStatusClosed, *update.Status)
	require.NotNil(t, update.AssignedTo)
	assert.Equal(t, "", *update.AssignedTo)
	assert.Nil(t, update.Priority)
	assert.Nil(t, update.Name)
	assert.Empty(t, tickets.saves[0].files)
}

func TestUpdateTicket_RequiresID(t *testing.T) {
	tickets := &fakeWorkflow{}
	app := newTestApp(t, tickets, &fakeHistory{}, config.UploadConfig{})
	req := httptest.NewRequest(http.MethodPut, "/api/tickets/update", strings.NewReader(`{"status":1}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, tickets.saves)
}

func TestCreateTicket_ParsesCodes(t *testing.T) {
	tickets := &fakeWorkflow{}
	app := newTestApp(t, tickets, &fakeHistory{}, config.UploadConfig{})
	req := httptest.NewRequest(http.MethodPost, "/api/tickets",
		strings.NewReader(`{"name":"Printer jam","priority":"high","status":1}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, domain.TicketPriorityHigh, tickets.created.Priority)
	assert.Equal(t, domain.TicketStatusOpen, tickets.created.Status)

	req = httptest.NewRequest(http.MethodPost, "/api/tickets", strings.NewReader(`{"name":"x","priority":7}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListTickets_Filters(t *testing.T) {
	tickets := &fakeWorkflow{tickets: []domain.Ticket{{ID: "T1", Name: "Printer jam", Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityLow}}}
	app := newTestApp(t, tickets, &fakeHistory{}, config.UploadConfig{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/tickets?status=1,in_progress&priority=high&assignee=U2&q=printer", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)

	assert.Equal(t, []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusInProgress}, tickets.filter.Statuses)
	assert.Equal(t, []domain.TicketPriority{domain.TicketPriorityHigh}, tickets.filter.Priorities)
	require.NotNil(t, tickets.filter.AssigneeID)
	assert.Equal(t, "U2", *tickets.filter.AssigneeID)
	assert.Equal(t, "printer", tickets.filter.Search)

	list := body["tickets"].([]any)
	require.Len(t, list, 1)
	first := list[0].(map[string]any)
	assert.EqualValues(t, 1, first["status"])
	assert.EqualValues(t, 3, first["priority"])
	assert.Nil(t, first["assigned_to"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/tickets?status=archived", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetTicket_NotFound(t *testing.T) {
	app := newTestApp(t, &fakeWorkflow{}, &fakeHistory{}, config.UploadConfig{})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/tickets/nope", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHistory_EntriesShape(t *testing.T) {
	assignee := "U2"
	history := &fakeHistory{rows: []service.HistoryRow{{
		LogID:           "L3",
		TicketID:        "T1",
		TicketName:      "Printer jam",
		TicketCreatedAt: time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC),
		UpdatedAt:       time.Date(2026, 1, 3, 9, 0, 0, 0, time.UTC),
		Assignee:        &assignee,
		Note:            "swapped toner",
		Status:          domain.TicketStatusClosed,
		Priority:        domain.TicketPriorityHigh,
		Photos:          []service.HistoryPhoto{{ID: "A1", URL: "https://files.test/x.jpg"}},
	}}}
	app := newTestApp(t, &fakeWorkflow{}, history, config.UploadConfig{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/tickets/history?q=printer&limit=50", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)

	assert.Equal(t, service.HistoryQuery{Search: "printer", Limit: 50}, history.query)
	entries := body["entries"].([]any)
	require.Len(t, entries, 1)
	entry := entries[0].(map[string]any)
	assert.Equal(t, "Printer jam", entry["ticket_name"])
	assert.Equal(t, "swapped toner", entry["update"])
	assert.Equal(t, "U2", entry["assignee"])
	assert.EqualValues(t, 3, entry["status"])
	assert.EqualValues(t, 1, entry["priority"])
	assert.Equal(t, []any{}, entry["changes"])
	photos := entry["photos"].([]any)
	require.Len(t, photos, 1)
	assert.Equal(t, "https://files.test/x.jpg", photos[0].(map[string]any)["url"])
}

func TestHistory_RejectsBadLimit(t *testing.T) {
	app := newTestApp(t, &fakeWorkflow{}, &fakeHistory{}, config.UploadConfig{})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/tickets/history?limit=-4", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExportHistory_Headers(t *testing.T) {
	app := newTestApp(t, &fakeWorkflow{}, &fakeHistory{}, config.UploadConfig{})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/tickets/history/export", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", resp.Header.Get(fiber.HeaderContentType))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "ticket-history.xlsx")
}

func TestPhotos_List(t *testing.T) {
	app := newTestApp(t, &fakeWorkflow{}, &fakeHistory{}, config.UploadConfig{})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/photos/T1", nil))
	require.NoError(t, err)
	body := decode(t, resp)
	photos := body["photos"].([]any)
	require.Len(t, photos, 1)
	assert.Equal(t, "https://files.test/a.jpg", photos[0].(map[string]any)["url"])
}

func TestUsers_ListAndProfile(t *testing.T) {
	app := newTestApp(t, &fakeWorkflow{}, &fakeHistory{}, config.UploadConfig{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/users?role=technician", nil))
	require.NoError(t, err)
	body := decode(t, resp)
	users := body["users"].([]any)
	require.Len(t, users, 1)
	assert.Equal(t, "Tess", users[0].(map[string]any)["name"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/users", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/profile", nil))
	require.NoError(t, err)
	body = decode(t, resp)
	assert.Equal(t, "manager", body["user"].(map[string]any)["role_name"])
}

func TestHealth_Ready(t *testing.T) {
	app := fiber.New()
	healthy := NewHealthHandler("ticket-tracker", "test", map[string]Pinger{"postgres": pinger{}})
	broken := NewHealthHandler("ticket-tracker", "test", map[string]Pinger{"postgres": pinger{}, "storage": pinger{err: errors.New("no bucket")}})
	app.Get("/ok", healthy.Ready)
	app.Get("/down", broken.Ready)
	app.Get("/live", healthy.Live)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ok", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/down", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body := decode(t, resp)
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "no bucket", details["storage"])
	assert.Equal(t, "ok", details["postgres"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/live", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
