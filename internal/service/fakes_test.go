package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/repository"
)

var errStoreDown = errors.New("store unavailable")

type fakeTicketRepo struct {
	mu        sync.Mutex
	tickets   map[string]domain.Ticket
	order     []string
	updateErr error
	getErr    error
	updates   []domain.TicketUpdate
	listCalls []repository.TicketFilter
}

func newFakeTicketRepo(tickets ...domain.Ticket) *fakeTicketRepo {
	repo := &fakeTicketRepo{tickets: map[string]domain.Ticket{}}
	for _, t := range tickets {
		repo.tickets[t.ID] = t
		repo.order = append(repo.order, t.ID)
	}
	return repo
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket.ID = fmt.Sprintf("T%d", len(r.order)+1)
	ticket.CreatedAt = time.Now()
	r.tickets[ticket.ID] = *ticket
	r.order = append(r.order, ticket.ID)
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	t, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

func (r *fakeTicketRepo) ApplyUpdate(_ context.Context, id string, update domain.TicketUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	t, ok := r.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	r.updates = append(r.updates, update)
	r.tickets[id] = update.Apply(t)
	return nil
}

func (r *fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls = append(r.listCalls, filter)
	term := strings.ToLower(strings.TrimSpace(filter.NameContains))
	result := []domain.Ticket{}
	for _, id := range r.order {
		t := r.tickets[id]
		if term != "" && !strings.Contains(strings.ToLower(t.Name), term) {
			continue
		}
		result = append(result, t)
	}
	return result, nil
}

type fakeLogRepo struct {
	mu        sync.Mutex
	entries   []domain.LogEntry
	createErr error
	listCalls int
	lastList  repository.LogFilter
	clock     time.Time
}

func (r *fakeLogRepo) Create(_ context.Context, entry *domain.LogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	entry.ID = fmt.Sprintf("L%d", len(r.entries)+1)
	if r.clock.IsZero() {
		r.clock = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	r.clock = r.clock.Add(time.Minute)
	entry.CreatedAt = r.clock
	r.entries = append(r.entries, *entry)
	return nil
}

// List returns entries in insertion order to prove the caller sorts.
func (r *fakeLogRepo) List(_ context.Context, filter repository.LogFilter) ([]domain.LogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	r.lastList = filter
	result := []domain.LogEntry{}
	for _, entry := range r.entries {
		if filter.TicketIDs != nil && !contains(filter.TicketIDs, entry.TicketID) {
			continue
		}
		result = append(result, entry)
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

type fakeAttachmentRepo struct {
	mu       sync.Mutex
	records  []domain.Attachment
	failFor  map[string]bool
	listErr  error
	listArgs [][]string
}

func (r *fakeAttachmentRepo) Create(_ context.Context, attachment *domain.Attachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFor[attachment.FileName] {
		return errStoreDown
	}
	attachment.ID = fmt.Sprintf("A%d", len(r.records)+1)
	attachment.CreatedAt = time.Now()
	r.records = append(r.records, *attachment)
	return nil
}

func (r *fakeAttachmentRepo) ListByLogIDs(_ context.Context, logIDs []string) ([]domain.Attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listArgs = append(r.listArgs, logIDs)
	if r.listErr != nil {
		return nil, r.listErr
	}
	result := []domain.Attachment{}
	for _, record := range r.records {
		if contains(logIDs, record.LogID) {
			result = append(result, record)
		}
	}
	return result, nil
}

type fakePhotoRepo struct {
	mu      sync.Mutex
	photos  []domain.Photo
	err     error
	listErr error
}

func (r *fakePhotoRepo) Create(_ context.Context, photo *domain.Photo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	photo.ID = fmt.Sprintf("P%d", len(r.photos)+1)
	r.photos = append(r.photos, *photo)
	return nil
}

func (r *fakePhotoRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Photo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	result := []domain.Photo{}
	for _, photo := range r.photos {
		if photo.TicketID == ticketID {
			result = append(result, photo)
		}
	}
	return result, nil
}

type fakeBlobStore struct {
	mu         sync.Mutex
	objects    map[string][]byte
	types      map[string]string
	failUpload map[string]bool
	failURL    bool
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string][]byte{}, types: map[string]string{}, failUpload: map[string]bool{}}
}

// Upload fails for any file whose content was registered in failUpload.
func (s *fakeBlobStore) Upload(_ context.Context, path string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpload[string(data)] {
		return errors.New("bucket rejected upload")
	}
	s.objects[path] = data
	s.types[path] = contentType
	return nil
}

func (s *fakeBlobStore) PublicURL(_ context.Context, path string) (string, error) {
	if s.failURL {
		return "", errors.New("signer unavailable")
	}
	return "https://files.test/" + path, nil
}

type fakeUserRepo struct {
	users []domain.User
	err   error
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	for _, u := range r.users {
		if u.ID == id {
			user := u
			return &user, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) ListByRole(_ context.Context, role domain.UserRole) ([]domain.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	result := []domain.User{}
	for _, u := range r.users {
		if u.Role == role {
			result = append(result, u)
		}
	}
	return result, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
