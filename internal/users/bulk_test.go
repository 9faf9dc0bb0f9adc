package users

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-crm/meridian-crm/internal/listing"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

type mockUserRepo struct {
	users  map[int64]*User
	nextID int64

	getErr    error
	createErr error
	updateErr error
	deleteErr error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[int64]*User), nextID: 1}
}

func (m *mockUserRepo) Get(ctx context.Context, id int64) (*User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*User, error) {
	for _, u := range m.users {
		if u.Username == username {
			clone := *u
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockUserRepo) GetByExternalID(ctx context.Context, externalID uuid.UUID) (*User, error) {
	for _, u := range m.users {
		if u.ExternalID == externalID {
			clone := *u
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockUserRepo) List(ctx context.Context, req listing.PageRequest) ([]User, int, error) {
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *User) error {
	if m.createErr != nil {
		return m.createErr
	}
	user.ID = m.nextID
	m.nextID++
	clone := *user
	m.users[user.ID] = &clone
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, before, user *User) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.users[user.ID]; !ok {
		return ErrNotFound
	}
	clone := *user
	if clone.passwordHash == "" {
		clone.passwordHash = m.users[user.ID].passwordHash
	}
	m.users[user.ID] = &clone
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, user *User) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.users[user.ID]; !ok {
		return ErrNotFound
	}
	delete(m.users, user.ID)
	return nil
}

type stubChecker struct {
	allowed bool
	err     error
}

func (s stubChecker) Allowed(ctx context.Context, userID int64, resource, token string) (bool, error) {
	return s.allowed, s.err
}

func newBulkFixture(t *testing.T, allowed bool) (*BulkHandler, *mockUserRepo) {
	t.Helper()
	repo := newMockUserRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := NewService(repo, time.Minute, time.Minute, logger)
	handler := NewBulkHandler(service, stubChecker{allowed: allowed}, logger)
	return handler, repo
}

func seedUser(repo *mockUserRepo, username, email string) *User {
	u := &User{Username: username, Email: email, Name: username, IsActive: true}
	u.StampInsert(username+"@seed", time.Now())
	_ = repo.Create(context.Background(), u)
	return repo.users[u.ID]
}

func TestBulkHandleForbidden(t *testing.T) {
	handler, _ := newBulkFixture(t, false)

	result, err := handler.Handle(context.Background(), 7, []BulkItem{
		{Op: BulkUpsert, Username: "alice", Email: "alice@example.com", Name: "Alice", Password: "supersecret"},
	})

	require.ErrorIs(t, err, ErrBulkForbidden)
	assert.Zero(t, result.Processed)
	assert.Zero(t, result.Failed)
	assert.Empty(t, result.Messages)
}

func TestBulkHandleCreatesAndDeletes(t *testing.T) {
	handler, repo := newBulkFixture(t, true)
	seedUser(repo, "victim", "victim@example.com")

	items := []BulkItem{
		{Op: BulkUpsert, Username: "alice", Email: "alice@example.com", Name: "Alice", Password: "supersecret"},
		{Op: BulkDelete, Username: "victim"},
	}
	result, err := handler.Handle(context.Background(), 1, items)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Zero(t, result.Failed)
	require.Len(t, result.Messages, len(items))
	assert.Equal(t, result.Processed+result.Failed, len(items))

	created, err := repo.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", created.Email)

	_, err = repo.GetByUsername(context.Background(), "victim")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBulkHandleUpsertRoutesToUpdate(t *testing.T) {
	handler, repo := newBulkFixture(t, true)
	existing := seedUser(repo, "bob", "old@example.com")

	result, err := handler.Handle(context.Background(), 1, []BulkItem{
		{Op: BulkUpsert, Username: "bob", Email: "new@example.com", Name: "Robert"},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Len(t, repo.users, 1)

	updated, err := repo.Get(context.Background(), existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", updated.Email)
	assert.Equal(t, "Robert", updated.Name)
}

func TestBulkHandleUpsertFallsBackToExternalID(t *testing.T) {
	handler, repo := newBulkFixture(t, true)
	existing := seedUser(repo, "carol", "carol@example.com")
	externalID := uuid.New()
	existing.ExternalID = externalID

	result, err := handler.Handle(context.Background(), 1, []BulkItem{
		{Op: BulkUpsert, ExternalID: externalID, Username: "carol-renamed", Email: "carol@example.com", Name: "Carol"},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Len(t, repo.users, 1, "matching on external ID must not create a duplicate")
}

func TestBulkHandleIsolatesItemFailures(t *testing.T) {
	handler, repo := newBulkFixture(t, true)

	items := []BulkItem{
		{Op: BulkUpsert, Username: "dave", Email: "dave@example.com", Name: "Dave", Password: "supersecret"},
		{Op: BulkUpsert, Username: "mallory", Email: "mallory@example.com", Name: "Mallory", Password: "short"},
		{Op: BulkUpsert, Username: "erin", Email: "erin@example.com", Name: "Erin", Password: "supersecret"},
	}
	result, err := handler.Handle(context.Background(), 1, items)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Messages, 3)

	var failure map[string]string
	require.NoError(t, json.Unmarshal(result.Messages[1].Response, &failure))
	assert.Contains(t, failure["error"], "password")

	_, err = repo.GetByUsername(context.Background(), "mallory")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetByUsername(context.Background(), "erin")
	require.NoError(t, err)
}

func TestBulkHandleUnknownOperation(t *testing.T) {
	handler, _ := newBulkFixture(t, true)

	result, err := handler.Handle(context.Background(), 1, []BulkItem{
		{Op: "merge", Username: "alice"},
	})

	require.NoError(t, err)
	assert.Zero(t, result.Processed)
	assert.Equal(t, 1, result.Failed)

	var failure map[string]string
	require.NoError(t, json.Unmarshal(result.Messages[0].Response, &failure))
	assert.Contains(t, failure["error"], "merge")
}

func TestBulkHandleDeleteMissingUser(t *testing.T) {
	handler, _ := newBulkFixture(t, true)

	result, err := handler.Handle(context.Background(), 1, []BulkItem{
		{Op: BulkDelete, Username: "ghost"},
	})

	require.NoError(t, err)
	assert.Zero(t, result.Processed)
	assert.Equal(t, 1, result.Failed)
}

func TestBulkHandleRecordsRequestPayload(t *testing.T) {
	handler, _ := newBulkFixture(t, true)

	item := BulkItem{Op: BulkUpsert, Username: "frank", Email: "frank@example.com", Name: "Frank", Password: "supersecret"}
	result, err := handler.Handle(context.Background(), 1, []BulkItem{item})

	require.NoError(t, err)
	require.Len(t, result.Messages, 1)
	msg := result.Messages[0]
	assert.Equal(t, string(BulkUpsert), msg.Operation)

	var recorded BulkItem
	require.NoError(t, json.Unmarshal(msg.Request, &recorded))
	assert.Equal(t, "frank", recorded.Username)
	// credentials are echoed in the request log but never in the response
	var created User
	require.NoError(t, json.Unmarshal(msg.Response, &created))
	assert.Equal(t, "frank", created.Username)
}

func TestBulkHandleStampsContextActor(t *testing.T) {
	handler, repo := newBulkFixture(t, true)
	ctx := shared.ContextWithActor(context.Background(), "17")

	result, err := handler.Handle(ctx, 17, []BulkItem{
		{Op: BulkUpsert, Username: "heidi", Email: "heidi@example.com", Name: "Heidi", Password: "supersecret"},
	})

	require.NoError(t, err)
	require.Equal(t, 1, result.Processed)

	created, err := repo.GetByUsername(ctx, "heidi")
	require.NoError(t, err)
	assert.Equal(t, "17", created.CreatedBy)
	assert.Equal(t, "17", created.UpdatedBy)
}

func TestBulkHandleCancelledContext(t *testing.T) {
	handler, _ := newBulkFixture(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := handler.Handle(ctx, 1, []BulkItem{
		{Op: BulkUpsert, Username: "grace", Email: "grace@example.com", Name: "Grace", Password: "supersecret"},
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, result.Messages)
}
