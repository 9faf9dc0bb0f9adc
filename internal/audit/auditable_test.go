package audit

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStampInsert(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var a Auditable
	a.StampInsert("alice", now)

	assert.NotEqual(t, uuid.Nil, a.ExternalID)
	assert.Equal(t, now, a.CreatedAt)
	assert.Equal(t, "alice", a.CreatedBy)
	assert.Equal(t, now, a.UpdatedAt)
	assert.Equal(t, "alice", a.UpdatedBy)
}

func TestStampInsertKeepsExistingExternalID(t *testing.T) {
	id := uuid.New()
	a := Auditable{ExternalID: id}
	a.StampInsert("alice", time.Now())
	assert.Equal(t, id, a.ExternalID)
}

func TestStampInsertAnonymous(t *testing.T) {
	var a Auditable
	a.StampInsert("", time.Now())
	assert.Equal(t, AnonymousActor, a.CreatedBy)
	assert.Equal(t, AnonymousActor, a.UpdatedBy)
}

func TestStampUpdateLeavesCreatedPair(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	updated := created.Add(48 * time.Hour)

	var a Auditable
	a.StampInsert("alice", created)
	a.StampUpdate("bob", updated)

	assert.Equal(t, created, a.CreatedAt)
	assert.Equal(t, "alice", a.CreatedBy)
	assert.Equal(t, updated, a.UpdatedAt)
	assert.Equal(t, "bob", a.UpdatedBy)
}

func TestNewRecordModifiedDiffsFields(t *testing.T) {
	now := time.Now()
	before := map[string]any{"name": "Acme", "city": "Oslo", "notes": nil}
	after := map[string]any{"name": "Acme Corp", "city": "Oslo", "notes": "vip"}

	rec := NewRecord("customers", OpModified, "key-1", "alice", before, after, now)

	require.Equal(t, []string{"name", "notes"}, rec.Changed)
	assert.Equal(t, "Acme", rec.OldValues["name"])
	assert.Equal(t, "Acme Corp", rec.NewValues["name"])
	assert.NotContains(t, rec.OldValues, "city")
}

func TestNewRecordAddedAndDeleted(t *testing.T) {
	now := time.Now()
	fields := map[string]any{"name": "Acme"}

	added := NewRecord("customers", OpAdded, "key-1", "alice", nil, fields, now)
	assert.Equal(t, fields, added.NewValues)
	assert.Empty(t, added.OldValues)

	deleted := NewRecord("customers", OpDeleted, "key-1", "alice", fields, nil, now)
	assert.Equal(t, fields, deleted.OldValues)
	assert.Empty(t, deleted.NewValues)
}

func TestNewRecordAnonymousActor(t *testing.T) {
	rec := NewRecord("customers", OpAdded, "key-1", "", nil, nil, time.Now())
	assert.Equal(t, AnonymousActor, rec.Actor)
}
