package rewards

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-crm/meridian-crm/internal/listing"
)

type mockLedger struct {
	entries []Entry
	nextID  int64

	// staleBalance is reported by Balance when set, standing in for a
	// read that raced with a concurrent redemption.
	staleBalance *int
}

func (m *mockLedger) sum(customerID int64) int {
	total := 0
	for _, e := range m.entries {
		if e.CustomerID == customerID {
			total += e.Points
		}
	}
	return total
}

func (m *mockLedger) Get(ctx context.Context, id int64) (*Entry, error) {
	for _, e := range m.entries {
		if e.ID == id {
			clone := e
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockLedger) List(ctx context.Context, customerID int64, req listing.PageRequest) ([]Entry, int, error) {
	return m.entries, len(m.entries), nil
}

func (m *mockLedger) Append(ctx context.Context, entry *Entry) error {
	if entry.Points < 0 && m.sum(entry.CustomerID)+entry.Points < 0 {
		return ErrInsufficientBalance
	}
	m.nextID++
	entry.ID = m.nextID
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockLedger) Balance(ctx context.Context, customerID int64) (Balance, error) {
	points := m.sum(customerID)
	if m.staleBalance != nil {
		points = *m.staleBalance
	}
	return Balance{CustomerID: customerID, Points: points}, nil
}

type recordingPublisher struct {
	events []string
}

func (p *recordingPublisher) Publish(ctx context.Context, event string, data any) {
	p.events = append(p.events, event)
}

func newGrantFixture(t *testing.T) (*Service, *mockLedger, *recordingPublisher) {
	t.Helper()
	ledger := &mockLedger{}
	events := &recordingPublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(ledger, time.Minute, time.Minute, logger, events), ledger, events
}

func TestGrantAppendsAndPublishes(t *testing.T) {
	service, ledger, events := newGrantFixture(t)

	entry, err := service.Grant(context.Background(), GrantInput{CustomerID: 1, Points: 50, Reason: "signup bonus"})

	require.NoError(t, err)
	assert.NotZero(t, entry.ID)
	assert.Equal(t, 50, ledger.sum(1))
	assert.Equal(t, []string{"reward.granted"}, events.events)
}

func TestGrantRejectsOverdraw(t *testing.T) {
	service, ledger, events := newGrantFixture(t)
	_, err := service.Grant(context.Background(), GrantInput{CustomerID: 1, Points: 30, Reason: "signup bonus"})
	require.NoError(t, err)

	_, err = service.Grant(context.Background(), GrantInput{CustomerID: 1, Points: -50, Reason: "voucher"})

	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "30 available")
	assert.Equal(t, 30, ledger.sum(1), "rejected redemption leaves the ledger untouched")
	assert.Len(t, events.events, 1)
}

func TestGrantOverdrawRejectedAtCommit(t *testing.T) {
	service, ledger, events := newGrantFixture(t)
	_, err := service.Grant(context.Background(), GrantInput{CustomerID: 1, Points: 30, Reason: "signup bonus"})
	require.NoError(t, err)

	// The advisory read sees a balance inflated by a concurrent
	// redemption that has not committed yet; the append-side recheck
	// must still refuse.
	stale := 100
	ledger.staleBalance = &stale

	_, err = service.Grant(context.Background(), GrantInput{CustomerID: 1, Points: -50, Reason: "voucher"})

	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 30, ledger.sum(1))
	assert.Len(t, events.events, 1)
}

func TestGrantAllowsCoveredRedemption(t *testing.T) {
	service, ledger, _ := newGrantFixture(t)
	_, err := service.Grant(context.Background(), GrantInput{CustomerID: 1, Points: 100, Reason: "signup bonus"})
	require.NoError(t, err)

	entry, err := service.Grant(context.Background(), GrantInput{CustomerID: 1, Points: -40, Reason: "voucher"})

	require.NoError(t, err)
	assert.Equal(t, -40, entry.Points)
	assert.Equal(t, 60, ledger.sum(1))
}

func TestValidateGrantInput(t *testing.T) {
	tests := []struct {
		name    string
		input   GrantInput
		wantErr string
	}{
		{name: "grant", input: GrantInput{CustomerID: 1, Points: 50, Reason: "signup bonus"}},
		{name: "redemption", input: GrantInput{CustomerID: 1, Points: -20, Reason: "voucher"}},
		{
			name:    "missing customer",
			input:   GrantInput{Points: 50, Reason: "signup bonus"},
			wantErr: "customer_id",
		},
		{
			name:    "zero points",
			input:   GrantInput{CustomerID: 1, Reason: "noop"},
			wantErr: "points",
		},
		{
			name:    "blank reason",
			input:   GrantInput{CustomerID: 1, Points: 10, Reason: "   "},
			wantErr: "reason",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := validate(tc.input)
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
