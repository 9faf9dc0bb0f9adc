package projects

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateProjectInput(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 2, 0)
	valid := ProjectInput{
		CustomerID: 1,
		Number:     "PRJ-00001",
		Name:       "Warehouse rollout",
		Status:     StatusPlanned,
		StartDate:  &start,
		EndDate:    &end,
	}

	tests := []struct {
		name    string
		mutate  func(*ProjectInput)
		wantErr string
	}{
		{name: "valid", mutate: func(*ProjectInput) {}},
		{name: "no dates", mutate: func(in *ProjectInput) { in.StartDate, in.EndDate = nil, nil }},
		{
			name:    "missing customer",
			mutate:  func(in *ProjectInput) { in.CustomerID = 0 },
			wantErr: "customer_id",
		},
		{
			name:    "blank number",
			mutate:  func(in *ProjectInput) { in.Number = "   " },
			wantErr: "number",
		},
		{
			name:    "blank name",
			mutate:  func(in *ProjectInput) { in.Name = "" },
			wantErr: "name",
		},
		{
			name:    "unknown status",
			mutate:  func(in *ProjectInput) { in.Status = "cancelled" },
			wantErr: "cancelled",
		},
		{
			name: "end before start",
			mutate: func(in *ProjectInput) {
				flipped := start.AddDate(0, 0, -1)
				in.EndDate = &flipped
			},
			wantErr: "end_date",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			input := valid
			tc.mutate(&input)
			err := validate(input)
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestApplyTrimsFields(t *testing.T) {
	project := &Project{}
	apply(project, ProjectInput{
		CustomerID: 4,
		Number:     "  PRJ-00042 ",
		Name:       " Rebrand ",
		Status:     StatusActive,
	})

	assert.Equal(t, int64(4), project.CustomerID)
	assert.Equal(t, "PRJ-00042", project.Number)
	assert.Equal(t, "Rebrand", project.Name)
	assert.Equal(t, StatusActive, project.Status)
	assert.Nil(t, project.StartDate)
}
