package webhooks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointSubscribed(t *testing.T) {
	endpoint := Endpoint{
		IsActive: true,
		Events:   []string{EventCustomerChanged, EventRewardGranted},
	}

	assert.True(t, endpoint.Subscribed(EventCustomerChanged))
	assert.False(t, endpoint.Subscribed(EventProjectChanged))

	endpoint.IsActive = false
	assert.False(t, endpoint.Subscribed(EventCustomerChanged), "inactive endpoints receive nothing")
}

func TestSignIsDeterministicPerSecret(t *testing.T) {
	body := []byte(`{"event":"customer.changed"}`)

	first := Sign("endpoint-secret-0123456789", body)
	second := Sign("endpoint-secret-0123456789", body)
	other := Sign("a-different-secret-xyz", body)

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)
	assert.Len(t, first, 64)
}

func TestValidateEndpointInput(t *testing.T) {
	valid := EndpointInput{
		Name:   "crm mirror",
		URL:    "https://example.com/hooks",
		Events: []string{EventCustomerChanged},
	}

	tests := []struct {
		name    string
		mutate  func(*EndpointInput)
		wantErr string
	}{
		{name: "valid", mutate: func(*EndpointInput) {}},
		{
			name:    "blank name",
			mutate:  func(in *EndpointInput) { in.Name = "  " },
			wantErr: "name",
		},
		{
			name:    "relative url",
			mutate:  func(in *EndpointInput) { in.URL = "/hooks" },
			wantErr: "url",
		},
		{
			name:    "ftp url",
			mutate:  func(in *EndpointInput) { in.URL = "ftp://example.com/hooks" },
			wantErr: "url",
		},
		{
			name:    "no events",
			mutate:  func(in *EndpointInput) { in.Events = nil },
			wantErr: "event",
		},
		{
			name:    "unknown event",
			mutate:  func(in *EndpointInput) { in.Events = []string{"customer.exploded"} },
			wantErr: "customer.exploded",
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

func TestApplyNormalizesEvents(t *testing.T) {
	endpoint := &Endpoint{}
	apply(endpoint, EndpointInput{
		Name:   "  mirror  ",
		URL:    " https://example.com/hooks ",
		Events: []string{EventRewardGranted, EventCustomerChanged, EventCustomerChanged},
		Secret: "endpoint-secret-0123456789",
	})

	assert.Equal(t, "mirror", endpoint.Name)
	assert.Equal(t, "https://example.com/hooks", endpoint.URL)
	assert.Equal(t, []string{EventCustomerChanged, EventRewardGranted}, endpoint.Events)
	assert.Equal(t, "endpoint-secret-0123456789", endpoint.Secret())
}
