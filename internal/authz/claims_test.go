package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAllCoversEveryResource(t *testing.T) {
	perms := DecodeAll(nil)
	require.Len(t, perms, len(Resources()))
	for _, perm := range perms {
		assert.False(t, perm.CanRead, perm.Resource)
		assert.False(t, perm.CanEdit, perm.Resource)
		assert.False(t, perm.CanCreate, perm.Resource)
		assert.False(t, perm.CanDelete, perm.Resource)
		assert.False(t, perm.CanBulk, perm.Resource)
	}
}

func TestDecodeAllFoldsTokens(t *testing.T) {
	claims := []Claim{
		{Type: ResourceUsers, Value: "read edit bulk"},
		{Type: ResourceCustomers, Value: "read"},
	}
	perm, ok := Decode(claims, ResourceUsers)
	require.True(t, ok)
	assert.True(t, perm.CanRead)
	assert.True(t, perm.CanEdit)
	assert.False(t, perm.CanCreate)
	assert.False(t, perm.CanDelete)
	assert.True(t, perm.CanBulk)

	perm, ok = Decode(claims, ResourceCustomers)
	require.True(t, ok)
	assert.True(t, perm.CanRead)
	assert.False(t, perm.CanEdit)
}

func TestDecodeIgnoresUnknownClaimsAndTokens(t *testing.T) {
	claims := []Claim{
		{Type: "invoices", Value: "read edit"},
		{Type: ResourceRoles, Value: "read fly delete"},
	}
	_, ok := Decode(claims, "invoices")
	assert.False(t, ok)

	perm, ok := Decode(claims, ResourceRoles)
	require.True(t, ok)
	assert.True(t, perm.CanRead)
	assert.True(t, perm.CanDelete)
	assert.False(t, perm.CanEdit)
}

func TestDecodeFlagsAreMonotonic(t *testing.T) {
	claims := []Claim{
		{Type: ResourceProjects, Value: "read edit"},
		{Type: ResourceProjects, Value: "delete"},
		{Type: ResourceProjects, Value: ""},
	}
	perm, ok := Decode(claims, ResourceProjects)
	require.True(t, ok)
	assert.True(t, perm.CanRead)
	assert.True(t, perm.CanEdit)
	assert.True(t, perm.CanDelete)
}

func TestDecodeAllReturnsFreshSlices(t *testing.T) {
	claims := []Claim{{Type: ResourceUsers, Value: "read"}}
	first := DecodeAll(claims)
	first[0].CanBulk = true

	second := DecodeAll(claims)
	assert.False(t, second[0].CanBulk, "decode must not share state across calls")
}

func TestEncodeRoundTrip(t *testing.T) {
	perm := ResourcePermission{
		Resource:  ResourceUsers,
		CanRead:   true,
		CanCreate: true,
		CanBulk:   true,
	}
	claim := Encode(perm)
	require.NotNil(t, claim)
	assert.Equal(t, ResourceUsers, claim.Type, "permission for a resource must round-trip through its own claim type")
	assert.Equal(t, "read create bulk", claim.Value)

	decoded, ok := Decode([]Claim{*claim}, ResourceUsers)
	require.True(t, ok)
	assert.Equal(t, perm, decoded)
}

func TestEncodeEmptyPermission(t *testing.T) {
	assert.Nil(t, Encode(ResourcePermission{Resource: ResourceRoles}))
}

func TestEncodeAllSkipsEmpty(t *testing.T) {
	perms := []ResourcePermission{
		{Resource: ResourceRoles, CanRead: true},
		{Resource: ResourceUsers},
		{Resource: ResourceWebhooks, CanDelete: true},
	}
	claims := EncodeAll(perms)
	require.Len(t, claims, 2)
	assert.Equal(t, ResourceRoles, claims[0].Type)
	assert.Equal(t, ResourceWebhooks, claims[1].Type)
}

func TestAllows(t *testing.T) {
	perm := ResourcePermission{CanRead: true, CanBulk: true}
	assert.True(t, perm.Allows(TokenRead))
	assert.True(t, perm.Allows(TokenBulk))
	assert.False(t, perm.Allows(TokenEdit))
	assert.False(t, perm.Allows("owner"))
}
