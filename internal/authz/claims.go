// Package authz converts flat permission claims into a structured
// per-resource permission matrix and back. Claims are the persisted
// form, held on roles; the decoded ResourcePermission is rebuilt per
// check and never stored.
package authz

import "strings"

// Permission tokens carried in a claim value.
const (
	TokenRead   = "read"
	TokenEdit   = "edit"
	TokenCreate = "create"
	TokenDelete = "delete"
	TokenBulk   = "bulk"
)

// Known resource names. A claim whose type is not one of these is ignored.
const (
	ResourceRoles     = "roles"
	ResourceUsers     = "users"
	ResourceCustomers = "customers"
	ResourceContacts  = "contacts"
	ResourceProjects  = "projects"
	ResourceDocuments = "documents"
	ResourceWebhooks  = "webhooks"
	ResourceRewards   = "rewards"
)

// Resources returns the canonical checklist of known resources.
func Resources() []string {
	return []string{
		ResourceRoles,
		ResourceUsers,
		ResourceCustomers,
		ResourceContacts,
		ResourceProjects,
		ResourceDocuments,
		ResourceWebhooks,
		ResourceRewards,
	}
}

// Claim is a (type, value) pair attached to a principal. Type names a
// resource; Value is a space-delimited subset of the permission tokens.
type Claim struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// ResourcePermission is the decoded view of a principal's rights over
// one resource.
type ResourcePermission struct {
	Resource  string `json:"resource"`
	CanRead   bool   `json:"can_read"`
	CanEdit   bool   `json:"can_edit"`
	CanCreate bool   `json:"can_create"`
	CanDelete bool   `json:"can_delete"`
	CanBulk   bool   `json:"can_bulk"`
}

// DecodeAll folds claims into a fresh permission matrix covering every
// known resource. Unknown claim types and unknown tokens are ignored;
// flags only ever flip from false to true.
func DecodeAll(claims []Claim) []ResourcePermission {
	resources := Resources()
	perms := make([]ResourcePermission, len(resources))
	index := make(map[string]int, len(resources))
	for i, name := range resources {
		perms[i] = ResourcePermission{Resource: name}
		index[name] = i
	}
	for _, claim := range claims {
		i, ok := index[claim.Type]
		if !ok {
			continue
		}
		perms[i].fold(claim.Value)
	}
	return perms
}

// Decode returns the permission for a single resource after folding all
// claims. The second return is false when the resource is unknown, in
// which case callers must treat the result as no permission.
func Decode(claims []Claim, resource string) (ResourcePermission, bool) {
	for _, perm := range DecodeAll(claims) {
		if perm.Resource == resource {
			return perm, true
		}
	}
	return ResourcePermission{}, false
}

// Encode emits the claim for a permission, or nil when no flag is set.
// The claim type is the resource name itself: permission for resource X
// round-trips through claim type X.
func Encode(perm ResourcePermission) *Claim {
	tokens := make([]string, 0, 5)
	if perm.CanRead {
		tokens = append(tokens, TokenRead)
	}
	if perm.CanEdit {
		tokens = append(tokens, TokenEdit)
	}
	if perm.CanCreate {
		tokens = append(tokens, TokenCreate)
	}
	if perm.CanDelete {
		tokens = append(tokens, TokenDelete)
	}
	if perm.CanBulk {
		tokens = append(tokens, TokenBulk)
	}
	if len(tokens) == 0 {
		return nil
	}
	return &Claim{Type: perm.Resource, Value: strings.Join(tokens, " ")}
}

// EncodeAll emits claims for every permission that grants at least one
// flag.
func EncodeAll(perms []ResourcePermission) []Claim {
	claims := make([]Claim, 0, len(perms))
	for _, perm := range perms {
		if claim := Encode(perm); claim != nil {
			claims = append(claims, *claim)
		}
	}
	return claims
}

func (p *ResourcePermission) fold(value string) {
	for _, token := range strings.Fields(value) {
		switch token {
		case TokenRead:
			p.CanRead = true
		case TokenEdit:
			p.CanEdit = true
		case TokenCreate:
			p.CanCreate = true
		case TokenDelete:
			p.CanDelete = true
		case TokenBulk:
			p.CanBulk = true
		}
	}
}

// Allows reports whether the permission grants the given token.
func (p ResourcePermission) Allows(token string) bool {
	switch token {
	case TokenRead:
		return p.CanRead
	case TokenEdit:
		return p.CanEdit
	case TokenCreate:
		return p.CanCreate
	case TokenDelete:
		return p.CanDelete
	case TokenBulk:
		return p.CanBulk
	}
	return false
}
