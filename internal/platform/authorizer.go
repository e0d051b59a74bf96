package platform

// Authorizer answers capability checks against configured role sets.
type Authorizer interface {
	CanReview(p Principal) bool
	CanOperate(p Principal) bool
}

type RoleAuthorizer struct {
	reviewerRoles []string
	commandRoles  []string
}

func NewRoleAuthorizer(reviewerRoles, commandRoles []string) *RoleAuthorizer {
	return &RoleAuthorizer{
		reviewerRoles: append([]string(nil), reviewerRoles...),
		commandRoles:  append([]string(nil), commandRoles...),
	}
}

func (a *RoleAuthorizer) CanReview(p Principal) bool {
	return p.HasAnyRole(a.reviewerRoles)
}

// CanOperate covers operator commands. Reviewers may run them as well as the
// dedicated command roles.
func (a *RoleAuthorizer) CanOperate(p Principal) bool {
	return p.HasAnyRole(a.commandRoles) || p.HasAnyRole(a.reviewerRoles)
}

func (a *RoleAuthorizer) ReviewerRoles() []string {
	return append([]string(nil), a.reviewerRoles...)
}
