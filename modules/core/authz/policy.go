package authz

import (
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/pkg/errors"

	"github.com/praxishq/praxis/modules/core/domain/aggregates/membership"
)

// capabilityModel is the enforcement model: a request carries the
// member's role and the capability, policies grant capabilities to
// roles, and the g relation folds the role hierarchy into every check.
const capabilityModel = `
[request_definition]
r = role, cap

[policy_definition]
p = role, cap

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.role, p.role) && r.cap == p.cap
`

// roleHierarchy links each role to the next one it dominates. The
// enforcer's role manager resolves the transitive chain, so owner
// inherits everything down to viewer.
var roleHierarchy = [][2]membership.Role{
	{membership.RoleOwner, membership.RoleAdmin},
	{membership.RoleAdmin, membership.RoleEditor},
	{membership.RoleEditor, membership.RoleViewer},
}

// capabilityGrants assigns each capability to the weakest role holding
// it; stronger roles inherit through the hierarchy.
var capabilityGrants = []struct {
	role membership.Role
	cap  Capability
}{
	{membership.RoleViewer, CapabilityView},
	{membership.RoleViewer, CapabilityLeave},
	{membership.RoleEditor, CapabilityEditContent},
	{membership.RoleAdmin, CapabilityManageMembers},
	{membership.RoleAdmin, CapabilityManageBilling},
	{membership.RoleAdmin, CapabilityManageTenant},
	{membership.RoleOwner, CapabilityTransferOwnership},
}

func newEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(capabilityModel)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse authorization model")
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build enforcer")
	}
	for _, link := range roleHierarchy {
		if _, err := enforcer.AddGroupingPolicy(string(link[0]), string(link[1])); err != nil {
			return nil, errors.Wrap(err, "failed to seed role hierarchy")
		}
	}
	for _, grant := range capabilityGrants {
		if _, err := enforcer.AddPolicy(string(grant.role), string(grant.cap)); err != nil {
			return nil, errors.Wrap(err, "failed to seed capability grants")
		}
	}
	return enforcer, nil
}
