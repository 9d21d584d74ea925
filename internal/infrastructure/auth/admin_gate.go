package auth

import (
	"fmt"
	"strconv"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/you/gatekeeper/domain"
)

// rbacModel is the embedded casbin model: operators are grouped into
// role_operator, which is granted every privileged resource.
const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch(r.obj, p.obj) && regexMatch(r.act, p.act)
`

const operatorRole = "role_operator"

// AdminGateImpl implements domain.AdminGate with a casbin enforcer.
// The operator set is loaded once at startup from configuration; there
// is no runtime policy mutation surface.
type AdminGateImpl struct {
	enforcer *casbin.Enforcer
}

// NewAdminGate builds the enforcer and seeds the operator policies.
func NewAdminGate(adminIDs []int64) (*AdminGateImpl, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to build casbin model: %w", err)
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to build casbin enforcer: %w", err)
	}

	if _, err := e.AddPolicy(operatorRole, "/admin/*", ".*"); err != nil {
		return nil, fmt.Errorf("failed to seed operator policy: %w", err)
	}
	for _, id := range adminIDs {
		if _, err := e.AddGroupingPolicy(strconv.FormatInt(id, 10), operatorRole); err != nil {
			return nil, fmt.Errorf("failed to seed operator %d: %w", id, err)
		}
	}

	return &AdminGateImpl{enforcer: e}, nil
}

// IsAuthorized implements domain.AdminGate.
func (g *AdminGateImpl) IsAuthorized(userID int64) bool {
	ok, err := g.enforcer.Enforce(strconv.FormatInt(userID, 10), "/admin/command", "invoke")
	if err != nil {
		return false
	}
	return ok
}

// Require implements domain.AdminGate.
func (g *AdminGateImpl) Require(userID int64) error {
	if !g.IsAuthorized(userID) {
		return domain.ErrPermissionDenied
	}
	return nil
}
