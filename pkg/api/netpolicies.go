package api

import (
	"github.com/gin-gonic/gin"

	thoriumerrors "github.com/thorium-sh/thorium/pkg/errors"
	"github.com/thorium-sh/thorium/pkg/identity"
	"github.com/thorium-sh/thorium/pkg/netpolicy"
	"github.com/thorium-sh/thorium/pkg/types"
)

// NetPoliciesHandler serves the named network policy resources images
// reference by name in Image.NetworkPolicies, backing thorctl's
// "network-policies" subcommand tree.
type NetPoliciesHandler struct {
	policies *netpolicy.Registry
	identity *identity.Registry
}

func NewNetPoliciesHandler(policies *netpolicy.Registry, idr *identity.Registry) *NetPoliciesHandler {
	return &NetPoliciesHandler{policies: policies, identity: idr}
}

func (h *NetPoliciesHandler) Get(c *gin.Context) (interface{}, error) {
	return h.policies.Get(c.Param("group"), c.Param("name"))
}

func (h *NetPoliciesHandler) List(c *gin.Context) (interface{}, error) {
	return h.policies.List(c.Param("group"))
}

func (h *NetPoliciesHandler) Default(c *gin.Context) (interface{}, error) {
	d := netpolicy.DefaultPolicy()
	return &d, nil
}

func (h *NetPoliciesHandler) Create(c *gin.Context) (interface{}, error) {
	user, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	group, err := h.identity.Authorize(user, types.GroupName(c.Param("group")))
	if err != nil {
		return nil, err
	}
	var p netpolicy.Policy
	if err := c.ShouldBindJSON(&p); err != nil {
		return nil, thoriumerrors.NewValidation(err.Error())
	}
	p.Group = string(group.Name)
	if err := h.policies.Create(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (h *NetPoliciesHandler) Update(c *gin.Context) (interface{}, error) {
	user, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	group, err := h.identity.Authorize(user, types.GroupName(c.Param("group")))
	if err != nil {
		return nil, err
	}
	var p netpolicy.Policy
	if err := c.ShouldBindJSON(&p); err != nil {
		return nil, thoriumerrors.NewValidation(err.Error())
	}
	p.Group = string(group.Name)
	p.Name = c.Param("name")
	if err := h.policies.Update(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (h *NetPoliciesHandler) Delete(c *gin.Context) (interface{}, error) {
	user, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	group, err := h.identity.Authorize(user, types.GroupName(c.Param("group")))
	if err != nil {
		return nil, err
	}
	return nil, h.policies.Delete(string(group.Name), c.Param("name"))
}

// Verify validates a policy body without persisting it, the "verify"
// subcommand's dry-run check.
func (h *NetPoliciesHandler) Verify(c *gin.Context) (interface{}, error) {
	var p netpolicy.Policy
	if err := c.ShouldBindJSON(&p); err != nil {
		return nil, thoriumerrors.NewValidation(err.Error())
	}
	if err := netpolicy.Verify(&p); err != nil {
		return nil, err
	}
	return gin.H{"valid": true}, nil
}
