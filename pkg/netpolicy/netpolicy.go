// Package netpolicy manages the named network policies referenced by
// Image.NetworkPolicies (spec §3 Image), each describing the CIDR/host
// allow-lists a worker's egress is restricted to. Grounded on the
// network-exporter's NetworkPolicy shape (internal hosts, pod/svc CIDR,
// DNS, abnormal allow/deny lists), adapted from a single
// cluster-default into a named, group-scoped, CRUD-able resource.
package netpolicy

import (
	"net"

	thoriumerrors "github.com/thorium-sh/thorium/pkg/errors"
)

// Policy is one named network policy.
type Policy struct {
	Group             string
	Name              string
	InternalHosts     []string
	K8SPod            []string
	K8SSvc            []string
	DNS               []string
	AbnormalBlackList []string
	AbnormalWhiteList []string
}

// DefaultPolicy is the baseline applied when an image names no policy,
// mirroring network-exporter's defaultPolicy CIDR ranges.
func DefaultPolicy() Policy {
	return Policy{
		Name: "default",
		InternalHosts: []string{
			"10.0.0.0/8",
			"172.16.0.0/12",
			"192.168.0.0/16",
		},
	}
}

// Store is the persistence contract this package needs.
type Store interface {
	GetPolicy(group, name string) (*Policy, error)
	PutPolicy(p *Policy) error
	DeletePolicy(group, name string) error
	ListPolicies(group string) ([]*Policy, error)
}

type Registry struct {
	store Store
}

func New(store Store) *Registry { return &Registry{store: store} }

func (r *Registry) Get(group, name string) (*Policy, error) {
	p, err := r.store.GetPolicy(group, name)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, thoriumerrors.NewNotFound("network policy not found")
	}
	return p, nil
}

func (r *Registry) Create(p *Policy) error {
	if existing, err := r.store.GetPolicy(p.Group, p.Name); err != nil {
		return err
	} else if existing != nil {
		return thoriumerrors.NewConflict("network policy already exists")
	}
	if err := Verify(p); err != nil {
		return err
	}
	return r.store.PutPolicy(p)
}

func (r *Registry) Update(p *Policy) error {
	if _, err := r.Get(p.Group, p.Name); err != nil {
		return err
	}
	if err := Verify(p); err != nil {
		return err
	}
	return r.store.PutPolicy(p)
}

func (r *Registry) Delete(group, name string) error {
	return r.store.DeletePolicy(group, name)
}

func (r *Registry) List(group string) ([]*Policy, error) {
	return r.store.ListPolicies(group)
}

// Verify validates that every CIDR/host entry parses, the thorctl
// "network-policies verify" operation.
func Verify(p *Policy) error {
	for _, list := range [][]string{p.InternalHosts, p.K8SPod, p.K8SSvc, p.DNS, p.AbnormalBlackList, p.AbnormalWhiteList} {
		for _, entry := range list {
			if err := verifyEntry(entry); err != nil {
				return thoriumerrors.NewValidation("invalid network policy entry " + entry + ": " + err.Error())
			}
		}
	}
	return nil
}

func verifyEntry(entry string) error {
	if _, _, err := net.ParseCIDR(entry); err == nil {
		return nil
	}
	if net.ParseIP(entry) != nil {
		return nil
	}
	// Bare hostnames (for DNS/allow-list entries) are accepted without
	// further validation; DNS resolution happens at enforcement time,
	// not at policy-authoring time.
	if entry != "" {
		return nil
	}
	return thoriumerrors.NewValidation("empty network policy entry")
}
