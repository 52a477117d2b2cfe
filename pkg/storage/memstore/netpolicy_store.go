package memstore

import "github.com/thorium-sh/thorium/pkg/netpolicy"

func clonePolicy(p *netpolicy.Policy) *netpolicy.Policy {
	cp := *p
	cp.InternalHosts = append([]string(nil), p.InternalHosts...)
	cp.K8SPod = append([]string(nil), p.K8SPod...)
	cp.K8SSvc = append([]string(nil), p.K8SSvc...)
	cp.DNS = append([]string(nil), p.DNS...)
	cp.AbnormalBlackList = append([]string(nil), p.AbnormalBlackList...)
	cp.AbnormalWhiteList = append([]string(nil), p.AbnormalWhiteList...)
	return &cp
}

// GetPolicy implements pkg/netpolicy.Store. A nil, nil return means "not
// found" per that interface's contract.
func (m *MemStore) GetPolicy(group, name string) (*netpolicy.Policy, error) {
	m.policiesMu.RLock()
	defer m.policiesMu.RUnlock()
	p, ok := m.policies[policyKey(group, name)]
	if !ok {
		return nil, nil
	}
	return clonePolicy(p), nil
}

func (m *MemStore) PutPolicy(p *netpolicy.Policy) error {
	m.policiesMu.Lock()
	defer m.policiesMu.Unlock()
	m.policies[policyKey(p.Group, p.Name)] = clonePolicy(p)
	return nil
}

func (m *MemStore) DeletePolicy(group, name string) error {
	m.policiesMu.Lock()
	defer m.policiesMu.Unlock()
	delete(m.policies, policyKey(group, name))
	return nil
}

func (m *MemStore) ListPolicies(group string) ([]*netpolicy.Policy, error) {
	m.policiesMu.RLock()
	defer m.policiesMu.RUnlock()
	var out []*netpolicy.Policy
	for _, p := range m.policies {
		if p.Group == group {
			out = append(out, clonePolicy(p))
		}
	}
	return out, nil
}
