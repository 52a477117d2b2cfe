package netpolicy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeStore struct {
	policies map[string]*Policy
}

func newFakeStore() *fakeStore { return &fakeStore{policies: map[string]*Policy{}} }

func key(group, name string) string { return group + "/" + name }

func (s *fakeStore) GetPolicy(group, name string) (*Policy, error) {
	return s.policies[key(group, name)], nil
}

func (s *fakeStore) PutPolicy(p *Policy) error {
	s.policies[key(p.Group, p.Name)] = p
	return nil
}

func (s *fakeStore) DeletePolicy(group, name string) error {
	delete(s.policies, key(group, name))
	return nil
}

func (s *fakeStore) ListPolicies(group string) ([]*Policy, error) {
	var out []*Policy
	for _, p := range s.policies {
		if p.Group == group {
			out = append(out, p)
		}
	}
	return out, nil
}

func TestCreateRejectsDuplicate(t *testing.T) {
	r := New(newFakeStore())
	p := &Policy{Group: "corn", Name: "default", InternalHosts: []string{"10.0.0.0/8"}}
	assert.NoError(t, r.Create(p))
	assert.Error(t, r.Create(p))
}

func TestCreateRejectsInvalidEntry(t *testing.T) {
	r := New(newFakeStore())
	p := &Policy{Group: "corn", Name: "bad", InternalHosts: []string{""}}
	assert.Error(t, r.Create(p))
}

func TestUpdateRequiresExisting(t *testing.T) {
	r := New(newFakeStore())
	p := &Policy{Group: "corn", Name: "missing"}
	assert.Error(t, r.Update(p))
}

func TestGetNotFound(t *testing.T) {
	r := New(newFakeStore())
	_, err := r.Get("corn", "nope")
	assert.Error(t, err)
}

func TestVerifyAcceptsCIDRIPAndHost(t *testing.T) {
	p := &Policy{
		InternalHosts: []string{"10.0.0.0/8"},
		K8SPod:        []string{"192.168.1.1"},
		DNS:           []string{"dns.internal"},
	}
	assert.NoError(t, Verify(p))
}

func TestVerifyRejectsEmptyEntry(t *testing.T) {
	p := &Policy{AbnormalBlackList: []string{""}}
	assert.Error(t, Verify(p))
}

func TestDefaultPolicyIsStable(t *testing.T) {
	d := DefaultPolicy()
	assert.Equal(t, "default", d.Name)
	assert.NoError(t, Verify(&d))
}
