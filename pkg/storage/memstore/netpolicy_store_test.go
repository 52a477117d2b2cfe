package memstore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thorium-sh/thorium/pkg/netpolicy"
)

func TestPolicyRoundTrip(t *testing.T) {
	m := New()
	p := &netpolicy.Policy{Group: "corn", Name: "default", InternalHosts: []string{"10.0.0.0/8"}}
	assert.NoError(t, m.PutPolicy(p))

	got, err := m.GetPolicy("corn", "default")
	assert.NoError(t, err)
	assert.Equal(t, p.InternalHosts, got.InternalHosts)

	list, err := m.ListPolicies("corn")
	assert.NoError(t, err)
	assert.Len(t, list, 1)

	assert.NoError(t, m.DeletePolicy("corn", "default"))
	got, err = m.GetPolicy("corn", "default")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetPolicyStoresACopy(t *testing.T) {
	m := New()
	p := &netpolicy.Policy{Group: "corn", Name: "default", InternalHosts: []string{"10.0.0.0/8"}}
	assert.NoError(t, m.PutPolicy(p))

	got, _ := m.GetPolicy("corn", "default")
	got.InternalHosts[0] = "mutated"

	got2, _ := m.GetPolicy("corn", "default")
	assert.Equal(t, "10.0.0.0/8", got2.InternalHosts[0])
}
