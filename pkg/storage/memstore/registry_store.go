package memstore

import (
	thoriumerrors "github.com/thorium-sh/thorium/pkg/errors"
	"github.com/thorium-sh/thorium/pkg/types"
)

// GetImage implements pkg/registry.Store.
func (m *MemStore) GetImage(group, name string) (*types.Image, error) {
	m.imagesMu.RLock()
	defer m.imagesMu.RUnlock()
	img, ok := m.images[imageKey(group, name)]
	if !ok {
		return nil, nil
	}
	return img, nil
}

func (m *MemStore) CreateImage(img *types.Image) error {
	m.imagesMu.Lock()
	defer m.imagesMu.Unlock()
	key := imageKey(img.Group, img.Name)
	if _, ok := m.images[key]; ok {
		return thoriumerrors.NewConflict("image already exists")
	}
	m.images[key] = img
	return nil
}

func (m *MemStore) UpdateImage(img *types.Image) error {
	m.imagesMu.Lock()
	defer m.imagesMu.Unlock()
	key := imageKey(img.Group, img.Name)
	if _, ok := m.images[key]; !ok {
		return thoriumerrors.NewNotFound("image not found")
	}
	m.images[key] = img
	return nil
}

func (m *MemStore) DeleteImage(group, name string) error {
	m.imagesMu.Lock()
	defer m.imagesMu.Unlock()
	delete(m.images, imageKey(group, name))
	return nil
}

func (m *MemStore) ListImages(group string) ([]*types.Image, error) {
	m.imagesMu.RLock()
	defer m.imagesMu.RUnlock()
	var out []*types.Image
	for _, img := range m.images {
		if img.Group == group {
			out = append(out, img)
		}
	}
	return out, nil
}

func (m *MemStore) GetPipeline(group, name string) (*types.Pipeline, error) {
	m.pipelinesMu.RLock()
	defer m.pipelinesMu.RUnlock()
	p, ok := m.pipelines[pipelineKey(group, name)]
	if !ok {
		return nil, nil
	}
	return p, nil
}

func (m *MemStore) CreatePipeline(p *types.Pipeline) error {
	m.pipelinesMu.Lock()
	defer m.pipelinesMu.Unlock()
	key := pipelineKey(p.Group, p.Name)
	if _, ok := m.pipelines[key]; ok {
		return thoriumerrors.NewConflict("pipeline already exists")
	}
	m.pipelines[key] = p
	return nil
}

func (m *MemStore) UpdatePipeline(p *types.Pipeline) error {
	m.pipelinesMu.Lock()
	defer m.pipelinesMu.Unlock()
	key := pipelineKey(p.Group, p.Name)
	if _, ok := m.pipelines[key]; !ok {
		return thoriumerrors.NewNotFound("pipeline not found")
	}
	m.pipelines[key] = p
	return nil
}

func (m *MemStore) DeletePipeline(group, name string) error {
	m.pipelinesMu.Lock()
	defer m.pipelinesMu.Unlock()
	delete(m.pipelines, pipelineKey(group, name))
	return nil
}

func (m *MemStore) ListPipelines(group string) ([]*types.Pipeline, error) {
	m.pipelinesMu.RLock()
	defer m.pipelinesMu.RUnlock()
	var out []*types.Pipeline
	for _, p := range m.pipelines {
		if p.Group == group {
			out = append(out, p)
		}
	}
	return out, nil
}

// ListAllPipelines backs the Trigger Evaluator's cache reload (spec §4.8).
func (m *MemStore) ListAllPipelines() ([]*types.Pipeline, error) {
	m.pipelinesMu.RLock()
	defer m.pipelinesMu.RUnlock()
	out := make([]*types.Pipeline, 0, len(m.pipelines))
	for _, p := range m.pipelines {
		out = append(out, p)
	}
	return out, nil
}
