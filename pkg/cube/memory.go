package cube

import (
	"fmt"

	"hsibatch/internal/models"
)

// MemorySource serves cubes and label maps already held in memory. It
// implements both CubeSource and LabelSource.
type MemorySource struct {
	Cubes     map[string]*models.Cube
	LabelMaps map[string]*models.LabelMap
}

// NewMemorySource creates an empty source
func NewMemorySource() *MemorySource {
	return &MemorySource{
		Cubes:     make(map[string]*models.Cube),
		LabelMaps: make(map[string]*models.LabelMap),
	}
}

// Add registers an image pair under id
func (m *MemorySource) Add(id string, c *models.Cube, labelMap *models.LabelMap) {
	m.Cubes[id] = c
	m.LabelMaps[id] = labelMap
}

// Cube implements CubeSource
func (m *MemorySource) Cube(id string) (*models.Cube, error) {
	c, ok := m.Cubes[id]
	if !ok {
		return nil, fmt.Errorf("no cube for %q", id)
	}
	return c, nil
}

// LabelMap implements LabelSource
func (m *MemorySource) LabelMap(id string) (*models.LabelMap, error) {
	l, ok := m.LabelMaps[id]
	if !ok {
		return nil, fmt.Errorf("no label map for %q", id)
	}
	return l, nil
}
