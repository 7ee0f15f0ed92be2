// Package labels indexes labeled pixels of ground-truth maps and resolves raw
// labels to compact class ids.
package labels

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"hsibatch/internal/models"
)

// Background is the label value of unlabeled pixels
const Background = 0

// UnmappedLabelError reports a raw label that has no class id
type UnmappedLabelError struct {
	Label int
}

func (e *UnmappedLabelError) Error() string {
	return fmt.Sprintf("label %d has no class id mapping", e.Label)
}

// ClassMap is a validated mapping from raw label to class id (1..K)
type ClassMap map[int]int

// ParseClassMap builds a ClassMap from a string-keyed dictionary such as
// {"101": 1, "200": 2}. Keys must be positive integers and class ids must be
// at least 1.
func ParseClassMap(dict map[string]int) (ClassMap, error) {
	if len(dict) == 0 {
		return nil, fmt.Errorf("empty label dictionary")
	}
	cm := make(ClassMap, len(dict))
	for key, classID := range dict {
		label, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("label key %q is not an integer: %w", key, err)
		}
		if label == Background {
			return nil, fmt.Errorf("label key %q collides with the background label", key)
		}
		if classID < 1 {
			return nil, fmt.Errorf("label %d maps to class id %d, class ids start at 1", label, classID)
		}
		if _, dup := cm[label]; dup {
			return nil, fmt.Errorf("label %d is defined more than once", label)
		}
		cm[label] = classID
	}
	return cm, nil
}

// ClassID resolves a raw label
func (cm ClassMap) ClassID(label int) (int, error) {
	id, ok := cm[label]
	if !ok {
		return 0, &UnmappedLabelError{Label: label}
	}
	return id, nil
}

// NumClasses returns the number of distinct class ids in the mapping
func (cm ClassMap) NumClasses() int {
	seen := make(map[int]struct{}, len(cm))
	for _, id := range cm {
		seen[id] = struct{}{}
	}
	return len(seen)
}

// Group holds every coordinate of one raw label
type Group struct {
	Label   int
	ClassID int
	Coords  []models.Coord
}

// Scan returns one group per distinct non-background label of m, ascending
// by label, with coordinates in row-major order shifted by offset. ClassID
// is left at zero.
func Scan(m *models.LabelMap, offset int) []Group {
	byLabel := make(map[int][]models.Coord)
	for x := 0; x < m.Height; x++ {
		for y := 0; y < m.Width; y++ {
			label := m.At(x, y)
			if label == Background {
				continue
			}
			byLabel[label] = append(byLabel[label], models.Coord{X: x + offset, Y: y + offset})
		}
	}

	keys := make([]int, 0, len(byLabel))
	for label := range byLabel {
		keys = append(keys, label)
	}
	sort.Ints(keys)

	groups := make([]Group, len(keys))
	for i, label := range keys {
		groups[i] = Group{Label: label, Coords: byLabel[label]}
	}
	return groups
}

// Index is Scan followed by class id resolution. It fails with
// *UnmappedLabelError on the first label missing from cm.
func Index(m *models.LabelMap, cm ClassMap, offset int) ([]Group, error) {
	groups := Scan(m, offset)
	for i := range groups {
		id, err := cm.ClassID(groups[i].Label)
		if err != nil {
			return nil, err
		}
		groups[i].ClassID = id
	}
	return groups, nil
}

// Count returns the number of labeled pixels across groups
func Count(groups []Group) int {
	n := 0
	for _, g := range groups {
		n += len(g.Coords)
	}
	return n
}
