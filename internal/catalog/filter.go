// Package catalog caches the classroom list and derives filtered, sorted views of it.
package catalog

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"classbook/internal/models"
)

// SortOrder selects the key and direction of the classroom listing.
type SortOrder string

const (
	SortNameAsc  SortOrder = "name-asc"
	SortNameDesc SortOrder = "name-desc"
	SortCapAsc   SortOrder = "cap-asc"
	SortCapDesc  SortOrder = "cap-desc"
)

// SortOrders lists the selectable orders, default first.
var SortOrders = []SortOrder{SortNameAsc, SortNameDesc, SortCapAsc, SortCapDesc}

// ParseSortOrder returns the order named by s, or SortNameAsc for anything unknown.
func ParseSortOrder(s string) SortOrder {
	o := SortOrder(strings.TrimSpace(strings.ToLower(s)))
	for _, known := range SortOrders {
		if o == known {
			return o
		}
	}
	return SortNameAsc
}

// Collation is the language used for name ordering.
var Collation = language.French

// Criteria is the transient filter state of the listing.
type Criteria struct {
	Query string
	// MinCapacity is kept as typed; see MinCapacityValue.
	MinCapacity       string
	RequiredEquipment []string
}

// MinCapacityValue reads the leading integer of MinCapacity, so "10.5" and "10 places" mean 10.
// Input without leading digits, or a negative number, means no threshold.
func (c Criteria) MinCapacityValue() int {
	s := strings.TrimSpace(c.MinCapacity)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// ToggleEquipment adds the item if absent and removes it if present.
func (c *Criteria) ToggleEquipment(item string) {
	for i, e := range c.RequiredEquipment {
		if e == item {
			c.RequiredEquipment = append(c.RequiredEquipment[:i:i], c.RequiredEquipment[i+1:]...)
			return
		}
	}
	c.RequiredEquipment = append(c.RequiredEquipment, item)
}

func (c Criteria) matches(room *models.Classroom, query string, minCapacity int) bool {
	if query != "" && !strings.Contains(strings.ToLower(room.Name), query) {
		return false
	}
	if room.Capacity < minCapacity {
		return false
	}
	return room.HasEquipment(c.RequiredEquipment...)
}

// Apply filters by name, capacity and equipment, then sorts stably. The input is not modified.
func Apply(rooms []models.Classroom, c Criteria, order SortOrder) []models.Classroom {
	query := strings.ToLower(strings.TrimSpace(c.Query))
	minCapacity := c.MinCapacityValue()

	out := make([]models.Classroom, 0, len(rooms))
	for i := range rooms {
		if c.matches(&rooms[i], query, minCapacity) {
			out = append(out, rooms[i])
		}
	}

	var less func(a, b *models.Classroom) bool
	switch ParseSortOrder(string(order)) {
	case SortNameDesc:
		col := collate.New(Collation)
		less = func(a, b *models.Classroom) bool { return col.CompareString(a.Name, b.Name) > 0 }
	case SortCapAsc:
		less = func(a, b *models.Classroom) bool { return a.Capacity < b.Capacity }
	case SortCapDesc:
		less = func(a, b *models.Classroom) bool { return a.Capacity > b.Capacity }
	default:
		col := collate.New(Collation)
		less = func(a, b *models.Classroom) bool { return col.CompareString(a.Name, b.Name) < 0 }
	}
	sort.SliceStable(out, func(i, j int) bool { return less(&out[i], &out[j]) })
	return out
}

// EquipmentOptions returns the sorted union of all equipment in rooms.
func EquipmentOptions(rooms []models.Classroom) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, r := range rooms {
		for _, e := range r.Equipment {
			if _, ok := seen[e]; ok {
				continue
			}
			seen[e] = struct{}{}
			out = append(out, e)
		}
	}
	sort.Strings(out)
	return out
}
