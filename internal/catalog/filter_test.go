package catalog

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/collate"

	"classbook/internal/models"
)

func names(rooms []models.Classroom) []string {
	out := make([]string, len(rooms))
	for i, r := range rooms {
		out[i] = r.Name
	}
	return out
}

func TestApply_MinCapacity(t *testing.T) {
	rooms := []models.Classroom{
		{Name: "A101", Capacity: 20, Equipment: []string{"projector"}},
		{Name: "B204", Capacity: 8, Equipment: []string{}},
	}

	got := Apply(rooms, Criteria{MinCapacity: "10"}, SortNameAsc)
	assert.Equal(t, []string{"A101"}, names(got))
}

func TestCriteria_MinCapacityValue(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"10", 10},
		{"10.5", 10},
		{"10abc", 10},
		{"10 places", 10},
		{" 15 ", 15},
		{"+12", 12},
		{"-5", 0},
		{"abc", 0},
		{"", 0},
		{"-", 0},
	}
	rooms := []models.Classroom{{Name: "A101", Capacity: 20}, {Name: "B204", Capacity: 8}}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			c := Criteria{MinCapacity: tt.input}
			assert.Equal(t, tt.want, c.MinCapacityValue())
		})
	}

	for _, input := range []string{"10.5", "10 places", "10abc"} {
		assert.Equal(t, []string{"A101"}, names(Apply(rooms, Criteria{MinCapacity: input}, SortNameAsc)), input)
	}
}

func TestApply_CapacityDescendingIsStable(t *testing.T) {
	rooms := []models.Classroom{
		{ID: "x", Capacity: 8},
		{ID: "first", Capacity: 20},
		{ID: "second", Capacity: 20},
	}

	got := Apply(rooms, Criteria{}, ParseSortOrder("cap-desc"))
	require.Len(t, got, 3)
	assert.Equal(t, []int{20, 20, 8}, []int{got[0].Capacity, got[1].Capacity, got[2].Capacity})
	assert.Equal(t, "first", got[0].ID)
	assert.Equal(t, "second", got[1].ID)
}

func TestApply_Filters(t *testing.T) {
	rooms := []models.Classroom{
		{Name: "Amphi Curie", Capacity: 120, Equipment: []string{"projector", "microphone"}},
		{Name: "Salle B204", Capacity: 8, Equipment: []string{"whiteboard"}},
		{Name: "Salle A101", Capacity: 20, Equipment: []string{"projector"}},
	}

	tests := []struct {
		name     string
		criteria Criteria
		want     []string
	}{
		{"empty criteria keeps all", Criteria{}, []string{"Amphi Curie", "Salle A101", "Salle B204"}},
		{"query is trimmed and case-insensitive", Criteria{Query: "  sALLe "}, []string{"Salle A101", "Salle B204"}},
		{"non-numeric capacity is ignored", Criteria{MinCapacity: "lots"}, []string{"Amphi Curie", "Salle A101", "Salle B204"}},
		{"negative capacity is ignored", Criteria{MinCapacity: "-5"}, []string{"Amphi Curie", "Salle A101", "Salle B204"}},
		{"capacity threshold is inclusive", Criteria{MinCapacity: " 20 "}, []string{"Amphi Curie", "Salle A101"}},
		{"equipment subset allows extras", Criteria{RequiredEquipment: []string{"projector"}}, []string{"Amphi Curie", "Salle A101"}},
		{"all equipment required", Criteria{RequiredEquipment: []string{"projector", "microphone"}}, []string{"Amphi Curie"}},
		{"combined", Criteria{Query: "salle", MinCapacity: "10", RequiredEquipment: []string{"projector"}}, []string{"Salle A101"}},
		{"no match", Criteria{Query: "zzz"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, names(Apply(rooms, tt.criteria, SortNameAsc)))
		})
	}
}

func TestApply_NameOrderIsLocaleAware(t *testing.T) {
	rooms := []models.Classroom{{Name: "salle b"}, {Name: "Éole"}, {Name: "Zénith"}, {Name: "atelier"}}

	assert.Equal(t, []string{"atelier", "Éole", "salle b", "Zénith"}, names(Apply(rooms, Criteria{}, SortNameAsc)))
	assert.Equal(t, []string{"Zénith", "salle b", "Éole", "atelier"}, names(Apply(rooms, Criteria{}, SortNameDesc)))
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	rooms := []models.Classroom{{Name: "B", Capacity: 1}, {Name: "A", Capacity: 2}}
	_ = Apply(rooms, Criteria{}, SortNameAsc)
	assert.Equal(t, "B", rooms[0].Name)
}

func randomRooms(r *rand.Rand, n int) []models.Classroom {
	pool := []string{"projector", "whiteboard", "microphone", "camera"}
	letters := []string{"A", "b", "É", "c", "Z"}
	rooms := make([]models.Classroom, n)
	for i := range rooms {
		var eq []string
		for _, e := range pool {
			if r.Intn(2) == 0 {
				eq = append(eq, e)
			}
		}
		rooms[i] = models.Classroom{
			ID:        fmt.Sprintf("r%d", i),
			Name:      letters[r.Intn(len(letters))] + fmt.Sprint(r.Intn(3)),
			Capacity:  r.Intn(4) * 10,
			Equipment: eq,
		}
	}
	return rooms
}

func isSubsequence(sub, full []models.Classroom) bool {
	j := 0
	for i := 0; i < len(full) && j < len(sub); i++ {
		if full[i].ID == sub[j].ID {
			j++
		}
	}
	return j == len(sub)
}

func TestApply_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	col := collate.New(Collation)
	criteria := []Criteria{
		{},
		{Query: "a"},
		{MinCapacity: "10"},
		{RequiredEquipment: []string{"projector"}},
		{Query: "1", MinCapacity: "20", RequiredEquipment: []string{"camera", "whiteboard"}},
	}

	for round := 0; round < 50; round++ {
		rooms := randomRooms(r, 12)
		for _, c := range criteria {
			for _, order := range SortOrders {
				got := Apply(rooms, c, order)

				for _, room := range got {
					assert.True(t, c.matches(&room, normalizedQuery(c), c.MinCapacityValue()))
					assert.True(t, room.HasEquipment(c.RequiredEquipment...))
				}
				assert.Equal(t, got, Apply(got, c, order), "idempotent")

				assert.Len(t, got, len(Apply(rooms, c, SortNameAsc)), "order never changes membership")
				if order == SortCapAsc {
					for i := 1; i < len(got); i++ {
						assert.LessOrEqual(t, got[i-1].Capacity, got[i].Capacity)
					}
				}
				if order == SortNameAsc {
					for i := 1; i < len(got); i++ {
						assert.LessOrEqual(t, col.CompareString(got[i-1].Name, got[i].Name), 0)
					}
				}
			}

			filtered := Apply(rooms, c, SortCapAsc)
			byInput := make([]models.Classroom, 0, len(filtered))
			for _, room := range rooms {
				for _, f := range filtered {
					if f.ID == room.ID {
						byInput = append(byInput, room)
					}
				}
			}
			assert.True(t, isSubsequence(byInput, rooms), "no item invented")
			for i := 1; i < len(filtered); i++ {
				if filtered[i-1].Capacity == filtered[i].Capacity {
					assert.Less(t, indexOf(rooms, filtered[i-1].ID), indexOf(rooms, filtered[i].ID), "ties keep input order")
				}
			}
		}
	}
}

func normalizedQuery(c Criteria) string {
	return strings.ToLower(strings.TrimSpace(c.Query))
}

func indexOf(rooms []models.Classroom, id string) int {
	for i, r := range rooms {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func TestParseSortOrder(t *testing.T) {
	assert.Equal(t, SortCapDesc, ParseSortOrder(" CAP-DESC "))
	assert.Equal(t, SortNameAsc, ParseSortOrder(""))
	assert.Equal(t, SortNameAsc, ParseSortOrder("size"))
}

func TestCriteria_ToggleEquipment(t *testing.T) {
	var c Criteria
	c.ToggleEquipment("projector")
	c.ToggleEquipment("camera")
	assert.Equal(t, []string{"projector", "camera"}, c.RequiredEquipment)

	c.ToggleEquipment("projector")
	assert.Equal(t, []string{"camera"}, c.RequiredEquipment)
}

func TestEquipmentOptions(t *testing.T) {
	rooms := []models.Classroom{
		{Equipment: []string{"whiteboard", "projector"}},
		{Equipment: []string{"projector", "camera"}},
		{},
	}
	assert.Equal(t, []string{"camera", "projector", "whiteboard"}, EquipmentOptions(rooms))
	assert.Empty(t, EquipmentOptions(nil))
}
