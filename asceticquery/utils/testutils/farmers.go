package testutils

import (
	"github.com/icrowley/fake"
	"syreclabs.com/go/faker"
)

type Animal struct {
	Type       string `json:"type" yaml:"type"`
	Weight     int    `json:"weight" yaml:"weight"`
	AgeInWeeks int    `json:"ageInWeeks" yaml:"ageInWeeks"`
}

type Person struct {
	Name string `json:"name" yaml:"name"`
}

// Farmer holds Partner by value, so a farmer without a partner still has a
// resolvable partner.name.
type Farmer struct {
	ID      int      `json:"id" yaml:"id"`
	Name    string   `json:"name" yaml:"name"`
	Partner Person   `json:"partner" yaml:"partner"`
	Animals []Animal `json:"animals" yaml:"animals"`
}

var (
	Pig       = Animal{Type: "pig", Weight: 160, AgeInWeeks: 18}
	Cow       = Animal{Type: "cow", Weight: 300, AgeInWeeks: 24}
	Dog       = Animal{Type: "dog", Weight: 25, AgeInWeeks: 7 * 52}
	Alligator = Animal{Type: "alligator", Weight: 250, AgeInWeeks: 10 * 52}
)

// Farmers returns a fresh copy of the farmers fixture on every call.
func Farmers() []Farmer {
	return []Farmer{
		{ID: 0, Name: "Brown", Partner: Person{Name: "Nancy"}, Animals: []Animal{Pig, Cow, Dog}},
		{ID: 1, Name: "Billy", Animals: []Animal{Alligator}},
		{ID: 2, Name: "Bob", Partner: Person{Name: "Alice"}, Animals: []Animal{}},
	}
}

// FarmerRecords is the fixture in the shape decoded from JSON documents.
func FarmerRecords() []any {
	animal := func(a Animal) map[string]any {
		return map[string]any{"type": a.Type, "weight": a.Weight, "ageInWeeks": a.AgeInWeeks}
	}
	return []any{
		map[string]any{"id": 0, "name": "Brown", "partner": map[string]any{"name": "Nancy"},
			"animals": []any{animal(Pig), animal(Cow), animal(Dog)}},
		map[string]any{"id": 1, "name": "Billy", "partner": map[string]any{"name": ""},
			"animals": []any{animal(Alligator)}},
		map[string]any{"id": 2, "name": "Bob", "partner": map[string]any{"name": "Alice"},
			"animals": []any{}},
	}
}

// RandomFarmers generates n farmers with up to maxAnimals animals each.
// Weights are distinct within the whole result.
func RandomFarmers(n, maxAnimals int) []Farmer {
	farmers := make([]Farmer, n)
	used := map[int]bool{}
	for i := range farmers {
		animals := make([]Animal, faker.RandomInt(0, maxAnimals))
		for j := range animals {
			weight := faker.RandomInt(1, 1_000_000)
			for used[weight] {
				weight = faker.RandomInt(1, 1_000_000)
			}
			used[weight] = true
			animals[j] = Animal{
				Type:       fake.Word(),
				Weight:     weight,
				AgeInWeeks: faker.RandomInt(1, 1000),
			}
		}
		farmers[i] = Farmer{
			ID:      i,
			Name:    faker.Name().FirstName(),
			Partner: Person{Name: fake.FemaleFirstName()},
			Animals: animals,
		}
	}
	return farmers
}
