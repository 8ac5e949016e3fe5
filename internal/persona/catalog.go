package persona

import "errors"

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

var ErrNotFound = errors.New("persona not found")

// Persona is a selectable AI character. The catalog is fixed at build time;
// vendor identifiers are resolved separately from user settings.
type Persona struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Age       int      `json:"age"`
	Interests []string `json:"interests"`
	ImageURL  string   `json:"image_url"`
	Available bool     `json:"available"`
	Gender    Gender   `json:"gender"`
}

var catalog = []Persona{
	{
		ID:        "1",
		Name:      "Alex",
		Age:       28,
		Interests: []string{"Photography", "Hiking", "Cooking"},
		ImageURL:  "https://images.pexels.com/photos/1043471/pexels-photo-1043471.jpeg?auto=compress&cs=tinysrgb&w=400",
		Available: true,
		Gender:    GenderMale,
	},
	{
		ID:        "2",
		Name:      "Marcus",
		Age:       32,
		Interests: []string{"Music", "Travel", "Fitness"},
		ImageURL:  "https://images.pexels.com/photos/1222271/pexels-photo-1222271.jpeg?auto=compress&cs=tinysrgb&w=400",
		Available: false,
		Gender:    GenderMale,
	},
	{
		ID:        "3",
		Name:      "David",
		Age:       30,
		Interests: []string{"Art", "Coffee", "Books"},
		ImageURL:  "https://images.pexels.com/photos/1681010/pexels-photo-1681010.jpeg?auto=compress&cs=tinysrgb&w=400",
		Available: false,
		Gender:    GenderMale,
	},
	{
		ID:        "4",
		Name:      "Sofia",
		Age:       26,
		Interests: []string{"Art", "Yoga", "Reading"},
		ImageURL:  "https://images.pexels.com/photos/1130626/pexels-photo-1130626.jpeg?auto=compress&cs=tinysrgb&w=400",
		Available: true,
		Gender:    GenderFemale,
	},
	{
		ID:        "5",
		Name:      "Emma",
		Age:       29,
		Interests: []string{"Dancing", "Coffee", "Movies"},
		ImageURL:  "https://images.pexels.com/photos/1239291/pexels-photo-1239291.jpeg?auto=compress&cs=tinysrgb&w=400",
		Available: false,
		Gender:    GenderFemale,
	},
	{
		ID:        "6",
		Name:      "Isabella",
		Age:       27,
		Interests: []string{"Travel", "Wine", "Fashion"},
		ImageURL:  "https://images.pexels.com/photos/1858175/pexels-photo-1858175.jpeg?auto=compress&cs=tinysrgb&w=400",
		Available: false,
		Gender:    GenderFemale,
	},
}

// All returns the full catalog in display order.
func All() []Persona {
	out := make([]Persona, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds a persona by catalog ID.
func Lookup(id string) (Persona, error) {
	for _, p := range catalog {
		if p.ID == id {
			return p, nil
		}
	}
	return Persona{}, ErrNotFound
}

// VendorIDs carries the resolved Tavus identifiers for one call attempt.
type VendorIDs struct {
	PersonaID string
	ReplicaID string
}

// ResolveVendorIDs picks the persona/replica pair matching the persona's
// gender. An empty persona ID means the user has not configured this gender
// and the caller must not attempt a conversation.
func ResolveVendorIDs(p Persona, menPersonaID, womenPersonaID, menReplicaID, womenReplicaID string) VendorIDs {
	if p.Gender == GenderMale {
		return VendorIDs{PersonaID: menPersonaID, ReplicaID: menReplicaID}
	}
	return VendorIDs{PersonaID: womenPersonaID, ReplicaID: womenReplicaID}
}
