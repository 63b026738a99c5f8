package models

// Entity types handled by a sync run.
const (
	EntityLocations = "locations"
	EntityCustomers = "customers"
	EntityProducts  = "products"
)

// AllEntities is the default scope of a sync run, in dependency order.
var AllEntities = []string{EntityLocations, EntityCustomers, EntityProducts}

// EntitySet turns an entity list into a membership set. An empty list means
// every entity.
func EntitySet(entities []string) map[string]bool {
	if len(entities) == 0 {
		entities = AllEntities
	}
	set := make(map[string]bool, len(entities))
	for _, e := range entities {
		set[e] = true
	}
	return set
}

// ValidEntity reports whether name is a known entity type.
func ValidEntity(name string) bool {
	switch name {
	case EntityLocations, EntityCustomers, EntityProducts:
		return true
	}
	return false
}
