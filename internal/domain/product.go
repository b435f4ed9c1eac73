package domain

// Product is a sellable item with a finite stock counter. Available is
// flipped off when the item's purchase queue fills up and back on once
// the queue drains below capacity.
type Product struct {
	ID        string
	Name      string
	Stock     int
	Available bool
}
