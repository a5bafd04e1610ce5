package element

// ElementProperties contains metadata describing an element type
type ElementProperties struct {
	Name       string         // Full descriptive name (e.g., "Lagrange Quadrilateral Order 1")
	ShortName  string         // Abbreviated name (e.g., "Quad4")
	Type       Type           // Element shape
	Order      int            // Polynomial order
	Np         int            // Total number of nodes in element
	NFaces     int            // Number of sides
	Dimensions Dimensionality // Spatial dimension
}
