package ai

// ConceptCategories defines the valid categories for knowledge-graph concepts.
// These are embedded into the extraction prompt and validated on the way back.
var ConceptCategories = []string{
	"abstract_concept",
	"activity",
	"event",
	"method",
	"organization",
	"person",
	"place",
	"project",
	"software",
	"technology",
	"time",
	"tool",
	"work",
}
