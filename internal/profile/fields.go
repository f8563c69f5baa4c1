package profile

// Shape says how a field's value merges: scalars replace, lists union,
// maps merge key-wise.
type Shape int

const (
	ShapeScalar Shape = iota
	ShapeList
	ShapeMap
)

// FieldSpec describes one knowledge field: its canonical name, value shape,
// and the instruction handed to the extraction model.
type FieldSpec struct {
	Name   string
	Shape  Shape
	Prompt string
}

// Fields is the full registry of business-profile fields. Extraction runs one
// independent call per entry; the merge policy keys off each field's shape.
var Fields = []FieldSpec{
	{
		Name:   "businessName",
		Shape:  ShapeScalar,
		Prompt: `Extract the business name. Return ONLY a JSON object: {"value": "name", "confidence": 0.9}. If not found, return null for value.`,
	},
	{
		Name:   "businessDescription",
		Shape:  ShapeScalar,
		Prompt: `Extract a one-paragraph description of what the business does. Return ONLY a JSON object: {"value": "description", "confidence": 0.9}. If not found, return null for value.`,
	},
	{
		Name:   "location",
		Shape:  ShapeScalar,
		Prompt: `Extract where the business is located or which area it serves. Return ONLY a JSON object: {"value": "location", "confidence": 0.9}. If not found, return null for value.`,
	},
	{
		Name:   "yearsInBusiness",
		Shape:  ShapeScalar,
		Prompt: `Extract how many years the business has been operating, as a number. Return ONLY a JSON object: {"value": "12", "confidence": 0.9}. If not found, return null for value.`,
	},
	{
		Name:   "services",
		Shape:  ShapeList,
		Prompt: `Extract all services or products the business offers. Return ONLY a JSON object: {"value": ["service one", "service two"], "confidence": 0.9}. If none found, return an empty list.`,
	},
	{
		Name:   "targetMarket",
		Shape:  ShapeList,
		Prompt: `Extract who the business sells to (customer segments, industries, demographics). Return ONLY a JSON object: {"value": ["segment"], "confidence": 0.9}. If none found, return an empty list.`,
	},
	{
		Name:   "painPoints",
		Shape:  ShapeList,
		Prompt: `Extract problems or challenges the business owner has mentioned. Return ONLY a JSON object: {"value": ["problem"], "confidence": 0.9}. If none found, return an empty list.`,
	},
	{
		Name:   "goals",
		Shape:  ShapeList,
		Prompt: `Extract goals the business owner wants to achieve. Return ONLY a JSON object: {"value": ["goal"], "confidence": 0.9}. If none found, return an empty list.`,
	},
	{
		Name:   "socialMedia",
		Shape:  ShapeMap,
		Prompt: `Extract the business's social media links. Return ONLY a JSON object: {"value": {"instagram": "url", "facebook": "url", "linkedin": "url", "twitter": "url", "tiktok": "url"}, "confidence": 0.9}. Include only platforms actually found.`,
	},
}

// FieldByName returns the spec for a registered field name.
func FieldByName(name string) (FieldSpec, bool) {
	for _, f := range Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}
