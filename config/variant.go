package config

// Variant selects which RAG backend a pipeline talks to. The near-twin
// adapters collapse into one configuration-driven pipeline keyed on this
// tag.
type Variant int

const (
	// VariantAnimaHTTP posts to the Anima gateway's retrieveandgenerate
	// endpoint.
	VariantAnimaHTTP Variant = iota
	// VariantBedrockV1 queries a Bedrock knowledge base directly, without
	// session threading or request overrides.
	VariantBedrockV1
	// VariantBedrockV2 adds Bedrock session threading plus numberOfResults
	// and promptTemplate overrides.
	VariantBedrockV2
)

var variantNames = map[Variant]string{
	VariantAnimaHTTP: "anima-http",
	VariantBedrockV1: "bedrock-v1",
	VariantBedrockV2: "bedrock-v2",
}

var variantValues = map[string]Variant{
	"anima-http": VariantAnimaHTTP,
	"bedrock-v1": VariantBedrockV1,
	"bedrock-v2": VariantBedrockV2,
}

func (v Variant) String() string {
	if name, ok := variantNames[v]; ok {
		return name
	}
	return "unknown"
}

func ParseVariant(s string) (Variant, bool) {
	v, ok := variantValues[s]
	return v, ok
}
