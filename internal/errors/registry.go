package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

// Stable error codes.
const (
	CodeParseFailure     = "E001"
	CodeSchemaValidation = "E002"
	CodeMissingAdapter   = "E101"
	CodeDuplicateWireKey = "E102"
	CodeConfigInvalid    = "E201"
	CodeConfigNotFound   = "E202"
)

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Parse Errors (E001-E099)
	// ============================================

	CodeParseFailure: {
		Category: CategoryParse,
		Message:  "Raw query value failed to parse",
		Detail:   "The raw string on the address bar does not satisfy the key's parser. Normal reads substitute the key's default; this error only surfaces on the strict read path.",
		DocURL:   "https://urlq.dev/docs/errors/E001",
	},
	CodeSchemaValidation: {
		Category: CategorySchema,
		Message:  "JSON value failed schema validation",
		Detail:   "The value decoded from the query string was rejected by the parser's validation hook. Normal reads substitute the key's default.",
		DocURL:   "https://urlq.dev/docs/errors/E002",
	},

	// ============================================
	// Adapter Errors (E101-E199)
	// ============================================

	CodeMissingAdapter: {
		Category: CategoryAdapter,
		Message:  "No adapter registered",
		Detail:   "An Engine was constructed without an adapter. This is a programming error, not a runtime condition: every Engine needs a host integration to read and write the address bar.",
		DocURL:   "https://urlq.dev/docs/errors/E101",
	},
	CodeDuplicateWireKey: {
		Category: CategoryAdapter,
		Message:  "Two display names map to the same wire name",
		Detail:   "The key map must be injective: each display name needs its own on-the-wire name, set once per key and immutable for the process lifetime.",
		DocURL:   "https://urlq.dev/docs/errors/E102",
	},

	// ============================================
	// Config Errors (E201-E299)
	// ============================================

	CodeConfigInvalid: {
		Category: CategoryConfig,
		Message:  "Configuration file is invalid",
		DocURL:   "https://urlq.dev/docs/errors/E201",
	},
	CodeConfigNotFound: {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		DocURL:   "https://urlq.dev/docs/errors/E202",
	},
}
