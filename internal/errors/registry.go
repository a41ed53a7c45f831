package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Configuration Errors (E100-E199)
	// ============================================

	"E101": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		Detail:   "No vstore.json was found in the given directory. Run 'vstore init' to create one.",
		DocURL:   "https://vstore.dev/docs/errors/E101",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "vstore.json could not be parsed as JSON.",
		DocURL:   "https://vstore.dev/docs/errors/E102",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Invalid server configuration",
		Detail:   "The server section has an invalid port, timeout or buffer size.",
		DocURL:   "https://vstore.dev/docs/errors/E103",
	},
	"E104": {
		Category: CategoryConfig,
		Message:  "Invalid store declaration",
		Detail:   "Every store and file source needs a unique, non-empty name, and file sources need a path.",
		DocURL:   "https://vstore.dev/docs/errors/E104",
	},
	"E105": {
		Category: CategoryConfig,
		Message:  "Invalid persistence configuration",
		Detail:   "The persist backend must be one of memory, file or s3, and s3 requires a bucket.",
		DocURL:   "https://vstore.dev/docs/errors/E105",
	},
	"E106": {
		Category: CategoryConfig,
		Message:  "Invalid log configuration",
		Detail:   "log.level must be debug, info, warn or error, and log.format must be text or json.",
		DocURL:   "https://vstore.dev/docs/errors/E106",
	},

	// ============================================
	// Server Errors (E200-E299)
	// ============================================

	"E201": {
		Category: CategoryServer,
		Message:  "Store not found",
		Detail:   "No store is registered under this name.",
		DocURL:   "https://vstore.dev/docs/errors/E201",
	},
	"E202": {
		Category: CategoryServer,
		Message:  "Store is read-only",
		Detail:   "File-backed stores are updated from disk and cannot be set over the API.",
		DocURL:   "https://vstore.dev/docs/errors/E202",
	},
	"E203": {
		Category: CategoryServer,
		Message:  "Invalid store value",
		Detail:   "The request body must be a single valid JSON value.",
		DocURL:   "https://vstore.dev/docs/errors/E203",
	},
	"E204": {
		Category: CategoryServer,
		Message:  "Store already registered",
		Detail:   "A store with this name already exists in the registry.",
		DocURL:   "https://vstore.dev/docs/errors/E204",
	},
	"E205": {
		Category: CategoryServer,
		Message:  "WebSocket upgrade failed",
		Detail:   "The connection could not be upgraded. Check the Origin header against server.allowedOrigins.",
		DocURL:   "https://vstore.dev/docs/errors/E205",
	},
	"E206": {
		Category: CategoryServer,
		Message:  "Server failed to start",
		Detail:   "The HTTP listener could not be started. The address may already be in use.",
		DocURL:   "https://vstore.dev/docs/errors/E206",
	},

	// ============================================
	// Persistence Errors (E300-E399)
	// ============================================

	"E301": {
		Category: CategoryPersist,
		Message:  "Snapshot restore failed",
		Detail:   "A saved snapshot could not be loaded or decoded into the store.",
		DocURL:   "https://vstore.dev/docs/errors/E301",
	},
	"E302": {
		Category: CategoryPersist,
		Message:  "Persistence backend unavailable",
		Detail:   "The configured backend could not be created.",
		DocURL:   "https://vstore.dev/docs/errors/E302",
	},

	// ============================================
	// CLI Errors (E400-E499)
	// ============================================

	"E401": {
		Category: CategoryCLI,
		Message:  "Configuration already exists",
		Detail:   "vstore.json already exists in this directory. Use --force to overwrite it.",
		DocURL:   "https://vstore.dev/docs/errors/E401",
	},
	"E402": {
		Category: CategoryCLI,
		Message:  "Server request failed",
		Detail:   "The vstore server could not be reached or returned an error.",
		DocURL:   "https://vstore.dev/docs/errors/E402",
	},
	"E403": {
		Category: CategoryCLI,
		Message:  "Invalid JSON argument",
		Detail:   "The value argument must be valid JSON. Quote strings, e.g. '\"hello\"'.",
		DocURL:   "https://vstore.dev/docs/errors/E403",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
