package querysandbox

type Config struct {
	MaxRows             int
	MaxExpressionLength int
	// Blacklist is matched case-insensitively as substrings of the whole
	// expression, string literals included.
	Blacklist []string
}

func LoadConfig() *Config {
	return &Config{
		MaxRows:             1000,
		MaxExpressionLength: 2000,
		Blacklist: []string{
			"delete", "update", "create", "save", "bulk_create", "bulk_update",
			"raw", "execute", "cursor", "eval", "exec", "compile", "__import__",
			"import", "open", "file", "input", "system", "popen", "subprocess",
			"lambda", "globals", "getattr", "setattr",
		},
	}
}

// Validation layers, in the order they run.
const (
	LayerLexical    = "lexical"
	LayerStructural = "structural"
	LayerSchema     = "schema"
	LayerExecution  = "execution"
)

// Queryset methods an expression may call.
var allowedMethods = map[string]bool{
	"all": true, "filter": true, "exclude": true, "count": true, "exists": true,
	"first": true, "last": true, "values": true, "values_list": true,
	"order_by": true, "distinct": true, "aggregate": true, "annotate": true,
	"get": true,
}

// Free functions an expression may call.
var allowedFunctions = map[string]bool{
	"Count": true, "Sum": true, "Avg": true, "Max": true, "Min": true, "Q": true,
}
