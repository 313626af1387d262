// Package sanitize implements the five-pass output scrubber: PII, secrets,
// tool-invocation syntax, filesystem paths, and debug content are rewritten
// across every textual field of an assembled review. Sanitization is a fixed
// point: running it twice yields the same output.
package sanitize

import "regexp"

// Pass identifies which rewriting pass produced an action.
type Pass string

const (
	PassPII     Pass = "pii"
	PassSecret  Pass = "secret"
	PassTool    Pass = "tool_syntax"
	PassPath    Pass = "path"
	PassContent Pass = "content"
)

// compiledPattern holds a pre-compiled regex with its replacement and
// confidence model.
type compiledPattern struct {
	Name        string
	Pass        Pass
	Regex       *regexp.Regexp
	Replacement string
	// BaseConfidence is raised by length/format specificity at match time.
	BaseConfidence int
}

// piiPatterns detect personal identifiers. Replacement tokens never rematch
// any pattern, which keeps the sanitizer idempotent.
var piiPatterns = []compiledPattern{
	{
		Name:           "email",
		Pass:           PassPII,
		Regex:          regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),
		Replacement:    "[email]",
		BaseConfidence: 85,
	},
	{
		Name:           "phone",
		Pass:           PassPII,
		Regex:          regexp.MustCompile(`(?:\+?\d{1,3}[-. (]{1,2})?\(?\d{3}\)?[-. ]\d{3}[-. ]\d{4}\b`),
		Replacement:    "[phone_number]",
		BaseConfidence: 65,
	},
	{
		Name:           "ssn",
		Pass:           PassPII,
		Regex:          regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
		Replacement:    "[ssn]",
		BaseConfidence: 80,
	},
	{
		Name:           "credit-card",
		Pass:           PassPII,
		Regex:          regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`),
		Replacement:    "[credit_card]",
		BaseConfidence: 55,
	},
}

// secretPatterns detect credential material. Category tags drive the
// replacement token.
var secretPatterns = []compiledPattern{
	{
		Name:           "api-key-assignment",
		Pass:           PassSecret,
		Regex:          regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*["']?[A-Za-z0-9_\-]{16,}["']?`),
		Replacement:    "[API_KEY]",
		BaseConfidence: 85,
	},
	{
		Name:           "bearer-token",
		Pass:           PassSecret,
		Regex:          regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_\-.~+/]{20,}=*`),
		Replacement:    "[TOKEN]",
		BaseConfidence: 85,
	},
	{
		Name:           "token-assignment",
		Pass:           PassSecret,
		Regex:          regexp.MustCompile(`(?i)(auth[_-]?token|access[_-]?token|secret[_-]?key|token)\s*[:=]\s*["']?[A-Za-z0-9_\-.]{16,}["']?`),
		Replacement:    "[TOKEN]",
		BaseConfidence: 80,
	},
	{
		Name:           "password-assignment",
		Pass:           PassSecret,
		Regex:          regexp.MustCompile(`(?i)(password|passwd|pwd)\s*[:=]\s*["']?[^\s"']{6,}["']?`),
		Replacement:    "[PASSWORD]",
		BaseConfidence: 75,
	},
	{
		Name:           "private-key-block",
		Pass:           PassSecret,
		Regex:          regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`),
		Replacement:    "[API_KEY]",
		BaseConfidence: 95,
	},
}

// toolPatterns hide tool-invocation markers that leak agent transcripts.
var toolPatterns = []compiledPattern{
	{
		Name:           "function-call-fence",
		Pass:           PassTool,
		Regex:          regexp.MustCompile(`(?s)<function_calls>.*?(</function_calls>|$)`),
		Replacement:    "[TOOL EXECUTION]",
		BaseConfidence: 95,
	},
	{
		Name:           "function-result-fence",
		Pass:           PassTool,
		Regex:          regexp.MustCompile(`(?s)<function_results>.*?(</function_results>|$)`),
		Replacement:    "[TOOL EXECUTION]",
		BaseConfidence: 95,
	},
	{
		Name:           "tool-call-tag",
		Pass:           PassTool,
		Regex:          regexp.MustCompile(`(?s)<tool_(?:call|use)>.*?(</tool_(?:call|use)>|$)`),
		Replacement:    "[TOOL CALL]",
		BaseConfidence: 90,
	},
}

// contentPatterns strip debug noise under the strict level.
var contentPatterns = []compiledPattern{
	{
		Name:           "stack-trace-line",
		Pass:           PassContent,
		Regex:          regexp.MustCompile(`(?m)^\s+at\s+\S+\s*\(.*\)\s*$`),
		Replacement:    "",
		BaseConfidence: 90,
	},
	{
		Name:           "goroutine-header",
		Pass:           PassContent,
		Regex:          regexp.MustCompile(`(?m)^goroutine \d+ \[.*\]:$`),
		Replacement:    "",
		BaseConfidence: 90,
	},
	{
		Name:           "debug-print",
		Pass:           PassContent,
		Regex:          regexp.MustCompile(`(?mi)^.*\b(console\.log|fmt\.Println|println!|print)\(.*DEBUG.*$`),
		Replacement:    "",
		BaseConfidence: 70,
	},
}

// homePathRe matches user-home prefixes for path anonymization.
var homePathRe = regexp.MustCompile(`(?:/home/[A-Za-z0-9._-]+|/Users/[A-Za-z0-9._-]+|C:\\Users\\[A-Za-z0-9._-]+)`)

// pathRe matches absolute unix-ish paths for depth contraction.
var pathRe = regexp.MustCompile(`(?:~|/[A-Za-z0-9._-]+)(?:/[A-Za-z0-9._-]+){2,}`)
