package config

import (
	"os"
	"regexp"
	"sort"
)

// envVarPattern matches ${VAR} or ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnvVars expands environment variable references in the input string.
// Supports two formats:
//   - ${VAR} - replaced with the value of VAR, or empty string if not set
//   - ${VAR:-default} - replaced with VAR's value, or "default" if not set
func ExpandEnvVars(input string) string {
	out, _ := expandEnv(input)
	return out
}

// ExpandEnvVarsBytes expands a byte slice and also reports the variables that
// were unset and had no default, sorted and de-duplicated.
func ExpandEnvVarsBytes(input []byte) ([]byte, []string) {
	out, missing := expandEnv(string(input))
	return []byte(out), missing
}

func expandEnv(input string) (string, []string) {
	seen := map[string]bool{}
	out := envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		sub := envVarPattern.FindStringSubmatch(match)
		name := sub[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		// The default group only participates when ":-" was written.
		if len(match) > len(name)+3 {
			return sub[2]
		}
		seen[name] = true
		return ""
	})

	var missing []string
	for name := range seen {
		missing = append(missing, name)
	}
	sort.Strings(missing)
	return out, missing
}
