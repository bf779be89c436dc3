package advisor

import "strings"

var keyEscaper = strings.NewReplacer("%", "%25", "_", "%5F")

// Key joins a category prefix and request fields with "_". Fields are trimmed
// and have "%" and "_" escaped, so distinct requests never share a key.
func Key(prefix string, fields ...string) string {
	var sb strings.Builder
	sb.WriteString(prefix)
	for _, f := range fields {
		sb.WriteByte('_')
		sb.WriteString(keyEscaper.Replace(strings.TrimSpace(f)))
	}
	return sb.String()
}
