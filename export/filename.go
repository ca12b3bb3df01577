package export

import (
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	// FallbackBaseName is used when sanitizing leaves nothing usable.
	FallbackBaseName = "document"

	// OutputSuffix is appended to every derived output name.
	OutputSuffix = "-signed.pdf"
)

// OutputName derives an advisory output filename from the source file
// name. Unsafe characters are replaced with hyphens, runs are collapsed,
// and leading/trailing separators are trimmed; an empty result falls back
// to a fixed base name. The name is metadata for the consumer, not part of
// the document bytes.
func OutputName(sourceName string) string {
	base := path.Base(strings.ReplaceAll(sourceName, "\\", "/"))
	if ext := path.Ext(base); strings.EqualFold(ext, ".pdf") {
		base = strings.TrimSuffix(base, ext)
	}
	base = norm.NFKC.String(base)

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}

	cleaned := b.String()
	for strings.Contains(cleaned, "--") {
		cleaned = strings.ReplaceAll(cleaned, "--", "-")
	}
	cleaned = strings.Trim(cleaned, "-._")
	if cleaned == "" || cleaned == "." || cleaned == ".." {
		cleaned = FallbackBaseName
	}
	return cleaned + OutputSuffix
}
