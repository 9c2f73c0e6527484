package skills

import (
	"fmt"
	"strings"
)

// promptPreamble is the fixed instruction block explaining the
// load-one-skill-at-a-time policy: the model sees a stub for most
// skills and must request the full body before using one.
const promptPreamble = `You have access to skills: packaged instructions for specific tasks.
Skills marked "always" are already loaded below in full. For any other
skill, read its SKILL.md at the given location before using it — do not
guess its contents.`

const truncationMarker = "\n[... skills list truncated ...]"

// BuildPromptSection renders the fixed preamble followed by one entry per
// visible skill: a full block for always=true skills, a self-closing stub
// otherwise. Accumulation stops at maxCount entries or maxChars total
// characters, whichever comes first, appending a truncation marker.
func BuildPromptSection(visible []Skill, maxCount, maxChars int) string {
	var b strings.Builder
	b.WriteString(promptPreamble)

	count := 0
	for _, s := range visible {
		if maxCount > 0 && count >= maxCount {
			b.WriteString(truncationMarker)
			break
		}

		var entry string
		if s.Always {
			entry = fmt.Sprintf("\n\n<skill name=%q>\n%s\n</skill>", s.Name, s.Body)
		} else {
			entry = fmt.Sprintf("\n\n<skill name=%q description=%q location=%q />", s.Name, s.Description, s.Location)
		}

		if maxChars > 0 && b.Len()+len(entry) > maxChars {
			b.WriteString(truncationMarker)
			break
		}
		b.WriteString(entry)
		count++
	}
	return b.String()
}
