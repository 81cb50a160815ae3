package markdown

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// linkPattern matches markdown links and images: [text](url "title") or
// ![text](url "title"). Group 1 is the leading "!" (empty for plain links),
// group 2 is link text, group 3 is the URL, group 4 is an optional title.
var linkPattern = regexp.MustCompile(`(!?)\[([^\]]*)\]\(([^)\s]+)(?:\s+"([^"]*)")?\)`)

type linkEntry struct {
	number      int
	description string
}

// ConvertLinksToCitations rewrites every markdown link in md into a
// ⟨N⟩-numbered citation, in first-occurrence order, and returns the
// rewritten text alongside a trailing "## References" block listing each
// distinct URL once. baseURL resolves relative links before they are keyed
// into the reference map.
func ConvertLinksToCitations(md string, baseURL string) (string, string) {
	linkMap := make(map[string]linkEntry)
	var order []string
	counter := 1

	var out strings.Builder
	lastEnd := 0

	matches := linkPattern.FindAllStringSubmatchIndex(md, -1)
	for _, m := range matches {
		out.WriteString(md[lastEnd:m[0]])

		bang := md[m[2]:m[3]]
		text := md[m[4]:m[5]]
		linkURL := md[m[6]:m[7]]
		title := ""
		if m[8] >= 0 {
			title = md[m[8]:m[9]]
		}

		if baseURL != "" && !strings.HasPrefix(linkURL, "http://") &&
			!strings.HasPrefix(linkURL, "https://") && !strings.HasPrefix(linkURL, "mailto:") {
			linkURL = resolve(baseURL, linkURL)
		}

		entry, seen := linkMap[linkURL]
		if !seen {
			var descParts []string
			if title != "" {
				descParts = append(descParts, title)
			}
			if text != "" && text != title {
				descParts = append(descParts, text)
			}
			desc := ""
			if len(descParts) > 0 {
				desc = ": " + strings.Join(descParts, " - ")
			}
			entry = linkEntry{number: counter, description: desc}
			linkMap[linkURL] = entry
			order = append(order, linkURL)
			counter++
		}

		if bang == "!" {
			fmt.Fprintf(&out, "![%s⟨%d⟩]", text, entry.number)
		} else {
			fmt.Fprintf(&out, "%s⟨%d⟩", text, entry.number)
		}

		lastEnd = m[1]
	}
	out.WriteString(md[lastEnd:])

	sort.Slice(order, func(i, j int) bool {
		return linkMap[order[i]].number < linkMap[order[j]].number
	})

	var refs strings.Builder
	refs.WriteString("\n\n## References\n\n")
	for _, u := range order {
		entry := linkMap[u]
		fmt.Fprintf(&refs, "⟨%d⟩ %s%s\n", entry.number, u, entry.description)
	}

	return out.String(), refs.String()
}

func resolve(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}
