package source

import (
	"path"
	"strings"
	"unicode"

	"github.com/Aman-CERP/docsmcp/internal/config"
	"github.com/Aman-CERP/docsmcp/internal/gitignore"
)

const maxDescriptionLen = 200

// ExtractTitle returns the text of the first "# " line of content, or the
// file stem with underscores as spaces in title case.
func ExtractTitle(content, fileName string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			if title := strings.TrimSpace(line[2:]); title != "" {
				return title
			}
		}
	}
	stem := strings.TrimSuffix(fileName, path.Ext(fileName))
	return titleCase(strings.ReplaceAll(stem, "_", " "))
}

// titleCase upper-cases the first letter of every word and lower-cases the
// rest. A word starts after any non-letter.
func titleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if prevLetter {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(unicode.ToUpper(r))
		}
		prevLetter = unicode.IsLetter(r)
	}
	return b.String()
}

// ExtractDescription returns the first paragraph after the title, cut to
// 200 characters and followed by "...". It is empty when the document has
// no title or no text after it.
func ExtractDescription(content string) string {
	var parts []string
	foundTitle := false
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			foundTitle = true
			continue
		}
		if !foundTitle || line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "```") || strings.HasPrefix(line, "---") {
			break
		}
		parts = append(parts, line)
		if len(strings.Join(parts, " ")) > maxDescriptionLen {
			break
		}
	}
	if len(parts) == 0 {
		return ""
	}
	desc := []rune(strings.Join(parts, " "))
	if len(desc) > maxDescriptionLen {
		desc = desc[:maxDescriptionLen]
	}
	return string(desc) + "..."
}

// IsReference reports whether relPath (relative to the repository root)
// is a reference page: it matches one of patterns or has a "reference"
// directory component. Relative patterns match from the right, so
// "reference/*.md" matches "doc/reference/Button.md".
func IsReference(relPath string, patterns []string) bool {
	if len(patterns) > 0 {
		m := gitignore.New()
		for _, p := range patterns {
			m.AddPattern(p)
			if !strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "**/") {
				m.AddPattern("**/" + p)
			}
		}
		if m.Match(relPath, false) {
			return true
		}
	}
	for _, part := range strings.Split(path.Dir(relPath), "/") {
		if part == "reference" {
			return true
		}
	}
	return false
}

// DocURL builds the published URL of relPath. Inside a folder with a URL
// path the folder prefix is replaced by that path; otherwise the first
// path component is dropped. Returns "" without a base URL.
func DocURL(p config.ProjectConfig, relPath, folder string) string {
	base := strings.TrimRight(p.BaseURL, "/")
	if base == "" {
		return ""
	}

	urlPath := ""
	if f, ok := p.Folders[folder]; ok {
		urlPath = strings.Trim(f.URLPath, "/")
	}

	docPath := relPath
	if urlPath != "" && folder != "" {
		docPath = strings.TrimPrefix(strings.TrimPrefix(relPath, strings.Trim(folder, "/")), "/")
	} else if i := strings.Index(relPath, "/"); i >= 0 {
		docPath = relPath[i+1:]
	}
	docPath = htmlPath(docPath)

	if urlPath != "" {
		return base + "/" + urlPath + "/" + docPath
	}
	return base + "/" + docPath
}

func htmlPath(p string) string {
	for _, ext := range []string{".md", ".ipynb", ".rst"} {
		if strings.HasSuffix(p, ext) {
			return strings.TrimSuffix(p, ext) + ".html"
		}
	}
	return p
}

// SourceURL links relPath in the project's hosted repository. Only http(s)
// remotes produce a link.
func SourceURL(p config.ProjectConfig, relPath string) string {
	if !strings.HasPrefix(p.URL, "https://") && !strings.HasPrefix(p.URL, "http://") {
		return ""
	}
	ref := p.Branch
	if ref == "" {
		ref = "HEAD"
	}
	return strings.TrimSuffix(strings.TrimRight(p.URL, "/"), ".git") + "/blob/" + ref + "/" + relPath
}

// Category is the first directory of relPath below its folder, or "" for
// files directly inside the folder.
func Category(relPath, folder string) string {
	rel := relPath
	if folder != "" {
		rel = strings.TrimPrefix(strings.TrimPrefix(relPath, strings.Trim(folder, "/")), "/")
	}
	if i := strings.Index(rel, "/"); i >= 0 {
		return rel[:i]
	}
	return ""
}
