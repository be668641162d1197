// Package issues implements the issue store (spec.md component C3): a
// two-directory filesystem store of numbered markdown work items.
package issues

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wballard/swissarmyhammer/internal/errs"
)

// MaxIssueNumber is the largest representable issue number (spec.md §8).
const MaxIssueNumber = 999999

// Issue is a numbered markdown work item.
type Issue struct {
	Number    int
	Name      string
	Content   string
	Completed bool
	Path      string
	CreatedAt time.Time
}

// filenamePattern recognizes "<nnnnnn>_<name>.md".
var filenamePattern = regexp.MustCompile(`^(\d{6})_(.+)\.md$`)

// parseFilename extracts the number and name from a recognized filename.
func parseFilename(filename string) (number int, name string, ok bool) {
	m := filenamePattern.FindStringSubmatch(filename)
	if m == nil {
		return 0, "", false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n > MaxIssueNumber {
		return 0, "", false
	}
	return n, m[2], true
}

// reservedNames covers Windows reserved device names; sanitizeName suffixes
// these to keep filenames portable across platforms.
var reservedNames = map[string]bool{
	"con": true, "prn": true, "aux": true, "nul": true,
	"com1": true, "com2": true, "com3": true, "com4": true,
	"com5": true, "com6": true, "com7": true, "com8": true, "com9": true,
	"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true,
	"lpt5": true, "lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
}

var unsafeChars = regexp.MustCompile(`[\s/\\:*?"<>|]+`)
var dashRuns = regexp.MustCompile(`-+`)

// sanitizeName applies spec.md §3's filesystem-sanitization rules. Names
// containing path-traversal sequences are rejected outright rather than
// sanitized.
func sanitizeName(name string) (string, error) {
	if strings.Contains(name, "..") || strings.Contains(name, "./") || strings.Contains(name, ".\\") {
		return "", errs.InvalidInput(name, "path traversal sequence rejected")
	}

	s := unsafeChars.ReplaceAllString(name, "-")
	s = dashRuns.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	if s == "" {
		s = "issue"
	}

	if reservedNames[strings.ToLower(s)] {
		s += "-issue"
	}

	return s, nil
}

// deriveNameFromContent falls back to the markdown's first "# Heading" when
// create() is called with an empty name (supplemented feature, SPEC_FULL.md
// §C.2).
func deriveNameFromContent(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return "issue"
}

func fileCreatedAt(info os.FileInfo) time.Time {
	return info.ModTime()
}
