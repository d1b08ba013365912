package render

import "strings"

const (
	AlJazeera = "aljazeera"

	// AlJazeeraBrowserWarning is injected into every aljazeera page the
	// scraper fetched with an old user agent.
	AlJazeeraBrowserWarning = "Caution iconAttention The browser or device you are using is out of date.  " +
		"It has known security flaws and a limited feature set.  " +
		"You will not see all the features of some websites.  " +
		"Please update your browser."
)

// Clean strips source-specific boilerplate. Content from other sources is
// returned unchanged.
func Clean(source, content string) string {
	if source != AlJazeera {
		return content
	}
	return strings.ReplaceAll(content, AlJazeeraBrowserWarning, "")
}
