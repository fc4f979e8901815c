package attribution

import "strings"

const (
	UnverifiedTag  = "ℹ️ Unverified Medical Resource"
	FallbackOrigin = "Medical Resource"
)

type credibility struct {
	domain string
	tag    string
}

// table is priority ordered; the first domain contained in the origin wins.
var table = []credibility{
	{"pubmed", "⭐⭐⭐ Peer-Reviewed"},
	{"nih.gov", "⭐⭐⭐ Government Health Authority"},
	{"who.int", "⭐⭐⭐ International Health Authority"},
	{"cdc.gov", "⭐⭐⭐ Government Health Authority"},
	{"mayoclinic.org", "⭐⭐ Trusted Medical Institution"},
	{"clevelandclinic.org", "⭐⭐ Trusted Medical Institution"},
	{"cochrane.org", "⭐⭐⭐ Systematic Reviews"},
	{"uptodate.com", "⭐⭐ Clinical Decision Support"},
}

// AssessCredibility returns the credibility tag of a source origin.
func AssessCredibility(origin string) string {
	o := strings.ToLower(origin)
	for _, c := range table {
		if strings.Contains(o, c.domain) {
			return c.tag
		}
	}
	return UnverifiedTag
}

// Annotate renders one "<origin> <tag>" line per source, keeping order and
// duplicates.
func Annotate(origins []string) []string {
	lines := make([]string, 0, len(origins))
	for _, origin := range origins {
		if strings.TrimSpace(origin) == "" {
			origin = FallbackOrigin
		}
		lines = append(lines, origin+" "+AssessCredibility(origin))
	}
	return lines
}

func Join(lines []string) string {
	return strings.Join(lines, "\n")
}
