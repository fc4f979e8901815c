package classifier

import "strings"

type Category string

const (
	Treatment   Category = "treatment"
	Diagnosis   Category = "diagnosis"
	SideEffects Category = "side_effects"
	Prevention  Category = "prevention"
	Research    Category = "research"
	General     Category = "general"
)

type rule struct {
	category Category
	keywords []string
}

// rules are evaluated in order; the first category with a matching keyword wins.
var rules = []rule{
	{Treatment, []string{"treat", "treatment", "therapy", "medication", "drug"}},
	{Diagnosis, []string{"diagnose", "diagnosis", "symptoms", "signs", "criteria"}},
	{SideEffects, []string{"side effect", "adverse", "complication", "risk"}},
	{Prevention, []string{"prevent", "prevention", "avoid", "reduce risk"}},
	{Research, []string{"research", "study", "evidence", "findings"}},
}

// Classify tags a question by substring keyword match on its lower-cased text.
func Classify(query string) Category {
	q := strings.ToLower(query)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(q, kw) {
				return r.category
			}
		}
	}
	return General
}
