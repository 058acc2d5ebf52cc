package question

// Category is the coarse topic tag assigned to an answer by Classify.
type Category string

// Category constants, in rule order.
const (
	CategoryEraYear         Category = "era_year"
	CategoryWarEvent        Category = "war_event"
	CategoryTreatyLaw       Category = "treaty_law"
	CategoryPerson          Category = "person"
	CategoryGeography       Category = "geography"
	CategoryPoliticsEconomy Category = "politics_economy"
	CategoryOther           Category = "other"
)

var categoryLabels = map[Category]string{
	CategoryEraYear:         "年号",
	CategoryWarEvent:        "戦争・事件",
	CategoryTreatyLaw:       "条約・法令",
	CategoryPerson:          "人物",
	CategoryGeography:       "地理",
	CategoryPoliticsEconomy: "政治・経済",
	CategoryOther:           "その他",
}

// Label returns the Japanese display name of the category.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return categoryLabels[CategoryOther]
}

// Categories lists every tag in rule order.
func Categories() []Category {
	return []Category{
		CategoryEraYear,
		CategoryWarEvent,
		CategoryTreatyLaw,
		CategoryPerson,
		CategoryGeography,
		CategoryPoliticsEconomy,
		CategoryOther,
	}
}

// Question is one loaded row. ID is the zero-based row position inside its
// pool and is the only identity used for membership checks.
type Question struct {
	ID       int      `json:"id"`
	Prompt   string   `json:"prompt"`
	Answer   string   `json:"answer"`
	Category Category `json:"category"`
	Field    string   `json:"field,omitempty"`
}

// Pool is the ordered set of questions loaded for a session.
type Pool []Question

// Clone returns an independent copy so sessions never share a backing array.
func (p Pool) Clone() Pool {
	if p == nil {
		return nil
	}
	out := make(Pool, len(p))
	copy(out, p)
	return out
}

// ByID looks up a question by its row id.
func (p Pool) ByID(id int) (Question, bool) {
	if id >= 0 && id < len(p) && p[id].ID == id {
		return p[id], true
	}
	for _, q := range p {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// DistinctAnswers counts unique answer strings.
func (p Pool) DistinctAnswers() int {
	seen := make(map[string]struct{}, len(p))
	for _, q := range p {
		seen[q.Answer] = struct{}{}
	}
	return len(seen)
}

// CategoryCounts tallies how many questions fall in each category.
func (p Pool) CategoryCounts() map[Category]int {
	counts := make(map[Category]int)
	for _, q := range p {
		counts[q.Category]++
	}
	return counts
}
