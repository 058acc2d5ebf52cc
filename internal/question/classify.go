package question

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	warEventWords        = []string{"戦争", "乱", "一揆", "革命", "事変", "変"}
	treatyLawWords       = []string{"条約", "憲法", "法", "令", "詔", "布告", "改正"}
	geographyWords       = []string{"県", "都", "道", "府", "市", "村", "山", "川", "湖", "湾", "島", "平野", "高原"}
	politicsEconomyWords = []string{"内閣", "議会", "大統領", "選挙", "権", "自由", "民主", "市場", "経済", "GDP", "憲政"}

	personPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^[\x{4E00}-\x{9FA5}]{2,4}$`),
		regexp.MustCompile(`^[\x{30A1}-\x{30F6}ー]+$`),
		regexp.MustCompile(`^[A-Za-z .-]+$`),
	}
)

// Classify maps an answer to a Category. Rules are evaluated in order and the
// first match wins: a year must be caught before the person patterns, and
// keyword rules before the short-kanji person rule.
func Classify(answer string) Category {
	ans := strings.TrimSpace(answer)
	if ans == "" {
		return CategoryOther
	}
	if isDigits(ans) {
		return CategoryEraYear
	}
	if containsAny(ans, warEventWords) {
		return CategoryWarEvent
	}
	if containsAny(ans, treatyLawWords) {
		return CategoryTreatyLaw
	}
	for _, re := range personPatterns {
		if re.MatchString(ans) {
			return CategoryPerson
		}
	}
	if containsAny(ans, geographyWords) {
		return CategoryGeography
	}
	if containsAny(ans, politicsEconomyWords) {
		return CategoryPoliticsEconomy
	}
	return CategoryOther
}

// ClassifyPool attaches a category to every question in place.
func ClassifyPool(p Pool) {
	for i := range p {
		p[i].Category = Classify(p[i].Answer)
	}
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
