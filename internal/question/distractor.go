package question

import (
	"math/rand/v2"
	"slices"

	"github.com/agext/levenshtein"
)

const (
	// DistractorCount is the number of wrong choices shown per question.
	DistractorCount = 3

	sameCategoryLimit = 5
	similarLimit      = 10
)

// Distractors picks DistractorCount wrong answers for correct out of pool.
// Same-category answers come first, then the most similar answers by
// normalized edit similarity; three are sampled from that shortlist so a
// popular question does not always show the same options. When the shortlist
// is too short the rest is filled from the other answers, with replacement
// once distinct answers run out.
func Distractors(correct Question, pool Pool, r *rand.Rand) []string {
	candidates, list := shortlist(correct, pool)
	if len(list) >= DistractorCount {
		return sample(list, DistractorCount, r)
	}

	picked := slices.Clone(list)
	chosen := make(map[string]struct{}, len(picked))
	for _, a := range picked {
		chosen[a] = struct{}{}
	}
	var filler []string
	for _, q := range candidates {
		if _, ok := chosen[q.Answer]; ok || q.Answer == correct.Answer {
			continue
		}
		chosen[q.Answer] = struct{}{}
		filler = append(filler, q.Answer)
	}

	need := DistractorCount - len(picked)
	if len(filler) >= need {
		return append(picked, sample(filler, need, r)...)
	}
	picked = append(picked, filler...)

	// Fewer distinct wrong answers than slots: reuse with replacement.
	reuse := picked
	if len(reuse) == 0 {
		reuse = answers(candidates)
	}
	if len(reuse) == 0 {
		reuse = []string{correct.Answer}
	}
	for len(picked) < DistractorCount {
		picked = append(picked, reuse[r.IntN(len(reuse))])
	}
	return picked
}

// shortlist returns every other row plus the de-duplicated preferred answers:
// up to five same-category answers in source order, then the ten most similar.
func shortlist(correct Question, pool Pool) ([]Question, []string) {
	candidates := make([]Question, 0, len(pool))
	for _, q := range pool {
		if q.ID != correct.ID {
			candidates = append(candidates, q)
		}
	}

	list := make([]string, 0, sameCategoryLimit+similarLimit)
	for _, q := range candidates {
		if len(list) == sameCategoryLimit {
			break
		}
		if q.Category == correct.Category {
			list = append(list, q.Answer)
		}
	}
	list = append(list, mostSimilar(correct.Answer, candidates, similarLimit)...)
	return candidates, without(dedupe(list), correct.Answer)
}

// BuildChoices returns the distractors plus the correct answer, shuffled.
func BuildChoices(correct Question, pool Pool, r *rand.Rand) []string {
	choices := append(Distractors(correct, pool, r), correct.Answer)
	r.Shuffle(len(choices), func(i, j int) {
		choices[i], choices[j] = choices[j], choices[i]
	})
	return choices
}

// Similarity is the normalized edit similarity of two answers in [0,1].
func Similarity(a, b string) float64 {
	return levenshtein.Similarity(a, b, nil)
}

type scored struct {
	answer string
	score  float64
}

func mostSimilar(target string, candidates []Question, limit int) []string {
	ranked := make([]scored, len(candidates))
	for i, q := range candidates {
		ranked[i] = scored{answer: q.Answer, score: Similarity(target, q.Answer)}
	}
	slices.SortStableFunc(ranked, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]string, len(ranked))
	for i, s := range ranked {
		out[i] = s.answer
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func without(in []string, drop string) []string {
	return slices.DeleteFunc(in, func(s string) bool { return s == drop })
}

// sample draws n items uniformly without replacement.
func sample(in []string, n int, r *rand.Rand) []string {
	idx := r.Perm(len(in))[:n]
	out := make([]string, n)
	for i, j := range idx {
		out[i] = in[j]
	}
	return out
}

func answers(qs []Question) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.Answer
	}
	return out
}
