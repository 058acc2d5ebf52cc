package question

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func poolOf(answers ...string) Pool {
	p := make(Pool, len(answers))
	for i, a := range answers {
		p[i] = Question{ID: i, Prompt: fmt.Sprintf("Q%d", i), Answer: a}
	}
	ClassifyPool(p)
	return p
}

func TestDistractorsDistinctWhenPoolIsLargeEnough(t *testing.T) {
	p := poolOf("織田信長", "豊臣秀吉", "徳川家康", "1600", "応仁の乱", "日米和親条約", "琵琶湖のほとり")

	for seed := uint64(0); seed < 50; seed++ {
		r := seeded(seed)
		for _, q := range p {
			got := Distractors(q, p, r)
			require.Len(t, got, DistractorCount)
			assert.NotContains(t, got, q.Answer)
			assert.Len(t, dedupe(got), DistractorCount, "duplicates in %v", got)
		}
	}
}

func TestDistractorsComparesRowsNotText(t *testing.T) {
	// two rows share the correct text; neither may be offered as a distractor
	p := poolOf("聖徳太子", "聖徳太子", "中大兄皇子", "中臣鎌足", "蘇我馬子")
	for seed := uint64(0); seed < 20; seed++ {
		got := Distractors(p[0], p, seeded(seed))
		assert.NotContains(t, got, "聖徳太子")
		assert.ElementsMatch(t, []string{"中大兄皇子", "中臣鎌足", "蘇我馬子"}, got)
	}
}

func TestDistractorsPrefersSameCategory(t *testing.T) {
	answers := []string{"織田信長", "豊臣秀吉", "徳川家康", "足利尊氏"}
	for i := 0; i < 30; i++ {
		answers = append(answers, fmt.Sprintf("その他の用語%02dについての説明文", i))
	}
	p := poolOf(answers...)

	_, list := shortlist(p[0], p)
	require.GreaterOrEqual(t, len(list), 3)
	assert.Equal(t, []string{"豊臣秀吉", "徳川家康", "足利尊氏"}, list[:3])
	assert.LessOrEqual(t, len(list), sameCategoryLimit+similarLimit)
}

func TestShortlistCapsSameCategory(t *testing.T) {
	p := poolOf("1600", "1185", "1192", "1333", "1467", "1543", "1549", "1582", "1590")
	_, list := shortlist(p[0], p)
	assert.Equal(t, []string{"1185", "1192", "1333", "1467", "1543"}, list[:5])
	assert.NotContains(t, list, "1600")
}

func TestDistractorsIsRandomButSeedable(t *testing.T) {
	p := poolOf("a1", "a2", "a3", "a4", "a5", "a6", "a7", "a8")
	first := Distractors(p[0], p, seeded(42))
	again := Distractors(p[0], p, seeded(42))
	assert.Equal(t, first, again)

	varied := false
	for seed := uint64(1); seed < 30 && !varied; seed++ {
		varied = fmt.Sprint(Distractors(p[0], p, seeded(seed))) != fmt.Sprint(first)
	}
	assert.True(t, varied, "sampling should vary across seeds")
}

func TestDistractorsTwoDistinctAnswers(t *testing.T) {
	p := poolOf("東京", "大阪")
	got := Distractors(p[0], p, seeded(1))
	require.Len(t, got, DistractorCount)
	assert.Equal(t, []string{"大阪", "大阪", "大阪"}, got)
}

func TestDistractorsSingleQuestionPool(t *testing.T) {
	p := poolOf("東京")
	assert.NotPanics(t, func() {
		got := Distractors(p[0], p, seeded(1))
		assert.Len(t, got, DistractorCount)
	})
}

func TestDistractorsFillsFromOtherAnswers(t *testing.T) {
	// the shortlist is capped, so many rows with one text leave it short
	answers := []string{"x0"}
	for i := 0; i < 12; i++ {
		answers = append(answers, "x1")
	}
	answers = append(answers, "zzzzzzzzzz", "yyyyyyyyyy")
	p := poolOf(answers...)

	got := Distractors(p[0], p, seeded(3))
	assert.ElementsMatch(t, []string{"x1", "zzzzzzzzzz", "yyyyyyyyyy"}, got)
}

func TestBuildChoices(t *testing.T) {
	p := poolOf("1853", "1868", "1889", "1894", "1904")
	choices := BuildChoices(p[1], p, seeded(9))
	require.Len(t, choices, DistractorCount+1)

	count := 0
	for _, c := range choices {
		if c == "1868" {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Len(t, dedupe(choices), len(choices))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("徳川家康", "徳川家康"))
	assert.Greater(t, Similarity("徳川家康", "徳川家光"), Similarity("徳川家康", "1600"))
}
