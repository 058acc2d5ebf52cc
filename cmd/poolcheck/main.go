package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gokatarajesh/shakai-quiz/internal/question"
)

func main() {
	var (
		requireField = flag.Bool("require-field", false, "Fail when the 分野 column is missing or empty")
		field        = flag.String("field", "", "Field recorded for rows without a 分野 value (defaults to the file name)")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] file.csv...\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	failed := false
	for _, path := range flag.Args() {
		pool, err := load(path, *field, *requireField)
		if err != nil {
			log.Error().Err(err).Str("file", path).Msg("pool rejected")
			failed = true
			continue
		}

		log.Info().
			Str("file", path).
			Int("questions", len(pool)).
			Int("distinct_answers", pool.DistinctAnswers()).
			Msg("pool ok")
		if pool.DistinctAnswers() < 4 {
			log.Warn().Str("file", path).Msg("fewer than four distinct answers; choices will be padded")
		}
		printCategories(path, pool)
	}

	if failed {
		os.Exit(1)
	}
}

func load(path, field string, requireField bool) (question.Pool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if field == "" {
		field = filepath.Base(path)
	}
	return question.Load(f, question.LoadOptions{
		RequireField: requireField,
		DefaultField: field,
	})
}

func printCategories(path string, pool question.Pool) {
	counts := pool.CategoryCounts()
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\n", path)
	for _, c := range question.Categories() {
		fmt.Fprintf(tw, "  %s\t%s\t%d\n", c, c.Label(), counts[c])
	}
	tw.Flush()
}
