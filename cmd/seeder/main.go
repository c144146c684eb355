package main

import (
	"bufio"
	"flag"
	"fmt"
	"iter"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
)

var adjectives = []string{
	"waterproof", "lightweight", "vintage", "ergonomic", "stainless", "organic",
	"wireless", "handmade", "compact", "heavy-duty", "insulated", "foldable",
}

var nouns = []string{
	"hiking boots", "rain jacket", "coffee grinder", "desk lamp", "backpack",
	"water bottle", "yoga mat", "chef knife", "wool scarf", "phone case",
	"camping stove", "sun hat", "running shoes", "cutting board", "tote bag",
}

var defaultCategories = []string{
	"apparel", "footwear", "kitchen", "outdoor", "electronics", "accessories", "home", "sports",
}

var (
	outDir        = flag.String("out", "products", "directory to write products.tsv and categories.txt into")
	count         = flag.Int("n", 1000, "number of records to generate")
	seed          = flag.Uint64("seed", 1, "random seed")
	categoryFile  = flag.String("categories", "", "file of category names, one per line")
	maxCategories = flag.Int("max-categories", 3, "maximum categories per record")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}

// linesFromFile returns an iterator over the non-blank lines in a file.
func linesFromFile(filename string) (iter.Seq[string], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(string) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if !yield(line) {
				return
			}
		}
	}, nil
}

// records yields n tab-separated catalog rows drawn from rng.
func records(rng *rand.Rand, n int, categories []string, maxPerRecord int) iter.Seq[string] {
	return func(yield func(string) bool) {
		for i := range n {
			picked := make([]string, 0, maxPerRecord)
			for _, j := range rng.Perm(len(categories))[:1+rng.IntN(maxPerRecord)] {
				picked = append(picked, categories[j])
			}
			title := fmt.Sprintf("%s %s, model %d",
				adjectives[rng.IntN(len(adjectives))], nouns[rng.IntN(len(nouns))], rng.IntN(900)+100)
			if !yield(fmt.Sprintf("P%07d\t%s\t%s", i, strings.Join(picked, ","), title)) {
				return
			}
		}
	}
}

func writeLines(path string, lines iter.Seq[string]) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	w := bufio.NewWriter(f)
	written := 0
	for line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			f.Close()
			return written, err
		}
		written++
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return written, err
	}
	return written, f.Close()
}

func main() {
	flag.Parse()

	categories := defaultCategories
	if *categoryFile != "" {
		lines, err := linesFromFile(*categoryFile)
		if err != nil {
			panic(err)
		}
		categories = nil
		for line := range lines {
			categories = append(categories, line)
		}
	}
	if len(categories) == 0 {
		panic("no categories to assign")
	}
	perRecord := min(max(*maxCategories, 1), len(categories))

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		panic(err)
	}

	catPath := filepath.Join(*outDir, "categories.txt")
	if _, err := writeLines(catPath, func(yield func(string) bool) {
		for _, c := range categories {
			if !yield(c) {
				return
			}
		}
	}); err != nil {
		panic(err)
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	recPath := filepath.Join(*outDir, "products.tsv")
	n, err := writeLines(recPath, records(rng, *count, categories, perRecord))
	if err != nil {
		panic(err)
	}
	slog.Info("catalog written", "records", n, "path", recPath, "categories", len(categories), "vocabulary", catPath)
}
