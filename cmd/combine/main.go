package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/fanvise/fanvise/go-assistant/internal/combine"
)

// #region main

func main() {
	dataset := flag.String("dataset", "", "path to golden dataset JSON")
	api := flag.String("api", "", "chat endpoint URL (overrides FANVISE_API_URL)")
	verbose := flag.Bool("verbose", false, "print each case's full output")
	flag.Parse()

	if *dataset == "" {
		fmt.Fprintln(os.Stderr, "usage: combine --dataset path/to/golden_dataset.json [--api http://localhost:8090/api/chat] [--verbose]")
		os.Exit(2)
	}

	cases, err := combine.LoadDataset(*dataset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load dataset: %v\n", err)
		os.Exit(2)
	}
	if len(cases) == 0 {
		fmt.Fprintln(os.Stderr, "dataset is empty")
		os.Exit(2)
	}

	cfg := combine.DefaultConfig()
	if *api != "" {
		cfg.APIURL = *api
	}

	fmt.Println("=== FanVise Combine ===")
	fmt.Printf("API: %s | Cases: %d | Retries: %d\n\n", cfg.APIURL, len(cases), cfg.Retries)

	results := combine.NewRunner(cfg).Run(context.Background(), cases)
	report := combine.Summarize(results)
	printReport(report, *verbose)

	if report.Failed > 0 {
		os.Exit(1)
	}
}

// #endregion main

// #region output

func printReport(r combine.Report, verbose bool) {
	fmt.Printf("%-26s| %-14s| %-9s| %-5s| %s\n", "Case", "Category", "Risk", "Rule", "Reason")
	fmt.Printf("%-26s+%-15s+%-10s+%-6s+%s\n",
		"--------------------------", "---------------", "----------", "------", "----------------------------------")

	for _, res := range r.Results {
		status := "PASS"
		if !res.Passed {
			status = "FAIL"
		}
		fmt.Printf("%-26s| %-14s| %-9s| %-5s| %s\n",
			shortID(res.ID), res.Category, res.RiskLevel, status, res.Reason)
		if verbose {
			fmt.Printf("    output: %s\n", res.Output)
			fmt.Printf("    context items: %d\n", res.ContextItems)
		}
	}

	fmt.Printf("\nSummary: %d total, %d pass, %d fail\n", r.Total, r.Passed, r.Failed)
	fmt.Printf("Weighted Pass Rate: %.1f%%\n", r.WeightedPassRate*100)

	if len(r.ByCategory) > 0 {
		categories := make([]string, 0, len(r.ByCategory))
		for c := range r.ByCategory {
			categories = append(categories, c)
		}
		sort.Strings(categories)
		fmt.Println("Category Breakdown:")
		for _, c := range categories {
			stats := r.ByCategory[c]
			fmt.Printf("  - %s: %d/%d passed\n", c, stats.Passed, stats.Passed+stats.Failed)
		}
	}

	fmt.Printf("Critical Failures: %d", len(r.CriticalFailures))
	for _, id := range r.CriticalFailures {
		fmt.Printf(" %s", id)
	}
	fmt.Println()
}

func shortID(id string) string {
	if len(id) > 26 {
		return id[:26]
	}
	return id
}

// #endregion output
