package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/poiesic/mentormatch"
	"github.com/poiesic/mentormatch/bulkimport"
	"github.com/poiesic/mentormatch/core"
	"github.com/poiesic/mentormatch/evaluation"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

func storeCommand(c *cli.Context) error {
	fields, err := parseFields(c.StringSlice("field"))
	if err != nil {
		return err
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	subject := c.String("subject")
	stored, err := engine.StoreProfile(c.Context, subject, fields)
	if err != nil {
		return fmt.Errorf("failed to store profile: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Stored %d attributes for %s: %s\n", len(stored), subject, strings.Join(stored, ", "))
	return nil
}

func matchCommand(c *cli.Context) error {
	criteria, err := readCriteria(c)
	if err != nil {
		return err
	}

	filter, err := loadEligibility(c.String("eligible-file"))
	if err != nil {
		return err
	}

	engine, err := openEngine(c, mentormatch.WithEligibility(filter))
	if err != nil {
		return err
	}
	defer engine.Close()

	results, err := engine.FindMatches(c.Context, c.String("searcher"), criteria, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to find matches: %w", err)
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	return printMatches(c, results)
}

// readCriteria merges --criteria-file with --criteria flags; flags win.
func readCriteria(c *cli.Context) (core.SearchCriteria, error) {
	criteria := core.SearchCriteria{}

	if path := c.String("criteria-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &criteria); err != nil {
			return nil, fmt.Errorf("failed to decode criteria file %s: %w", path, err)
		}
	}

	fields, err := parseFields(c.StringSlice("criteria"))
	if err != nil {
		return nil, err
	}
	for name, text := range fields {
		criteria[name] = text
	}

	if err := core.ValidateCriteria(criteria); err != nil {
		return nil, err
	}
	return criteria, nil
}

func printMatches(c *cli.Context, results []core.MatchResult) error {
	if len(results) == 0 {
		fmt.Fprintln(c.App.Writer, "No matches found")
		return nil
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tSUBJECT\tSCORE\tATTRIBUTES")
	for i, r := range results {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", i+1, r.SubjectID, r.Score, strings.Join(r.ContributingAttributes, ","))
	}
	return w.Flush()
}

func importCommand(c *cli.Context) error {
	profiles, err := bulkimport.LoadProfiles(c.String("profiles"))
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	config := &bulkimport.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if config.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	progress := bulkimport.NewProgressTracker(c.App.ErrWriter, config.ReportInterval)
	importer, err := engine.NewImporter(config, progress)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.ErrWriter, "Importing %d profiles into %s (batch size: %d)\n", len(profiles), c.String("db"), config.BatchSize)
	report, err := importer.Run(c.Context, profiles)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Fprintf(c.App.ErrWriter, "Import complete. Stored %d of %d profiles in %v (job %s)\n",
		report.Stored, report.Total, report.Elapsed.Round(time.Millisecond), report.JobID)
	if len(report.Failed) > 0 {
		fmt.Fprintf(c.App.ErrWriter, "Failed: %s\n", strings.Join(report.Failed, ", "))
	}
	return nil
}

func evaluateCommand(c *cli.Context) error {
	ds, err := evaluation.LoadDataset(c.String("dataset"))
	if err != nil {
		return err
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	result, err := evaluation.Run(c.Context, engine, ds,
		evaluation.WithTopN(c.Int("top-n")),
		evaluation.WithLimit(c.Int("limit")),
	)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Matching Test Results:\nPassed: %d/%d (%.2f%%)\n",
		result.Summary.Passed, result.Summary.Total, result.Summary.PassRate)

	output := c.String("output")
	if err := evaluation.WriteReport(output, result); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Detailed results saved to %s\n", output)
	return nil
}

func attributesCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	names, err := engine.AttributeNames(c.Context, c.String("subject"))
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(c.App.Writer, name)
	}
	return nil
}

func deleteCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	subject := c.String("subject")
	if err := engine.DeleteProfile(c.Context, subject); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Deleted %s\n", subject)
	return nil
}
