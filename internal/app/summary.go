package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func (r *Runner) writeStepSummary(rep report) error {
	path := strings.TrimSpace(os.Getenv("GITHUB_STEP_SUMMARY"))
	if path == "" {
		return nil
	}

	// GitHub Actions normally creates the directory already.
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			fmt.Fprintf(os.Stderr, "warning: could not create summary directory: %v\n", mkErr)
		}
	}

	var builder strings.Builder
	builder.WriteString("## GitHub Pages publish summary\n\n")
	builder.WriteString(renderReportDetails(rep))

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open step summary: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "failed to close step summary file: %v\n", closeErr)
		}
	}()

	if _, err := file.WriteString(builder.String()); err != nil {
		return fmt.Errorf("write step summary: %w", err)
	}

	return nil
}

func (r *Runner) writeGitHubOutputs(rep report) error {
	path := strings.TrimSpace(os.Getenv("GITHUB_OUTPUT"))
	if path == "" {
		return nil
	}

	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			fmt.Fprintf(os.Stderr, "warning: could not create outputs directory: %v\n", mkErr)
		}
	}

	summary := outputRunSummary{
		Skipped:       rep.Skipped,
		SkippedReason: rep.SkippedReason,
		Repo:          rep.Result.RepoURL,
		Branch:        rep.Result.Branch,
		Files:         rep.Result.Files,
		Removed:       rep.Result.Removed,
		Committed:     rep.Result.Committed,
		Tagged:        rep.Result.Tagged,
		Pushed:        rep.Result.Pushed,
		Commit:        rep.Result.Commit,
		SourceSHA:     rep.SourceSHA,
		PagesURL:      rep.PagesURL,
	}

	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal run_summary: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open github output: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "failed to close github output file: %v\n", closeErr)
		}
	}()

	outputs := []struct{ key, value string }{
		{"commit", rep.Result.Commit},
		{"pushed", strconv.FormatBool(rep.Result.Pushed)},
		{"page_url", rep.PagesURL},
		{"run_summary", string(summaryJSON)},
	}
	for _, out := range outputs {
		if err := writeMultilineOutput(file, out.key, out.value); err != nil {
			return err
		}
	}

	return nil
}

func renderReportDetails(rep report) string {
	var builder strings.Builder

	if rep.Skipped {
		reason := rep.SkippedReason
		if reason == "" {
			reason = "run skipped"
		}
		builder.WriteString(fmt.Sprintf("Skipped publish: %s\n", sanitizeMarkdownCell(reason)))
		return builder.String()
	}

	res := rep.Result
	status := "committed"
	if !res.Committed {
		status = "unchanged"
	}
	if res.Pushed {
		status += ", pushed"
	}

	commit := res.Commit
	if len(commit) > 12 {
		commit = commit[:12]
	}

	builder.WriteString("| Repository | Branch | Files | Removed | Status | Commit |\n")
	builder.WriteString("| --- | --- | --- | --- | --- | --- |\n")
	builder.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %s | %s |\n",
		sanitizeMarkdownCell(res.RepoURL),
		sanitizeMarkdownCell(res.Branch),
		res.Files,
		res.Removed,
		sanitizeMarkdownCell(status),
		sanitizeMarkdownCell(commit),
	))

	if rep.SourceSHA != "" {
		builder.WriteString(fmt.Sprintf("\nSource commit: `%s`\n", rep.SourceSHA))
	}
	if rep.PagesURL != "" {
		builder.WriteString(fmt.Sprintf("\nSite: %s\n", rep.PagesURL))
	}

	return builder.String()
}

type outputRunSummary struct {
	Skipped       bool   `json:"skipped"`
	SkippedReason string `json:"skipped_reason"`
	Repo          string `json:"repo"`
	Branch        string `json:"branch"`
	Files         int    `json:"files"`
	Removed       int    `json:"removed"`
	Committed     bool   `json:"committed"`
	Tagged        bool   `json:"tagged"`
	Pushed        bool   `json:"pushed"`
	Commit        string `json:"commit"`
	SourceSHA     string `json:"source_sha"`
	PagesURL      string `json:"page_url"`
}

func writeMultilineOutput(file *os.File, key, value string) error {
	if _, err := fmt.Fprintf(file, "%s<<EOF\n%s\nEOF\n", key, value); err != nil {
		return fmt.Errorf("write output %s: %w", key, err)
	}
	return nil
}

func sanitizeMarkdownCell(value string) string {
	value = strings.ReplaceAll(value, "|", "\\|")
	value = strings.ReplaceAll(value, "\n", "<br>")
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return value
}
