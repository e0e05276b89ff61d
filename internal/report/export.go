package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"sessionq/internal/runner"
)

// Export writes <prefix>_report.json, <prefix>_report.yaml and
// <prefix>_sessions.csv, returning the paths written.
func Export(prefix string, r Report, outcomes []runner.Outcome) ([]string, error) {
	jsonPath := prefix + "_report.json"
	yamlPath := prefix + "_report.yaml"
	csvPath := prefix + "_sessions.csv"

	if err := ExportJSON(r, jsonPath); err != nil {
		return nil, fmt.Errorf("export json: %w", err)
	}
	if err := ExportYAML(r, yamlPath); err != nil {
		return nil, fmt.Errorf("export yaml: %w", err)
	}
	if err := ExportCSV(outcomes, csvPath); err != nil {
		return nil, fmt.Errorf("export csv: %w", err)
	}
	return []string{jsonPath, yamlPath, csvPath}, nil
}

// ExportJSON exports the report to a JSON file.
func ExportJSON(r Report, filename string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

// ExportYAML exports the report to a YAML file.
func ExportYAML(r Report, filename string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

var csvHeader = []string{
	"index", "succeeded", "error", "duration_ms",
	"total_bytes", "requests", "responses", "duration_seconds",
	"document", "script", "stylesheet", "image", "other",
}

// ExportCSV writes one row per session outcome. Usage columns are empty
// when the session reported none.
func ExportCSV(outcomes []runner.Outcome, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}

	for _, o := range outcomes {
		errMsg := ""
		if o.Err != nil {
			errMsg = o.Err.Error()
		}
		record := []string{
			strconv.Itoa(o.Index),
			strconv.FormatBool(o.Succeeded),
			errMsg,
			strconv.FormatInt(o.Duration.Milliseconds(), 10),
		}
		if u := o.Usage; u != nil {
			record = append(record,
				strconv.FormatUint(u.TotalBytes, 10),
				strconv.FormatUint(uint64(u.RequestCount), 10),
				strconv.FormatUint(uint64(u.ResponseCount), 10),
				strconv.FormatUint(uint64(u.DurationSeconds), 10),
				strconv.FormatUint(u.Breakdown.Document, 10),
				strconv.FormatUint(u.Breakdown.Script, 10),
				strconv.FormatUint(u.Breakdown.Stylesheet, 10),
				strconv.FormatUint(u.Breakdown.Image, 10),
				strconv.FormatUint(u.Breakdown.Other, 10),
			)
		} else {
			record = append(record, "", "", "", "", "", "", "", "", "")
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
