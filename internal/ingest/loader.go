// Package ingest turns a study's snapshot directory of CSV report exports
// into the typed tables the pipeline consumes.
//
// Operational reports arrive from several EDC systems with inconsistent
// column headers, so each loader matches columns by normalized name
// fragments rather than exact labels. A report file that is present but
// missing a required column is a schema violation; a report file that is
// absent simply leaves its domain table nil.
package ingest

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"clinops/internal/engine/observe"
	"clinops/internal/engine/pipeline"
	"clinops/pkg/domain"
	dErrors "clinops/pkg/domain-errors"
)

// Loader discovers and parses study snapshot directories.
type Loader struct {
	dataDir string
	logger  *slog.Logger
}

// NewLoader builds a Loader rooted at dataDir. Each study's snapshot lives
// in dataDir/<studyID>/.
func NewLoader(dataDir string, logger *slog.Logger) *Loader {
	return &Loader{dataDir: dataDir, logger: logger}
}

// LoadStudy reads the snapshot directory for studyID and assembles the
// pipeline input. The roster is required; each domain report is optional.
func (l *Loader) LoadStudy(studyID domain.StudyID) (pipeline.Input, error) {
	dir := filepath.Join(l.dataDir, studyID.String())

	entries, err := os.ReadDir(dir)
	if err != nil {
		return pipeline.Input{}, dErrors.Wrap(err, dErrors.CodeNotFound, "study snapshot directory not found")
	}

	var rosterPath, visitPath, safetyPath, pagesPath, integrityPath string
	var codingPaths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.ToLower(entry.Name())
		if !strings.HasSuffix(name, ".csv") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		switch {
		case strings.Contains(name, "roster") || strings.Contains(name, "cpid"):
			rosterPath = path
		case strings.Contains(name, "visit") && strings.Contains(name, "projection"):
			visitPath = path
		case strings.Contains(name, "sae"):
			safetyPath = path
		case strings.Contains(name, "meddra") || strings.Contains(name, "whod"):
			codingPaths = append(codingPaths, path)
		case strings.Contains(name, "missing") && strings.Contains(name, "pages"):
			pagesPath = path
		case strings.Contains(name, "inactivated"):
			integrityPath = path
		}
	}

	if rosterPath == "" {
		return pipeline.Input{}, dErrors.Newf(dErrors.CodeNotFound, "no roster file in snapshot for study %s", studyID)
	}

	input := pipeline.Input{StudyID: studyID}

	input.Roster, err = l.loadRoster(rosterPath)
	if err != nil {
		return pipeline.Input{}, err
	}

	if visitPath != "" {
		table, err := l.loadVisits(visitPath)
		if err != nil {
			return pipeline.Input{}, err
		}
		input.Visits = &table
	}
	if safetyPath != "" {
		table, err := l.loadSafety(safetyPath)
		if err != nil {
			return pipeline.Input{}, err
		}
		input.Safety = &table
	}
	if len(codingPaths) > 0 {
		// MedDRA and WHODrug reports land as separate files; their rows
		// feed one terminology table.
		var merged observe.CodingTable
		for _, path := range codingPaths {
			table, err := l.loadCoding(path)
			if err != nil {
				return pipeline.Input{}, err
			}
			merged.Rows = append(merged.Rows, table.Rows...)
		}
		input.Coding = &merged
	}
	if pagesPath != "" {
		table, err := l.loadPages(pagesPath)
		if err != nil {
			return pipeline.Input{}, err
		}
		input.Pages = &table
	}
	if integrityPath != "" {
		table, err := l.loadIntegrity(integrityPath)
		if err != nil {
			return pipeline.Input{}, err
		}
		input.Integrity = &table
	}

	if l.logger != nil {
		l.logger.Info("study snapshot loaded",
			"study_id", studyID,
			"roster_rows", len(input.Roster.Rows),
			"visits", visitPath != "",
			"safety", safetyPath != "",
			"coding_files", len(codingPaths),
			"pages", pagesPath != "",
			"integrity", integrityPath != "",
		)
	}

	return input, nil
}
