package ingest

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"clinops/internal/engine/observe"
	"clinops/pkg/domain"
	dErrors "clinops/pkg/domain-errors"
)

// table is a parsed CSV file with normalized headers.
type table struct {
	headers []string
	rows    [][]string
	source  string
}

func readTable(path string) (table, error) {
	f, err := os.Open(path)
	if err != nil {
		return table{}, dErrors.Wrap(err, dErrors.CodeInternal, "open report file")
	}
	defer f.Close()

	return parseTable(f, path)
}

func parseTable(r io.Reader, source string) (table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // ragged exports happen; pad per-row instead

	records, err := reader.ReadAll()
	if err != nil {
		return table{}, dErrors.Wrap(err, dErrors.CodeSchemaViolation, "malformed CSV in "+source)
	}
	if len(records) == 0 {
		return table{source: source}, nil
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = normalizeHeader(h)
	}
	return table{headers: headers, rows: records[1:], source: source}, nil
}

// normalizeHeader lowercases and collapses punctuation so "Days  Page
// Missing", "days_page_missing", and "# Days Page Missing" all match.
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, "#", "")
	h = strings.ReplaceAll(h, "/", "_")
	h = strings.Join(strings.Fields(h), "_")
	return h
}

// col returns the index of the first header matching pred, or -1.
func (t table) col(pred func(string) bool) int {
	for i, h := range t.headers {
		if pred(h) {
			return i
		}
	}
	return -1
}

func (t table) cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// lenientInt parses counts the way the upstream exports supply them: empty
// cells, "NaN", and decimals like "3.0" all occur. Unparseable values count
// as zero rather than failing the report.
func lenientInt(s string) int {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

func isAffirmative(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "true", "1":
		return true
	}
	return false
}

func contains(substrs ...string) func(string) bool {
	return func(h string) bool {
		for _, sub := range substrs {
			if !strings.Contains(h, sub) {
				return false
			}
		}
		return true
	}
}

func containsAny(substrs ...string) func(string) bool {
	return func(h string) bool {
		for _, sub := range substrs {
			if strings.Contains(h, sub) {
				return true
			}
		}
		return false
	}
}

func (l *Loader) loadRoster(path string) (observe.Roster, error) {
	t, err := readTable(path)
	if err != nil {
		return observe.Roster{}, err
	}

	participantCol := t.col(containsAny("subject", "participant"))
	siteCol := t.col(containsAny("site"))
	if participantCol < 0 || siteCol < 0 {
		return observe.Roster{}, dErrors.Newf(dErrors.CodeSchemaViolation,
			"roster %s: missing subject or site column (found: %s)", t.source, strings.Join(t.headers, ", "))
	}

	// Baseline counters are optional roster columns.
	visitsCol := t.col(containsAny("missing_visits", "overdue_visit"))
	queriesCol := t.col(containsAny("quer"))
	pagesCol := t.col(containsAny("missing_pages", "missing_document"))

	var roster observe.Roster
	for _, row := range t.rows {
		pid := t.cell(row, participantCol)
		if pid == "" {
			continue
		}
		roster.Rows = append(roster.Rows, observe.RosterRow{
			ParticipantID:    domain.ParticipantID(pid),
			SiteID:           domain.SiteID(t.cell(row, siteCol)),
			OverdueVisits:    lenientInt(t.cell(row, visitsCol)),
			OpenQueries:      lenientInt(t.cell(row, queriesCol)),
			MissingDocuments: lenientInt(t.cell(row, pagesCol)),
		})
	}
	return roster, nil
}

func (l *Loader) loadVisits(path string) (observe.VisitTable, error) {
	t, err := readTable(path)
	if err != nil {
		return observe.VisitTable{}, err
	}

	participantCol := t.col(containsAny("subject", "participant"))
	daysCol := t.col(contains("days", "outstanding"))
	if participantCol < 0 || daysCol < 0 {
		return observe.VisitTable{}, dErrors.Newf(dErrors.CodeSchemaViolation,
			"visit projection %s: missing subject or days-outstanding column (found: %s)", t.source, strings.Join(t.headers, ", "))
	}

	var out observe.VisitTable
	for _, row := range t.rows {
		pid := t.cell(row, participantCol)
		if pid == "" {
			continue
		}
		out.Rows = append(out.Rows, observe.VisitRow{
			ParticipantID:   domain.ParticipantID(pid),
			DaysOutstanding: lenientInt(t.cell(row, daysCol)),
		})
	}
	return out, nil
}

func (l *Loader) loadSafety(path string) (observe.SafetyTable, error) {
	t, err := readTable(path)
	if err != nil {
		return observe.SafetyTable{}, err
	}

	participantCol := t.col(containsAny("subject", "participant"))
	reviewCol := t.col(containsAny("review"))
	if participantCol < 0 || reviewCol < 0 {
		return observe.SafetyTable{}, dErrors.Newf(dErrors.CodeSchemaViolation,
			"SAE dashboard %s: missing subject or review-status column (found: %s)", t.source, strings.Join(t.headers, ", "))
	}

	var out observe.SafetyTable
	for _, row := range t.rows {
		pid := t.cell(row, participantCol)
		if pid == "" {
			continue
		}
		status := strings.ToLower(t.cell(row, reviewCol))
		out.Rows = append(out.Rows, observe.SafetyRow{
			ParticipantID:   domain.ParticipantID(pid),
			ReviewCompleted: status == "review completed",
		})
	}
	return out, nil
}

func (l *Loader) loadCoding(path string) (observe.CodingTable, error) {
	t, err := readTable(path)
	if err != nil {
		return observe.CodingTable{}, err
	}

	participantCol := t.col(containsAny("subject", "participant"))
	requireCol := t.col(containsAny("require"))
	statusCol := t.col(contains("coding", "status"))
	if participantCol < 0 || requireCol < 0 || statusCol < 0 {
		return observe.CodingTable{}, dErrors.Newf(dErrors.CodeSchemaViolation,
			"coding report %s: missing subject, require-coding, or coding-status column (found: %s)", t.source, strings.Join(t.headers, ", "))
	}

	var out observe.CodingTable
	for _, row := range t.rows {
		pid := t.cell(row, participantCol)
		if pid == "" {
			continue
		}
		out.Rows = append(out.Rows, observe.CodingRow{
			ParticipantID:  domain.ParticipantID(pid),
			RequiresCoding: isAffirmative(t.cell(row, requireCol)),
			Coded:          strings.EqualFold(t.cell(row, statusCol), "coded"),
		})
	}
	return out, nil
}

func (l *Loader) loadPages(path string) (observe.PageTable, error) {
	t, err := readTable(path)
	if err != nil {
		return observe.PageTable{}, err
	}

	participantCol := t.col(containsAny("subject", "participant"))
	daysCol := t.col(contains("days", "missing"))
	if participantCol < 0 || daysCol < 0 {
		return observe.PageTable{}, dErrors.Newf(dErrors.CodeSchemaViolation,
			"missing pages report %s: missing subject or days-missing column (found: %s)", t.source, strings.Join(t.headers, ", "))
	}

	var out observe.PageTable
	for _, row := range t.rows {
		pid := t.cell(row, participantCol)
		if pid == "" {
			continue
		}
		out.Rows = append(out.Rows, observe.PageRow{
			ParticipantID: domain.ParticipantID(pid),
			DaysMissing:   lenientInt(t.cell(row, daysCol)),
		})
	}
	return out, nil
}

func (l *Loader) loadIntegrity(path string) (observe.IntegrityTable, error) {
	t, err := readTable(path)
	if err != nil {
		return observe.IntegrityTable{}, err
	}

	participantCol := t.col(containsAny("subject", "participant"))
	actionCol := t.col(containsAny("action"))
	dataCol := t.col(contains("data"))
	if participantCol < 0 || actionCol < 0 || dataCol < 0 {
		return observe.IntegrityTable{}, dErrors.Newf(dErrors.CodeSchemaViolation,
			"inactivated forms report %s: missing subject, action, or data-present column (found: %s)", t.source, strings.Join(t.headers, ", "))
	}

	var out observe.IntegrityTable
	for _, row := range t.rows {
		pid := t.cell(row, participantCol)
		if pid == "" {
			continue
		}
		out.Rows = append(out.Rows, observe.IntegrityRow{
			ParticipantID: domain.ParticipantID(pid),
			Inactivated:   strings.Contains(strings.ToLower(t.cell(row, actionCol)), "inactivated"),
			DataPresent:   isAffirmative(t.cell(row, dataCol)),
		})
	}
	return out, nil
}
