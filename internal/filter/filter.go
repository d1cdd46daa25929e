// Package filter implements the Filter Planner: translating a
// free-text filter phrase into a validated, evaluable predicate against a
// table's known columns.
package filter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/tidwall/sjson"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

// phraseKind is the classification a filter phrase is sorted into before
// column ranking and value extraction.
type phraseKind int

const (
	kindInclusion phraseKind = iota
	kindExclusion
	kindTemporal
	kindBoolean
)

var exclusionMarkers = []string{"not", "exclude", "except", "excluding", "without"}
var temporalMarkers = []string{"since", "after", "before", "between", "last", "recent"}
var booleanMarkers = []string{"is true", "is false", "active", "inactive", "enabled", "disabled"}
var stopWords = map[string]bool{"is": true, "are": true, "was": true, "were": true, "a": true, "an": true, "the": true, "equals": true, "equal": true, "in": true, "to": true, "of": true, "only": true}

func classify(phrase string) phraseKind {
	lower := strings.ToLower(phrase)
	for _, m := range temporalMarkers {
		if strings.Contains(lower, m) {
			return kindTemporal
		}
	}
	for _, m := range booleanMarkers {
		if strings.Contains(lower, m) {
			return kindBoolean
		}
	}
	for _, m := range exclusionMarkers {
		if strings.Contains(lower, m) {
			return kindExclusion
		}
	}
	return kindInclusion
}

// columnFamily groups a column name/type into the family the ranking step
// scores against.
type columnFamily int

const (
	familyGeneric columnFamily = iota
	familyCategorical
	familyTemporal
	familyBoolean
)

func columnNameFamily(name string) columnFamily {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "status") || strings.Contains(lower, "type") || strings.Contains(lower, "category") || strings.Contains(lower, "kind"):
		return familyCategorical
	case strings.Contains(lower, "_at") || strings.Contains(lower, "date") || strings.Contains(lower, "time"):
		return familyTemporal
	case strings.HasPrefix(lower, "is_") || strings.HasPrefix(lower, "has_") || strings.Contains(lower, "active") || strings.Contains(lower, "enabled"):
		return familyBoolean
	default:
		return familyGeneric
	}
}

func columnTypeFamily(sqlType string) columnFamily {
	lower := strings.ToLower(sqlType)
	switch {
	case strings.Contains(lower, "bool"):
		return familyBoolean
	case strings.Contains(lower, "timestamp") || strings.Contains(lower, "date"):
		return familyTemporal
	case strings.Contains(lower, "char") || strings.Contains(lower, "text") || strings.Contains(lower, "enum"):
		return familyCategorical
	default:
		return familyGeneric
	}
}

// FilterConfig is the emitted, ready-to-apply predicate.
type FilterConfig struct {
	Column         string
	Operator       string
	Values         []string
	SQLWhere       string
	ExprEquivalent string
	Description    string
	Confidence     float64
}

// Plan classifies phrase, extracts candidate values, ranks columns by
// phrase/type/name-family affinity, and emits a FilterConfig. sampleValues,
// if provided, maps column name to a sample of its distinct values and is
// used to boost confidence on exact matches.
func Plan(phrase string, columns []models.Column, sampleValues map[string][]string) (FilterConfig, error) {
	kind := classify(phrase)
	candidates := extractValues(phrase)

	col, score := rankColumn(phrase, columns, kind)
	if col == nil {
		return FilterConfig{}, models.ErrNoSuitableColumn
	}
	candidates = removeColumnNameTokens(candidates, col.Name)

	confidence := score
	matched := candidates
	if samples, ok := sampleValues[col.Name]; ok && len(samples) > 0 {
		intersected := intersect(candidates, samples)
		if len(intersected) > 0 {
			matched = intersected
			confidence = clampConfidence(confidence + 0.1)
		}
	}

	negated := kind == kindExclusion

	var cfg FilterConfig
	if kind == kindBoolean {
		value := booleanValueFromPhrase(phrase)
		want := value
		if negated {
			want = !want
		}
		cfg = FilterConfig{
			Column:         col.Name,
			Operator:       booleanOperator(negated),
			Values:         []string{strconv.FormatBool(value)},
			SQLWhere:       booleanSQL(col.Name, value, negated),
			ExprEquivalent: fmt.Sprintf("%s == %t", col.Name, want),
			Description:    fmt.Sprintf("%s is %t", col.Name, value),
			Confidence:     confidence,
		}
	} else {
		if len(matched) == 0 {
			return FilterConfig{}, models.ErrNoSuitableColumn
		}
		cfg = buildValueConfig(*col, matched, negated, confidence)
	}

	if err := ValidateExpression(cfg.ExprEquivalent, columns); err != nil {
		return FilterConfig{}, fmt.Errorf("%w: %v", models.ErrInvalidFilterExpression, err)
	}
	return cfg, nil
}

func buildValueConfig(col models.Column, values []string, negated bool, confidence float64) FilterConfig {
	op := "in"
	if negated {
		op = "not_in"
	}
	if len(values) == 1 {
		op = "eq"
		if negated {
			op = "neq"
		}
	}

	var where string
	switch {
	case len(values) == 1 && !negated:
		where = fmt.Sprintf("%s = %s", col.Name, sqlLiteral(values[0]))
	case len(values) == 1 && negated:
		where = fmt.Sprintf("%s != %s", col.Name, sqlLiteral(values[0]))
	case !negated:
		where = fmt.Sprintf("%s IN (%s)", col.Name, sqlLiteralList(values))
	default:
		where = fmt.Sprintf("%s NOT IN (%s)", col.Name, sqlLiteralList(values))
	}

	verb := "is"
	if negated {
		verb = "is not"
	}
	return FilterConfig{
		Column:         col.Name,
		Operator:       op,
		Values:         values,
		SQLWhere:       where,
		ExprEquivalent: exprEquivalent(col.Name, values, negated),
		Description:    fmt.Sprintf("%s %s %s", col.Name, verb, strings.Join(values, ", ")),
		Confidence:     confidence,
	}
}

// exprEquivalent renders the expr-lang predicate equivalent to the SQLWhere
// clause built alongside it, so a filter can be previewed against a sample
// row (EvaluatePreview) without a live SQL connection.
func exprEquivalent(column string, values []string, negated bool) string {
	var base string
	if len(values) == 1 {
		base = fmt.Sprintf("%s == %q", column, values[0])
	} else {
		quoted := make([]string, len(values))
		for i, v := range values {
			quoted[i] = fmt.Sprintf("%q", v)
		}
		base = fmt.Sprintf("%s in [%s]", column, strings.Join(quoted, ", "))
	}
	if negated {
		return "not (" + base + ")"
	}
	return base
}

func booleanOperator(negated bool) string {
	if negated {
		return "neq"
	}
	return "eq"
}

func booleanValueFromPhrase(phrase string) bool {
	lower := strings.ToLower(phrase)
	return !strings.Contains(lower, "false") && !strings.Contains(lower, "inactive") && !strings.Contains(lower, "disabled")
}

func booleanSQL(column string, value, negated bool) string {
	want := value
	if negated {
		want = !want
	}
	if !want {
		return fmt.Sprintf("%s = false OR %s IS NULL", column, column)
	}
	return fmt.Sprintf("%s = true", column)
}

func extractValues(phrase string) []string {
	stripped := phrase
	for _, suffix := range []string{"events", "records", "rows"} {
		stripped = strings.ReplaceAll(stripped, suffix, "")
	}
	for _, marker := range append(append([]string{}, exclusionMarkers...), temporalMarkers...) {
		stripped = strings.ReplaceAll(strings.ToLower(stripped), marker, "")
	}

	var parts []string
	for _, p := range strings.Split(stripped, ",") {
		parts = append(parts, strings.Fields(p)...)
	}

	var out []string
	seen := map[string]bool{}
	for _, raw := range parts {
		for _, v := range strings.Split(raw, " and ") {
			v = strings.TrimSpace(v)
			v = strings.Trim(v, ".;")
			if v == "" || v == "and" || stopWords[v] {
				continue
			}
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

// removeColumnNameTokens drops candidate tokens that are just the matched
// column's own name (or its underscore-split words), since those are part
// of the phrase's grammar, not a filter value.
func removeColumnNameTokens(candidates []string, columnName string) []string {
	nameTokens := map[string]bool{strings.ToLower(columnName): true}
	for _, part := range strings.Split(columnName, "_") {
		nameTokens[strings.ToLower(part)] = true
	}

	var out []string
	for _, c := range candidates {
		if nameTokens[strings.ToLower(c)] {
			continue
		}
		out = append(out, c)
	}
	return out
}

func intersect(candidates, samples []string) []string {
	sampleSet := make(map[string]bool, len(samples))
	for _, s := range samples {
		sampleSet[strings.ToLower(s)] = true
	}
	var out []string
	for _, c := range candidates {
		if sampleSet[strings.ToLower(c)] {
			out = append(out, c)
		}
	}
	return out
}

func rankColumn(phrase string, columns []models.Column, kind phraseKind) (*models.Column, float64) {
	lowerPhrase := strings.ToLower(phrase)

	var best *models.Column
	bestScore := 0.0

	for i := range columns {
		col := &columns[i]
		score := 0.0

		if strings.Contains(lowerPhrase, strings.ToLower(col.Name)) {
			score = 0.9
		} else {
			nameFamily := columnNameFamily(col.Name)
			typeFamily := columnTypeFamily(col.Type)
			wantFamily := familyFromKind(kind)
			if wantFamily != familyGeneric && (nameFamily == wantFamily || typeFamily == wantFamily) {
				score = 0.7
			} else {
				score = 0.4
			}
		}

		if score > bestScore {
			bestScore = score
			best = col
		}
	}

	return best, bestScore
}

func familyFromKind(kind phraseKind) columnFamily {
	switch kind {
	case kindBoolean:
		return familyBoolean
	case kindTemporal:
		return familyTemporal
	default:
		return familyCategorical
	}
}

func clampConfidence(c float64) float64 {
	if c > 1 {
		return 1
	}
	return c
}

func sqlLiteral(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

func sqlLiteralList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = sqlLiteral(v)
	}
	return strings.Join(quoted, ", ")
}

// EvaluatePreview compiles and runs a filter's boolean expression against a
// sample row, used by the interactive filter preview before a predicate is
// committed to a pipeline. Row values are passed as an expr-lang environment
// map; the expression language never touches the live SQL connection.
func EvaluatePreview(sqlWhere string, exprEquivalent string, row map[string]any) (bool, error) {
	program, err := expr.Compile(exprEquivalent, expr.Env(row))
	if err != nil {
		return false, fmt.Errorf("compile filter preview expression: %w", err)
	}
	out, err := expr.Run(program, row)
	if err != nil {
		return false, fmt.Errorf("evaluate filter preview expression: %w", err)
	}
	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("filter preview expression did not evaluate to bool")
	}
	return result, nil
}

// ValidateExpression type-checks exprEquivalent against a synthetic
// environment built from columns' SQL types, without any sample data: every
// column gets a zero value of its family's type (false for booleans, "" for
// everything else), assembled into a JSON document one field at a time with
// sjson so columns can be added incrementally without hand-building a
// literal, then decoded into the map expr.Env expects. Returns an error if
// the expression fails to compile or does not evaluate to a boolean.
func ValidateExpression(exprEquivalent string, columns []models.Column) error {
	jsonEnv := ""
	for _, col := range columns {
		var err error
		jsonEnv, err = sjson.Set(jsonEnv, col.Name, defaultValueForColumn(col))
		if err != nil {
			return fmt.Errorf("build filter expression environment for column %s: %w", col.Name, err)
		}
	}

	env := make(map[string]any)
	if err := json.Unmarshal([]byte(jsonEnv), &env); err != nil {
		return fmt.Errorf("unmarshal filter expression environment: %w", err)
	}

	program, err := expr.Compile(exprEquivalent, expr.Env(env))
	if err != nil {
		return fmt.Errorf("compile filter expression %q: %w", exprEquivalent, err)
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return fmt.Errorf("evaluate filter expression %q: %w", exprEquivalent, err)
	}
	if _, ok := result.(bool); !ok {
		return fmt.Errorf("filter expression %q does not evaluate to a boolean", exprEquivalent)
	}
	return nil
}

func defaultValueForColumn(col models.Column) any {
	if columnTypeFamily(col.Type) == familyBoolean {
		return false
	}
	return ""
}
