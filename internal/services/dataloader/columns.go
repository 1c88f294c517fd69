package dataloader

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Role is a semantic column meaning resolved from the headers
type Role string

const (
	RoleDate         Role = "date"
	RoleAmount       Role = "amount"
	RoleCategory     Role = "category"
	RoleMovementType Role = "movement type"
	RoleConcept      Role = "concept"
)

// ExpectedHeaders is shown to users when a required column is missing
const ExpectedHeaders = "Fecha, Concepto, Categoría, Importe (€), Tipo Movimiento"

// ErrSchemaMismatch is matched by every *SchemaMismatchError
var ErrSchemaMismatch = errors.New("schema mismatch")

// SchemaMismatchError names the required role that no header matched
type SchemaMismatchError struct {
	Role    Role
	Rule    string
	Headers []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch: no %s column (%s); found headers %q", e.Role, e.Rule, e.Headers)
}

// Is lets errors.Is(err, ErrSchemaMismatch) match
func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

// Column is a resolved header position. Index is -1 when the role is absent.
type Column struct {
	Index      int    `json:"index"`
	Header     string `json:"header"`
	Normalized string `json:"normalized"`
}

// Found reports whether the role was resolved
func (c Column) Found() bool {
	return c.Index >= 0
}

// Columns is the resolved role -> column mapping
type Columns struct {
	Date         Column `json:"date"`
	Amount       Column `json:"amount"`
	Category     Column `json:"category"`
	MovementType Column `json:"movement_type"`
	Concept      Column `json:"concept"`
}

// roleRule describes how a role is matched against normalized headers
type roleRule struct {
	role     Role
	needle   string
	exact    bool
	required bool
}

// roleRules in resolution order
var roleRules = []roleRule{
	{role: RoleDate, needle: "fecha", exact: true, required: true},
	{role: RoleAmount, needle: "importe", required: true},
	{role: RoleCategory, needle: "categor"},
	{role: RoleMovementType, needle: "tipo", required: true},
	{role: RoleConcept, needle: "concept"},
}

func (r roleRule) describe() string {
	if r.exact {
		return fmt.Sprintf("expected a header equal to %q", r.needle)
	}
	return fmt.Sprintf("expected a header containing %q", r.needle)
}

func (r roleRule) matches(normalized string) bool {
	if r.exact {
		return normalized == r.needle
	}
	return strings.Contains(normalized, r.needle)
}

// asciiFold strips combining marks left by NFKD and anything else outside ASCII.
// Chains keep state, so each call builds its own.
func asciiFold() transform.Transformer {
	return transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
}

// NormalizeLabel trims, lower-cases and folds a header to plain ASCII.
// "Categoría " becomes "categoria", "Importe (€)" becomes "importe ()".
func NormalizeLabel(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	folded, _, err := transform.String(asciiFold(), s)
	if err != nil {
		return s
	}
	return folded
}

// ResolveColumns maps each role to the leftmost matching header.
// A missing required role returns a *SchemaMismatchError.
func ResolveColumns(header []string, log zerolog.Logger) (Columns, error) {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = NormalizeLabel(h)
	}

	var cols Columns
	for _, rule := range roleRules {
		col := Column{Index: -1}
		var others []string

		for i, n := range normalized {
			if !rule.matches(n) {
				continue
			}
			if !col.Found() {
				col = Column{Index: i, Header: header[i], Normalized: n}
			} else {
				others = append(others, header[i])
			}
		}

		if !col.Found() {
			if rule.required {
				return Columns{}, &SchemaMismatchError{Role: rule.role, Rule: rule.describe(), Headers: header}
			}
			log.Debug().Str("role", string(rule.role)).Msg("optional column not present")
		} else if len(others) > 0 {
			log.Warn().
				Str("role", string(rule.role)).
				Str("chosen", col.Header).
				Strs("ignored", others).
				Msg("several columns match, using the leftmost")
		} else {
			log.Debug().Str("role", string(rule.role)).Str("column", col.Header).Msg("resolved column")
		}

		switch rule.role {
		case RoleDate:
			cols.Date = col
		case RoleAmount:
			cols.Amount = col
		case RoleCategory:
			cols.Category = col
		case RoleMovementType:
			cols.MovementType = col
		case RoleConcept:
			cols.Concept = col
		}
	}

	return cols, nil
}
