package dataloader

import (
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Fecha", "fecha"},
		{"Fecha ", "fecha"},
		{"  FECHA", "fecha"},
		{"Categoría", "categoria"},
		{"CATEGORÍA", "categoria"},
		{"Importe (€)", "importe ()"},
		{"Tipo Movimiento", "tipo movimiento"},
		{"Concepto", "concepto"},
		{"Año", "ano"},
		{"Descripción ", "descripcion"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := NormalizeLabel(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizeLabel(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestResolveColumns(t *testing.T) {
	tests := []struct {
		name     string
		header   []string
		expected map[Role]int
	}{
		{
			name:   "original workbook headers",
			header: []string{"Fecha", "Concepto", "Categoría", "Importe (€)", "Tipo Movimiento"},
			expected: map[Role]int{
				RoleDate:         0,
				RoleConcept:      1,
				RoleCategory:     2,
				RoleAmount:       3,
				RoleMovementType: 4,
			},
		},
		{
			name:   "cosmetic variation",
			header: []string{"TIPO", " fecha ", "IMPORTE TOTAL"},
			expected: map[Role]int{
				RoleDate:         1,
				RoleAmount:       2,
				RoleMovementType: 0,
				RoleCategory:     -1,
				RoleConcept:      -1,
			},
		},
		{
			name:   "leftmost match wins",
			header: []string{"Fecha", "Importe bruto", "Importe neto", "Tipo", "Subtipo", "Categoria", "Subcategoria"},
			expected: map[Role]int{
				RoleDate:         0,
				RoleAmount:       1,
				RoleMovementType: 3,
				RoleCategory:     5,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols, err := ResolveColumns(tt.header, zerolog.Nop())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			got := map[Role]Column{
				RoleDate:         cols.Date,
				RoleAmount:       cols.Amount,
				RoleCategory:     cols.Category,
				RoleMovementType: cols.MovementType,
				RoleConcept:      cols.Concept,
			}
			for role, idx := range tt.expected {
				if got[role].Index != idx {
					t.Errorf("%s column index = %d, want %d", role, got[role].Index, idx)
				}
			}
		})
	}
}

func TestResolveColumnsSchemaMismatch(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		role   Role
	}{
		{"missing amount", []string{"Fecha", "Categoría", "Tipo"}, RoleAmount},
		{"missing date", []string{"Importe", "Tipo"}, RoleDate},
		{"date must match exactly", []string{"Fecha valor", "Importe", "Tipo"}, RoleDate},
		{"missing movement type", []string{"Fecha", "Importe", "Categoría"}, RoleMovementType},
		{"empty header", nil, RoleDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveColumns(tt.header, zerolog.Nop())
			if err == nil {
				t.Fatal("expected schema mismatch, got nil")
			}
			if !errors.Is(err, ErrSchemaMismatch) {
				t.Errorf("errors.Is(err, ErrSchemaMismatch) = false for %v", err)
			}

			var mismatch *SchemaMismatchError
			if !errors.As(err, &mismatch) {
				t.Fatalf("expected *SchemaMismatchError, got %T", err)
			}
			if mismatch.Role != tt.role {
				t.Errorf("role = %q, want %q", mismatch.Role, tt.role)
			}
			if !strings.Contains(err.Error(), string(tt.role)) {
				t.Errorf("error %q does not name role %q", err.Error(), tt.role)
			}
		})
	}
}

func TestCategoryIsOptional(t *testing.T) {
	cols, err := ResolveColumns([]string{"Fecha", "Importe", "Tipo"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cols.Category.Found() {
		t.Errorf("category should be absent, got %+v", cols.Category)
	}
}
