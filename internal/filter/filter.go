// Package filter narrows a demanda snapshot by status, responsible person and
// free text.
package filter

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"demandas/internal/domain"
)

// Criteria is a conjunction of optional constraints. The zero value matches
// everything.
type Criteria struct {
	Status        domain.State
	ResponsavelID *int64
	Unassigned    bool
	Query         string
}

// ParseStatus accepts pending/completed (and the Portuguese pendente/concluida)
// or blank for any.
func ParseStatus(s string) (domain.State, error) {
	switch Fold(strings.TrimSpace(s)) {
	case "", "all", "todas":
		return "", nil
	case "pending", "pendente", "pendentes":
		return domain.StatePending, nil
	case "completed", "concluida", "concluidas", "done":
		return domain.StateCompleted, nil
	}
	return "", domain.NewValidationError("status", "unknown status %q", s)
}

// Match reports whether d satisfies every constraint.
func (c Criteria) Match(d domain.Demanda) bool {
	if c.Status != "" && d.State() != c.Status {
		return false
	}
	if c.Unassigned && d.ResponsavelID != nil {
		return false
	}
	if c.ResponsavelID != nil && (d.ResponsavelID == nil || *d.ResponsavelID != *c.ResponsavelID) {
		return false
	}
	terms := strings.Fields(Fold(c.Query))
	if len(terms) == 0 {
		return true
	}
	haystack := Fold(strings.Join([]string{d.Nome, d.Descricao, d.ResponsavelNome}, " "))
	for _, term := range terms {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}

// Apply returns the matching demandas in their original order. The result is
// never nil.
func (c Criteria) Apply(demands []domain.Demanda) []domain.Demanda {
	out := make([]domain.Demanda, 0, len(demands))
	for _, d := range demands {
		if c.Match(d) {
			out = append(out, d)
		}
	}
	return out
}

func (c Criteria) String() string {
	var parts []string
	if c.Status != "" {
		parts = append(parts, "status="+string(c.Status))
	}
	if c.ResponsavelID != nil {
		parts = append(parts, fmt.Sprintf("responsavel=%d", *c.ResponsavelID))
	}
	if c.Unassigned {
		parts = append(parts, "unassigned")
	}
	if c.Query != "" {
		parts = append(parts, fmt.Sprintf("q=%q", c.Query))
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, " ")
}

// Fold lowercases s and strips combining marks, so "Conclusão" folds to
// "conclusao".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}
