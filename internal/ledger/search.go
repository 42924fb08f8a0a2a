package ledger

import (
	"context"

	"github.com/sheikh-saqib/store-credit-ledger/internal/models"
)

// SearchResult holds the rows of the single field that matched.
// Field is empty when no field produced any row.
type SearchResult struct {
	Domain  models.SearchDomain `json:"domain"`
	Field   models.SearchField  `json:"field,omitempty"`
	Clients []models.Client     `json:"clients,omitempty"`
	Credits []models.Credit     `json:"credits,omitempty"`
}

// Search scans the domain's candidate fields in order and returns the rows of
// the first field that matches anything. Results are never merged across
// fields. The paid field matches exactly (ignoring case), every other field
// matches on a case-insensitive substring.
func (l *Ledger) Search(ctx context.Context, keyword string, domain models.SearchDomain) (SearchResult, error) {
	fields := domain.Fields()
	if len(fields) == 0 {
		return SearchResult{}, &ValidationError{Field: "domain", Reason: "must be clients or credits"}
	}

	result := SearchResult{Domain: domain}
	for _, field := range fields {
		switch domain {
		case models.DomainClients:
			clients, err := l.store.SearchClients(ctx, field, keyword)
			if err != nil {
				return SearchResult{}, &StorageError{Op: "search clients", Err: err}
			}
			if len(clients) > 0 {
				result.Field = field
				result.Clients = clients
				return result, nil
			}
		case models.DomainCredits:
			credits, err := l.store.SearchCredits(ctx, field, keyword)
			if err != nil {
				return SearchResult{}, &StorageError{Op: "search credits", Err: err}
			}
			if len(credits) > 0 {
				result.Field = field
				result.Credits = credits
				return result, nil
			}
		}
	}
	return result, nil
}
