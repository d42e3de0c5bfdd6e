package places

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Place struct {
	PostalCode  string `json:"postal_code"`
	PlaceName   string `json:"place_name"`
	AdminCode1  string `json:"admin_code1"`
	AdminName1  string `json:"admin_name1"`
	CountryCode string `json:"country_code"`
}

type Service struct {
	pool *pgxpool.Pool
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// Search matches places whose fields start with the query's tokens.
func (s *Service) Search(ctx context.Context, geo string) ([]Place, error) {
	tokens := parseTokens(geo)
	if len(tokens) == 0 {
		return []Place{}, nil
	}
	query, args := buildSearchQuery(tokens)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Place, 0)
	for rows.Next() {
		var p Place
		if err := rows.Scan(&p.PostalCode, &p.PlaceName, &p.AdminCode1, &p.AdminName1, &p.CountryCode); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
