package sqlstore

import (
	"context"
	"fmt"
)

// CreateSchema creates every table and index that does not yet exist.
func (s *Store) CreateSchema(ctx context.Context) error {
	for _, model := range schemaModels {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("sqlstore: create table for %T: %w", model, err)
		}
	}
	indexes := []struct {
		name    string
		model   any
		columns []string
	}{
		{"milestone_cards_section_order_idx", (*milestoneModel)(nil), []string{"section_id", "sort_order"}},
		{"sections_updated_at_idx", (*sectionModel)(nil), []string{"updated_at"}},
	}
	for _, idx := range indexes {
		_, err := s.db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.columns...).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("sqlstore: create index %s: %w", idx.name, err)
		}
	}
	return nil
}

// DropSchema removes every table. Used by sitectl and tests.
func (s *Store) DropSchema(ctx context.Context) error {
	for i := len(schemaModels) - 1; i >= 0; i-- {
		if _, err := s.db.NewDropTable().Model(schemaModels[i]).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("sqlstore: drop table for %T: %w", schemaModels[i], err)
		}
	}
	return nil
}
