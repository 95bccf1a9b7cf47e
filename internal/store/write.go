package store

import (
	"context"
	"fmt"
)

// WriteVisibility stores the CEL visibility predicate of an entity type,
// replacing any previous predicate.
func (s *Store) WriteVisibility(ctx context.Context, typeName, predicate string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO qtoken_visibility (type_name, predicate)
		VALUES (?, ?)
		ON CONFLICT(type_name) DO UPDATE SET predicate = excluded.predicate
	`, typeName, predicate)
	if err != nil {
		return fmt.Errorf("write visibility: %w", err)
	}
	return nil
}

// WriteFormat stores display metadata for a property route such as
// "Order.Total" or "Order.Lines/Price".
func (s *Store) WriteFormat(ctx context.Context, route, format, unit string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO qtoken_format (route, format, unit)
		VALUES (?, ?, ?)
		ON CONFLICT(route) DO UPDATE SET format = excluded.format, unit = excluded.unit
	`, route, format, unit)
	if err != nil {
		return fmt.Errorf("write format: %w", err)
	}
	return nil
}
