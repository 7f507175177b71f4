package models

import "github.com/google/uuid"

// IDs are minted in Go so inserts behave the same on Postgres and SQLite.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model; tests use it for AutoMigrate.
func All() []any {
	return []any{
		&Product{},
		&ProductVariant{},
		&Cart{},
		&CartItem{},
		&Address{},
		&Order{},
		&OrderItem{},
		&PaymentAttempt{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
