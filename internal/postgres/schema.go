package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		name          TEXT NOT NULL,
		email         TEXT NOT NULL,
		phone         TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'user',
		is_active     BOOLEAN NOT NULL DEFAULT TRUE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT users_email_key UNIQUE (email)
	)`,
	`CREATE TABLE IF NOT EXISTS user_addresses (
		id          UUID PRIMARY KEY,
		user_id     UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		label       TEXT NOT NULL DEFAULT '',
		street      TEXT NOT NULL,
		city        TEXT NOT NULL,
		state       TEXT NOT NULL,
		pincode     TEXT NOT NULL,
		phone       TEXT NOT NULL DEFAULT '',
		is_default  BOOLEAN NOT NULL DEFAULT false,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS user_addresses_user_idx ON user_addresses (user_id, created_at)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS user_addresses_default_idx ON user_addresses (user_id) WHERE is_default`,
	`CREATE TABLE IF NOT EXISTS categories (
		id          UUID PRIMARY KEY,
		name        TEXT NOT NULL,
		slug        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		is_active   BOOLEAN NOT NULL DEFAULT TRUE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT categories_slug_key UNIQUE (slug)
	)`,
	`CREATE TABLE IF NOT EXISTS services (
		id                UUID PRIMARY KEY,
		name              TEXT NOT NULL,
		category_id       UUID NOT NULL REFERENCES categories(id),
		description       TEXT NOT NULL DEFAULT '',
		service_type      TEXT NOT NULL,
		base_price        NUMERIC(12,2) NOT NULL CHECK (base_price >= 0),
		currency          TEXT NOT NULL DEFAULT 'INR',
		duration_minutes  INTEGER NOT NULL DEFAULT 60,
		included_services TEXT[] NOT NULL DEFAULT '{}',
		image             TEXT NOT NULL DEFAULT '',
		is_active         BOOLEAN NOT NULL DEFAULT TRUE,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS spare_parts (
		id                   UUID PRIMARY KEY,
		name                 TEXT NOT NULL,
		part_number          TEXT NOT NULL,
		category_id          UUID NOT NULL REFERENCES categories(id),
		compatibility        JSONB NOT NULL DEFAULT '[]',
		description          TEXT NOT NULL DEFAULT '',
		specifications       JSONB NOT NULL DEFAULT '{}',
		price                NUMERIC(12,2) NOT NULL CHECK (price >= 0),
		currency             TEXT NOT NULL DEFAULT 'INR',
		stock                INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		images               TEXT[] NOT NULL DEFAULT '{}',
		warranty_months      INTEGER NOT NULL DEFAULT 0,
		warranty_description TEXT NOT NULL DEFAULT '',
		is_active            BOOLEAN NOT NULL DEFAULT TRUE,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT spare_parts_part_number_key UNIQUE (part_number)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id                 UUID PRIMARY KEY,
		user_id            UUID NOT NULL REFERENCES users(id),
		status             TEXT NOT NULL,
		ship_name          TEXT NOT NULL DEFAULT '',
		ship_street        TEXT NOT NULL DEFAULT '',
		ship_city          TEXT NOT NULL DEFAULT '',
		ship_state         TEXT NOT NULL DEFAULT '',
		ship_pincode       TEXT NOT NULL DEFAULT '',
		ship_phone         TEXT NOT NULL DEFAULT '',
		subtotal           NUMERIC(12,2) NOT NULL,
		shipping           NUMERIC(12,2) NOT NULL,
		tax                NUMERIC(12,2) NOT NULL,
		discount           NUMERIC(12,2) NOT NULL DEFAULT 0,
		total              NUMERIC(12,2) NOT NULL,
		payment_method     TEXT NOT NULL DEFAULT 'cod',
		payment_status     TEXT NOT NULL DEFAULT 'pending',
		payment_txn_id     TEXT NOT NULL DEFAULT '',
		carrier            TEXT NOT NULL DEFAULT '',
		tracking_number    TEXT NOT NULL DEFAULT '',
		estimated_delivery TIMESTAMPTZ,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
		CHECK (total = subtotal + shipping + tax - discount)
	)`,
	`CREATE INDEX IF NOT EXISTS orders_user_created_idx ON orders (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_id      UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		position      INTEGER NOT NULL,
		spare_part_id UUID NOT NULL REFERENCES spare_parts(id),
		name          TEXT NOT NULL,
		quantity      INTEGER NOT NULL CHECK (quantity >= 1),
		unit_price    NUMERIC(12,2) NOT NULL,
		PRIMARY KEY (order_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id               UUID PRIMARY KEY,
		user_id          UUID NOT NULL REFERENCES users(id),
		service_id       UUID NOT NULL REFERENCES services(id),
		category_id      UUID NOT NULL REFERENCES categories(id),
		appliance_brand  TEXT NOT NULL DEFAULT '',
		appliance_model  TEXT NOT NULL DEFAULT '',
		purchase_year    INTEGER,
		scheduled_date   DATE NOT NULL,
		slot_start       TEXT NOT NULL,
		slot_end         TEXT NOT NULL,
		street           TEXT NOT NULL DEFAULT '',
		city             TEXT NOT NULL DEFAULT '',
		state            TEXT NOT NULL DEFAULT '',
		pincode          TEXT NOT NULL DEFAULT '',
		status           TEXT NOT NULL,
		technician_id    UUID REFERENCES users(id),
		price_service    NUMERIC(12,2) NOT NULL,
		price_parts      NUMERIC(12,2) NOT NULL DEFAULT 0,
		price_tax        NUMERIC(12,2) NOT NULL,
		price_total      NUMERIC(12,2) NOT NULL,
		payment_method   TEXT NOT NULL DEFAULT 'cash',
		payment_status   TEXT NOT NULL DEFAULT 'pending',
		payment_txn_id   TEXT NOT NULL DEFAULT '',
		notes            TEXT NOT NULL DEFAULT '',
		rating_score     SMALLINT CHECK (rating_score BETWEEN 1 AND 5),
		rating_review    TEXT,
		rating_date      TIMESTAMPTZ,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS bookings_user_created_idx ON bookings (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS bookings_technician_idx ON bookings (technician_id)`,
	`CREATE TABLE IF NOT EXISTS payment_intents (
		gateway_order_id TEXT PRIMARY KEY,
		kind             TEXT NOT NULL,
		entity_id        UUID NOT NULL,
		user_id          UUID NOT NULL REFERENCES users(id),
		amount_minor     BIGINT NOT NULL,
		currency         TEXT NOT NULL,
		receipt          TEXT NOT NULL,
		status           TEXT NOT NULL DEFAULT 'created',
		payment_id       TEXT NOT NULL DEFAULT '',
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS payment_intents_entity_idx ON payment_intents (kind, entity_id)`,
}

// Migrate creates any missing tables and indexes.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	return nil
}
