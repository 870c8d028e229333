package migrate

import (
	"context"

	"reservation-core/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Options struct {
	CreateExtensions       bool
	CreateChecks           bool
	CreateIndexes          bool
	CreateFKsViaSQL        bool
	CreateUpdatedAtTrigger bool
}

func DefaultOptions() Options {
	return Options{
		CreateExtensions:       true,
		CreateChecks:           true,
		CreateIndexes:          true,
		CreateFKsViaSQL:        true,
		CreateUpdatedAtTrigger: true,
	}
}

func Run(ctx context.Context, db *gorm.DB, log *zap.Logger, opt Options) error {
	log.Info("starting reservation core migration")

	if opt.CreateExtensions {
		log.Info("creating postgres extensions")
		for _, stmt := range []string{
			`CREATE EXTENSION IF NOT EXISTS pgcrypto`,
			`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`,
			`CREATE EXTENSION IF NOT EXISTS pg_trgm`,
		} {
			if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
				log.Error("extension setup failed", zap.String("stmt", stmt), zap.Error(err))
				return err
			}
		}
		log.Info("postgres extensions ready")
	}

	log.Info("auto-migrating tables")
	if err := db.WithContext(ctx).AutoMigrate(
		&models.Product{},
		&models.Inventory{},
		&models.Reservation{},
		&models.ReservationLine{},
		&models.Order{},
		&models.OrderLine{},
		&models.IdempotencyRecord{},
		&models.LowStockSignal{},
	); err != nil {
		log.Error("auto-migrate failed", zap.Error(err))
		return err
	}
	log.Info("tables ready")

	if opt.CreateUpdatedAtTrigger {
		log.Info("creating updated_at triggers")
		if err := db.WithContext(ctx).Exec(`
CREATE OR REPLACE FUNCTION set_updated_at() RETURNS trigger AS $$
BEGIN NEW.updated_at = now(); RETURN NEW; END; $$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_products_updated ON products;
CREATE TRIGGER trg_products_updated BEFORE UPDATE ON products
FOR EACH ROW EXECUTE FUNCTION set_updated_at();

DROP TRIGGER IF EXISTS trg_inventories_updated ON inventories;
CREATE TRIGGER trg_inventories_updated BEFORE UPDATE ON inventories
FOR EACH ROW EXECUTE FUNCTION set_updated_at();

DROP TRIGGER IF EXISTS trg_idempotency_records_updated ON idempotency_records;
CREATE TRIGGER trg_idempotency_records_updated BEFORE UPDATE ON idempotency_records
FOR EACH ROW EXECUTE FUNCTION set_updated_at();
`).Error; err != nil {
			log.Error("trigger setup failed", zap.Error(err))
			return err
		}
		log.Info("updated_at triggers ready")
	}

	if opt.CreateChecks {
		log.Info("creating check constraints")
		for _, stmt := range []string{
			`ALTER TABLE inventories
				DROP CONSTRAINT IF EXISTS chk_inventories_stock_reserved_bounds,
				ADD CONSTRAINT chk_inventories_stock_reserved_bounds
				CHECK (stock >= reserved AND reserved >= 0);`,
			`ALTER TABLE reservation_lines
				DROP CONSTRAINT IF EXISTS chk_reservation_lines_qty_gt_zero,
				ADD CONSTRAINT chk_reservation_lines_qty_gt_zero
				CHECK (quantity > 0);`,
			`ALTER TABLE order_lines
				DROP CONSTRAINT IF EXISTS chk_order_lines_qty_gt_zero,
				ADD CONSTRAINT chk_order_lines_qty_gt_zero
				CHECK (quantity > 0);`,
			`ALTER TABLE reservations
				DROP CONSTRAINT IF EXISTS chk_reservations_state_allowed,
				ADD CONSTRAINT chk_reservations_state_allowed
				CHECK (state IN ('active','consumed','expired','cancelled'));`,
			`ALTER TABLE orders
				DROP CONSTRAINT IF EXISTS chk_orders_state_allowed,
				ADD CONSTRAINT chk_orders_state_allowed
				CHECK (state IN ('created','cancelled'));`,
			`ALTER TABLE idempotency_records
				DROP CONSTRAINT IF EXISTS chk_idempotency_state_allowed,
				ADD CONSTRAINT chk_idempotency_state_allowed
				CHECK (state IN ('in_progress','succeeded','failed'));`,
		} {
			if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
				log.Error("check constraint failed", zap.String("stmt", stmt), zap.Error(err))
				return err
			}
		}
		log.Info("check constraints ready")
	}

	if opt.CreateIndexes {
		log.Info("creating supplementary indexes")
		for _, stmt := range []string{
			`CREATE INDEX IF NOT EXISTS ix_low_stock_signals_unprocessed
				ON low_stock_signals (processed, created_at) WHERE processed = false;`,
		} {
			if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
				log.Error("index creation failed", zap.String("stmt", stmt), zap.Error(err))
				return err
			}
		}
		log.Info("supplementary indexes ready")
	}

	if opt.CreateFKsViaSQL {
		log.Info("creating foreign keys")
		for _, stmt := range []string{
			`ALTER TABLE inventories
				DROP CONSTRAINT IF EXISTS fk_inventories_product,
				ADD CONSTRAINT fk_inventories_product
				FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE RESTRICT;`,
			`ALTER TABLE reservation_lines
				DROP CONSTRAINT IF EXISTS fk_reservation_lines_reservation,
				ADD CONSTRAINT fk_reservation_lines_reservation
				FOREIGN KEY (reservation_id) REFERENCES reservations(id) ON DELETE CASCADE;`,
			`ALTER TABLE reservation_lines
				DROP CONSTRAINT IF EXISTS fk_reservation_lines_product,
				ADD CONSTRAINT fk_reservation_lines_product
				FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE RESTRICT;`,
			`ALTER TABLE order_lines
				DROP CONSTRAINT IF EXISTS fk_order_lines_order,
				ADD CONSTRAINT fk_order_lines_order
				FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE;`,
			`ALTER TABLE low_stock_signals
				DROP CONSTRAINT IF EXISTS fk_low_stock_signals_product,
				ADD CONSTRAINT fk_low_stock_signals_product
				FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE RESTRICT;`,
		} {
			if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
				log.Error("foreign key creation failed", zap.String("stmt", stmt), zap.Error(err))
				return err
			}
		}
		log.Info("foreign keys ready")
	}

	log.Info("reservation core migration complete")
	return nil
}
