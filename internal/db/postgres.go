package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/yungbote/tableside-backend/internal/logger"
	"github.com/yungbote/tableside-backend/internal/types"
	"github.com/yungbote/tableside-backend/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	log.Info("Loading environment variables...")
	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "tableside", log)
	log.Debug("Environment variables loaded")

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	log.Info("Connecting to Postgres...")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		log.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("Failed to connect to Postgres: %w", err)
	}

	return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(
		&types.Table{},
		&types.Product{},
		&types.Order{},
		&types.OrderItem{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}
	s.log.Info("Configuring foreign key relationships for postgres tables...")
	if err := s.db.Exec(`
		ALTER TABLE "order_item"
		ADD CONSTRAINT "fk_order_item_order_id"
		FOREIGN KEY ("order_id")
		REFERENCES "order"("id")
		ON DELETE CASCADE
	`).Error; err != nil {
		return fmt.Errorf("Failed to add fk_order_item_order_id: %w", err)
	}
	if err := s.db.Exec(`
		ALTER TABLE "order_item"
		ADD CONSTRAINT "fk_order_item_product_id"
		FOREIGN KEY ("product_id")
		REFERENCES "product"("id")
	`).Error; err != nil {
		return fmt.Errorf("Failed to add fk_order_item_product_id: %w", err)
	}
	if err := s.db.Exec(`
		ALTER TABLE "order"
		ADD CONSTRAINT "fk_order_table_id"
		FOREIGN KEY ("table_id")
		REFERENCES "dining_table"("id")
	`).Error; err != nil {
		return fmt.Errorf("Failed to add fk_order_table_id: %w", err)
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
