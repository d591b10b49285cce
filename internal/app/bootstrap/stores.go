package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"

	appconfig "github.com/wolfman30/lead-intake/internal/config"
	"github.com/wolfman30/lead-intake/internal/leads"
	"github.com/wolfman30/lead-intake/pkg/logging"
)

// ErrAWSConfigRequired is returned when a selected backend needs AWS but no
// SDK config was loaded.
var ErrAWSConfigRequired = errors.New("bootstrap: aws config required")

// BuildLeadRepository selects the lead store. The returned closer releases
// any pooled connections.
func BuildLeadRepository(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (leads.Repository, func(), error) {
	if logger == nil {
		logger = logging.Default()
	}
	switch cfg.LeadStore {
	case appconfig.BackendPostgres:
		pool, err := connectPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("lead store ready", "backend", "postgres")
		return leads.NewPostgresRepository(pool), pool.Close, nil
	case appconfig.BackendDynamoDB:
		if awsCfg == nil {
			return nil, nil, fmt.Errorf("%w: dynamodb lead store", ErrAWSConfigRequired)
		}
		logger.Info("lead store ready", "backend", "dynamodb", "table", cfg.LeadsTable)
		return leads.NewDynamoRepository(dynamodb.NewFromConfig(*awsCfg), cfg.LeadsTable), func() {}, nil
	case appconfig.BackendMemory, "":
		logger.Warn("using in-memory lead store; leads are lost on restart")
		return leads.NewInMemoryRepository(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown lead store %q", cfg.LeadStore)
	}
}

func connectPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("bootstrap: DATABASE_URL is empty")
	}
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: parse database url: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping database: %w", err)
	}
	return pool, nil
}
