package main

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"flowmarket/backend/internal/config"
	"flowmarket/backend/internal/logging"
	"flowmarket/backend/internal/repository"
	"flowmarket/backend/pkg/models"
)

func main() {
	ctx := context.Background()

	// Load config
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	// Connect to DB
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pool.Close()

	if err := repository.Migrate(ctx, pool); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	store := repository.NewPostgresStore(pool)

	// Check for existing workflows to prevent duplicates
	existing, err := store.ListWorkflows(ctx, repository.WorkflowFilter{})
	if err != nil {
		log.Fatalf("Failed to list existing workflows: %v", err)
	}
	existingNames := make(map[string]bool)
	for _, w := range existing {
		existingNames[w.Name] = true
	}

	for _, wf := range seedWorkflows() {
		if existingNames[wf.Name] {
			logger.Info("Skipping existing workflow", "name", wf.Name)
			continue
		}
		if err := store.SaveWorkflow(ctx, wf); err != nil {
			log.Printf("Failed to seed workflow %s: %v", wf.Name, err)
			continue
		}
		logger.Info("Seeded workflow", "name", wf.Name, "id", wf.ID)
	}
	logger.Info("Seeding complete!")
}

func schema(required []string, fields ...models.SchemaField) models.Schema {
	return models.Schema{Properties: fields, Required: required}
}

func field(name string, t models.FieldType) models.SchemaField {
	return models.SchemaField{Name: name, Type: t}
}

// seedWorkflows returns demo marketplace workflows whose schemas chain into
// each other, so the composer has real material to work with. Prices are in
// micro-USDC.
func seedWorkflows() []*models.WorkflowDescriptor {
	devOwner := "0x1111111111111111111111111111111111111111"
	return []*models.WorkflowDescriptor{
		{
			ID:           uuid.New().String(),
			Name:         "ETH Price Oracle",
			Description:  "Fetches the current ETH/USD price from aggregated exchanges.",
			Category:     "price-feed",
			OwnerAddress: devOwner,
			Endpoint:     "https://oracle.flowmarket.dev/eth",
			InputSchema: schema([]string{"symbol"},
				field("symbol", models.FieldString),
			),
			OutputSchema: schema(nil,
				field("symbol", models.FieldString),
				field("price", models.FieldNumber),
				field("timestamp", models.FieldNumber),
			),
			Price:                25_000,
			TotalExecutions:      4812,
			SuccessfulExecutions: 4760,
		},
		{
			ID:           uuid.New().String(),
			Name:         "BTC Price Oracle",
			Description:  "Fetches the current BTC/USD price feed.",
			Category:     "price-feed",
			OwnerAddress: devOwner,
			Endpoint:     "https://oracle.flowmarket.dev/btc",
			InputSchema: schema([]string{"symbol"},
				field("symbol", models.FieldString),
			),
			OutputSchema: schema(nil,
				field("symbol", models.FieldString),
				field("price", models.FieldNumber),
			),
			Price:                20_000,
			TotalExecutions:      2190,
			SuccessfulExecutions: 2103,
		},
		{
			ID:           uuid.New().String(),
			Name:         "Uniswap Swap Executor",
			Description:  "Swaps tokens on Uniswap v3 at the best available rate.",
			Category:     "defi-trade",
			OwnerAddress: devOwner,
			Endpoint:     "https://trade.flowmarket.dev/swap",
			InputSchema: schema([]string{"tokenIn", "tokenOut", "amount"},
				field("tokenIn", models.FieldString),
				field("tokenOut", models.FieldString),
				field("amount", models.FieldNumber),
				field("price", models.FieldNumber),
			),
			OutputSchema: schema(nil,
				field("txHash", models.FieldString),
				field("amountOut", models.FieldNumber),
			),
			Price:                120_000,
			TotalExecutions:      960,
			SuccessfulExecutions: 901,
		},
		{
			ID:           uuid.New().String(),
			Name:         "Telegram Alert Sender",
			Description:  "Sends a notification message to a Telegram channel.",
			Category:     "notification",
			OwnerAddress: devOwner,
			Endpoint:     "https://notify.flowmarket.dev/telegram",
			InputSchema: schema([]string{"message"},
				field("message", models.FieldString),
				field("price", models.FieldNumber),
			),
			OutputSchema: schema(nil,
				field("delivered", models.FieldBoolean),
				field("message", models.FieldString),
			),
			Price:                5_000,
			TotalExecutions:      15230,
			SuccessfulExecutions: 15102,
		},
		{
			ID:           uuid.New().String(),
			Name:         "Email Notifier",
			Description:  "Sends an alert email to the configured recipient.",
			Category:     "notification",
			OwnerAddress: devOwner,
			Endpoint:     "https://notify.flowmarket.dev/email",
			InputSchema: schema([]string{"message"},
				field("message", models.FieldString),
			),
			OutputSchema: schema(nil,
				field("delivered", models.FieldBoolean),
			),
			Price:                3_000,
			TotalExecutions:      8770,
			SuccessfulExecutions: 8421,
		},
		{
			ID:           uuid.New().String(),
			Name:         "Market Data Aggregator",
			Description:  "Collects and aggregates market data across venues for analysis.",
			Category:     "analytics",
			OwnerAddress: devOwner,
			Endpoint:     "https://data.flowmarket.dev/aggregate",
			InputSchema: schema(nil,
				field("symbol", models.FieldString),
				field("price", models.FieldNumber),
			),
			OutputSchema: schema(nil,
				field("summary", models.FieldString),
				field("volatility", models.FieldNumber),
				field("price", models.FieldNumber),
			),
			Price:                40_000,
			TotalExecutions:      3310,
			SuccessfulExecutions: 3204,
		},
		{
			ID:           uuid.New().String(),
			Name:         "Sentiment Analyzer",
			Description:  "Analyzes social sentiment for a token and produces a trend report.",
			Category:     "analytics",
			OwnerAddress: devOwner,
			Endpoint:     "https://data.flowmarket.dev/sentiment",
			InputSchema: schema([]string{"symbol"},
				field("symbol", models.FieldString),
			),
			OutputSchema: schema(nil,
				field("summary", models.FieldString),
				field("score", models.FieldNumber),
			),
			Price:                35_000,
			TotalExecutions:      1480,
			SuccessfulExecutions: 1333,
		},
		{
			ID:           uuid.New().String(),
			Name:         "Wallet Balance Monitor",
			Description:  "Monitors and tracks an address balance and reports changes.",
			Category:     "monitoring",
			OwnerAddress: devOwner,
			Endpoint:     "https://watch.flowmarket.dev/balance",
			InputSchema: schema([]string{"address"},
				field("address", models.FieldString),
			),
			OutputSchema: schema(nil,
				field("address", models.FieldString),
				field("balance", models.FieldNumber),
				field("message", models.FieldString),
			),
			Price:                10_000,
			TotalExecutions:      6025,
			SuccessfulExecutions: 5987,
		},
	}
}
