// Command seed creates fixture accounts for local development and demos.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/shopspring/decimal"

	"github.com/jalpeshmakadia/secure-fund-transfer/internal/adapter/storage/postgres"
	"github.com/jalpeshmakadia/secure-fund-transfer/internal/core/config"
	"github.com/jalpeshmakadia/secure-fund-transfer/internal/core/domain"
)

type fixture struct {
	number    string
	firstName string
	lastName  string
	balance   string
}

var fixtures = []fixture{
	{number: "ACC001", firstName: "Alice", lastName: "Carter", balance: "1000.00"},
	{number: "ACC002", firstName: "Bob", lastName: "Nguyen", balance: "500.00"},
	{number: "ACC003", firstName: "Carol", lastName: "Okafor", balance: "250.00"},
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	skipExisting := flag.Bool("skip-existing", true, "skip accounts that already exist instead of failing")
	flag.Parse()

	cfg := config.Load()
	ctx := context.Background()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		slog.Error("schema setup failed", "error", err)
		os.Exit(1)
	}

	store := postgres.NewStore(pool, false)
	for _, f := range fixtures {
		acc := &domain.Account{
			AccountNumber: f.number,
			FirstName:     f.firstName,
			LastName:      f.lastName,
			Balance:       decimal.RequireFromString(f.balance),
		}
		if err := store.CreateAccount(ctx, acc); err != nil {
			if *skipExisting {
				slog.Warn("account skipped", "account_number", f.number, "reason", err)
				continue
			}
			slog.Error("seed failed", "account_number", f.number, "error", err)
			os.Exit(1)
		}
		slog.Info("account seeded", "account_number", acc.AccountNumber, "balance", acc.Balance.StringFixed(2))
	}
}
