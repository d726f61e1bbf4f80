package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"storyboard/internal/adapter/repo"
	"storyboard/internal/credits"
	"storyboard/internal/infra"
)

func main() {
	_ = godotenv.Load()

	var (
		userFlag    string
		grantFlag   int
		reasonFlag  string
		historyFlag int
		auditFlag   bool
	)
	flag.StringVar(&userFlag, "user", "", "user ID whose credits to inspect or grant")
	flag.IntVar(&grantFlag, "grant", 0, "number of credits to add (0 only prints the balance)")
	flag.StringVar(&reasonFlag, "reason", "admin_grant", "resource type recorded on the grant transaction")
	flag.IntVar(&historyFlag, "history", 10, "number of recent transactions to print")
	flag.BoolVar(&auditFlag, "audit", false, "verify that the transaction log sums to the balance")
	flag.Parse()

	userID := strings.TrimSpace(userFlag)
	if userID == "" {
		exitWithError(errors.New("-user is required"))
	}
	if grantFlag < 0 {
		exitWithError(errors.New("-grant must not be negative"))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "credits").Logger()
	ledger := credits.NewLedger(repo.NewCreditRepository(infra.NewSQLRunner(pool, logger)), logger)

	if grantFlag > 0 {
		acct, err := ledger.Grant(ctx, userID, grantFlag, strings.TrimSpace(reasonFlag))
		if err != nil {
			exitWithError(fmt.Errorf("failed to grant credits: %w", err))
		}
		fmt.Printf("Granted %d credits to %s\n", grantFlag, acct.UserID)
	}

	acct, err := ledger.Balance(ctx, userID)
	if err != nil {
		exitWithError(fmt.Errorf("failed to load balance: %w", err))
	}
	fmt.Printf("total_credits=%d\nused_credits=%d\navailable=%d\n", acct.TotalCredits, acct.UsedCredits, acct.Available())

	if historyFlag > 0 {
		txs, err := ledger.History(ctx, userID, historyFlag)
		if err != nil {
			exitWithError(fmt.Errorf("failed to load history: %w", err))
		}
		for _, tx := range txs {
			fmt.Printf("%s %+d %s %s\n", tx.CreatedAt.UTC().Format(time.RFC3339), tx.Amount, tx.ResourceType, tx.ID)
		}
	}

	if auditFlag {
		if err := ledger.Audit(ctx, userID); err != nil {
			exitWithError(err)
		}
		fmt.Println("audit ok")
	}
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
