// Command calc-server serves the calculator tools over stdio.
package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/toolscribe/toolscribe"
	"github.com/toolscribe/toolscribe/mcp"
	"github.com/toolscribe/toolscribe/observability"
	"github.com/toolscribe/toolscribe/tools/calculator"
)

const serverVersion = "0.1.0"

var cli struct {
	Name      string  `help:"Server name reported to clients." default:"calc-server" env:"CALC_SERVER_NAME"`
	LogLevel  string  `help:"Log level." default:"info" enum:"debug,info,warn,error" env:"CALC_LOG_LEVEL"`
	HistoryDB string  `help:"SQLite file recording tool invocations." env:"CALC_HISTORY_DB"`
	RateLimit float64 `help:"Maximum tool calls per second, 0 disables the limit." default:"0" env:"CALC_RATE_LIMIT"`
}

func main() {
	_ = godotenv.Load()
	kctx := kong.Parse(&cli)

	logrusLogger := logrus.New()
	logrusLogger.SetOutput(os.Stderr) // stdout carries the protocol
	level, err := logrus.ParseLevel(cli.LogLevel)
	if err != nil {
		kctx.FatalIfErrorf(err)
	}
	logrusLogger.SetLevel(level)
	logger := observability.NewLogrusLogger(logrusLogger)

	registry := toolscribe.NewRegistry()
	if err := calculator.Register(registry); err != nil {
		kctx.FatalIfErrorf(err)
	}

	invokerOpts := []toolscribe.InvokerOption{toolscribe.WithLogger(logger)}

	if cli.HistoryDB != "" {
		db, err := sql.Open("sqlite3", cli.HistoryDB)
		if err != nil {
			kctx.FatalIfErrorf(err)
		}
		defer db.Close()

		store, err := toolscribe.NewSQLiteInvocationStore(db, logger)
		if err != nil {
			kctx.FatalIfErrorf(err)
		}
		invokerOpts = append(invokerOpts, toolscribe.WithHistory(store))
	}

	if cli.RateLimit > 0 {
		invokerOpts = append(invokerOpts, toolscribe.WithRateLimit(rate.Limit(cli.RateLimit), 1))
	}

	invoker := toolscribe.NewInvoker(registry, invokerOpts...)

	provider := toolscribe.NewToolsProvider()
	if err := provider.AddRegistry(registry, invoker); err != nil {
		kctx.FatalIfErrorf(err)
	}
	handlers, err := provider.ToolHandlers()
	if err != nil {
		kctx.FatalIfErrorf(err)
	}

	toolManager, err := mcp.NewToolManager(handlers)
	if err != nil {
		kctx.FatalIfErrorf(err)
	}

	baseServer, err := mcp.NewBaseServer(
		mcp.UseLogger(logger),
		mcp.UseServerInfo(cli.Name, serverVersion),
		mcp.UseTools(toolManager),
	)
	if err != nil {
		kctx.FatalIfErrorf(err)
	}

	server := mcp.NewStdIOServer(baseServer, os.Stdin, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithErr(err).Error("Server stopped")
		os.Exit(1)
	}
}
