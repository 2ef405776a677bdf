package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	logger "github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"orderexecutor/src/bracket"
	"orderexecutor/src/connectors"
	"orderexecutor/src/database"
	"orderexecutor/src/repository"
	"orderexecutor/src/server"
	"orderexecutor/src/strategy"
	"orderexecutor/src/userstream"
	"orderexecutor/src/validation"
)

var Version string

func SetupLogger() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		level = logger.InfoLevel
	}

	logger.SetLevel(level)
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		logger.SetFormatter(&logger.JSONFormatter{})
	} else {
		logger.SetFormatter(&logger.TextFormatter{
			FullTimestamp: true,
		})
	}
}

func main() {
	SetupLogger()

	app := cli.NewApp()
	app.Name = "orderexecutor"
	app.Usage = "USDT-M futures order execution command line interface"
	app.Version = Version

	app.Commands = []cli.Command{
		marketCMD,
		limitCMD,
		stopLimitCMD,
		gridCMD,
		twapCMD,
		bracketCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	marketCMD = cli.Command{
		Name:        "market",
		Usage:       "place a market order",
		Action:      marketAction,
		ArgsUsage:   "SYMBOL SIDE QUANTITY",
		Flags:       []cli.Flag{},
		Description: `Place a single market order`,
	}
	limitCMD = cli.Command{
		Name:        "limit",
		Usage:       "place a limit order",
		Action:      limitAction,
		ArgsUsage:   "SYMBOL SIDE QUANTITY PRICE",
		Flags:       []cli.Flag{},
		Description: `Place a single GTC limit order`,
	}
	stopLimitCMD = cli.Command{
		Name:        "stop-limit",
		Usage:       "place a stop-limit order",
		Action:      stopLimitAction,
		ArgsUsage:   "SYMBOL SIDE QUANTITY STOP_PRICE LIMIT_PRICE",
		Flags:       []cli.Flag{},
		Description: `Place a conditional order with a trigger and a limit price`,
	}
	gridCMD = cli.Command{
		Name:        "grid",
		Usage:       "place a grid ladder",
		Action:      gridAction,
		ArgsUsage:   "SYMBOL LOWER_PRICE UPPER_PRICE LEVELS QTY_PER_LEVEL",
		Flags:       []cli.Flag{},
		Description: `Place evenly spaced limit orders between two prices, BUY below the market and SELL above`,
	}
	twapCMD = cli.Command{
		Name:        "twap",
		Usage:       "run a TWAP execution",
		Action:      twapAction,
		ArgsUsage:   "SYMBOL SIDE TOTAL_QUANTITY DURATION_MINUTES CHUNKS",
		Flags:       []cli.Flag{},
		Description: `Split a quantity into equal market-order chunks over a time window`,
	}
	bracketCMD = cli.Command{
		Name:      "bracket",
		Usage:     "run an OCO take-profit / stop-loss bracket",
		Action:    bracketAction,
		ArgsUsage: "SYMBOL QUANTITY TAKE_PROFIT_PRICE STOP_LOSS_PRICE",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "side",
				Usage: "exit side of both legs",
				Value: "SELL",
			},
		},
		Description: `Place both exit legs and cancel the survivor when one fills`,
	}
)

func floatArg(c *cli.Context, index int, name string) (float64, error) {
	raw := c.Args().Get(index)
	if raw == "" {
		return 0, fmt.Errorf("missing argument %s", name)
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return value, nil
}

func intArg(c *cli.Context, index int, name string) (int, error) {
	raw := c.Args().Get(index)
	if raw == "" {
		return 0, fmt.Errorf("missing argument %s", name)
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return value, nil
}

// initJournal opens the optional execution journal. A disabled journal
// returns nil, which every consumer treats as "do not record".
func initJournal() (*repository.ExecutionLogRepository, error) {
	enabled, err := database.InitJournalDB()
	if err != nil {
		return nil, fmt.Errorf("init journal: %w", err)
	}
	if !enabled {
		return nil, nil
	}
	return repository.NewExecutionLogRepository(), nil
}

func newExecutor(cmd string) (*strategy.Executor, error) {
	repo, err := initJournal()
	if err != nil {
		return nil, err
	}

	var journal strategy.Journal
	if repo != nil {
		journal = repo
	}

	client := connectors.NewClient(connectors.GetConfig())
	return strategy.NewExecutor(client, journal, logger.WithField("cmd", cmd)), nil
}

// interruptContext cancels the returned context on SIGINT or SIGTERM.
func interruptContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-stop:
			logger.Warn("Interrupt received, shutting down")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(stop)
	}()
	return ctx, cancel
}

func marketAction(c *cli.Context) error {
	quantity, err := floatArg(c, 2, "quantity")
	if err != nil {
		return err
	}

	executor, err := newExecutor("market")
	if err != nil {
		return err
	}

	ctx, cancel := interruptContext()
	defer cancel()

	_, err = executor.Market(ctx, c.Args().Get(0), c.Args().Get(1), quantity)
	return err
}

func limitAction(c *cli.Context) error {
	quantity, err := floatArg(c, 2, "quantity")
	if err != nil {
		return err
	}
	price, err := floatArg(c, 3, "price")
	if err != nil {
		return err
	}

	executor, err := newExecutor("limit")
	if err != nil {
		return err
	}

	ctx, cancel := interruptContext()
	defer cancel()

	_, err = executor.Limit(ctx, c.Args().Get(0), c.Args().Get(1), quantity, price)
	return err
}

func stopLimitAction(c *cli.Context) error {
	quantity, err := floatArg(c, 2, "quantity")
	if err != nil {
		return err
	}
	stopPrice, err := floatArg(c, 3, "stop price")
	if err != nil {
		return err
	}
	limitPrice, err := floatArg(c, 4, "limit price")
	if err != nil {
		return err
	}

	executor, err := newExecutor("stop-limit")
	if err != nil {
		return err
	}

	ctx, cancel := interruptContext()
	defer cancel()

	_, err = executor.StopLimit(ctx, c.Args().Get(0), c.Args().Get(1), quantity, stopPrice, limitPrice)
	return err
}

func gridAction(c *cli.Context) error {
	lower, err := floatArg(c, 1, "lower price")
	if err != nil {
		return err
	}
	upper, err := floatArg(c, 2, "upper price")
	if err != nil {
		return err
	}
	levels, err := intArg(c, 3, "levels")
	if err != nil {
		return err
	}
	qtyPerLevel, err := floatArg(c, 4, "quantity per level")
	if err != nil {
		return err
	}

	executor, err := newExecutor("grid")
	if err != nil {
		return err
	}

	ctx, cancel := interruptContext()
	defer cancel()

	_, err = executor.Grid(ctx, strategy.GridParams{
		Symbol:      c.Args().Get(0),
		LowerPrice:  lower,
		UpperPrice:  upper,
		GridLevels:  levels,
		QtyPerLevel: qtyPerLevel,
	})
	return err
}

func twapAction(c *cli.Context) error {
	total, err := floatArg(c, 2, "total quantity")
	if err != nil {
		return err
	}
	durationMin, err := intArg(c, 3, "duration minutes")
	if err != nil {
		return err
	}
	chunks, err := intArg(c, 4, "chunks")
	if err != nil {
		return err
	}

	executor, err := newExecutor("twap")
	if err != nil {
		return err
	}

	ctx, cancel := interruptContext()
	defer cancel()

	_, err = executor.TWAP(ctx, strategy.TWAPParams{
		Symbol:        c.Args().Get(0),
		Side:          c.Args().Get(1),
		TotalQuantity: total,
		Duration:      time.Duration(durationMin) * time.Minute,
		Chunks:        chunks,
	})
	return err
}

func bracketAction(c *cli.Context) error {
	quantity, err := floatArg(c, 1, "quantity")
	if err != nil {
		return err
	}
	tpPrice, err := floatArg(c, 2, "take profit price")
	if err != nil {
		return err
	}
	slPrice, err := floatArg(c, 3, "stop loss price")
	if err != nil {
		return err
	}

	repo, err := initJournal()
	if err != nil {
		return err
	}
	var journal bracket.Journal
	if repo != nil {
		journal = repo
	}

	log := logger.WithField("cmd", "bracket")
	cfg := connectors.GetConfig()
	client := connectors.NewClient(cfg)

	ctx, cancel := interruptContext()
	defer cancel()

	pricePrecision, qtyPrecision := validation.SymbolPrecision(ctx, client, c.Args().Get(0), log)

	stream := userstream.NewSession(client, log)
	manager, err := bracket.New(client, stream, journal, cfg.WSBaseURL, bracket.Params{
		Symbol:            c.Args().Get(0),
		Quantity:          quantity,
		TakeProfitPrice:   tpPrice,
		StopLossPrice:     slPrice,
		Side:              c.String("side"),
		PricePrecision:    pricePrecision,
		QuantityPrecision: qtyPrecision,
	}, log)
	if err != nil {
		return err
	}

	server.StartStatusServer(ctx, server.GetConfig().Port, manager)

	return manager.Run(ctx)
}
