// Command esplora is a command-line client for Esplora-style block
// explorer APIs. Each subcommand maps onto exactly one client operation.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/blocknetic/esplora/internal/esplora"
	"github.com/blocknetic/esplora/internal/metrics"
)

var opts struct {
	Network string `long:"network" short:"n" env:"ESPLORA_URL" default:"https://blockstream.info/api" description:"Esplora API base URL"`
	Chain   string `long:"chain" env:"ESPLORA_CHAIN" default:"mainnet" choice:"mainnet" choice:"testnet" choice:"regtest" choice:"signet" description:"chain used when decoding addresses"`
	RPS     int    `long:"rps" env:"ESPLORA_RPS" description:"max requests per second (0 = unlimited)"`
	Verbose bool   `long:"verbose" short:"v" description:"log requests"`
}

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()

	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	registerCommands(parser)

	if _, err := parser.Parse(); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			fmt.Println(ferr.Message)
			return
		}
		logger.Fatal("command failed", zap.Error(err))
	}
}

// run wires up the cancellation context and the client and hands both to
// the active subcommand.
func run(fn func(ctx context.Context, client *esplora.Client) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clientOpts := []esplora.Option{
		esplora.WithMetrics(metrics.NewEsploraClient(opts.Network)),
	}
	if opts.Verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		clientOpts = append(clientOpts, esplora.WithLogger(logger))
	}
	if opts.RPS > 0 {
		clientOpts = append(clientOpts, esplora.WithRateLimit(opts.RPS))
	}

	return fn(ctx, esplora.New(opts.Network, clientOpts...))
}

func chainParams() *chaincfg.Params {
	switch opts.Chain {
	case "testnet":
		return &chaincfg.TestNet3Params
	case "regtest":
		return &chaincfg.RegressionNetParams
	case "signet":
		return &chaincfg.SigNetParams
	default:
		return &chaincfg.MainNetParams
	}
}
