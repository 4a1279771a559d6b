package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/yuriy-kovalchuk/dnsdeck/internal/aggregator"
	"github.com/yuriy-kovalchuk/dnsdeck/internal/config"
	"github.com/yuriy-kovalchuk/dnsdeck/internal/dns"
	_ "github.com/yuriy-kovalchuk/dnsdeck/internal/dns/providers"
	"github.com/yuriy-kovalchuk/dnsdeck/internal/transport"
)

var Version = "dev"

func main() {
	opts := zap.Options{
		Development:     true,
		StacktraceLevel: zapcore.FatalLevel,
	}
	opts.BindFlags(flag.CommandLine)
	configPath := flag.String("config", "", "path to the configuration file (default $"+config.PathEnv+" or "+config.DefaultPath+")")
	flag.Usage = usage
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts), zap.WriteTo(os.Stderr)))

	if err := run(*configPath, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `Usage: dnsdeck [flags] <command> [args]

Commands:
  providers                         list registered provider types
  zones                             list zones of every configured provider
  records <zone>                    list the records of a zone
  create <zone> [flags]             create a record
  update <zone> <record> [flags]    update a record
  delete <zone> <record>...         delete records

<zone> is a zone name, or a hostname inside it, or provider|zone-id.
<record> is a record id, or a record name when it is unique in the zone.

Flags:
`)
	flag.PrintDefaults()
}

func run(configPath string, args []string) error {
	log := ctrl.Log.WithName("setup")

	if len(args) == 0 {
		usage()
		return errors.New("no command given")
	}
	if args[0] == "providers" {
		for _, name := range dns.Registered() {
			fmt.Println(name)
		}
		return nil
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("unable to load .env: %w", err)
	}

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadConfigFromPath(configPath)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		return fmt.Errorf("unable to load config: %w", err)
	}
	log.V(1).Info("loaded config", "providers", len(cfg.Providers), "version", Version)

	agg, err := newAggregator(cfg)
	if err != nil {
		return err
	}

	ctx := ctrl.SetupSignalHandler()
	return dispatch(ctx, agg, args[0], args[1:])
}

func newAggregator(cfg *config.Config) (*aggregator.Aggregator, error) {
	client := transport.NewClient(cfg.Transport, ctrl.Log.WithName("transport"))

	providers := make([]dns.Provider, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		p, err := dns.NewProvider(pc.Provider, dns.Deps{
			Log:        ctrl.Log.WithName("dns-" + pc.Provider),
			HTTPClient: client,
		}, pc.Settings)
		if err != nil {
			return nil, fmt.Errorf("unable to create DNS provider %q: %w", pc.Provider, err)
		}
		providers = append(providers, p)
	}
	return aggregator.New(ctrl.Log.WithName("aggregator"), providers...)
}

func dispatch(ctx context.Context, agg *aggregator.Aggregator, cmd string, args []string) error {
	switch cmd {
	case "zones":
		return zonesCmd(ctx, agg, os.Stdout)
	case "records":
		return recordsCmd(ctx, agg, os.Stdout, args)
	case "create":
		return createCmd(ctx, agg, os.Stdout, args)
	case "update":
		return updateCmd(ctx, agg, os.Stdout, args)
	case "delete":
		return deleteCmd(ctx, agg, os.Stdout, args)
	}
	return fmt.Errorf("unknown command %q", cmd)
}
