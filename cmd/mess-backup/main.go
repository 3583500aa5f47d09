// Command mess-backup exports, imports or clears the persisted ledger.
//
//	mess-backup export [-o file]
//	mess-backup import -i file
//	mess-backup clear -yes
//
// When AMQP_URL is set, imports and clears are broadcast so running
// servers adopt the new ledger instead of overwriting it on their next
// save.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"mess/internal/amqp"
	"mess/internal/cli"
	"mess/internal/log"
	"mess/internal/services"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: mess-backup export [-o file] | import -i file | clear -yes")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, logger := cli.LoadAndValidateConfig(log.ComponentBackup)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	res, store, err := cli.InitBackend(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer res.Close()

	var opts []services.Option
	if cfg.AMQPURL != "" && os.Args[1] != "export" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, "")
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, change will not be broadcast", "error", err)
		} else {
			defer client.Close()
			opts = append(opts, services.WithPublisher(client))
		}
	}

	svc, err := cli.NewService(cfg, store, res.Persister, opts...)
	if err != nil {
		logger.Error("Failed to build ledger service", "error", err)
		os.Exit(1)
	}

	if err := run(ctx, svc, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		logger.Error("Backup command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, svc *services.LedgerService, cmd string, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	switch cmd {
	case "export":
		out := fs.String("o", "", "write the document to this file instead of stdout")
		if err := fs.Parse(args); err != nil {
			return err
		}
		data, err := svc.Export()
		if err != nil {
			return err
		}
		if *out == "" {
			_, err = stdout.Write(data)
			return err
		}
		if err := os.WriteFile(*out, data, 0o600); err != nil {
			return fmt.Errorf("write %s: %w", *out, err)
		}
		fmt.Fprintf(stdout, "exported ledger to %s\n", *out)
		return nil

	case "import":
		in := fs.String("i", "", "document to import")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *in == "" {
			return errors.New("import needs -i file")
		}
		data, err := os.ReadFile(*in)
		if err != nil {
			return fmt.Errorf("read %s: %w", *in, err)
		}
		if err := svc.Import(ctx, data); err != nil {
			return err
		}
		snap := svc.Snapshot()
		fmt.Fprintf(stdout, "imported %d members, %d meal records\n", len(snap.Members), len(snap.Meals))
		return nil

	case "clear":
		yes := fs.Bool("yes", false, "confirm removing every record")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if !*yes {
			return errors.New("clear removes every record; pass -yes to confirm")
		}
		if err := svc.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "ledger cleared")
		return nil

	default:
		usage()
		return flag.ErrHelp
	}
}
