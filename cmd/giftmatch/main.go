// Command giftmatch runs a gift card drive: it ingests donor and
// recipient spreadsheets, matches pledges to need, optimizes the
// assignment, and exports the audit and mail-merge views.
package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"giftmatch/internal/blob"
	"giftmatch/internal/core"
	blobfs "giftmatch/internal/infra/blob/fs"
	blobs3 "giftmatch/internal/infra/blob/s3"
	"giftmatch/internal/infra/persistence/csvdir"
	"giftmatch/internal/infra/persistence/postgres"
	"giftmatch/internal/infra/persistence/sqlite"
	"giftmatch/internal/logging"
	"giftmatch/internal/mailmerge"
	"giftmatch/internal/reports"
	"giftmatch/internal/rows"
	"giftmatch/pkg/domain"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "giftmatch",
		Usage: "match gift card donors to recipients",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "memory-dir",
				Value: "data",
				Usage: "directory holding drive state and reports",
			},
			&cli.StringFlag{
				Name:  "store",
				Value: "csv",
				Usage: "snapshot store backend: csv, sqlite or postgres",
			},
			&cli.StringFlag{
				Name:  "dsn",
				Usage: "database path (sqlite) or connection string (postgres)",
			},
			&cli.StringFlag{
				Name:  "blob",
				Value: "fs",
				Usage: "report artifact store: fs or s3",
			},
			&cli.Int64Flag{
				Name:  "seed",
				Usage: "optimizer random seed, 0 seeds from the clock",
			},
			&cli.BoolFlag{
				Name:  "mop-up",
				Usage: "keep partial allocations for donors that cannot be fully satisfied",
			},
			&cli.BoolFlag{
				Name:  "no-top-up",
				Usage: "skip the association top-up pass",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			updateDonorsCommand(),
			updateRecipientsCommand(),
			matchCommand(),
			reportCommand(),
			renderMailCommand(),
		},
	}
}

func newLogger(c *cli.Context) logging.Logger {
	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	return logging.NewText(os.Stderr, level)
}

func newService(c *cli.Context, log logging.Logger) (*core.Service, func(), error) {
	closer := func() {}
	var opts []core.ServiceOption
	opts = append(opts, core.WithServiceLogger(log))
	opts = append(opts, core.WithMetrics(core.NewExpvarMetricsRecorder("giftmatch")))
	if seed := c.Int64("seed"); seed != 0 {
		opts = append(opts, core.WithRand(rand.New(rand.NewSource(seed))))
	}
	matchCfg := core.DefaultMatchConfig()
	matchCfg.MopUp = c.Bool("mop-up")
	matchCfg.TopUp = !c.Bool("no-top-up")
	opts = append(opts, core.WithMatchConfig(matchCfg))

	switch strings.ToLower(c.String("store")) {
	case "csv":
		store, err := csvdir.New(c.String("memory-dir"), log)
		if err != nil {
			return nil, nil, err
		}
		return core.NewService(store, opts...), closer, nil
	case "sqlite":
		dsn := c.String("dsn")
		if dsn == "" {
			dsn = filepath.Join(c.String("memory-dir"), "giftmatch.db")
		}
		store, err := sqlite.Open(c.Context, dsn)
		if err != nil {
			return nil, nil, err
		}
		return core.NewService(store, opts...), func() { store.Close() }, nil
	case "postgres":
		store, err := postgres.Open(c.Context, c.String("dsn"))
		if err != nil {
			return nil, nil, err
		}
		return core.NewService(store, opts...), func() { store.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", c.String("store"))
}

func newBlobStore(c *cli.Context) (blob.Store, error) {
	switch strings.ToLower(c.String("blob")) {
	case "fs":
		return blobfs.New(c.String("memory-dir"))
	case "s3":
		return blobs3.New(c.Context, blobs3.ConfigFromEnv())
	}
	return nil, fmt.Errorf("unknown blob backend %q", c.String("blob"))
}

func updateDonorsCommand() *cli.Command {
	return &cli.Command{
		Name:      "update-donors",
		Usage:     "admit a donor spreadsheet export",
		ArgsUsage: "<donors.csv>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("expected one donors csv path", 2)
			}
			log := newLogger(c)
			svc, closer, err := newService(c, log)
			if err != nil {
				return err
			}
			defer closer()
			if err := svc.Load(c.Context); err != nil {
				return err
			}
			batch, err := rows.ReadFile(c.Args().First())
			if err != nil {
				return err
			}
			res, err := svc.UpdateDonors(c.Context, batch)
			if err != nil {
				return err
			}
			fmt.Print(admitReport(res, "donors", len(svc.Ledger().Donors())))
			if !res.Ok() {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func updateRecipientsCommand() *cli.Command {
	return &cli.Command{
		Name:      "update-recipients",
		Usage:     "admit a recipient spreadsheet export",
		ArgsUsage: "<recipients.csv>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("expected one recipients csv path", 2)
			}
			log := newLogger(c)
			svc, closer, err := newService(c, log)
			if err != nil {
				return err
			}
			defer closer()
			if err := svc.Load(c.Context); err != nil {
				return err
			}
			batch, err := rows.ReadFile(c.Args().First())
			if err != nil {
				return err
			}
			res, err := svc.UpdateRecipients(c.Context, batch)
			if err != nil {
				return err
			}
			fmt.Print(admitReport(res, "recipients", len(svc.Ledger().Recipients())))
			if !res.Ok() {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func matchCommand() *cli.Command {
	return &cli.Command{
		Name:  "match",
		Usage: "run the matcher and optimizer, validate, persist, and export views",
		Action: func(c *cli.Context) error {
			log := newLogger(c)
			svc, closer, err := newService(c, log)
			if err != nil {
				return err
			}
			defer closer()
			if err := svc.Load(c.Context); err != nil {
				return err
			}
			report, err := svc.Match(c.Context)
			if err != nil {
				return err
			}
			fmt.Printf("Matched %d new donations; optimizer accepted %d swaps over %d trials, score %d -> %d.\n",
				report.Match.NewDonations, report.Optimize.Swaps, report.Optimize.Trials,
				report.Optimize.InitialScore, report.Optimize.FinalScore)
			return exportViews(c, svc, log)
		},
	}
}

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "re-export the audit and mail-merge views",
		Action: func(c *cli.Context) error {
			log := newLogger(c)
			svc, closer, err := newService(c, log)
			if err != nil {
				return err
			}
			defer closer()
			if err := svc.Load(c.Context); err != nil {
				return err
			}
			return exportViews(c, svc, log)
		},
	}
}

func renderMailCommand() *cli.Command {
	return &cli.Command{
		Name:  "render-mail",
		Usage: "render donor notification messages from the current session",
		Action: func(c *cli.Context) error {
			log := newLogger(c)
			svc, closer, err := newService(c, log)
			if err != nil {
				return err
			}
			defer closer()
			if err := svc.Load(c.Context); err != nil {
				return err
			}
			store, err := newBlobStore(c)
			if err != nil {
				return err
			}
			exporter := reports.NewExporter(svc.Ledger(), store, log)
			renderer := mailmerge.NewRenderer()
			prefix := "mail/" + time.Now().UTC().Format("20060102-150405")
			for _, row := range recordsToRows(exporter.DonorView()) {
				msg, err := renderer.Render(row)
				if err != nil {
					return err
				}
				key := prefix + "/donor-" + row["Donor #"]
				if _, err := store.Put(c.Context, key+".html",
					strings.NewReader(msg.HTML), blob.PutOptions{ContentType: "text/html"}); err != nil {
					return err
				}
				if _, err := store.Put(c.Context, key+".txt",
					strings.NewReader(msg.Text), blob.PutOptions{ContentType: "text/plain"}); err != nil {
					return err
				}
				log.Info("rendered donor mail", "donor", row["Donor #"], "to", msg.To)
			}
			return nil
		},
	}
}

func exportViews(c *cli.Context, svc *core.Service, log logging.Logger) error {
	store, err := newBlobStore(c)
	if err != nil {
		return err
	}
	infos, err := reports.NewExporter(svc.Ledger(), store, log).ExportAll(c.Context)
	if err != nil {
		return err
	}
	for _, info := range infos {
		fmt.Printf("Wrote %s (%d bytes)\n", info.Key, info.Size)
	}
	return nil
}

func recordsToRows(records [][]string) []map[string]string {
	if len(records) < 2 {
		return nil
	}
	header := records[0]
	out := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(record) {
				row[name] = record[i]
			} else {
				row[name] = ""
			}
		}
		out = append(out, row)
	}
	return out
}

// admitReport renders a batch result the way operators read it: the
// outcome line first, then ordered errors and warnings.
func admitReport(res domain.AdmitResult, kind string, total int) string {
	var b strings.Builder
	if !res.Ok() {
		fmt.Fprintf(&b, "Errors detected--did not update %s!\n", kind)
		if len(res.Errors) > 0 {
			b.WriteString("---Errors---\n")
			for _, e := range res.Errors {
				b.WriteString(e)
				b.WriteString("\n")
			}
		}
	} else {
		fmt.Fprintf(&b, "Added %d %s, for a total of %d.\n", res.NewCount, kind, total)
	}
	if len(res.Warnings) > 0 {
		b.WriteString("---Warnings---\n")
		for _, w := range res.Warnings {
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}
