package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	waifuwarservice "github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/application"
	"github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/infrastructure/charts"
	"github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/infrastructure/importer"
	waifuwardb "github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/infrastructure/repositories"
	"github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/infrastructure/sessions"
	"github.com/Black-And-White-Club/waifu-bot/config"
	"github.com/Black-And-White-Club/waifu-bot/pkg/observability"
	waifuwarmetrics "github.com/Black-And-White-Club/waifu-bot/pkg/observability/metrics/waifuwar"
	waifuwartypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/waifuwar"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/urfave/cli/v2"
)

func main() {
	var (
		db      *bun.DB
		service *waifuwarservice.WaifuWarService
		obs     *observability.Observability
	)

	bracketFlag := &cli.Int64Flag{Name: "bracket", Aliases: []string{"b"}, Usage: "bracket ID", Required: true}
	outFlag := &cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file", Required: true}

	cliApp := &cli.App{
		Name:  "waifuctl",
		Usage: "operate the waifu war catalog and brackets offline",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "config.yaml", Usage: "Path to the configuration file"},
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			obs = observability.Init(observability.Config{
				ServiceName: "waifuctl",
				Environment: cfg.Observability.Environment,
				LogLevel:    cfg.Observability.LogLevel,
				Output:      os.Stderr,
			})
			pgdb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.DSN)))
			db = bun.NewDB(pgdb, pgdialect.New())
			service = waifuwarservice.NewWaifuWarService(
				waifuwardb.NewRepository(db),
				sessions.NewMemoryStore(),
				obs.Logger,
				waifuwarmetrics.NewNoop(),
				obs.Tracer,
				db,
			)
			return nil
		},
		After: func(*cli.Context) error {
			if db != nil {
				return db.Close()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "add catalog entrants and aliases from a .csv or .xlsx sheet",
				ArgsUsage: "<file>",
				Action: func(c *cli.Context) error {
					path := c.Args().First()
					if path == "" {
						return cli.Exit("import needs a file", 2)
					}
					parser, err := importer.NewFactory().GetParser(path)
					if err != nil {
						return err
					}
					data, err := os.ReadFile(path)
					if err != nil {
						return fmt.Errorf("failed to read %s: %w", path, err)
					}
					rows, err := parser.Parse(data)
					if err != nil {
						return err
					}
					report, err := importer.NewImporter(service, obs.Logger).Import(c.Context, rows)
					if report != nil {
						printReport(report)
					}
					return err
				},
			},
			{
				Name:  "export",
				Usage: "write a bracket's roster, and its divisions once voting started, to xlsx",
				Flags: []cli.Flag{bracketFlag, outFlag},
				Action: func(c *cli.Context) error {
					roster, err := service.ListRoster(c.Context, c.Int64("bracket"))
					if err != nil {
						return err
					}
					var divisions []waifuwartypes.Division
					if roster.Bracket.Status != waifuwartypes.StatusOpen {
						if divisions, err = service.ListDivisions(c.Context, roster.Bracket.ID); err != nil {
							return err
						}
					}
					data, err := importer.Export(roster, divisions)
					if err != nil {
						return err
					}
					return writeFile(c.String("out"), data)
				},
			},
			{
				Name:  "chart",
				Usage: "render a bracket's division tallies as png",
				Flags: []cli.Flag{bracketFlag, outFlag},
				Action: func(c *cli.Context) error {
					bracket, err := service.GetBracket(c.Context, c.Int64("bracket"))
					if err != nil {
						return err
					}
					divisions, err := service.ListDivisions(c.Context, bracket.ID)
					if err != nil {
						return err
					}
					data, err := charts.RenderTally(bracket.Name, divisions, charts.DefaultPalette)
					if err != nil {
						return err
					}
					return writeFile(c.String("out"), data)
				},
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Printf("Wrote %s (%d bytes)\n", path, len(data))
	return nil
}

func printReport(r *importer.Report) {
	fmt.Printf("Added: %d\n", len(r.Added))
	fmt.Printf("Skipped (already in catalog): %d\n", len(r.Skipped))
	fmt.Printf("Aliases added: %d\n", r.AliasesAdded)
	for _, c := range r.AliasConflicts {
		fmt.Printf("  alias %q already points to %q\n", c.Alias, c.Canonical)
	}
	for _, f := range r.Failed {
		fmt.Printf("  line %d %q: %v\n", f.Line, f.Name, f.Err)
	}
}
