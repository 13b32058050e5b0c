package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cali-upid/internal/config"
	"github.com/cali-upid/internal/coords"
	"github.com/cali-upid/internal/db"
	"github.com/cali-upid/internal/etl"
	"github.com/cali-upid/internal/record"
	"github.com/cali-upid/internal/spatial"
	"github.com/cali-upid/internal/store"
	"github.com/cali-upid/internal/validation"
	"github.com/cali-upid/internal/web"
)

var (
	configFile string
	debugFlag  bool

	// Loaded once in PersistentPreRun
	cfg *config.Config
)

func main() {
	// Flag defaults below read the environment, so .env has to be loaded first
	if err := config.LoadEnv(); err != nil {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	rootCmd := &cobra.Command{
		Use:   "upid-geo",
		Short: "Cali project-unit coordinate normalization and spatial validation",
		Long: `Normalizes the coordinates of Cali project units (unidades de proyecto),
reconciles geometry with lat/lon, assigns barrio/vereda and comuna/corregimiento
by point-in-polygon and reports data-quality issues`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			var err error
			cfg, err = config.Load(configFile)
			if err != nil {
				log.Fatalf("Failed to load configuration: %v", err)
			}
			if debugFlag {
				cfg.Debug = true
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.GetEnv("UPID_CONFIG", ""), "config file (default ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", config.GetEnvBool("UPID_DEBUG", false), "verbose debug output")

	rootCmd.AddCommand(createProcessCmd())
	rootCmd.AddCommand(createReportCmd())
	rootCmd.AddCommand(createCorrectCmd())
	rootCmd.AddCommand(createMatchCmd())
	rootCmd.AddCommand(createServeCmd())
	rootCmd.AddCommand(createDBCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func fields() record.Fields {
	return record.Fields{Lat: cfg.Pipeline.LatField, Lon: cfg.Pipeline.LonField}
}

// buildPipeline loads every reference set and wires the pipeline
func buildPipeline(ctx context.Context, workers int) (*etl.Pipeline, error) {
	refs, err := etl.LoadReferences(ctx, cfg.Debug, cfg.References, cfg.Envelope)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = cfg.Pipeline.Workers
	}
	return etl.NewPipeline(cfg.Envelope, refs, etl.Options{
		Workers:        workers,
		Precision:      cfg.Pipeline.Precision,
		ProgressEvery:  cfg.Pipeline.ProgressEvery,
		IDField:        cfg.Pipeline.IDField,
		SourceField:    cfg.Pipeline.SourceField,
		CategoryField:  cfg.Pipeline.CategoryField,
		OptionalFields: cfg.Pipeline.OptionalFields,
	}), nil
}

func connect(ctx context.Context) *db.Connection {
	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	return conn
}

// runBatch loads, processes and reports one input file
func runBatch(ctx context.Context, input string, workers int, timeout time.Duration) (*etl.Output, time.Time) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	pipeline, err := buildPipeline(ctx, workers)
	if err != nil {
		log.Fatalf("Failed to load reference sets: %v", err)
	}

	batch, err := etl.LoadFile(input, fields())
	if err != nil {
		log.Fatalf("Failed to load input: %v", err)
	}
	fmt.Printf("Loaded %d records (%s) from %s\n", len(batch.Records), batch.Format, input)

	started := time.Now()
	out, err := pipeline.Run(ctx, cfg.Debug, batch)
	if err != nil {
		log.Fatalf("Processing failed: %v", err)
	}
	fmt.Printf("Processed %d records in %v\n", len(out.Results), time.Since(started).Round(time.Millisecond))
	return out, started
}

// createProcessCmd creates the batch processing command
func createProcessCmd() *cobra.Command {
	var (
		outPath    string
		reportPath string
		save       bool
		workers    int
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "process [input]",
		Short: "Correct, reconcile and spatially match a batch of project units",
		Long: `Reads a JSON array or GeoJSON FeatureCollection, writes the corrected records
in the same shape and prints the quality report`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			out, started := runBatch(ctx, args[0], workers, timeout)

			if outPath != "" {
				if err := out.WriteFile(outPath); err != nil {
					log.Fatalf("%v", err)
				}
				fmt.Printf("Wrote %s\n", outPath)
			}
			if reportPath != "" {
				if err := out.WriteReport(reportPath); err != nil {
					log.Fatalf("%v", err)
				}
				fmt.Printf("Wrote report %s\n", reportPath)
			}

			if save {
				conn := connect(ctx)
				defer conn.Close()

				st := store.New(conn.DB, cfg.Database.TablePrefix)
				if err := st.EnsureSchema(ctx); err != nil {
					log.Fatalf("%v", err)
				}
				runID, n, err := st.SaveBatch(ctx, cfg.Debug, args[0], started, out)
				if err != nil {
					log.Fatalf("%v", err)
				}
				fmt.Printf("Saved run %d with %d records\n", runID, n)
			}

			fmt.Println()
			fmt.Print(out.Report.Summary())
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write corrected records to this file")
	cmd.Flags().StringVar(&reportPath, "report-json", "", "write the quality report as JSON")
	cmd.Flags().BoolVar(&save, "save", false, "store the run in Postgres")
	cmd.Flags().IntVarP(&workers, "workers", "w", config.GetEnvInt("UPID_WORKERS", 0), "worker goroutines (default from config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "abort the batch after this long")
	return cmd
}

// createReportCmd prints a report for a file or the latest stored run
func createReportCmd() *cobra.Command {
	var (
		latest  bool
		asJSON  bool
		workers int
	)

	cmd := &cobra.Command{
		Use:   "report [input]",
		Short: "Print the quality report for an input file, or for the latest stored run",
		Args: func(cmd *cobra.Command, args []string) error {
			if latest {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()

			var rep *validation.Report
			if latest {
				conn := connect(ctx)
				defer conn.Close()
				runID, r, err := store.New(conn.DB, cfg.Database.TablePrefix).LatestReport(ctx)
				if err != nil {
					log.Fatalf("Failed to load latest report: %v", err)
				}
				fmt.Printf("Run %d generated %s\n", runID, r.GeneratedAt.Format(time.RFC3339))
				rep = r
			} else {
				out, _ := runBatch(ctx, args[0], workers, 0)
				rep = out.Report
			}

			if asJSON {
				data, err := json.MarshalIndent(rep, "", "  ")
				if err != nil {
					log.Fatalf("Failed to encode report: %v", err)
				}
				fmt.Println(string(data))
				return
			}
			fmt.Print(rep.Summary())
		},
	}

	cmd.Flags().BoolVar(&latest, "latest", false, "read the latest run from Postgres")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of tables")
	cmd.Flags().IntVarP(&workers, "workers", "w", config.GetEnvInt("UPID_WORKERS", 0), "worker goroutines (default from config)")
	return cmd
}

// createCorrectCmd corrects one coordinate pair
func createCorrectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "correct [lat] [lon]",
		Short: "Correct a single coordinate pair",
		Example: `  upid-geo correct 3,4516 76.5321
  upid-geo correct 3.4516 -6.5321`,
		Args: cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			pipeline := etl.NewPipeline(cfg.Envelope, nil, etl.Options{Workers: 1})
			res := pipeline.Corrector().Correct(args[0], args[1])

			fmt.Printf("lat: %-22s (%s)\n", formatOptional(res.Lat), res.LatRepair)
			fmt.Printf("lon: %-22s (%s)\n", formatOptional(res.Lon), res.LonRepair)
			if !pipeline.Corrector().Valid(res.Lat, res.Lon) {
				fmt.Println("REVISAR: coordinate could not be recovered")
				os.Exit(2)
			}
		},
	}
}

// createMatchCmd matches one point against the configured reference sets
func createMatchCmd() *cobra.Command {
	var setName string

	cmd := &cobra.Command{
		Use:   "match [lat] [lon]",
		Short: "Locate a single point in the reference sets",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			pipeline, err := buildPipeline(cmd.Context(), 1)
			if err != nil {
				log.Fatalf("Failed to load reference sets: %v", err)
			}

			c := pipeline.Corrector()
			res := c.Correct(args[0], args[1])
			var pt *coords.Coordinate
			if p, ok := res.Coordinate(); ok {
				pt = &p
				fmt.Printf("Point: %s\n", p)
			} else {
				fmt.Println("Point: (unrecoverable)")
			}

			found := false
			for _, ref := range pipeline.References() {
				if setName != "" && ref.Name != setName {
					continue
				}
				found = true
				m := spatial.Match(pt, ref.Set(), c.Envelope)
				fmt.Printf("%-12s %-28s %s\n", ref.Name, ref.OutputField, m.Value())
			}
			if !found {
				log.Fatalf("Unknown reference set %q", setName)
			}
		},
	}

	cmd.Flags().StringVar(&setName, "set", "", "only match against this reference set")
	return cmd
}

// createServeCmd starts the HTTP API
func createServeCmd() *cobra.Command {
	var (
		port   int
		withDB bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			if port > 0 {
				cfg.Server.Port = port
			}

			pipeline, err := buildPipeline(ctx, 0)
			if err != nil {
				log.Fatalf("Failed to load reference sets: %v", err)
			}

			var sqlDB *sql.DB
			if withDB {
				conn := connect(ctx)
				if err := store.New(conn.DB, cfg.Database.TablePrefix).EnsureSchema(ctx); err != nil {
					log.Fatalf("%v", err)
				}
				sqlDB = conn.DB
			}

			server := web.NewServer(cfg, pipeline, sqlDB)
			if err := server.Start(ctx); err != nil {
				log.Fatalf("%v", err)
			}
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", config.GetEnvInt("UPID_PORT", 0), "listen port (default from config)")
	cmd.Flags().BoolVar(&withDB, "db", false, "persist runs and serve stored stats from Postgres")
	return cmd
}

// createDBCmd groups database maintenance commands
func createDBCmd() *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database maintenance",
	}

	dbCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the run and record tables",
		Run: func(cmd *cobra.Command, args []string) {
			conn := connect(cmd.Context())
			defer conn.Close()
			if err := store.New(conn.DB, cfg.Database.TablePrefix).EnsureSchema(cmd.Context()); err != nil {
				log.Fatalf("%v", err)
			}
			fmt.Println("Schema ready")
		},
	})

	dbCmd.AddCommand(&cobra.Command{
		Use:   "ping",
		Short: "Test database connectivity",
		Run: func(cmd *cobra.Command, args []string) {
			conn := connect(cmd.Context())
			defer conn.Close()
			fmt.Println("Database connection successful!")

			id, rep, err := store.New(conn.DB, cfg.Database.TablePrefix).LatestReport(cmd.Context())
			if err != nil {
				log.Printf("No stored runs: %v", err)
				return
			}
			fmt.Printf("Latest run %d: %d records, %d with issues\n", id, rep.Total, rep.WithIssues)
		},
	})

	return dbCmd
}

func formatOptional(v *float64) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%.10f", *v)
}
