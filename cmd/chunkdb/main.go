package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/chunkdb/chunkdb/internal/config"
	"github.com/chunkdb/chunkdb/internal/conn"
	"github.com/chunkdb/chunkdb/internal/engine"
	"github.com/chunkdb/chunkdb/internal/query"
	"github.com/chunkdb/chunkdb/internal/store"
	"github.com/chunkdb/chunkdb/pkg"
)

var rootCmd = &cobra.Command{
	Use:   "chunkdb",
	Short: "Out-of-core chunked tabular data engine",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		pkg.SetLogLevel(pkg.LogLevel(cfg.LogLevel))
		return nil
	},
}

var cfg *config.Config

// query flags shared by query, compute and export
var (
	flag_filter string
	flag_select []string
	flag_join   string
	flag_on     string
)

func addPlanFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flag_filter, "filter", "", "row predicate as json, e.g. '{\"column\":\"id\",\"op\":\"lt\",\"value\":10}'")
	cmd.Flags().StringSliceVar(&flag_select, "select", nil, "columns to project, in order")
	cmd.Flags().StringVar(&flag_join, "join", "", "dataset directory to inner-join against")
	cmd.Flags().StringVar(&flag_on, "on", "", "join key column")
}

func buildPlan(dir string) (query.Plan, error) {
	base, err := store.Open(dir, cfg.CacheSize)
	if err != nil {
		return query.Plan{}, err
	}

	plan := query.NewPlan(base)

	if flag_join != "" {
		right, err := store.Open(flag_join, cfg.CacheSize)
		if err != nil {
			return query.Plan{}, err
		}
		if plan, err = plan.Join(right, flag_on); err != nil {
			return query.Plan{}, err
		}
	}
	if flag_filter != "" {
		var pred query.Predicate
		if err := json.Unmarshal([]byte(flag_filter), &pred); err != nil {
			return query.Plan{}, fmt.Errorf("parsing --filter: %w", err)
		}
		if plan, err = plan.Filter(&pred); err != nil {
			return query.Plan{}, err
		}
	}
	if len(flag_select) > 0 {
		if plan, err = plan.Select(flag_select...); err != nil {
			return query.Plan{}, err
		}
	}
	return plan, nil
}

func importCmd() *cobra.Command {
	var (
		name        string
		chunk_rows  int
		separator   string
		no_header   bool
		types       []string
		sample_rows int
	)
	cmd := &cobra.Command{
		Use:   "import <csv-file> <dataset-dir>",
		Short: "Ingest a delimited file into a new chunked dataset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			d, err := store.Create(args[1], f, store.Options{
				Name:       name,
				ChunkRows:  chunk_rows,
				Separator:  separatorRune(separator),
				Header:     !no_header,
				Types:      types,
				SampleRows: sample_rows,
				CacheSize:  cfg.CacheSize,
			})
			if err != nil {
				return err
			}

			fmt.Printf("imported %s: %d rows in %d chunks\n",
				d.Name(), d.TotalRows(), d.NumChunks())
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "dataset name; defaults to the directory base name")
	cmd.Flags().IntVar(&chunk_rows, "chunk-rows", 0, "max rows per chunk")
	cmd.Flags().StringVar(&separator, "separator", ",", "field separator")
	cmd.Flags().BoolVar(&no_header, "no-header", false, "input has no header row; columns are named V1..Vn")
	cmd.Flags().StringSliceVar(&types, "types", nil, "declared column types (Int, Float, String, Category, Date), bypassing inference")
	cmd.Flags().IntVar(&sample_rows, "sample-rows", 0, "rows sampled for type inference")
	return cmd
}

func describeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <dataset-dir>",
		Short: "Print dataset schema and row statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := store.Open(args[0], cfg.CacheSize)
			if err != nil {
				return err
			}

			desc := d.Describe()
			fmt.Printf("dataset: %s\n", desc.Name)
			fmt.Printf("rows:    %d\n", desc.Rows)
			fmt.Printf("chunks:  %d\n", desc.Chunks)
			if size, err := d.DiskSize(); err == nil {
				fmt.Printf("size:    %s\n", humanize.Bytes(uint64(size)))
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "\nCOLUMN\tTYPE\tLEVELS")
			for _, col := range desc.Columns {
				levels := ""
				if col.Levels > 0 {
					levels = fmt.Sprintf("%d", col.Levels)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", col.Name, col.Type, levels)
			}
			return w.Flush()
		},
	}
}

func renameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <dataset-dir> <column> <new-name>",
		Short: "Rename a column, rewriting the dataset metadata",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := store.Open(args[0], cfg.CacheSize)
			if err != nil {
				return err
			}
			if err := d.Rename(args[1], args[2]); err != nil {
				return err
			}
			fmt.Printf("renamed %s to %s\n", args[1], args[2])
			return nil
		},
	}
}

func queryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <dataset-dir>",
		Short: "Evaluate a query and print the collected rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := buildPlan(args[0])
			if err != nil {
				return err
			}

			e := engine.New(cfg.MemoryBudget, cfg.ChunkRows)
			table, err := e.Collect(cmd.Context(), plan)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, strings.Join(table.Schema.ColumnNames(), "\t"))
			record := make([]string, table.Schema.Len())
			for _, row := range table.Rows {
				for i, v := range row {
					record[i] = table.Schema.ColumnAt(i).Format(v)
				}
				fmt.Fprintln(w, strings.Join(record, "\t"))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Printf("(%d rows)\n", len(table.Rows))
			return nil
		},
	}
	addPlanFlags(cmd)
	return cmd
}

func computeCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "compute <dataset-dir> <dest-dir>",
		Short: "Evaluate a query into a new chunked dataset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := buildPlan(args[0])
			if err != nil {
				return err
			}

			e := engine.New(cfg.MemoryBudget, cfg.ChunkRows)
			d, err := e.Compute(cmd.Context(), plan, args[1], name)
			if err != nil {
				return err
			}

			fmt.Printf("computed %s: %d rows in %d chunks\n",
				d.Name(), d.TotalRows(), d.NumChunks())
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "dataset name; defaults to the directory base name")
	addPlanFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	var (
		out       string
		separator string
		no_header bool
	)
	cmd := &cobra.Command{
		Use:   "export <dataset-dir>",
		Short: "Evaluate a query and stream it out as a delimited file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := buildPlan(args[0])
			if err != nil {
				return err
			}

			w := os.Stdout
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			e := engine.New(cfg.MemoryBudget, cfg.ChunkRows)
			return e.Export(cmd.Context(), plan, w, separatorRune(separator), !no_header)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file; stdout when empty")
	cmd.Flags().StringVar(&separator, "separator", ",", "field separator")
	cmd.Flags().BoolVar(&no_header, "no-header", false, "omit the header row")
	addPlanFlags(cmd)
	return cmd
}

func serveCmd() *cobra.Command {
	var (
		port     int
		data_dir string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the datasets under the data directory over a websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != 0 {
				cfg.Port = port
			}
			if data_dir != "" {
				cfg.DataDir = data_dir
			}

			s, err := conn.NewServer(cfg)
			if err != nil {
				return err
			}
			s.Listen(cfg.Port)
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "port to listen on")
	cmd.Flags().StringVar(&data_dir, "data-dir", "", "root directory of dataset directories")
	return cmd
}

func separatorRune(s string) rune {
	if s == "" {
		return 0
	}
	return []rune(s)[0]
}

func main() {
	rootCmd.AddCommand(importCmd(), describeCmd(), renameCmd(),
		queryCmd(), computeCmd(), exportCmd(), serveCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
