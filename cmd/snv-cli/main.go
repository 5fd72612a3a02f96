package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"snvindex"
)

var (
	flagRef     string
	flagMask    string
	flagConfig  string
	flagDB      string
	flagFasta   string
	flagGuid    string
	flagThresh  int
	flagAlgo    string
	flagGuids   string
	flagVerbose bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "snv-cli",
		Short: "Manage and query a sparse SNV distance index",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			snvindex.Verbose = flagVerbose
		},
	}
	root.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "print progress to stderr")
	root.AddCommand(initCmd(), insertCmd(), neighboursCmd(), clusterCmd(), msaCmd())
	return root
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the config for a new store (the badger store itself is created on first open)",
		RunE: func(cmd *cobra.Command, args []string) error {
			refData, err := os.ReadFile(flagRef)
			if err != nil {
				return fmt.Errorf("reading reference: %w", err)
			}
			reference := sanitizeReference(refData)

			var maskPositions []int
			if flagMask != "" {
				maskPositions, err = readMaskFile(flagMask)
				if err != nil {
					return fmt.Errorf("reading mask: %w", err)
				}
			}

			cfg := snvindex.DefaultConfig()
			cfg.Reference = string(reference)
			cfg.MaskPositions = maskPositions
			cfg.Clustering = []snvindex.ClusteringConfig{
				{Name: "SNV12", Threshold: 12, UncertainChar: "N", MixturePolicy: "exclude_mixed_from_growth"},
			}
			if err := snvindex.SaveConfig(flagConfig, cfg); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}
			fmt.Printf("wrote %s (reference length %d, %d masked positions)\n", flagConfig, len(reference), len(maskPositions))
			return nil
		},
	}
	cmd.Flags().StringVar(&flagRef, "ref", "", "path to the reference FASTA file")
	cmd.Flags().StringVar(&flagMask, "mask", "", "path to a file of newline-separated masked positions")
	cmd.Flags().StringVar(&flagConfig, "config", "snv-config.yaml", "path to write the store config")
	cmd.MarkFlagRequired("ref")
	return cmd
}

func insertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insert",
		Short: "Batch-insert a FASTA file of consensus sequences",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, closeFn, err := openEngine(flagDB, flagConfig)
			if err != nil {
				return err
			}
			defer closeFn()

			f, err := os.Open(flagFasta)
			if err != nil {
				return fmt.Errorf("opening fasta: %w", err)
			}
			defer f.Close()

			records, err := parseFasta(f)
			if err != nil {
				return err
			}

			ctx := context.Background()
			inserted := 0
			for _, rec := range records {
				guid := rec.header
				if guid == "" {
					guid = uuid.NewString()
				}
				result, err := engine.Insert(ctx, guid, rec.sequence, nil)
				if err != nil {
					fmt.Fprintf(os.Stderr, "insert %s: %v\n", guid, err)
					continue
				}
				if result.Invalid {
					fmt.Printf("%s: rejected (quality %.4f below threshold)\n", guid, result.Quality)
					continue
				}
				fmt.Printf("%s: quality %.4f, %d edges\n", guid, result.Quality, result.Edges)
				inserted++
			}
			fmt.Printf("inserted %d/%d records\n", inserted, len(records))
			return nil
		},
	}
	cmd.Flags().StringVar(&flagDB, "db", "", "path to the badger store directory")
	cmd.Flags().StringVar(&flagConfig, "config", "snv-config.yaml", "path to the store config")
	cmd.Flags().StringVar(&flagFasta, "fasta", "", "path to the FASTA file of sequences to insert")
	cmd.MarkFlagRequired("db")
	cmd.MarkFlagRequired("fasta")
	return cmd
}

func neighboursCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "neighbours",
		Short: "List the neighbours of a guid within an SNV threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, closeFn, err := openEngine(flagDB, flagConfig)
			if err != nil {
				return err
			}
			defer closeFn()

			records := engine.NeighboursWithin(context.Background(), flagGuid, flagThresh, 0, snvindex.FormatWithDistance)
			for _, r := range records {
				fmt.Printf("%s\t%d\n", r.Guid, r.SNV)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flagDB, "db", "", "path to the badger store directory")
	cmd.Flags().StringVar(&flagConfig, "config", "snv-config.yaml", "path to the store config")
	cmd.Flags().StringVar(&flagGuid, "guid", "", "the guid to find neighbours of")
	cmd.Flags().IntVar(&flagThresh, "threshold", 12, "maximum SNV distance")
	cmd.MarkFlagRequired("db")
	cmd.MarkFlagRequired("guid")
	return cmd
}

func clusterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Print every cluster under a configured algorithm",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, closeFn, err := openEngine(flagDB, flagConfig)
			if err != nil {
				return err
			}
			defer closeFn()

			clusters, err := engine.Clusters(flagAlgo)
			if err != nil {
				return err
			}
			for id, members := range clusters {
				fmt.Printf("cluster %d: %s\n", id, strings.Join(members, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flagDB, "db", "", "path to the badger store directory")
	cmd.Flags().StringVar(&flagConfig, "config", "snv-config.yaml", "path to the store config")
	cmd.Flags().StringVar(&flagAlgo, "algo", "SNV12", "the clustering algorithm name")
	cmd.MarkFlagRequired("db")
	return cmd
}

func msaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "msa",
		Short: "Build a multiple alignment over a set of guids",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, closeFn, err := openEngine(flagDB, flagConfig)
			if err != nil {
				return err
			}
			defer closeFn()

			guids := strings.Split(flagGuids, ",")
			alignment, err := engine.MultipleAlignment(context.Background(), guids, true)
			if err != nil {
				return err
			}
			for _, row := range alignment.Rows {
				mixed := ""
				if row.HasMixture && row.Mixture.Mixed {
					mixed = " (mixed)"
				}
				fmt.Printf("%s\t%s%s\n", row.Guid, row.Sequence, mixed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flagDB, "db", "", "path to the badger store directory")
	cmd.Flags().StringVar(&flagConfig, "config", "snv-config.yaml", "path to the store config")
	cmd.Flags().StringVar(&flagGuids, "guids", "", "comma-separated guids to align")
	cmd.MarkFlagRequired("db")
	cmd.MarkFlagRequired("guids")
	return cmd
}

// openEngine loads cfg and opens a badger-backed Engine rooted at db.
func openEngine(db, configPath string) (*snvindex.Engine, func(), error) {
	cfg, err := snvindex.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	persistence, err := snvindex.OpenBadgerPersistence(snvindex.BadgerOptions{Path: db})
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}
	engine, err := snvindex.NewEngine(cfg, persistence, nil)
	if err != nil {
		persistence.Close()
		return nil, nil, fmt.Errorf("building engine: %w", err)
	}
	return engine, func() { persistence.Close() }, nil
}

type fastaRecord struct {
	header   string
	sequence string
}

// parseFasta reads a minimal FASTA stream: '>' header lines followed by
// one or more sequence lines, concatenated per record.
func parseFasta(f *os.File) ([]fastaRecord, error) {
	var records []fastaRecord
	var cur *fastaRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ">") {
			if cur != nil {
				records = append(records, *cur)
			}
			cur = &fastaRecord{header: strings.TrimSpace(strings.TrimPrefix(line, ">"))}
			continue
		}
		if cur == nil {
			return nil, fmt.Errorf("sequence data before any header")
		}
		cur.sequence += line
	}
	if cur != nil {
		records = append(records, *cur)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func sanitizeReference(data []byte) []byte {
	var out []byte
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ">") {
			continue
		}
		out = append(out, []byte(strings.ToUpper(line))...)
	}
	return out
}

func readMaskFile(path string) ([]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []int
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pos, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("invalid mask position %q: %w", line, err)
		}
		out = append(out, pos)
	}
	return out, nil
}
