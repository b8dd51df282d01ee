package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"gocause/adapters/ingest"
	"gocause/domain/table"
	"gocause/internal"
	"gocause/internal/config"
	"gocause/internal/modelstore"
	"gocause/internal/service"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gocause",
		Short: "Causal engine CLI for fitting models and running causal queries",
	}

	rootCmd.AddCommand(
		newBuildCmd(),
		newInterveneCmd(),
		newCounterfactualCmd(),
		newArrowStrengthCmd(),
		newIntrinsicCmd(),
		newAnomalyCmd(),
		newFalsifyCmd(),
		newEvaluateCmd(),
		newModelsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newBuildCmd() *cobra.Command {
	var modelType string
	var edges string
	var dataPath string
	var seed int64

	cmd := &cobra.Command{
		Use:   "build [model-name]",
		Short: "Fit a causal model from edges and a data file",
		Long: `Fit a structural causal model and store it under the given name.

Example: gocause build sales --edges "ads->visits,visits->sales" --data sales.csv --type invertible`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			graphEdges, err := parseEdges(edges)
			if err != nil {
				return err
			}
			observation, err := loadColumns(dataPath)
			if err != nil {
				return err
			}
			return printJSON(svc.Build(cmd.Context(), service.BuildRequest{
				ModelName:       args[0],
				CausalModelType: modelType,
				GraphEdges:      graphEdges,
				Observation:     observation,
				Seed:            &seed,
			}))
		},
	}

	cmd.Flags().StringVar(&modelType, "type", "invertible", "Model kind: invertible or non-invertible")
	cmd.Flags().StringVar(&edges, "edges", "", "Comma-separated directed edges, e.g. \"a->b,b->c\"")
	cmd.Flags().StringVar(&dataPath, "data", "", "Observation file (.csv or .xlsx)")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for deterministic fitting")
	cmd.MarkFlagRequired("edges")
	cmd.MarkFlagRequired("data")

	return cmd
}

func newInterveneCmd() *cobra.Command {
	var kind string
	var sets []string
	var samples int
	var seed int64

	cmd := &cobra.Command{
		Use:   "intervene [model-name]",
		Short: "Draw samples from a model under interventions",
		Long: `Draw interventional samples from a stored model.

Example: gocause intervene sales --set ads=100 --samples 500 --kind atomic`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			interventions, err := parseInterventions(sets)
			if err != nil {
				return err
			}
			return printJSON(svc.Intervene(cmd.Context(), service.InterventionRequest{
				ModelName:        args[0],
				InterventionType: kind,
				Interventions:    interventions,
				NumSamplesToDraw: samples,
				Seed:             &seed,
			}))
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "atomic", "Intervention kind: atomic or shift")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Intervention assignment, e.g. --set x=5 (repeatable)")
	cmd.Flags().IntVar(&samples, "samples", 100, "Number of samples to draw")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed")
	cmd.MarkFlagRequired("set")

	return cmd
}

func newCounterfactualCmd() *cobra.Command {
	var sets []string
	var dataPath string
	var seed int64

	cmd := &cobra.Command{
		Use:   "counterfactual [model-name]",
		Short: "Answer a counterfactual for observed rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			interventions, err := parseInterventions(sets)
			if err != nil {
				return err
			}
			observation, err := loadColumns(dataPath)
			if err != nil {
				return err
			}
			return printJSON(svc.CounterfactualQuery(cmd.Context(), service.CounterfactualRequest{
				ModelName:     args[0],
				Interventions: interventions,
				Observation:   observation,
				Seed:          &seed,
			}))
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "Counterfactual assignment, e.g. --set x=5 (repeatable)")
	cmd.Flags().StringVar(&dataPath, "data", "", "Observed rows file (.csv or .xlsx)")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed")
	cmd.MarkFlagRequired("set")
	cmd.MarkFlagRequired("data")

	return cmd
}

func newArrowStrengthCmd() *cobra.Command {
	var target string
	var resamples int
	var seed int64

	cmd := &cobra.Command{
		Use:   "arrow-strength [model-name]",
		Short: "Estimate direct arrow strengths into a target node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			return printJSON(svc.ArrowStrength(cmd.Context(), service.ArrowStrengthRequest{
				ModelName:             args[0],
				TargetNode:            target,
				NumBootstrapResamples: resamples,
				Seed:                  &seed,
			}))
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "Target node")
	cmd.Flags().IntVar(&resamples, "resamples", 0, "Bootstrap repetitions (0 uses the configured default)")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed")
	cmd.MarkFlagRequired("target")

	return cmd
}

func newIntrinsicCmd() *cobra.Command {
	var target string
	var resamples int
	var seed int64

	cmd := &cobra.Command{
		Use:   "intrinsic-influence [model-name]",
		Short: "Decompose a target's variance over upstream noise terms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			return printJSON(svc.IntrinsicInfluence(cmd.Context(), service.IntrinsicInfluenceRequest{
				ModelName:             args[0],
				TargetNode:            target,
				NumBootstrapResamples: resamples,
				Seed:                  &seed,
			}))
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "Target node")
	cmd.Flags().IntVar(&resamples, "resamples", 0, "Bootstrap repetitions (0 uses the configured default)")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed")
	cmd.MarkFlagRequired("target")

	return cmd
}

func newAnomalyCmd() *cobra.Command {
	var node string
	var dataPath string
	var resamples int
	var seed int64

	cmd := &cobra.Command{
		Use:   "attribute-anomaly [model-name]",
		Short: "Attribute an anomalous observation to upstream nodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			anomaly, err := loadColumns(dataPath)
			if err != nil {
				return err
			}
			return printJSON(svc.AttributeAnomalies(cmd.Context(), service.AnomalyAttributionRequest{
				ModelName:             args[0],
				AnomalousNode:         node,
				AnomalyData:           anomaly,
				NumBootstrapResamples: resamples,
				Seed:                  &seed,
			}))
		},
	}

	cmd.Flags().StringVar(&node, "node", "", "Anomalous node")
	cmd.Flags().StringVar(&dataPath, "data", "", "Anomalous rows file (.csv or .xlsx)")
	cmd.Flags().IntVar(&resamples, "resamples", 0, "Bootstrap repetitions (0 uses the configured default)")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed")
	cmd.MarkFlagRequired("node")
	cmd.MarkFlagRequired("data")

	return cmd
}

func newFalsifyCmd() *cobra.Command {
	var edges string
	var dataPath string

	cmd := &cobra.Command{
		Use:   "falsify",
		Short: "Test a proposed graph against observations",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			graphEdges, err := parseEdges(edges)
			if err != nil {
				return err
			}
			observation, err := loadColumns(dataPath)
			if err != nil {
				return err
			}
			return printJSON(svc.Falsify(cmd.Context(), service.FalsifyRequest{
				GraphEdges:  graphEdges,
				Observation: observation,
			}))
		},
	}

	cmd.Flags().StringVar(&edges, "edges", "", "Comma-separated directed edges, e.g. \"a->b,b->c\"")
	cmd.Flags().StringVar(&dataPath, "data", "", "Observation file (.csv or .xlsx)")
	cmd.MarkFlagRequired("edges")
	cmd.MarkFlagRequired("data")

	return cmd
}

func newEvaluateCmd() *cobra.Command {
	var dataPath string

	cmd := &cobra.Command{
		Use:   "evaluate [model-name]",
		Short: "Render a model summary, optionally with a falsification run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			req := service.EvaluateRequest{ModelName: args[0]}
			if dataPath != "" {
				observation, err := loadColumns(dataPath)
				if err != nil {
					return err
				}
				req.Observation = observation
			}
			return printJSON(svc.Evaluate(cmd.Context(), req))
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "", "Observation file for the falsification section (optional)")

	return cmd
}

func newModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage stored models",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored models",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			models, err := svc.ListModels(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(models)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete [model-name]",
		Short: "Delete a stored model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			return svc.DeleteModel(cmd.Context(), args[0])
		},
	})

	return cmd
}

func newService() (*service.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	var store modelstore.Store
	if cfg.Models.Store == "postgres" {
		store, err = modelstore.NewPostgresStore(cfg.Database.URL)
	} else {
		store, err = modelstore.NewFileStore(cfg.Models.Dir)
	}
	if err != nil {
		return nil, err
	}
	return service.New(store, internal.NewDefaultLogger(), cfg.Queries.Seed, cfg.Queries.BootstrapRepetitions), nil
}

func parseEdges(s string) ([]service.EdgePair, error) {
	var edges []service.EdgePair
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		ends := strings.Split(part, "->")
		if len(ends) != 2 {
			return nil, fmt.Errorf("invalid edge %q (want \"parent->child\")", part)
		}
		edges = append(edges, service.EdgePair{
			Parent: strings.TrimSpace(ends[0]),
			Child:  strings.TrimSpace(ends[1]),
		})
	}
	if len(edges) == 0 {
		return nil, fmt.Errorf("no edges given")
	}
	return edges, nil
}

func parseInterventions(sets []string) ([]service.InterventionInput, error) {
	inputs := make([]service.InterventionInput, len(sets))
	for i, s := range sets {
		name, raw, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("invalid assignment %q (want \"variable=value\")", s)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value in %q: %w", s, err)
		}
		inputs[i] = service.InterventionInput{Variable: strings.TrimSpace(name), Value: value}
	}
	return inputs, nil
}

func loadColumns(path string) (map[string][]any, error) {
	var tbl *table.Table
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		tbl, err = ingest.ReadExcel(path)
	default:
		tbl, err = ingest.ReadCSVFile(path)
	}
	if err != nil {
		return nil, err
	}
	return columnMap(tbl), nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func columnMap(tbl *table.Table) map[string][]any {
	columns := make(map[string][]any, tbl.NumColumns())
	for _, rec := range tbl.Records() {
		for name, v := range rec {
			columns[name] = append(columns[name], v)
		}
	}
	return columns
}
