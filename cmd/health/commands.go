package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rpc-scanner/internal/adapter/report"
	"rpc-scanner/internal/adapter/storage/nodelist"
	"rpc-scanner/internal/domain/capability"
	"rpc-scanner/internal/domain/entity"
	"rpc-scanner/internal/domain/scoring"
	"rpc-scanner/internal/pkg/apperrors"
)

var (
	detailed   bool
	params     string
	minMethods int
)

var scanCmd = &cobra.Command{
	Use:   "scan <node>",
	Short: "Scan one node and exit with GOOD_RETURN_CODE or BAD_RETURN_CODE",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.logger.Sync()

		endpoint, err := entity.NewEndpoint(args[0])
		if err != nil {
			s.logger.Error("Invalid node", zap.String("node", args[0]), zap.Error(err))
			return s.exit(false)
		}

		ctx, stop := signalContext()
		defer stop()

		result := s.engine.Fleet.ScanOne(ctx, endpoint)
		if err := report.WriteNode(cmd.OutOrStdout(), result, s.engine.MaxScore(), s.format); err != nil {
			return err
		}
		return s.exit(scoring.IsGood(result.Classification, s.cfg.Health.MinScore))
	},
}

var listCmd = &cobra.Command{
	Use:   "list [node_file]",
	Short: "Scan the node list and print the nodes that are working",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.logger.Sync()
		if len(args) == 1 {
			s.cfg.Nodes.File = args[0]
		}

		ctx, stop := signalContext()
		defer stop()

		endpoints, err := nodelist.NewRepository(s.cfg.Nodes, s.logger).ListEndpoints(ctx)
		if err != nil {
			return err
		}

		results := s.engine.Fleet.Scan(ctx, endpoints)
		working := make([]entity.ClassifiedResult, 0, len(results))
		for _, r := range report.Sort(results, report.Ordering{Key: report.SortScore}, false) {
			if scoring.IsGood(r.Classification, s.cfg.Health.MinScore) {
				working = append(working, r)
			}
		}

		return report.WriteNodeList(cmd.OutOrStdout(), cmd.ErrOrStderr(), working, s.engine.MaxScore(), detailed, s.format)
	},
}

var testMethodCmd = &cobra.Command{
	Use:   "test-method <node> <method>",
	Short: "Test a single API method against a node",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMethods(cmd, args[0], args[1:], 1)
	},
}

var testMethodsCmd = &cobra.Command{
	Use:   "test-methods <node> [methods...]",
	Short: "Test several API methods against a node (default: every capability probe)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		need := 0
		if cmd.Flags().Changed("min-methods") {
			if minMethods < 1 {
				return fmt.Errorf("%w: --min-methods must be at least 1", apperrors.ErrInvalidInput)
			}
			need = minMethods
		}
		return runMethods(cmd, args[0], args[1:], need)
	},
}

func init() {
	listCmd.Flags().BoolVarP(&detailed, "detailed", "d", false, "print score, version, block and plugins for each node")

	for _, c := range []*cobra.Command{testMethodCmd, testMethodsCmd} {
		c.Flags().StringVarP(&params, "params", "p", "[]", "JSON params for methods outside the capability catalogue")
	}
	testMethodsCmd.Flags().IntVarP(&minMethods, "min-methods", "l", 0,
		"minimum working methods for GOOD status (default 75% of tested methods)")
}

// runMethods tests methods against node. need of zero selects the default threshold.
func runMethods(cmd *cobra.Command, node string, methods []string, need int) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.logger.Sync()

	endpoint, err := entity.NewEndpoint(node)
	if err != nil {
		s.logger.Error("Invalid node", zap.String("node", node), zap.Error(err))
		return s.exit(false)
	}

	defs, err := probeDefinitions(s.engine.Options.Matrix, methods, params)
	if err != nil {
		return err
	}
	if need == 0 {
		need = report.DefaultMinMethods(len(defs))
	}

	ctx, stop := signalContext()
	defer stop()

	fmt.Fprintf(cmd.ErrOrStderr(), "# Testing %d method(s) against %s\n", len(defs), endpoint)
	tested := s.engine.Scanner.TestMethods(ctx, endpoint, defs)

	rep := report.NewMethodsReport(endpoint, tested.Plugins, need)
	if err := report.WriteMethods(cmd.OutOrStdout(), rep, s.format); err != nil {
		return err
	}
	return s.exit(rep.Status == entity.StatusGood)
}

// probeDefinitions resolves method names against the catalogue. Unknown methods are tested with
// rawParams and a non-empty check. No methods selects the whole catalogue.
func probeDefinitions(matrix *capability.Matrix, methods []string, rawParams string) ([]capability.ProbeDefinition, error) {
	if len(methods) == 0 {
		for _, stage := range matrix.Stages() {
			for _, def := range stage.Probes {
				methods = append(methods, def.Method)
			}
		}
	}

	defs := make([]capability.ProbeDefinition, 0, len(methods))
	for _, method := range methods {
		if def, _, ok := matrix.Lookup(method); ok {
			defs = append(defs, def)
			continue
		}
		def := capability.AdHoc(method, rawParams)
		if _, err := matrix.Params(def); err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if len(defs) == 0 {
		return nil, errors.New("no methods to test")
	}
	return defs, nil
}
