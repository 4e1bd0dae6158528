package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/climsim/internal/analysis"
	"github.com/san-kum/climsim/internal/automation"
	"github.com/san-kum/climsim/internal/climate"
	"github.com/san-kum/climsim/internal/config"
	"github.com/san-kum/climsim/internal/experiment"
	"github.com/san-kum/climsim/internal/export"
	"github.com/san-kum/climsim/internal/logging"
	"github.com/san-kum/climsim/internal/optim"
	"github.com/san-kum/climsim/internal/sim"
	"github.com/san-kum/climsim/internal/storage"
	"github.com/san-kum/climsim/internal/viz"
)

var (
	dataDir    string
	configFile string
	logLevel   string

	outputDir string
	icsPath   string
	params    string
	numYears  int
	preset    string
	rtol      float64
	atol      float64
	noPlots   bool
	openView  bool

	svgDir     string
	exportPath string
	plotWidth  int
	plotHeight int

	xAxis string
	yAxis string

	axes     []string
	metric   string
	maximize bool

	force bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "climsim",
		Short:         "two-country economy and climate simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultDataDir, "data directory for saved runs")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "log level (info, debug, trace)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the simulation, save it and write plots",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addModelFlags(runCmd)
	runCmd.Flags().StringVarP(&outputDir, "output-dir", "o", config.DefaultOutputDir, "directory for plots")
	runCmd.Flags().BoolVar(&noPlots, "no-plots", false, "skip SVG plots")
	runCmd.Flags().BoolVar(&openView, "view", false, "open the trajectory browser when done")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "check config, initial conditions and parameters without running",
		Args:  cobra.NoArgs,
		RunE:  validateInputs,
	}
	addModelFlags(validateCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&svgDir, "svg", "", "also write SVG plots to this directory")
	plotCmd.Flags().IntVar(&plotWidth, "width", 80, "chart width")
	plotCmd.Flags().IntVar(&plotHeight, "height", 10, "chart height")

	phaseCmd := &cobra.Command{
		Use:   "phase [run_id]",
		Short: "phase portrait of two state components",
		Args:  cobra.ExactArgs(1),
		RunE:  phasePlot,
	}
	phaseCmd.Flags().StringVar(&xAxis, "x", "r", "component for the x axis (r, p, I_r, I_p, c)")
	phaseCmd.Flags().StringVar(&yAxis, "y", "p", "component for the y axis")
	phaseCmd.Flags().IntVar(&plotWidth, "width", 80, "plot width")
	phaseCmd.Flags().IntVar(&plotHeight, "height", 24, "plot height")

	viewCmd := &cobra.Command{
		Use:   "view [run_id]",
		Short: "browse a saved run year by year",
		Args:  cobra.ExactArgs(1),
		RunE:  viewRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&exportPath, "output", "o", "", "output file (default stdout)")

	deleteCmd := &cobra.Command{
		Use:   "delete [run_id]",
		Short: "delete a saved run",
		Args:  cobra.ExactArgs(1),
		RunE:  deleteRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list built-in scenarios",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	initCmd := &cobra.Command{
		Use:   "init [preset]",
		Short: "write parameter files and a config for a preset",
		Args:  cobra.MaximumNArgs(1),
		RunE:  initFiles,
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "grid search over parameters for the best metric value",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addModelFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&axes, "axis", nil, "parameter axis, name=start:end:n or name=v1,v2 (repeatable)")
	sweepCmd.Flags().StringVar(&metric, "metric", "peak_co2", "metric to optimize")
	sweepCmd.Flags().BoolVar(&maximize, "maximize", false, "maximize instead of minimize")
	sweepCmd.MarkFlagRequired("axis")

	batchCmd := &cobra.Command{
		Use:   "batch [scenario.yaml]",
		Short: "run every step of a scenario file and store each run",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}
	addModelFlags(batchCmd)

	rootCmd.AddCommand(runCmd, validateCmd, listCmd, plotCmd, phaseCmd, viewCmd, exportJSONCmd, deleteCmd, presetsCmd, initCmd, sweepCmd, batchCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, viz.DefaultStyles.Failed.Render("error:")+" "+err.Error())
		stop()
		os.Exit(1)
	}
}

func addModelFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&icsPath, "ics", "i", config.DefaultICsPath, "initial conditions json file")
	cmd.Flags().StringVarP(&params, "params", "p", config.DefaultParamsPath, "ODE parameters json file")
	cmd.Flags().IntVarP(&numYears, "num-years", "n", config.DefaultNumYears, "number of years to simulate")
	cmd.Flags().StringVar(&preset, "preset", "", "use a built-in scenario instead of the parameter files")
	cmd.Flags().Float64Var(&rtol, "rtol", config.DefaultRtol, "solver relative tolerance")
	cmd.Flags().Float64Var(&atol, "atol", config.DefaultAtol, "solver absolute tolerance")
}

// loadConfig reads the config file, if any, then applies flags the user
// set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("data") || configFile == "" {
		cfg.DataDir = dataDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir = outputDir
	}
	if flags.Changed("ics") {
		cfg.InitialConditions = icsPath
	}
	if flags.Changed("params") {
		cfg.Parameters = params
	}
	if flags.Changed("num-years") {
		cfg.NumYears = numYears
	}
	if flags.Changed("preset") {
		cfg.Preset = preset
	}
	if flags.Changed("rtol") {
		cfg.Solver.Rtol = rtol
	}
	if flags.Changed("atol") {
		cfg.Solver.Atol = atol
	}
	if flags.Changed("no-plots") {
		cfg.Plots = !noPlots
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.NewLogger(cfg.LogLevel, os.Stderr)
}

// storeDir is --data, or the config file's data_dir when the flag is unset.
func storeDir(cmd *cobra.Command) string {
	if configFile != "" && !cmd.Flags().Changed("data") {
		if cfg, err := config.Load(configFile); err == nil {
			return cfg.DataDir
		}
	}
	return dataDir
}

func openStore(ctx context.Context, dir string) (*storage.Store, error) {
	st := storage.New(dir)
	if err := st.Init(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	expCfg, err := experiment.FromRunConfig(cfg)
	if err != nil {
		return err
	}

	exp := experiment.New(expCfg, logger)
	if err := exp.Setup(); err != nil {
		return err
	}

	st, err := openStore(ctx, cfg.DataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	logger.Info("running simulation", "scenario", expCfg.Name, "years", cfg.NumYears)
	start := time.Now()

	tr, runErr := exp.Run(ctx)
	if tr == nil {
		return runErr
	}
	elapsed := time.Since(start)

	meta := storage.RunMetadata{
		Name:        expCfg.Name,
		NumYears:    cfg.NumYears,
		DaysPerYear: cfg.DaysPerYear,
		Rtol:        cfg.Solver.Rtol,
		Atol:        cfg.Solver.Atol,
		Initial:     expCfg.Initial,
		Params:      expCfg.Params,
	}
	// Saving uses a fresh context so an interrupted run is still recorded.
	runID, err := st.Save(context.WithoutCancel(ctx), meta, tr, runErr)
	if err != nil {
		return errors.Join(runErr, err)
	}

	if cfg.Plots && tr.Len() >= 2 {
		if err := export.WritePlots(cfg.OutputDir, tr, cfg.NumYears); err != nil {
			logger.Warn("failed to write plots", "dir", cfg.OutputDir, "error", err)
		} else {
			logger.Info("plots written", "dir", cfg.OutputDir)
		}
	}

	printSummary(runID, tr, elapsed, runErr)

	if openView {
		errMsg := ""
		if runErr != nil {
			errMsg = runErr.Error()
		}
		if err := viz.RunBrowser(viz.NewBrowser(tr, runID, errMsg)); err != nil {
			return err
		}
	}

	return runErr
}

func printSummary(runID string, tr *sim.Trajectory, elapsed time.Duration, runErr error) {
	s := viz.DefaultStyles

	status := s.OK.Render("completed")
	if runErr != nil {
		status = s.Failed.Render("stopped early")
	}
	fmt.Printf("%s in %v\n", status, elapsed.Round(time.Millisecond))
	fmt.Printf("%s %s\n", s.MetricLabel.Render("run id:"), s.MetricValue.Render(runID))
	fmt.Printf("%s %d\n", s.MetricLabel.Render("points:"), tr.Len())
	fmt.Printf("%s %d\n", s.MetricLabel.Render("disasters:"), len(tr.Shocks))

	if len(tr.Metrics) > 0 {
		fmt.Println("\nmetrics:")
		for _, name := range optim.SortedNames(tr.Metrics) {
			fmt.Printf("  %s\n", s.Metric(name, tr.Metrics[name]))
		}
	}
}

func validateInputs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	expCfg, err := experiment.FromRunConfig(cfg)
	if err != nil {
		return err
	}
	if err := experiment.New(expCfg, nil).Setup(); err != nil {
		return err
	}

	s := viz.DefaultStyles
	fmt.Printf("%s scenario %q, %d years\n", s.OK.Render("ok"), expCfg.Name, cfg.NumYears)
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd.Context(), storeDir(cmd))
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.List(cmd.Context())
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tTIME\tYEARS\tPOINTS\tDISASTERS\tSTATUS")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			run.ID,
			run.Name,
			run.Timestamp.Local().Format("2006-01-02 15:04:05"),
			run.NumYears,
			run.Points,
			run.Shocks,
			run.Status,
		)
	}

	return w.Flush()
}

func loadRun(cmd *cobra.Command, runID string) (*sim.Trajectory, *storage.RunMetadata, error) {
	ctx := cmd.Context()
	st, err := openStore(ctx, storeDir(cmd))
	if err != nil {
		return nil, nil, err
	}
	defer st.Close()

	return st.LoadTrajectory(ctx, runID)
}

func plotRun(cmd *cobra.Command, args []string) error {
	tr, meta, err := loadRun(cmd, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scenario: %s\n", meta.Name)
	fmt.Printf("samples: %d\n\n", tr.Len())

	opts := viz.PlotOptions{Width: plotWidth, Height: plotHeight}
	if err := viz.PlotComponents(os.Stdout, tr, opts); err != nil {
		return err
	}

	if svgDir != "" {
		if err := export.WritePlots(svgDir, tr, meta.NumYears); err != nil {
			return err
		}
		fmt.Printf("\nsvg plots written to %s\n", svgDir)
	}
	return nil
}

func componentIndex(name string) (int, error) {
	idx, ok := climate.ComponentIndex(name)
	if !ok {
		names := climate.ComponentNames[:]
		if s := config.Suggest(name, names); s != "" {
			return 0, fmt.Errorf("unknown component %q (did you mean %q?)", name, s)
		}
		return 0, fmt.Errorf("unknown component %q (available: %v)", name, names)
	}
	return idx, nil
}

func phasePlot(cmd *cobra.Command, args []string) error {
	xIdx, err := componentIndex(xAxis)
	if err != nil {
		return err
	}
	yIdx, err := componentIndex(yAxis)
	if err != nil {
		return err
	}

	tr, meta, err := loadRun(cmd, args[0])
	if err != nil {
		return err
	}

	portrait, err := analysis.NewPhasePortrait(tr, xIdx, yIdx)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n\n", meta.ID)
	fmt.Print(portrait.ToASCII(plotWidth, plotHeight))
	return nil
}

func viewRun(cmd *cobra.Command, args []string) error {
	tr, meta, err := loadRun(cmd, args[0])
	if err != nil {
		return err
	}
	return viz.RunBrowser(viz.NewBrowser(tr, meta.ID+" ("+meta.Name+")", meta.Error))
}

func exportJSON(cmd *cobra.Command, args []string) error {
	tr, meta, err := loadRun(cmd, args[0])
	if err != nil {
		return err
	}
	return storage.ExportJSON(exportPath, meta, tr)
}

func deleteRun(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd.Context(), storeDir(cmd))
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", args[0])
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	s := viz.DefaultStyles
	fmt.Println("presets:")
	for _, name := range config.ListPresets() {
		p, _ := config.GetPreset(name)
		fmt.Printf("  %s  %s\n", s.Selected.Render(fmt.Sprintf("%-20s", name)), s.Subtle.Render(p.Description))
	}
	return nil
}

func initFiles(cmd *cobra.Command, args []string) error {
	name := "baseline"
	if len(args) > 0 {
		name = args[0]
	}
	p, err := config.GetPreset(name)
	if err != nil {
		return err
	}

	cfg := config.DefaultConfig()
	cfgPath := "climsim.yaml"
	if configFile != "" {
		cfgPath = configFile
	}

	for _, path := range []string{cfg.InitialConditions, cfg.Parameters, cfgPath} {
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Parameters), 0755); err != nil {
		return err
	}
	if err := config.WriteInitialConditions(cfg.InitialConditions, p.Initial); err != nil {
		return err
	}
	if err := config.WriteParams(cfg.Parameters, p.Params); err != nil {
		return err
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		return err
	}

	fmt.Printf("wrote %s, %s and %s from preset %q\n", cfg.InitialConditions, cfg.Parameters, cfgPath, name)
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	base, err := experiment.FromRunConfig(cfg)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(axes))
	ranges := make([][]float64, 0, len(axes))
	for _, a := range axes {
		name, values, err := optim.ParseAxis(a)
		if err != nil {
			return err
		}
		names = append(names, name)
		ranges = append(ranges, values)
	}

	gs := optim.NewGridSearch(names, ranges)
	gs.Maximize = maximize

	build := func(overrides map[string]float64) (*experiment.Experiment, error) {
		c, err := base.WithOverrides(overrides)
		if err != nil {
			return nil, err
		}
		return experiment.New(c, logger), nil
	}

	res, sweepErr := gs.Search(ctx, build, metric)
	if res == nil {
		return sweepErr
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	header := ""
	for _, n := range names {
		header += n + "\t"
	}
	fmt.Fprintln(w, header+metric)
	for _, pt := range res.Points {
		row := ""
		for _, n := range names {
			row += fmt.Sprintf("%g\t", pt.Params[n])
		}
		if pt.Err != nil {
			row += "error: " + pt.Err.Error()
		} else {
			row += fmt.Sprintf("%.6g", pt.Value)
		}
		fmt.Fprintln(w, row)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if sweepErr != nil {
		return sweepErr
	}

	s := viz.DefaultStyles
	fmt.Printf("\n%s", s.Title.Render("best:"))
	for _, n := range optim.SortedNames(res.Best) {
		fmt.Printf(" %s=%g", n, res.Best[n])
	}
	fmt.Printf("  %s=%.6g\n", metric, res.BestValue)
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cfg.DataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	if scenario.Name != "" {
		logger.Info("running scenario", "name", scenario.Name, "steps", len(scenario.Steps))
	}
	results, batchErr := automation.RunScenario(ctx, scenario, cfg, logger)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tRUN ID\tPEAK CO2\tSTATUS")
	failed := 0
	for i, res := range results {
		status := storage.StatusComplete
		if res.Err != nil {
			status = "error: " + res.Err.Error()
			failed++
		}
		if res.Trajectory == nil {
			fmt.Fprintf(w, "%d\t-\t-\t%s\n", i+1, status)
			continue
		}

		meta := storage.RunMetadata{
			Name:        res.Config.Name,
			NumYears:    res.Config.Sim.NumYears,
			DaysPerYear: res.Config.Sim.DaysPerYear,
			Rtol:        res.Config.Solver.Rtol,
			Atol:        res.Config.Solver.Atol,
			Initial:     res.Config.Initial,
			Params:      res.Config.Params,
		}
		runID, err := st.Save(context.WithoutCancel(ctx), meta, res.Trajectory, res.Err)
		if err != nil {
			return errors.Join(batchErr, err)
		}
		fmt.Fprintf(w, "%d\t%s\t%.6g\t%s\n", i+1, runID, res.Trajectory.Metrics["peak_co2"], status)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if batchErr != nil {
		return batchErr
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d steps failed", failed, len(results))
	}
	return nil
}
