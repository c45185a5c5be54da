package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/mzeidler/mbd/internal/analysis"
	"github.com/mzeidler/mbd/internal/config"
	"github.com/mzeidler/mbd/internal/controllers"
	"github.com/mzeidler/mbd/internal/export"
	"github.com/mzeidler/mbd/internal/integrators"
	"github.com/mzeidler/mbd/internal/metrics"
	"github.com/mzeidler/mbd/internal/models"
	"github.com/mzeidler/mbd/internal/optim"
	"github.com/mzeidler/mbd/internal/sim"
	"github.com/mzeidler/mbd/internal/storage"
	"github.com/mzeidler/mbd/internal/tui"
	"github.com/spf13/cobra"
)

var (
	dataDir    string
	dt         float64
	duration   float64
	seed       int64
	integrator string
	passes     int
	paramFlags []string
	configFile string
	preset     string
	sceneFile  string
	adaptive   bool
	tolerance  float64
	// phase plot axes
	xAxis int
	yAxis int
	// live view frame rate
	frameRate int
	// chaos perturbation
	perturbation float64
	// ensemble sweep
	ensembleRuns    int
	ensemblePerturb float64
	// controller selection
	controller string
	kp         float64
	ki         float64
	kd         float64
	target     float64
	ctrlCoord  int
	ctrlJoint  int
	// tune sweep
	rangeFlags []string
	tuneMetric string
	// svg output
	svgOut string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mbd",
		Short: "multibody dynamics lab",
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.RunInteractive()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".mbd", "data directory")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "run simulation",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addSimFlags(runCmd)
	addControllerFlags(runCmd)
	runCmd.Flags().StringVar(&sceneFile, "scene", "", "scene file (yaml) instead of a registered model")
	runCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	runCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	runCmd.Flags().BoolVar(&adaptive, "adaptive", false, "adaptive step size control")
	runCmd.Flags().Float64Var(&tolerance, "tol", 1e-6, "adaptive step tolerance")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	benchCmd := &cobra.Command{
		Use:   "bench [model]",
		Short: "benchmark model",
		Args:  cobra.ExactArgs(1),
		RunE:  benchModel,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	chaosCmd := &cobra.Command{
		Use:   "chaos [model]",
		Short: "estimate the largest Lyapunov exponent",
		Args:  cobra.ExactArgs(1),
		RunE:  chaosModel,
	}
	addSimFlags(chaosCmd)
	chaosCmd.Flags().Float64Var(&perturbation, "perturbation", 1e-8, "initial trajectory separation")

	ensembleCmd := &cobra.Command{
		Use:   "ensemble [model]",
		Short: "run perturbed copies of a scenario in parallel",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runEnsemble,
	}
	addSimFlags(ensembleCmd)
	addControllerFlags(ensembleCmd)
	ensembleCmd.Flags().StringVar(&sceneFile, "scene", "", "scene file (yaml) instead of a registered model")
	ensembleCmd.Flags().IntVar(&ensembleRuns, "runs", 8, "number of parallel runs")
	ensembleCmd.Flags().Float64Var(&ensemblePerturb, "perturb", 1e-4, "uniform initial state perturbation")

	liveCmd := &cobra.Command{
		Use:   "live [model]",
		Short: "run simulation with live visualization",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addSimFlags(liveCmd)
	addControllerFlags(liveCmd)
	liveCmd.Flags().StringVar(&sceneFile, "scene", "", "scene file (yaml) instead of a registered model")
	liveCmd.Flags().IntVar(&frameRate, "fps", 30, "frame rate")

	phaseCmd := &cobra.Command{
		Use:   "phase [run_id]",
		Short: "phase space plot",
		Args:  cobra.ExactArgs(1),
		RunE:  phasePlot,
	}
	phaseCmd.Flags().IntVar(&xAxis, "x-axis", 0, "state index for x-axis")
	phaseCmd.Flags().IntVar(&yAxis, "y-axis", 1, "state index for y-axis")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run data to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "export a trajectory to SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().IntVar(&xAxis, "x-axis", 0, "state index for x-axis")
	exportSVGCmd.Flags().IntVar(&yAxis, "y-axis", 1, "state index for y-axis")
	exportSVGCmd.Flags().StringVarP(&svgOut, "out", "o", "", "output file (default stdout)")

	tuneCmd := &cobra.Command{
		Use:   "tune [model]",
		Short: "grid-search model parameters against a run metric",
		Args:  cobra.ExactArgs(1),
		RunE:  tuneModel,
	}
	addSimFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&rangeFlags, "range", nil, "parameter sweep name=min:max:steps (repeatable)")
	tuneCmd.Flags().StringVar(&tuneMetric, "metric", "energy_drift", "metric to minimize")

	compareCmd := &cobra.Command{
		Use:   "compare [model] [integrator1] [integrator2] ...",
		Short: "compare integrators on the same model",
		Args:  cobra.MinimumNArgs(2),
		RunE:  compareIntegrators,
	}
	compareCmd.Flags().Float64Var(&dt, "dt", 0.01, "timestep")
	compareCmd.Flags().Float64Var(&duration, "time", 10.0, "duration")
	compareCmd.Flags().StringArrayVar(&paramFlags, "param", nil, "model parameter name=value")

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for model: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list available models",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range models.Names() {
				fmt.Println(name)
			}
			return nil
		},
	}

	dumpCmd := &cobra.Command{
		Use:   "dump [model]",
		Short: "print the model's tree topology",
		Args:  cobra.MaximumNArgs(1),
		RunE:  dumpModel,
	}
	dumpCmd.Flags().StringVar(&sceneFile, "scene", "", "scene file (yaml) instead of a registered model")
	dumpCmd.Flags().StringArrayVar(&paramFlags, "param", nil, "model parameter name=value")

	tuiCmd := &cobra.Command{
		Use:   "tui",
		Short: "interactive terminal mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.RunInteractive()
		},
	}

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, exportCmd, benchCmd, analyzeCmd,
		chaosCmd, ensembleCmd, liveCmd, phaseCmd, exportCSVCmd, exportJSONCmd,
		exportSVGCmd, tuneCmd, compareCmd, presetsCmd, modelsCmd, dumpCmd, tuiCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addSimFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&dt, "dt", 0.01, "timestep")
	cmd.Flags().Float64Var(&duration, "time", 10.0, "duration")
	cmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed")
	cmd.Flags().StringVar(&integrator, "integrator", "rk4", "integrator (euler, rk4, rk45)")
	cmd.Flags().IntVar(&passes, "passes", 0, "loop correction passes per dynamics solve")
	cmd.Flags().StringArrayVar(&paramFlags, "param", nil, "model parameter name=value (repeatable)")
}

func addControllerFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&controller, "controller", "none", "controller (none, pid, lqr)")
	cmd.Flags().Float64Var(&kp, "kp", 10.0, "pid kp")
	cmd.Flags().Float64Var(&ki, "ki", 0.1, "pid ki")
	cmd.Flags().Float64Var(&kd, "kd", 5.0, "pid kd")
	cmd.Flags().Float64Var(&target, "target", 0.0, "pid target value")
	cmd.Flags().IntVar(&ctrlCoord, "ctrl-coord", 0, "state index the pid regulates")
	cmd.Flags().IntVar(&ctrlJoint, "ctrl-joint", 0, "generalized speed index the pid actuates")
}

func buildController(mech *models.Mechanism) (sim.Controller, error) {
	switch controller {
	case "", "none":
		return nil, nil
	case "pid":
		return controllers.NewPID(kp, ki, kd, target).
			ForJoint(ctrlCoord, ctrlJoint, mech.ControlDim()), nil
	case "lqr":
		l := controllers.NewPendulumLQR()
		if mech.ControlDim() != len(l.K) || mech.StateDim() != len(l.K[0]) {
			return nil, fmt.Errorf("lqr gains expect %d controls and %d states, model has %d and %d",
				len(l.K), len(l.K[0]), mech.ControlDim(), mech.StateDim())
		}
		l.Target = sim.State{target, 0}
		return l, nil
	default:
		return nil, fmt.Errorf("unknown controller %q", controller)
	}
}

// resolveConfig layers defaults, preset, config file, and flag overrides
// into one run configuration.
func resolveConfig(cmd *cobra.Command, model string) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		p := config.GetPreset(model, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(model))
		}
		cfg = cfg.Merge(p)
	}

	if configFile != "" {
		fileCfg, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = cfg.Merge(fileCfg)
	}

	cfg.Model = model
	if cmd.Flags().Changed("dt") {
		cfg.Dt = dt
	}
	if cmd.Flags().Changed("time") {
		cfg.Duration = duration
	}
	if cmd.Flags().Changed("integrator") {
		cfg.Integrator = integrator
	}
	if cmd.Flags().Changed("seed") || cfg.Seed == 0 {
		cfg.Seed = seed
	}
	if cmd.Flags().Changed("passes") {
		cfg.CorrectionPasses = passes
	}

	if cfg.Params == nil {
		cfg.Params = map[string]float64{}
	}
	for _, kv := range paramFlags {
		name, val, err := parseParam(kv)
		if err != nil {
			return nil, err
		}
		cfg.Params[name] = val
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseParam(kv string) (string, float64, error) {
	name, raw, ok := strings.Cut(kv, "=")
	if !ok {
		return "", 0, fmt.Errorf("invalid --param %q, want name=value", kv)
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid --param %q: %w", kv, err)
	}
	return name, val, nil
}

// modelArg resolves the model name from the positional argument or the
// --scene flag, whichever was given.
func modelArg(args []string) (string, error) {
	if len(args) == 1 {
		if sceneFile != "" {
			return "", fmt.Errorf("give either a model name or --scene, not both")
		}
		return args[0], nil
	}
	if sceneFile == "" {
		return "", fmt.Errorf("model name or --scene required")
	}
	return filepath.Base(sceneFile), nil
}

func buildMechanism(cfg *config.Config) (*models.Mechanism, sim.State, error) {
	var (
		mech *models.Mechanism
		x0   sim.State
		err  error
	)
	if sceneFile != "" {
		mech, x0, err = models.LoadScene(sceneFile)
	} else {
		mech, x0, err = models.Build(cfg.Model, models.Params(cfg.Params))
	}
	if err != nil {
		return nil, nil, err
	}
	if cfg.CorrectionPasses > 0 {
		mech.Tree().SetCorrectionPasses(cfg.CorrectionPasses)
	}
	return mech, x0, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	model, err := modelArg(args)
	if err != nil {
		return err
	}
	cfg, err := resolveConfig(cmd, model)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	mech, x0, err := buildMechanism(cfg)
	if err != nil {
		return err
	}

	integ, err := integrators.New(cfg.Integrator)
	if err != nil {
		return err
	}

	ctrl, err := buildController(mech)
	if err != nil {
		return err
	}

	s := sim.New(mech, integ, ctrl)
	s.AddMetric(metrics.NewEnergy(mech))
	s.AddMetric(metrics.NewEnergyDrift(mech))
	if mech.Tree().NConstraints() > 0 {
		s.AddMetric(metrics.NewConstraintDrift(mech))
	}

	simCfg := sim.DefaultConfig()
	simCfg.Dt = cfg.Dt
	simCfg.Duration = cfg.Duration
	simCfg.Seed = cfg.Seed
	simCfg.Adaptive = adaptive
	simCfg.Tolerance = tolerance

	fmt.Printf("running %s simulation...\n", cfg.Model)
	start := time.Now()

	result, err := s.Run(context.Background(), x0, simCfg)
	if err != nil {
		return err
	}

	elapsed := time.Since(start)

	runID, err := st.Save(cfg.Model, cfg.Dt, cfg.Duration, cfg.Seed, cfg.Integrator, mech.Tree().MaxNQTotal(), result)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", result.StepsTaken)
	if len(result.Errors) > 0 {
		fmt.Printf("errors: %d (first: %v)\n", len(result.Errors), result.Errors[0])
	}
	fmt.Println("\nmetrics:")
	for name, val := range result.Metrics {
		fmt.Printf("  %s: %.6g\n", name, val)
	}
	fmt.Printf("  energy_drift_rel: %.6g\n", result.EnergyDrift)

	return nil
}

func runEnsemble(cmd *cobra.Command, args []string) error {
	model, err := modelArg(args)
	if err != nil {
		return err
	}
	cfg, err := resolveConfig(cmd, model)
	if err != nil {
		return err
	}
	if ensembleRuns < 1 {
		return fmt.Errorf("runs must be at least 1, got %d", ensembleRuns)
	}

	_, x0, err := buildMechanism(cfg)
	if err != nil {
		return err
	}

	// each run gets its own mechanism; trees cache realize state
	factory := func() (*sim.Simulator, error) {
		mech, _, err := buildMechanism(cfg)
		if err != nil {
			return nil, err
		}
		integ, err := integrators.New(cfg.Integrator)
		if err != nil {
			return nil, err
		}
		ctrl, err := buildController(mech)
		if err != nil {
			return nil, err
		}
		s := sim.New(mech, integ, ctrl)
		s.AddMetric(metrics.NewEnergy(mech))
		return s, nil
	}

	simCfg := sim.DefaultConfig()
	simCfg.Dt = cfg.Dt
	simCfg.Duration = cfg.Duration

	fmt.Printf("running %d perturbed copies of %s (perturb=%g)...\n", ensembleRuns, cfg.Model, ensemblePerturb)
	start := time.Now()

	e := sim.NewEnsemble(factory, ensembleRuns, cfg.Seed, ensemblePerturb)
	results, err := e.Run(context.Background(), x0, simCfg)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n\n", time.Since(start))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "run\tseed\tfinal_q0\tenergy_drift")
	finals := make([]float64, len(results))
	for i, r := range results {
		finals[i] = r.States[len(r.States)-1][0]
		fmt.Fprintf(w, "%d\t%d\t%.6f\t%.2e\n", i, cfg.Seed+int64(i), finals[i], r.EnergyDrift)
	}
	w.Flush()

	mean := 0.0
	for _, v := range finals {
		mean += v
	}
	mean /= float64(len(finals))
	variance := 0.0
	for _, v := range finals {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(finals))
	fmt.Printf("\nfinal_q0 mean=%.6f std=%.2e\n", mean, math.Sqrt(variance))

	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tTIME\tDURATION\tDT\tINTEG\tNQ\tNU")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.4fs\t%s\t%d\t%d\n",
			run.ID,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Integrator,
			run.NQ,
			run.NU,
		)
	}

	return w.Flush()
}

// columnName labels a state column as a coordinate or a speed.
func columnName(idx, nq int) string {
	if idx < nq {
		return fmt.Sprintf("q%d", idx)
	}
	return fmt.Sprintf("u%d", idx-nq)
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	states, _, err := st.LoadStates(runID)
	if err != nil {
		return err
	}

	if len(states) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("model: %s\n", meta.Model)
	fmt.Printf("samples: %d\n\n", len(states))

	numVars := len(states[0])
	maxPlots := 6
	if numVars > maxPlots {
		numVars = maxPlots
	}

	for varIdx := 0; varIdx < numVars; varIdx++ {
		data := make([]float64, len(states))
		for i := range states {
			if varIdx < len(states[i]) {
				data[i] = states[i][varIdx]
			}
		}

		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("%s vs time", columnName(varIdx, meta.NQ))),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func benchModel(cmd *cobra.Command, args []string) error {
	model := args[0]

	mech, x0, err := models.Build(model, nil)
	if err != nil {
		return err
	}

	integ := integrators.NewRK4()

	durations := []float64{1.0, 5.0, 10.0}
	dts := []float64{0.001, 0.01, 0.1}

	fmt.Printf("benchmarking %s\n\n", model)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DURATION\tDT\tSTEPS\tTIME\tSTEPS/SEC")

	for _, dur := range durations {
		for _, dt := range dts {
			s := sim.New(mech, integ, nil)
			cfg := sim.DefaultConfig()
			cfg.Dt = dt
			cfg.Duration = dur

			start := time.Now()
			result, err := s.Run(context.Background(), x0, cfg)
			if err != nil {
				return err
			}
			elapsed := time.Since(start)

			stepsPerSec := float64(result.StepsTaken) / elapsed.Seconds()

			fmt.Fprintf(w, "%.1fs\t%.4fs\t%d\t%v\t%.0f\n",
				dur, dt, result.StepsTaken, elapsed, stepsPerSec)
		}
	}

	return w.Flush()
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	states, _, err := st.LoadStates(runID)
	if err != nil {
		return err
	}

	if len(states) == 0 || len(states[0]) == 0 {
		return fmt.Errorf("no data")
	}

	fmt.Printf("frequency analysis: %s\n", meta.ID)
	fmt.Printf("model: %s\n\n", meta.Model)

	data := make([]float64, len(states))
	for i := range states {
		data[i] = states[i][0]
	}

	n := 1
	for n < len(data) {
		n *= 2
	}
	padded := make([]float64, n)
	copy(padded, data)

	ps := analysis.PowerSpectrum(padded)

	plotData := ps[:len(ps)/4]

	graph := asciigraph.Plot(plotData,
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("power spectrum (%s)", columnName(0, meta.NQ))),
	)
	fmt.Println(graph)
	fmt.Println()

	maxPower := 0.0
	maxIdx := 0
	for i := 1; i < len(plotData); i++ {
		if plotData[i] > maxPower {
			maxPower = plotData[i]
			maxIdx = i
		}
	}

	freq := float64(maxIdx) / meta.Duration
	fmt.Printf("dominant frequency: %.3f hz\n", freq)
	if freq > 0 {
		fmt.Printf("period: %.3f s\n", 1.0/freq)
	}

	return nil
}

func chaosModel(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args[0])
	if err != nil {
		return err
	}

	mech, x0, err := buildMechanism(cfg)
	if err != nil {
		return err
	}

	integ, err := integrators.New(cfg.Integrator)
	if err != nil {
		return err
	}

	fmt.Printf("estimating largest Lyapunov exponent for %s (dt=%.4f, t=%.1fs)...\n",
		cfg.Model, cfg.Dt, cfg.Duration)

	lambda := analysis.LyapunovExponent(mech, integ, x0, cfg.Dt, cfg.Duration, perturbation)

	fmt.Printf("lambda: %.6f\n", lambda)
	if lambda > 0 {
		fmt.Printf("trajectories diverge (doubling time %.2fs)\n", 0.6931/lambda)
	} else {
		fmt.Println("no exponential divergence detected")
	}

	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	model, err := modelArg(args)
	if err != nil {
		return err
	}
	cfg, err := resolveConfig(cmd, model)
	if err != nil {
		return err
	}

	mech, x0, err := buildMechanism(cfg)
	if err != nil {
		return err
	}

	integ, err := integrators.New(cfg.Integrator)
	if err != nil {
		return err
	}

	ctrl, err := buildController(mech)
	if err != nil {
		return err
	}

	renderer := tui.NewLiveRenderer(mech, frameRate)
	renderer.Start()
	defer renderer.Stop()

	s := sim.New(mech, integ, ctrl)
	simCfg := sim.DefaultConfig()
	simCfg.Dt = cfg.Dt
	simCfg.Duration = cfg.Duration

	pace := time.Duration(cfg.Dt * float64(time.Second))
	return s.RunWithCallback(context.Background(), x0, simCfg,
		func(x sim.State, u sim.Control, t float64) bool {
			renderer.OnStep(x, u, t)
			time.Sleep(pace)
			return true
		})
}

func phasePlot(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	states, _, err := st.LoadStates(runID)
	if err != nil {
		return err
	}

	if len(states) == 0 {
		return fmt.Errorf("no data to plot")
	}

	if len(states[0]) <= xAxis || len(states[0]) <= yAxis {
		return fmt.Errorf("state dimension too small for selected axes")
	}

	fmt.Printf("phase space plot: %s\n", meta.ID)
	fmt.Printf("model: %s\n", meta.Model)
	fmt.Printf("x-axis: %s, y-axis: %s\n\n",
		columnName(xAxis, meta.NQ), columnName(yAxis, meta.NQ))

	xData := make([]float64, len(states))
	yData := make([]float64, len(states))
	for i := range states {
		xData[i] = states[i][xAxis]
		yData[i] = states[i][yAxis]
	}

	xMin, xMax := xData[0], xData[0]
	yMin, yMax := yData[0], yData[0]
	for i := range xData {
		if xData[i] < xMin {
			xMin = xData[i]
		}
		if xData[i] > xMax {
			xMax = xData[i]
		}
		if yData[i] < yMin {
			yMin = yData[i]
		}
		if yData[i] > yMax {
			yMax = yData[i]
		}
	}

	xRange := xMax - xMin
	yRange := yMax - yMin
	if xRange == 0 {
		xRange = 1
	}
	if yRange == 0 {
		yRange = 1
	}

	width := 70
	height := 20
	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = make([]rune, width)
		for j := range canvas[i] {
			canvas[i][j] = ' '
		}
	}

	for i := range xData {
		px := int(float64(width-1) * (xData[i] - xMin) / xRange)
		py := int(float64(height-1) * (yData[i] - yMin) / yRange)
		py = height - 1 - py
		if px >= 0 && px < width && py >= 0 && py < height {
			if i < len(xData)/3 {
				canvas[py][px] = '.'
			} else if i < 2*len(xData)/3 {
				canvas[py][px] = 'o'
			} else {
				canvas[py][px] = '●'
			}
		}
	}

	fmt.Printf("  %.2f ┌", yMax)
	for i := 0; i < width; i++ {
		fmt.Print("─")
	}
	fmt.Println("┐")

	for i := range canvas {
		if i == height/2 {
			fmt.Printf("  %.2f │", (yMax+yMin)/2)
		} else {
			fmt.Print("       │")
		}
		fmt.Print(string(canvas[i]))
		fmt.Println("│")
	}

	fmt.Printf("  %.2f └", yMin)
	for i := 0; i < width; i++ {
		fmt.Print("─")
	}
	fmt.Println("┘")

	fmt.Printf("       %.2f", xMin)
	padding := width - 20
	for i := 0; i < padding; i++ {
		fmt.Print(" ")
	}
	fmt.Printf("%.2f\n", xMax)

	fmt.Printf("\nLegend: . = early, o = middle, ● = late\n")

	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	states, times, err := st.LoadStates(runID)
	if err != nil {
		return err
	}

	if len(states) == 0 {
		return fmt.Errorf("no data to export")
	}

	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	header := []string{"time"}
	for i := range states[0] {
		header = append(header, columnName(i, meta.NQ))
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for i := range states {
		row := []string{strconv.FormatFloat(times[i], 'f', 6, 64)}
		for _, val := range states[i] {
			row = append(row, strconv.FormatFloat(val, 'f', 6, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	states, times, err := st.LoadStates(runID)
	if err != nil {
		return err
	}

	result := &sim.Result{
		States:  make([]sim.State, len(states)),
		Times:   times,
		Metrics: meta.Metrics,
	}
	for i, s := range states {
		result.States[i] = s
	}

	return storage.ExportJSONStdout(meta.Model, meta.Integrator, meta.Dt, meta.Duration, meta.NQ, result)
}

func exportSVG(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	states, _, err := st.LoadStates(runID)
	if err != nil {
		return err
	}

	if len(states) < 2 {
		return fmt.Errorf("not enough data to draw")
	}
	if len(states[0]) <= xAxis || len(states[0]) <= yAxis {
		return fmt.Errorf("state dimension too small for selected axes")
	}

	points := make([]export.Point, len(states))
	for i := range states {
		points[i] = export.Point{X: states[i][xAxis], Y: states[i][yAxis]}
	}

	svg := export.TrajectoryToSVG(points, 800, 600, "#00ff00")

	if svgOut == "" {
		fmt.Println(svg)
		return nil
	}
	return os.WriteFile(svgOut, []byte(svg), 0644)
}

// parseRange turns "length=0.5:2.0:4" into a name and its grid values.
func parseRange(spec string) (string, []float64, error) {
	name, raw, ok := strings.Cut(spec, "=")
	if !ok {
		return "", nil, fmt.Errorf("invalid --range %q, want name=min:max:steps", spec)
	}
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return "", nil, fmt.Errorf("invalid --range %q, want name=min:max:steps", spec)
	}
	min, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return "", nil, fmt.Errorf("invalid --range %q: %w", spec, err)
	}
	max, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return "", nil, fmt.Errorf("invalid --range %q: %w", spec, err)
	}
	steps, err := strconv.Atoi(parts[2])
	if err != nil || steps < 1 {
		return "", nil, fmt.Errorf("invalid --range %q: steps must be a positive integer", spec)
	}
	return name, optim.Linspace(min, max, steps), nil
}

func tuneModel(cmd *cobra.Command, args []string) error {
	model := args[0]

	if len(rangeFlags) == 0 {
		return fmt.Errorf("at least one --range is required")
	}

	names := make([]string, 0, len(rangeFlags))
	grids := make([][]float64, 0, len(rangeFlags))
	for _, spec := range rangeFlags {
		name, grid, err := parseRange(spec)
		if err != nil {
			return err
		}
		names = append(names, name)
		grids = append(grids, grid)
	}

	fixed := models.Params{}
	for _, kv := range paramFlags {
		name, val, err := parseParam(kv)
		if err != nil {
			return err
		}
		fixed[name] = val
	}

	evaluate := func(p map[string]float64) (float64, error) {
		params := models.Params{}
		for k, v := range fixed {
			params[k] = v
		}
		for k, v := range p {
			params[k] = v
		}

		mech, x0, err := models.Build(model, params)
		if err != nil {
			return 0, err
		}

		s := sim.New(mech, integrators.NewRK4(), nil)
		s.AddMetric(metrics.NewEnergyDrift(mech))
		if mech.Tree().NConstraints() > 0 {
			s.AddMetric(metrics.NewConstraintDrift(mech))
		}

		cfg := sim.DefaultConfig()
		cfg.Dt = dt
		cfg.Duration = duration

		result, err := s.Run(context.Background(), x0, cfg)
		if err != nil {
			return 0, err
		}
		if len(result.Errors) > 0 {
			return 0, result.Errors[0]
		}

		val, ok := result.Metrics[tuneMetric]
		if !ok {
			return 0, fmt.Errorf("metric %q not recorded (have %v)", tuneMetric, result.Metrics)
		}
		return val, nil
	}

	fmt.Printf("tuning %s over %d parameter(s), minimizing %s...\n", model, len(names), tuneMetric)

	gs := optim.NewGridSearch(names, grids)
	bestParams, best, err := gs.Search(context.Background(), evaluate)
	if err != nil {
		return err
	}
	if bestParams == nil {
		return fmt.Errorf("no successful evaluations")
	}

	fmt.Printf("best %s: %.6g\n", tuneMetric, best)
	for _, name := range names {
		fmt.Printf("  %s = %.6g\n", name, bestParams[name])
	}
	return nil
}

func compareIntegrators(cmd *cobra.Command, args []string) error {
	model := args[0]
	names := args[1:]

	params := models.Params{}
	for _, kv := range paramFlags {
		name, val, err := parseParam(kv)
		if err != nil {
			return err
		}
		params[name] = val
	}

	mech, x0, err := models.Build(model, params)
	if err != nil {
		return err
	}

	fmt.Printf("comparing integrators for %s (dt=%.4f, duration=%.1fs)\n\n", model, dt, duration)
	fmt.Printf("%-12s  %-12s  %-12s  %-12s\n", "integrator", "final_q0", "energy_drift", "time_ms")
	fmt.Println(strings.Repeat("-", 52))

	for _, name := range names {
		integ, err := integrators.New(name)
		if err != nil {
			fmt.Printf("%-12s  error: %v\n", name, err)
			continue
		}

		s := sim.New(mech, integ, nil)
		cfg := sim.DefaultConfig()
		cfg.Dt = dt
		cfg.Duration = duration

		start := time.Now()
		result, err := s.Run(context.Background(), x0, cfg)
		elapsed := time.Since(start)

		if err != nil {
			fmt.Printf("%-12s  error: %v\n", name, err)
			continue
		}

		finalQ0 := 0.0
		if len(result.States) > 0 && len(result.States[len(result.States)-1]) > 0 {
			finalQ0 = result.States[len(result.States)-1][0]
		}

		fmt.Printf("%-12s  %12.6f  %12.2e  %12.2f\n",
			name, finalQ0, result.EnergyDrift, float64(elapsed.Microseconds())/1000)
	}

	return nil
}

func dumpModel(cmd *cobra.Command, args []string) error {
	params := models.Params{}
	for _, kv := range paramFlags {
		name, val, err := parseParam(kv)
		if err != nil {
			return err
		}
		params[name] = val
	}

	var (
		mech *models.Mechanism
		err  error
	)
	if sceneFile != "" {
		mech, _, err = models.LoadScene(sceneFile)
	} else {
		if len(args) != 1 {
			return fmt.Errorf("model name or --scene required")
		}
		mech, _, err = models.Build(args[0], params)
	}
	if err != nil {
		return err
	}

	fmt.Printf("model: %s  nq=%d  nu=%d  bodies=%d  constraints=%d\n\n",
		mech.Name(), mech.Tree().MaxNQTotal(), mech.Tree().DOFTotal(),
		mech.Tree().NBodies(), mech.Tree().NConstraints())
	fmt.Println(mech.Tree().String())

	return nil
}
