package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/kataras/golog"
	"github.com/spf13/cobra"

	"screen-select/src/config"
	"screen-select/src/display"
	"screen-select/src/eventloop"
	"screen-select/src/geometry"
	"screen-select/src/logutil"
	"screen-select/src/runtimeinit"
	"screen-select/src/screenshot"
	"screen-select/src/session"
	"screen-select/src/singleinstance"
	"screen-select/src/toolkit"
	"screen-select/src/toolkit/scripted"
	"screen-select/src/topology"
	"screen-select/src/tray"
)

type cliOptions struct {
	jsonOutput  bool
	verbose     bool
	replay      string
	focalScale  float32
	outputDir   string
	toStdout    bool
	toClipboard bool
	delegate    bool
	hotkey      string
	all         bool
	screenID    uint32
	area        string
}

// environment is the set of platform services the commands talk to.
type environment struct {
	displays topology.DisplayEnumerator
	service  *screenshot.Service
}

var newEnvironment = func() environment {
	return environment{displays: display.New(), service: screenshot.New()}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args))
}

func runWithArgs(args []string) error {
	return runWithIO(args, os.Stdout)
}

func runWithIO(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		args = []string{"screen-select"}
	}

	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	cmd.SetOut(stdout)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "screen-select",
		Short:         "Select a screen region across all monitors",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	pf.StringVar(&opts.replay, "replay", "", "Drive the overlays from a YAML event script instead of real input")
	pf.Float32Var(&opts.focalScale, "focal-scale", 0, "Force the focal scale factor (0 = monitor under the pointer)")

	cmd.AddCommand(newScreensCmd(opts), newSelectCmd(opts), newCaptureCmd(opts), newResidentCmd(opts))
	return cmd
}

func newScreensCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "screens",
		Short: "List the monitors with their capture identity and scale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := opts.bootstrap(false); err != nil {
				return err
			}
			env := newEnvironment()
			screens, err := topology.Enumerate(env.displays, env.service)
			if err != nil {
				return err
			}
			if err := writeScreens(cmd.OutOrStdout(), screens, opts.jsonOutput); err != nil || opts.jsonOutput {
				return err
			}
			return writeDesktop(cmd.OutOrStdout(), screens, env.service)
		},
	}
}

func newSelectCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "select",
		Short: "Run one selection session and print the bounding box",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.bootstrap(false)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			res, ok, err := session.RequestBounding(ctx, opts.sessionOptions(cfg, newEnvironment()))
			if err != nil {
				return err
			}
			if !ok {
				return session.ErrSelectionCancelled
			}
			return writeSelection(cmd.OutOrStdout(), res, opts.jsonOutput)
		},
	}
}

func newCaptureCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Select a region and export the captured pixels",
		Long: "Select a region and export the captured pixels.\n\n" +
			"With --screen or --all no overlay is shown: whole screens (or --area of one screen, in\n" +
			"physical pixels relative to it) are captured directly. Screen ids are listed by `screens`.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapture(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.outputDir, "output", "o", "", "Directory for saved captures (default OUTPUT_DIR or the pictures folder)")
	cmd.Flags().BoolVar(&opts.toStdout, "stdout", false, "Write the PNG to stdout instead of a file")
	cmd.Flags().BoolVar(&opts.toClipboard, "clipboard", false, "Also copy the capture to the clipboard")
	cmd.Flags().BoolVar(&opts.delegate, "delegate", false, "Hand the request to a running resident when one exists")
	cmd.Flags().BoolVar(&opts.all, "all", false, "Capture every screen without selecting")
	cmd.Flags().Uint32Var(&opts.screenID, "screen", 0, "Capture the screen with this id without selecting")
	cmd.Flags().StringVar(&opts.area, "area", "", "With --screen, capture only x,y,w,h of that screen")
	return cmd
}

func newResidentCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resident",
		Short: "Stay in the tray and start a selection on the global hotkey",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResident(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.hotkey, "hotkey", "", "Global hotkey (default HOTKEY or "+config.DefaultHotkey+")")
	cmd.Flags().StringVarP(&opts.outputDir, "output", "o", "", "Directory for saved captures")
	return cmd
}

func (o *cliOptions) loadOptions() config.LoadOptions {
	return config.LoadOptions{
		OutputDirOverride:  o.outputDir,
		FocalScaleOverride: o.focalScale,
		HotkeyOverride:     o.hotkey,
	}
}

func (o *cliOptions) bootstrap(needClipboard bool) (*config.Config, error) {
	return runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions:   o.loadOptions(),
		SetupLogging:  o.setupLogging,
		NeedClipboard: needClipboard,
	})
}

func (o *cliOptions) setupLogging(cfg *config.Config) {
	if o.verbose {
		logutil.Verbose(os.Stderr)
		return
	}
	logutil.Setup(cfg.EnableFileLogging, cfg.LogLevel, cfg.LogDir)
}

func (o *cliOptions) driverFactory() session.DriverFactory {
	if o.replay == "" {
		return toolkit.NewNative
	}
	path := o.replay
	return func(float32) (toolkit.Driver, error) {
		d, err := scripted.Load(path)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

func (o *cliOptions) sessionOptions(cfg *config.Config, env environment) session.Options {
	return session.Options{
		Displays:   env.displays,
		Directory:  env.service,
		NewDriver:  o.driverFactory(),
		FocalScale: cfg.FocalScale,
	}
}

func runCapture(cmd *cobra.Command, opts *cliOptions) error {
	if opts.toStdout && opts.jsonOutput {
		return errors.New("--stdout and --json cannot be combined")
	}
	byScreen := cmd.Flags().Changed("screen")
	switch {
	case opts.all && byScreen:
		return errors.New("--all and --screen cannot be combined")
	case opts.all && opts.toStdout:
		return errors.New("--all cannot write to stdout")
	case opts.area != "" && !byScreen:
		return errors.New("--area needs --screen")
	}
	direct := opts.all || byScreen

	out := cmd.OutOrStdout()
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	if opts.delegate && !direct && !opts.toStdout && opts.replay == "" {
		// The resident's port range may come from the .env file.
		if _, err := config.LoadWithOptions(opts.loadOptions()); err != nil {
			return err
		}
		mode := singleinstance.ModeSave
		if opts.toClipboard {
			mode = singleinstance.ModeClipboard
		}
		delegated, detail, err := singleinstance.NewClient().TryDelegate(ctx, mode)
		if delegated {
			if err != nil {
				return fmt.Errorf("resident: %w", err)
			}
			if detail != "" {
				fmt.Fprintln(out, detail)
			}
			return nil
		}
		if err != nil {
			golog.Warnf("Delegation error: %v; running standalone", err)
		}
	}

	cfg, err := opts.bootstrap(opts.toClipboard)
	if err != nil {
		return err
	}
	env := newEnvironment()
	targets := opts.captureTargets(cfg, out)
	if direct {
		return captureDirect(ctx, out, opts, cfg, env, targets)
	}
	sessOpts := opts.sessionOptions(cfg, env)

	c, err := session.Execute(ctx, session.ExecuteOptions{
		Capture: func(ctx context.Context) (screenshot.Capture, bool, error) {
			return session.RequestCapture(ctx, sessOpts, env.service)
		},
		Target: targets,
	})
	if err != nil {
		return err
	}
	if opts.jsonOutput {
		return writeJSON(out, newCaptureOutput(c, filepath.Join(cfg.OutputDir, session.FileName(c))))
	}
	return nil
}

func (o *cliOptions) captureTargets(cfg *config.Config, out io.Writer) session.MultiTarget {
	var targets session.MultiTarget
	if o.toStdout {
		targets = append(targets, session.StdoutTarget{Writer: out})
	} else {
		ft := session.FileTarget{Dir: cfg.OutputDir}
		if !o.jsonOutput {
			ft.Report = out
		}
		targets = append(targets, ft)
	}
	if o.toClipboard || cfg.CopyToClipboard {
		targets = append(targets, session.ClipboardTarget{})
	}
	return targets
}

// captureDirect captures whole screens, or an area of one, without running a selection session.
func captureDirect(ctx context.Context, out io.Writer, opts *cliOptions, cfg *config.Config, env environment, target session.ResultTarget) error {
	screens, err := topology.Enumerate(env.displays, env.service)
	if err != nil {
		return err
	}

	var captures []screenshot.Capture
	if opts.all {
		captures, err = env.service.CaptureAll()
	} else {
		var c screenshot.Capture
		c, err = captureScreen(env.service, screens, opts.screenID, opts.area)
		captures = []screenshot.Capture{c}
	}
	if err != nil {
		return err
	}

	results := make([]CaptureResult, 0, len(captures))
	for _, c := range captures {
		if s, ok := topology.Find(screens, c.ScreenID); ok {
			c.ScaleFactor = s.ScaleFactor
		}
		delivered, err := session.Execute(ctx, session.ExecuteOptions{
			Capture: func(context.Context) (screenshot.Capture, bool, error) { return c, true, nil },
			Target:  target,
		})
		if err != nil {
			return err
		}
		results = append(results, newCaptureOutput(delivered, filepath.Join(cfg.OutputDir, session.FileName(delivered))))
	}

	if !opts.jsonOutput {
		return nil
	}
	if opts.all {
		return writeJSON(out, results)
	}
	return writeJSON(out, results[0])
}

func captureScreen(svc *screenshot.Service, screens []topology.ScreenDescriptor, id uint32, area string) (screenshot.Capture, error) {
	if _, ok := topology.Find(screens, id); !ok {
		return screenshot.Capture{}, fmt.Errorf("%w: id %d", screenshot.ErrDisplayNotFound, id)
	}
	if area == "" {
		return svc.CaptureByID(id)
	}
	r, err := parseArea(area)
	if err != nil {
		return screenshot.Capture{}, err
	}
	return svc.CaptureArea(id, r.X, r.Y, r.W, r.H)
}

// parseArea reads "x,y,w,h".
func parseArea(text string) (geometry.Rect, error) {
	parts := strings.Split(text, ",")
	if len(parts) != 4 {
		return geometry.Rect{}, fmt.Errorf("invalid area %q: want x,y,w,h", text)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return geometry.Rect{}, fmt.Errorf("invalid area %q: %w", text, err)
		}
		v[i] = n
	}
	r := geometry.Rect{X: v[0], Y: v[1], W: v[2], H: v[3]}
	if r.Empty() {
		return geometry.Rect{}, fmt.Errorf("invalid area %q: width and height must be positive", text)
	}
	return r, nil
}

func runResident(parent context.Context, opts *cliOptions) error {
	cfg, err := opts.bootstrap(true)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(parent)
	defer stop()

	srv := singleinstance.NewServer()
	if err := srv.Start(ctx); err != nil {
		start, _ := singleinstance.PortRange()
		return fmt.Errorf("a resident is already running on port %d: %w", start, err)
	}
	defer srv.Close()

	env := newEnvironment()
	sessOpts := opts.sessionOptions(cfg, env)
	capture := func(ctx context.Context) (screenshot.Capture, bool, error) {
		return session.RequestCapture(ctx, sessOpts, env.service)
	}
	saveTarget := session.FileTarget{Dir: cfg.OutputDir}
	var target session.ResultTarget = saveTarget
	if cfg.CopyToClipboard {
		target = session.MultiTarget{saveTarget, session.ClipboardTarget{}}
	}

	loop := eventloop.New(cfg, capture, target)
	tooltip := fmt.Sprintf("Screen Select - Press %s to select", cfg.Hotkey)
	loop.SetDefaultTooltip(tooltip)

	golog.Infof("Screen Select resident initialized")
	golog.Infof("Hotkey: %s", cfg.Hotkey)
	golog.Infof("Output directory: %s", cfg.OutputDir)

	go serveDelegated(ctx, srv, loop, cfg)
	go func() {
		<-ctx.Done()
		tray.Quit()
	}()

	tray.SetAboutExtra(fmt.Sprintf("Hotkey: %s\nSaving to: %s", cfg.Hotkey, cfg.OutputDir))
	tray.Run(tray.Options{
		Title:   "Screen Select",
		Tooltip: tooltip,
		About:   "Screen Select\nDrag a rectangle on any monitor, then press Enter or the green button.",
		OnReady: func() {
			unhook, err := loop.StartHotkey(cfg.Hotkey)
			if err != nil {
				golog.Errorf("Failed to register hotkey %q: %v", cfg.Hotkey, err)
			} else {
				go func() {
					<-ctx.Done()
					unhook()
				}()
			}
			go func() {
				if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					golog.Errorf("event loop stopped: %v", err)
				}
			}()
		},
		OnCapture: loop.Trigger,
		OnQuit:    stop,
	})
	return nil
}

// serveDelegated forwards requests from one-shot invocations into the loop and answers each one
// when its export finishes.
func serveDelegated(ctx context.Context, srv singleinstance.Server, loop *eventloop.Loop, cfg *config.Config) {
	for {
		conn, err := srv.Next(ctx)
		if err != nil {
			return
		}
		var target session.ResultTarget = session.FileTarget{Dir: cfg.OutputDir}
		if conn.Request().Mode == singleinstance.ModeClipboard {
			target = session.ClipboardTarget{}
		}
		mode := conn.Request().Mode
		loop.Request(target, func(c screenshot.Capture, err error) {
			defer conn.Close()
			if err != nil {
				_ = conn.RespondError(err.Error())
				return
			}
			detail := ""
			if mode == singleinstance.ModeSave {
				detail = filepath.Join(cfg.OutputDir, session.FileName(c))
			}
			_ = conn.RespondSuccess(detail)
		})
	}
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range legacyFlags {
			switch {
			case arg == "-"+name:
				normalized[i] = "--" + name
			case strings.HasPrefix(arg, "-"+name+"="):
				normalized[i] = "--" + arg[1:]
			}
		}
	}

	return normalized
}

var legacyFlags = []string{"json", "verbose", "replay", "focal-scale", "output", "stdout", "clipboard", "delegate", "hotkey"}

type rectOutput struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func newRectOutput(r geometry.Rect) rectOutput {
	return rectOutput{X: r.X, Y: r.Y, Width: r.W, Height: r.H}
}

type screenOutput struct {
	ID          uint32     `json:"id"`
	Num         int        `json:"num"`
	Primary     bool       `json:"primary"`
	ScaleFactor float32    `json:"scale_factor"`
	Real        rectOutput `json:"real"`
	Origin      rectOutput `json:"origin"`
}

type SelectionResult struct {
	ScreenID    uint32  `json:"screen_id"`
	X1          int     `json:"x1"`
	Y1          int     `json:"y1"`
	X2          int     `json:"x2"`
	Y2          int     `json:"y2"`
	ScaleFactor float32 `json:"scale_factor"`
}

type CaptureResult struct {
	ScreenID    uint32     `json:"screen_id"`
	ScaleFactor float32    `json:"scale_factor"`
	Bounds      rectOutput `json:"bounds"`
	Path        string     `json:"path,omitempty"`
}

func newCaptureOutput(c screenshot.Capture, path string) CaptureResult {
	return CaptureResult{
		ScreenID:    c.ScreenID,
		ScaleFactor: c.ScaleFactor,
		Bounds:      newRectOutput(c.Bounds),
		Path:        path,
	}
}

func writeScreens(w io.Writer, screens []topology.ScreenDescriptor, jsonOutput bool) error {
	if jsonOutput {
		list := make([]screenOutput, len(screens))
		for i, s := range screens {
			list[i] = screenOutput{
				ID:          s.ID,
				Num:         s.Num,
				Primary:     s.Primary,
				ScaleFactor: s.ScaleFactor,
				Real:        newRectOutput(s.RealRect),
				Origin:      newRectOutput(s.OriginRect()),
			}
		}
		return writeJSON(w, list)
	}
	for _, s := range screens {
		primary := ""
		if s.Primary {
			primary = " primary"
		}
		r := s.RealRect
		fmt.Fprintf(w, "screen %d: id=%d scale=%g real=%dx%d+%d+%d%s\n",
			s.Num, s.ID, s.ScaleFactor, r.W, r.H, r.X, r.Y, primary)
	}
	return nil
}

// writeDesktop prints the extent of the whole desktop in real space and in capture pixels.
func writeDesktop(w io.Writer, screens []topology.ScreenDescriptor, svc *screenshot.Service) error {
	extent := topology.Bounds(screens)
	_, err := fmt.Fprintf(w, "desktop: real=%dx%d+%d+%d", extent.W, extent.H, extent.X, extent.Y)
	if err != nil {
		return err
	}
	if origin, err := svc.VirtualBounds(); err == nil {
		_, _ = fmt.Fprintf(w, " origin=%dx%d+%d+%d", origin.W, origin.H, origin.X, origin.Y)
	}
	_, err = fmt.Fprintln(w)
	return err
}

func writeSelection(w io.Writer, res session.Result, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(w, SelectionResult{
			ScreenID:    res.ScreenID,
			X1:          res.X1,
			Y1:          res.Y1,
			X2:          res.X2,
			Y2:          res.Y2,
			ScaleFactor: res.ScaleFactor,
		})
	}
	_, err := fmt.Fprintf(w, "screen=%d x1=%d y1=%d x2=%d y2=%d scale=%g\n",
		res.ScreenID, res.X1, res.Y1, res.X2, res.Y2, res.ScaleFactor)
	return err
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}
