package cmd

import (
	"fmt"

	"kaleido/internal/config"
	"kaleido/pkg/build"

	"github.com/spf13/cobra"
)

// Commands selected on the command line.
const (
	CommandRun     = "run"
	CommandList    = "list"
	CommandVersion = "version"
)

// flagValues holds the flags that override the loaded configuration.
type flagValues struct {
	configPath      string
	device          int
	sampleRate      float64
	channels        int
	framesPerBuffer int
	lowLatency      bool
	file            string
	loop            bool
	width           int
	height          int
	refresh         int
	ws              string
	udp             string
	record          bool
	output          string
	tui             bool
	pickDevice      bool
	verbose         bool
}

// ParseArgs parses args (without the program name), loads the configuration
// file and applies the flags that were set on top of it. The returned config
// is nil when cobra handled the invocation itself (--help, --version).
func ParseArgs(args []string) (*config.Config, error) {
	buildInfo := build.GetBuildFlags()
	var (
		flags   flagValues
		options *config.Config
	)

	selected := func(command string) func(*cobra.Command, []string) error {
		return func(c *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(flags.configPath)
			if err != nil {
				return err
			}
			flags.apply(c, cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid flags: %w", err)
			}
			cfg.Command = command
			options = cfg
			return nil
		}
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		Args: cobra.NoArgs,
		RunE: selected(CommandRun),
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Render the kaleidoscope (default)",
			Args:  cobra.NoArgs,
			RunE:  selected(CommandRun),
		},
		&cobra.Command{
			Use:   "list",
			Short: "List available audio devices",
			Args:  cobra.NoArgs,
			RunE:  selected(CommandList),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print build information",
			Args:  cobra.NoArgs,
			RunE:  selected(CommandVersion),
		},
	)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "",
		"Path to a YAML configuration file (default: ./kaleido.yaml or ./config.yaml if present)")

	// Audio source
	pf.IntVarP(&flags.device, "device", "d", config.DefaultDeviceID,
		"Input device ID. Use the 'list' command to see available devices.")
	pf.Float64VarP(&flags.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&flags.channels, "channels", "c", config.DefaultChannels,
		"Number of input channels (1=mono, 2=stereo)")
	pf.IntVarP(&flags.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	pf.BoolVarP(&flags.lowLatency, "low-latency", "l", false,
		"Use the device's low latency setting")
	pf.StringVarP(&flags.file, "file", "f", "",
		"Play and visualize a WAV file instead of capturing input")
	pf.BoolVar(&flags.loop, "loop", false, "Loop the WAV file")

	// Rendering
	pf.IntVar(&flags.width, "width", config.DefaultWidth, "Surface width in pixels")
	pf.IntVar(&flags.height, "height", config.DefaultHeight, "Surface height in pixels")
	pf.IntVar(&flags.refresh, "refresh", config.DefaultRefreshRate, "Frames per second")

	// Outputs
	pf.StringVar(&flags.ws, "ws", config.DefaultWSAddress,
		"Viewer listen address; empty disables the WebSocket viewer")
	pf.StringVar(&flags.udp, "udp", "",
		"Publish band energies as UDP packets to host:port")
	pf.BoolVarP(&flags.record, "record", "r", false,
		"Record the input stream to WAV")
	pf.StringVarP(&flags.output, "output", "o", "",
		"Recording file name. Default is <output_dir>/kaleido-YYYYMMDD-HHMMSS.wav")

	// Interface
	pf.BoolVar(&flags.tui, "tui", false, "Show the terminal control panel")
	pf.BoolVar(&flags.pickDevice, "pick-device", false, "Choose the input device interactively")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Show debug output")

	if args == nil {
		args = []string{} // cobra falls back to os.Args on nil
	}
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return options, nil
}

// apply copies every flag the user set into cfg.
func (f *flagValues) apply(c *cobra.Command, cfg *config.Config) {
	changed := c.Flags().Changed

	if changed("device") {
		cfg.Audio.InputDevice = f.device
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = f.sampleRate
	}
	if changed("channels") {
		cfg.Audio.InputChannels = f.channels
	}
	if changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = f.framesPerBuffer
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = f.lowLatency
	}
	if changed("file") {
		cfg.Audio.File = f.file
	}
	if changed("loop") {
		cfg.Audio.Loop = f.loop
	}
	if changed("width") {
		cfg.Render.Width = f.width
	}
	if changed("height") {
		cfg.Render.Height = f.height
	}
	if changed("refresh") {
		cfg.Render.RefreshRate = f.refresh
	}
	if changed("ws") {
		cfg.Transport.WSEnabled = f.ws != ""
		if f.ws != "" {
			cfg.Transport.WSAddress = f.ws
		}
	}
	if changed("udp") && f.udp != "" {
		cfg.Transport.UDPEnabled = true
		cfg.Transport.UDPTargetAddress = f.udp
	}
	if changed("record") {
		cfg.Recording.Enabled = f.record
	}
	if changed("output") {
		cfg.Recording.File = f.output
	}
	if changed("tui") {
		cfg.UI.TUI = f.tui
	}
	if changed("pick-device") {
		cfg.UI.PickDevice = f.pickDevice
	}
	if changed("verbose") && f.verbose {
		cfg.Debug = true
	}
}
