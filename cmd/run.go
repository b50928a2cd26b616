// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"biosignal/internal/acquisition"
	"biosignal/internal/config"
	"biosignal/internal/engine"
	applog "biosignal/internal/log"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// runFlags override configuration values when set on the command line.
type runFlags struct {
	synthetic       bool
	deviceID        int
	channels        int
	sampleRate      float64
	framesPerBuffer int
	lowLatency      bool
	errorMode       string
	record          bool
	recordDir       string
	spectraDir      string
	profilesFile    string
	session         string
	duration        time.Duration
}

func newRunCommand(opts *options) *cobra.Command {
	flags := &runFlags{}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Acquire samples, publish blocks and analyse spectra until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			flags.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			// Setup signal handling for graceful shutdown
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if flags.duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, flags.duration)
				defer cancel()
			}
			return run(ctx, cfg, flags.session)
		},
	}

	flags.register(runCmd.Flags())
	return runCmd
}

// register binds the flags to f.
func (rf *runFlags) register(f *pflag.FlagSet) {
	// Acquisition
	f.BoolVar(&rf.synthetic, "synthetic", false,
		"Generate a test signal instead of opening an input device")
	f.IntVarP(&rf.deviceID, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'devices' command to see available devices.")
	f.IntVar(&rf.channels, "channels", config.DefaultChannels,
		"Number of channels to capture; only the first is buffered")
	f.Float64VarP(&rf.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	f.IntVarP(&rf.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	f.BoolVarP(&rf.lowLatency, "low-latency", "l", false,
		"Use low latency mode for real-time processing")
	f.StringVar(&rf.errorMode, "error-mode", config.DefaultErrorMode,
		"Buffer reaction to acquisition glitches: clear, discard or zero")

	// Outputs
	f.BoolVarP(&rf.record, "record", "r", false,
		"Record completed blocks to a WAV file")
	f.StringVarP(&rf.recordDir, "output", "o", config.DefaultRecordingDir,
		"Recording directory")
	f.StringVar(&rf.spectraDir, "spectra", "",
		"Directory to save spectra to; empty disables saving")
	f.StringVarP(&rf.profilesFile, "profiles", "p", "",
		"Profile catalog applied to every spectrum")

	// Session
	f.StringVar(&rf.session, "session", "",
		"Session ID attached to every event (default: a new UUID)")
	f.DurationVar(&rf.duration, "duration", 0,
		"Stop after this long, 0 runs until interrupted")
}

// apply copies the flags the user set onto cfg.
func (rf *runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("synthetic") {
		cfg.Acquisition.Synthetic = rf.synthetic
	}
	if changed("device") {
		cfg.Acquisition.DeviceID = rf.deviceID
	}
	if changed("channels") {
		cfg.Acquisition.Channels = rf.channels
	}
	if changed("sample-rate") {
		cfg.Buffer.SampleRate = rf.sampleRate
	}
	if changed("frames-per-buffer") {
		cfg.Acquisition.FramesPerBuffer = rf.framesPerBuffer
	}
	if changed("low-latency") {
		cfg.Acquisition.LowLatency = rf.lowLatency
	}
	if changed("error-mode") {
		cfg.Buffer.ErrorMode = rf.errorMode
	}
	if changed("record") {
		cfg.Recording.Enabled = rf.record
	}
	if changed("output") {
		cfg.Recording.OutputDir = rf.recordDir
	}
	if changed("spectra") {
		cfg.Analysis.OutputDir = rf.spectraDir
	}
	if changed("profiles") {
		cfg.Analysis.ProfilesFile = rf.profilesFile
	}
}

// run drives one session until ctx is done.
func run(ctx context.Context, cfg *config.Config, session string) error {
	if !cfg.Acquisition.Synthetic {
		if err := acquisition.Initialize(); err != nil {
			return err
		}
		defer acquisition.Terminate()
	}

	var opts []engine.Option
	if session != "" {
		opts = append(opts, engine.WithSession(session))
	}
	e, err := engine.NewEngine(cfg, opts...)
	if err != nil {
		return err
	}

	if err := e.Start(ctx); err != nil {
		e.Stop()
		return err
	}
	applog.Infof("Session %s running, press Ctrl+C to stop", e.Session())

	// Block until termination signal is received
	<-ctx.Done()

	if err := e.Stop(); err != nil {
		return fmt.Errorf("failed to stop session: %w", err)
	}
	if rec := e.RecordingFile(); rec != "" {
		applog.Infof("Recording saved to: %s", rec)
	}
	return nil
}
