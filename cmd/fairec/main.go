package main

import (
	"fmt"
	"os"
	"time"

	"fai-recorder/internal/app"
	"fai-recorder/internal/tui"

	"github.com/charmbracelet/bubbletea"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

func main() {
	root := &cobra.Command{
		Use:     "fairec",
		Short:   "fairec - microphone session recorder",
		Long:    "fairec is a terminal widget that records microphone audio in sessions.\n\nToggle recording with space, save the finished session with s.",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			if cfgPath == "" {
				cfgPath = app.DefaultConfigPath()
			}
			cfg, err := app.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if backend, _ := cmd.Flags().GetString("backend"); backend != "" {
				cfg.Backend = backend
			}
			if dir, _ := cmd.Flags().GetString("output-dir"); dir != "" {
				cfg.OutputDir = dir
			}

			application, err := app.NewApplication(cfg)
			if err != nil {
				return err
			}
			// Releases the mic if the user quits mid-session. The hint on
			// disk is left saying recording, so the next launch shows the
			// interrupted notice.
			defer application.Shutdown()

			p := tea.NewProgram(tui.New(application))
			_, err = p.Run()
			return err
		},
	}

	root.Flags().String("config", "", "path to config file")
	root.Flags().String("backend", "", "capture backend: auto|ffmpeg|portaudio")
	root.Flags().String("output-dir", "", "directory exported recordings are written to")

	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "List capture devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := app.ListInputDevices()
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				fmt.Println("no capture devices found")
				return nil
			}
			for _, d := range devices {
				fmt.Println(d)
			}
			return nil
		},
	}
	root.AddCommand(devicesCmd)

	inspectCmd := &cobra.Command{
		Use:   "inspect <file.wav>",
		Short: "Show format and duration of an exported WAV recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspectWAV(args[0])
		},
	}
	root.AddCommand(inspectCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func inspectWAV(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	d.ReadInfo()
	if !d.IsValidFile() {
		return fmt.Errorf("%s is not a valid WAV file", path)
	}
	dur, err := d.Duration()
	if err != nil {
		return err
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return err
	}

	fmt.Printf("format:   PCM %d-bit, %d Hz, %d channel(s)\n", d.BitDepth, d.SampleRate, d.NumChans)
	fmt.Printf("duration: %s\n", dur.Round(time.Millisecond))
	fmt.Printf("frames:   %d\n", buf.NumFrames())
	fmt.Printf("peak:     %d\n", peakAmplitude(buf))
	return nil
}

// peakAmplitude scans the decoded samples for the loudest absolute value, a
// quick way to spot an all-silence export.
func peakAmplitude(buf *audio.IntBuffer) int {
	peak := 0
	for _, s := range buf.Data {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}
