package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/maauso/media-compiler/internal/bootstrap"
	"github.com/maauso/media-compiler/internal/config"
	"github.com/maauso/media-compiler/internal/intake"
)

type compileFlags struct {
	images    []string
	clip      string
	audio     string
	outputDir string
}

func newCompileCmd(opts ...bootstrap.Option) *cobra.Command {
	var f compileFlags
	cmd := &cobra.Command{
		Use:   "compile --audio song.mp3 (--image a.jpg [--image b.png ...] | --clip loop.gif)",
		Short: "Compile a video from local files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if f.outputDir != "" {
				cfg.OutputDir = f.outputDir
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return compile(cmd, cfg, f, opts...)
		},
	}
	cmd.Flags().StringArrayVar(&f.images, "image", nil, "still image, repeat in display order")
	cmd.Flags().StringVar(&f.clip, "clip", "", "motion clip (GIF or MOV) looped under the audio")
	cmd.Flags().StringVar(&f.audio, "audio", "", "audio track (MP3 or WAV)")
	cmd.Flags().StringVar(&f.outputDir, "output-dir", "", "local output directory (overrides OUTPUT_DIR)")
	_ = cmd.MarkFlagRequired("audio")
	cmd.MarkFlagsMutuallyExclusive("image", "clip")
	cmd.MarkFlagsOneRequired("image", "clip")
	return cmd
}

func compile(cmd *cobra.Command, cfg *config.Config, f compileFlags, opts ...bootstrap.Option) error {
	ctx := cmd.Context()
	logger := cfg.NewLoggerTo(cmd.ErrOrStderr())

	deps, err := bootstrap.NewDependencies(ctx, cfg, logger, opts...)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	paths := make([]string, 0, len(f.images)+2)
	if f.clip != "" {
		paths = append(paths, f.clip)
	}
	paths = append(paths, f.images...)
	paths = append(paths, f.audio)

	files := make([]intake.File, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		files = append(files, intake.File{Name: filepath.Base(p), Data: data})
	}

	res := deps.Intake.Submit(ctx, intake.ChannelAny, files)
	for _, w := range res.Warnings() {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
	}

	out, err := deps.Orchestrator.Export(ctx)
	if err != nil {
		return err
	}

	location := out.Location
	if location == "" {
		location = out.Name
	}
	fmt.Fprintln(cmd.OutOrStdout(), location)
	return nil
}
