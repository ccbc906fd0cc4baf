package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nstyle/dealership/internal/config"
	"github.com/nstyle/dealership/internal/engine"
	"github.com/nstyle/dealership/internal/publish"
	"github.com/nstyle/dealership/internal/raster"
	"github.com/nstyle/dealership/internal/storyboard"
	"github.com/nstyle/dealership/internal/system"
	"github.com/nstyle/dealership/internal/video"
)

func newPromoCommand(ctx *commandContext) *cobra.Command {
	promoCmd := &cobra.Command{
		Use:   "promo",
		Short: "Render the promotional video",
	}

	promoCmd.AddCommand(newPromoRenderCommand(ctx))
	promoCmd.AddCommand(newPromoPlanCommand(ctx))
	promoCmd.AddCommand(newPromoStoryboardCommand())

	return promoCmd
}

type promoFlags struct {
	storyboard string
	output     string
	fps        int
	workers    int
	rasterizer string
	publish    bool
	stats      bool
}

// apply copies the flags the user set over the configuration.
func (f *promoFlags) apply(cmd *cobra.Command, p *config.Promo) {
	flags := cmd.Flags()
	if flags.Changed("storyboard") {
		p.Storyboard = f.storyboard
	}
	if flags.Changed("output") {
		p.Output = f.output
	}
	if flags.Changed("fps") {
		p.FPS = f.fps
	}
	if flags.Changed("workers") {
		p.Workers = f.workers
	}
	if flags.Changed("rasterizer") {
		p.Rasterizer = f.rasterizer
	}
	if flags.Changed("stats") {
		p.ShowStats = f.stats
	}
}

func (f *promoFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.storyboard, "storyboard", "", "Storyboard YAML file (default: built-in campaign)")
	cmd.Flags().IntVar(&f.fps, "fps", 30, "Frames per second")
}

func newPromoRenderCommand(ctx *commandContext) *cobra.Command {
	var f promoFlags

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render frames and encode the promo MP4",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			p := cfg.Promo
			f.apply(cmd, &p)
			if f.publish && p.Publish.Bucket == "" {
				return fmt.Errorf("--publish needs promo.publish.bucket or NSTYLE_S3_BUCKET")
			}

			log := ctx.log()
			system.InitResourceLimits(log)

			sb, err := storyboard.Load(p.Storyboard)
			if err != nil {
				return err
			}

			workers := p.Workers
			if workers <= 0 {
				workers = system.Workers()
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			enc := &video.FFmpegEncoder{
				FFmpegPath:  p.FFmpegPath,
				FFprobePath: p.FFprobePath,
				Codec:       p.Codec,
				PixelFormat: p.PixelFormat,
				Quality:     p.Quality,
				Preset:      p.Preset,
				Verify:      p.Verify,
				Logger:      log,
			}

			project := engine.NewPromoProject(engine.Options{
				FPS:          p.FPS,
				Workers:      workers,
				Output:       p.Output,
				TempRoot:     p.TempDir,
				ShowStats:    p.ShowStats,
				BenchmarkLog: p.BenchmarkLog,
				BuildVersion: version,
			}, sb, nil, enc, log)
			project.NewRasterizer = func(frameDir string) (raster.Rasterizer, error) {
				return raster.New(raster.Options{
					Kind:    p.Rasterizer,
					Fonts:   p.Fonts,
					Dir:     frameDir,
					FitzDPI: p.FitzDPI,
				})
			}
			if f.publish {
				pub, err := publish.NewS3Publisher(runCtx, p.Publish)
				if err != nil {
					return err
				}
				project.Publisher = pub
			}

			report, err := project.Run(runCtx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Promo video generated at: %s\n", report.Output)
			if report.Location != "" {
				fmt.Fprintf(out, "Published to: %s\n", report.Location)
			}
			return nil
		},
	}

	f.register(cmd)
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output MP4 path")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "Concurrent frame workers (default: physical cores)")
	cmd.Flags().StringVar(&f.rasterizer, "rasterizer", "", "Rasterizer: vector or fitz")
	cmd.Flags().BoolVar(&f.publish, "publish", false, "Upload the result to S3 after encoding")
	cmd.Flags().BoolVar(&f.stats, "stats", false, "Log timings and append them to the benchmark log")
	return cmd
}

func newPromoPlanCommand(ctx *commandContext) *cobra.Command {
	var f promoFlags

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the segment and frame plan without rendering",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			p := cfg.Promo
			f.apply(cmd, &p)

			sb, err := storyboard.Load(p.Storyboard)
			if err != nil {
				return err
			}
			if err := sb.Validate(p.FPS); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), planTable(sb, p.FPS))
			return nil
		},
	}

	f.register(cmd)
	return cmd
}

func planTable(sb *storyboard.Storyboard, fps int) string {
	var rows [][]string
	first, seconds := 0, 0.0
	for i, seg := range sb.Segments {
		n := storyboard.FrameCount(seg.Duration, fps)
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			seg.Title,
			seg.Subtitle,
			fmt.Sprintf("%.2fs", seg.Duration),
			strconv.Itoa(n),
			fmt.Sprintf("%d-%d", first, first+n-1),
		})
		first += n
		seconds += seg.Duration
	}
	return renderTable(
		[]string{"#", "Title", "Subtitle", "Duration", "Frames", "Global"},
		rows,
		[]string{"", "", "Total", fmt.Sprintf("%.2fs", seconds), strconv.Itoa(sb.TotalFrames(fps)), fmt.Sprintf("@ %d fps", fps)},
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight},
	)
}

func newPromoStoryboardCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "storyboard",
		Short:       "Write the built-in storyboard as an editable YAML file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if !overwrite {
				if _, err := os.Stat(targetPath); err == nil {
					return fmt.Errorf("storyboard already exists at %s (use --overwrite to replace it)", targetPath)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check storyboard path: %w", err)
				}
			}
			if err := storyboard.Write(storyboard.Default(), targetPath); err != nil {
				return fmt.Errorf("write storyboard: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote storyboard to %s\n", targetPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "storyboard.yaml", "Destination file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite an existing file")
	return cmd
}
