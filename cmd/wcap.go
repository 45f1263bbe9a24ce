package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/bnema/waycomp/internal/ui"
	"github.com/bnema/waycomp/internal/wcap"
	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// fs is where the file commands read and write. Tests swap in a memory
// filesystem.
var fs = afero.NewOsFs()

var (
	wcapFormat string
	wcapStep   int
)

var wcapCmd = &cobra.Command{
	Use:   "wcap <capture.wcap> <outdir>",
	Short: "Decode a wcap recording into images",
	Long: `Decode a wcap recording written by the recorder into one image per
frame. Frames are named frame-00000.png and so on.`,
	Args: cobra.ExactArgs(2),
	RunE: runWcap,
}

func init() {
	wcapCmd.Flags().StringVarP(&wcapFormat, "format", "f", "png", "Image format: png or bmp")
	wcapCmd.Flags().IntVar(&wcapStep, "step", 1, "Write every Nth frame")
	rootCmd.AddCommand(wcapCmd)
}

// wcapSummary describes one decode run.
type wcapSummary struct {
	Width, Height int
	Frames        int
	Written       int
	Bytes         uint64
	Duration      time.Duration
}

func runWcap(cmd *cobra.Command, args []string) error {
	summary, err := decodeWcap(args[0], args[1], wcapFormat, wcapStep)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.ReplyView("wcap", map[string]interface{}{
		"size":     fmt.Sprintf("%dx%d", summary.Width, summary.Height),
		"frames":   summary.Frames,
		"written":  fmt.Sprintf("%d images (%s) in %s", summary.Written, humanize.Bytes(summary.Bytes), args[1]),
		"duration": summary.Duration.String(),
	}))
	return nil
}

func decodeWcap(src, outdir, format string, step int) (*wcapSummary, error) {
	if format != "png" && format != "bmp" {
		return nil, fmt.Errorf("unknown image format %q (want png or bmp)", format)
	}
	if step < 1 {
		step = 1
	}

	in, err := fs.Open(src)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	dec, err := wcap.NewDecoder(in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src, err)
	}
	if err := fs.MkdirAll(outdir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", outdir, err)
	}

	summary := &wcapSummary{Width: int(dec.Header.Width), Height: int(dec.Header.Height)}
	var first uint32
	for {
		err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return summary, fmt.Errorf("%s frame %d: %w", src, dec.Frames(), err)
		}
		if dec.Frames() == 1 {
			first = dec.Msecs
		}
		summary.Duration = time.Duration(dec.Msecs-first) * time.Millisecond
		summary.Frames = dec.Frames()

		if (dec.Frames()-1)%step != 0 {
			continue
		}
		name := filepath.Join(outdir, fmt.Sprintf("frame-%05d.%s", dec.Frames()-1, format))
		n, err := writeImage(name, dec, format)
		if err != nil {
			return summary, err
		}
		summary.Written++
		summary.Bytes += n
	}
	return summary, nil
}

func writeImage(name string, dec *wcap.Decoder, format string) (uint64, error) {
	f, err := fs.Create(name)
	if err != nil {
		return 0, err
	}
	if err := wcap.EncodeImage(f, dec.Image(), format); err != nil {
		f.Close()
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return 0, err
	}
	info, err := fs.Stat(name)
	if err != nil {
		return 0, err
	}
	return uint64(info.Size()), nil
}
