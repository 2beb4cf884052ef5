package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/tableseg/internal/annotate"
	"github.com/banshee-data/tableseg/internal/api"
	"github.com/banshee-data/tableseg/internal/cloud"
	"github.com/banshee-data/tableseg/internal/config"
	"github.com/banshee-data/tableseg/internal/fsutil"
	"github.com/banshee-data/tableseg/internal/segment"
	"github.com/banshee-data/tableseg/internal/store"
	"github.com/banshee-data/tableseg/internal/visualize"
)

// Output file names inside runOptions.OutDir.
const (
	annotationFile = "annotation.json"
	labelsPNGFile  = "labels.png"
	labelsRawFile  = "labels.raw"
	footprintFile  = "footprint.png"
	frameFile      = "frame.json"
)

// overlayAlpha is the label opacity over an -rgb background.
const overlayAlpha = 0.6

type runOptions struct {
	FramePath  string
	DepthPath  string
	PlanesPath string
	RGBPath    string
	OutDir     string
	SaveFrame  bool
	Remote     string
}

// run segments one frame and writes its outputs. It returns a one-line
// summary for the log.
func run(ctx context.Context, fsys fsutil.FileSystem, cfg *config.TuningConfig, db *store.DB, opts runOptions) (string, error) {
	frame, err := loadFrame(fsys, cfg, opts)
	if err != nil {
		return "", err
	}
	if err := fsys.MkdirAll(opts.OutDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	if opts.SaveFrame {
		if err := writeJSONFile(fsys, filepath.Join(opts.OutDir, frameFile), frame); err != nil {
			return "", err
		}
	}

	if opts.Remote != "" {
		resp, err := segmentRemote(ctx, opts.Remote, frame)
		if err != nil {
			return "", err
		}
		if err := writeJSONFile(fsys, filepath.Join(opts.OutDir, annotationFile), resp.Annotation); err != nil {
			return "", err
		}
		return summarize(resp.Annotation, resp.ValidPoints, time.Duration(resp.DurationMs*float64(time.Millisecond))), nil
	}

	cfg = cfg.Merge(frame.Params)
	if err := cfg.Validate(); err != nil {
		return "", fmt.Errorf("invalid frame params: %w", err)
	}
	pts, err := frame.Cloud()
	if err != nil {
		return "", err
	}
	params := cfg.SegmentParams()
	start := time.Now()
	res, err := segment.SegmentObjectsAboveTable(pts, frame.Planes, params, frame.Height, frame.Width)
	if err != nil {
		return "", err
	}
	elapsed := time.Since(start)

	ann, err := annotate.FromResult(res)
	if err != nil {
		return "", err
	}
	if err := writeJSONFile(fsys, filepath.Join(opts.OutDir, annotationFile), ann); err != nil {
		return "", err
	}
	if err := writeFile(fsys, filepath.Join(opts.OutDir, labelsRawFile), func(w io.Writer) error {
		return visualize.WriteRawLabels(w, res.Labels)
	}); err != nil {
		return "", err
	}

	if cfg.GetEnableVisualization() {
		if err := writeVisuals(fsys, opts, frame, res); err != nil {
			return "", err
		}
	}

	if db != nil {
		rec := store.RunFromResult(res, params, frame.Source, elapsed)
		if err := store.NewRunStore(db.DB).InsertRun(rec); err != nil {
			return "", fmt.Errorf("failed to record run: %w", err)
		}
	}
	return summarize(ann, pts.CountValid(), elapsed), nil
}

// loadFrame reads -frame, or builds a frame from -depth with the configured
// camera. -planes replaces the frame's planes.
func loadFrame(fsys fsutil.FileSystem, cfg *config.TuningConfig, opts runOptions) (*api.Frame, error) {
	var frame *api.Frame
	switch {
	case opts.FramePath != "" && opts.DepthPath != "":
		return nil, errors.New("-frame and -depth are mutually exclusive")
	case opts.FramePath != "":
		f, err := fsys.Open(opts.FramePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open frame: %w", err)
		}
		defer f.Close()
		if frame, err = api.DecodeFrame(f); err != nil {
			return nil, err
		}
		if frame.Source == "" {
			frame.Source = opts.FramePath
		}
	case opts.DepthPath != "":
		if opts.PlanesPath == "" {
			return nil, errors.New("-depth needs -planes")
		}
		c, err := cloudFromDepth(fsys, cfg, opts.DepthPath)
		if err != nil {
			return nil, err
		}
		frame = api.FrameFromCloud(c, nil)
		frame.Source = opts.DepthPath
	default:
		return nil, errors.New("one of -frame or -depth is required")
	}

	if opts.PlanesPath != "" {
		f, err := fsys.Open(opts.PlanesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open planes: %w", err)
		}
		defer f.Close()
		if frame.Planes, err = api.DecodePlanes(f); err != nil {
			return nil, err
		}
	}
	return frame, nil
}

func cloudFromDepth(fsys fsutil.FileSystem, cfg *config.TuningConfig, path string) (*cloud.PointCloud, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open depth image: %w", err)
	}
	defer f.Close()

	depth, err := cloud.ReadDepthPNG(f, cfg.GetDepthScale())
	if err != nil {
		return nil, err
	}
	c, err := cloud.FromDepthImage(depth, cfg.GetIntrinsics())
	if err != nil {
		return nil, err
	}
	return c.Transform(cfg.GetBaseFromCamera()), nil
}

func writeVisuals(fsys fsutil.FileSystem, opts runOptions, frame *api.Frame, res *segment.Result) error {
	var background image.Image
	if opts.RGBPath != "" {
		f, err := fsys.Open(opts.RGBPath)
		if err != nil {
			return fmt.Errorf("failed to open colour image: %w", err)
		}
		defer f.Close()
		if background, _, err = image.Decode(f); err != nil {
			return fmt.Errorf("failed to decode colour image: %w", err)
		}
	}
	overlay, err := visualize.Colorize(res.Labels, background, overlayAlpha)
	if err != nil {
		return err
	}
	if err := writeFile(fsys, filepath.Join(opts.OutDir, labelsPNGFile), func(w io.Writer) error {
		return visualize.WritePNG(w, overlay)
	}); err != nil {
		return err
	}
	return writeFile(fsys, filepath.Join(opts.OutDir, footprintFile), func(w io.Writer) error {
		return visualize.WriteFootprint(w, "png", frame.Planes, res.Objects)
	})
}

func writeFile(fsys fsutil.FileSystem, path string, write func(io.Writer) error) error {
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func writeJSONFile(fsys fsutil.FileSystem, path string, v interface{}) error {
	return writeFile(fsys, path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

func summarize(ann *annotate.Annotation, valid int, elapsed time.Duration) string {
	return fmt.Sprintf("status=%s objects=%d valid=%d in %v", ann.Status, len(ann.Objects), valid, elapsed.Round(time.Microsecond))
}

// grpcScheme marks a -remote target served over gRPC rather than HTTP.
const grpcScheme = "grpc://"

// segmentRemote sends frame to a tableseg server: over gRPC when remote is
// grpc://host:port, otherwise to the HTTP API at that base URL.
func segmentRemote(ctx context.Context, remote string, frame *api.Frame) (*api.SegmentResponse, error) {
	if target, ok := strings.CutPrefix(remote, grpcScheme); ok {
		client, err := api.DialGRPC(target)
		if err != nil {
			return nil, err
		}
		defer client.Close()
		return client.Segment(ctx, frame)
	}
	return api.NewClient(remote, nil).Segment(ctx, frame)
}
