// Command tableseg finds the objects standing on detected table tops in one
// depth frame, or serves the same pipeline over HTTP and gRPC.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/banshee-data/tableseg/internal/api"
	"github.com/banshee-data/tableseg/internal/config"
	"github.com/banshee-data/tableseg/internal/fsutil"
	"github.com/banshee-data/tableseg/internal/store"
	"github.com/banshee-data/tableseg/internal/version"
)

var (
	configFile  = flag.String("config", "", "Tuning config (.json, .yaml); built-in defaults when empty")
	framePath   = flag.String("frame", "", "Frame JSON with points and table planes")
	depthPath   = flag.String("depth", "", "16-bit depth PNG, back-projected with the config camera")
	planesPath  = flag.String("planes", "", "JSON array of table boxes; required with -depth, overrides the frame's planes")
	rgbPath     = flag.String("rgb", "", "Colour image drawn under the label overlay")
	outDir      = flag.String("out", "out", "Output directory")
	saveFrame   = flag.Bool("save-frame", false, "Write the frame built from -depth to the output directory")
	dbPath      = flag.String("db", "", "SQLite file recording every run; empty disables")
	listen      = flag.String("listen", "", "Serve the HTTP API on this address instead of processing one frame")
	grpcListen  = flag.String("grpc-listen", "", "Serve the gRPC Segmenter service on this address")
	remote      = flag.String("remote", "", "Base URL of a tableseg server to send the frame to, or grpc://host:port")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg := config.DefaultTuningConfig()
	if *configFile != "" {
		loaded, err := config.LoadTuningConfig(*configFile)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = cfg.Merge(loaded)
		log.Printf("loaded tuning config from %s", *configFile)
	}

	var db *store.DB
	if *dbPath != "" {
		var err error
		db, err = store.Open(*dbPath)
		if err != nil {
			log.Fatalf("failed to open run database: %v", err)
		}
		defer db.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *listen != "" || *grpcListen != "" {
		if err := serve(ctx, *listen, *grpcListen, cfg, db); err != nil {
			log.Fatalf("server failed: %v", err)
		}
		return
	}

	opts := runOptions{
		FramePath:  *framePath,
		DepthPath:  *depthPath,
		PlanesPath: *planesPath,
		RGBPath:    *rgbPath,
		OutDir:     *outDir,
		SaveFrame:  *saveFrame,
		Remote:     *remote,
	}
	summary, err := run(ctx, fsutil.OSFileSystem{}, cfg, db, opts)
	if err != nil {
		log.Fatalf("segmentation failed: %v", err)
	}
	log.Print(summary)
}

// serve runs the HTTP API on addr and the gRPC service on grpcAddr until ctx
// is cancelled. Either address may be empty to skip that server.
func serve(ctx context.Context, addr, grpcAddr string, cfg *config.TuningConfig, db *store.DB) error {
	apiServer := api.NewServer(cfg, db)

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	var server *http.Server
	if addr != "" {
		mux := apiServer.ServeMux()
		if err := apiServer.AttachAdminRoutes(mux); err != nil {
			return fmt.Errorf("failed to attach admin routes: %w", err)
		}
		server = &http.Server{
			Addr:    addr,
			Handler: api.LoggingMiddleware(mux),
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Printf("listening on %s", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	var grpcServer *grpc.Server
	if grpcAddr != "" {
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			if server != nil {
				server.Close()
				wg.Wait()
			}
			return fmt.Errorf("failed to listen for gRPC: %w", err)
		}
		grpcServer = apiServer.NewGRPCServer()
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Printf("gRPC server listening on %s", lis.Addr())
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			server.Close()
		}
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	wg.Wait()
	log.Print("server routines stopped")
	return serveErr
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "%s\n\nUsage:\n", version.String())
		fmt.Fprintf(flag.CommandLine.Output(), "  tableseg -frame frame.json [-out dir]\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  tableseg -depth depth.png -planes planes.json [-rgb color.png] [-out dir]\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  tableseg -listen :8080 [-grpc-listen :50051] [-db runs.db]\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  tableseg -frame frame.json -remote grpc://host:50051\n\n")
		flag.PrintDefaults()
	}
}
