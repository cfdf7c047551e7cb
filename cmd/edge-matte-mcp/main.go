package main

import (
	"fmt"
	"os"

	"github.com/ironsheep/edge-matte-mcp/internal/config"
	"github.com/ironsheep/edge-matte-mcp/internal/logger"
	"github.com/ironsheep/edge-matte-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("edge-matte-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("edge-matte-mcp - MCP server for edge detection and background removal")
			fmt.Println()
			fmt.Println("Usage: edge-matte-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Println("  EDGE_MATTE_LOG_LEVEL=debug       Log level (debug, info, warn, error)")
			fmt.Println("  EDGE_MATTE_DEFAULT_SIZE=M        Default output size (XS, S, M, L, XL, original)")
			fmt.Println("  EDGE_MATTE_MAX_DOWNSCALE=10      Largest shrink factor applied before processing")
			fmt.Println("  EDGE_MATTE_TOLERANCE=30          Default background hue tolerance")
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			return
		default:
			fmt.Fprintf(os.Stderr, "unknown option: %s (see --help)\n", os.Args[1])
			os.Exit(2)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// stdout is for the MCP protocol
	log := logger.NewStderr(cfg.LogLevel)
	log.Debug().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("commit", GitCommit).
		Str("default_size", string(cfg.DefaultSize)).
		Int("max_downscale", cfg.MaxDownscale).
		Int("tolerance", cfg.Tolerance).
		Msg("starting edge-matte-mcp")

	srv := server.New(cfg, log)
	if err := srv.Run(); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
