package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

var flagNames = []string{"-a", "-g", "-d", "-b", "-t", "-r", "-o", "-R", "-l"}

// parseFlags overlays config with command-line flags.
//
// Supported flags (short forms):
//
//	-a string     HTTP bind address (e.g., ":8080")
//	-g string     gRPC bind address (e.g., ":50051")
//	-d string     PostgreSQL DSN
//	-b string     storage backend (memory|postgres)
//	-t duration   access token lifetime (e.g., "15m")
//	-r duration   refresh token lifetime (e.g., "168h")
//	-o string     OTP store (memory|redis)
//	-R string     redis address
//	-l string     log level
//
// Secrets are not accepted as flags; they would leak into the process list.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run HTTP server")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "address and port to run gRPC server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.Storage, "b", config.Storage, "storage backend")
	fs.DurationVar(&config.AccessTokenValidityDuration, "t", config.AccessTokenValidityDuration, "access token lifetime")
	fs.DurationVar(&config.RefreshTokenValidityDuration, "r", config.RefreshTokenValidityDuration, "refresh token lifetime")
	fs.StringVar(&config.OTPStore, "o", config.OTPStore, "OTP store")
	fs.StringVar(&config.RedisAddr, "R", config.RedisAddr, "redis address")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	return fs.Parse(flagx.FilterArgs(args, flagNames))
}
