// Command ecugw runs the ECU serial/TCP gateway: it bridges three
// serial links carrying SLIP-framed ECU messages to a TCP segment
// where PC clients exchange the same messages length-prefixed.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/ecugw/gateway/gateway"
	"github.com/ecugw/gateway/router"
	"github.com/ecugw/gateway/transport"
)

func main() {
	code := run()
	os.Exit(code)
}

const (
	exitOK         = 0
	exitSetupError = 1
	exitBadArgs    = 2
)

func run() int {
	var (
		listenPort = pflag.IntP("port", "p", 9100, "TCP listen port for PC clients.")
		link0      = pflag.String("link0", "", "Serial device for node 1 (required).")
		link1      = pflag.String("link1", "", "Serial device for node 2 (required).")
		link2      = pflag.String("link2", "", "Serial device for node 3 (required).")
		baud       = pflag.Int("baud", 115200, "Baud rate shared by all three serial links.")
		logLevel   = pflag.String("log-level", "info", "Log level: debug, info, warn, or error.")
		help       = pflag.BoolP("help", "h", false, "Display help text.")
	)
	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "ecugw bridges three serial ECU links to a TCP client segment.")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if *help {
		pflag.Usage()
		return exitOK
	}

	level, err := parseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		pflag.Usage()
		return exitBadArgs
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	devicePaths := [router.LinkCount]string{*link0, *link1, *link2}
	for i, path := range devicePaths {
		if path == "" {
			fmt.Fprintf(os.Stderr, "missing required flag: --link%d\n", i)
			pflag.Usage()
			return exitBadArgs
		}
	}

	gw, err := setup(log, *listenPort, devicePaths, *baud)
	if err != nil {
		log.Error("setup failed", "error", err)
		return exitSetupError
	}
	defer gw.Close()

	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sig
		log.Info("received signal, shutting down", "signal", s)
		close(stop)
	}()

	log.Info("gateway running", "port", *listenPort, "links", devicePaths)
	if err := gw.Run(stop); err != nil {
		log.Error("event loop exited", "error", err)
		return exitSetupError
	}
	return exitOK
}

func setup(log *slog.Logger, port int, devicePaths [router.LinkCount]string, baud int) (*gateway.Gateway, error) {
	listener, err := transport.Listen(port)
	if err != nil {
		return nil, fmt.Errorf("listen on port %d: %w", port, err)
	}

	var serials [router.LinkCount]*transport.SerialEndpoint
	for i, path := range devicePaths {
		s, err := transport.OpenSerial(path, baud, log)
		if err != nil {
			listener.Close()
			for j := 0; j < i; j++ {
				serials[j].Close()
			}
			return nil, fmt.Errorf("open serial link %d (%s): %w", i, path, err)
		}
		serials[i] = s
	}

	gw, err := gateway.New(log, listener, serials)
	if err != nil {
		listener.Close()
		for _, s := range serials {
			s.Close()
		}
		return nil, err
	}
	return gw, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
