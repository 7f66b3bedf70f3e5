package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mukuvi/mukuvios/pkg/configuration"
	"github.com/mukuvi/mukuvios/pkg/console"
	"github.com/mukuvi/mukuvios/pkg/gateway"
	"github.com/mukuvi/mukuvios/pkg/kernel"
	"github.com/mukuvi/mukuvios/pkg/logger"
	"github.com/mukuvi/mukuvios/pkg/shell"
	tlsmanager "github.com/mukuvi/mukuvios/pkg/tls"
)

func main() {
	configPath := flag.String("config", "settings.cfg", "path to the configuration file")
	shellMode := flag.Bool("shell", false, "run a local interactive shell instead of the gateway server")
	flag.Parse()

	// Configuration first, everything else reads from it
	if err := configuration.Initialize(*configPath); err != nil {
		fmt.Printf("Error initializing configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(); err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()
	logger.ConfigInfo("system starting, configuration loaded from %s", *configPath)

	ctx := context.Background()
	k, err := kernel.Boot(ctx)
	if err != nil {
		logger.KernelError("boot failed: %v", err)
		fmt.Printf("Boot failed: %v\n", err)
		os.Exit(1)
	}

	sh := shell.New(k)

	if *shellMode {
		runConsole(ctx, k, sh)
		return
	}

	runGateway(ctx, k, sh)
}

// runConsole runs the local interactive terminal until logout or shutdown.
func runConsole(ctx context.Context, k *kernel.Kernel, sh *shell.Shell) {
	c := console.New(k, sh)
	err := c.Run(ctx)

	if shutdownErr := k.Shutdown(ctx); shutdownErr != nil {
		logger.KernelError("shutdown: %v", shutdownErr)
	}

	if err != nil && !errors.Is(err, console.ErrShutdown) {
		fmt.Printf("Console error: %v\n", err)
		os.Exit(1)
	}
}

// runGateway serves the browser-facing endpoints until a signal arrives
// or a session runs the shutdown command.
func runGateway(ctx context.Context, k *kernel.Kernel, sh *shell.Shell) {
	g := gateway.New(k, sh)

	mux := http.NewServeMux()
	g.RegisterRoutes(mux)

	// Static front-end assets, when present
	webRoot := configuration.GetString("Network", "web_root", "public")
	if info, err := os.Stat(webRoot); err == nil && info.IsDir() {
		mux.Handle("/", http.FileServer(http.Dir(webRoot)))
	}

	httpPort := configuration.GetString("Network", "http_port", "3000")

	tlsMgr, err := tlsmanager.NewManager()
	if err != nil {
		logger.GatewayError("TLS setup failed: %v", err)
		fmt.Printf("TLS setup failed: %v\n", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:    ":" + httpPort,
		Handler: mux,
	}

	errCh := make(chan error, 2)

	if tlsMgr.IsEnabled() {
		httpsServer := &http.Server{
			Addr:      ":" + tlsMgr.GetHTTPSPort(),
			Handler:   mux,
			TLSConfig: tlsMgr.GetTLSConfig(),
		}

		// Plain HTTP side carries ACME challenges and optional redirects
		httpHandler := tlsMgr.GetHTTPHandler(tlsMgr.GetHTTPSRedirectHandler())
		if httpHandler != nil {
			server.Handler = httpHandler
		}

		go func() {
			logger.GatewayInfo("HTTPS server listening on :%s", tlsMgr.GetHTTPSPort())
			if tlsMgr.UsesLetsEncrypt() {
				errCh <- httpsServer.ListenAndServeTLS("", "")
			} else {
				certFile, keyFile := tlsMgr.GetCertFiles()
				errCh <- httpsServer.ListenAndServeTLS(certFile, keyFile)
			}
		}()
	}

	go func() {
		logger.GatewayInfo("HTTP server listening on :%s", httpPort)
		errCh <- server.ListenAndServe()
	}()

	// Session janitor: drop sessions idle for longer than the allowed maximum
	janitorDone := make(chan struct{})
	go func() {
		interval := configuration.GetDuration("System", "session_cleanup_interval", 30*time.Minute)
		maxIdle := configuration.GetDuration("System", "max_inactive_time", 30*time.Minute)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := k.Identity.CleanupInactiveSessions(maxIdle); n > 0 {
					logger.KernelInfo("cleaned up %d inactive sessions", n)
				}
			case <-janitorDone:
				return
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-sigCh:
		logger.KernelInfo("received signal %v", sig)
	case <-g.ShutdownRequested():
		logger.KernelInfo("shutdown command received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.GatewayError("server failed: %v", err)
			exitCode = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	close(janitorDone)
	g.CloseAll()
	server.Shutdown(shutdownCtx)
	if err := k.Shutdown(shutdownCtx); err != nil {
		logger.KernelError("shutdown: %v", err)
		exitCode = 1
	}

	os.Exit(exitCode)
}
