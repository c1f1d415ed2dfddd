package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"

	"github.com/eternivity/account-portal/internal/config"
	"github.com/eternivity/account-portal/server"
)

const sessionPurgeInterval = 15 * time.Minute

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	configureLogging(c)
	displayAppname(c.GetAppName())

	var opts []server.Option
	if c.GoogleSignInEnabled() {
		google, err := server.NewGoogleSignIn(context.Background(), c)
		if err != nil {
			return fmt.Errorf("configuring Google sign-in: %w", err)
		}
		opts = append(opts, server.WithGoogleSignIn(google))
	}

	portal, err := server.New(c, opts...)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	stopPurge := startSessionPurge(portal)
	defer stopPurge()

	httpServer := &http.Server{Addr: c.GetPort(), Handler: portal}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func configureLogging(c config.Config) {
	if c.GetEnv() == "DEV" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// startSessionPurge drops idle browser sessions on a ticker and returns a
// stop func.
func startSessionPurge(portal *server.Server) func() {
	ticker := time.NewTicker(sessionPurgeInterval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				portal.PurgeIdleSessions()
			case <-done:
				return
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(done)
	}
}

func listenAndServe(server *http.Server) error {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
