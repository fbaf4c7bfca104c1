package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/eringen/podengine"
	"github.com/eringen/podengine/views"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "seed-admin":
		err = runSeedAdmin(os.Args[2:])
	case "hash-password":
		err = runHashPassword(os.Args[2:])
	case "version":
		fmt.Printf("podengine %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	fs.Parse(args)

	cfg, err := podengine.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := podengine.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	app := podengine.New(cfg, views.New(cfg), podengine.WithLogger(logger))
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- app.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errc
}

func runSeedAdmin(args []string) error {
	fs := flag.NewFlagSet("seed-admin", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	email := fs.String("email", os.Getenv("ADMIN_EMAIL"), "admin email")
	name := fs.String("name", "Admin", "admin display name")
	password := fs.String("password", os.Getenv("ADMIN_PASSWORD"), "admin password (prompted when empty)")
	fs.Parse(args)

	if strings.TrimSpace(*email) == "" {
		return errors.New("-email is required")
	}
	if *password == "" {
		p, err := readLine("Password: ")
		if err != nil {
			return err
		}
		*password = p
	}
	if len(*password) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	cfg, err := podengine.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	store, err := podengine.NewStore(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if _, err := store.GetAdminByEmail(ctx, *email); err == nil {
		fmt.Printf("Admin %s already exists, skipping\n", *email)
		return nil
	} else if !errors.Is(err, podengine.ErrNotFound) {
		return err
	}

	hash, err := podengine.HashPassword(*password)
	if err != nil {
		return err
	}
	admin, err := store.CreateAdmin(ctx, podengine.Admin{Email: *email, Name: *name, PasswordHash: hash})
	if err != nil {
		return err
	}
	fmt.Printf("Created admin %s (id %d)\n", admin.Email, admin.ID)
	return nil
}

func runHashPassword(args []string) error {
	password := ""
	if len(args) > 0 {
		password = args[0]
	} else {
		p, err := readLine("Password: ")
		if err != nil {
			return err
		}
		password = p
	}
	hash, err := podengine.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func readLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func printUsage() {
	fmt.Println(`podengine - A podcast site engine built with Go, Echo, and templ

Usage:
  podengine <command> [arguments]

Commands:
  serve           Start the HTTP server
  seed-admin      Create an admin account (-email, -name, -password)
  hash-password   Print a bcrypt hash for a password
  version         Print the podengine version
  help            Show this help message

Examples:
  podengine serve -config podengine.yaml
  podengine seed-admin -email host@example.com -name "Host"`)
}
