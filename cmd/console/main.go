// Command console is a terminal stand-in for the admin console screens: it
// drives the session core the same way a CRUD screen would, checking session
// usability before issuing tenant-scoped API calls.
//
// Usage:
//
//	console login -username <email> -password <password>
//	console status
//	console tenant <schema>
//	console get <path>
//	console logout
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/nivexa/go-console-client/auth"
	"github.com/nivexa/go-console-client/gateway"
	"github.com/nivexa/go-console-client/internal/config"
	"github.com/nivexa/go-console-client/session"
	"github.com/nivexa/go-console-client/session/filerepo"
	"github.com/nivexa/go-console-client/session/redisrepo"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	_ = godotenv.Load() // optional .env, env vars win

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := newLogger(cfg.Debug)

	repo, err := newSessionRepo(cfg)
	if err != nil {
		return err
	}
	sessions, err := session.New(repo)
	if err != nil {
		return err
	}
	gw, err := gateway.New(sessions, gateway.Config{
		Scheme:        cfg.APIScheme,
		TenantDomain:  cfg.TenantDomain,
		DefaultOrigin: cfg.DefaultOrigin,
	}, gateway.WithLogger(log))
	if err != nil {
		return err
	}
	coordinator, err := auth.NewCoordinator(gw, sessions, auth.WithLogger(log))
	if err != nil {
		return err
	}

	if len(args) == 0 {
		displayAppname(cfg.AppName)
		usage()
		return nil
	}

	ctx := context.Background()
	switch args[0] {
	case "login":
		return login(ctx, coordinator, args[1:])
	case "logout":
		return coordinator.ClearSession()
	case "status":
		return status(gw, coordinator, sessions)
	case "tenant":
		if len(args) < 2 {
			return fmt.Errorf("usage: console tenant <schema>")
		}
		return sessions.SetTenant(args[1])
	case "get":
		if len(args) < 2 {
			return fmt.Errorf("usage: console get <path>")
		}
		return get(ctx, gw, coordinator, args[1])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func login(ctx context.Context, coordinator *auth.Coordinator, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	username := fs.String("username", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := coordinator.Authenticate(ctx, *username, *password); err != nil {
		return err
	}
	fmt.Println("Logged in.")
	return nil
}

func status(gw *gateway.Gateway, coordinator *auth.Coordinator, sessions *session.Store) error {
	fmt.Printf("State:  %s\n", coordinator.State())
	if base, err := gw.BaseURL(); err == nil {
		fmt.Printf("API:    %s\n", base)
	}
	if tenant, err := sessions.TenantProfile(); err == nil && tenant != nil {
		fmt.Printf("Tenant: %s (%s)\n", tenant.Name, tenant.SchemaName)
	}
	if user, err := sessions.UserProfile(); err == nil && user != nil {
		fmt.Printf("User:   %s\n", user.FullName())
	}
	return nil
}

// get mirrors the protected-screen flow: verify the session is usable
// (refreshing inline if expired), then call the gateway.
func get(ctx context.Context, gw *gateway.Gateway, coordinator *auth.Coordinator, path string) error {
	if !coordinator.SessionUsable(ctx) {
		return fmt.Errorf("session expired: log in again with 'console login'")
	}
	result := gw.Get(ctx, path, nil)
	if !result.Success {
		return fmt.Errorf("%s", result.Error)
	}
	fmt.Println(string(result.Data))
	return nil
}

func newSessionRepo(cfg *config.Config) (session.Repo, error) {
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return redisrepo.New(redis.NewClient(opts), cfg.RedisKey)
	}
	return filerepo.New(cfg.SessionFile)
}

func newLogger(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

func usage() {
	fmt.Println("Commands:")
	fmt.Println("  login -username <email> -password <password>")
	fmt.Println("  logout")
	fmt.Println("  status")
	fmt.Println("  tenant <schema>")
	fmt.Println("  get <path>")
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
