// Admin tool for the destructive backend wipe operations. Requires a typed
// confirmation before anything is dispatched.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ardanlabs/conf/v3"
	"github.com/joho/godotenv"
	"github.com/walletchat/wchat/chat/app/sdk/backend"
)

const confirmPhrase = "WIPE"

var build = "develop"

func main() {
	if err := run(); err != nil {
		fmt.Printf("Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	godotenv.Load()

	cfg := struct {
		conf.Version
		Backend struct {
			Host string `conf:"default:http://localhost:3000"`
		}
		Auth struct {
			Username string
			Password string `conf:"mask"`
		}
		Target string `conf:"default:all,help:users | messages | all"`
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "Wallet Chat Admin",
		},
	}

	const prefix = "WCHAT_ADMIN"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// -------------------------------------------------------------------------

	ctx := context.Background()

	var token string
	client := backend.New(cfg.Backend.Host, func() string { return token })

	if cfg.Auth.Username != "" {
		_, tkn, err := client.Login(ctx, cfg.Auth.Username, cfg.Auth.Password)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		token = tkn
	}

	// -------------------------------------------------------------------------

	fmt.Printf("About to delete %q on %s\n", cfg.Target, cfg.Backend.Host)
	fmt.Printf("Type %s to continue: ", confirmPhrase)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Scan()

	if strings.TrimSpace(scanner.Text()) != confirmPhrase {
		fmt.Println("aborted")
		return nil
	}

	// -------------------------------------------------------------------------

	switch cfg.Target {
	case "users":
		if err := client.DeleteAllUsers(ctx); err != nil {
			return fmt.Errorf("delete users: %w", err)
		}

	case "messages":
		if err := client.DeleteAllMessages(ctx); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}

	case "all":
		if err := client.DeleteAllMessages(ctx); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		if err := client.DeleteAllUsers(ctx); err != nil {
			return fmt.Errorf("delete users: %w", err)
		}

	default:
		return fmt.Errorf("unknown target: %q", cfg.Target)
	}

	fmt.Println("done")

	return nil
}
