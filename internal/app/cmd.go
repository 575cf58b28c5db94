package app

import (
	"errors"
	"flag"
	"io"
	"strings"

	"github.com/buildwise/backend/internal/user"
)

// Command is a startup mode.
type Command string

const (
	CommandServe          Command = "serve"
	CommandWorker         Command = "worker"
	CommandMigrate        Command = "migrate"
	CommandHealthcheck    Command = "healthcheck"
	CommandBootstrapAdmin Command = "bootstrap-admin"
	CommandPromoteAdmin   Command = "promote-admin"
)

// ParseCommand returns the subcommand named by args[0].
// No argument or an unknown one means CommandServe.
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch Command(args[0]) {
	case CommandWorker, CommandServe, CommandMigrate, CommandHealthcheck,
		CommandBootstrapAdmin, CommandPromoteAdmin:
		return Command(args[0])
	default:
		return CommandServe
	}
}

// parseBootstrapArgs parses "--email --password [--name]".
func parseBootstrapArgs(args []string) (user.BootstrapInput, error) {
	fs := flag.NewFlagSet(string(CommandBootstrapAdmin), flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var in user.BootstrapInput
	fs.StringVar(&in.Email, "email", "", "admin email address")
	fs.StringVar(&in.Password, "password", "", "admin password")
	fs.StringVar(&in.Name, "name", "", "admin display name")

	if err := fs.Parse(args); err != nil {
		return user.BootstrapInput{}, err
	}
	if in.Email == "" || in.Password == "" {
		return user.BootstrapInput{}, errors.New("usage: bootstrap-admin --email <email> --password <password> [--name <name>]")
	}
	return in, nil
}

// parsePromoteArgs returns the single email argument of promote-admin.
func parsePromoteArgs(args []string) (string, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "", errors.New("usage: promote-admin <email>")
	}
	return strings.TrimSpace(args[0]), nil
}
