package setup

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// CLI provides command-line interface for setup operations.
type CLI struct {
	in         *bufio.Reader
	out        io.Writer
	executable func() (string, error)
}

// NewCLI creates a setup CLI reading confirmations from in and printing to out.
func NewCLI(in io.Reader, out io.Writer) *CLI {
	return &CLI{
		in:         bufio.NewReader(in),
		out:        out,
		executable: os.Executable,
	}
}

// Run executes the setup command based on the provided arguments.
func (c *CLI) Run(args []string) error {
	if len(args) == 0 {
		c.showHelp()
		return nil
	}

	switch args[0] {
	case "register":
		return c.register(args[1:])
	case "status":
		return c.showStatus(args[1:])
	case "help", "--help", "-h":
		c.showHelp()
		return nil
	default:
		fmt.Fprintf(c.out, "Unknown command: %s\n\n", args[0])
		c.showHelp()
		return fmt.Errorf("unknown setup command %q", args[0])
	}
}

func (c *CLI) showHelp() {
	fmt.Fprint(c.out, `
Drug Conflict MCP Server Setup

Usage:
  mcp-server setup <command> [options]

Commands:
  register   Register this binary with the desktop MCP client
  status     Show the current registration

Options:
  --binary, -b PATH    Server binary (default: this executable)
  --data-dir, -d DIR   Directory holding rules.csv
  --config, -c FILE    Client config file (default: per-OS location)
  --yes, -y            Do not ask for confirmation
`)
}

type flags struct {
	binary  string
	dataDir string
	config  string
	yes     bool
}

func parseFlags(args []string) (flags, error) {
	var f flags
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--yes", "-y":
			f.yes = true
			continue
		case "--binary", "-b", "--data-dir", "-d", "--config", "-c":
		default:
			return f, fmt.Errorf("unknown option %q", args[i])
		}
		if i+1 >= len(args) {
			return f, fmt.Errorf("option %s needs a value", args[i])
		}
		switch args[i] {
		case "--binary", "-b":
			f.binary = args[i+1]
		case "--data-dir", "-d":
			f.dataDir = args[i+1]
		default:
			f.config = args[i+1]
		}
		i++
	}
	return f, nil
}

func (f flags) configPath() (string, error) {
	if f.config != "" {
		return f.config, nil
	}
	return DefaultClientConfigPath()
}

func (c *CLI) register(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	configPath, err := f.configPath()
	if err != nil {
		return err
	}
	if f.binary == "" {
		if f.binary, err = c.executable(); err != nil {
			return fmt.Errorf("failed to locate server binary: %w", err)
		}
	}

	fmt.Fprintf(c.out, "Config file: %s\n", configPath)
	fmt.Fprintf(c.out, "Server binary: %s\n", f.binary)
	if f.dataDir != "" {
		fmt.Fprintf(c.out, "Data directory: %s\n", f.dataDir)
	}

	if !f.yes {
		fmt.Fprint(c.out, "Proceed with registration? [Y/n]: ")
		response, _ := c.in.ReadString('\n')
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "" && response != "y" && response != "yes" {
			fmt.Fprintln(c.out, "Registration cancelled.")
			return nil
		}
	}

	if err := Register(configPath, Options{BinaryPath: f.binary, DataDir: f.dataDir}); err != nil {
		return fmt.Errorf("failed to register server: %w", err)
	}
	fmt.Fprintf(c.out, "Registered %s. Restart the MCP client to load it.\n", ServerName)
	return nil
}

func (c *CLI) showStatus(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	configPath, err := f.configPath()
	if err != nil {
		return err
	}

	status, err := GetStatus(configPath)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Config path: %s\n", status.ConfigPath)
	if status.Registered {
		fmt.Fprintf(c.out, "Registered: yes\nBinary: %s\n", status.BinaryPath)
		if status.DataDir != "" {
			fmt.Fprintf(c.out, "Data directory: %s\n", status.DataDir)
		}
	} else {
		fmt.Fprintln(c.out, "Registered: no")
	}
	for _, issue := range status.Issues {
		fmt.Fprintf(c.out, "  ! %s\n", issue)
	}
	return nil
}
