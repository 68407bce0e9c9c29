package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/shlex"
	"golang.org/x/term"

	"wavescope/config"
	"wavescope/host/scope"
	"wavescope/host/serial"
)

var (
	device     = flag.String("device", "", "Serial device path (overrides -config)")
	baud       = flag.Int("baud", 0, "Baud rate (ignored for USB CDC)")
	configPath = flag.String("config", "", "Configuration file (.json or .lua) holding a serial section")
	timeout    = flag.Duration("timeout", scope.DefaultTimeout, "Per-command timeout")
)

func main() {
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFile(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if *device != "" {
		cfg.Serial.Device = *device
	}
	if *baud != 0 {
		cfg.Serial.Baud = *baud
	}

	fmt.Printf("Connecting to %s...\n", cfg.Serial.Device)
	port, err := serial.Open(serial.FromConfig(cfg.Serial))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	client := scope.NewClient(port, *timeout)
	defer client.Close()

	info, err := client.Info()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: get_info: %v\n", err)
		os.Exit(1)
	}
	scope.PrintInfo(os.Stdout, info)

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if interactive {
		fmt.Println("\nEnter commands (type 'help' for available commands, 'quit' to exit):")
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		if interactive {
			fmt.Print("> ")
		}
		if !scanner.Scan() {
			break
		}

		args, err := shlex.Split(scanner.Text())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "quit", "exit", "q":
			return

		case "help", "?":
			printHelp()

		case "info":
			info, err := client.Info()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			scope.PrintInfo(os.Stdout, info)

		case "stats":
			stats, err := client.Stats()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			scope.PrintStats(os.Stdout, stats)

		case "dump":
			if err := dump(client, args[1:], ""); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}

		case "csv":
			if len(args) != 3 {
				fmt.Fprintln(os.Stderr, "usage: csv <channel> <file>")
				continue
			}
			if err := dump(client, args[1:2], args[2]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}

		default:
			fmt.Printf("Unknown command: %s (type 'help' for available commands)\n", args[0])
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  help               - Show this help message")
	fmt.Println("  info               - Show the device layout")
	fmt.Println("  stats              - Show tick and acquisition counters")
	fmt.Println("  dump <ch>          - Print an acquisition ring, oldest first")
	fmt.Println("  csv <ch> <file>    - Save an acquisition ring as CSV")
	fmt.Println("  quit/exit/q        - Exit the program")
	fmt.Println()
}

func dump(client *scope.Client, args []string, path string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: dump <channel>")
	}
	ch, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil {
		return fmt.Errorf("channel %q: %w", args[0], err)
	}

	d, err := client.DumpBuffer(uint8(ch))
	if err != nil {
		return err
	}

	var period time.Duration
	if info, ok := client.CachedInfo(); ok {
		period = time.Duration(info.TickPeriodUS) * time.Microsecond
	}

	if path == "" {
		return scope.WriteCSV(os.Stdout, d, period)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := scope.WriteCSV(f, d, period); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("Wrote %d samples of channel %d to %s\n", len(d.Values), ch, path)
	return nil
}
