package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/airctrl/airctrl/internal/client"
	"github.com/airctrl/airctrl/internal/config"
	"github.com/airctrl/airctrl/internal/coordinator"
	"github.com/airctrl/airctrl/internal/logging"
	"github.com/airctrl/airctrl/internal/ui"
)

// Common command flags
var (
	deviceHost string
	devicePort int
	deviceName string
	timeoutSec int
	retryCount int
	outputJSON bool
)

func init() {
	// Common flags for device commands (persistent on root)
	rootCmd.PersistentFlags().StringVar(&deviceHost, "host", "", "Device IP address or hostname")
	rootCmd.PersistentFlags().IntVar(&devicePort, "port", client.DefaultPort, "Device CoAP port")
	rootCmd.PersistentFlags().StringVar(&deviceName, "device", "", "Saved device name (see 'airctrl device')")
	rootCmd.PersistentFlags().IntVar(&timeoutSec, "timeout", 10, "Request timeout in seconds")
	rootCmd.PersistentFlags().IntVar(&retryCount, "retries", client.DefaultRetryCount, "Control command retries after the initial attempt")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(observeCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(deviceCmd)
}

// statusCmd fetches a single status snapshot
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current device status",
	Long: `Fetch and display the current status of an air purifier.

Connects to the device, performs the session handshake, and reads a
single decrypted status snapshot.`,
	Example: `  # Status of a device by IP
  airctrl status --host 192.168.1.42

  # Status of the default saved device
  airctrl status

  # JSON output for scripting
  airctrl status --host 192.168.1.42 --json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&outputJSON, "json", false, "Output raw JSON instead of a table")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	c, host, err := connect(ctx)
	if err != nil {
		return err
	}
	defer c.Shutdown(context.Background())

	status, err := c.GetStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	if outputJSON {
		return printJSON(status)
	}
	fmt.Println(ui.RenderStatus(host, status))
	return nil
}

// observeCmd streams status updates to stdout
var observeCmd = &cobra.Command{
	Use:   "observe",
	Short: "Stream status updates",
	Long: `Subscribe to the device's status resource and print every update
as it arrives. Runs until interrupted with Ctrl-C.`,
	Example: `  # Stream updates as tables
  airctrl observe --host 192.168.1.42

  # One JSON document per line, for piping
  airctrl observe --host 192.168.1.42 --json`,
	RunE: runObserve,
}

func init() {
	observeCmd.Flags().BoolVar(&outputJSON, "json", false, "Output one JSON document per update")
}

func runObserve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, host, err := connect(ctx)
	if err != nil {
		return err
	}
	defer c.Shutdown(context.Background())

	stream, err := c.ObserveStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer stream.Close(context.Background())

	for {
		status, err := stream.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("observation ended: %w", err)
		}
		if outputJSON {
			if err := printJSON(status); err != nil {
				return err
			}
		} else {
			fmt.Println(ui.RenderStatus(host, status))
		}
	}
}

// setCmd writes one or more control values
var setCmd = &cobra.Command{
	Use:   "set KEY=VALUE [KEY=VALUE...]",
	Short: "Change device settings",
	Long: `Set one or more control values on the device.

Values are sent in a single encrypted control message. KEY=VALUE sends
the value as a string; KEY:=VALUE decodes the value as JSON for keys
whose firmware expects a number or boolean.

Common keys:
  pwr    Power ("1" on, "0" off)
  mode   Mode ("P" auto, "A" allergen, "S" sleep, "M" manual)
  om     Fan speed ("1".."3", "s" silent, "t" turbo)
  aqil   Light brightness (number, 0-100)
  cl     Child lock (boolean)`,
	Example: `  # Turn the purifier on
  airctrl set pwr=1 --host 192.168.1.42

  # Switch to sleep mode with dimmed lights
  airctrl set mode=S aqil:=25 --host 192.168.1.42

  # Enable the child lock
  airctrl set cl:=true --host 192.168.1.42`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSet,
}

func runSet(cmd *cobra.Command, args []string) error {
	values, err := parseAssignments(args)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	c, _, err := connect(ctx)
	if err != nil {
		return err
	}
	defer c.Shutdown(context.Background())

	if err := c.SetControlValues(ctx, values); err != nil {
		return fmt.Errorf("failed to apply settings: %w", err)
	}

	for _, arg := range args {
		fmt.Printf("✓ %s\n", arg)
	}
	return nil
}

// watchCmd runs the live TUI dashboard
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live status dashboard",
	Long: `Open a full-screen dashboard that repaints on every status update
pushed by the device. The connection is resynced and the subscription
re-established automatically if the stream goes quiet or terminates.

Press q to quit.`,
	Example: `  airctrl watch --host 192.168.1.42
  airctrl watch --device bedroom`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchWatchdog, "watchdog", 2*time.Minute, "Resubscribe if no update arrives within this interval")
}

var watchWatchdog time.Duration

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, host, err := connect(ctx)
	if err != nil {
		return err
	}
	defer c.Shutdown(context.Background())

	co := coordinator.New(c,
		coordinator.WithWatchdog(watchWatchdog),
		coordinator.WithLogger(logging.GetLogger()),
	)
	defer co.Close()

	if err := co.FirstRefresh(ctx); err != nil {
		return fmt.Errorf("failed to get initial status: %w", err)
	}

	updates := make(chan client.DeviceStatus, 8)
	remove := co.AddListener(func(status client.DeviceStatus) {
		select {
		case updates <- status:
		default:
		}
	})
	defer remove()

	// Seed the dashboard with the snapshot from the first refresh.
	if status := co.Status(); status != nil {
		updates <- status
	}

	p := tea.NewProgram(ui.NewWatchModel(host, updates), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("dashboard error: %w", err)
	}
	return nil
}

// deviceCmd manages the saved-device registry
var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Manage saved devices",
	Long: `Manage the registry of saved devices.

Saved devices can be selected by name with --device on any command.
The first device added becomes the default, used when neither --host
nor --device is given.`,
}

func init() {
	deviceCmd.AddCommand(deviceAddCmd)
	deviceCmd.AddCommand(deviceListCmd)
	deviceCmd.AddCommand(deviceUseCmd)
	deviceCmd.AddCommand(deviceRemoveCmd)
}

var deviceAddCmd = &cobra.Command{
	Use:   "add <name> <host>",
	Short: "Save a device under a name",
	Example: `  airctrl device add bedroom 192.168.1.42
  airctrl device add office 192.168.1.50 --port 5683`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := config.Load()
		if err != nil {
			return err
		}
		if err := reg.AddDevice(args[0], args[1], devicePort); err != nil {
			return err
		}
		if err := reg.Save(); err != nil {
			return err
		}
		fmt.Printf("✓ Saved %s (%s)\n", args[0], args[1])
		return nil
	},
}

var deviceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := config.Load()
		if err != nil {
			return err
		}
		names := reg.Names()
		if len(names) == 0 {
			fmt.Println("No saved devices. Use 'airctrl device add <name> <host>' to add one.")
			return nil
		}
		for _, name := range names {
			dev := reg.Devices[name]
			marker := " "
			if name == reg.Default {
				marker = "*"
			}
			fmt.Printf("%s %-16s %s:%d\n", marker, name, dev.Host, registryPort(dev))
		}
		return nil
	},
}

var deviceUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the default device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := config.Load()
		if err != nil {
			return err
		}
		if err := reg.SetDefault(args[0]); err != nil {
			return err
		}
		if err := reg.Save(); err != nil {
			return err
		}
		fmt.Printf("✓ Default device is now %s\n", args[0])
		return nil
	},
}

var deviceRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a saved device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := config.Load()
		if err != nil {
			return err
		}
		if err := reg.RemoveDevice(args[0]); err != nil {
			return err
		}
		if err := reg.Save(); err != nil {
			return err
		}
		fmt.Printf("✓ Removed %s\n", args[0])
		return nil
	},
}

// connect resolves the target device and opens a synced client.
// It returns the resolved host alongside the client for display use.
func connect(ctx context.Context) (*client.Client, string, error) {
	host, port, err := resolveTarget()
	if err != nil {
		return nil, "", err
	}

	c, err := client.New(ctx, host,
		client.WithPort(port),
		client.WithTimeout(time.Duration(timeoutSec)*time.Second),
		client.WithRetryCount(retryCount),
		client.WithLogger(logging.GetLogger()),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to connect to %s:%d: %w", host, port, err)
	}
	return c, host, nil
}

// resolveTarget picks the device address from --host, --device, or the
// registry default, in that order.
func resolveTarget() (string, int, error) {
	if deviceHost != "" {
		return deviceHost, devicePort, nil
	}

	reg, err := config.Load()
	if err != nil {
		return "", 0, err
	}
	dev, err := reg.Lookup(deviceName)
	if err != nil {
		if deviceName == "" {
			return "", 0, fmt.Errorf("no device specified: use --host, or save one with 'airctrl device add'")
		}
		return "", 0, err
	}
	return dev.Host, dev.Port, nil
}

func registryPort(dev *config.Device) int {
	if dev.Port == 0 {
		return client.DefaultPort
	}
	return dev.Port
}

// commandContext returns a context for one-shot commands, cancelled on
// Ctrl-C.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// parseAssignments turns KEY=VALUE and KEY:=VALUE arguments into a
// value map. KEY=VALUE keeps the value as a string; KEY:=VALUE decodes
// it as JSON. Purifier firmware is strict about types: power is the
// string "1" while brightness is the number 25.
func parseAssignments(args []string) (map[string]any, error) {
	values := make(map[string]any, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid argument %q (expected KEY=VALUE)", arg)
		}
		if typed, found := strings.CutSuffix(key, ":"); found {
			var v any
			if err := json.Unmarshal([]byte(raw), &v); err != nil {
				return nil, fmt.Errorf("invalid JSON value in %q: %w", arg, err)
			}
			values[typed] = v
			continue
		}
		values[key] = raw
	}
	return values, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
