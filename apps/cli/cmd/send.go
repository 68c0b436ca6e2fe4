package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/apitestkit/apitest/packages/assert"
	"github.com/apitestkit/apitest/packages/client"
	"github.com/apitestkit/apitest/packages/core/config"
	"github.com/apitestkit/apitest/packages/requestfile"
	"github.com/apitestkit/apitest/packages/session"
)

// WatchDebounceDelay is the debounce delay for file watch events
const WatchDebounceDelay = 300 * time.Millisecond

var sendCmd = &cobra.Command{
	Use:   "send <file.yaml>",
	Short: "Send a request defined in a YAML file and check the expectations",
	Long: `Send one HTTP request described in a YAML request file.

Examples:
  apitest send request.yaml
  apitest send request.yaml --base-url http://localhost:3333
  apitest send request.yaml --watch`,
	Args: cobra.ExactArgs(1),
	RunE: sendCommand,
}

var (
	configFlag  string
	baseURLFlag string
	watchFlag   bool
	noColorFlag bool
)

func init() {
	sendCmd.Flags().StringVarP(&configFlag, "config", "c", "", "path to config file")
	sendCmd.Flags().StringVarP(&baseURLFlag, "base-url", "b", "", "base URL for relative request paths")
	sendCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "re-send when the request file changes")
	sendCmd.Flags().BoolVar(&noColorFlag, "no-color", false, "disable colored output")
}

func sendCommand(cmd *cobra.Command, args []string) error {
	path := args[0]

	cfg, err := config.Load(configFlag)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), color.RedString("error: failed to load config: %v", err))
		os.Exit(ExitConfigError)
	}
	if baseURLFlag != "" {
		cfg.BaseURL = baseURLFlag
	}
	if noColorFlag || cfg.GetNoColor() {
		color.NoColor = true
	}

	c, err := client.FromConfig(cfg, client.WithSessions(session.NewMemoryStore()))
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), color.RedString("error: %v", err))
		os.Exit(ExitConfigError)
	}

	failed, err := sendOnce(cmd, c, path)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), color.RedString("error: %v", err))
		if !watchFlag {
			os.Exit(exitCodeFor(err))
		}
	}

	if !watchFlag {
		if failed {
			os.Exit(ExitExpectFailure)
		}
		os.Exit(ExitSuccess)
	}

	return watchAndResend(cmd, c, path)
}

// exitCodeFor separates request-file problems from send failures.
func exitCodeFor(err error) int {
	var loadErr *requestfile.LoadError
	if errors.As(err, &loadErr) {
		return ExitConfigError
	}
	return ExitRequestError
}

// sendOnce runs one request/expectation cycle and prints the outcome. The
// bool reports whether any expectation failed.
func sendOnce(cmd *cobra.Command, c *client.Client, path string) (bool, error) {
	out := cmd.OutOrStdout()

	f, err := requestfile.Load(path)
	if err != nil {
		return false, err
	}

	start := time.Now()
	resp, err := f.Send(c)
	if err != nil {
		return false, err
	}

	fmt.Fprintf(out, "%s %s -> %d (%s)\n",
		color.CyanString(f.Method), f.URL, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	var opts []assert.Option
	if enc := c.Encrypter(); enc != nil {
		opts = append(opts, assert.WithEncrypter(enc))
	}

	failures := f.Evaluate(resp, opts...)
	if len(failures) == 0 {
		if f.Expect != nil {
			fmt.Fprintln(out, color.GreenString("  ✓ all expectations passed"))
		}
		return false, nil
	}

	for _, failure := range failures {
		fmt.Fprintln(out, color.RedString("  ✗ %v", failure))
	}
	return true, nil
}

func watchAndResend(cmd *cobra.Command, c *client.Client, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory; editors often replace the file on save.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	var debounceTimer *time.Timer

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "\nFile changed: %s\n", event.Name)
				if _, err := sendOnce(cmd, c, path); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), color.RedString("error: %v", err))
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(cmd.ErrOrStderr(), color.RedString("watch error: %v", err))

		case <-sig:
			fmt.Fprintln(cmd.OutOrStdout(), "\nStopping.")
			return nil
		}
	}
}
