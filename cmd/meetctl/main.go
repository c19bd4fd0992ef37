// meetctl joins a meeting room as a media participant and exposes the
// meeting owner's control commands.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	osignal "os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/voxmeet/sfuclient/internal/capture"
	"github.com/voxmeet/sfuclient/internal/config"
	"github.com/voxmeet/sfuclient/internal/hostctl"
	"github.com/voxmeet/sfuclient/internal/media/pionmedia"
	"github.com/voxmeet/sfuclient/internal/render"
	"github.com/voxmeet/sfuclient/internal/session"
	"github.com/voxmeet/sfuclient/internal/signal"
)

var (
	flagURL   string
	flagRoom  string
	flagName  string
	flagActor string
	flagDebug bool
)

func main() {
	root := &cobra.Command{
		Use:           "meetctl",
		Short:         "SFU meeting client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagURL, "url", "", "signaling server websocket URL")
	root.PersistentFlags().StringVar(&flagRoom, "room", "", "room id to join")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "verbose logging")

	join := &cobra.Command{
		Use:   "join",
		Short: "Join a room and publish microphone audio",
		RunE:  runJoin,
	}
	join.Flags().StringVar(&flagName, "name", "", "display name")
	root.AddCommand(join)

	host := &cobra.Command{
		Use:   "host",
		Short: "Send host control commands",
	}
	host.PersistentFlags().StringVar(&flagActor, "actor", "", "acting user id (must be the room host)")
	for _, hc := range hostCommands() {
		host.AddCommand(hc)
	}
	root.AddCommand(host)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagURL != "" {
		cfg.SignalURL = flagURL
	}
	if flagRoom != "" {
		cfg.RoomID = flagRoom
	}
	if flagName != "" {
		cfg.DisplayName = flagName
	}
	if cfg.RoomID == "" {
		return nil, fmt.Errorf("room id is required (--room or MEET_ROOM_ID)")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger() (*zap.Logger, error) {
	if flagDebug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func runJoin(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()

	ch, err := signal.Dial(ctx, cfg.SignalURL, signal.Options{
		RequestTimeout: cfg.RequestTimeout,
		DialTimeout:    cfg.DialTimeout,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	defer ch.Close()

	source, err := capture.NewDeviceSource(cfg.Capture, logger)
	if err != nil {
		return err
	}
	device, err := pionmedia.NewDevice(source.Selector(), logger)
	if err != nil {
		return err
	}

	bridge := render.NewRegistry(nil, logger)
	sess := session.New(ch, device, source, bridge, logger)
	sess.SetDisplayName(cfg.DisplayName)
	sess.SetOpusDTX(cfg.Capture.AudioDTX)

	// Teardown must run on any exit path, interrupt included.
	defer sess.Cleanup()

	if err := sess.Start(ctx, cfg.RoomID); err != nil {
		return fmt.Errorf("could not join call: %w", err)
	}
	logger.Info("joined room", zap.String("room_id", cfg.RoomID))

	stop := make(chan os.Signal, 1)
	osignal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case <-stop:
	case <-ctx.Done():
	}

	logger.Info("leaving room")
	return nil
}

// hostCommands builds one subcommand per host control operation.
func hostCommands() []*cobra.Command {
	simple := []struct {
		use, short string
		run        func(*hostctl.Controller) error
	}{
		{"mute-all", "Mute every participant's microphone", (*hostctl.Controller).MuteAllParticipants},
		{"unmute-all", "Unmute every participant's microphone", (*hostctl.Controller).UnmuteAllParticipants},
		{"disable-cameras", "Disable every participant's camera", (*hostctl.Controller).DisableAllCameras},
		{"enable-cameras", "Enable every participant's camera", (*hostctl.Controller).EnableAllCameras},
		{"disable-screenshare", "Disable screen sharing for all", (*hostctl.Controller).DisableAllScreenSharing},
		{"enable-screenshare", "Enable screen sharing for all", (*hostctl.Controller).EnableAllScreenSharing},
	}

	var cmds []*cobra.Command
	for _, sc := range simple {
		run := sc.run
		cmds = append(cmds, &cobra.Command{
			Use:   sc.use,
			Short: sc.short,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withController(cmd.Context(), run)
			},
		})
	}

	cmds = append(cmds, &cobra.Command{
		Use:   "remove <target-user-id> <target-name>",
		Short: "Remove a participant from the meeting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withController(cmd.Context(), func(c *hostctl.Controller) error {
				return c.RemoveParticipant(args[0], args[1])
			})
		},
	})

	cmds = append(cmds, &cobra.Command{
		Use:   "mute <target-user-id>",
		Short: "Mute one participant's microphone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withController(cmd.Context(), func(c *hostctl.Controller) error {
				return c.ToggleRemoteAudio(args[0], false)
			})
		},
	})

	return cmds
}

func withController(ctx context.Context, run func(*hostctl.Controller) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagActor == "" {
		return fmt.Errorf("acting user id is required (--actor)")
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ch, err := signal.Dial(ctx, cfg.SignalURL, signal.Options{
		RequestTimeout: cfg.RequestTimeout,
		DialTimeout:    cfg.DialTimeout,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	defer ch.Close()

	ctl := hostctl.NewController(ch, cfg.RoomID, flagActor, confirmStdin, logger)
	return run(ctl)
}

// confirmStdin asks on the terminal; anything but y/yes declines.
func confirmStdin(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
