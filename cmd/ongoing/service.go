package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"ongoing/pkg/config"
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage ongoing as a system service",
	Long: `Install and control the daemon as a system service:
- Linux: systemd
- macOS: launchd
- Windows: Windows Service Manager

Installing, starting and stopping require administrator/root privileges.

Examples:
  sudo ongoing service install
  sudo ongoing service start
  ongoing service status`,
}

var serviceRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run under the service manager",
	Long:  `Run the daemon. The service manager calls this; run it by hand to test.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if service.Interactive() {
			runForeground()
			return nil
		}
		return RunService()
	},
}

type serviceAction struct {
	use, short, done string
	run              func(service.Service) error
}

var serviceActions = []serviceAction{
	{"install", "Install the system service", "Service installed. Use 'ongoing service start' to start it.", service.Service.Install},
	{"uninstall", "Uninstall the system service", "Service uninstalled.", service.Service.Uninstall},
	{"start", "Start the system service", "Service started.", service.Service.Start},
	{"stop", "Stop the system service", "Service stopped.", service.Service.Stop},
	{"restart", "Restart the system service", "Service restarted.", service.Service.Restart},
}

var serviceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system service status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return StatusService()
	},
}

func init() {
	serviceCmd.AddCommand(serviceRunCmd)
	serviceCmd.AddCommand(serviceStatusCmd)
	for _, action := range serviceActions {
		serviceCmd.AddCommand(&cobra.Command{
			Use:   action.use,
			Short: action.short,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, _, err := newService()
				if err != nil {
					return err
				}
				if err := action.run(s); err != nil {
					fmt.Fprintln(os.Stderr, "Note: managing system services requires administrator privileges.")
					return fmt.Errorf("%s service: %w", action.use, err)
				}
				fmt.Println(action.done)
				return nil
			},
		})
	}
	rootCmd.AddCommand(serviceCmd)
}

// DaemonService implements service.Interface for the daemon.
type DaemonService struct {
	app    *fx.App
	logger service.Logger
}

// Start implements service.Interface.
func (s *DaemonService) Start(svc service.Service) error {
	if s.logger != nil {
		s.logger.Info("Starting ongoing service")
	}

	s.app = fx.New(
		daemonOptions(),
		fx.Invoke(logStartup),
		fx.NopLogger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.app.Start(ctx)
}

// Stop implements service.Interface.
func (s *DaemonService) Stop(svc service.Service) error {
	if s.logger != nil {
		s.logger.Info("Stopping ongoing service")
	}
	if s.app == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.app.Stop(ctx); err != nil {
		if s.logger != nil {
			s.logger.Errorf("Error stopping service: %v", err)
		}
		return err
	}
	return nil
}

// ServiceConfig returns the service configuration. An explicit config
// path is passed through so the service reads the same file.
func ServiceConfig() *service.Config {
	arguments := []string{"service", "run"}
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(config.ConfigPathEnv))
	}
	if path != "" {
		arguments = append([]string{"-c", path}, arguments...)
	}

	return &service.Config{
		Name:        "ongoing",
		DisplayName: "ongoing",
		Description: "Automatic XDCC release fetcher for IRC",
		Arguments:   arguments,
	}
}

func newService() (service.Service, *DaemonService, error) {
	prg := &DaemonService{}
	s, err := service.New(prg, ServiceConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("creating service: %w", err)
	}
	return s, prg, nil
}

// StatusService prints the status of the system service.
func StatusService() error {
	s, _, err := newService()
	if err != nil {
		return err
	}

	status, err := s.Status()
	if err != nil {
		return fmt.Errorf("getting service status: %w", err)
	}

	statusStr := "Unknown"
	switch status {
	case service.StatusRunning:
		statusStr = "Running"
	case service.StatusStopped:
		statusStr = "Stopped"
	}
	fmt.Printf("Service Status: %s\n", statusStr)
	return nil
}

// RunService runs the daemon under the service manager.
func RunService() error {
	s, prg, err := newService()
	if err != nil {
		return err
	}

	logger, err := s.Logger(nil)
	if err != nil {
		return fmt.Errorf("creating service logger: %w", err)
	}
	prg.logger = logger

	if err := s.Run(); err != nil {
		_ = logger.Error(err)
		return err
	}
	return nil
}
