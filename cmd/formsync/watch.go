package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/formsync/internal/forms"
	"github.com/vovakirdan/formsync/internal/live"
	"github.com/vovakirdan/formsync/internal/proto"
)

func newWatchCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a resource and print every change",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "form <id>",
			Short: "Follow a form definition",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return watch(cmd, forms.NewFormManager(args[0], credentials(e), managerOptions(e)...))
			},
		},
		&cobra.Command{
			Use:   "responses <form-id>",
			Short: "Follow the responses of a form",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return watch(cmd, forms.NewResponsesManager(args[0], credentials(e), managerOptions(e)...))
			},
		},
		&cobra.Command{
			Use:   "forms",
			Short: "Follow the form collection",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return watch(cmd, forms.NewCatalogManager(credentials(e), managerOptions(e)...))
			},
		},
	)
	return cmd
}

// watchView is what watch prints for each change.
type watchView[T any] struct {
	Resource  string            `json:"resource"`
	Connected bool              `json:"connected"`
	Loading   bool              `json:"loading"`
	Error     string            `json:"error,omitempty"`
	Presence  []proto.Principal `json:"presence"`
	State     *T                `json:"state"`
}

func watch[T any](cmd *cobra.Command, m *live.Manager[T]) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer m.Close()

	m.Start(ctx)

	out := cmd.OutOrStdout()
	for {
		snap := m.Snapshot()
		view := watchView[T]{
			Resource:  m.Resource().Path(),
			Connected: snap.Connected,
			Loading:   snap.Loading,
			Presence:  snap.Presence,
			State:     snap.State,
		}
		if snap.Err != nil {
			view.Error = snap.Err.Error()
		}
		if err := printJSON(out, view); err != nil {
			return err
		}
		if live.IsTerminal(snap.Err) {
			return snap.Err
		}

		select {
		case _, ok := <-m.Updates():
			if !ok {
				return nil
			}
		case <-ctx.Done():
			if ctx.Err() == context.Canceled {
				return nil
			}
			return ctx.Err()
		}
	}
}
