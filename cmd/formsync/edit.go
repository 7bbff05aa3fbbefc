package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/formsync/internal/forms"
	"github.com/vovakirdan/formsync/internal/live"
	"github.com/vovakirdan/formsync/internal/proto"
)

const editTimeout = 15 * time.Second

// editFunc performs one edit on a connected session. It returns a predicate
// that holds once the server has rebroadcast the result.
type editFunc func(ctx context.Context, s *forms.FormSession, form proto.Form) (func(*proto.Form) bool, error)

func newEditCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Send one edit to a form and print the result",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "title <form-id> <text>",
			Short: "Change the form title",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				title := strings.Join(args[1:], " ")
				return runEdit(cmd, e, args[0], func(ctx context.Context, s *forms.FormSession, _ proto.Form) (func(*proto.Form) bool, error) {
					if _, err := s.SetTitle(ctx, title); err != nil {
						return nil, err
					}
					want := strings.TrimSpace(title)
					return func(f *proto.Form) bool { return f.Titulo == want }, nil
				})
			},
		},
		&cobra.Command{
			Use:   "description <form-id> [text]",
			Short: "Change the form description; no text clears it",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				description := strings.Join(args[1:], " ")
				return runEdit(cmd, e, args[0], func(ctx context.Context, s *forms.FormSession, _ proto.Form) (func(*proto.Form) bool, error) {
					if err := s.SetDescription(ctx, description); err != nil {
						return nil, err
					}
					want := strings.TrimSpace(description)
					return func(f *proto.Form) bool { return f.Descricao == want }, nil
				})
			},
		},
		&cobra.Command{
			Use:   "question <form-id> <question-id> <text>",
			Short: "Change the text of a question",
			Args:  cobra.MinimumNArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				qid, text := args[1], strings.Join(args[2:], " ")
				return runEdit(cmd, e, args[0], func(ctx context.Context, s *forms.FormSession, form proto.Form) (func(*proto.Form) bool, error) {
					if _, ok := findQuestion(&form, qid); !ok {
						return nil, fmt.Errorf("question %s not found", qid)
					}
					if _, err := s.SetQuestionText(ctx, qid, text); err != nil {
						return nil, err
					}
					want := strings.TrimSpace(text)
					return func(f *proto.Form) bool {
						q, ok := findQuestion(f, qid)
						return ok && q.Texto == want
					}, nil
				})
			},
		},
		newAddQuestionCmd(e),
		&cobra.Command{
			Use:   "remove-question <form-id> <question-id>",
			Short: "Remove a question",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				qid := args[1]
				return runEdit(cmd, e, args[0], func(ctx context.Context, s *forms.FormSession, form proto.Form) (func(*proto.Form) bool, error) {
					if _, ok := findQuestion(&form, qid); !ok {
						return nil, fmt.Errorf("question %s not found", qid)
					}
					if err := s.Apply(ctx, forms.NewPatch().RemoveQuestion(qid)); err != nil {
						return nil, err
					}
					return func(f *proto.Form) bool {
						_, ok := findQuestion(f, qid)
						return !ok
					}, nil
				})
			},
		},
		&cobra.Command{
			Use:   "reorder <form-id> <question-id>...",
			Short: "Set the order of every question",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				ids := args[1:]
				return runEdit(cmd, e, args[0], func(ctx context.Context, s *forms.FormSession, form proto.Form) (func(*proto.Form) bool, error) {
					if len(ids) != len(form.Perguntas) {
						return nil, fmt.Errorf("reorder needs all %d question ids, got %d", len(form.Perguntas), len(ids))
					}
					if err := s.Apply(ctx, forms.NewPatch().Reorder(ids)); err != nil {
						return nil, err
					}
					return func(f *proto.Form) bool {
						if len(f.Perguntas) != len(ids) {
							return false
						}
						for i, q := range f.Perguntas {
							if q.ID != ids[i] {
								return false
							}
						}
						return true
					}, nil
				})
			},
		},
	)
	return cmd
}

func newAddQuestionCmd(e *env) *cobra.Command {
	var (
		kind     string
		required bool
	)

	cmd := &cobra.Command{
		Use:   "add-question <form-id> <text>",
		Short: "Append a question",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args[1:], " ")
			return runEdit(cmd, e, args[0], func(ctx context.Context, s *forms.FormSession, _ proto.Form) (func(*proto.Form) bool, error) {
				p := forms.NewPatch()
				qid := p.AddQuestion(strings.TrimSpace(text), kind)
				if required {
					p.SetRequired(qid, true)
				}
				if err := s.Apply(ctx, p); err != nil {
					return nil, err
				}
				return func(f *proto.Form) bool {
					_, ok := findQuestion(f, qid)
					return ok
				}, nil
			})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "texto", "question kind")
	cmd.Flags().BoolVar(&required, "required", false, "mark the question as required")
	return cmd
}

// runEdit connects to the form, applies edit once the bootstrap arrived and
// prints the form after the server confirmed the change.
func runEdit(cmd *cobra.Command, e *env, formID string, edit editFunc) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), editTimeout)
	defer cancel()

	session := forms.NewFormSession(formID, credentials(e), managerOptions(e)...)
	defer session.Close()
	session.Start(ctx)

	snap, err := await(ctx, session.Manager, func(s live.Snapshot[proto.Form]) bool {
		return s.State != nil && s.Connected
	})
	if err != nil {
		return fmt.Errorf("connect to form %s: %w", formID, err)
	}

	done, err := edit(ctx, session, *snap.State)
	if err != nil {
		return err
	}

	snap, err = await(ctx, session.Manager, func(s live.Snapshot[proto.Form]) bool {
		return s.State != nil && done(s.State)
	})
	if err != nil {
		return fmt.Errorf("wait for confirmation: %w", err)
	}

	return printJSON(cmd.OutOrStdout(), snap.State)
}

func findQuestion(f *proto.Form, id string) (proto.Question, bool) {
	for _, q := range f.Perguntas {
		if q.ID == id {
			return q, true
		}
	}
	return proto.Question{}, false
}
