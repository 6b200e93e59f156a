package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mind-engage/emoscreen/internal/report"
	"github.com/mind-engage/emoscreen/internal/submission"
)

func newSubmissionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "submission",
		Aliases: []string{"sub"},
		Short:   "Create, answer, score and summarize submissions",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd.Context()); err != nil {
				return err
			}
			return a.openDB(cmd.Context())
		},
	}
	cmd.AddCommand(
		newSubmissionCreateCmd(a),
		newSubmissionAnswerCmd(a),
		newSubmissionFinalizeCmd(a),
		newSubmissionRescoreCmd(a),
		newSubmissionRescoreFormCmd(a),
		newSubmissionSummaryCmd(a),
	)
	return cmd
}

func newSubmissionCreateCmd(a *app) *cobra.Command {
	var (
		form string
		d    submission.Demographics
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a draft submission for a form",
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := a.drafts.Create(cmd.Context(), form, d)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sub)
		},
	}
	cmd.Flags().StringVar(&form, "form", "", "form code")
	cmd.Flags().StringVar(&d.ChildName, "child-name", "", "child's name")
	cmd.Flags().StringVar(&d.ChildDOB, "child-dob", "", "child's date of birth")
	cmd.Flags().StringVar(&d.AssessmentDate, "assessment-date", "", "date of assessment")
	cmd.Flags().StringVar(&d.Gender, "gender", "", "child's gender")
	cmd.Flags().StringVar(&d.CompletedBy, "completed-by", "", "who filled in the form")
	cmd.Flags().BoolVar(&d.ConsentGiven, "consent", false, "caregiver consent recorded")
	_ = cmd.MarkFlagRequired("form")
	return cmd
}

// parseAnswers reads QUESTION=VALUE pairs. A value with commas selects
// several options of a multi-select question.
func parseAnswers(args []string) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for _, arg := range args {
		code, value, ok := strings.Cut(arg, "=")
		code = strings.TrimSpace(code)
		if !ok || code == "" {
			return nil, fmt.Errorf("answer %q: want QUESTION=VALUE", arg)
		}
		out[code] = value
	}
	return out, nil
}

func newSubmissionAnswerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "answer ID QUESTION=VALUE...",
		Short: "Record answers on a draft",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := parseAnswers(args[1:])
			if err != nil {
				return err
			}
			answers, err := a.drafts.SaveAnswers(cmd.Context(), args[0], raw)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), answers)
		},
	}
}

func newSubmissionFinalizeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "finalize ID",
		Short: "Score a draft and mark it final",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := a.scorer.Finalize(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sub)
		},
	}
}

func newSubmissionRescoreCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rescore ID",
		Short: "Re-run scoring on a final submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := a.scorer.Rescore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sub)
		},
	}
}

func newSubmissionRescoreFormCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rescore-form FORM",
		Short: "Rescore every final submission of a form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := a.scorer.RescoreForm(cmd.Context(), args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "rescored %d submission(s)\n", len(results))
			return err
		},
	}
}

func newSubmissionSummaryCmd(a *app) *cobra.Command {
	var lang string
	cmd := &cobra.Command{
		Use:   "summary ID",
		Short: "Print the report summary of a submission as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := report.Summarize(cmd.Context(), a.drafts.Store(), a.schemas, args[0], lang)
			if err != nil {
				return err
			}
			return report.JSONRenderer{Indent: true}.Render(cmd.Context(), s, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "", "language code (default: the form's language)")
	return cmd
}
