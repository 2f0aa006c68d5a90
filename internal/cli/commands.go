package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"menu-recommender/internal/core/menu"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <image>",
	Short: "Upload a menu photo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url, err := newOrchestrator().Upload(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Uploaded: %s\n", url)
		return nil
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract menu items from the uploaded photo, or from --text",
	RunE: func(cmd *cobra.Command, args []string) error {
		o := newOrchestrator()
		textFile, _ := cmd.Flags().GetString("text-file")
		text, _ := cmd.Flags().GetString("text")
		if textFile != "" {
			data, err := os.ReadFile(textFile)
			if err != nil {
				return err
			}
			text = string(data)
		}

		var items []menu.MenuItem
		var err error
		if text != "" {
			items, err = o.ExtractText(cmd.Context(), text)
		} else {
			items, err = o.Extract(cmd.Context())
		}
		if err != nil {
			return err
		}
		printItems(cmd.OutOrStdout(), items)
		return nil
	},
}

var quizCmd = &cobra.Command{
	Use:   "quiz",
	Short: "Generate preference questions for the extracted menu",
	RunE: func(cmd *cobra.Command, args []string) error {
		quiz, err := newOrchestrator().GenerateQuiz(cmd.Context())
		if err != nil {
			return err
		}
		printQuiz(cmd.OutOrStdout(), quiz)
		return nil
	},
}

var answerCmd = &cobra.Command{
	Use:   "answer",
	Short: "Answer the quiz interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		o := newOrchestrator()
		session, err := o.Session()
		if err != nil {
			return err
		}
		if len(session.Quiz) == 0 {
			// 讓 Answer 回傳統一的錯誤訊息
			return o.Answer(nil)
		}

		answers, err := promptAnswers(bufio.NewReader(cmd.InOrStdin()), cmd.OutOrStdout(), session.Quiz)
		if err != nil {
			return err
		}
		if err := o.Answer(answers); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "\nAnswers saved. Run \"menucli recommend\" next.")
		return nil
	},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Get a recommendation from the menu and your answers",
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := newOrchestrator().Recommend(cmd.Context())
		if err != nil {
			return err
		}
		printRecommendation(cmd.OutOrStdout(), rec)
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run <image>",
	Short: "Upload, extract, quiz, answer and recommend in one go",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		in := bufio.NewReader(cmd.InOrStdin())

		bar := progressbar.NewOptions(5,
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetDescription("starting"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		started := false
		step := func(name string) {
			if started {
				_ = bar.Add(1)
			}
			started = true
			bar.Describe(name)
		}

		answer := func(q menu.QuizQuestion) ([]string, error) {
			_ = bar.Clear()
			fmt.Fprintf(out, "\n%s\n", q.Question)
			return askQuestion(in, out, q)
		}

		rec, err := newOrchestrator().Run(cmd.Context(), args[0], answer, step)
		if err != nil {
			return err
		}
		_ = bar.Finish()
		printRecommendation(out, rec)
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newOrchestrator().Reset(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Session cleared.")
		return nil
	},
}

func init() {
	extractCmd.Flags().String("text", "", "menu text to extract instead of the uploaded photo")
	extractCmd.Flags().String("text-file", "", "read menu text from a file")
}

func printItems(w io.Writer, items []menu.MenuItem) {
	fmt.Fprintf(w, "Found %d items:\n", len(items))
	for _, item := range items {
		line := "  - " + item.Name
		if item.Price != nil {
			line += " ($" + strconv.FormatFloat(*item.Price, 'f', 2, 64) + ")"
		}
		if item.Course != nil {
			line += " [" + *item.Course + "]"
		}
		fmt.Fprintln(w, line)
	}
}

func printQuiz(w io.Writer, quiz []menu.QuizQuestion) {
	for i, q := range quiz {
		suffix := ""
		if q.AllowMultiple {
			suffix = " (multiple)"
		}
		fmt.Fprintf(w, "%d. %s%s\n", i+1, q.Question, suffix)
		fmt.Fprintf(w, "   %s\n", strings.Join(q.Answers, " | "))
	}
	fmt.Fprintln(w, "\nRun \"menucli answer\" to respond.")
}

func printRecommendation(w io.Writer, rec *menu.Recommendation) {
	fmt.Fprintf(w, "\n%s\n\nWe recommend:\n", rec.Description)
	for _, item := range rec.SelectedItems {
		fmt.Fprintf(w, "  * %s\n", item.Name)
	}
	if len(rec.AlternateChoices) > 0 {
		fmt.Fprintln(w, "\nYou might also like:")
		for _, item := range rec.AlternateChoices {
			fmt.Fprintf(w, "  - %s\n", item.Name)
		}
	}
}
