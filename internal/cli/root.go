// Package cli 是 menucli 的命令列介面
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"menu-recommender/internal/client"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "menucli",
	Short: "Walks a menu photo through extraction, a quiz and a recommendation",
	Long: `menucli drives the menu recommender API one step at a time.
Each step saves its result to a session file so the next step can pick it up:

  upload -> extract -> quiz -> answer -> recommend

Use "run" to do all of it in one go, and "reset" to start over.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("server", "http://localhost:8080", "menu recommender API base URL")
	rootCmd.PersistentFlags().String("session", defaultSessionPath(), "session file that keeps results between steps")
	rootCmd.PersistentFlags().String("token", "", "bearer token for personalised recommendations")
	rootCmd.PersistentFlags().Duration("timeout", 2*time.Minute, "per-request timeout")

	viper.SetEnvPrefix("MENUCLI")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(uploadCmd, extractCmd, quizCmd, answerCmd, recommendCmd, runCmd, resetCmd)
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".menucli-session.json"
	}
	return filepath.Join(home, ".menucli", "session.json")
}

// newOrchestrator 依旗標與環境變數建立客戶端
func newOrchestrator() *client.Orchestrator {
	store := client.NewFileSessionStore(viper.GetString("session"))
	return client.New(viper.GetString("server"), store, client.Options{
		Token:   viper.GetString("token"),
		Timeout: viper.GetDuration("timeout"),
	})
}

// Execute 執行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
