package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var chatSession string

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Ask one question and print the JSON response",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Migrate(ctx); err != nil {
			return err
		}

		resp, err := env.Engine.Process(ctx, chatSession, args[0])
		if err != nil {
			return eris.Wrap(err, "process message")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatSession, "session", "", "conversation ID to continue (default: new conversation)")
	rootCmd.AddCommand(chatCmd)
}
