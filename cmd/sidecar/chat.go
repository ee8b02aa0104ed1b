package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Cyclone1070/sidecar/internal/chat"
	"github.com/spf13/cobra"
)

type chatOptions struct {
	provider     string
	model        string
	systemPrompt string
	noTools      bool
	raw          bool
	width        int
}

func newChatCmd(flags *globalFlags) *cobra.Command {
	opts := &chatOptions{}
	cmd := &cobra.Command{
		Use:   "chat MESSAGE",
		Short: "Run one tool-loop turn and print the reply",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 || strings.TrimSpace(strings.Join(args, " ")) == "" {
				return usage(errors.New("a message is required"))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			req := chat.TurnRequest{
				Message:      strings.Join(args, " "),
				Provider:     opts.provider,
				Model:        opts.model,
				SystemPrompt: opts.systemPrompt,
			}
			run := a.Chat.ChatWithTools
			if opts.noTools {
				run = a.Chat.Chat
			}
			result, err := run(cmd.Context(), req)
			if err != nil {
				if errors.Is(err, chat.ErrUnknownProvider) {
					return usage(err)
				}
				return err
			}

			out := cmd.OutOrStdout()
			if trail := renderAuditTrail(result.ToolCalls); trail != "" {
				fmt.Fprintln(out, trail)
			}
			if opts.raw {
				fmt.Fprintln(out, result.Response.Text)
			} else {
				fmt.Fprint(out, renderMarkdown(result.Response.Text, opts.width))
			}
			if result.Exhausted() {
				fmt.Fprintln(out, warnStyle.Render(fmt.Sprintf("stopped after %d tool rounds", result.Iterations)))
			}
			fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("%s · %d in / %d out tokens",
				result.Response.Model, result.TotalInputTokens, result.TotalOutputTokens)))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.provider, "provider", "", "provider name (default from config)")
	cmd.Flags().StringVar(&opts.model, "model", "", "model override")
	cmd.Flags().StringVar(&opts.systemPrompt, "system", "", "system prompt")
	cmd.Flags().BoolVar(&opts.noTools, "no-tools", false, "single round trip without tools")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "print the reply without markdown rendering")
	cmd.Flags().IntVar(&opts.width, "width", 100, "word wrap width for rendered markdown")
	return cmd
}
