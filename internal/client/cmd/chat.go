package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/svieira1985/gpt-webassist-sam/internal/shared/models"
)

type chatClient struct {
	serverURL *string
}

func newChatCmd(serverURL *string) *cobra.Command {
	c := &chatClient{serverURL: serverURL}
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send a message; without arguments read one message per line from stdin",
		RunE:  c.chat,
	}
	cmd.Flags().StringP("conversation", "c", "", "conversation id to continue")
	return cmd
}

func (c *chatClient) chat(cmd *cobra.Command, args []string) error {
	token, err := loadSession()
	if err != nil {
		return err
	}
	convID, _ := cmd.Flags().GetString("conversation")
	api := newAPIClient(*c.serverURL)
	send := func(text string) error {
		var resp models.ChatResponse
		body := map[string]string{"message": text}
		if convID != "" {
			body["conversation_id"] = convID
		}
		if err := api.do(cmd.Context(), "POST", "/chat", token, body, &resp); err != nil {
			return fmt.Errorf("chat failed: %w", err)
		}
		if convID == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "conversation:", resp.ConversationID)
		}
		convID = resp.ConversationID
		fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
		return nil
	}

	if len(args) > 0 {
		return send(strings.Join(args, " "))
	}
	sc := bufio.NewScanner(cmd.InOrStdin())
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := send(line); err != nil {
			return err
		}
	}
	return sc.Err()
}

type conversationsClient struct {
	serverURL *string
}

func newConversationsCmd(serverURL *string) *cobra.Command {
	c := &conversationsClient{serverURL: serverURL}
	cmd := &cobra.Command{Use: "conversations", Aliases: []string{"conv"}, Short: "Manage conversations"}
	cmd.AddCommand(&cobra.Command{Use: "list", Short: "List conversations", Args: cobra.NoArgs, RunE: c.list})
	cmd.AddCommand(&cobra.Command{Use: "get", Short: "Show a conversation", Args: cobra.ExactArgs(1), RunE: c.get})
	cmd.AddCommand(&cobra.Command{Use: "delete", Short: "Delete a conversation", Args: cobra.ExactArgs(1), RunE: c.delete})
	return cmd
}

func (c *conversationsClient) list(cmd *cobra.Command, _ []string) error {
	token, err := loadSession()
	if err != nil {
		return err
	}
	var items []models.ConversationSummary
	if err := newAPIClient(*c.serverURL).do(cmd.Context(), "GET", "/conversations", token, nil, &items); err != nil {
		return fmt.Errorf("list failed: %w", err)
	}
	for _, it := range items {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", it.ID, it.CreatedAt.Format("2006-01-02 15:04"), it.LastMessage)
	}
	return nil
}

func (c *conversationsClient) get(cmd *cobra.Command, args []string) error {
	token, err := loadSession()
	if err != nil {
		return err
	}
	var conv models.Conversation
	if err := newAPIClient(*c.serverURL).do(cmd.Context(), "GET", "/conversations/"+url.PathEscape(args[0]), token, nil, &conv); err != nil {
		return fmt.Errorf("get failed: %w", err)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(conv)
}

func (c *conversationsClient) delete(cmd *cobra.Command, args []string) error {
	token, err := loadSession()
	if err != nil {
		return err
	}
	if err := newAPIClient(*c.serverURL).do(cmd.Context(), "DELETE", "/conversations/"+url.PathEscape(args[0]), token, nil, nil); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Deleted", args[0])
	return nil
}
