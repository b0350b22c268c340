package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/svieira1985/gpt-webassist-sam/internal/shared/models"
)

type authClient struct {
	serverURL *string
}

func newAuthCmds(serverURL *string) []*cobra.Command {
	a := &authClient{serverURL: serverURL}
	register := &cobra.Command{
		Use:   "register [email]",
		Short: "Request a login token by email",
		Args:  cobra.MaximumNArgs(1),
		RunE:  a.register,
	}
	login := &cobra.Command{
		Use:   "login [email]",
		Short: "Exchange a login token for a session",
		Args:  cobra.MaximumNArgs(1),
		RunE:  a.login,
	}
	login.Flags().String("token", "", "login token (prompted when empty)")
	logout := &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := clearSession(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
	return []*cobra.Command{register, login, logout}
}

func (a *authClient) register(cmd *cobra.Command, args []string) error {
	in := bufio.NewReader(cmd.InOrStdin())
	email, err := argOrPrompt(cmd, in, args, "Email: ")
	if err != nil {
		return err
	}
	var resp struct {
		Message    string `json:"message"`
		DebugToken string `json:"debug_token"`
	}
	if err := newAPIClient(*a.serverURL).do(cmd.Context(), "POST", "/register", "", map[string]string{"email": email}, &resp); err != nil {
		return fmt.Errorf("register failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
	if resp.DebugToken != "" {
		fmt.Fprintln(cmd.OutOrStdout(), "Token:", resp.DebugToken)
	}
	return nil
}

func (a *authClient) login(cmd *cobra.Command, args []string) error {
	in := bufio.NewReader(cmd.InOrStdin())
	email, err := argOrPrompt(cmd, in, args, "Email: ")
	if err != nil {
		return err
	}
	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		if token, err = promptSecret(cmd, in, "Token: "); err != nil {
			return err
		}
	}
	var resp models.TokenResponse
	body := map[string]string{"email": email, "token": strings.TrimSpace(token)}
	if err := newAPIClient(*a.serverURL).do(cmd.Context(), "POST", "/login", "", body, &resp); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err := saveSession(resp.AccessToken); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Logged in as", resp.User.Email)
	return nil
}

func argOrPrompt(cmd *cobra.Command, in *bufio.Reader, args []string, prompt string) (string, error) {
	if len(args) > 0 {
		return strings.TrimSpace(args[0]), nil
	}
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	line, err := in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptSecret reads without echo when stdin is a terminal.
func promptSecret(cmd *cobra.Command, in *bufio.Reader, prompt string) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.OutOrStdout(), prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		return strings.TrimSpace(string(b)), err
	}
	return argOrPrompt(cmd, in, nil, prompt)
}
