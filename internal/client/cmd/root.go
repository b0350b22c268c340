package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

const defaultServerURL = "http://localhost:8000"

func NewRootCmd(version, buildDate string) *cobra.Command {
	var serverURL string
	root := &cobra.Command{
		Use:           "webassist",
		Short:         "WebAssist chat gateway CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	def := defaultServerURL
	if v, ok := os.LookupEnv("WEBASSIST_SERVER_URL"); ok && v != "" {
		def = v
	}
	root.PersistentFlags().StringVar(&serverURL, "server", def, "Server base URL")

	root.AddCommand(newVersionCmd(version, buildDate))
	root.AddCommand(newAuthCmds(&serverURL)...)
	root.AddCommand(newChatCmd(&serverURL))
	root.AddCommand(newConversationsCmd(&serverURL))
	return root
}
