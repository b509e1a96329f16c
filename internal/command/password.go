package command

import (
	"bufio"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sakif/tweetsync/internal/auth"
)

func NewHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the bcrypt hash for admin.passwordHash",
		Long:  "Print the bcrypt hash of a password. Without an argument the password is read from the first line of stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no password given")
				}
				password = strings.TrimRight(line, "\r\n")
			}

			hash, err := auth.NewPasswordService().Hash(password)
			if err != nil {
				return err
			}
			writeLine(cmd, "%s", hash)
			return nil
		},
	}
}
