package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	pkgAuth "github.com/polkiloo/vendbot/internal/pkg/auth"
)

// NewHashPasswordCommand prints a bcrypt hash for OPERATOR_PASSWORD_HASH.
// The password is read from stdin when not given as an argument.
func NewHashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Hash an operator password for the HTTP API",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password := ""
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			hash, err := pkgAuth.NewBcryptHasher(0).Hash(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
