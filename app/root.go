// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dirauthd",
	Short: "dirauthd is a directory-backed authentication service",
	Long: `dirauthd authenticates community platform users against an LDAP or
Active Directory server, provisions local accounts on first login and keeps
local group memberships in sync with directory group membership.`,
	Args: cobra.OnlyValidArgs,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
