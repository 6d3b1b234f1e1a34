package commands

import (
	"fmt"
	"os"

	"reviewlens-client/lib/serviceutil"
	"reviewlens-client/lib/session"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var profileName *string
var profileCompany *string
var profileRole *string
var profileAvatar *string

func init() {
	profileName = profileSetCmd.Flags().String("name", "", "New display name.")
	profileCompany = profileSetCmd.Flags().String("company", "", "New company.")
	profileRole = profileSetCmd.Flags().String("role", "", "New role.")
	profileAvatar = profileSetCmd.Flags().String("avatar", "", "New avatar URL.")

	profileCmd.AddCommand(profileSetCmd)
	rootCmd.AddCommand(profileCmd)
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Shows the current user's profile.",
	Run: func(cmd *cobra.Command, args []string) {
		client, cleanup := createClient(cmd.Context())
		defer cleanup()

		user, err := client.Session.Profile(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to fetch profile", err)
		}
		renderProfile(user)
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set [--name <name>] [--company <company>] [--role <role>] [--avatar <url>]",
	Short: "Updates profile fields. Email cannot be changed.",
	Run: func(cmd *cobra.Command, args []string) {
		client, cleanup := createClient(cmd.Context())
		defer cleanup()

		current, err := client.Session.Profile(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to fetch profile", err)
		}

		update := session.ProfileUpdate{
			Name:    current.Name,
			Company: current.Company,
			Role:    current.Role,
			Avatar:  current.Avatar,
		}
		if cmd.Flags().Changed("name") {
			update.Name = *profileName
		}
		if cmd.Flags().Changed("company") {
			update.Company = *profileCompany
		}
		if cmd.Flags().Changed("role") {
			update.Role = *profileRole
		}
		if cmd.Flags().Changed("avatar") {
			update.Avatar = *profileAvatar
		}

		user, err := client.Session.UpdateProfile(cmd.Context(), update)
		if err != nil {
			serviceutil.Fatal("failed to update profile", err)
		}
		fmt.Println("Profile updated.")
		renderProfile(user)
	},
}

func renderProfile(user *session.UserProfile) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendRows([]table.Row{
		{"Name", user.Name},
		{"Email", user.Email},
		{"Company", user.Company},
		{"Role", user.Role},
	})
	t.SetStyle(table.StyleRounded)
	t.Render()
}
