package commands

import (
	"fmt"

	"reviewlens-client/lib/serviceutil"
	"reviewlens-client/lib/session"

	"github.com/spf13/cobra"
)

var registerName *string
var registerCompany *string

func init() {
	registerName = registerCmd.Flags().String("name", "", "Display name for the new account.")
	registerCompany = registerCmd.Flags().String("company", "", "Company for the new account.")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login <email> <password>",
	Short: "Authenticates against the backend and stores the session locally.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		client, cleanup := createClient(cmd.Context())
		defer cleanup()

		err := client.Session.Login(cmd.Context(), session.Credentials{
			Email:    args[0],
			Password: args[1],
		})
		if err != nil {
			serviceutil.Fatal("login failed", err)
		}
		fmt.Printf("Logged in as %s.\n", client.Session.DisplayName())
	},
}

var registerCmd = &cobra.Command{
	Use:   "register <email> <password> --name <name> [--company <company>]",
	Short: "Creates an account and logs in.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		client, cleanup := createClient(cmd.Context())
		defer cleanup()

		err := client.Session.Register(cmd.Context(), session.Registration{
			Name:     *registerName,
			Email:    args[0],
			Password: args[1],
			Company:  *registerCompany,
		})
		if err != nil {
			serviceutil.Fatal("registration failed", err)
		}
		fmt.Printf("Registered and logged in as %s.\n", client.Session.DisplayName())
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Ends the session locally and notifies the backend.",
	Run: func(cmd *cobra.Command, args []string) {
		client, cleanup := createClient(cmd.Context())
		defer cleanup()

		client.Session.Logout(cmd.Context())
		fmt.Println("Logged out.")
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Prints the currently logged-in user.",
	Run: func(cmd *cobra.Command, args []string) {
		client, cleanup := createClient(cmd.Context())
		defer cleanup()

		if !client.Session.IsAuthenticated() {
			fmt.Println("Not logged in.")
			return
		}
		user := client.Session.CurrentUser()
		if user == nil {
			fmt.Println("Logged in (no profile loaded).")
			return
		}
		fmt.Printf("%s <%s>\n", client.Session.DisplayName(), user.Email)
		if user.Company != "" {
			fmt.Printf("Company: %s\n", user.Company)
		}
		if user.Role != "" {
			fmt.Printf("Role: %s\n", user.Role)
		}
	},
}
