package cli

import (
	"fmt"

	"github.com/dispomed/dispomed-api/database"
	"github.com/dispomed/dispomed-api/logging"
	"github.com/spf13/cobra"
)

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create the tables the API reads from",
	Long: `Create every table the API reads from. Running it again on an
initialized database changes nothing.`,
	RunE: runInitDB,
}

func init() {
	rootCmd.AddCommand(initDBCmd)
}

func runInitDB(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logging.Close()

	db, err := database.Open(cmd.Context(), databaseOptions(cfg))
	if err != nil {
		if database.IsDatabaseMissing(err) {
			return fmt.Errorf("%w\n\n%s", err, database.SetupInstructions)
		}
		return err
	}
	defer db.Close()

	if err := db.InitSchema(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Database schema initialized")
	return nil
}
