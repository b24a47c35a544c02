package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/BradenHooton/jardim/internal/auth"
	"github.com/BradenHooton/jardim/internal/config"
	"github.com/BradenHooton/jardim/internal/database"
	"github.com/BradenHooton/jardim/internal/models"
	"github.com/BradenHooton/jardim/internal/repositories"
	"github.com/BradenHooton/jardim/internal/services"
	pkglogger "github.com/BradenHooton/jardim/pkg/logger"
)

var newAccount struct {
	name       string
	nationalID string
	email      string
	role       string
}

var createAccountCmd = &cobra.Command{
	Use:   "create-account",
	Short: "Create an account in the record service database",
	Long: `Creates an account. The password is read from the first line of
standard input so it never appears in the process list:

	echo "$PASSWORD" | jardim create-account --name Root --cpf 529.982.247-25 --role admin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadRecordService()
		if err != nil {
			return err
		}
		logger := newLogger(cfg.Server.LogLevel)

		role, err := models.ParseRole(newAccount.role)
		if err != nil {
			return err
		}
		password, err := readLine(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}

		db, err := database.NewConnection(cmd.Context(), &cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)
		svc := services.NewAccountService(repositories.NewAccountRepository(db), tokens, pkglogger.NewAuditLogger(logger), logger)

		record, err := svc.CreateAccount(cmd.Context(), services.NewAccount{
			Name:       newAccount.name,
			NationalID: newAccount.nationalID,
			Email:      newAccount.email,
			Role:       role,
			Password:   password,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, record)
	},
}

var mintToken struct {
	id         int64
	role       string
	name       string
	email      string
	nationalID string
	expiry     time.Duration
}

var mintTokenCmd = &cobra.Command{
	Use:   "mint-token",
	Short: "Sign an access token with JWT_SECRET, for operators and tests",
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := os.Getenv("JWT_SECRET")
		if secret == "" {
			return fmt.Errorf("JWT_SECRET is required")
		}
		role, err := models.ParseRole(mintToken.role)
		if err != nil {
			return err
		}
		if mintToken.id <= 0 {
			return fmt.Errorf("--id must be positive")
		}

		token, err := auth.NewTokenManager(secret, mintToken.expiry).GenerateAccessToken(auth.Subject{
			ID:         mintToken.id,
			Role:       role,
			Name:       mintToken.name,
			Email:      mintToken.email,
			NationalID: mintToken.nationalID,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	f := createAccountCmd.Flags()
	f.StringVar(&newAccount.name, "name", "", "display name")
	f.StringVar(&newAccount.nationalID, "cpf", "", "national ID (CPF)")
	f.StringVar(&newAccount.email, "email", "", "e-mail address, required for standard accounts")
	f.StringVar(&newAccount.role, "role", string(models.RoleStandard), "admin or usuario")
	_ = createAccountCmd.MarkFlagRequired("name")
	_ = createAccountCmd.MarkFlagRequired("cpf")

	f = mintTokenCmd.Flags()
	f.Int64Var(&mintToken.id, "id", 0, "account ID")
	f.StringVar(&mintToken.role, "role", string(models.RoleStandard), "admin or usuario")
	f.StringVar(&mintToken.name, "name", "", "display name")
	f.StringVar(&mintToken.email, "email", "", "e-mail address")
	f.StringVar(&mintToken.nationalID, "cpf", "", "national ID (CPF)")
	f.DurationVar(&mintToken.expiry, "expiry", time.Hour, "token lifetime")
	_ = mintTokenCmd.MarkFlagRequired("id")
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
