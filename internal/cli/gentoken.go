package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/JongoDB/arc4de/internal/config"
	"github.com/JongoDB/arc4de/internal/jwtauth"

	"github.com/spf13/cobra"
)

func GenToken() *cobra.Command {
	var genTokenConfigFile string
	var genTokenTTL int64
	var genTokenQuiet bool
	var genTokenCmd = &cobra.Command{
		Use:   "gentoken",
		Short: "Generate access JWT for the terminal socket and API",
		Long:  `Generate access JWT for the terminal socket and API`,
		Run: func(cmd *cobra.Command, args []string) {
			genToken(cmd, genTokenConfigFile, genTokenTTL, genTokenQuiet)
		},
	}
	genTokenCmd.Flags().StringVarP(&genTokenConfigFile, "config", "c", "config.json", "path to config file")
	genTokenCmd.Flags().Int64VarP(&genTokenTTL, "ttl", "t", 3600, "token TTL in seconds, use -1 for token without expiration")
	genTokenCmd.Flags().BoolVarP(&genTokenQuiet, "quiet", "q", false, "only output the token without anything else")
	return genTokenCmd
}

func genToken(cmd *cobra.Command, genTokenConfigFile string, genTokenTTL int64, genTokenQuiet bool) {
	cfg, _, err := config.GetConfig(cmd, genTokenConfigFile)
	if err != nil {
		fmt.Printf("error getting config: %v\n", err)
		os.Exit(1)
	}
	issuer, err := jwtauth.NewIssuer(jwtauth.Config{
		Secret:     cfg.Auth.TokenHMACSecretKey,
		AccessTTL:  cfg.Auth.AccessTokenTTL,
		RefreshTTL: cfg.Auth.RefreshTokenTTL,
	})
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
	ttl := time.Duration(genTokenTTL) * time.Second
	if genTokenTTL < 0 {
		ttl = 0
	}
	token, err := issuer.AccessTokenTTL(ttl)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
	if genTokenQuiet {
		fmt.Print(token)
		return
	}
	exp := "without expiration"
	if genTokenTTL >= 0 {
		exp = fmt.Sprintf("with expiration TTL %s", ttl)
	}
	fmt.Printf("HMAC SHA-256 access JWT %s:\n%s\n", exp, token)
}
