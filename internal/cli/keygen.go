package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corehq/warden/internal/evidence"
)

// keygenCmd generates a signing keypair
var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an ed25519 keypair for evidence signing",
	Long: `Writes a private/public keypair for signing evidence artifacts.

Example:
  warden keygen --private warden.key --public warden.pub`,
	RunE:         runKeygen,
	SilenceUsage: true,
}

var (
	keygenPrivateFlag string
	keygenPublicFlag  string
)

func init() {
	keygenCmd.Flags().StringVar(&keygenPrivateFlag, "private", "warden.key", "Path for the private key")
	keygenCmd.Flags().StringVar(&keygenPublicFlag, "public", "warden.pub", "Path for the public key")
}

// GetKeygenCmd export
func GetKeygenCmd() *cobra.Command {
	return keygenCmd
}

func runKeygen(cmd *cobra.Command, args []string) error {
	if err := evidence.GenerateKeys(keygenPrivateFlag, keygenPublicFlag); err != nil {
		return err
	}
	fmt.Printf("%sKeypair written%s (%s, %s)\n", colorGreen, colorReset, keygenPrivateFlag, keygenPublicFlag)
	fmt.Println("Keep the private key out of version control.")
	return nil
}
