package credential

import (
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "taskpilot"

// Open returns the system keyring, falling back to an encrypted file
// under fileDir when no OS secret store is available.
func Open(fileDir string) (keyring.Keyring, error) {
	if fileDir == "" {
		fileDir = "~/.config/taskpilot/credentials"
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("taskpilot-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}
