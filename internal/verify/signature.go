package verify

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedisct1/go-minisign"
)

// IsMinisignSignature reports whether data looks like a minisign signature file.
func IsMinisignSignature(data []byte) bool {
	return strings.HasPrefix(strings.TrimSpace(string(data)), "untrusted comment:")
}

// VerifyMinisign checks content against a minisign signature file using the
// public key at pubKeyPath.
func VerifyMinisign(content []byte, sigPath, pubKeyPath string) error {
	// #nosec G304 -- sigPath operator supplied
	sigBytes, err := os.ReadFile(sigPath)
	if err != nil {
		return fmt.Errorf("read minisign signature: %w", err)
	}
	if !IsMinisignSignature(sigBytes) {
		return fmt.Errorf("unsupported signature format in %s", sigPath)
	}

	pubKey, err := minisign.NewPublicKeyFromFile(pubKeyPath)
	if err != nil {
		return fmt.Errorf("read minisign pubkey: %w", err)
	}

	sig, err := minisign.DecodeSignature(string(sigBytes))
	if err != nil {
		return fmt.Errorf("read minisign signature: %w", err)
	}

	valid, err := pubKey.Verify(content, sig)
	if err != nil {
		return fmt.Errorf("minisign: verification error: %w", err)
	}
	if !valid {
		return fmt.Errorf("minisign: signature verification failed")
	}
	return nil
}
