package main

import (
	"bytes"
	"fmt"
	"os"
	"syscall"

	"github.com/stemsi/quizlock/internal/config"
	"github.com/stemsi/quizlock/internal/service"
	"golang.org/x/term"
)

const minPassphraseLen = 8

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()
	operatorService := service.NewOperatorService(cfg)

	// ─── CLI Input ─────────────────────────────────────────────────────
	fmt.Println("=== Generate Operator Passphrase Hash ===")

	passphrase := readSecret("Enter passphrase: ")
	if len(passphrase) < minPassphraseLen {
		fmt.Fprintf(os.Stderr, "Error: passphrase must be at least %d characters\n", minPassphraseLen)
		os.Exit(1)
	}
	confirm := readSecret("Confirm passphrase: ")
	if !bytes.Equal(passphrase, confirm) {
		fmt.Fprintln(os.Stderr, "Error: passphrases do not match")
		os.Exit(1)
	}

	hash, err := operatorService.HashPassphrase(string(passphrase))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: hash passphrase: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("Add this line to your environment:")
	fmt.Printf("OPERATOR_PASSPHRASE_HASH='%s'\n", hash)
}

func readSecret(prompt string) []byte {
	fmt.Print(prompt)
	secret, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // Newline after hidden input
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading passphrase: %v\n", err)
		os.Exit(1)
	}
	return secret
}
