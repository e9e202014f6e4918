package main

import (
	"github.com/joho/godotenv"

	"gokern/internal/cli"
)

func main() {
	// Load .env if present; KERNSIM_CONFIG may point at the kernel config.
	_ = godotenv.Load()

	cli.Execute()
}
