package main

import (
	"github.com/joho/godotenv"

	"github.com/afoley587/coding-challenges-2025/usersync/cmd"
)

func main() {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()
	cmd.Execute()
}
