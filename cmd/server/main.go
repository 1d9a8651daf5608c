package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/capacita/internal/app"
	"github.com/joho/godotenv"
)

func main() {
	// .env がない場合は環境変数だけで起動する
	_ = godotenv.Load()

	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "capacita: %v\n", err)
		os.Exit(1)
	}
}
