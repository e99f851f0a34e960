// Command agora はコミュニティ型投稿サービスのAPIサーバーとワーカーを起動する。
//
//	agora [serve|worker|migrate [down [steps]]|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/agora/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "agora: %v\n", err)
		os.Exit(1)
	}
}
