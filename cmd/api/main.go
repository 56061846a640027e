package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"blog-backend/internal/app"
)

func main() {
	runtime, err := app.Build(context.Background(), app.Options{LoadDotEnv: true})
	if err != nil {
		fmt.Printf("bootstrap failed: %v\n", err)
		os.Exit(1)
	}
	defer runtime.Close()

	runtime.Logger.Info("server_start", map[string]any{"addr": runtime.Addr})
	if err := http.ListenAndServe(runtime.Addr, runtime.Handler); err != nil {
		runtime.Logger.Error("server_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}
