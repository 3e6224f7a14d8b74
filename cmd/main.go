package main

import (
	"os"

	"github.com/soundprediction/retrievo/cmd/retrievo"
)

func main() {
	if err := retrievo.Execute(); err != nil {
		os.Exit(1)
	}
}
